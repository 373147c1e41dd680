package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerspectiveMapsNearAndFarToClipRange(t *testing.T) {
	c := NewCamera(WithNear(1), WithFar(100))
	proj := c.ProjectionMatrix(16.0 / 9.0)

	near := common.TransformPoint(proj[:], [3]float32{0, 0, 1})
	far := common.TransformPoint(proj[:], [3]float32{0, 0, 100})
	assert.InDelta(t, 0.0, near[2], 1e-5)
	assert.InDelta(t, 1.0, far[2], 1e-5)
}

func TestOrthographicUsesAspectForWidth(t *testing.T) {
	c := NewCamera(WithOrthographic(10), WithNear(0), WithFar(50))
	require.Equal(t, ProjectionOrthographic, c.Projection())
	proj := c.ProjectionMatrix(2)

	edge := common.TransformPoint(proj[:], [3]float32{10, 5, 25})
	assert.InDelta(t, 1.0, edge[0], 1e-5)
	assert.InDelta(t, 1.0, edge[1], 1e-5)
	assert.InDelta(t, 0.5, edge[2], 1e-5)
}

func TestViewMatrixInvertsNodeTransform(t *testing.T) {
	o := NewOrbit(WithRadius(10), WithElevation(0))
	world := o.World()
	view := NewCamera().ViewMatrix(world)

	// The target sits straight ahead on +Z in view space.
	p := common.TransformPoint(view[:], [3]float32{0, 0, 0})
	assert.InDelta(t, 0.0, p[0], 1e-4)
	assert.InDelta(t, 0.0, p[1], 1e-4)
	assert.InDelta(t, 10.0, p[2], 1e-4)
}

func TestOrbitClampsRadius(t *testing.T) {
	o := NewOrbit(WithRadius(5))
	o.Zoom(100)
	eye := o.Position()
	assert.InDelta(t, 1.0, common.Length3(eye), 1e-4)
}

func TestOrbitCirclesTarget(t *testing.T) {
	o := NewOrbit(WithTarget(2, 1, -3), WithRadius(4), WithElevation(0))
	assert.Equal(t, [3]float32{2, 1, -3}, o.Target())
	pos := o.Position()
	assert.InDeltaSlice(t, []float32{2, 1, -7}, pos[:], 1e-5)
}

func TestFovNarrowsProjection(t *testing.T) {
	wide := NewCamera(WithFov(math32.Pi / 2)).ProjectionMatrix(1)
	narrow := NewCamera(WithFov(math32.Pi / 4)).ProjectionMatrix(1)
	assert.InDelta(t, 1.0, wide[5], 1e-5)
	assert.Greater(t, narrow[5], wide[5])
}
