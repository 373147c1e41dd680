package common

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertMatrix(t *testing.T, want, got []float32) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "element %d", i)
	}
}

func TestInvert4Translation(t *testing.T) {
	m := make([]float32, 16)
	Identity(m)
	m[12], m[13], m[14] = 3, -2, 5

	inv := make([]float32, 16)
	require.True(t, Invert4(inv, m))

	product := make([]float32, 16)
	Mul4(product, m, inv)
	id := make([]float32, 16)
	Identity(id)
	assertMatrix(t, id, product)

	assert.False(t, Invert4(inv, make([]float32, 16)))
}

func TestPerspectiveDepthRange(t *testing.T) {
	proj := make([]float32, 16)
	PerspectiveLH(proj, math32.Pi/4, 16.0/9, 0.1, 100)

	assert.InDelta(t, 0, TransformPoint(proj, [3]float32{0, 0, 0.1})[2], 1e-5)
	assert.InDelta(t, 1, TransformPoint(proj, [3]float32{0, 0, 100})[2], 1e-5)
}

func TestOrthographicDepthRange(t *testing.T) {
	proj := make([]float32, 16)
	OrthographicLH(proj, 20, 10, 1, 11)

	p := TransformPoint(proj, [3]float32{10, 5, 6})
	assert.InDelta(t, 1, p[0], 1e-5)
	assert.InDelta(t, 1, p[1], 1e-5)
	assert.InDelta(t, 0.5, p[2], 1e-5)
}

func TestRigidInverseDropsScale(t *testing.T) {
	world := make([]float32, 16)
	Identity(world)
	world[0], world[5], world[10] = 2, 2, 2
	world[12], world[13], world[14] = 1, 2, 3

	view := make([]float32, 16)
	RigidInverse(view, world)
	p := TransformPoint(view, [3]float32{1, 2, 4})
	assertMatrix(t, []float32{0, 0, 1}, p[:])
}

func TestFrustumCulling(t *testing.T) {
	proj := make([]float32, 16)
	PerspectiveLH(proj, math32.Pi/2, 1, 0.1, 100)
	view := make([]float32, 16)
	LookToLH(view, [3]float32{}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}, [3]float32{0, 0, 1})
	viewProj := make([]float32, 16)
	Mul4(viewProj, proj, view)

	f := ExtractFrustumFromMatrix(viewProj)
	for i, p := range f.Planes {
		assert.InDelta(t, 1, Length3(p.Normal), 1e-5, "plane %d", i)
	}

	tests := []struct {
		name   string
		sphere Sphere
		want   bool
	}{
		{"ahead", Sphere{Center: [3]float32{0, 0, 10}, Radius: 1}, true},
		{"behind", Sphere{Center: [3]float32{0, 0, -10}, Radius: 1}, false},
		{"straddles near", Sphere{Center: [3]float32{0, 0, -0.5}, Radius: 1}, true},
		{"far right", Sphere{Center: [3]float32{100, 0, 10}, Radius: 1}, false},
		{"beyond far", Sphere{Center: [3]float32{0, 0, 150}, Radius: 10}, false},
		{"infinite", Sphere{Center: [3]float32{0, 0, -10}, Radius: math32.Inf(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IntersectsSphere(tt.sphere))
		})
	}
}

func TestSphereIntersectsSphere(t *testing.T) {
	a := Sphere{Radius: 1}
	assert.True(t, a.IntersectsSphere(Sphere{Center: [3]float32{2, 0, 0}, Radius: 1}))
	assert.False(t, a.IntersectsSphere(Sphere{Center: [3]float32{2.1, 0, 0}, Radius: 1}))
}

func TestOrthonormalBasis(t *testing.T) {
	for _, forward := range [][3]float32{{0, 0, 1}, {0, -1, 0}, Normalize3([3]float32{1, -1, 0.5})} {
		right, up := OrthonormalBasis(forward)
		assert.InDelta(t, 0, Dot3(right, forward), 1e-5)
		assert.InDelta(t, 0, Dot3(up, forward), 1e-5)
		assert.InDelta(t, 0, Dot3(right, up), 1e-5)
		assert.InDelta(t, 1, Length3(right), 1e-5)
		assert.InDelta(t, 1, Length3(up), 1e-5)
	}
}

func TestBox2D(t *testing.T) {
	b := Box2D{Min: Point2D{X: 0, Y: 0}, Max: Point2D{X: 1023, Y: 511}}
	assert.Equal(t, uint32(1024), b.Width())
	assert.Equal(t, uint32(512), b.Height())
	assert.Equal(t, uint64(1024*512), b.Area())

	assert.True(t, b.Overlaps(Box2D{Min: Point2D{X: 1023, Y: 511}, Max: Point2D{X: 2000, Y: 600}}))
	assert.False(t, b.Overlaps(Box2D{Min: Point2D{X: 1024, Y: 0}, Max: Point2D{X: 2047, Y: 511}}))
	assert.True(t, b.Contains(Box2D{Min: Point2D{X: 10, Y: 10}, Max: Point2D{X: 20, Y: 20}}))

	uvMin, uvMax := b.UV(2048)
	assert.Equal(t, [2]float32{0, 0}, uvMin)
	assert.InDelta(t, 1023.0/2047, uvMax[0], 1e-6)
	assert.InDelta(t, 511.0/2047, uvMax[1], 1e-6)
}

func TestDivCeil(t *testing.T) {
	assert.Equal(t, uint32(40), DivCeil(640, 16))
	assert.Equal(t, uint32(23), DivCeil(360, 16))
	assert.Equal(t, uint32(0), DivCeil(5, 0))
}
