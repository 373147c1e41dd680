package shadow_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/fx"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
)

type fixture struct {
	rec   *renderertest.Recorder
	atlas *shadow.Atlas
	enc   renderer.Encoder
}

func newFixture(t *testing.T, cfg config.Shadow) fixture {
	t.Helper()
	rec := renderertest.NewRecorder()
	arena, err := renderer.NewUniformArena(rec, 1<<20)
	require.NoError(t, err)
	dev, err := fx.NewDevice(rec, arena, resource.NewCache(rec))
	require.NoError(t, err)
	atlas, err := shadow.NewAtlas(dev, resource.NewMeshCache(rec), cfg)
	require.NoError(t, err)
	enc, err := rec.NewEncoder("frame")
	require.NoError(t, err)
	return fixture{rec: rec, atlas: atlas, enc: enc}
}

func cube(name string, x, y, z float32) scene.Node {
	return scene.NewNode(name,
		scene.WithPosition(x, y, z),
		scene.WithAspects(scene.NewDrawable(resource.NewHandle(model.NewCube(1), nil))),
	)
}

func testView() shadow.CameraView {
	return shadow.CameraView{
		Position:  [3]float32{0, 2, -10},
		Forward:   [3]float32{0, 0, 1},
		Near:      0.1,
		Far:       50,
		FarHeight: 40,
		Aspect:    16.0 / 9,
	}
}

func TestPointShadowFillsEntry(t *testing.T) {
	f := newFixture(t, config.Default().Shadow)
	lamp := light.NewLight(light.LightTypePoint, light.WithCastsShadows(true), light.WithShadowResolution(512))
	host := scene.NewNode("lamp", scene.WithPosition(0, 3, 0), scene.WithAspects(lamp))
	s := scene.NewScene(scene.WithNodes(host, cube("crate", 0, 0, 0), cube("distant", 5000, 0, 0)))

	f.atlas.Begin(f.enc)
	var out light.GPUPointShadow
	ok, err := f.atlas.ComputePointShadow(lamp, host, s, &out)
	require.NoError(t, err)
	require.True(t, ok)
	f.atlas.Commit()

	assert.Equal(t, uint32(1), out.Enabled)
	assert.Equal(t, uint32(0), out.Page)
	assert.Equal(t, [2]float32{0, 0}, out.UVMin)
	assert.InDelta(t, 511.0/2047, out.UVMax[0], 1e-6)
	assert.InDelta(t, config.Default().Shadow.PointNear, out.Near, 1e-6)
	assert.InDelta(t, lamp.Range(), out.Far, 1e-3)

	// Only the crate is inside the light's range; one cube subset.
	assert.Equal(t, 1, f.rec.Count("DrawIndexed"))
	assert.Equal(t, "Point Shadow", f.rec.Find("BeginRenderPass")[0].Label)
	blur := f.rec.Find("Dispatch")
	require.Len(t, blur, 2)
	assert.Equal(t, "Shadow Moments", blur[0].Bound["source"])
	assert.Equal(t, "Shadow Atlas", blur[1].Bound["destination"])

	stats := f.atlas.Stats()
	assert.Equal(t, shadow.Stats{Requested: 1, Rendered: 1, Draws: 1}, stats)

	tex, err := f.atlas.Texture()
	require.NoError(t, err)
	assert.Equal(t, "Shadow Atlas", tex.Label())
}

func TestUnboundedPointShadowUsesConfiguredFar(t *testing.T) {
	f := newFixture(t, config.Default().Shadow)
	lamp := light.NewLight(light.LightTypePoint, light.WithCastsShadows(true), light.WithAttenuation(1, 0, 0))
	host := scene.NewNode("lamp", scene.WithPosition(0, 3, 0), scene.WithAspects(lamp))
	s := scene.NewScene(scene.WithNodes(host, cube("crate", 0, 0, 0)))

	f.atlas.Begin(f.enc)
	var out light.GPUPointShadow
	ok, err := f.atlas.ComputePointShadow(lamp, host, s, &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, config.Default().Shadow.PointFar, out.Far, 1e-6)
}

func TestShadowDisabledPropagates(t *testing.T) {
	f := newFixture(t, config.Default().Shadow)
	lamp := light.NewLight(light.LightTypePoint)
	host := scene.NewNode("lamp", scene.WithAspects(lamp))
	s := scene.NewScene(scene.WithNodes(host, cube("crate", 0, 0, 0)))

	f.atlas.Begin(f.enc)
	out := light.GPUPointShadow{Enabled: 1, Page: 3}
	ok, err := f.atlas.ComputePointShadow(lamp, host, s, &out)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, light.GPUPointShadow{}, out)
	assert.Equal(t, 0, f.rec.Count("BeginRenderPass"))
	assert.Equal(t, shadow.Stats{}, f.atlas.Stats())
}

func TestFullAtlasDisablesShadow(t *testing.T) {
	cfg := config.Default().Shadow
	cfg.AtlasSize = 1024
	f := newFixture(t, cfg)
	sun := light.NewLight(light.LightTypeDirectional, light.WithCastsShadows(true), light.WithShadowResolution(1024))
	host := scene.NewNode("sun", scene.WithDirection(0, -1, 0.2), scene.WithAspects(sun))
	s := scene.NewScene(scene.WithNodes(host, cube("crate", 0, 0, 0)))

	f.atlas.Begin(f.enc)
	var first, second light.GPUDirectionalShadow
	ok, err := f.atlas.ComputeDirectionalShadow(sun, host, testView(), s, &first)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, [2]float32{1, 1}, first.UVMax)

	ok, err = f.atlas.ComputeDirectionalShadow(sun, host, testView(), s, &second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint32(0), second.Enabled)
	assert.Equal(t, 1, f.atlas.Stats().Unshadowed)

	// The next frame starts from an empty atlas.
	f.atlas.Commit()
	f.atlas.Begin(f.enc)
	ok, err = f.atlas.ComputeDirectionalShadow(sun, host, testView(), s, &second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAtlasGuardsReadsBeforeCommit(t *testing.T) {
	f := newFixture(t, config.Default().Shadow)
	_, err := f.atlas.Texture()
	assert.ErrorIs(t, err, shadow.ErrNotCommitted)

	lamp := light.NewLight(light.LightTypePoint, light.WithCastsShadows(true))
	host := scene.NewNode("lamp", scene.WithAspects(lamp))
	var out light.GPUPointShadow
	_, err = f.atlas.ComputePointShadow(lamp, host, scene.NewScene(), &out)
	assert.ErrorIs(t, err, shadow.ErrNotBegun)

	f.atlas.Begin(f.enc)
	_, err = f.atlas.Texture()
	assert.ErrorIs(t, err, shadow.ErrNotCommitted)
	f.atlas.Commit()
	assert.True(t, f.atlas.Readable())
}

func TestNonCasterSubsetsAreSkipped(t *testing.T) {
	f := newFixture(t, config.Default().Shadow)
	glass := model.NewCube(1)
	glass.SetSubsets([]model.Subset{
		{FirstIndex: 0, IndexCount: 18, Flags: model.SubsetFlagShadowCaster},
		{FirstIndex: 18, IndexCount: 18},
	})
	n := scene.NewNode("glass", scene.WithAspects(scene.NewDrawable(resource.NewHandle(glass, nil))))
	lamp := light.NewLight(light.LightTypePoint, light.WithCastsShadows(true))
	host := scene.NewNode("lamp", scene.WithPosition(0, 2, 0), scene.WithAspects(lamp))
	s := scene.NewScene(scene.WithNodes(n, host))

	f.atlas.Begin(f.enc)
	var out light.GPUPointShadow
	_, err := f.atlas.ComputePointShadow(lamp, host, s, &out)
	require.NoError(t, err)

	draws := f.rec.Find("DrawIndexed")
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(18), draws[0].Count)
	assert.Equal(t, uint32(0), draws[0].First)
}

func TestRenderFailureIsReturned(t *testing.T) {
	f := newFixture(t, config.Default().Shadow)
	boom := errors.New("out of memory")
	f.rec.FailOn("CreateTexture", boom)

	lamp := light.NewLight(light.LightTypePoint, light.WithCastsShadows(true))
	host := scene.NewNode("lamp", scene.WithAspects(lamp))
	f.atlas.Begin(f.enc)
	var out light.GPUPointShadow
	_, err := f.atlas.ComputePointShadow(lamp, host, scene.NewScene(), &out)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint32(0), out.Enabled)
}

func TestFitDirectionalBoundsCasters(t *testing.T) {
	v := shadow.FitDirectional([3]float32{0, -1, 0}, testView(), 15000)
	assert.InDeltaSlice(t, []float32{0, 2, 15.05}, v.Center[:], 1e-4)
	assert.Greater(t, v.Diameter, float32(0))

	inside := common.Sphere{Center: v.Center, Radius: 1}
	assert.True(t, v.Frustum.IntersectsSphere(inside))
	aside := common.Sphere{Center: [3]float32{v.Center[0] + v.Diameter, v.Center[1], v.Center[2]}, Radius: 1}
	assert.False(t, v.Frustum.IntersectsSphere(aside))
	// Depth along the light is bounded by the domain only.
	above := common.Sphere{Center: [3]float32{v.Center[0], v.Center[1] + 10000, v.Center[2]}, Radius: 1}
	assert.True(t, v.Frustum.IntersectsSphere(above))

	zMin, zMax := v.DepthRange([]common.Sphere{
		{Center: [3]float32{0, 12, 15.05}, Radius: 1},
		{Center: [3]float32{0, -3, 15.05}, Radius: 2},
	})
	// The light travels down -Y: the higher sphere is nearer.
	assert.InDelta(t, -11.0, zMin, 1e-4)
	assert.InDelta(t, 7.0, zMax, 1e-4)

	vp := v.ViewProj(zMin, zMax)
	near := common.TransformPoint(vp[:], [3]float32{0, 13, 15.05})
	far := common.TransformPoint(vp[:], [3]float32{0, -5, 15.05})
	assert.InDelta(t, 0.0, near[2], 1e-4)
	assert.InDelta(t, 1.0, far[2], 1e-4)
}
