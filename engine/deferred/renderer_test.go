package deferred_test

import (
	"encoding/binary"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

func cube(name string, x, y, z float32) scene.Node {
	return scene.NewNode(name,
		scene.WithPosition(x, y, z),
		scene.WithAspects(scene.NewDrawable(resource.NewHandle(model.NewCube(1), nil))),
	)
}

func cameraNode() scene.Node {
	return scene.NewNode("camera", scene.WithPosition(0, 2, -10), scene.WithAspects(camera.NewCamera()))
}

// newScene builds a scene looking at nodes from the main camera.
func newScene(nodes ...scene.Node) scene.Scene {
	cam := cameraNode()
	return scene.NewScene(scene.WithNodes(append([]scene.Node{cam}, nodes...)...), scene.WithMainCamera(cam))
}

func newRenderer(t *testing.T, s scene.Query, options ...deferred.RendererBuilderOption) (*renderertest.Recorder, *deferred.Renderer) {
	t.Helper()
	rec := renderertest.NewRecorder()
	r, err := deferred.NewRenderer(rec, s, append([]deferred.RendererBuilderOption{deferred.WithWorkers(0)}, options...)...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	rec.Reset()
	return rec, r
}

func dispatch(t *testing.T, rec *renderertest.Recorder, label string) renderertest.Call {
	t.Helper()
	for _, c := range rec.Find("Dispatch") {
		if c.Label == label {
			return c
		}
	}
	require.Failf(t, "dispatch not recorded", "no dispatch of %s", label)
	return renderertest.Call{}
}

// pointLightXs decodes the x coordinate of every uploaded point light slot.
func pointLightXs(rec *renderertest.Recorder, count int) []float32 {
	data := rec.Buffer("Point Lights").Data
	stride := (&light.GPUPointLight{}).Size()
	out := make([]float32, count)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*stride:]))
	}
	slices.Sort(out)
	return out
}

func TestDrawWithoutCameraRecordsNothing(t *testing.T) {
	rec, r := newRenderer(t, scene.NewScene(scene.WithNodes(cube("crate", 0, 0, 0))))

	out, err := r.Draw(640, 360)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Empty(t, rec.Ops())
	assert.Equal(t, deferred.StateIdle, r.State())
}

func TestDrawZeroSizeKeepsPreviousFrame(t *testing.T) {
	_, r := newRenderer(t, newScene(cube("crate", 0, 0, 0)))

	first, err := r.Draw(64, 64)
	require.NoError(t, err)
	require.NotNil(t, first)

	out, err := r.Draw(0, 64)
	require.NoError(t, err)
	assert.Same(t, first, out)
}

func TestDrawWalksStates(t *testing.T) {
	var states []deferred.State
	_, r := newRenderer(t, newScene(cube("crate", 0, 0, 0)),
		deferred.WithStateObserver(func(s deferred.State) { states = append(states, s) }),
	)

	_, err := r.Draw(64, 64)
	require.NoError(t, err)
	assert.Equal(t, []deferred.State{
		deferred.StateGeometry,
		deferred.StateLighting,
		deferred.StatePost,
		deferred.StatePresent,
		deferred.StateIdle,
	}, states)
}

func TestDrawRecordsFrame(t *testing.T) {
	rec, r := newRenderer(t, newScene(cube("crate", 0, 0, 0), cube("behind", 0, 0, -500)))

	out, err := r.Draw(640, 360)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "Frame Output", out.Label())
	assert.Equal(t, uint32(640), out.Width())
	assert.Equal(t, uint32(360), out.Height())

	assert.Equal(t, "GBuffer", rec.Find("BeginRenderPass")[0].Label)
	ops := rec.Ops()
	assert.Equal(t, "Submit", ops[len(ops)-1])

	lit := dispatch(t, rec, "Light Accumulation")
	assert.Equal(t, [3]uint32{40, 23, 1}, lit.Groups)
	assert.Equal(t, "GBuffer Albedo", lit.Bound["albedo"])
	assert.Equal(t, "GBuffer Normal", lit.Bound["normals"])
	assert.Equal(t, "GBuffer Depth", lit.Bound["depth"])
	assert.Equal(t, "Shadow Atlas", lit.Bound["atlas"])
	assert.Equal(t, "Point Lights", lit.Bound["point_lights"])
	assert.Equal(t, "Uniform Arena", lit.Bound["params"])
	assert.Equal(t, "Light Buffer", lit.Bound["light_buffer"])

	// The crate behind the camera is culled.
	stats := r.Stats()
	assert.Equal(t, 1, stats.Meshes)
	assert.Equal(t, 1, stats.Draws)
	assert.Positive(t, stats.ArenaBytes)
	assert.Positive(t, stats.AverageLuminance)
}

func TestSecondFrameReusesTargets(t *testing.T) {
	rec, r := newRenderer(t, newScene(cube("crate", 0, 0, 0)))

	_, err := r.Draw(320, 180)
	require.NoError(t, err)
	_, err = r.Draw(320, 180)
	require.NoError(t, err)

	created := 0
	for _, c := range rec.Find("CreateTexture") {
		if c.Label == "GBuffer Albedo" || c.Label == "Frame Output" {
			created++
		}
	}
	assert.Equal(t, 2, created)
	assert.Positive(t, r.Cache().Stats().Hits)
}

func TestLightCapacity(t *testing.T) {
	lamps := func(n int) []scene.Node {
		// Farthest first, so the first policy and the nearest policy keep different lights.
		nodes := make([]scene.Node, 0, n)
		for i := n - 1; i >= 0; i-- {
			nodes = append(nodes, scene.NewNode("lamp", scene.WithPosition(float32(i), 1, 0),
				scene.WithAspects(light.NewLight(light.LightTypePoint))))
		}
		return nodes
	}

	t.Run("at capacity", func(t *testing.T) {
		_, r := newRenderer(t, newScene(lamps(light.Capacity)...))
		_, err := r.Draw(64, 64)
		require.NoError(t, err)
		assert.Equal(t, light.Capacity, r.Stats().PointLights)
		assert.Zero(t, r.Stats().Dropped)
	})

	t.Run("first", func(t *testing.T) {
		rec, r := newRenderer(t, newScene(lamps(light.Capacity+1)...))
		_, err := r.Draw(64, 64)
		require.NoError(t, err)
		assert.Equal(t, light.Capacity, r.Stats().PointLights)
		assert.Equal(t, 1, r.Stats().Dropped)
		xs := pointLightXs(rec, light.Capacity)
		assert.Equal(t, float32(1), xs[0])
		assert.Equal(t, float32(light.Capacity), xs[light.Capacity-1])
	})

	t.Run("nearest", func(t *testing.T) {
		cfg := config.Default()
		cfg.Renderer.LightOverflow = config.OverflowNearest
		rec, r := newRenderer(t, newScene(lamps(light.Capacity+1)...), deferred.WithConfig(cfg))
		_, err := r.Draw(64, 64)
		require.NoError(t, err)
		assert.Equal(t, 1, r.Stats().Dropped)
		xs := pointLightXs(rec, light.Capacity)
		assert.Equal(t, float32(0), xs[0])
		assert.Equal(t, float32(light.Capacity-1), xs[light.Capacity-1])
	})
}

func TestUnboundedLightIsNeverCulled(t *testing.T) {
	far := scene.NewNode("far", scene.WithPosition(0, 1, -500),
		scene.WithAspects(light.NewLight(light.LightTypePoint, light.WithAttenuation(1, 0, 0))))
	bounded := scene.NewNode("bounded", scene.WithPosition(5, 1, -500),
		scene.WithAspects(light.NewLight(light.LightTypePoint)))
	rec, r := newRenderer(t, newScene(cube("crate", 0, 0, 0), far, bounded))

	_, err := r.Draw(64, 64)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Stats().PointLights)

	data := rec.Buffer("Point Lights").Data
	assert.Equal(t, float32(0), math.Float32frombits(binary.LittleEndian.Uint32(data[0:])))
	radius := math.Float32frombits(binary.LittleEndian.Uint32(data[12:]))
	assert.Greater(t, radius, float32(1e30))
}

func TestDisabledLightsAreSkipped(t *testing.T) {
	off := scene.NewNode("off", scene.WithAspects(light.NewLight(light.LightTypePoint, light.WithEnabled(false))))
	sun := scene.NewNode("sun", scene.WithDirection(0, -1, 0.3), scene.WithAspects(light.NewLight(light.LightTypeDirectional)))
	_, r := newRenderer(t, newScene(cube("crate", 0, 0, 0), off, sun))

	_, err := r.Draw(64, 64)
	require.NoError(t, err)
	stats := r.Stats()
	assert.Zero(t, stats.PointLights)
	assert.Equal(t, 1, stats.DirectionalLights)
	assert.Zero(t, stats.ShadowRequests)
}

func TestShadowCastersRenderIntoAtlas(t *testing.T) {
	lamp := scene.NewNode("lamp", scene.WithPosition(0, 3, 0),
		scene.WithAspects(light.NewLight(light.LightTypePoint, light.WithCastsShadows(true))))
	sun := scene.NewNode("sun", scene.WithDirection(0, -1, 0.3),
		scene.WithAspects(light.NewLight(light.LightTypeDirectional, light.WithCastsShadows(true))))
	rec, r := newRenderer(t, newScene(cube("crate", 0, 0, 0), lamp, sun))

	_, err := r.Draw(64, 64)
	require.NoError(t, err)
	stats := r.Stats()
	assert.Equal(t, 2, stats.ShadowRequests)
	assert.Equal(t, 2, stats.Shadowed)
	assert.Zero(t, stats.Unshadowed)
	assert.Equal(t, 2, stats.ShadowDraws)

	// Shadow maps are recorded before the dispatch that reads them.
	var order []string
	for _, c := range rec.Calls() {
		switch {
		case c.Op == "BeginRenderPass" && c.Label != "GBuffer":
			order = append(order, "shadow")
		case c.Op == "Dispatch" && c.Label == "Light Accumulation":
			order = append(order, "lighting")
		}
	}
	require.NotEmpty(t, order)
	assert.Equal(t, "lighting", order[len(order)-1])
	assert.Contains(t, order, "shadow")
}

func TestGBufferDrawsEverySubset(t *testing.T) {
	rec := renderertest.NewRecorder()
	mdl := model.NewCube(1)
	mdl.SetSubsets([]model.Subset{
		{FirstIndex: 0, IndexCount: 12, Material: 0},
		{FirstIndex: 12, IndexCount: 24, Material: 1},
		{FirstIndex: 36, IndexCount: 0},
	})

	var painted *resource.Handle[material.Material]
	holder := scene.NewNode("crate")
	s := newScene(holder)
	r, err := deferred.NewRenderer(rec, s, deferred.WithWorkers(2))
	require.NoError(t, err)
	defer r.Release()

	// Slot 1 is missing; its subset draws with the base material.
	painted = resource.NewHandle(r.BaseMaterial().Instantiate("Painted"), nil)
	require.NoError(t, painted.Get().SetVector("albedo", []float32{1, 0, 0}))
	holder.AddAspect(scene.NewDrawable(resource.NewHandle(mdl, nil), painted))
	rec.Reset()

	_, err = r.Draw(64, 64)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Stats().Draws)

	var draws [][2]uint32
	for _, c := range rec.Find("DrawIndexed") {
		draws = append(draws, [2]uint32{c.First, c.Count})
	}
	// Shadow maps draw nothing without shadow-casting lights.
	assert.Equal(t, [][2]uint32{{0, 12}, {12, 24}}, draws)
}

func TestParallelConstantsMatchSequential(t *testing.T) {
	nodes := make([]scene.Node, 0, 16)
	for i := range 16 {
		nodes = append(nodes, cube("crate", float32(i%4)*2-3, float32(i/4)*2-3, 5))
	}
	s := newScene(nodes...)

	_, sequential := newRenderer(t, s)
	_, parallel := newRenderer(t, s, deferred.WithWorkers(3))
	_, err := sequential.Draw(128, 128)
	require.NoError(t, err)
	_, err = parallel.Draw(128, 128)
	require.NoError(t, err)

	assert.Equal(t, sequential.Stats().Draws, parallel.Stats().Draws)
	assert.Equal(t, sequential.Stats().ArenaBytes, parallel.Stats().ArenaBytes)
}

func TestFailedPassAbandonsFrame(t *testing.T) {
	var states []deferred.State
	rec, r := newRenderer(t, newScene(cube("crate", 0, 0, 0)),
		deferred.WithStateObserver(func(s deferred.State) { states = append(states, s) }),
	)
	boom := errors.New("device lost")
	rec.FailOn("Dispatch", boom)

	out, err := r.Draw(64, 64)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, out)
	assert.Zero(t, rec.Count("Submit"))
	assert.Equal(t, 1, rec.Count("ReleaseEncoder"))
	assert.Equal(t, []deferred.State{deferred.StateGeometry, deferred.StateLighting, deferred.StateIdle}, states)

	rec.FailOn("Dispatch", nil)
	_, err = r.Draw(64, 64)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Count("ReleaseEncoder"))
}

func TestResizePurgesOldSurfaces(t *testing.T) {
	rec, r := newRenderer(t, newScene(cube("crate", 0, 0, 0)))
	for _, size := range []uint32{64, 64, 128} {
		_, err := r.Draw(size, size)
		require.NoError(t, err)
	}
	assert.Zero(t, r.Cache().Stats().Idle)
	_, err := r.Draw(128, 128)
	require.NoError(t, err)

	// A renderer that only ever drew 128x128 holds exactly as many textures.
	freshRec, fresh := newRenderer(t, newScene(cube("crate", 0, 0, 0)))
	for range 2 {
		_, err := fresh.Draw(128, 128)
		require.NoError(t, err)
	}
	assert.Equal(t, freshRec.LiveTextures(), rec.LiveTextures())
	assert.Equal(t, fresh.Cache().Stats().Idle, r.Cache().Stats().Idle)
}

func TestSetConfigValidates(t *testing.T) {
	_, r := newRenderer(t, newScene())

	bad := config.Default()
	bad.Renderer.LightOverflow = "random"
	require.Error(t, r.SetConfig(bad))

	cfg := config.Default()
	cfg.Shadow.AtlasSize = 1024
	cfg.Shadow.DirectionalSize = 512
	require.NoError(t, r.SetConfig(cfg))
	assert.Equal(t, uint32(1024), r.Atlas().Allocator().Size())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", deferred.StateIdle.String())
	assert.Equal(t, "lighting", deferred.StateLighting.String())
}
