package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

func testScene() scene.Scene {
	cam := scene.NewNode("camera", scene.WithPosition(0, 1, -6), scene.WithAspects(camera.NewCamera()))
	crate := scene.NewNode("crate", scene.WithAspects(scene.NewDrawable(resource.NewHandle(model.NewCube(1), nil))))
	return scene.NewScene(scene.WithNodes(cam, crate), scene.WithMainCamera(cam))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Window.Width, cfg.Window.Height = 64, 48
	cfg.Renderer.Workers = 0
	return cfg
}

func TestNewEngineRequiresScene(t *testing.T) {
	_, err := NewEngine(nil, WithBackend(renderertest.NewRecorder()))
	assert.ErrorIs(t, err, ErrNoScene)
}

func TestNewEngineValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Shadow.AtlasSize = 0
	_, err := NewEngine(nil, WithBackend(renderertest.NewRecorder()), WithScene(testScene()), WithConfig(cfg))
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRunPresentsFrames(t *testing.T) {
	rec := renderertest.NewRecorder()
	e, err := NewEngine(nil, WithBackend(rec), WithScene(testScene()), WithConfig(testConfig()), WithProfiling(true))
	require.NoError(t, err)

	var frames atomic.Int32
	e.SetRenderCallback(func(float32) {
		if frames.Add(1) == 3 {
			e.Quit()
		}
	})
	require.NoError(t, e.Run(context.Background()))

	assert.GreaterOrEqual(t, rec.Count("Present"), 3)
	for _, c := range rec.Find("Present") {
		assert.Equal(t, "Frame Output", c.Label)
	}
	assert.Equal(t, 1, rec.Count("Release"))
}

func TestRunStopsOnCancel(t *testing.T) {
	rec := renderertest.NewRecorder()
	e, err := NewEngine(nil, WithBackend(rec), WithScene(testScene()), WithConfig(testConfig()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	e.SetRenderCallback(func(float32) { cancel() })
	require.NoError(t, e.Run(ctx))
	assert.Positive(t, rec.Count("Present"))
}

func TestRunReturnsFrameError(t *testing.T) {
	rec := renderertest.NewRecorder()
	e, err := NewEngine(nil, WithBackend(rec), WithScene(testScene()), WithConfig(testConfig()))
	require.NoError(t, err)

	boom := errors.New("device lost")
	rec.FailOn("Submit", boom)
	err = e.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Zero(t, rec.Count("Present"))
}

func TestCommandsRunBeforeNextFrame(t *testing.T) {
	rec := renderertest.NewRecorder()
	e, err := NewEngine(nil, WithBackend(rec), WithScene(testScene()), WithConfig(testConfig()))
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Renderer.LightOverflow = config.OverflowNearest
	e.ApplyConfig(cfg)
	empty := scene.NewScene()
	e.SetScene(empty)

	var frames atomic.Int32
	e.SetRenderCallback(func(float32) { frames.Add(1) })
	e.SetTickCallback(func(float32) {
		// Without a camera no frame is presented; quit once the loop has spun.
		e.Quit()
	})
	require.NoError(t, e.Run(context.Background()))

	assert.Same(t, empty, e.Scene())
	assert.Zero(t, rec.Count("Present"))
	assert.Equal(t, config.OverflowNearest, e.(*engine).cfg.Renderer.LightOverflow)
}
