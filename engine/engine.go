// Package engine runs the viewer: a fixed-rate tick loop for scene updates, a render loop
// driving the deferred renderer into the window surface, and hot reload of the configuration
// and shader sources.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/fx"
	"github.com/Carmen-Shannon/oxy-deferred/engine/profiler"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
	"github.com/Carmen-Shannon/oxy-deferred/log"
)

var logger = log.New("engine")

// ErrNoScene is returned by NewEngine when no scene was given.
var ErrNoScene = errors.New("engine has no scene")

// engine implements the Engine interface.
// The render goroutine owns the renderer; other goroutines reach it through commands.
type engine struct {
	cfg        config.Config
	configPath string
	shaderDir  string

	window   window.Window
	backend  renderer.Backend
	renderer *deferred.Renderer
	scene    scene.Scene

	width  atomic.Uint32
	height atomic.Uint32

	commands        chan func(r *deferred.Renderer)
	tickRateChannel chan time.Duration

	wg          sync.WaitGroup
	quitChannel chan struct{}
	quitOnce    sync.Once
	errMu       sync.Mutex
	err         error

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate   time.Duration
	renderFrameLimit time.Duration
	tickCallback     func(deltaTime float32)
	renderCallback   func(deltaTime float32)
}

// Engine is the main entry point of the viewer.
type Engine interface {
	// Window returns the window presented into, nil when rendering offscreen.
	Window() window.Window

	// Scene returns the scene being drawn.
	Scene() scene.Scene

	// BaseMaterial returns the geometry pass material that scene materials are instantiated from.
	BaseMaterial() material.Material

	// SetScene replaces the scene from the next frame on.
	//
	// Parameters:
	//   - s: the scene to draw
	SetScene(s scene.Scene)

	// ApplyConfig hands new tunables to the renderer before the next frame. Invalid
	// configurations are logged and ignored.
	//
	// Parameters:
	//   - cfg: the configuration
	ApplyConfig(cfg config.Config)

	// Profiler returns the frame profiler.
	Profiler() *profiler.Profiler

	// EnableProfiler enables the periodic frame statistics log.
	EnableProfiler()

	// DisableProfiler disables the periodic frame statistics log.
	DisableProfiler()

	// SetTickRate sets the rate of the tick callback.
	//
	// Parameters:
	//   - fps: ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick, used for scene updates.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each presented frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit caps the render loop.
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the loops and blocks until the window closes, ctx is cancelled or Quit is
	// called. It must run on the goroutine that created the window.
	//
	// Parameters:
	//   - ctx: cancels the run
	//
	// Returns:
	//   - error: the error that stopped the render loop, nil on a normal shutdown
	Run(ctx context.Context) error

	// Quit signals all loops to stop. Safe to call multiple times.
	Quit()
}

// NewEngine creates the backend presenting into win and the deferred renderer drawing the scene.
//
// Parameters:
//   - win: the window to present into; nil requires WithBackend and renders offscreen at the configured size
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the engine
//   - error: error if no scene was given, the configuration is invalid or the GPU cannot be initialised
func NewEngine(win window.Window, options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		cfg:             config.Default(),
		window:          win,
		commands:        make(chan func(r *deferred.Renderer), 16),
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		engineTickRate:  time.Second / 60,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.scene == nil {
		return nil, ErrNoScene
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	e.applyLogLevel(e.cfg)
	e.profiler = profiler.NewProfiler(time.Second)

	if e.backend == nil {
		if win == nil {
			return nil, fmt.Errorf("engine needs a window or a backend")
		}
		mode := renderer.PresentModeUncapped
		if e.cfg.Window.VSync {
			mode = renderer.PresentModeVSync
		}
		b, err := renderer.NewBackend(renderer.BackendTypeWGPU, win,
			renderer.WithPresentMode(mode),
			renderer.WithForceSoftwareRenderer(e.cfg.Renderer.ForceSoftware),
			renderer.WithBindGroupCacheSize(e.cfg.Renderer.BindGroupCache),
		)
		if err != nil {
			return nil, err
		}
		e.backend = b
	}

	if win != nil {
		e.setSize(win.Width(), win.Height())
		win.SetResizeCallback(func(width, height int) {
			e.backend.Resize(width, height)
			e.setSize(width, height)
		})
	} else {
		e.setSize(e.cfg.Window.Width, e.cfg.Window.Height)
	}

	r, err := deferred.NewRenderer(e.backend, e.scene, deferred.WithConfig(e.cfg))
	if err != nil {
		e.backend.Release()
		return nil, err
	}
	e.renderer = r
	return e, nil
}

func (e *engine) setSize(width, height int) {
	e.width.Store(uint32(max(width, 0)))
	e.height.Store(uint32(max(height, 0)))
}

func (e *engine) applyLogLevel(cfg config.Config) {
	level, ok := log.ParseLevel(cfg.Log.Level)
	if !ok {
		logger.Warningf("unknown log level %q", cfg.Log.Level)
	}
	log.SetLevel(level)
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Scene() scene.Scene {
	return e.scene
}

func (e *engine) BaseMaterial() material.Material {
	return e.renderer.BaseMaterial()
}

func (e *engine) SetScene(s scene.Scene) {
	e.scene = s
	e.commands <- func(r *deferred.Renderer) {
		r.SetQuery(s)
	}
}

func (e *engine) ApplyConfig(cfg config.Config) {
	e.commands <- func(r *deferred.Renderer) {
		if err := r.SetConfig(cfg); err != nil {
			logger.Warningf("config rejected: %v", err)
			return
		}
		e.applyLogLevel(cfg)
		e.cfg = cfg
	}
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.watch(ctx)
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
	go func() {
		select {
		case <-ctx.Done():
			e.signalQuit()
		case <-e.quitChannel:
		}
	}()

	if e.window != nil {
		e.window.SetUpdateCallback(func() {
			select {
			case <-e.quitChannel:
				e.wg.Wait()
				_ = e.window.Close()
			default:
			}
		})
		e.window.ProcessMessages()
		e.signalQuit()
	} else {
		<-e.quitChannel
	}
	e.wg.Wait()

	e.renderer.Release()
	e.backend.Release()
	if e.window != nil && e.window.IsRunning() {
		_ = e.window.Close()
	}
	return e.runError()
}

// watch starts the config and shader reloaders. They stop with ctx.
func (e *engine) watch(ctx context.Context) {
	if e.configPath != "" {
		go func() {
			if err := config.Watch(ctx, e.configPath, e.ApplyConfig); err != nil {
				logger.Warningf("config hot reload disabled: %v", err)
			}
		}()
	}
	if e.shaderDir != "" {
		for _, lib := range []interface {
			Watch(ctx context.Context, dir string) error
		}{deferred.Shaders(), shadow.Shaders(), fx.Shaders()} {
			go func() {
				if err := lib.Watch(ctx, e.shaderDir); err != nil {
					logger.Warningf("shader hot reload disabled: %v", err)
				}
			}()
		}
	}
}

// Quit signals all engine goroutines to stop.
func (e *engine) Quit() {
	e.signalQuit()
}

func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// fail records the first error that stopped the render loop and quits.
func (e *engine) fail(err error) {
	e.errMu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.errMu.Unlock()
	e.signalQuit()
}

func (e *engine) runError() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.err
}

// handleEngine runs the fixed-rate tick loop. The rate can change while running through
// tickRateChannel.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()
	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now
			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender draws and presents frames until quit. A failed frame stops the engine with
// its error; a panic is recovered into an error.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.fail(fmt.Errorf("render loop panic: %v", r))
		}
	}()

	lastRender := time.Now()
	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}
		e.drainCommands()

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		out, err := e.renderer.Draw(e.width.Load(), e.height.Load())
		if err != nil {
			logger.Errorf("frame failed: %v", err)
			e.fail(err)
			return
		}
		if out != nil {
			if err := e.backend.Present(out); err != nil {
				logger.Errorf("present failed: %v", err)
				e.fail(err)
				return
			}
		}
		if e.renderCallback != nil {
			e.renderCallback(dt)
		}
		if e.profilingEnabled.Load() {
			e.profiler.Tick(profiler.Sample{
				Frame:     e.renderer.Stats(),
				Cache:     e.renderer.Cache().Stats(),
				FrameTime: time.Since(now),
			})
		}

		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(now); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

// drainCommands runs the queued renderer commands.
func (e *engine) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			cmd(e.renderer)
		default:
			return
		}
	}
}

func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate changes the tick rate. A running tick loop picks it up immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	// Replace a pending update rather than block.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
