package main

import (
	"cmp"
	"context"
	"fmt"
	"sync"

	"github.com/urfave/cli"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine"
	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
)

const (
	dragSpeed   = 0.005
	scrollSpeed = 0.8

	minWindowWidth  = 320
	minWindowHeight = 240
)

// Run opens the viewer window and renders the demo scene until the window closes.
func Run(ctx *cli.Context) error {
	cfg, err := setup(ctx)
	if err != nil {
		return err
	}
	grid, lights, shadows := ctx.Int("grid"), ctx.Int("lights"), ctx.Int("shadows")
	if grid < 1 || lights < 0 || shadows < 0 {
		return fmt.Errorf("grid must be positive and lights, shadows not negative")
	}

	win, err := window.NewWindow(
		window.WithTitle(cmp.Or(cfg.Window.Title, "oxyd")),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithSizeLimits(minWindowWidth, minWindowHeight, 0, 0),
	)
	if err != nil {
		return err
	}

	d := newDemo(grid, lights, shadows)

	// Input callbacks run on the window goroutine, the tick on the engine goroutine.
	var mu sync.Mutex
	win.SetDragCallback(func(dx, dy float32) {
		mu.Lock()
		d.orbit.Rotate(dx*dragSpeed, dy*dragSpeed)
		mu.Unlock()
	})
	win.SetScrollCallback(func(delta float32) {
		mu.Lock()
		d.orbit.Zoom(-delta * scrollSpeed)
		mu.Unlock()
	})

	options := []engine.EngineBuilderOption{
		engine.WithConfig(cfg),
		engine.WithScene(d.scene),
		engine.WithProfiling(ctx.Bool("profile")),
		engine.WithRenderFrameLimit(ctx.Float64("fps")),
		engine.WithTickRate(ctx.Float64("tick-rate")),
		engine.WithTickCallback(func(dt float32) {
			mu.Lock()
			defer mu.Unlock()
			d.updateCamera()
			d.tick(dt)
		}),
	}
	if path := ctx.GlobalString("config"); path != "" {
		options = append(options, engine.WithConfigWatch(path))
	}
	if dir := ctx.String("shaders"); dir != "" {
		options = append(options, engine.WithShaderDir(dir))
	}

	e, err := engine.NewEngine(win, options...)
	if err != nil {
		_ = win.Close()
		return err
	}
	if err := d.furnish(e.BaseMaterial()); err != nil {
		e.Quit()
		_ = win.Close()
		return err
	}

	profiling := ctx.Bool("profile")
	win.SetKeyCallback(func(key window.Key, down bool) {
		if !down {
			return
		}
		switch key {
		case window.KeyP:
			profiling = !profiling
			if profiling {
				e.EnableProfiler()
			} else {
				e.DisableProfiler()
			}
		case window.KeySpace:
			mu.Lock()
			d.paused = !d.paused
			mu.Unlock()
		case window.KeyR:
			path := ctx.GlobalString("config")
			if path == "" {
				return
			}
			loaded, err := config.Load(path)
			if err != nil {
				logger.Warningf("reload %s: %v", path, err)
				return
			}
			e.ApplyConfig(loaded)
		}
	})

	logger.Infof("rendering %d crates, %d point lights (%d shadowed)", grid*grid, lights, min(shadows, lights))
	return e.Run(context.Background())
}
