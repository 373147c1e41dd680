package deferred

import "github.com/Carmen-Shannon/oxy-deferred/config"

// RendererBuilderOption is a functional option used to configure a Renderer during creation.
type RendererBuilderOption func(*Renderer)

// WithConfig sets the tunables of every pass.
//
// Parameters:
//   - cfg: the configuration, validated by NewRenderer
//
// Returns:
//   - RendererBuilderOption: a function that applies the configuration
func WithConfig(cfg config.Config) RendererBuilderOption {
	return func(r *Renderer) {
		r.cfg = cfg
	}
}

// WithWorkers overrides the worker count of the configuration. Zero prepares per-object
// constants on the frame goroutine.
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker count
func WithWorkers(n int) RendererBuilderOption {
	return func(r *Renderer) {
		r.workers = max(n, 0)
	}
}

// WithArenaCapacity sets the size in bytes of the per-frame uniform arena.
func WithArenaCapacity(capacity uint64) RendererBuilderOption {
	return func(r *Renderer) {
		if capacity > 0 {
			r.arenaCapacity = capacity
		}
	}
}

// WithStateObserver registers a function called on every state transition of Draw.
func WithStateObserver(fn func(State)) RendererBuilderOption {
	return func(r *Renderer) {
		r.onState = fn
	}
}
