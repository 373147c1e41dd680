package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/window"
)

// RendererBackendType identifies the GPU backend implementation.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// backendConfig is the pre-creation configuration collected from builder options.
type backendConfig struct {
	presentMode          PresentMode
	forceFallbackAdapter bool
	bindGroupCacheSize   int
}

// NewBackend creates a Backend presenting into the surface of a window.
//
// Parameters:
//   - backendType: the GPU API to use
//   - win: the window providing the surface descriptor and initial size
//   - options: variadic list of BackendBuilderOption functions
//
// Returns:
//   - Backend: the backend
//   - error: error if no adapter or device is available
func NewBackend(backendType RendererBackendType, win window.Window, options ...BackendBuilderOption) (Backend, error) {
	cfg := &backendConfig{
		presentMode:        PresentModeVSync,
		bindGroupCacheSize: 4096,
	}
	for _, opt := range options {
		opt(cfg)
	}

	switch backendType {
	case BackendTypeWGPU:
		b, err := newWGPUBackend(win.SurfaceDescriptor(), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create wgpu backend: %w", err)
		}
		b.Resize(win.Width(), win.Height())
		return b, nil
	default:
		return nil, fmt.Errorf("unknown backend type %d", backendType)
	}
}
