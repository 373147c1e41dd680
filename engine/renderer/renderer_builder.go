package renderer

// BackendBuilderOption is a functional option used to configure a Backend during creation.
type BackendBuilderOption func(*backendConfig)

// WithPresentMode sets the initial presentation mode of the surface.
//
// Parameters:
//   - mode: vsync or uncapped
//
// Returns:
//   - BackendBuilderOption: a function that applies the present mode
func WithPresentMode(mode PresentMode) BackendBuilderOption {
	return func(c *backendConfig) {
		c.presentMode = mode
	}
}

// WithForceSoftwareRenderer requests the fallback (software) adapter.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - BackendBuilderOption: a function that applies the adapter preference
func WithForceSoftwareRenderer(force bool) BackendBuilderOption {
	return func(c *backendConfig) {
		c.forceFallbackAdapter = force
	}
}

// WithBindGroupCacheSize bounds the number of bind groups kept alive between frames.
// When the cache grows past the bound it is emptied.
func WithBindGroupCacheSize(size int) BackendBuilderOption {
	return func(c *backendConfig) {
		c.bindGroupCacheSize = size
	}
}
