package shadow

// AtlasBuilderOption is a functional option used to configure an Atlas during creation.
type AtlasBuilderOption func(*Atlas)

// WithParallelFor sets the function used to prepare caster constants in parallel. It must
// call fn once for every index in [0, n) and return after all calls completed.
//
// Parameters:
//   - parallel: the parallel loop
//
// Returns:
//   - AtlasBuilderOption: a function that applies the loop to the atlas
func WithParallelFor(parallel func(n int, fn func(i int))) AtlasBuilderOption {
	return func(a *Atlas) {
		if parallel != nil {
			a.parallelFor = parallel
		}
	}
}

// WithDomainRadius overrides the half depth of directional light volumes.
func WithDomainRadius(radius float32) AtlasBuilderOption {
	return func(a *Atlas) {
		a.cfg.DomainRadius = radius
	}
}
