package deferred

import "github.com/Carmen-Shannon/oxy-deferred/common"

// GBufferBuilderOption is a functional option used to configure a GBuffer during creation.
type GBufferBuilderOption func(*GBuffer)

// WithSkyColor sets the clear color of the albedo target. Pixels no geometry covers are lit
// with this color.
//
// Parameters:
//   - c: the linear sky color
//
// Returns:
//   - GBufferBuilderOption: a function that applies the color to the pass
func WithSkyColor(c common.Color) GBufferBuilderOption {
	return func(g *GBuffer) {
		g.sky = c
	}
}

// WithParallelFor sets the function used to prepare object constants in parallel. It must
// call fn once for every index in [0, n) and return after all calls completed.
//
// Parameters:
//   - parallel: the parallel loop
//
// Returns:
//   - GBufferBuilderOption: a function that applies the loop to the pass
func WithParallelFor(parallel func(n int, fn func(i int))) GBufferBuilderOption {
	return func(g *GBuffer) {
		if parallel != nil {
			g.parallelFor = parallel
		}
	}
}
