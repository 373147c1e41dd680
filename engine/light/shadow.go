package light

// DefaultPointShadowResolution is the default atlas chunk edge in texels requested by
// shadow-casting point lights. One chunk holds the octahedral map of every direction.
const DefaultPointShadowResolution uint32 = 512

// DefaultDirectionalShadowResolution is the default atlas chunk edge in texels requested
// by shadow-casting directional lights.
const DefaultDirectionalShadowResolution uint32 = 1024

// DefaultCutoff is the attenuated intensity below which a point light is ignored.
const DefaultCutoff float32 = 0.0001

// DefaultShadowBias is the depth offset subtracted before the variance comparison to
// reduce acne on lit surfaces.
const DefaultShadowBias float32 = 0.001

// MinVariance clamps the variance computed from the two moments to avoid division by
// zero on perfectly flat receivers.
const MinVariance float32 = 0.00002
