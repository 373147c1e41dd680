package light

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithColor is an option builder that sets the RGB color of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightImpl
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.color = [3]float32{r, g, b}
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option to a lightImpl
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.intensity = intensity
	}
}

// WithAttenuation is an option builder that sets the constant, linear and quadratic
// falloff coefficients of a point light.
//
// Parameters:
//   - kc: constant coefficient
//   - kl: linear coefficient
//   - kq: quadratic coefficient
//
// Returns:
//   - LightBuilderOption: a function that applies the attenuation option to a lightImpl
func WithAttenuation(kc, kl, kq float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.attenuation = [3]float32{kc, kl, kq}
	}
}

// WithCutoff is an option builder that sets the attenuated intensity below which the
// light stops contributing.
//
// Parameters:
//   - cutoff: the cutoff value
//
// Returns:
//   - LightBuilderOption: a function that applies the cutoff option to a lightImpl
func WithCutoff(cutoff float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.cutoff = cutoff
	}
}

// WithEnabled is an option builder that sets whether the light is active for rendering.
//
// Parameters:
//   - enabled: true to enable the light
//
// Returns:
//   - LightBuilderOption: a function that applies the enabled option to a lightImpl
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.enabled = enabled
	}
}

// WithCastsShadows is an option builder that sets whether the light requests a shadow map.
//
// Parameters:
//   - castsShadows: true to enable shadow casting
//
// Returns:
//   - LightBuilderOption: a function that applies the shadow casting option to a lightImpl
func WithCastsShadows(castsShadows bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.castsShadows = castsShadows
	}
}

// WithShadowResolution is an option builder that sets the atlas chunk size requested
// for the light's shadow map.
//
// Parameters:
//   - size: chunk edge length in texels
//
// Returns:
//   - LightBuilderOption: a function that applies the shadow resolution option to a lightImpl
func WithShadowResolution(size uint32) LightBuilderOption {
	return func(l *lightImpl) {
		l.shadowResolution = size
	}
}
