package light

import (
	"github.com/chewxy/math32"
)

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun. Affects all fragments
	// uniformly with no distance attenuation.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Attenuates with distance following constant, linear and quadratic coefficients.
	LightTypePoint
)

// String returns the lowercase name of the light type.
func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	default:
		return "unknown"
	}
}

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	lightType        LightType
	color            [3]float32
	intensity        float32
	attenuation      [3]float32
	cutoff           float32
	enabled          bool
	castsShadows     bool
	shadowResolution uint32
}

// Light is a light aspect attached to a scene node.
//
// The light itself carries only photometric and shadowing parameters. Its world-space
// position (point lights) and direction (directional lights) come from the transform of
// the node hosting it, so one node may host any number of lights that move with it.
//
// Each frame the light accumulation pass converts visible lights into GPUPointLight or
// GPUDirectionalLight entries and asks the shadow atlas for a shadow map when
// CastsShadows is set.
type Light interface {
	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type (directional or point)
	Type() LightType

	// Color returns the RGB color of the light.
	//
	// Returns:
	//   - [3]float32: color as (r, g, b)
	Color() [3]float32

	// Intensity returns the scalar intensity multiplier for the light.
	//
	// Returns:
	//   - float32: the intensity value
	Intensity() float32

	// Attenuation returns the constant, linear and quadratic falloff coefficients.
	// Meaningless for directional lights.
	//
	// Returns:
	//   - [3]float32: (kc, kl, kq)
	Attenuation() [3]float32

	// Cutoff returns the attenuated intensity below which the light no longer contributes.
	//
	// Returns:
	//   - float32: the cutoff value
	Cutoff() float32

	// Range returns the influence radius of a point light derived from its attenuation
	// and cutoff. It is +Inf when the falloff never reaches the cutoff and 0 when the light
	// is below the cutoff everywhere.
	//
	// Returns:
	//   - float32: the influence radius in world units
	Range() float32

	// Enabled returns whether this light is active for rendering.
	//
	// Returns:
	//   - bool: true if the light is enabled
	Enabled() bool

	// CastsShadows returns whether this light requests a shadow map each frame.
	//
	// Returns:
	//   - bool: true if the light casts shadows
	CastsShadows() bool

	// ShadowResolution returns the edge length in texels of the atlas chunk requested for
	// this light's shadow map.
	//
	// Returns:
	//   - uint32: the requested chunk size
	ShadowResolution() uint32

	// SetColor sets the RGB color of the light.
	//
	// Parameters:
	//   - r, g, b: color components
	SetColor(r, g, b float32)

	// SetIntensity sets the scalar intensity multiplier.
	//
	// Parameters:
	//   - intensity: the intensity value
	SetIntensity(intensity float32)

	// SetAttenuation sets the falloff coefficients of a point light.
	//
	// Parameters:
	//   - kc: constant coefficient
	//   - kl: linear coefficient
	//   - kq: quadratic coefficient
	SetAttenuation(kc, kl, kq float32)

	// SetCutoff sets the attenuated intensity below which the light is ignored.
	//
	// Parameters:
	//   - cutoff: the cutoff value
	SetCutoff(cutoff float32)

	// SetEnabled enables or disables the light for rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetCastsShadows sets whether the light requests a shadow map.
	//
	// Parameters:
	//   - castsShadows: true to enable shadow casting
	SetCastsShadows(castsShadows bool)

	// SetShadowResolution sets the requested shadow chunk size in texels.
	//
	// Parameters:
	//   - size: the chunk edge length
	SetShadowResolution(size uint32)
}

var _ Light = &lightImpl{}

// NewLight creates a new Light of the specified type with sensible defaults and
// any provided options applied.
//
// Point lights default to (1, 0, 1) attenuation with a cutoff of 0.0001, which gives a
// unit intensity light an influence radius of roughly 100 units.
//
// Parameters:
//   - lightType: the kind of light to create
//   - opts: variadic list of LightBuilderOption functions to configure the light
//
// Returns:
//   - Light: a new Light instance
func NewLight(lightType LightType, opts ...LightBuilderOption) Light {
	l := &lightImpl{
		lightType:        lightType,
		color:            [3]float32{1, 1, 1},
		intensity:        1.0,
		attenuation:      [3]float32{1, 0, 1},
		cutoff:           DefaultCutoff,
		enabled:          true,
		castsShadows:     false,
		shadowResolution: DefaultPointShadowResolution,
	}
	if lightType == LightTypeDirectional {
		l.shadowResolution = DefaultDirectionalShadowResolution
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *lightImpl) Type() LightType {
	return l.lightType
}

func (l *lightImpl) Color() [3]float32 {
	return l.color
}

func (l *lightImpl) Intensity() float32 {
	return l.intensity
}

func (l *lightImpl) Attenuation() [3]float32 {
	return l.attenuation
}

func (l *lightImpl) Cutoff() float32 {
	return l.cutoff
}

func (l *lightImpl) Range() float32 {
	peak := max(l.color[0], l.color[1], l.color[2]) * l.intensity
	r, ok := InfluenceRadius(peak, l.attenuation, l.cutoff)
	if !ok {
		return math32.Inf(1)
	}
	return r
}

func (l *lightImpl) Enabled() bool {
	return l.enabled
}

func (l *lightImpl) CastsShadows() bool {
	return l.castsShadows
}

func (l *lightImpl) ShadowResolution() uint32 {
	return l.shadowResolution
}

func (l *lightImpl) SetColor(r, g, b float32) {
	l.color = [3]float32{r, g, b}
}

func (l *lightImpl) SetIntensity(intensity float32) {
	l.intensity = intensity
}

func (l *lightImpl) SetAttenuation(kc, kl, kq float32) {
	l.attenuation = [3]float32{kc, kl, kq}
}

func (l *lightImpl) SetCutoff(cutoff float32) {
	l.cutoff = cutoff
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.enabled = enabled
}

func (l *lightImpl) SetCastsShadows(castsShadows bool) {
	l.castsShadows = castsShadows
}

func (l *lightImpl) SetShadowResolution(size uint32) {
	l.shadowResolution = size
}

// InfluenceRadius solves kc + kl*d + kq*d^2 = peak/cutoff for the distance d at which an
// attenuated light of the given peak intensity falls to the cutoff.
//
// Parameters:
//   - peak: the largest color channel multiplied by the intensity
//   - attenuation: the (kc, kl, kq) coefficients
//   - cutoff: the threshold intensity
//
// Returns:
//   - float32: the radius, or 0 when unbounded
//   - bool: false when the falloff never reaches the cutoff
func InfluenceRadius(peak float32, attenuation [3]float32, cutoff float32) (float32, bool) {
	kc, kl, kq := attenuation[0], attenuation[1], attenuation[2]
	if peak <= 0 {
		return 0, true
	}
	if cutoff <= 0 {
		return 0, false
	}
	c := kc - peak/cutoff
	if c >= 0 {
		// Already below the cutoff at the light position.
		return 0, true
	}
	switch {
	case kq > 0:
		disc := kl*kl - 4*kq*c
		return (-kl + math32.Sqrt(disc)) / (2 * kq), true
	case kl > 0:
		return -c / kl, true
	default:
		return 0, false
	}
}

// ToGPUPoint converts a point light at a world-space position into its GPU representation.
//
// Parameters:
//   - l: the light
//   - position: world-space position of the hosting node
//   - radius: influence radius written into the struct, +Inf clamped to the largest float
//
// Returns:
//   - GPUPointLight: the packed light
func ToGPUPoint(l Light, position [3]float32, radius float32) GPUPointLight {
	c := l.Color()
	i := l.Intensity()
	a := l.Attenuation()
	if math32.IsInf(radius, 1) {
		radius = math32.MaxFloat32
	}
	return GPUPointLight{
		Position: position,
		Radius:   radius,
		Color:    [3]float32{c[0] * i, c[1] * i, c[2] * i},
		Cutoff:   l.Cutoff(),
		Kc:       a[0],
		Kl:       a[1],
		Kq:       a[2],
	}
}

// ToGPUDirectional converts a directional light travelling along direction into its GPU representation.
//
// Parameters:
//   - l: the light
//   - direction: normalized world-space direction of travel
//
// Returns:
//   - GPUDirectionalLight: the packed light
func ToGPUDirectional(l Light, direction [3]float32) GPUDirectionalLight {
	c := l.Color()
	i := l.Intensity()
	return GPUDirectionalLight{
		Direction: direction,
		Color:     [3]float32{c[0] * i, c[1] * i, c[2] * i},
	}
}
