package fx

import (
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// Tonemap maps an HDR image to RGBA8Unorm with a Reinhard curve, a vignette and gamma.
type Tonemap struct {
	device   *Device
	vignette float32
	keyValue float32
}

// NewTonemap creates a tonemapper.
func NewTonemap(device *Device, cfg config.Tonemap) *Tonemap {
	t := &Tonemap{device: device}
	t.SetConfig(cfg)
	return t
}

// SetConfig replaces the vignette strength and key value.
func (t *Tonemap) SetConfig(cfg config.Tonemap) {
	t.vignette = cfg.Vignette
	t.keyValue = cfg.KeyValue
}

// Process dispatches one thread per source pixel.
//
// Parameters:
//   - enc: the frame encoder
//   - source: the HDR input
//   - destination: an RGBA8Unorm storage texture of the same size
//   - averageLuminance: the scene average luminance
//
// Returns:
//   - error: error if the dispatch cannot be recorded
func (t *Tonemap) Process(enc renderer.Encoder, source, destination renderer.Texture, averageLuminance float32) error {
	comp, err := t.device.Computation(KindTonemap)
	if err != nil {
		return err
	}
	params, err := t.device.params(comp.Shader(), "params", func(u *shader.UniformBlock) error {
		if err := u.SetFloat("vignette", t.vignette); err != nil {
			return err
		}
		if err := u.SetFloat("key_value", t.keyValue); err != nil {
			return err
		}
		return u.SetFloat("average_luminance", averageLuminance)
	})
	if err != nil {
		return err
	}
	if err := comp.SetUniform("params", params); err != nil {
		return err
	}
	if err := comp.SetInput("source", source); err != nil {
		return err
	}
	if err := comp.SetOutput("destination", destination); err != nil {
		return err
	}
	enc.PushDebugGroup("Tone mapping")
	defer enc.PopDebugGroup()
	return comp.Dispatch(enc, source.Width(), source.Height(), 1)
}
