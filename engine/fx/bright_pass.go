package fx

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// BrightPass extracts the part of the exposure-adjusted color that exceeds a threshold.
// The destination is usually smaller than the source, which downscales for free.
type BrightPass struct {
	device    *Device
	Threshold float32
	KeyValue  float32
}

// NewBrightPass creates a bright-pass filter.
//
// Parameters:
//   - device: the effect context
//   - threshold: the exposed value below which color is discarded
//   - keyValue: the target middle grey of the exposure
//
// Returns:
//   - *BrightPass: the filter
func NewBrightPass(device *Device, threshold, keyValue float32) *BrightPass {
	return &BrightPass{device: device, Threshold: threshold, KeyValue: keyValue}
}

// Filter writes the bright part of source into destination.
//
// Parameters:
//   - enc: the frame encoder
//   - source: the HDR input
//   - destination: an RGBA16Float render target
//   - averageLuminance: the scene average luminance driving the exposure
//
// Returns:
//   - error: error if the pass cannot be recorded
func (b *BrightPass) Filter(enc renderer.Encoder, source, destination renderer.Texture, averageLuminance float32) error {
	return b.device.fullscreen(enc, KindBrightPass, destination, func(p *renderer.Program, t *renderer.BindingTable) error {
		err := b.device.fragmentParams(p, t, func(u *shader.UniformBlock) error {
			if err := u.SetFloat("threshold", b.Threshold); err != nil {
				return err
			}
			if err := u.SetFloat("key_value", b.KeyValue); err != nil {
				return err
			}
			return u.SetFloat("average_luminance", averageLuminance)
		})
		if err != nil {
			return err
		}
		if err := t.SetInput("source", source); err != nil {
			return err
		}
		return t.SetInput("source_sampler", b.device.sampler)
	})
}
