package fx

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
)

// Scale resamples a texture into a render target of any size with bilinear filtering.
type Scale struct {
	device *Device
}

// NewScale creates a scale effect.
func NewScale(device *Device) *Scale {
	return &Scale{device: device}
}

// Copy resamples source into destination.
//
// Parameters:
//   - enc: the frame encoder
//   - source: the sampled input
//   - destination: an RGBA16Float render target
//
// Returns:
//   - error: error if the program cannot be built or the pass cannot be recorded
func (s *Scale) Copy(enc renderer.Encoder, source, destination renderer.Texture) error {
	return s.device.fullscreen(enc, KindScale, destination, func(_ *renderer.Program, t *renderer.BindingTable) error {
		if err := t.SetInput("source", source); err != nil {
			return err
		}
		return t.SetInput("source_sampler", s.device.sampler)
	})
}
