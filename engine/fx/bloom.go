package fx

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// MaxBloomLevels caps the number of downscaled bloom surfaces.
const MaxBloomLevels = 6

// BloomLevels returns the number of downscaled levels generated for a W×H source:
// min(MaxBloomLevels, floor(log2(min(W, H)))). Level i, counted from 1, is (W>>i)×(H>>i),
// so no level reaches zero in either dimension.
func BloomLevels(width, height uint32) int {
	n := 0
	for n < MaxBloomLevels && width>>(n+1) > 0 && height>>(n+1) > 0 {
		n++
	}
	return n
}

// Bloom adds a soft glow around the bright parts of an image: bright-pass into the half
// resolution level, downscale recursively, blur every level, upscale-add from the smallest
// level to the largest, then composite onto the source.
type Bloom struct {
	device *Device
	bright *BrightPass
	scale  *Scale
	blur   *GaussianBlur

	strength float32

	// brightSurfaces are render targets, blurSurfaces are storage textures; both borrowed
	// from the cache and kept while the source size is unchanged.
	brightSurfaces []renderer.Texture
	blurSurfaces   []renderer.Texture
	width, height  uint32
}

// NewBloom creates a bloom effect.
//
// Parameters:
//   - device: the effect context
//   - cfg: threshold, strength and blur parameters
//   - keyValue: the exposure key value shared with the tonemapper
//
// Returns:
//   - *Bloom: the effect
//   - error: error if the blur parameters are invalid
func NewBloom(device *Device, cfg config.Bloom, keyValue float32) (*Bloom, error) {
	blur, err := NewGaussianBlur(device, cfg.Sigma, cfg.Radius)
	if err != nil {
		return nil, err
	}
	return &Bloom{
		device:   device,
		bright:   NewBrightPass(device, cfg.Threshold, keyValue),
		scale:    NewScale(device),
		blur:     blur,
		strength: cfg.Strength,
	}, nil
}

// SetConfig replaces the threshold, strength and blur parameters.
//
// Parameters:
//   - cfg: the bloom section
//   - keyValue: the exposure key value
//
// Returns:
//   - error: error if the blur radius is out of range; the previous blur is kept
func (b *Bloom) SetConfig(cfg config.Bloom, keyValue float32) error {
	blur, err := NewGaussianBlur(b.device, cfg.Sigma, cfg.Radius)
	if err != nil {
		return err
	}
	b.blur = blur
	b.bright.Threshold = cfg.Threshold
	b.bright.KeyValue = keyValue
	b.strength = cfg.Strength
	return nil
}

// Levels returns the number of levels allocated for the last processed source.
func (b *Bloom) Levels() int {
	return len(b.brightSurfaces)
}

// Process composites the bloom of source onto it and writes the result into destination.
//
// Parameters:
//   - enc: the frame encoder
//   - source: the HDR input
//   - destination: an RGBA16Float render target the size of source
//   - averageLuminance: the scene average luminance driving the bright-pass exposure
//
// Returns:
//   - error: error if a surface cannot be acquired or a pass cannot be recorded
func (b *Bloom) Process(enc renderer.Encoder, source, destination renderer.Texture, averageLuminance float32) error {
	enc.PushDebugGroup("Bloom")
	defer enc.PopDebugGroup()

	if err := b.ensureSurfaces(source.Width(), source.Height()); err != nil {
		return err
	}
	levels := len(b.brightSurfaces)
	if levels == 0 {
		return b.scale.Copy(enc, source, destination)
	}

	if err := b.bright.Filter(enc, source, b.brightSurfaces[0], averageLuminance); err != nil {
		return err
	}

	enc.PushDebugGroup("Downscaling")
	for i := 1; i < levels; i++ {
		if err := b.scale.Copy(enc, b.brightSurfaces[i-1], b.brightSurfaces[i]); err != nil {
			enc.PopDebugGroup()
			return err
		}
	}
	enc.PopDebugGroup()

	// Smaller levels get extra passes to hide their blockiness once upscaled.
	enc.PushDebugGroup("Blur")
	for i := range levels {
		if err := b.blur.Blur(enc, b.brightSurfaces[i], b.blurSurfaces[i], 0, common.Point2D{}); err != nil {
			enc.PopDebugGroup()
			return err
		}
		for range i {
			if err := b.blur.Blur(enc, b.blurSurfaces[i], b.blurSurfaces[i], 0, common.Point2D{}); err != nil {
				enc.PopDebugGroup()
				return err
			}
		}
	}
	enc.PopDebugGroup()

	// The bright surfaces are free again and receive the upscaled sums.
	enc.PushDebugGroup("Upscaling")
	glow := b.blurSurfaces[levels-1]
	for i := levels - 1; i > 0; i-- {
		low, high, dst := glow, b.blurSurfaces[i-1], b.brightSurfaces[i-1]
		err := b.device.fullscreen(enc, KindBloomUpscale, dst, func(_ *renderer.Program, t *renderer.BindingTable) error {
			if err := t.SetInput("downscaled", low); err != nil {
				return err
			}
			if err := t.SetInput("upscaled", high); err != nil {
				return err
			}
			return t.SetInput("source_sampler", b.device.sampler)
		})
		if err != nil {
			enc.PopDebugGroup()
			return err
		}
		glow = dst
	}
	enc.PopDebugGroup()

	enc.PushDebugGroup("Compositing")
	defer enc.PopDebugGroup()
	strength := b.strength / float32(levels)
	return b.device.fullscreen(enc, KindBloomComposite, destination, func(p *renderer.Program, t *renderer.BindingTable) error {
		err := b.device.fragmentParams(p, t, func(u *shader.UniformBlock) error {
			return u.SetFloat("strength", strength)
		})
		if err != nil {
			return err
		}
		if err := t.SetInput("base", source); err != nil {
			return err
		}
		if err := t.SetInput("bloom", glow); err != nil {
			return err
		}
		return t.SetInput("source_sampler", b.device.sampler)
	})
}

// ensureSurfaces reacquires the level surfaces when the source size changed.
func (b *Bloom) ensureSurfaces(width, height uint32) error {
	if b.width == width && b.height == height && len(b.brightSurfaces) == BloomLevels(width, height) {
		return nil
	}
	b.Release()

	levels := BloomLevels(width, height)
	for i := 1; i <= levels; i++ {
		w, h := width>>i, height>>i
		bright, err := b.device.cache.Acquire(renderer.TextureDesc{
			Label:  fmt.Sprintf("Bloom Bright %d", i),
			Width:  w,
			Height: h,
			Format: renderer.FormatRGBA16Float,
			Usage:  renderer.TextureUsageSampled | renderer.TextureUsageRenderTarget,
		})
		if err != nil {
			b.Release()
			return fmt.Errorf("failed to acquire bloom level %d: %w", i, err)
		}
		b.brightSurfaces = append(b.brightSurfaces, bright)

		blurred, err := b.device.cache.Acquire(renderer.TextureDesc{
			Label:  fmt.Sprintf("Bloom Blur %d", i),
			Width:  w,
			Height: h,
			Format: renderer.FormatRGBA16Float,
			Usage:  renderer.TextureUsageSampled | renderer.TextureUsageStorage,
		})
		if err != nil {
			b.Release()
			return fmt.Errorf("failed to acquire bloom level %d: %w", i, err)
		}
		b.blurSurfaces = append(b.blurSurfaces, blurred)
	}
	b.width, b.height = width, height
	logger.Debugf("bloom surfaces for %dx%d: %d levels", width, height, levels)
	return nil
}

// Release returns the level surfaces to the cache.
func (b *Bloom) Release() {
	for _, t := range b.brightSurfaces {
		b.device.cache.Release(t)
	}
	for _, t := range b.blurSurfaces {
		b.device.cache.Release(t)
	}
	b.brightSurfaces = nil
	b.blurSurfaces = nil
	b.width, b.height = 0, 0
}
