package fx

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// MaxBlurRadius is the largest kernel radius the blur shader holds weights for.
const MaxBlurRadius = 15

// GaussianKernel returns the normalized one-sided weights of a gaussian kernel: w[0] is the
// center tap and w[i] the weight of both taps at distance i, so w[0] + 2*sum(w[1:]) == 1.
//
// Parameters:
//   - sigma: the standard deviation in texels; a non-positive sigma yields the identity kernel
//   - radius: the number of taps on each side of the center
//
// Returns:
//   - []float32: radius+1 weights
func GaussianKernel(sigma float32, radius int) []float32 {
	if sigma <= 0 || radius <= 0 {
		return []float32{1}
	}
	w := make([]float32, radius+1)
	sum := float32(0)
	for i := range w {
		x := float32(i)
		w[i] = math32.Exp(-x * x / (2 * sigma * sigma))
		if i == 0 {
			sum += w[i]
		} else {
			sum += 2 * w[i]
		}
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// GaussianBlur is a separable gaussian blur run as two compute dispatches: horizontal into a
// cached scratch texture, then vertical into a region of the destination.
type GaussianBlur struct {
	device *Device
	sigma  float32
	kernel []float32
}

// NewGaussianBlur creates a blur.
//
// Parameters:
//   - device: the effect context
//   - sigma: the standard deviation in texels
//   - radius: taps on each side, at most MaxBlurRadius
//
// Returns:
//   - *GaussianBlur: the blur
//   - error: error if the radius is out of range
func NewGaussianBlur(device *Device, sigma float32, radius int) (*GaussianBlur, error) {
	if radius < 0 || radius > MaxBlurRadius {
		return nil, fmt.Errorf("fx: blur radius %d outside [0, %d]", radius, MaxBlurRadius)
	}
	return &GaussianBlur{device: device, sigma: sigma, kernel: GaussianKernel(sigma, radius)}, nil
}

// Kernel returns the one-sided weights of the blur.
func (b *GaussianBlur) Kernel() []float32 {
	return b.kernel
}

// Blur blurs the whole source and writes the result into the region of destination starting
// at offset on the given layer. The destination must be a storage texture at least as large
// as offset + source size. Source and destination may be the same texture.
//
// Parameters:
//   - enc: the frame encoder
//   - source: the sampled input
//   - destination: the RGBA16Float storage output
//   - layer: the destination array layer
//   - offset: the top-left texel of the destination region
//
// Returns:
//   - error: error if the scratch texture cannot be acquired or a dispatch fails
func (b *GaussianBlur) Blur(enc renderer.Encoder, source, destination renderer.Texture, layer uint32, offset common.Point2D) error {
	w, h := source.Width(), source.Height()
	if offset.X+w > destination.Width() || offset.Y+h > destination.Height() {
		return fmt.Errorf("fx: blur region %dx%d at (%d, %d) exceeds %s %dx%d",
			w, h, offset.X, offset.Y, destination.Label(), destination.Width(), destination.Height())
	}
	comp, err := b.device.Computation(KindBlur)
	if err != nil {
		return err
	}
	scratch, err := b.device.cache.Acquire(renderer.TextureDesc{
		Label:  "Blur Scratch",
		Width:  w,
		Height: h,
		Format: renderer.FormatRGBA16Float,
		Usage:  renderer.TextureUsageSampled | renderer.TextureUsageStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to acquire blur scratch: %w", err)
	}
	defer b.device.cache.Release(scratch)

	if err := b.pass(enc, comp, source, scratch, [2]float32{1, 0}, 0, common.Point2D{}); err != nil {
		return err
	}
	return b.pass(enc, comp, scratch, destination, [2]float32{0, 1}, layer, offset)
}

func (b *GaussianBlur) pass(enc renderer.Encoder, comp *renderer.Computation, src, dst renderer.Texture, direction [2]float32, layer uint32, offset common.Point2D) error {
	var weights [4 * 4]float32
	copy(weights[:], b.kernel)
	params, err := b.device.params(comp.Shader(), "params", func(u *shader.UniformBlock) error {
		if err := u.SetVector("weights", weights[:]); err != nil {
			return err
		}
		if err := u.SetVector("direction", direction[:]); err != nil {
			return err
		}
		if err := u.SetUint("offset_x", offset.X); err != nil {
			return err
		}
		if err := u.SetUint("offset_y", offset.Y); err != nil {
			return err
		}
		if err := u.SetUint("layer", layer); err != nil {
			return err
		}
		return u.SetUint("radius", uint32(len(b.kernel)-1))
	})
	if err != nil {
		return err
	}
	if err := comp.SetUniform("params", params); err != nil {
		return err
	}
	if err := comp.SetInput("source", src); err != nil {
		return err
	}
	if err := comp.SetOutput("destination", dst); err != nil {
		return err
	}
	return comp.Dispatch(enc, src.Width(), src.Height(), 1)
}
