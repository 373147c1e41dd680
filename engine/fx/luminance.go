package fx

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// HistogramBins is the number of logarithmic luminance bins.
const HistogramBins = 64

const histogramBytes = HistogramBins * 4

// Luminance estimates the average luminance of an HDR image from a log-luminance histogram
// built on the GPU and scanned on the CPU.
type Luminance struct {
	device    *Device
	histogram renderer.Buffer
	readback  renderer.Buffer

	logMin  float32
	logMax  float32
	lowPct  float32
	highPct float32
}

// NewLuminance creates the histogram buffers.
//
// Parameters:
//   - device: the effect context
//   - cfg: the luminance range and percentiles
//
// Returns:
//   - *Luminance: the estimator
//   - error: error if a buffer cannot be created
func NewLuminance(device *Device, cfg config.Exposure) (*Luminance, error) {
	histogram, err := device.backend.CreateBuffer(renderer.BufferDesc{
		Label: "Luminance Histogram",
		Size:  histogramBytes,
		Usage: renderer.BufferUsageStorage | renderer.BufferUsageCopySrc | renderer.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create luminance histogram: %w", err)
	}
	readback, err := device.backend.CreateBuffer(renderer.BufferDesc{
		Label: "Luminance Readback",
		Size:  histogramBytes,
		Usage: renderer.BufferUsageMapRead | renderer.BufferUsageCopyDst,
	})
	if err != nil {
		histogram.Release()
		return nil, fmt.Errorf("failed to create luminance readback: %w", err)
	}
	l := &Luminance{device: device, histogram: histogram, readback: readback}
	l.SetConfig(cfg)
	return l, nil
}

// SetConfig replaces the luminance range and percentiles.
func (l *Luminance) SetConfig(cfg config.Exposure) {
	l.logMin = math32.Log2(cfg.MinLuminance)
	l.logMax = math32.Log2(cfg.MaxLuminance)
	l.lowPct = cfg.LowPercent
	l.highPct = cfg.HighPercent
}

// ComputeAverageLuminance bins the luminance of source, reads the histogram back and scans it.
// The encoder is flushed so the histogram is complete before it is read.
//
// Parameters:
//   - enc: the frame encoder
//   - source: the HDR image
//
// Returns:
//   - float32: the average of the low and high percentile luminances
//   - error: error if the dispatch, flush or readback fails
func (l *Luminance) ComputeAverageLuminance(enc renderer.Encoder, source renderer.Texture) (float32, error) {
	comp, err := l.device.Computation(KindLuminance)
	if err != nil {
		return 0, err
	}
	params, err := l.device.params(comp.Shader(), "params", func(u *shader.UniformBlock) error {
		if err := u.SetFloat("log_min", l.logMin); err != nil {
			return err
		}
		return u.SetFloat("log_max", l.logMax)
	})
	if err != nil {
		return 0, err
	}
	if err := comp.SetUniform("params", params); err != nil {
		return 0, err
	}
	if err := comp.SetInput("source", source); err != nil {
		return 0, err
	}
	if err := comp.SetOutput("histogram", l.histogram); err != nil {
		return 0, err
	}

	enc.PushDebugGroup("Luminance")
	enc.ClearBuffer(l.histogram)
	if err := comp.Dispatch(enc, source.Width(), source.Height(), 1); err != nil {
		enc.PopDebugGroup()
		return 0, err
	}
	enc.CopyBuffer(l.histogram, l.readback, histogramBytes)
	enc.PopDebugGroup()
	if err := enc.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush luminance histogram: %w", err)
	}

	data, err := l.device.backend.ReadBuffer(l.readback)
	if err != nil {
		return 0, fmt.Errorf("failed to read luminance histogram: %w", err)
	}
	if len(data) < histogramBytes {
		return 0, fmt.Errorf("luminance histogram readback is %d bytes, want %d", len(data), histogramBytes)
	}
	bins := make([]uint32, HistogramBins)
	for i := range bins {
		bins[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	samples := uint64(source.Width()) * uint64(source.Height())
	return ScanHistogram(bins, samples, l.lowPct, l.highPct, l.logMin, l.logMax), nil
}

// ScanHistogram finds the bins where the low and high percentile sample counts run out,
// maps both back to linear luminance and averages them.
//
// Bins are consumed from the darkest until the requested number of samples is exhausted;
// the last consumed bin is the percentile bin. Bin i maps to exp2(i/n*(logMax-logMin)+logMin).
//
// Parameters:
//   - bins: the histogram
//   - samples: the number of pixels binned
//   - lowPct, highPct: the percentiles in [0, 1]
//   - logMin, logMax: the log2 luminance range of the histogram
//
// Returns:
//   - float32: the average luminance estimate
func ScanHistogram(bins []uint32, samples uint64, lowPct, highPct, logMin, logMax float32) float32 {
	if len(bins) == 0 {
		return math32.Exp2(logMin)
	}
	scan := func(pct float32) int {
		remaining := int64(float64(samples) * float64(pct))
		index := 0
		for remaining > 0 && index < len(bins) {
			remaining -= int64(bins[index])
			index++
		}
		return max(index-1, 0)
	}
	n := float32(len(bins))
	toLinear := func(index int) float32 {
		return math32.Exp2(float32(index)/n*(logMax-logMin) + logMin)
	}
	low := toLinear(scan(lowPct))
	high := toLinear(scan(highPct))
	return (low + high) * 0.5
}

// Release destroys the histogram buffers.
func (l *Luminance) Release() {
	l.histogram.Release()
	l.readback.Release()
}
