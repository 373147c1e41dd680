package fx_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/fx"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
)

func newDevice(t *testing.T) (*renderertest.Recorder, *fx.Device) {
	t.Helper()
	rec := renderertest.NewRecorder()
	arena, err := renderer.NewUniformArena(rec, 1<<20)
	require.NoError(t, err)
	dev, err := fx.NewDevice(rec, arena, resource.NewCache(rec))
	require.NoError(t, err)
	return rec, dev
}

func hdrTexture(t *testing.T, rec *renderertest.Recorder, label string, w, h uint32) renderer.Texture {
	t.Helper()
	tex, err := rec.CreateTexture(renderer.TextureDesc{
		Label:  label,
		Width:  w,
		Height: h,
		Format: renderer.FormatRGBA16Float,
		Usage:  renderer.TextureUsageSampled | renderer.TextureUsageRenderTarget | renderer.TextureUsageStorage,
	})
	require.NoError(t, err)
	return tex
}

func countLabel(calls []renderertest.Call, label string) int {
	n := 0
	for _, c := range calls {
		if c.Label == label {
			n++
		}
	}
	return n
}

func TestGaussianKernelIsNormalized(t *testing.T) {
	w := fx.GaussianKernel(1.67, 5)
	require.Len(t, w, 6)

	sum := w[0]
	for i := 1; i < len(w); i++ {
		sum += 2 * w[i]
		assert.Less(t, w[i], w[i-1])
	}
	assert.InDelta(t, 1.0, sum, 1e-5)

	assert.Equal(t, []float32{1}, fx.GaussianKernel(0, 5))
}

func TestBloomLevels(t *testing.T) {
	cases := []struct {
		w, h uint32
		want int
	}{
		{1920, 1080, 6},
		{64, 64, 6},
		{8, 64, 3},
		{2, 3, 1},
		{1, 1, 0},
	}
	for _, c := range cases {
		n := fx.BloomLevels(c.w, c.h)
		assert.Equal(t, c.want, n, "%dx%d", c.w, c.h)
		if n > 0 {
			assert.NotZero(t, c.w>>n)
			assert.NotZero(t, c.h>>n)
		}
	}
}

func TestScanHistogram(t *testing.T) {
	logMin, logMax := float32(-8), float32(8)

	bins := make([]uint32, fx.HistogramBins)
	bins[10] = 100
	got := fx.ScanHistogram(bins, 100, 0.5, 0.95, logMin, logMax)
	want := math.Exp2(10.0/64*16 - 8)
	assert.InDelta(t, want, got, 1e-6)

	// Half the pixels black, half at the top bin.
	bins = make([]uint32, fx.HistogramBins)
	bins[0] = 50
	bins[63] = 50
	got = fx.ScanHistogram(bins, 100, 0.5, 0.95, logMin, logMax)
	want = (math.Exp2(-8) + math.Exp2(63.0/64*16-8)) / 2
	assert.InDelta(t, want, got, 1e-5)

	// A zero percentile never underflows the bin index.
	got = fx.ScanHistogram(bins, 100, 0, 0, logMin, logMax)
	assert.InDelta(t, math.Exp2(-8), got, 1e-9)
}

func TestLuminanceReadsBackHistogram(t *testing.T) {
	rec, dev := newDevice(t)
	lum, err := fx.NewLuminance(dev, config.Default().Exposure)
	require.NoError(t, err)
	defer lum.Release()

	data := make([]byte, fx.HistogramBins*4)
	binary.LittleEndian.PutUint32(data[10*4:], 100)
	rec.SetReadback("Luminance Readback", data)

	source := hdrTexture(t, rec, "Light Buffer", 10, 10)
	enc, err := rec.NewEncoder("frame")
	require.NoError(t, err)
	rec.Reset()

	avg, err := lum.ComputeAverageLuminance(enc, source)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp2(10.0/64*16-8), avg, 1e-6)

	var ops []string
	for _, op := range rec.Ops() {
		switch op {
		case "ClearBuffer", "Dispatch", "CopyBuffer", "Flush", "ReadBuffer":
			ops = append(ops, op)
		}
	}
	assert.Equal(t, []string{"ClearBuffer", "Dispatch", "CopyBuffer", "Flush", "ReadBuffer"}, ops)

	dispatch := rec.Find("Dispatch")[0]
	assert.Equal(t, "Light Buffer", dispatch.Bound["source"])
	assert.Equal(t, "Luminance Histogram", dispatch.Bound["histogram"])
}

func TestBlurRecordsSeparablePasses(t *testing.T) {
	rec, dev := newDevice(t)
	blur, err := fx.NewGaussianBlur(dev, 1.67, 5)
	require.NoError(t, err)
	assert.Equal(t, fx.GaussianKernel(1.67, 5), blur.Kernel())

	source := hdrTexture(t, rec, "Moments", 64, 64)
	atlas, err := rec.CreateTexture(renderer.TextureDesc{
		Label: "Shadow Atlas", Width: 256, Height: 256, Layers: 2,
		Format: renderer.FormatRGBA16Float,
		Usage:  renderer.TextureUsageSampled | renderer.TextureUsageStorage,
	})
	require.NoError(t, err)
	enc, err := rec.NewEncoder("frame")
	require.NoError(t, err)

	require.NoError(t, blur.Blur(enc, source, atlas, 1, common.Point2D{X: 128, Y: 64}))
	dispatches := rec.Find("Dispatch")
	require.Len(t, dispatches, 2)
	assert.Equal(t, "Moments", dispatches[0].Bound["source"])
	assert.Equal(t, "Blur Scratch", dispatches[0].Bound["destination"])
	assert.Equal(t, "Blur Scratch", dispatches[1].Bound["source"])
	assert.Equal(t, "Shadow Atlas", dispatches[1].Bound["destination"])
	assert.Equal(t, [3]uint32{8, 8, 1}, dispatches[1].Groups)

	err = blur.Blur(enc, source, atlas, 0, common.Point2D{X: 200, Y: 0})
	assert.Error(t, err, "region past the destination edge")

	_, err = fx.NewGaussianBlur(dev, 1, fx.MaxBlurRadius+1)
	assert.Error(t, err)
}

func TestBloomProcessRecordsChain(t *testing.T) {
	rec, dev := newDevice(t)
	cfg := config.Default()
	bloom, err := fx.NewBloom(dev, cfg.Bloom, cfg.Tonemap.KeyValue)
	require.NoError(t, err)
	defer bloom.Release()

	source := hdrTexture(t, rec, "Light Buffer", 64, 64)
	dest := hdrTexture(t, rec, "Bloom Output", 64, 64)
	enc, err := rec.NewEncoder("frame")
	require.NoError(t, err)

	require.NoError(t, bloom.Process(enc, source, dest, 0.18))
	assert.Equal(t, 6, bloom.Levels())

	// Level i (from 0) is blurred 1+i times, each blur is two dispatches.
	assert.Equal(t, 2*(6+15), countLabel(rec.Find("Dispatch"), "Blur"))
	// Bright-pass, five downscales, five upscales and the composite.
	assert.Equal(t, 12, rec.Count("DrawFullscreen"))

	passes := rec.Find("BeginRenderPass")
	assert.Equal(t, "Bright Pass", passes[0].Label)
	assert.Equal(t, "Bloom Composite", passes[len(passes)-1].Label)

	bindings := rec.Find("SetBindings")
	last := bindings[len(bindings)-1]
	assert.Equal(t, "Light Buffer", last.Bound["base"])
	assert.Equal(t, "Bloom Bright 1", last.Bound["bloom"])
}

func TestBloomReusesSurfacesAcrossSizes(t *testing.T) {
	rec, dev := newDevice(t)
	cfg := config.Default()
	bloom, err := fx.NewBloom(dev, cfg.Bloom, cfg.Tonemap.KeyValue)
	require.NoError(t, err)

	large := hdrTexture(t, rec, "Large", 64, 64)
	small := hdrTexture(t, rec, "Small", 32, 32)
	dest := hdrTexture(t, rec, "Dest", 64, 64)
	enc, err := rec.NewEncoder("frame")
	require.NoError(t, err)

	require.NoError(t, bloom.Process(enc, large, dest, 1))
	created := rec.Count("CreateTexture")
	require.NoError(t, bloom.Process(enc, large, dest, 1))
	assert.Equal(t, created, rec.Count("CreateTexture"), "same size reuses the level surfaces")

	require.NoError(t, bloom.Process(enc, small, dest, 1))
	assert.Equal(t, 5, bloom.Levels())
	created = rec.Count("CreateTexture")

	require.NoError(t, bloom.Process(enc, large, dest, 1))
	assert.Equal(t, created, rec.Count("CreateTexture"), "released levels come back from the cache")
}

func TestBloomWithoutLevelsCopiesSource(t *testing.T) {
	rec, dev := newDevice(t)
	cfg := config.Default()
	bloom, err := fx.NewBloom(dev, cfg.Bloom, cfg.Tonemap.KeyValue)
	require.NoError(t, err)

	source := hdrTexture(t, rec, "Tiny", 1, 1)
	dest := hdrTexture(t, rec, "Dest", 1, 1)
	enc, err := rec.NewEncoder("frame")
	require.NoError(t, err)

	require.NoError(t, bloom.Process(enc, source, dest, 1))
	assert.Equal(t, 0, bloom.Levels())
	assert.Equal(t, 1, rec.Count("DrawFullscreen"))
	assert.Equal(t, "Scale", rec.Find("BeginRenderPass")[0].Label)
}

func TestTonemapDispatchCoversOutput(t *testing.T) {
	rec, dev := newDevice(t)
	tm := fx.NewTonemap(dev, config.Default().Tonemap)

	source := hdrTexture(t, rec, "Bloom Output", 100, 50)
	out, err := rec.CreateTexture(renderer.TextureDesc{
		Label: "Output", Width: 100, Height: 50,
		Format: renderer.FormatRGBA8Unorm,
		Usage:  renderer.TextureUsageSampled | renderer.TextureUsageStorage,
	})
	require.NoError(t, err)
	enc, err := rec.NewEncoder("frame")
	require.NoError(t, err)

	require.NoError(t, tm.Process(enc, source, out, 0.5))
	d := rec.Find("Dispatch")
	require.Len(t, d, 1)
	assert.Equal(t, [3]uint32{13, 7, 1}, d[0].Groups)
	assert.Equal(t, "Output", d[0].Bound["destination"])
}

func TestDeviceRejectsWrongStage(t *testing.T) {
	_, dev := newDevice(t)
	_, err := dev.Program(fx.KindTonemap)
	assert.Error(t, err)
	_, err = dev.Computation(fx.KindScale)
	assert.Error(t, err)

	p, err := dev.Program(fx.KindScale)
	require.NoError(t, err)
	again, err := dev.Program(fx.KindScale)
	require.NoError(t, err)
	assert.Same(t, p, again)
}
