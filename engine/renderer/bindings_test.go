package renderer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

const blurTestSource = `
struct BlurParams {
    direction: vec2f,
    radius: u32,
    _pad: u32,
};

@group(0) @binding(0) var<uniform> params: BlurParams;
@group(0) @binding(1) var source: texture_2d<f32>;
@group(0) @binding(2) var target: texture_storage_2d<rgba16float, write>;
@group(0) @binding(3) var<storage, read> weights: array<f32>;
@group(1) @binding(0) var linear_sampler: sampler;

@compute @workgroup_size(8, 8)
fn main(@builtin(global_invocation_id) id: vec3u) {
    textureStore(target, vec2i(id.xy), textureLoad(source, vec2i(id.xy), 0) * weights[0]);
}
`

func newBlurComputation(t *testing.T, rec *renderertest.Recorder) *renderer.Computation {
	t.Helper()
	s, err := shader.NewShaderFromSource("blur", shader.ShaderTypeCompute, blurTestSource)
	require.NoError(t, err)
	c, err := rec.CreateComputation("blur", s)
	require.NoError(t, err)
	return c
}

func TestBindingTableKinds(t *testing.T) {
	rec := renderertest.NewRecorder()
	c := newBlurComputation(t, rec)

	tex, err := rec.CreateTexture(renderer.TextureDesc{Label: "src", Width: 4, Height: 4, Format: renderer.FormatRGBA16Float})
	require.NoError(t, err)
	samp, err := rec.CreateSampler(renderer.SamplerDesc{Label: "linear"})
	require.NoError(t, err)
	buf, err := rec.CreateBuffer(renderer.BufferDesc{Label: "weights", Size: 64, Usage: renderer.BufferUsageStorage})
	require.NoError(t, err)

	assert.ErrorIs(t, c.SetInput("missing", tex), renderer.ErrUnknownBinding)
	assert.ErrorIs(t, c.SetInput("source", samp), renderer.ErrBindingKind)
	assert.ErrorIs(t, c.SetInput("linear_sampler", tex), renderer.ErrBindingKind)
	assert.ErrorIs(t, c.SetInput("target", tex), renderer.ErrBindingKind, "storage texture is an output")
	assert.ErrorIs(t, c.SetOutput("source", tex), renderer.ErrBindingKind, "sampled texture is an input")
	assert.ErrorIs(t, c.SetInput("weights", tex), renderer.ErrBindingKind)

	require.NoError(t, c.SetInput("source", tex))
	require.NoError(t, c.SetOutput("target", tex))
	require.NoError(t, c.SetInput("weights", buf))
	require.NoError(t, c.SetInput("linear_sampler", samp))

	assert.ErrorIs(t, c.Bindings().Validate(), renderer.ErrMissingBinding)
	require.NoError(t, c.SetUniform("params", renderer.BufferRange{Buffer: buf, Offset: 0, Size: 16}))
	assert.NoError(t, c.Bindings().Validate())

	assert.Equal(t, []int{0, 1}, c.Bindings().Groups())
	assert.True(t, c.Bindings().Has("weights"))
	assert.Same(t, tex, c.Bindings().Resource("source"))
}

func TestComputationDispatchCoversThreads(t *testing.T) {
	rec := renderertest.NewRecorder()
	c := newBlurComputation(t, rec)
	enc, err := rec.NewEncoder("frame")
	require.NoError(t, err)

	assert.ErrorIs(t, c.Dispatch(enc, 100, 50, 1), renderer.ErrMissingBinding)

	tex, _ := rec.CreateTexture(renderer.TextureDesc{Label: "src", Width: 100, Height: 50, Format: renderer.FormatRGBA16Float})
	buf, _ := rec.CreateBuffer(renderer.BufferDesc{Label: "weights", Size: 64})
	samp, _ := rec.CreateSampler(renderer.SamplerDesc{Label: "linear"})
	require.NoError(t, c.SetInput("source", tex))
	require.NoError(t, c.SetOutput("target", tex))
	require.NoError(t, c.SetInput("weights", buf))
	require.NoError(t, c.SetInput("linear_sampler", samp))
	require.NoError(t, c.SetUniform("params", renderer.BufferRange{Buffer: buf, Size: 16}))

	require.NoError(t, c.Dispatch(enc, 100, 50, 1))
	dispatches := rec.Find("Dispatch")
	require.Len(t, dispatches, 1)
	assert.Equal(t, [3]uint32{13, 7, 1}, dispatches[0].Groups)
	assert.Equal(t, "src", dispatches[0].Bound["source"])
}

func TestDispatchSize(t *testing.T) {
	assert.Equal(t, [3]uint32{1, 1, 1}, renderer.DispatchSize([3]uint32{16, 16, 1}, 16, 16, 1))
	assert.Equal(t, [3]uint32{2, 1, 1}, renderer.DispatchSize([3]uint32{16, 16, 1}, 17, 1, 1))
	assert.Equal(t, [3]uint32{1, 1, 1}, renderer.DispatchSize([3]uint32{64, 1, 1}, 0, 0, 0))
}

func TestBufferOf(t *testing.T) {
	rec := renderertest.NewRecorder()
	buf, err := rec.CreateBuffer(renderer.BufferDesc{Label: "b", Size: 1024})
	require.NoError(t, err)

	r, ok := renderer.BufferOf(buf)
	require.True(t, ok)
	assert.Equal(t, uint64(1024), r.Size)

	r, ok = renderer.BufferOf(renderer.BufferRange{Buffer: buf, Offset: 256})
	require.True(t, ok)
	assert.Equal(t, uint64(768), r.Size)

	_, ok = renderer.BufferOf("nope")
	assert.False(t, ok)
}

func TestFormatTable(t *testing.T) {
	assert.Equal(t, uint32(8), renderer.FormatRGBA16Float.BytesPerTexel())
	assert.True(t, renderer.FormatDepth32Float.IsDepth())
	assert.False(t, renderer.FormatRGBA8Unorm.IsDepth())
	assert.Equal(t, "rgba16float", renderer.FormatRGBA16Float.String())
	assert.Equal(t, renderer.FormatRGBA16Float, renderer.FormatFromNative(renderer.FormatRGBA16Float.Native()))
	assert.Equal(t, "undefined", renderer.FormatUndefined.String())
}
