package pipeline

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

func TestDefaults(t *testing.T) {
	p := NewPipeline("default")
	assert.Equal(t, "default", p.PipelineKey())
	assert.Equal(t, []wgpu.TextureFormat{wgpu.TextureFormatRGBA16Float}, p.ColorTargets())
	assert.Equal(t, wgpu.TextureFormatDepth32Float, p.DepthFormat())
	assert.Equal(t, wgpu.CompareFunctionLess, p.DepthCompare())
	assert.False(t, p.BlendEnabled())
	assert.Nil(t, p.Shader(shader.ShaderTypeVertex))
}

func TestGBufferTargets(t *testing.T) {
	vs, err := shader.NewShaderFromSource("v", shader.ShaderTypeVertex, "@vertex fn vs_main() -> @builtin(position) vec4f { return vec4f(0.0); }")
	require.NoError(t, err)

	p := NewPipeline("gbuffer",
		WithVertexShader(vs),
		WithColorTargets(wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatRGBA16Float),
		WithDepthBias(2, 2.0),
		WithCullMode(wgpu.CullModeBack),
	)
	assert.Len(t, p.ColorTargets(), 2)
	assert.Equal(t, int32(2), p.DepthBias())
	assert.Equal(t, float32(2), p.DepthBiasSlopeScale())
	assert.Equal(t, wgpu.CullModeBack, p.CullMode())
	assert.Equal(t, vs, p.Shader(shader.ShaderTypeVertex))
	assert.Nil(t, p.Shader(shader.ShaderTypeCompute))
}

func TestDisabledDepthTestAlwaysPasses(t *testing.T) {
	p := NewPipeline("fullscreen", WithDepthTestEnabled(false), WithDepthCompare(wgpu.CompareFunctionGreater))
	assert.Equal(t, wgpu.CompareFunctionAlways, p.DepthCompare())
}
