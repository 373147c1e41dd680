package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lightingTestSource = `
//@oxy:include point_light
//@oxy:include light_params
//@oxy:group 0 0 storage_uniform params light_params
@group(0) @binding(1) var albedo: texture_2d<f32>;
@group(0) @binding(2) var depth: texture_depth_2d;
@group(0) @binding(3) var linearSampler: sampler;
//@oxy:group 0 4 storage_read pointLights array<point_light>
@group(1) @binding(0) var lightBuffer: texture_storage_2d<rgba16float, write>;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) id: vec3u) {
    textureStore(lightBuffer, vec2i(id.xy), vec4f(0.0));
}
`

func TestReflectBindings(t *testing.T) {
	s, err := NewShaderFromSource("lighting", ShaderTypeCompute, lightingTestSource)
	require.NoError(t, err)

	assert.Equal(t, [3]uint32{16, 16, 1}, s.WorkgroupSize())
	assert.Equal(t, "main", s.EntryPoint())

	bindings := s.Bindings()
	require.Len(t, bindings, 6)

	byName := make(map[string]Binding, len(bindings))
	for _, b := range bindings {
		byName[b.Name] = b
	}
	assert.Equal(t, BindingKindUniform, byName["params"].Kind)
	assert.Equal(t, uint64(96), byName["params"].MinSize)
	assert.Equal(t, BindingKindTexture, byName["albedo"].Kind)
	assert.Equal(t, BindingKindDepthTexture, byName["depth"].Kind)
	assert.Equal(t, BindingKindSampler, byName["linearSampler"].Kind)
	assert.Equal(t, BindingKindStorageRead, byName["pointLights"].Kind)

	out := byName["lightBuffer"]
	assert.Equal(t, BindingKindStorageTexture, out.Kind)
	assert.True(t, out.Kind.IsOutput())
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, out.StorageFormat)
	assert.Equal(t, 1, out.Group)

	// sorted by group then binding
	assert.Equal(t, "params", bindings[0].Name)
	assert.Equal(t, "lightBuffer", bindings[5].Name)
}

func TestReflectUniformLayout(t *testing.T) {
	s, err := NewShaderFromSource("lighting", ShaderTypeCompute, lightingTestSource)
	require.NoError(t, err)

	layout, ok := s.Uniform("params")
	require.True(t, ok)
	assert.Equal(t, "LightParams", layout.Name)
	assert.Equal(t, uint64(96), layout.Size)

	m, ok := layout.Member("camera_position")
	require.True(t, ok)
	assert.Equal(t, uint64(64), m.Offset)
	assert.Equal(t, uint64(12), m.Size)

	m, ok = layout.Member("point_count")
	require.True(t, ok)
	assert.Equal(t, uint64(76), m.Offset)

	_, ok = s.Uniform("pointLights")
	assert.False(t, ok)
}

func TestNestedStructMembers(t *testing.T) {
	src := `
struct Inner {
    a: f32,
    b: vec3f,
}
struct Outer {
    scale: f32,
    inner: Inner,
}
@group(0) @binding(0) var<uniform> u: Outer;
@compute @workgroup_size(1)
fn main() {}
`
	s, err := NewShaderFromSource("nested", ShaderTypeCompute, src)
	require.NoError(t, err)
	layout, ok := s.Uniform("u")
	require.True(t, ok)

	m, ok := layout.Member("inner.b")
	require.True(t, ok)
	assert.Equal(t, uint64(32), m.Offset)
}

func TestMissingEntryPoint(t *testing.T) {
	_, err := NewShaderFromSource("broken", ShaderTypeVertex, "fn helper() {}")
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestUnknownIncludeFails(t *testing.T) {
	_, err := NewShaderFromSource("broken", ShaderTypeCompute, "//@oxy:include nope\n@compute @workgroup_size(1) fn main() {}")
	assert.Error(t, err)
}

func TestVertexLayoutFromInclude(t *testing.T) {
	src := `
//@oxy:include vertex
struct VertexOutput {
    @builtin(position) position: vec4f,
    @location(0) uv: vec2f,
}
@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4f(in.position, 1.0);
    out.uv = in.uv;
    return out;
}
`
	s, err := NewShaderFromSource("mesh", ShaderTypeVertex, src)
	require.NoError(t, err)
	layouts := s.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(32), layouts[0][0].ArrayStride)
	assert.Len(t, layouts[0][0].Attributes, 3)
}
