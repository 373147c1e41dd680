package material_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

const surfaceVertex = `
//@oxy:include vertex
//@oxy:include object_constants
//@oxy:group 0 0 storage_uniform object object_constants

struct VertexOutput {
    @builtin(position) position: vec4f,
    @location(0) normal: vec3f,
};

@vertex
fn vs_main(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = object.world_view_proj * vec4f(in.position, 1.0);
    out.normal = (object.world * vec4f(in.normal, 0.0)).xyz;
    return out;
}
`

const surfaceFragment = `
struct Surface {
    base_color: vec4f,
    shininess: f32,
    specular: f32,
};

@group(1) @binding(0) var<uniform> surface: Surface;
@group(1) @binding(1) var albedo: texture_2d<f32>;
@group(1) @binding(2) var albedo_sampler: sampler;

@fragment
fn fs_main(@location(0) normal: vec3f) -> @location(0) vec4f {
    return surface.base_color * textureSample(albedo, albedo_sampler, vec2f(0.5));
}
`

type fixture struct {
	rec     *renderertest.Recorder
	program *renderer.Program
	arena   *renderer.UniformArena
	albedo  renderer.Texture
	sampler renderer.Sampler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	vs, err := shader.NewShaderFromSource("surface", shader.ShaderTypeVertex, surfaceVertex)
	require.NoError(t, err)
	fs, err := shader.NewShaderFromSource("surface", shader.ShaderTypeFragment, surfaceFragment)
	require.NoError(t, err)

	rec := renderertest.NewRecorder()
	program, err := rec.CreateProgram(pipeline.NewPipeline("surface",
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
	))
	require.NoError(t, err)
	arena, err := renderer.NewUniformArena(rec, 4096)
	require.NoError(t, err)
	albedo, err := rec.CreateTexture(renderer.TextureDesc{Label: "albedo", Width: 4, Height: 4, Format: renderer.FormatRGBA8Unorm})
	require.NoError(t, err)
	sampler, err := rec.CreateSampler(renderer.SamplerDesc{Label: "linear"})
	require.NoError(t, err)
	return fixture{rec: rec, program: program, arena: arena, albedo: albedo, sampler: sampler}
}

func TestCommitUploadsOnlyDirtyBuffers(t *testing.T) {
	f := newFixture(t)
	m, err := material.NewMaterial(f.program, material.WithName("brick"))
	require.NoError(t, err)
	assert.Equal(t, "brick", m.Name())
	assert.True(t, m.Dirty())

	f.rec.Reset()
	require.NoError(t, m.Commit(f.arena))
	assert.Equal(t, 2, f.rec.Count("WriteBuffer"), "both constant buffers start dirty")
	assert.False(t, m.Dirty())

	f.rec.Reset()
	require.NoError(t, m.Commit(f.arena))
	assert.Equal(t, 0, f.rec.Count("WriteBuffer"))

	require.NoError(t, m.SetFloat("shininess", 32))
	f.rec.Reset()
	require.NoError(t, m.Commit(f.arena))
	assert.Equal(t, 1, f.rec.Count("WriteBuffer"))

	f.arena.Reset()
	f.rec.Reset()
	require.NoError(t, m.Commit(f.arena))
	assert.Equal(t, 2, f.rec.Count("WriteBuffer"), "windows from an earlier frame are stale")
}

func TestSetMatrixLandsInArena(t *testing.T) {
	f := newFixture(t)
	m, err := material.NewMaterial(f.program)
	require.NoError(t, err)

	world := [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 5, 6, 7, 1}
	require.NoError(t, m.SetMatrix("object.world", world))
	require.NoError(t, m.Commit(f.arena))

	writes := f.rec.Find("WriteBuffer")
	require.NotEmpty(t, writes)
	data := f.rec.Buffer("Uniform Arena").Data
	var found bool
	for _, w := range writes {
		if w.Size < 64 {
			continue
		}
		if math.Float32frombits(binary.LittleEndian.Uint32(data[w.Offset+48:])) == 5 {
			found = true
		}
	}
	assert.True(t, found, "world translation written at its reflected offset")
}

func TestUnknownMember(t *testing.T) {
	f := newFixture(t)
	m, err := material.NewMaterial(f.program)
	require.NoError(t, err)

	assert.ErrorIs(t, m.SetFloat("roughness", 1), shader.ErrUnknownMember)
	assert.ErrorIs(t, m.SetVector("base_color", []float32{1, 2, 3, 4, 5}), shader.ErrMemberSize)
	assert.NoError(t, m.SetVector("surface.base_color", []float32{1, 0, 0, 1}))
	assert.ErrorIs(t, m.SetMatrix("surface.shininess", [16]float32{}), shader.ErrMemberSize)
}

func TestBindRequiresInputs(t *testing.T) {
	f := newFixture(t)
	m, err := material.NewMaterial(f.program)
	require.NoError(t, err)
	require.NoError(t, m.Commit(f.arena))

	enc, err := f.rec.NewEncoder("frame")
	require.NoError(t, err)
	pass, err := enc.BeginRenderPass(renderer.RenderPassDesc{Label: "gbuffer"})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Bind(pass), renderer.ErrMissingBinding)

	require.NoError(t, m.SetInput("albedo", f.albedo))
	require.NoError(t, m.SetInput("albedo_sampler", f.sampler))
	require.NoError(t, m.Bind(pass))

	binds := f.rec.Find("SetBindings")
	require.Len(t, binds, 1)
	assert.Equal(t, "albedo", binds[0].Bound["albedo"])
	assert.Equal(t, "Uniform Arena", binds[0].Bound["object"])
}

func TestInstantiateCopiesState(t *testing.T) {
	f := newFixture(t)
	base, err := material.NewMaterial(f.program,
		material.WithVector("base_color", 1, 1, 1, 1),
		material.WithFloat("shininess", 8),
		material.WithInput("albedo", f.albedo),
		material.WithInput("albedo_sampler", f.sampler),
	)
	require.NoError(t, err)
	require.NoError(t, base.Commit(f.arena))

	inst := base.Instantiate("brick#2")
	assert.Same(t, base.Program(), inst.Program())
	assert.Equal(t, "brick#2", inst.Name())
	assert.True(t, inst.Dirty())
	assert.False(t, base.Dirty())

	require.NoError(t, inst.SetFloat("shininess", 64))
	assert.False(t, base.Dirty(), "instances do not share constant buffers")

	require.NoError(t, inst.Commit(f.arena))
	enc, err := f.rec.NewEncoder("frame")
	require.NoError(t, err)
	pass, err := enc.BeginRenderPass(renderer.RenderPassDesc{Label: "gbuffer"})
	require.NoError(t, err)
	assert.NoError(t, inst.Bind(pass), "inputs are copied to the instance")
}

func TestWithInputRejectsUnknownBinding(t *testing.T) {
	f := newFixture(t)
	_, err := material.NewMaterial(f.program, material.WithInput("normal_map", f.albedo))
	assert.ErrorIs(t, err, renderer.ErrUnknownBinding)
}
