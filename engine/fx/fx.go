// Package fx implements the image effects of the post-process chain: scale, gaussian blur,
// bright-pass, luminance histogram, bloom and tonemapping. Effects record into the frame
// encoder and borrow their scratch surfaces from a resource.Cache.
package fx

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
	"github.com/Carmen-Shannon/oxy-deferred/log"
)

var logger = log.New("fx")

//go:embed assets/*.wgsl
var assets embed.FS

var shaders = func() *shader.Library {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(fmt.Sprintf("fx: embedded assets: %v", err))
	}
	return shader.NewLibrary("fx", sub)
}()

// Shaders returns the library holding the effect shaders. Watching it rebuilds the effect
// programs on the next use.
func Shaders() *shader.Library {
	return shaders
}

// Kind identifies an effect program.
type Kind int

const (
	// KindScale resamples a texture into a render target of another size.
	KindScale Kind = iota
	// KindBrightPass extracts the exposure-adjusted over-threshold color.
	KindBrightPass
	// KindBloomUpscale adds a blurred level onto the next larger one.
	KindBloomUpscale
	// KindBloomComposite adds the bloom onto the unmodified source.
	KindBloomComposite
	// KindBlur is one direction of the separable gaussian blur.
	KindBlur
	// KindLuminance bins the log luminance of a texture.
	KindLuminance
	// KindTonemap maps HDR color to the display format.
	KindTonemap
)

type kindInfo struct {
	name  string
	key   string
	stage shader.ShaderType
}

var kinds = map[Kind]kindInfo{
	KindScale:          {"Scale", "scale", shader.ShaderTypeFragment},
	KindBrightPass:     {"Bright Pass", "bright_pass", shader.ShaderTypeFragment},
	KindBloomUpscale:   {"Bloom Upscale", "bloom_upscale", shader.ShaderTypeFragment},
	KindBloomComposite: {"Bloom Composite", "bloom_composite", shader.ShaderTypeFragment},
	KindBlur:           {"Blur", "blur", shader.ShaderTypeCompute},
	KindLuminance:      {"Luminance", "luminance", shader.ShaderTypeCompute},
	KindTonemap:        {"Tonemap", "tonemap", shader.ShaderTypeCompute},
}

// String returns the label used for the program and its passes.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Device is the shared context of the effects: the backend, the frame uniform arena, the
// surface cache, a bilinear clamp sampler and the lazily built programs. It is used from
// the frame thread only.
type Device struct {
	backend renderer.Backend
	arena   *renderer.UniformArena
	cache   *resource.Cache
	sampler renderer.Sampler

	programs     map[Kind]*renderer.Program
	computations map[Kind]*renderer.Computation
	version      uint64
}

// NewDevice creates the effect context.
//
// Parameters:
//   - backend: the GPU backend
//   - arena: the uniform arena reset by the owner at the start of each frame
//   - cache: the cache scratch and level surfaces are borrowed from
//
// Returns:
//   - *Device: the device
//   - error: error if the sampler cannot be created
func NewDevice(backend renderer.Backend, arena *renderer.UniformArena, cache *resource.Cache) (*Device, error) {
	sampler, err := backend.CreateSampler(renderer.SamplerDesc{
		Label:   "FX Sampler",
		Filter:  renderer.FilterLinear,
		Address: renderer.AddressClamp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fx sampler: %w", err)
	}
	return &Device{
		backend:      backend,
		arena:        arena,
		cache:        cache,
		sampler:      sampler,
		programs:     make(map[Kind]*renderer.Program),
		computations: make(map[Kind]*renderer.Computation),
		version:      shaders.Version(),
	}, nil
}

// Backend returns the GPU backend.
func (d *Device) Backend() renderer.Backend {
	return d.backend
}

// Arena returns the frame uniform arena.
func (d *Device) Arena() *renderer.UniformArena {
	return d.arena
}

// Cache returns the surface cache.
func (d *Device) Cache() *resource.Cache {
	return d.cache
}

// Sampler returns the bilinear clamp sampler shared by the effects.
func (d *Device) Sampler() renderer.Sampler {
	return d.sampler
}

// refresh drops the built programs when the shader library changed.
func (d *Device) refresh() {
	if v := shaders.Version(); v != d.version {
		logger.Infof("effect shaders changed, rebuilding %d programs", len(d.programs)+len(d.computations))
		clear(d.programs)
		clear(d.computations)
		d.version = v
	}
}

// Program returns the full-screen render program of a fragment effect. Every effect renders
// into RGBA16Float targets.
//
// Parameters:
//   - kind: a fragment kind
//
// Returns:
//   - *renderer.Program: the program
//   - error: error if the shaders cannot be loaded or the pipeline cannot be built
func (d *Device) Program(kind Kind) (*renderer.Program, error) {
	d.refresh()
	if p, ok := d.programs[kind]; ok {
		return p, nil
	}
	info, ok := kinds[kind]
	if !ok || info.stage != shader.ShaderTypeFragment {
		return nil, fmt.Errorf("fx: %s is not a fragment effect", kind)
	}
	vs, err := shaders.Get("fullscreen", shader.ShaderTypeVertex)
	if err != nil {
		return nil, err
	}
	fsh, err := shaders.Get(info.key, shader.ShaderTypeFragment)
	if err != nil {
		return nil, err
	}
	p, err := d.backend.CreateProgram(pipeline.NewPipeline(info.name,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fsh),
		pipeline.WithColorTargets(wgpu.TextureFormatRGBA16Float),
		pipeline.WithDepthFormat(wgpu.TextureFormatUndefined),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s program: %w", info.name, err)
	}
	d.programs[kind] = p
	return p, nil
}

// Computation returns the compute pipeline of a compute effect.
//
// Parameters:
//   - kind: a compute kind
//
// Returns:
//   - *renderer.Computation: the computation
//   - error: error if the shader cannot be loaded or the pipeline cannot be built
func (d *Device) Computation(kind Kind) (*renderer.Computation, error) {
	d.refresh()
	if c, ok := d.computations[kind]; ok {
		return c, nil
	}
	info, ok := kinds[kind]
	if !ok || info.stage != shader.ShaderTypeCompute {
		return nil, fmt.Errorf("fx: %s is not a compute effect", kind)
	}
	cs, err := shaders.Get(info.key, shader.ShaderTypeCompute)
	if err != nil {
		return nil, err
	}
	c, err := d.backend.CreateComputation(info.name, cs)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s computation: %w", info.name, err)
	}
	d.computations[kind] = c
	return c, nil
}

// params fills a fresh uniform block for a reflected uniform variable and copies it into the
// frame arena.
func (d *Device) params(s shader.Shader, varName string, fill func(*shader.UniformBlock) error) (renderer.BufferRange, error) {
	layout, ok := s.Uniform(varName)
	if !ok {
		return renderer.BufferRange{}, fmt.Errorf("fx: shader %s has no uniform %q", s.Key(), varName)
	}
	block := shader.NewUniformBlock(layout)
	if err := fill(block); err != nil {
		return renderer.BufferRange{}, fmt.Errorf("fx: shader %s: %w", s.Key(), err)
	}
	return d.arena.Allocate(block.Bytes())
}

// fullscreen records one full-screen draw of a fragment effect into dst.
//
// Parameters:
//   - enc: the frame encoder
//   - kind: the fragment effect
//   - dst: the render target
//   - bind: sets the inputs of the binding table; the params block is available through
//     the table's program fragment shader
//
// Returns:
//   - error: error if the program cannot be built or a binding is missing
func (d *Device) fullscreen(enc renderer.Encoder, kind Kind, dst renderer.Texture, bind func(p *renderer.Program, t *renderer.BindingTable) error) error {
	prog, err := d.Program(kind)
	if err != nil {
		return err
	}
	table := prog.NewBindings()
	if err := bind(prog, table); err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	pass, err := enc.BeginRenderPass(renderer.RenderPassDesc{
		Label: kind.String(),
		Color: []renderer.ColorAttachment{{Target: dst}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	defer pass.End()
	pass.SetProgram(prog)
	if err := pass.SetBindings(table); err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	pass.DrawFullscreen()
	return nil
}

// fragmentParams fills the "params" uniform of a fragment effect and binds it.
func (d *Device) fragmentParams(p *renderer.Program, t *renderer.BindingTable, fill func(*shader.UniformBlock) error) error {
	r, err := d.params(p.Pipeline().Shader(shader.ShaderTypeFragment), "params", fill)
	if err != nil {
		return err
	}
	return t.SetUniform("params", r)
}

// Release destroys the sampler. Programs are owned by the backend.
func (d *Device) Release() {
	if d.sampler != nil {
		d.sampler.Release()
		d.sampler = nil
	}
}
