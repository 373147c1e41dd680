package deferred

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

// Surface of the base material.
var (
	defaultAlbedo    = []float32{0.8, 0.8, 0.8}
	defaultSpecular  = float32(0.5)
	defaultShininess = float32(32)
)

var clearDepth = float32(1)

// object is one drawable of a visible node with its prepared constants.
type object struct {
	node     scene.Node
	drawable *scene.Drawable
	consts   model.GPUObjectConstants
}

// GBuffer is the geometry pass and the surface it renders: two RGBA16Float color targets
// (albedo with emissive scale, octahedral normal with specular and shininess) and a
// Depth32Float target. The targets are owned by the pass and recreated when the output size
// changes.
type GBuffer struct {
	backend renderer.Backend
	arena   *renderer.UniformArena
	meshes  *resource.MeshCache

	program *renderer.Program
	base    material.Material
	sky     common.Color

	albedo renderer.Texture
	normal renderer.Texture
	depth  renderer.Texture
	width  uint32
	height uint32

	objects     []object
	draws       int
	parallelFor func(n int, fn func(i int))
}

// NewGBuffer builds the geometry program and its base material. Targets are created on the
// first Draw.
//
// Parameters:
//   - backend: the GPU backend
//   - arena: the per-frame uniform arena materials commit into
//   - meshes: the mesh buffers shared with the shadow atlas
//   - options: variadic list of GBufferBuilderOption functions to configure the pass
//
// Returns:
//   - *GBuffer: the pass
//   - error: error if the shaders cannot be loaded or the program cannot be built
func NewGBuffer(backend renderer.Backend, arena *renderer.UniformArena, meshes *resource.MeshCache, options ...GBufferBuilderOption) (*GBuffer, error) {
	g := &GBuffer{
		backend: backend,
		arena:   arena,
		meshes:  meshes,
		parallelFor: func(n int, fn func(i int)) {
			for i := range n {
				fn(i)
			}
		},
	}
	for _, option := range options {
		option(g)
	}

	vs, err := shaders.Get("gbuffer", shader.ShaderTypeVertex)
	if err != nil {
		return nil, err
	}
	fsh, err := shaders.Get("gbuffer", shader.ShaderTypeFragment)
	if err != nil {
		return nil, err
	}
	g.program, err = backend.CreateProgram(pipeline.NewPipeline("GBuffer",
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fsh),
		pipeline.WithColorTargets(wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatRGBA16Float),
		pipeline.WithDepthFormat(wgpu.TextureFormatDepth32Float),
		pipeline.WithDepthCompare(wgpu.CompareFunctionLess),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create gbuffer program: %w", err)
	}
	g.base, err = material.NewMaterial(g.program,
		material.WithName("Default Surface"),
		material.WithVector("albedo", defaultAlbedo...),
		material.WithFloat("specular", defaultSpecular),
		material.WithFloat("shininess", defaultShininess),
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// BaseMaterial returns the material subsets without a material slot draw with. Scene
// materials are created from it with Instantiate.
func (g *GBuffer) BaseMaterial() material.Material {
	return g.base
}

// SetSkyColor sets the clear color of the albedo target.
func (g *GBuffer) SetSkyColor(c common.Color) {
	g.sky = c
}

// Albedo returns the albedo target, nil before the first Draw.
func (g *GBuffer) Albedo() renderer.Texture {
	return g.albedo
}

// Normal returns the normal target, nil before the first Draw.
func (g *GBuffer) Normal() renderer.Texture {
	return g.normal
}

// Depth returns the depth target, nil before the first Draw.
func (g *GBuffer) Depth() renderer.Texture {
	return g.depth
}

// Draws returns the number of subsets drawn by the last Draw.
func (g *GBuffer) Draws() int {
	return g.draws
}

// ensureTargets recreates the targets when the output size changed.
func (g *GBuffer) ensureTargets(width, height uint32) error {
	if g.albedo != nil && g.width == width && g.height == height {
		return nil
	}
	g.releaseTargets()

	color := renderer.TextureUsageSampled | renderer.TextureUsageRenderTarget
	descs := []struct {
		dst  *renderer.Texture
		desc renderer.TextureDesc
	}{
		{&g.albedo, renderer.TextureDesc{Label: "GBuffer Albedo", Width: width, Height: height, Format: renderer.FormatRGBA16Float, Usage: color}},
		{&g.normal, renderer.TextureDesc{Label: "GBuffer Normal", Width: width, Height: height, Format: renderer.FormatRGBA16Float, Usage: color}},
		{&g.depth, renderer.TextureDesc{Label: "GBuffer Depth", Width: width, Height: height, Format: renderer.FormatDepth32Float, Usage: color}},
	}
	for _, d := range descs {
		tex, err := g.backend.CreateTexture(d.desc)
		if err != nil {
			g.releaseTargets()
			return fmt.Errorf("failed to create %s: %w", d.desc.Label, err)
		}
		*d.dst = tex
	}
	g.width, g.height = width, height
	logger.Debugf("gbuffer resized to %dx%d", width, height)
	return nil
}

// Draw renders every drawable of nodes into the targets. Per-object constants are prepared
// in parallel; draws are recorded in node order, one indexed draw per subset.
//
// Parameters:
//   - enc: the frame encoder
//   - frame: the frame being drawn
//   - nodes: the visible mesh nodes
//
// Returns:
//   - error: error if a target, mesh or material cannot be prepared or bound
func (g *GBuffer) Draw(enc renderer.Encoder, frame *FrameInfo, nodes []scene.Node) error {
	if err := g.ensureTargets(frame.Width, frame.Height); err != nil {
		return err
	}
	g.collect(nodes, frame.ViewProj)
	g.draws = 0

	enc.PushDebugGroup("GBuffer")
	defer enc.PopDebugGroup()
	sky := g.sky
	zero := common.Color{}
	pass, err := enc.BeginRenderPass(renderer.RenderPassDesc{
		Label: "GBuffer",
		Color: []renderer.ColorAttachment{
			{Target: g.albedo, Clear: &sky},
			{Target: g.normal, Clear: &zero},
		},
		Depth: &renderer.DepthAttachment{Target: g.depth, Clear: &clearDepth},
	})
	if err != nil {
		return fmt.Errorf("gbuffer: %w", err)
	}
	defer pass.End()

	for i := range g.objects {
		o := &g.objects[i]
		if err := g.drawObject(pass, o); err != nil {
			return fmt.Errorf("gbuffer: node %s: %w", o.node.Name(), err)
		}
	}
	return nil
}

// collect gathers the drawables of nodes and prepares their constants on the worker pool.
func (g *GBuffer) collect(nodes []scene.Node, viewProj [16]float32) {
	g.objects = g.objects[:0]
	for _, n := range nodes {
		for _, d := range scene.AspectsOf[*scene.Drawable](n) {
			g.objects = append(g.objects, object{node: n, drawable: d})
		}
	}
	g.parallelFor(len(g.objects), func(i int) {
		o := &g.objects[i]
		world := o.node.World()
		o.consts.World = world
		common.Mul4(o.consts.WorldViewProj[:], viewProj[:], world[:])
	})
}

// drawObject issues one indexed draw per subset of a drawable.
func (g *GBuffer) drawObject(pass renderer.RenderPass, o *object) error {
	mdl := o.drawable.Model()
	subsets := mdl.Subsets()
	if len(subsets) == 0 {
		return nil
	}
	mesh, err := g.meshes.Get(mdl)
	if err != nil {
		return err
	}
	for _, s := range subsets {
		if s.IndexCount == 0 {
			continue
		}
		mat := o.drawable.Material(s.Material)
		if mat == nil {
			mat = g.base
		}
		if err := mat.SetMatrix("world", o.consts.World); err != nil {
			return err
		}
		if err := mat.SetMatrix("world_view_proj", o.consts.WorldViewProj); err != nil {
			return err
		}
		if err := mat.Commit(g.arena); err != nil {
			return err
		}
		if err := mat.Bind(pass); err != nil {
			return fmt.Errorf("material %s: %w", mat.Name(), err)
		}
		pass.SetMesh(mesh.Vertices, mesh.Indices)
		pass.DrawIndexed(s.IndexCount, s.FirstIndex)
		g.draws++
	}
	return nil
}

// releaseTargets destroys the targets.
func (g *GBuffer) releaseTargets() {
	for _, t := range []*renderer.Texture{&g.albedo, &g.normal, &g.depth} {
		if *t != nil {
			(*t).Release()
			*t = nil
		}
	}
	g.width, g.height = 0, 0
}

// Release destroys the targets.
func (g *GBuffer) Release() {
	g.releaseTargets()
}
