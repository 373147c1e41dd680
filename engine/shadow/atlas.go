package shadow

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/fx"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
)

//go:embed assets/*.wgsl
var assets embed.FS

var shaders = func() *shader.Library {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(fmt.Sprintf("shadow: embedded assets: %v", err))
	}
	return shader.NewLibrary("shadow", sub)
}()

// Shaders returns the library holding the shadow caster shaders.
func Shaders() *shader.Library {
	return shaders
}

// ErrNotCommitted is returned when the atlas texture is requested between Begin and Commit.
var ErrNotCommitted = errors.New("shadow: atlas read before Commit")

// ErrNotBegun is returned when a shadow map is requested outside Begin and Commit.
var ErrNotBegun = errors.New("shadow: shadow map requested outside Begin/Commit")

// Stats counts the shadow work of the current frame.
type Stats struct {
	// Requested is the number of shadow-casting lights that asked for a map.
	Requested int
	// Rendered is the number of maps written into the atlas.
	Rendered int
	// Unshadowed is the number of requests that found no room in the atlas.
	Unshadowed int
	// Draws is the number of caster subsets drawn.
	Draws int
}

// caster is one drawable of a caster node with its prepared constants.
type caster struct {
	node     scene.Node
	drawable *scene.Drawable
	consts   model.GPUObjectConstants
}

var (
	white    = common.Color{1, 1, 1, 1}
	farDepth = float32(1)
)

// Atlas renders the variance shadow maps of the visible lights into a layered RGBA16Float
// texture. Every frame the allocator is reset with Begin, each shadow-casting light reserves a
// chunk, its casters' depth moments are rendered into a cached scratch target the size of the
// chunk and blurred into the reserved region. Commit makes the texture readable.
//
// An Atlas is used from the frame thread only.
type Atlas struct {
	device *fx.Device
	meshes *resource.MeshCache
	alloc  *Allocator
	blur   *fx.GaussianBlur
	cfg    config.Shadow

	texture renderer.Texture
	program *renderer.Program
	version uint64

	enc         renderer.Encoder
	readable    bool
	stats       Stats
	casters     []caster
	parallelFor func(n int, fn func(i int))
}

// NewAtlas creates the atlas texture and allocator.
//
// Parameters:
//   - device: the effect context providing the backend, uniform arena, cache and blur
//   - meshes: the mesh buffers shared with the geometry pass
//   - cfg: the shadow section of the configuration
//   - options: variadic list of AtlasBuilderOption functions to configure the atlas
//
// Returns:
//   - *Atlas: the atlas
//   - error: error if the blur parameters are invalid or the texture cannot be created
func NewAtlas(device *fx.Device, meshes *resource.MeshCache, cfg config.Shadow, options ...AtlasBuilderOption) (*Atlas, error) {
	a := &Atlas{
		device: device,
		meshes: meshes,
		cfg:    cfg,
		parallelFor: func(n int, fn func(i int)) {
			for i := range n {
				fn(i)
			}
		},
	}
	for _, option := range options {
		option(a)
	}
	if err := a.SetConfig(a.cfg); err != nil {
		return nil, err
	}
	return a, nil
}

// SetConfig applies a new shadow configuration. The texture and allocator are recreated when
// the atlas size or page count changed; the caster program is rebuilt when the depth bias did.
//
// Parameters:
//   - cfg: the shadow section
//
// Returns:
//   - error: error if the blur parameters are invalid or the texture cannot be created
func (a *Atlas) SetConfig(cfg config.Shadow) error {
	blur, err := fx.NewGaussianBlur(a.device, cfg.BlurSigma, cfg.BlurRadius)
	if err != nil {
		return err
	}
	if a.texture == nil || cfg.AtlasSize != a.cfg.AtlasSize || cfg.AtlasPages != a.cfg.AtlasPages {
		tex, err := a.device.Backend().CreateTexture(renderer.TextureDesc{
			Label:  "Shadow Atlas",
			Width:  cfg.AtlasSize,
			Height: cfg.AtlasSize,
			Layers: cfg.AtlasPages,
			Format: renderer.FormatRGBA16Float,
			Usage:  renderer.TextureUsageSampled | renderer.TextureUsageStorage,
		})
		if err != nil {
			return fmt.Errorf("failed to create shadow atlas: %w", err)
		}
		if a.texture != nil {
			a.texture.Release()
		}
		a.texture = tex
		a.alloc = NewAllocator(cfg.AtlasSize, cfg.AtlasPages)
		logger.Infof("shadow atlas %dx%d, %d page(s)", cfg.AtlasSize, cfg.AtlasSize, cfg.AtlasPages)
	}
	if cfg.DepthBias != a.cfg.DepthBias || cfg.SlopeBias != a.cfg.SlopeBias {
		a.program = nil
	}
	a.blur = blur
	a.cfg = cfg
	return nil
}

// Allocator returns the chunk allocator.
func (a *Atlas) Allocator() *Allocator {
	return a.alloc
}

// Stats returns the counters of the current frame.
func (a *Atlas) Stats() Stats {
	return a.stats
}

// Begin resets the allocator and starts recording shadow maps into enc. The atlas is not
// readable until Commit.
//
// Parameters:
//   - enc: the frame encoder
func (a *Atlas) Begin(enc renderer.Encoder) {
	a.alloc.Reset()
	a.enc = enc
	a.readable = false
	a.stats = Stats{}
}

// Commit ends the shadow maps of the frame and makes the atlas readable.
func (a *Atlas) Commit() {
	a.enc = nil
	a.readable = true
}

// Readable reports whether the atlas may be bound.
func (a *Atlas) Readable() bool {
	return a.readable
}

// Texture returns the atlas texture.
//
// Returns:
//   - renderer.Texture: the layered atlas
//   - error: ErrNotCommitted between Begin and Commit
func (a *Atlas) Texture() (renderer.Texture, error) {
	if !a.readable {
		return nil, ErrNotCommitted
	}
	return a.texture, nil
}

// chunkSize returns the chunk edge requested by a light.
func (a *Atlas) chunkSize(l light.Light, fallback uint32) uint32 {
	if size := l.ShadowResolution(); size > 0 {
		return min(size, a.cfg.AtlasSize)
	}
	return fallback
}

// reserve asks the allocator for a square chunk and counts the outcome.
func (a *Atlas) reserve(l light.Light, host scene.Node, fallback uint32) (uint32, common.Box2D, bool) {
	a.stats.Requested++
	size := a.chunkSize(l, fallback)
	page, box, ok := a.alloc.ReserveChunk(size, size)
	if !ok {
		a.stats.Unshadowed++
		logger.Debugf("no atlas room for a %dx%d %s shadow of %s", size, size, l.Type(), host.Name())
	}
	return page, box, ok
}

// ComputePointShadow renders the octahedral shadow map of a point light.
//
// The light view is the rigid inverse of the host node's world transform; the depth range
// runs from the configured near distance to the light's influence radius. Casters are the
// meshes intersecting the light's bounding sphere.
//
// Parameters:
//   - l: the light
//   - host: the node hosting the light
//   - query: the scene query returning caster nodes
//   - out: the shadow entry, always written; Enabled is 0 when no map was rendered
//
// Returns:
//   - bool: true when the map was rendered
//   - error: error if a resource cannot be acquired or a pass cannot be recorded
func (a *Atlas) ComputePointShadow(l light.Light, host scene.Node, query scene.Query, out *light.GPUPointShadow) (bool, error) {
	*out = light.GPUPointShadow{}
	if !l.CastsShadows() {
		return false, nil
	}
	if a.enc == nil {
		return false, ErrNotBegun
	}
	page, box, ok := a.reserve(l, host, a.cfg.PointChunk)
	if !ok {
		return false, nil
	}

	near, far := a.cfg.PointNear, l.Range()
	if far <= near || math32.IsInf(far, 1) {
		far = a.cfg.PointFar
	}
	world := host.World()
	var view [16]float32
	common.RigidInverse(view[:], world[:])

	bounds := common.Sphere{Center: host.Position(), Radius: far}
	pass := light.GPUShadowPass{View: view, Near: near, Far: far, Mode: light.ShadowModePoint}
	if err := a.render("Point Shadow", pass, query.MeshNodes(bounds), page, box); err != nil {
		return false, err
	}

	uvMin, uvMax := box.UV(a.alloc.Size())
	*out = light.GPUPointShadow{
		View:    view,
		UVMin:   uvMin,
		UVMax:   uvMax,
		Near:    near,
		Far:     far,
		Page:    page,
		Enabled: 1,
	}
	return true, nil
}

// ComputeDirectionalShadow renders the orthographic shadow map of a directional light.
//
// The light volume is fitted to the camera view and bounded along the light direction by the
// configured domain radius. Its projection depth range is the extent of the casters' bounding
// spheres along the light direction.
//
// Parameters:
//   - l: the light
//   - host: the node hosting the light; its forward axis is the light direction
//   - view: the frame camera
//   - query: the scene query returning caster nodes
//   - out: the shadow entry, always written; Enabled is 0 when no map was rendered
//
// Returns:
//   - bool: true when the map was rendered
//   - error: error if a resource cannot be acquired or a pass cannot be recorded
func (a *Atlas) ComputeDirectionalShadow(l light.Light, host scene.Node, view CameraView, query scene.Query, out *light.GPUDirectionalShadow) (bool, error) {
	*out = light.GPUDirectionalShadow{}
	if !l.CastsShadows() {
		return false, nil
	}
	if a.enc == nil {
		return false, ErrNotBegun
	}
	page, box, ok := a.reserve(l, host, a.cfg.DirectionalSize)
	if !ok {
		return false, nil
	}

	volume := FitDirectional(host.Forward(), view, a.cfg.DomainRadius)
	nodes := query.MeshNodes(&volume.Frustum)
	spheres := make([]common.Sphere, 0, len(nodes))
	for _, n := range nodes {
		// Drawable bounds only; a light hosted by the node would make them unbounded.
		world := n.World()
		for _, d := range scene.AspectsOf[*scene.Drawable](n) {
			spheres = append(spheres, d.Model().BoundingSphere(world))
		}
	}
	zMin, zMax := volume.DepthRange(spheres)
	viewProj := volume.ViewProj(zMin, zMax)

	pass := light.GPUShadowPass{View: viewProj, Near: zMin, Far: zMax, Mode: light.ShadowModeDirectional}
	if err := a.render("Directional Shadow", pass, nodes, page, box); err != nil {
		return false, err
	}

	uvMin, uvMax := box.UV(a.alloc.Size())
	*out = light.GPUDirectionalShadow{
		ViewProj: viewProj,
		UVMin:    uvMin,
		UVMax:    uvMax,
		Page:     page,
		Enabled:  1,
	}
	return true, nil
}

// casterProgram returns the caster program, rebuilding it after a shader or bias change.
func (a *Atlas) casterProgram() (*renderer.Program, error) {
	if v := shaders.Version(); a.program != nil && v == a.version {
		return a.program, nil
	}
	vs, err := shaders.Get("caster", shader.ShaderTypeVertex)
	if err != nil {
		return nil, err
	}
	fsh, err := shaders.Get("caster", shader.ShaderTypeFragment)
	if err != nil {
		return nil, err
	}
	p, err := a.device.Backend().CreateProgram(pipeline.NewPipeline("Shadow Caster",
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fsh),
		pipeline.WithColorTargets(wgpu.TextureFormatRGBA16Float),
		pipeline.WithDepthFormat(wgpu.TextureFormatDepth32Float),
		pipeline.WithDepthCompare(wgpu.CompareFunctionLess),
		pipeline.WithDepthBias(a.cfg.DepthBias, a.cfg.SlopeBias),
		pipeline.WithCullMode(wgpu.CullModeNone),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create shadow caster program: %w", err)
	}
	a.program = p
	a.version = shaders.Version()
	return p, nil
}

// render draws the depth moments of the shadow-casting subsets of nodes into a scratch
// target the size of box, then blurs it into the atlas region.
func (a *Atlas) render(label string, pass light.GPUShadowPass, nodes []scene.Node, page uint32, box common.Box2D) error {
	prog, err := a.casterProgram()
	if err != nil {
		return err
	}
	cache := a.device.Cache()
	w, h := box.Width(), box.Height()
	moments, err := cache.Acquire(renderer.TextureDesc{
		Label:  "Shadow Moments",
		Width:  w,
		Height: h,
		Format: renderer.FormatRGBA16Float,
		Usage:  renderer.TextureUsageSampled | renderer.TextureUsageRenderTarget,
	})
	if err != nil {
		return fmt.Errorf("failed to acquire shadow moments: %w", err)
	}
	defer cache.Release(moments)
	depth, err := cache.Acquire(renderer.TextureDesc{
		Label:  "Shadow Depth",
		Width:  w,
		Height: h,
		Format: renderer.FormatDepth32Float,
		Usage:  renderer.TextureUsageRenderTarget,
	})
	if err != nil {
		return fmt.Errorf("failed to acquire shadow depth: %w", err)
	}
	defer cache.Release(depth)

	a.collectCasters(nodes, pass.View)

	arena := a.device.Arena()
	passRange, err := arena.Allocate(pass.Marshal())
	if err != nil {
		return err
	}

	a.enc.PushDebugGroup(label)
	defer a.enc.PopDebugGroup()
	rp, err := a.enc.BeginRenderPass(renderer.RenderPassDesc{
		Label: label,
		Color: []renderer.ColorAttachment{{Target: moments, Clear: &white}},
		Depth: &renderer.DepthAttachment{Target: depth, Clear: &farDepth},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	rp.SetProgram(prog)
	for i := range a.casters {
		c := &a.casters[i]
		if err := a.drawCaster(rp, prog, passRange, c); err != nil {
			rp.End()
			return fmt.Errorf("%s: caster %s: %w", label, c.node.Name(), err)
		}
	}
	rp.End()

	if err := a.blur.Blur(a.enc, moments, a.texture, page, box.Min); err != nil {
		return err
	}
	a.stats.Rendered++
	return nil
}

// collectCasters gathers the drawables of nodes and prepares their light-space constants.
func (a *Atlas) collectCasters(nodes []scene.Node, lightTransform [16]float32) {
	a.casters = a.casters[:0]
	for _, n := range nodes {
		for _, d := range scene.AspectsOf[*scene.Drawable](n) {
			a.casters = append(a.casters, caster{node: n, drawable: d})
		}
	}
	a.parallelFor(len(a.casters), func(i int) {
		c := &a.casters[i]
		world := c.node.World()
		c.consts.World = world
		common.Mul4(c.consts.WorldViewProj[:], lightTransform[:], world[:])
	})
}

// drawCaster issues the shadow-casting subsets of one drawable.
func (a *Atlas) drawCaster(rp renderer.RenderPass, prog *renderer.Program, passRange renderer.BufferRange, c *caster) error {
	mdl := c.drawable.Model()
	var subsets []model.Subset
	for _, s := range mdl.Subsets() {
		if s.CastsShadows() && s.IndexCount > 0 {
			subsets = append(subsets, s)
		}
	}
	if len(subsets) == 0 {
		return nil
	}
	mesh, err := a.meshes.Get(mdl)
	if err != nil {
		return err
	}
	objRange, err := a.device.Arena().Allocate(c.consts.Marshal())
	if err != nil {
		return err
	}
	table := prog.NewBindings()
	if err := table.SetUniform("caster", passRange); err != nil {
		return err
	}
	if err := table.SetUniform("object", objRange); err != nil {
		return err
	}
	if err := rp.SetBindings(table); err != nil {
		return err
	}
	rp.SetMesh(mesh.Vertices, mesh.Indices)
	for _, s := range subsets {
		rp.DrawIndexed(s.IndexCount, s.FirstIndex)
		a.stats.Draws++
	}
	return nil
}

// Release destroys the atlas texture.
func (a *Atlas) Release() {
	if a.texture != nil {
		a.texture.Release()
		a.texture = nil
	}
}
