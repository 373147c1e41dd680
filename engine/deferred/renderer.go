package deferred

import (
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/fx"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
)

// DefaultArenaCapacity is the size of the per-frame uniform arena: 16384 windows of 256 bytes.
const DefaultArenaCapacity = 4 << 20

// FrameStats describes the work of the last drawn frame.
type FrameStats struct {
	// Meshes is the number of visible mesh nodes.
	Meshes int
	// Draws is the number of subsets drawn into the GBuffer.
	Draws int
	// PointLights and DirectionalLights are the lights shaded.
	PointLights       int
	DirectionalLights int
	// Dropped is the number of visible lights over the array capacity.
	Dropped int
	// ShadowRequests is the number of shadow-casting lights. Shadowed of them got a map;
	// the atlas had no room for Unshadowed.
	ShadowRequests int
	Shadowed       int
	Unshadowed     int
	ShadowDraws    int
	// AverageLuminance is the exposure estimate of the frame.
	AverageLuminance float32
	// ArenaBytes is the uniform arena usage of the frame.
	ArenaBytes uint64
}

// Renderer draws frames of a scene. It owns the passes, the per-frame uniform arena, the
// texture and mesh caches and the worker pool that prepares per-object constants.
//
// Draw runs the frame through the states Idle, Geometry, Lighting, Post and Present and
// records all GPU work into one encoder. A Renderer is used from a single frame thread.
type Renderer struct {
	backend renderer.Backend
	query   scene.Query
	cfg     config.Config

	arena  *renderer.UniformArena
	cache  *resource.Cache
	meshes *resource.MeshCache
	device *fx.Device

	gbuffer   *GBuffer
	atlas     *shadow.Atlas
	lighting  *Lighting
	luminance *fx.Luminance
	bloom     *fx.Bloom
	tonemap   *fx.Tonemap

	output renderer.Texture
	state  State
	stats  FrameStats

	workers       int
	pool          worker.DynamicWorkerPool
	arenaCapacity uint64
	onState       func(State)
}

// NewRenderer creates the renderer and every pass.
//
// Parameters:
//   - backend: the GPU backend
//   - query: the scene to draw
//   - options: variadic list of RendererBuilderOption functions to configure the renderer
//
// Returns:
//   - *Renderer: the renderer
//   - error: error if the configuration is invalid or a pass cannot be created
func NewRenderer(backend renderer.Backend, query scene.Query, options ...RendererBuilderOption) (*Renderer, error) {
	r := &Renderer{
		backend:       backend,
		query:         query,
		cfg:           config.Default(),
		arenaCapacity: DefaultArenaCapacity,
		workers:       -1,
	}
	for _, option := range options {
		option(r)
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if r.workers < 0 {
		r.workers = r.cfg.Renderer.Workers
	}
	if r.workers > 0 {
		// Queue size of 256 leaves headroom over the one task per worker submitted per loop.
		r.pool = worker.NewDynamicWorkerPool(r.workers, 256, 1*time.Second)
	}

	var err error
	if r.arena, err = renderer.NewUniformArena(backend, r.arenaCapacity); err != nil {
		return nil, err
	}
	r.cache = resource.NewCache(backend)
	r.meshes = resource.NewMeshCache(backend)
	if r.device, err = fx.NewDevice(backend, r.arena, r.cache); err != nil {
		return nil, err
	}
	r.gbuffer, err = NewGBuffer(backend, r.arena, r.meshes,
		WithSkyColor(common.Color(r.cfg.Renderer.SkyColor)),
		WithParallelFor(r.parallelFor),
	)
	if err != nil {
		return nil, err
	}
	if r.atlas, err = shadow.NewAtlas(r.device, r.meshes, r.cfg.Shadow, shadow.WithParallelFor(r.parallelFor)); err != nil {
		return nil, err
	}
	if r.lighting, err = NewLighting(r.device, r.atlas, r.cfg.Renderer.LightOverflow); err != nil {
		return nil, err
	}
	if r.luminance, err = fx.NewLuminance(r.device, r.cfg.Exposure); err != nil {
		return nil, err
	}
	if r.bloom, err = fx.NewBloom(r.device, r.cfg.Bloom, r.cfg.Tonemap.KeyValue); err != nil {
		return nil, err
	}
	r.tonemap = fx.NewTonemap(r.device, r.cfg.Tonemap)

	logger.Infof("deferred renderer ready: %d worker(s), %d KiB uniform arena", r.workers, r.arena.Capacity()>>10)
	return r, nil
}

// SetQuery replaces the scene drawn by the following frames.
func (r *Renderer) SetQuery(query scene.Query) {
	r.query = query
}

// SetConfig applies new tunables to every pass. Sizes of the shadow atlas take effect
// immediately; the next frame uses every other value.
//
// Parameters:
//   - cfg: the configuration
//
// Returns:
//   - error: error if cfg is invalid or a pass rejects it; passes already updated keep the new values
func (r *Renderer) SetConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := r.atlas.SetConfig(cfg.Shadow); err != nil {
		return err
	}
	if err := r.bloom.SetConfig(cfg.Bloom, cfg.Tonemap.KeyValue); err != nil {
		return err
	}
	r.gbuffer.SetSkyColor(common.Color(cfg.Renderer.SkyColor))
	r.lighting.SetOverflow(cfg.Renderer.LightOverflow)
	r.luminance.SetConfig(cfg.Exposure)
	r.tonemap.SetConfig(cfg.Tonemap)
	r.cfg = cfg
	return nil
}

// State returns the stage the renderer is recording.
func (r *Renderer) State() State {
	return r.state
}

// Stats returns the statistics of the last drawn frame.
func (r *Renderer) Stats() FrameStats {
	return r.stats
}

// BaseMaterial returns the GBuffer material scene materials are instantiated from.
func (r *Renderer) BaseMaterial() material.Material {
	return r.gbuffer.BaseMaterial()
}

// Cache returns the texture cache.
func (r *Renderer) Cache() *resource.Cache {
	return r.cache
}

// Meshes returns the mesh buffer cache.
func (r *Renderer) Meshes() *resource.MeshCache {
	return r.meshes
}

// Atlas returns the shadow atlas.
func (r *Renderer) Atlas() *shadow.Atlas {
	return r.atlas
}

// Output returns the last frame, nil before the first.
func (r *Renderer) Output() renderer.Texture {
	return r.output
}

func (r *Renderer) setState(s State) {
	r.state = s
	if r.onState != nil {
		r.onState(s)
	}
}

// Draw renders one frame of the scene at the given size.
//
// Without a main camera, or with an empty size, no GPU work is recorded and the previous
// frame is returned.
//
// Parameters:
//   - width, height: the output size in pixels
//
// Returns:
//   - renderer.Texture: the tonemapped RGBA8Unorm frame
//   - error: error if any pass fails; the frame is abandoned
func (r *Renderer) Draw(width, height uint32) (renderer.Texture, error) {
	if width == 0 || height == 0 {
		return r.output, nil
	}
	frame, ok := NewFrameInfo(r.query, width, height)
	if !ok {
		logger.Debugf("no main camera, frame skipped")
		return r.output, nil
	}
	defer r.setState(StateIdle)

	resized := r.output != nil && (r.output.Width() != width || r.output.Height() != height)

	r.arena.Reset()
	enc, err := r.backend.NewEncoder("Frame")
	if err != nil {
		return nil, fmt.Errorf("failed to create frame encoder: %w", err)
	}
	defer enc.Release()

	r.setState(StateGeometry)
	meshes := r.query.MeshNodes(&frame.Frustum)
	if err := r.gbuffer.Draw(enc, &frame, meshes); err != nil {
		return nil, err
	}

	r.setState(StateLighting)
	lit, err := r.lighting.AccumulateLight(enc, &frame, r.gbuffer)
	if err != nil {
		return nil, err
	}

	r.setState(StatePost)
	avg, err := r.post(enc, lit)
	if err != nil {
		return nil, err
	}

	r.setState(StatePresent)
	if err := enc.Submit(); err != nil {
		return nil, fmt.Errorf("failed to submit frame: %w", err)
	}
	if resized {
		// Surfaces of the old size were handed back during the passes and are never asked for again.
		r.cache.Purge()
	}

	lights := r.lighting.Stats()
	shadows := r.atlas.Stats()
	r.stats = FrameStats{
		Meshes:            len(meshes),
		Draws:             r.gbuffer.Draws(),
		PointLights:       lights.PointLights,
		DirectionalLights: lights.DirectionalLights,
		Dropped:           lights.Dropped,
		ShadowRequests:    shadows.Requested,
		Shadowed:          shadows.Rendered,
		Unshadowed:        shadows.Unshadowed,
		ShadowDraws:       shadows.Draws,
		AverageLuminance:  avg,
		ArenaBytes:        r.arena.Used(),
	}
	return r.output, nil
}

// post runs luminance, bloom and tonemapping on the light buffer into the output.
func (r *Renderer) post(enc renderer.Encoder, lit renderer.Texture) (float32, error) {
	if err := r.ensureOutput(lit.Width(), lit.Height()); err != nil {
		return 0, err
	}
	avg, err := r.luminance.ComputeAverageLuminance(enc, lit)
	if err != nil {
		return 0, err
	}
	bloomed, err := r.cache.Acquire(renderer.TextureDesc{
		Label:  "Bloom Output",
		Width:  lit.Width(),
		Height: lit.Height(),
		Format: renderer.FormatRGBA16Float,
		Usage:  renderer.TextureUsageSampled | renderer.TextureUsageRenderTarget,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to acquire bloom output: %w", err)
	}
	defer r.cache.Release(bloomed)
	if err := r.bloom.Process(enc, lit, bloomed, avg); err != nil {
		return 0, err
	}
	enc.PushDebugGroup("Tonemap")
	defer enc.PopDebugGroup()
	if err := r.tonemap.Process(enc, bloomed, r.output, avg); err != nil {
		return 0, err
	}
	return avg, nil
}

// ensureOutput recreates the output texture when the size changed.
func (r *Renderer) ensureOutput(width, height uint32) error {
	if r.output != nil && r.output.Width() == width && r.output.Height() == height {
		return nil
	}
	tex, err := r.backend.CreateTexture(renderer.TextureDesc{
		Label:  "Frame Output",
		Width:  width,
		Height: height,
		Format: renderer.FormatRGBA8Unorm,
		Usage:  renderer.TextureUsageSampled | renderer.TextureUsageStorage | renderer.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("failed to create frame output: %w", err)
	}
	if r.output != nil {
		r.output.Release()
	}
	r.output = tex
	return nil
}

// parallelFor calls fn for every index in [0, n) on the worker pool and waits for all calls.
// Without a pool, or for a single index, the loop runs on the calling goroutine.
func (r *Renderer) parallelFor(n int, fn func(i int)) {
	if r.pool == nil || n < 2 {
		for i := range n {
			fn(i)
		}
		return
	}
	// A WaitGroup is the per-loop barrier; the pool's own Wait blocks until workers idle out.
	var wg sync.WaitGroup
	chunk := int(common.DivCeil(uint32(n), uint32(r.workers)))
	for id, start := 0, 0; start < n; id, start = id+1, start+chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		r.pool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (any, error) {
				defer wg.Done()
				for i := start; i < end; i++ {
					fn(i)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
}

// Release destroys every pass, cache and buffer. The renderer cannot be used afterwards.
func (r *Renderer) Release() {
	if r.output != nil {
		r.output.Release()
		r.output = nil
	}
	r.lighting.Release()
	r.luminance.Release()
	r.bloom.Release()
	r.atlas.Release()
	r.gbuffer.Release()
	r.meshes.Release()
	r.cache.Purge()
	r.device.Release()
	r.arena.Release()
}
