package deferred

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/fx"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
)

// LightStats counts the lights of the last accumulation.
type LightStats struct {
	// PointLights and DirectionalLights are the lights uploaded to the GPU arrays.
	PointLights       int
	DirectionalLights int
	// Dropped is the number of visible lights that did not fit the arrays.
	Dropped int
}

// candidate is a visible light aspect and the node hosting it.
type candidate struct {
	node     scene.Node
	light    light.Light
	distance float32
}

// Lighting is the light accumulation pass. It fills the per-frame light and shadow arrays,
// renders the shadow maps into the atlas and dispatches the compute shader that shades every
// GBuffer pixel into the light buffer.
type Lighting struct {
	device   *fx.Device
	atlas    *shadow.Atlas
	overflow string

	comp    *renderer.Computation
	version uint64

	pointLights        renderer.Buffer
	directionalLights  renderer.Buffer
	pointShadows       renderer.Buffer
	directionalShadows renderer.Buffer

	output renderer.Texture
	stats  LightStats

	gpuPoints       []light.GPUPointLight
	gpuDirectionals []light.GPUDirectionalLight
	pointEntries    []light.GPUPointShadow
	dirEntries      []light.GPUDirectionalShadow
}

// NewLighting creates the light and shadow storage arrays.
//
// Parameters:
//   - device: the effect context providing the backend, arena, cache and sampler
//   - atlas: the shadow atlas the lights render into
//   - overflow: config.OverflowFirst or config.OverflowNearest
//
// Returns:
//   - *Lighting: the pass
//   - error: error if a buffer cannot be created
func NewLighting(device *fx.Device, atlas *shadow.Atlas, overflow string) (*Lighting, error) {
	l := &Lighting{
		device:          device,
		atlas:           atlas,
		overflow:        overflow,
		gpuPoints:       make([]light.GPUPointLight, 0, light.Capacity),
		gpuDirectionals: make([]light.GPUDirectionalLight, 0, light.Capacity),
		pointEntries:    make([]light.GPUPointShadow, light.Capacity),
		dirEntries:      make([]light.GPUDirectionalShadow, light.Capacity),
	}
	arrays := []struct {
		dst    *renderer.Buffer
		label  string
		stride int
	}{
		{&l.pointLights, "Point Lights", (&light.GPUPointLight{}).Size()},
		{&l.directionalLights, "Directional Lights", (&light.GPUDirectionalLight{}).Size()},
		{&l.pointShadows, "Point Shadows", (&light.GPUPointShadow{}).Size()},
		{&l.directionalShadows, "Directional Shadows", (&light.GPUDirectionalShadow{}).Size()},
	}
	for _, a := range arrays {
		buf, err := device.Backend().CreateBuffer(renderer.BufferDesc{
			Label: a.label,
			Size:  uint64(light.Capacity * a.stride),
			Usage: renderer.BufferUsageStorage | renderer.BufferUsageCopyDst,
		})
		if err != nil {
			l.Release()
			return nil, fmt.Errorf("failed to create %s: %w", a.label, err)
		}
		*a.dst = buf
	}
	return l, nil
}

// SetOverflow selects which lights survive when more than light.Capacity of a kind are visible.
func (l *Lighting) SetOverflow(policy string) {
	l.overflow = policy
}

// Stats returns the light counts of the last accumulation.
func (l *Lighting) Stats() LightStats {
	return l.stats
}

// computation returns the lighting computation, rebuilding it after a shader change.
func (l *Lighting) computation() (*renderer.Computation, error) {
	if v := shaders.Version(); l.comp != nil && v == l.version {
		return l.comp, nil
	}
	cs, err := shaders.Get("lighting", shader.ShaderTypeCompute)
	if err != nil {
		return nil, err
	}
	c, err := l.device.Backend().CreateComputation("Light Accumulation", cs)
	if err != nil {
		return nil, fmt.Errorf("failed to create light accumulation: %w", err)
	}
	l.comp = c
	l.version = shaders.Version()
	return c, nil
}

// AccumulateLight shades the GBuffer with every visible light into a fresh light buffer.
//
// The previous light buffer is returned to the cache, the atlas is reset, each kept light
// fills the next slot of its array and requests its shadow map, the arrays and the parameter
// block are uploaded and the atlas is committed before the dispatch binds it. The dispatch
// covers the output with one thread per pixel.
//
// Parameters:
//   - enc: the frame encoder
//   - frame: the frame being drawn
//   - gbuf: the GBuffer drawn this frame
//
// Returns:
//   - renderer.Texture: the RGBA16Float light buffer, owned by the cache
//   - error: error if a resource cannot be acquired, a shadow map fails or the dispatch fails
func (l *Lighting) AccumulateLight(enc renderer.Encoder, frame *FrameInfo, gbuf *GBuffer) (renderer.Texture, error) {
	comp, err := l.computation()
	if err != nil {
		return nil, err
	}
	cache := l.device.Cache()
	cache.Release(l.output)
	l.output, err = cache.Acquire(renderer.TextureDesc{
		Label:  "Light Buffer",
		Width:  frame.Width,
		Height: frame.Height,
		Format: renderer.FormatRGBA16Float,
		Usage:  renderer.TextureUsageSampled | renderer.TextureUsageStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire light buffer: %w", err)
	}

	enc.PushDebugGroup("Lighting")
	defer enc.PopDebugGroup()

	l.atlas.Begin(enc)
	points, directionals, dropped := l.gather(frame)
	l.stats = LightStats{PointLights: len(points), DirectionalLights: len(directionals), Dropped: dropped}

	l.gpuPoints = l.gpuPoints[:0]
	for i, c := range points {
		l.gpuPoints = append(l.gpuPoints, light.ToGPUPoint(c.light, c.node.Position(), c.light.Range()))
		if _, err := l.atlas.ComputePointShadow(c.light, c.node, frame.Query, &l.pointEntries[i]); err != nil {
			return nil, fmt.Errorf("point light %s: %w", c.node.Name(), err)
		}
	}
	view := frame.CameraView()
	l.gpuDirectionals = l.gpuDirectionals[:0]
	for i, c := range directionals {
		l.gpuDirectionals = append(l.gpuDirectionals, light.ToGPUDirectional(c.light, common.Normalize3(c.node.Forward())))
		if _, err := l.atlas.ComputeDirectionalShadow(c.light, c.node, view, frame.Query, &l.dirEntries[i]); err != nil {
			return nil, fmt.Errorf("directional light %s: %w", c.node.Name(), err)
		}
	}

	if err := l.upload(points, directionals); err != nil {
		return nil, err
	}
	params := light.GPULightParams{
		InvViewProj:      frame.InvViewProj,
		CameraPosition:   frame.CameraPosition(),
		PointCount:       uint32(len(points)),
		DirectionalCount: uint32(len(directionals)),
		AtlasSize:        float32(l.atlas.Allocator().Size()),
		Width:            frame.Width,
		Height:           frame.Height,
	}
	paramRange, err := l.device.Arena().Allocate(params.Marshal())
	if err != nil {
		return nil, err
	}

	l.atlas.Commit()
	atlasTex, err := l.atlas.Texture()
	if err != nil {
		return nil, err
	}
	if err := l.bind(comp, paramRange, gbuf, atlasTex); err != nil {
		return nil, fmt.Errorf("light accumulation: %w", err)
	}
	if err := comp.Dispatch(enc, frame.Width, frame.Height, 1); err != nil {
		return nil, fmt.Errorf("light accumulation: %w", err)
	}
	return l.output, nil
}

// gather collects the enabled lights of the visible light nodes and truncates each kind to
// light.Capacity according to the overflow policy.
func (l *Lighting) gather(frame *FrameInfo) ([]candidate, []candidate, int) {
	eye := frame.CameraPosition()
	var points, directionals []candidate
	for _, n := range frame.Query.LightNodes(&frame.Frustum) {
		for _, lt := range scene.AspectsOf[light.Light](n) {
			if !lt.Enabled() {
				continue
			}
			switch lt.Type() {
			case light.LightTypePoint:
				p := n.Position()
				d := [3]float32{p[0] - eye[0], p[1] - eye[1], p[2] - eye[2]}
				points = append(points, candidate{node: n, light: lt, distance: common.Dot3(d, d)})
			case light.LightTypeDirectional:
				directionals = append(directionals, candidate{node: n, light: lt})
			}
		}
	}

	dropped := 0
	if len(points) > light.Capacity {
		if l.overflow == config.OverflowNearest {
			slices.SortStableFunc(points, func(a, b candidate) int {
				return cmp.Compare(a.distance, b.distance)
			})
		}
		dropped += len(points) - light.Capacity
		points = points[:light.Capacity]
	}
	if len(directionals) > light.Capacity {
		dropped += len(directionals) - light.Capacity
		directionals = directionals[:light.Capacity]
	}
	return points, directionals, dropped
}

// upload writes the light and shadow arrays. Slots past the light counts are zero.
func (l *Lighting) upload(points, directionals []candidate) error {
	backend := l.device.Backend()
	writes := []struct {
		dst  renderer.Buffer
		data []byte
	}{
		{l.pointLights, light.MarshalPointLights(l.gpuPoints)},
		{l.directionalLights, light.MarshalDirectionalLights(l.gpuDirectionals)},
		{l.pointShadows, light.MarshalPointShadows(l.pointEntries[:len(points)])},
		{l.directionalShadows, light.MarshalDirectionalShadows(l.dirEntries[:len(directionals)])},
	}
	for _, w := range writes {
		if err := backend.WriteBuffer(w.dst, 0, w.data); err != nil {
			return fmt.Errorf("failed to upload %s: %w", w.dst.Label(), err)
		}
	}
	return nil
}

// bind sets every input and the output of the lighting computation.
func (l *Lighting) bind(comp *renderer.Computation, params renderer.BufferRange, gbuf *GBuffer, atlas renderer.Texture) error {
	if err := comp.SetUniform("params", params); err != nil {
		return err
	}
	inputs := []struct {
		name string
		r    any
	}{
		{"point_lights", l.pointLights},
		{"directional_lights", l.directionalLights},
		{"point_shadows", l.pointShadows},
		{"directional_shadows", l.directionalShadows},
		{"albedo", gbuf.Albedo()},
		{"normals", gbuf.Normal()},
		{"depth", gbuf.Depth()},
		{"atlas", atlas},
		{"atlas_sampler", l.device.Sampler()},
	}
	for _, in := range inputs {
		if err := comp.SetInput(in.name, in.r); err != nil {
			return fmt.Errorf("%s: %w", in.name, err)
		}
	}
	return comp.SetOutput("light_buffer", l.output)
}

// Release returns the light buffer to the cache and destroys the arrays.
func (l *Lighting) Release() {
	if l.output != nil {
		l.device.Cache().Release(l.output)
		l.output = nil
	}
	for _, b := range []renderer.Buffer{l.pointLights, l.directionalLights, l.pointShadows, l.directionalShadows} {
		if b != nil {
			b.Release()
		}
	}
}
