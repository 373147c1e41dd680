package renderer

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/*.wgsl
var assets embed.FS

// wgpuBackend implements Backend on WebGPU.
type wgpuBackend struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	alphaMode     wgpu.CompositeAlphaMode
	presentMode   wgpu.PresentMode

	// cacheMu guards the bind group cache and id counter; it never wraps a call that takes mu.
	cacheMu            *sync.Mutex
	nextID             uint64
	bindGroups         map[string]*wgpu.BindGroup
	bindGroupRefs      map[uint64][]string
	bindGroupCacheSize int

	shaders         *shader.Library
	present         *Program
	presentBindings *BindingTable
	presentSampler  Sampler
}

var _ Backend = &wgpuBackend{}

type wgpuTexture struct {
	id       uint64
	b        *wgpuBackend
	desc     TextureDesc
	texture  *wgpu.Texture
	views    map[viewKey]*wgpu.TextureView
	released bool
}

type viewKey struct {
	dimension wgpu.TextureViewDimension
	// layer is the single array layer of the view, or -1 for every layer.
	layer int
}

type wgpuBuffer struct {
	id       uint64
	b        *wgpuBackend
	desc     BufferDesc
	buffer   *wgpu.Buffer
	released bool
}

type wgpuSampler struct {
	id      uint64
	b       *wgpuBackend
	desc    SamplerDesc
	sampler *wgpu.Sampler
}

type wgpuProgram struct {
	id       uint64
	pipeline *wgpu.RenderPipeline
	layouts  []*wgpu.BindGroupLayout
}

type wgpuComputation struct {
	id       uint64
	pipeline *wgpu.ComputePipeline
	layouts  []*wgpu.BindGroupLayout
}

// newWGPUBackend requests an adapter compatible with the surface and opens the device.
//
// Parameters:
//   - surfaceDescriptor: the platform surface of the window
//   - cfg: options collected by NewBackend
//
// Returns:
//   - *wgpuBackend: the backend, surface not yet configured
//   - error: error if no adapter or device is available
func newWGPUBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, cfg *backendConfig) (*wgpuBackend, error) {
	runtime.LockOSThread()
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		return nil, err
	}
	b := &wgpuBackend{
		mu:                 &sync.Mutex{},
		cacheMu:            &sync.Mutex{},
		instance:           wgpu.CreateInstance(nil),
		presentMode:        wgpu.PresentModeFifo,
		bindGroups:         make(map[string]*wgpu.BindGroup),
		bindGroupRefs:      make(map[uint64][]string),
		bindGroupCacheSize: cfg.bindGroupCacheSize,
		shaders:            shader.NewLibrary("present", sub),
	}
	if cfg.presentMode == PresentModeUncapped {
		b.presentMode = wgpu.PresentModeImmediate
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	b.adapter, err = b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: cfg.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}

	// The light accumulation pass binds four groups; leave room for materials.
	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 8

	b.device, err = b.adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.queue = b.device.GetQueue()

	b.presentSampler, err = b.CreateSampler(SamplerDesc{Label: "Present Sampler", Filter: FilterLinear})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b *wgpuBackend) newID() uint64 {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	b.nextID++
	return b.nextID
}

func (b *wgpuBackend) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	capabilities := b.surface.GetCapabilities(b.adapter)
	format := capabilities.Formats[0]
	b.alphaMode = capabilities.AlphaModes[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   b.alphaMode,
	})

	if format != b.surfaceFormat || b.present == nil {
		b.surfaceFormat = format
		if err := b.buildPresentProgramLocked(); err != nil {
			logger.Errorf("failed to build present program: %v", err)
		}
	}
	logger.Debugf("surface configured %dx%d (%v)", width, height, format)
}

func (b *wgpuBackend) buildPresentProgramLocked() error {
	vs, err := b.shaders.Get("present", shader.ShaderTypeVertex)
	if err != nil {
		return err
	}
	fsh, err := b.shaders.Get("present", shader.ShaderTypeFragment)
	if err != nil {
		return err
	}
	p := pipeline.NewPipeline("Present",
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fsh),
		pipeline.WithColorTargets(b.surfaceFormat),
		pipeline.WithDepthFormat(wgpu.TextureFormatUndefined),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
	)
	prog, err := b.createProgramLocked(p)
	if err != nil {
		return err
	}
	b.present = prog
	b.presentBindings = prog.NewBindings()
	return nil
}

func (b *wgpuBackend) SurfaceFormat() TextureFormat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return FormatFromNative(b.surfaceFormat)
}

func (b *wgpuBackend) CreateTexture(desc TextureDesc) (Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q: zero size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if desc.Format == FormatUndefined {
		return nil, fmt.Errorf("texture %q: undefined format", desc.Label)
	}
	if desc.Layers == 0 {
		desc.Layers = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: desc.Layers,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        desc.Format.Native(),
		Usage:         desc.Usage.Native(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
	}
	return &wgpuTexture{
		id:      b.newID(),
		b:       b,
		desc:    desc,
		texture: tex,
		views:   make(map[viewKey]*wgpu.TextureView),
	}, nil
}

func (b *wgpuBackend) CreateBuffer(desc BufferDesc) (Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer %q: zero size", desc.Label)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	// Buffer sizes must be a multiple of four for writes and copies.
	size := (desc.Size + 3) &^ 3
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            desc.Label,
		Size:             size,
		Usage:            desc.Usage.Native(),
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", desc.Label, err)
	}
	desc.Size = size
	return &wgpuBuffer{id: b.newID(), b: b, desc: desc, buffer: buf}, nil
}

func (b *wgpuBackend) CreateSampler(desc SamplerDesc) (Sampler, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	filter := wgpu.FilterModeLinear
	if desc.Filter == FilterNearest {
		filter = wgpu.FilterModeNearest
	}
	address := wgpu.AddressModeClampToEdge
	if desc.Address == AddressRepeat {
		address = wgpu.AddressModeRepeat
	}
	samp, err := b.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         desc.Label,
		AddressModeU:  address,
		AddressModeV:  address,
		AddressModeW:  address,
		MagFilter:     filter,
		MinFilter:     filter,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler %q: %w", desc.Label, err)
	}
	return &wgpuSampler{id: b.newID(), b: b, desc: desc, sampler: samp}, nil
}

func (b *wgpuBackend) CreateComputation(name string, s shader.Shader) (*Computation, error) {
	if s == nil || s.ShaderType() != shader.ShaderTypeCompute {
		return nil, errors.New("compute shader must be set to create a computation")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	module, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		return nil, fmt.Errorf("computation %s: %w", name, err)
	}
	defer module.Release()

	layouts, err := b.createBindGroupLayouts(s.BindGroupLayoutDescriptors())
	if err != nil {
		return nil, fmt.Errorf("computation %s: %w", name, err)
	}
	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            name,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("computation %s: %w", name, err)
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  name + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: s.EntryPoint(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("computation %s: %w", name, err)
	}
	return NewComputation(name, s, &wgpuComputation{id: b.newID(), pipeline: created, layouts: layouts}), nil
}

func (b *wgpuBackend) CreateProgram(p pipeline.Pipeline) (*Program, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createProgramLocked(p)
}

func (b *wgpuBackend) createProgramLocked(p pipeline.Pipeline) (*Program, error) {
	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if vertexShader == nil || fragmentShader == nil {
		return nil, errors.New("both vertex and fragment shaders must be set to create a program")
	}

	vs, err := b.device.CreateShaderModule(vertexShader.Module())
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", p.PipelineKey(), err)
	}
	defer vs.Release()
	fs, err := b.device.CreateShaderModule(fragmentShader.Module())
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", p.PipelineKey(), err)
	}
	defer fs.Release()

	merged := mergeBindGroupLayouts(vertexShader.BindGroupLayoutDescriptors(), fragmentShader.BindGroupLayoutDescriptors())
	layouts, err := b.createBindGroupLayouts(merged)
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", p.PipelineKey(), err)
	}
	pipelineLayout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", p.PipelineKey(), err)
	}

	vertexLayouts := make([]wgpu.VertexBufferLayout, 0, len(vertexShader.VertexLayouts()))
	for i := range len(vertexShader.VertexLayouts()) {
		vertexLayouts = append(vertexLayouts, vertexShader.VertexLayout(i)...)
	}

	targets := make([]wgpu.ColorTargetState, 0, len(p.ColorTargets()))
	for _, format := range p.ColorTargets() {
		state := wgpu.ColorTargetState{
			Format:    format,
			WriteMask: p.WriteMask(),
		}
		if p.BlendEnabled() {
			state.Blend = p.BlendState()
		}
		targets = append(targets, state)
	}

	var depthStencil *wgpu.DepthStencilState
	if p.DepthFormat() != wgpu.TextureFormatUndefined {
		depthStencil = &wgpu.DepthStencilState{
			Format:              p.DepthFormat(),
			DepthWriteEnabled:   p.DepthWriteEnabled(),
			DepthCompare:        p.DepthCompare(),
			DepthBias:           p.DepthBias(),
			DepthBiasSlopeScale: p.DepthBiasSlopeScale(),
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return nil, fmt.Errorf("program %s: %w", p.PipelineKey(), err)
	}
	return NewProgram(p, &wgpuProgram{id: b.newID(), pipeline: created, layouts: layouts}), nil
}

// createBindGroupLayouts creates one layout per group index, in index order.
func (b *wgpuBackend) createBindGroupLayouts(descriptors map[int]wgpu.BindGroupLayoutDescriptor) ([]*wgpu.BindGroupLayout, error) {
	maxGroup := -1
	for g := range descriptors {
		maxGroup = max(maxGroup, g)
	}
	layouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for g := 0; g <= maxGroup; g++ {
		desc := descriptors[g]
		layout, err := b.device.CreateBindGroupLayout(&desc)
		if err != nil {
			return nil, fmt.Errorf("failed to create bind group layout for group %d: %w", g, err)
		}
		layouts[g] = layout
	}
	return layouts, nil
}

func (b *wgpuBackend) WriteBuffer(buf Buffer, offset uint64, data []byte) error {
	wb, ok := buf.(*wgpuBuffer)
	if !ok || wb.released {
		return fmt.Errorf("write %s: %w", buf.Label(), ErrReleased)
	}
	// Queue writes must be a multiple of four bytes.
	if pad := len(data) % 4; pad != 0 {
		data = append(append([]byte(nil), data...), make([]byte, 4-pad)...)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.WriteBuffer(wb.buffer, offset, data)
}

func (b *wgpuBackend) WriteTexture(t Texture, data []byte) error {
	wt, ok := t.(*wgpuTexture)
	if !ok || wt.released {
		return fmt.Errorf("write %s: %w", t.Label(), ErrReleased)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  wt.texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  wt.desc.Width * wt.desc.Format.BytesPerTexel(),
			RowsPerImage: wt.desc.Height,
		},
		&wgpu.Extent3D{
			Width:              wt.desc.Width,
			Height:             wt.desc.Height,
			DepthOrArrayLayers: 1,
		},
	)
}

func (b *wgpuBackend) ReadBuffer(buf Buffer) ([]byte, error) {
	wb, ok := buf.(*wgpuBuffer)
	if !ok || wb.released {
		return nil, fmt.Errorf("read %s: %w", buf.Label(), ErrReleased)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	size := wb.desc.Size
	done := false
	var status wgpu.BufferMapAsyncStatus
	err := wb.buffer.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", wb.desc.Label, err)
	}
	for !done {
		b.device.Poll(true, nil)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("failed to map %s: status %v", wb.desc.Label, status)
	}
	out := make([]byte, size)
	copy(out, wb.buffer.GetMappedRange(0, uint(size)))
	wb.buffer.Unmap()
	return out, nil
}

func (b *wgpuBackend) NewEncoder(label string) (Encoder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	enc, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder %q: %w", label, err)
	}
	return &wgpuEncoder{b: b, label: label, enc: enc}, nil
}

func (b *wgpuBackend) Present(src Texture) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.present == nil {
		return errors.New("surface is not configured")
	}
	if err := b.presentBindings.SetInput("source", src); err != nil {
		return err
	}
	if err := b.presentBindings.SetInput("source_sampler", b.presentSampler); err != nil {
		return err
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("failed to acquire surface texture: %w", err)
	}
	defer surfaceTexture.Release()
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("failed to create surface view: %w", err)
	}
	defer view.Release()

	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "Present"})
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
			},
		},
	})
	native := b.present.Native().(*wgpuProgram)
	pass.SetPipeline(native.pipeline)
	for _, g := range b.presentBindings.Groups() {
		bg, bgErr := b.bindGroup(native.id, native.layouts, b.presentBindings, g)
		if bgErr != nil {
			pass.End()
			return bgErr
		}
		pass.SetBindGroup(uint32(g), bg, nil)
	}
	pass.Draw(3, 1, 0, 0)
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("failed to finish present: %w", err)
	}
	defer commandBuffer.Release()
	b.queue.Submit(commandBuffer)
	b.surface.Present()
	return nil
}

func (b *wgpuBackend) Release() {
	b.cacheMu.Lock()
	for key, bg := range b.bindGroups {
		bg.Release()
		delete(b.bindGroups, key)
	}
	b.cacheMu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// bindGroup returns the bind group of one group of a binding table, creating and caching it
// on first use. Entries are keyed by resource identity and buffer window, so switching a
// binding back to a previous resource reuses the old bind group.
func (b *wgpuBackend) bindGroup(owner uint64, layouts []*wgpu.BindGroupLayout, t *BindingTable, group int) (*wgpu.BindGroup, error) {
	if group >= len(layouts) || layouts[group] == nil {
		return nil, fmt.Errorf("no bind group layout for group %d", group)
	}

	var key strings.Builder
	key.WriteString(strconv.FormatUint(owner, 10))
	key.WriteByte('/')
	key.WriteString(strconv.Itoa(group))

	var ids []uint64
	var entries []wgpu.BindGroupEntry
	for i, binding := range t.Bindings() {
		if binding.Group != group {
			continue
		}
		r := t.ResourceAt(i)
		if r == nil {
			return nil, fmt.Errorf("%w: %q", ErrMissingBinding, binding.Name)
		}
		entry := wgpu.BindGroupEntry{Binding: uint32(binding.Binding)}
		var id uint64
		switch v := r.(type) {
		case *wgpuTexture:
			view, err := v.view(binding.ViewDimension, -1)
			if err != nil {
				return nil, err
			}
			entry.TextureView = view
			id = v.id
		case *wgpuSampler:
			entry.Sampler = v.sampler
			id = v.id
		default:
			window, ok := BufferOf(r)
			if !ok {
				return nil, fmt.Errorf("%w: %q got %T", ErrBindingKind, binding.Name, r)
			}
			wb, ok := window.Buffer.(*wgpuBuffer)
			if !ok || wb.released {
				return nil, fmt.Errorf("binding %q: %w", binding.Name, ErrReleased)
			}
			entry.Buffer = wb.buffer
			entry.Offset = window.Offset
			entry.Size = window.Size
			id = wb.id
			key.WriteString(fmt.Sprintf(":%d+%d", window.Offset, window.Size))
		}
		key.WriteString(fmt.Sprintf("|%d=%d", binding.Binding, id))
		ids = append(ids, id)
		entries = append(entries, entry)
	}

	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	k := key.String()
	if bg, ok := b.bindGroups[k]; ok {
		return bg, nil
	}
	if b.bindGroupCacheSize > 0 && len(b.bindGroups) >= b.bindGroupCacheSize {
		logger.Debugf("bind group cache full (%d), clearing", len(b.bindGroups))
		for ck, bg := range b.bindGroups {
			bg.Release()
			delete(b.bindGroups, ck)
		}
		b.bindGroupRefs = make(map[uint64][]string)
	}
	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   k,
		Layout:  layouts[group],
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %d: %w", group, err)
	}
	b.bindGroups[k] = bg
	for _, id := range ids {
		b.bindGroupRefs[id] = append(b.bindGroupRefs[id], k)
	}
	return bg, nil
}

// forget drops every cached bind group referencing a released resource.
func (b *wgpuBackend) forget(id uint64) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	for _, k := range b.bindGroupRefs[id] {
		if bg, ok := b.bindGroups[k]; ok {
			bg.Release()
			delete(b.bindGroups, k)
		}
	}
	delete(b.bindGroupRefs, id)
}

func (t *wgpuTexture) Label() string         { return t.desc.Label }
func (t *wgpuTexture) Width() uint32         { return t.desc.Width }
func (t *wgpuTexture) Height() uint32        { return t.desc.Height }
func (t *wgpuTexture) Layers() uint32        { return t.desc.Layers }
func (t *wgpuTexture) Format() TextureFormat { return t.desc.Format }
func (t *wgpuTexture) Usage() TextureUsage   { return t.desc.Usage }

// view returns a cached texture view. A layer of -1 covers every layer of an array view,
// or layer 0 of a 2D view.
func (t *wgpuTexture) view(dimension wgpu.TextureViewDimension, layer int) (*wgpu.TextureView, error) {
	if t.released {
		return nil, fmt.Errorf("view of %s: %w", t.desc.Label, ErrReleased)
	}
	if dimension == wgpu.TextureViewDimensionUndefined {
		dimension = wgpu.TextureViewDimension2D
	}
	key := viewKey{dimension: dimension, layer: layer}
	if v, ok := t.views[key]; ok {
		return v, nil
	}
	base, count := uint32(0), uint32(1)
	switch {
	case layer >= 0:
		base = uint32(layer)
	case dimension == wgpu.TextureViewDimension2DArray:
		count = t.desc.Layers
	}
	v, err := t.texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           t.desc.Label,
		Format:          t.desc.Format.Native(),
		Dimension:       dimension,
		BaseMipLevel:    0,
		MipLevelCount:   1,
		BaseArrayLayer:  base,
		ArrayLayerCount: count,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create view of %s: %w", t.desc.Label, err)
	}
	t.views[key] = v
	return v, nil
}

func (t *wgpuTexture) Release() {
	if t.released {
		return
	}
	t.released = true
	t.b.forget(t.id)
	for _, v := range t.views {
		v.Release()
	}
	t.views = nil
	t.texture.Release()
}

func (buf *wgpuBuffer) Label() string      { return buf.desc.Label }
func (buf *wgpuBuffer) Size() uint64       { return buf.desc.Size }
func (buf *wgpuBuffer) Usage() BufferUsage { return buf.desc.Usage }

func (buf *wgpuBuffer) Release() {
	if buf.released {
		return
	}
	buf.released = true
	buf.b.forget(buf.id)
	buf.buffer.Release()
}

func (s *wgpuSampler) Label() string      { return s.desc.Label }
func (s *wgpuSampler) Filter() FilterMode { return s.desc.Filter }

func (s *wgpuSampler) Release() {
	s.b.forget(s.id)
	s.sampler.Release()
}

// wgpuEncoder records into one command encoder, replaced on Flush.
type wgpuEncoder struct {
	b     *wgpuBackend
	label string
	enc   *wgpu.CommandEncoder
}

var _ Encoder = &wgpuEncoder{}

func (e *wgpuEncoder) BeginRenderPass(desc RenderPassDesc) (RenderPass, error) {
	colors := make([]wgpu.RenderPassColorAttachment, 0, len(desc.Color))
	for _, c := range desc.Color {
		wt, ok := c.Target.(*wgpuTexture)
		if !ok {
			return nil, fmt.Errorf("render pass %s: color target is not a wgpu texture", desc.Label)
		}
		view, err := wt.view(wgpu.TextureViewDimension2D, int(c.Layer))
		if err != nil {
			return nil, err
		}
		attachment := wgpu.RenderPassColorAttachment{
			View:    view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}
		if c.Clear != nil {
			attachment.LoadOp = wgpu.LoadOpClear
			attachment.ClearValue = wgpu.Color{
				R: float64(c.Clear[0]), G: float64(c.Clear[1]), B: float64(c.Clear[2]), A: float64(c.Clear[3]),
			}
		}
		colors = append(colors, attachment)
	}

	descriptor := &wgpu.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: colors,
	}
	if desc.Depth != nil {
		wt, ok := desc.Depth.Target.(*wgpuTexture)
		if !ok {
			return nil, fmt.Errorf("render pass %s: depth target is not a wgpu texture", desc.Label)
		}
		view, err := wt.view(wgpu.TextureViewDimension2D, 0)
		if err != nil {
			return nil, err
		}
		depth := &wgpu.RenderPassDepthStencilAttachment{
			View:         view,
			DepthLoadOp:  wgpu.LoadOpLoad,
			DepthStoreOp: wgpu.StoreOpStore,
		}
		if desc.Depth.Clear != nil {
			depth.DepthLoadOp = wgpu.LoadOpClear
			depth.DepthClearValue = *desc.Depth.Clear
		}
		descriptor.DepthStencilAttachment = depth
	}

	return &wgpuRenderPass{e: e, pass: e.enc.BeginRenderPass(descriptor)}, nil
}

func (e *wgpuEncoder) Dispatch(c *Computation, groups [3]uint32) error {
	native, ok := c.Native().(*wgpuComputation)
	if !ok {
		return fmt.Errorf("computation %s was not created by this backend", c.Name())
	}
	pass := e.enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: c.Name()})
	pass.SetPipeline(native.pipeline)
	for _, g := range c.Bindings().Groups() {
		bg, err := e.b.bindGroup(native.id, native.layouts, c.Bindings(), g)
		if err != nil {
			pass.End()
			return fmt.Errorf("computation %s: %w", c.Name(), err)
		}
		pass.SetBindGroup(uint32(g), bg, nil)
	}
	pass.DispatchWorkgroups(groups[0], groups[1], groups[2])
	pass.End()
	return nil
}

func (e *wgpuEncoder) ClearBuffer(buf Buffer) {
	if wb, ok := buf.(*wgpuBuffer); ok && !wb.released {
		if err := e.enc.ClearBuffer(wb.buffer, 0, wb.desc.Size); err != nil {
			logger.Errorf("failed to clear %s: %v", wb.desc.Label, err)
		}
	}
}

func (e *wgpuEncoder) CopyBuffer(src, dst Buffer, size uint64) {
	s, ok := src.(*wgpuBuffer)
	d, ok2 := dst.(*wgpuBuffer)
	if !ok || !ok2 || s.released || d.released {
		return
	}
	if err := e.enc.CopyBufferToBuffer(s.buffer, 0, d.buffer, 0, size); err != nil {
		logger.Errorf("failed to copy %s to %s: %v", s.desc.Label, d.desc.Label, err)
	}
}

func (e *wgpuEncoder) PushDebugGroup(label string) {
	e.enc.PushDebugGroup(label)
}

func (e *wgpuEncoder) PopDebugGroup() {
	e.enc.PopDebugGroup()
}

func (e *wgpuEncoder) submit() error {
	commandBuffer, err := e.enc.Finish(nil)
	e.enc.Release()
	e.enc = nil
	if err != nil {
		return fmt.Errorf("failed to finish %s: %w", e.label, err)
	}
	defer commandBuffer.Release()

	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	e.b.queue.Submit(commandBuffer)
	return nil
}

func (e *wgpuEncoder) Flush() error {
	if err := e.submit(); err != nil {
		return err
	}
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	enc, err := e.b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: e.label})
	if err != nil {
		return fmt.Errorf("failed to reopen encoder %q: %w", e.label, err)
	}
	e.enc = enc
	return nil
}

func (e *wgpuEncoder) Submit() error {
	if e.enc == nil {
		return nil
	}
	return e.submit()
}

func (e *wgpuEncoder) Release() {
	if e.enc == nil {
		return
	}
	e.enc.Release()
	e.enc = nil
}

type wgpuRenderPass struct {
	e       *wgpuEncoder
	pass    *wgpu.RenderPassEncoder
	program *Program
}

var _ RenderPass = &wgpuRenderPass{}

func (p *wgpuRenderPass) SetProgram(prog *Program) {
	p.program = prog
	if native, ok := prog.Native().(*wgpuProgram); ok {
		p.pass.SetPipeline(native.pipeline)
	}
}

func (p *wgpuRenderPass) SetBindings(t *BindingTable) error {
	if p.program == nil {
		return errors.New("render pass: SetBindings before SetProgram")
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("program %s: %w", p.program.Name(), err)
	}
	native := p.program.Native().(*wgpuProgram)
	for _, g := range t.Groups() {
		bg, err := p.e.b.bindGroup(native.id, native.layouts, t, g)
		if err != nil {
			return fmt.Errorf("program %s: %w", p.program.Name(), err)
		}
		p.pass.SetBindGroup(uint32(g), bg, nil)
	}
	return nil
}

func (p *wgpuRenderPass) SetViewport(x, y, width, height float32) {
	p.pass.SetViewport(x, y, width, height, 0, 1)
}

func (p *wgpuRenderPass) SetMesh(vertices, indices Buffer) {
	if vb, ok := vertices.(*wgpuBuffer); ok {
		p.pass.SetVertexBuffer(0, vb.buffer, 0, wgpu.WholeSize)
	}
	if ib, ok := indices.(*wgpuBuffer); ok {
		p.pass.SetIndexBuffer(ib.buffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	}
}

func (p *wgpuRenderPass) DrawIndexed(indexCount, firstIndex uint32) {
	p.pass.DrawIndexed(indexCount, 1, firstIndex, 0, 0)
}

func (p *wgpuRenderPass) DrawFullscreen() {
	p.pass.Draw(3, 1, 0, 0)
}

func (p *wgpuRenderPass) End() {
	p.pass.End()
	p.pass.Release()
}

// mergeBindGroupLayouts merges the bind group layout descriptors from a vertex and fragment shader
// into a unified set of descriptors suitable for a render pipeline layout.
//
// For each group index present in either shader:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one shader are included with their original visibility
//
// Parameters:
//   - vertexLayouts: bind group layout descriptors from the vertex shader
//   - fragmentLayouts: bind group layout descriptors from the fragment shader
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(
	vertexLayouts, fragmentLayouts map[int]wgpu.BindGroupLayoutDescriptor,
) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)

	groupIndices := make(map[int]bool)
	for g := range vertexLayouts {
		groupIndices[g] = true
	}
	for g := range fragmentLayouts {
		groupIndices[g] = true
	}

	for g := range groupIndices {
		vDesc, hasV := vertexLayouts[g]
		fDesc, hasF := fragmentLayouts[g]

		switch {
		case hasV && !hasF:
			merged[g] = vDesc
		case hasF && !hasV:
			merged[g] = fDesc
		default:
			entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
			for _, e := range vDesc.Entries {
				entryMap[e.Binding] = e
			}
			for _, e := range fDesc.Entries {
				if existing, ok := entryMap[e.Binding]; ok {
					existing.Visibility |= e.Visibility
					entryMap[e.Binding] = existing
				} else {
					entryMap[e.Binding] = e
				}
			}

			entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
			for _, e := range entryMap {
				entries = append(entries, e)
			}
			sort.Slice(entries, func(i, j int) bool {
				return entries[i].Binding < entries[j].Binding
			})

			merged[g] = wgpu.BindGroupLayoutDescriptor{
				Label:   vDesc.Label,
				Entries: entries,
			}
		}
	}

	return merged
}
