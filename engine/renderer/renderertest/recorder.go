// Package renderertest provides an in-memory renderer.Backend that records every call, for
// testing passes without a GPU.
package renderertest

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// Call is one recorded backend, encoder or render pass operation.
type Call struct {
	// Op names the operation, e.g. "CreateTexture", "Dispatch" or "DrawIndexed".
	Op string
	// Label is the label of the resource, computation, program or pass involved.
	Label string
	// Groups holds the workgroup counts of a Dispatch.
	Groups [3]uint32
	// Count is the index count of DrawIndexed and the first index in First.
	Count uint32
	First uint32
	// Size is the byte count of buffer operations.
	Size uint64
	// Offset is the byte offset of WriteBuffer.
	Offset uint64
	// Bound maps binding names to resource labels for Dispatch and SetBindings.
	Bound map[string]string
}

// Texture is a recorded texture.
type Texture struct {
	desc     renderer.TextureDesc
	Released bool
}

// Buffer is a recorded buffer. Data holds everything written through WriteBuffer.
type Buffer struct {
	desc     renderer.BufferDesc
	Data     []byte
	Released bool
}

// Sampler is a recorded sampler.
type Sampler struct {
	desc renderer.SamplerDesc
}

// Recorder is a renderer.Backend recording every call in order.
type Recorder struct {
	mu       sync.Mutex
	calls    []Call
	textures []*Texture
	buffers  []*Buffer
	fail     map[string]error
	readback map[string][]byte
	format   renderer.TextureFormat
	width    int
	height   int
}

var _ renderer.Backend = &Recorder{}

// NewRecorder creates an empty recorder with a BGRA8 surface.
func NewRecorder() *Recorder {
	return &Recorder{
		fail:     make(map[string]error),
		readback: make(map[string][]byte),
		format:   renderer.FormatBGRA8Unorm,
	}
}

// FailOn makes every later call of op return err. A nil err clears the failure.
func (r *Recorder) FailOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

// SetReadback sets the bytes ReadBuffer returns for buffers with the given label.
func (r *Recorder) SetReadback(label string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readback[label] = data
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Ops returns the recorded operation names in order.
func (r *Recorder) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]string, len(r.calls))
	for i, c := range r.calls {
		ops[i] = c.Op
	}
	return ops
}

// Count returns how many times op was recorded.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Find returns the recorded calls of op.
func (r *Recorder) Find(op string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets the recorded calls. Resources stay alive.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// LiveTextures returns the number of textures created and not released.
func (r *Recorder) LiveTextures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.textures {
		if !t.Released {
			n++
		}
	}
	return n
}

// Buffer returns the most recent live buffer with a label, or nil.
func (r *Recorder) Buffer(label string) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.buffers) - 1; i >= 0; i-- {
		if b := r.buffers[i]; b.desc.Label == label && !b.Released {
			return b
		}
	}
	return nil
}

// Size returns the size passed to the last Resize.
func (r *Recorder) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[c.Op]; err != nil {
		return err
	}
	r.calls = append(r.calls, c)
	return nil
}

func (r *Recorder) CreateTexture(desc renderer.TextureDesc) (renderer.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("texture %q: zero size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if err := r.record(Call{Op: "CreateTexture", Label: desc.Label}); err != nil {
		return nil, err
	}
	if desc.Layers == 0 {
		desc.Layers = 1
	}
	t := &Texture{desc: desc}
	r.mu.Lock()
	r.textures = append(r.textures, t)
	r.mu.Unlock()
	return t, nil
}

func (r *Recorder) CreateBuffer(desc renderer.BufferDesc) (renderer.Buffer, error) {
	if err := r.record(Call{Op: "CreateBuffer", Label: desc.Label, Size: desc.Size}); err != nil {
		return nil, err
	}
	b := &Buffer{desc: desc, Data: make([]byte, desc.Size)}
	r.mu.Lock()
	r.buffers = append(r.buffers, b)
	r.mu.Unlock()
	return b, nil
}

func (r *Recorder) CreateSampler(desc renderer.SamplerDesc) (renderer.Sampler, error) {
	if err := r.record(Call{Op: "CreateSampler", Label: desc.Label}); err != nil {
		return nil, err
	}
	return &Sampler{desc: desc}, nil
}

func (r *Recorder) CreateComputation(name string, s shader.Shader) (*renderer.Computation, error) {
	if err := r.record(Call{Op: "CreateComputation", Label: name}); err != nil {
		return nil, err
	}
	return renderer.NewComputation(name, s, nil), nil
}

func (r *Recorder) CreateProgram(p pipeline.Pipeline) (*renderer.Program, error) {
	if err := r.record(Call{Op: "CreateProgram", Label: p.PipelineKey()}); err != nil {
		return nil, err
	}
	return renderer.NewProgram(p, nil), nil
}

func (r *Recorder) WriteBuffer(b renderer.Buffer, offset uint64, data []byte) error {
	if err := r.record(Call{Op: "WriteBuffer", Label: b.Label(), Size: uint64(len(data)), Offset: offset}); err != nil {
		return err
	}
	rb, ok := b.(*Buffer)
	if !ok || rb.Released {
		return fmt.Errorf("write %s: %w", b.Label(), renderer.ErrReleased)
	}
	if offset+uint64(len(data)) > uint64(len(rb.Data)) {
		return fmt.Errorf("write %s: %d bytes at %d overflow %d", b.Label(), len(data), offset, len(rb.Data))
	}
	copy(rb.Data[offset:], data)
	return nil
}

func (r *Recorder) WriteTexture(t renderer.Texture, data []byte) error {
	return r.record(Call{Op: "WriteTexture", Label: t.Label(), Size: uint64(len(data))})
}

func (r *Recorder) ReadBuffer(b renderer.Buffer) ([]byte, error) {
	if err := r.record(Call{Op: "ReadBuffer", Label: b.Label(), Size: b.Size()}); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if data, ok := r.readback[b.Label()]; ok {
		return append([]byte(nil), data...), nil
	}
	if rb, ok := b.(*Buffer); ok {
		return append([]byte(nil), rb.Data...), nil
	}
	return make([]byte, b.Size()), nil
}

func (r *Recorder) NewEncoder(label string) (renderer.Encoder, error) {
	if err := r.record(Call{Op: "NewEncoder", Label: label}); err != nil {
		return nil, err
	}
	return &encoder{r: r, label: label}, nil
}

func (r *Recorder) SurfaceFormat() renderer.TextureFormat {
	return r.format
}

func (r *Recorder) Present(src renderer.Texture) error {
	return r.record(Call{Op: "Present", Label: src.Label()})
}

func (r *Recorder) Resize(width, height int) {
	r.mu.Lock()
	r.width, r.height = width, height
	r.mu.Unlock()
	_ = r.record(Call{Op: "Resize"})
}

func (r *Recorder) Release() {
	_ = r.record(Call{Op: "Release"})
}

func (t *Texture) Label() string                   { return t.desc.Label }
func (t *Texture) Width() uint32                   { return t.desc.Width }
func (t *Texture) Height() uint32                  { return t.desc.Height }
func (t *Texture) Layers() uint32                  { return t.desc.Layers }
func (t *Texture) Format() renderer.TextureFormat  { return t.desc.Format }
func (t *Texture) Usage() renderer.TextureUsage    { return t.desc.Usage }
func (t *Texture) Release()                        { t.Released = true }
func (b *Buffer) Label() string                    { return b.desc.Label }
func (b *Buffer) Size() uint64                     { return b.desc.Size }
func (b *Buffer) Usage() renderer.BufferUsage      { return b.desc.Usage }
func (b *Buffer) Release()                         { b.Released = true }
func (s *Sampler) Label() string                   { return s.desc.Label }
func (s *Sampler) Filter() renderer.FilterMode     { return s.desc.Filter }
func (s *Sampler) Release()                        {}

type encoder struct {
	r      *Recorder
	label  string
	closed bool
}

func (e *encoder) BeginRenderPass(desc renderer.RenderPassDesc) (renderer.RenderPass, error) {
	for _, c := range desc.Color {
		if t, ok := c.Target.(*Texture); ok && t.Released {
			return nil, fmt.Errorf("render pass %s: %w", desc.Label, renderer.ErrReleased)
		}
	}
	if err := e.r.record(Call{Op: "BeginRenderPass", Label: desc.Label}); err != nil {
		return nil, err
	}
	return &renderPass{r: e.r}, nil
}

func (e *encoder) Dispatch(c *renderer.Computation, groups [3]uint32) error {
	if err := c.Bindings().Validate(); err != nil {
		return err
	}
	return e.r.record(Call{Op: "Dispatch", Label: c.Name(), Groups: groups, Bound: bound(c.Bindings())})
}

func (e *encoder) ClearBuffer(b renderer.Buffer) {
	if rb, ok := b.(*Buffer); ok {
		clear(rb.Data)
	}
	_ = e.r.record(Call{Op: "ClearBuffer", Label: b.Label(), Size: b.Size()})
}

func (e *encoder) CopyBuffer(src, dst renderer.Buffer, size uint64) {
	_ = e.r.record(Call{Op: "CopyBuffer", Label: src.Label() + "->" + dst.Label(), Size: size})
}

func (e *encoder) PushDebugGroup(label string) {
	_ = e.r.record(Call{Op: "PushDebugGroup", Label: label})
}

func (e *encoder) PopDebugGroup() {
	_ = e.r.record(Call{Op: "PopDebugGroup"})
}

func (e *encoder) Flush() error {
	return e.r.record(Call{Op: "Flush", Label: e.label})
}

func (e *encoder) Submit() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.r.record(Call{Op: "Submit", Label: e.label})
}

func (e *encoder) Release() {
	if e.closed {
		return
	}
	e.closed = true
	_ = e.r.record(Call{Op: "ReleaseEncoder", Label: e.label})
}

type renderPass struct {
	r       *Recorder
	program *renderer.Program
}

func (p *renderPass) SetProgram(prog *renderer.Program) {
	p.program = prog
	_ = p.r.record(Call{Op: "SetProgram", Label: prog.Name()})
}

func (p *renderPass) SetBindings(t *renderer.BindingTable) error {
	if err := t.Validate(); err != nil {
		return err
	}
	label := ""
	if p.program != nil {
		label = p.program.Name()
	}
	return p.r.record(Call{Op: "SetBindings", Label: label, Bound: bound(t)})
}

func (p *renderPass) SetViewport(x, y, width, height float32) {
	_ = p.r.record(Call{Op: "SetViewport"})
}

func (p *renderPass) SetMesh(vertices, indices renderer.Buffer) {
	_ = p.r.record(Call{Op: "SetMesh", Label: vertices.Label()})
}

func (p *renderPass) DrawIndexed(indexCount, firstIndex uint32) {
	_ = p.r.record(Call{Op: "DrawIndexed", Count: indexCount, First: firstIndex})
}

func (p *renderPass) DrawFullscreen() {
	_ = p.r.record(Call{Op: "DrawFullscreen"})
}

func (p *renderPass) End() {
	_ = p.r.record(Call{Op: "EndRenderPass"})
}

func bound(t *renderer.BindingTable) map[string]string {
	out := make(map[string]string)
	for i, b := range t.Bindings() {
		switch v := t.ResourceAt(i).(type) {
		case renderer.Texture:
			out[b.Name] = v.Label()
		case renderer.Buffer:
			out[b.Name] = v.Label()
		case renderer.BufferRange:
			out[b.Name] = v.Buffer.Label()
		case renderer.Sampler:
			out[b.Name] = v.Label()
		}
	}
	return out
}
