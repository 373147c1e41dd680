// Package renderer defines the GPU capability surface consumed by the render passes: resources
// (textures, buffers, samplers), programs, computations and command encoders. The wgpu backend
// implements it on top of WebGPU; renderertest implements it as an in-memory recorder.
package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/log"
	"github.com/cogentcore/webgpu/wgpu"
)

var logger = log.New("renderer")

// ErrReleased is returned when a released resource is used.
var ErrReleased = errors.New("renderer: resource already released")

// TextureFormat is the closed set of texel formats the engine allocates.
type TextureFormat int

const (
	// FormatUndefined is the zero value and never valid for allocation.
	FormatUndefined TextureFormat = iota
	// FormatRGBA8Unorm is the display-referred output format of the tonemapper.
	FormatRGBA8Unorm
	// FormatBGRA8Unorm is the usual swapchain format.
	FormatBGRA8Unorm
	// FormatRGBA16Float holds HDR color, GBuffer attributes and shadow moments.
	FormatRGBA16Float
	// FormatRGBA32Float is a full precision color format.
	FormatRGBA32Float
	// FormatR32Float is a single channel float format.
	FormatR32Float
	// FormatDepth32Float is the depth format of the GBuffer and shadow caster passes.
	FormatDepth32Float
)

type formatInfo struct {
	name   string
	native wgpu.TextureFormat
	bytes  uint32
	depth  bool
}

var formatTable = map[TextureFormat]formatInfo{
	FormatRGBA8Unorm:   {"rgba8unorm", wgpu.TextureFormatRGBA8Unorm, 4, false},
	FormatBGRA8Unorm:   {"bgra8unorm", wgpu.TextureFormatBGRA8Unorm, 4, false},
	FormatRGBA16Float:  {"rgba16float", wgpu.TextureFormatRGBA16Float, 8, false},
	FormatRGBA32Float:  {"rgba32float", wgpu.TextureFormatRGBA32Float, 16, false},
	FormatR32Float:     {"r32float", wgpu.TextureFormatR32Float, 4, false},
	FormatDepth32Float: {"depth32float", wgpu.TextureFormatDepth32Float, 4, true},
}

// String returns the WGSL name of the format.
func (f TextureFormat) String() string {
	if info, ok := formatTable[f]; ok {
		return info.name
	}
	return "undefined"
}

// Native returns the WebGPU format.
func (f TextureFormat) Native() wgpu.TextureFormat {
	return formatTable[f].native
}

// BytesPerTexel returns the size of one texel in bytes, or 0 for an undefined format.
func (f TextureFormat) BytesPerTexel() uint32 {
	return formatTable[f].bytes
}

// IsDepth reports whether the format is a depth format.
func (f TextureFormat) IsDepth() bool {
	return formatTable[f].depth
}

// FormatFromNative maps a WebGPU format back to a TextureFormat.
//
// Parameters:
//   - native: the WebGPU format
//
// Returns:
//   - TextureFormat: the matching format, or FormatUndefined
func FormatFromNative(native wgpu.TextureFormat) TextureFormat {
	for f, info := range formatTable {
		if info.native == native {
			return f
		}
	}
	return FormatUndefined
}

// TextureUsage is a bit set of the ways a texture is used.
type TextureUsage uint32

const (
	// TextureUsageSampled allows the texture to be bound as a sampled texture.
	TextureUsageSampled TextureUsage = 1 << iota
	// TextureUsageStorage allows the texture to be bound as a storage texture.
	TextureUsageStorage
	// TextureUsageRenderTarget allows the texture to be a render pass attachment.
	TextureUsageRenderTarget
	// TextureUsageCopySrc allows the texture to be a copy source.
	TextureUsageCopySrc
	// TextureUsageCopyDst allows the texture to be a copy or write destination.
	TextureUsageCopyDst
)

// Has reports whether every bit of o is set in u.
func (u TextureUsage) Has(o TextureUsage) bool {
	return u&o == o
}

// Native converts the usage to WebGPU usage flags.
func (u TextureUsage) Native() wgpu.TextureUsage {
	var n wgpu.TextureUsage
	if u.Has(TextureUsageSampled) {
		n |= wgpu.TextureUsageTextureBinding
	}
	if u.Has(TextureUsageStorage) {
		n |= wgpu.TextureUsageStorageBinding
	}
	if u.Has(TextureUsageRenderTarget) {
		n |= wgpu.TextureUsageRenderAttachment
	}
	if u.Has(TextureUsageCopySrc) {
		n |= wgpu.TextureUsageCopySrc
	}
	if u.Has(TextureUsageCopyDst) {
		n |= wgpu.TextureUsageCopyDst
	}
	return n
}

// TextureDesc describes a 2D texture or 2D texture array.
type TextureDesc struct {
	Label  string
	Width  uint32
	Height uint32
	// Layers is the array layer count. Zero is treated as one.
	Layers uint32
	Format TextureFormat
	Usage  TextureUsage
}

// Texture is a GPU texture owned by the caller until Release.
type Texture interface {
	Label() string
	Width() uint32
	Height() uint32
	Layers() uint32
	Format() TextureFormat
	Usage() TextureUsage

	// Release destroys the texture. Further use is an error.
	Release()
}

// BufferUsage is a bit set of the ways a buffer is used.
type BufferUsage uint32

const (
	// BufferUsageVertex allows binding as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << iota
	// BufferUsageIndex allows binding as an index buffer.
	BufferUsageIndex
	// BufferUsageUniform allows binding as a uniform buffer.
	BufferUsageUniform
	// BufferUsageStorage allows binding as a storage buffer.
	BufferUsageStorage
	// BufferUsageCopySrc allows the buffer to be a copy source.
	BufferUsageCopySrc
	// BufferUsageCopyDst allows the buffer to be written and cleared.
	BufferUsageCopyDst
	// BufferUsageMapRead allows the buffer to be read back on the CPU.
	BufferUsageMapRead
)

// Has reports whether every bit of o is set in u.
func (u BufferUsage) Has(o BufferUsage) bool {
	return u&o == o
}

// Native converts the usage to WebGPU usage flags.
func (u BufferUsage) Native() wgpu.BufferUsage {
	var n wgpu.BufferUsage
	if u.Has(BufferUsageVertex) {
		n |= wgpu.BufferUsageVertex
	}
	if u.Has(BufferUsageIndex) {
		n |= wgpu.BufferUsageIndex
	}
	if u.Has(BufferUsageUniform) {
		n |= wgpu.BufferUsageUniform
	}
	if u.Has(BufferUsageStorage) {
		n |= wgpu.BufferUsageStorage
	}
	if u.Has(BufferUsageCopySrc) {
		n |= wgpu.BufferUsageCopySrc
	}
	if u.Has(BufferUsageCopyDst) {
		n |= wgpu.BufferUsageCopyDst
	}
	if u.Has(BufferUsageMapRead) {
		n |= wgpu.BufferUsageMapRead
	}
	return n
}

// BufferDesc describes a GPU buffer.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage
}

// Buffer is a GPU buffer owned by the caller until Release.
type Buffer interface {
	Label() string
	Size() uint64
	Usage() BufferUsage
	Release()
}

// FilterMode selects texel filtering.
type FilterMode int

const (
	// FilterLinear blends neighbouring texels.
	FilterLinear FilterMode = iota
	// FilterNearest picks the closest texel.
	FilterNearest
)

// AddressMode selects how out of range coordinates are resolved.
type AddressMode int

const (
	// AddressClamp clamps to the edge texel.
	AddressClamp AddressMode = iota
	// AddressRepeat wraps around.
	AddressRepeat
)

// SamplerDesc describes a sampler.
type SamplerDesc struct {
	Label   string
	Filter  FilterMode
	Address AddressMode
}

// Sampler is a GPU sampler.
type Sampler interface {
	Label() string
	Filter() FilterMode
	Release()
}

// ColorAttachment is one color target of a render pass.
type ColorAttachment struct {
	Target Texture
	// Layer selects the array layer rendered into.
	Layer uint32
	// Clear is the clear color. When nil the previous contents are loaded.
	Clear *common.Color
}

// DepthAttachment is the depth target of a render pass.
type DepthAttachment struct {
	Target Texture
	// Clear is the clear depth. When nil the previous contents are loaded.
	Clear *float32
}

// RenderPassDesc describes the attachments of a render pass.
type RenderPassDesc struct {
	Label string
	Color []ColorAttachment
	Depth *DepthAttachment
}

// RenderPass records draws into the attachments it was begun with.
type RenderPass interface {
	// SetProgram selects the program of subsequent draws.
	SetProgram(p *Program)

	// SetBindings binds the resources of a binding table created for the current program.
	//
	// Parameters:
	//   - t: the binding table
	//
	// Returns:
	//   - error: ErrMissingBinding if a declared binding has no resource
	SetBindings(t *BindingTable) error

	// SetViewport restricts rasterization to a rectangle of the attachments.
	SetViewport(x, y, width, height float32)

	// SetMesh binds the vertex and index buffers of subsequent indexed draws.
	SetMesh(vertices, indices Buffer)

	// DrawIndexed draws indexCount uint32 indices starting at firstIndex.
	DrawIndexed(indexCount, firstIndex uint32)

	// DrawFullscreen draws a single triangle covering the attachments. The vertex shader
	// derives positions from the vertex index.
	DrawFullscreen()

	// End closes the pass.
	End()
}

// Encoder records GPU work for one frame. Commands are executed in recording order.
type Encoder interface {
	// BeginRenderPass opens a render pass.
	//
	// Parameters:
	//   - desc: the attachments
	//
	// Returns:
	//   - RenderPass: the open pass, closed with End
	//   - error: error if an attachment is invalid
	BeginRenderPass(desc RenderPassDesc) (RenderPass, error)

	// Dispatch records a compute dispatch of the given number of workgroups using the
	// resources currently set on the computation.
	//
	// Parameters:
	//   - c: the computation
	//   - groups: workgroup counts
	//
	// Returns:
	//   - error: error if the computation bindings are incomplete
	Dispatch(c *Computation, groups [3]uint32) error

	// ClearBuffer zeroes a buffer.
	ClearBuffer(b Buffer)

	// CopyBuffer copies size bytes from the start of src to the start of dst.
	CopyBuffer(src, dst Buffer, size uint64)

	// PushDebugGroup opens a labelled group visible in GPU captures.
	PushDebugGroup(label string)

	// PopDebugGroup closes the innermost debug group.
	PopDebugGroup()

	// Flush submits everything recorded so far and keeps the encoder open.
	//
	// Returns:
	//   - error: error if submission fails
	Flush() error

	// Submit submits the remaining work and closes the encoder.
	//
	// Returns:
	//   - error: error if submission fails
	Submit() error

	// Release discards unsubmitted work and closes the encoder. It does nothing after Submit.
	Release()
}

// Backend is the GPU resource factory and queue.
type Backend interface {
	// CreateTexture allocates a texture.
	//
	// Parameters:
	//   - desc: the texture description
	//
	// Returns:
	//   - Texture: the texture
	//   - error: error if allocation fails
	CreateTexture(desc TextureDesc) (Texture, error)

	// CreateBuffer allocates a buffer.
	//
	// Parameters:
	//   - desc: the buffer description
	//
	// Returns:
	//   - Buffer: the buffer
	//   - error: error if allocation fails
	CreateBuffer(desc BufferDesc) (Buffer, error)

	// CreateSampler creates a sampler.
	//
	// Parameters:
	//   - desc: the sampler description
	//
	// Returns:
	//   - Sampler: the sampler
	//   - error: error if creation fails
	CreateSampler(desc SamplerDesc) (Sampler, error)

	// CreateComputation builds a compute pipeline from a compute shader.
	//
	// Parameters:
	//   - name: label of the computation
	//   - s: the compute shader
	//
	// Returns:
	//   - *Computation: the computation with an empty binding table
	//   - error: error if the pipeline cannot be built
	CreateComputation(name string, s shader.Shader) (*Computation, error)

	// CreateProgram builds a render pipeline.
	//
	// Parameters:
	//   - p: the pipeline state with vertex and fragment shaders
	//
	// Returns:
	//   - *Program: the program
	//   - error: error if the pipeline cannot be built
	CreateProgram(p pipeline.Pipeline) (*Program, error)

	// WriteBuffer queues a write of data at offset. Writes land before the next submission.
	WriteBuffer(b Buffer, offset uint64, data []byte) error

	// WriteTexture queues a write of tightly packed texels covering layer 0 of the texture.
	WriteTexture(t Texture, data []byte) error

	// ReadBuffer blocks until submitted work completes and returns the contents of a
	// BufferUsageMapRead buffer.
	ReadBuffer(b Buffer) ([]byte, error)

	// NewEncoder opens a command encoder.
	NewEncoder(label string) (Encoder, error)

	// SurfaceFormat returns the format of the presentation surface.
	SurfaceFormat() TextureFormat

	// Present copies a texture to the presentation surface and shows it.
	Present(src Texture) error

	// Resize reconfigures the presentation surface.
	Resize(width, height int)

	// Release destroys the device. Resources must not be used afterwards.
	Release()
}
