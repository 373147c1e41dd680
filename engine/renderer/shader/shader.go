package shader

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoEntryPoint is returned when a source has no entry point for the requested shader stage.
var ErrNoEntryPoint = errors.New("shader: no entry point for stage")

// ShaderType identifies the pipeline stage a shader source is compiled for.
type ShaderType int

const (
	// ShaderTypeCompute is a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is a @vertex entry point of a render pipeline.
	ShaderTypeVertex

	// ShaderTypeFragment is a @fragment entry point paired with a vertex shader.
	ShaderTypeFragment
)

// String returns the file suffix of the stage.
func (t ShaderType) String() string {
	return stageSuffix[t]
}

// shader is the implementation of the Shader interface. Everything is derived once from the
// pre-processed source and read-only afterwards.
type shader struct {
	key           string
	source        string
	shaderType    ShaderType
	entryPoint    string
	module        *wgpu.ShaderModuleDescriptor
	layouts       map[int]wgpu.BindGroupLayoutDescriptor
	vertexLayouts map[int][]wgpu.VertexBufferLayout
	workgroupSize [3]uint32
	bindings      []Binding
	uniforms      map[string]StructLayout
}

// Shader is a pre-processed WGSL source with the reflection metadata that programs,
// computations and materials share: bind group layouts, vertex layouts, workgroup size, named
// bindings and uniform struct layouts.
type Shader interface {
	// Key returns the library key the shader was loaded under.
	Key() string

	// Source returns the WGSL source after pre-processing.
	Source() string

	// ShaderType returns the stage of the entry point.
	ShaderType() ShaderType

	// EntryPoint returns the name of the stage's entry point function.
	EntryPoint() string

	// Module returns the descriptor the backend compiles the shader module from.
	Module() *wgpu.ShaderModuleDescriptor

	// BindGroupLayoutDescriptors returns one layout descriptor per @group, entries sorted by
	// binding and visible to this shader's stage.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// VertexLayout returns the buffer layout derived from the key-th vertex input struct.
	//
	// Parameters:
	//   - key: the index of the vertex input struct in source order
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the layout, nil for other stages or unknown keys
	VertexLayout(key int) []wgpu.VertexBufferLayout

	// VertexLayouts returns every vertex input layout keyed by index.
	VertexLayouts() map[int][]wgpu.VertexBufferLayout

	// WorkgroupSize returns the @workgroup_size of a compute shader, with omitted dimensions
	// as 1. Render stages return [0, 0, 0].
	WorkgroupSize() [3]uint32

	// Bindings returns every resource declaration of the shader in a backend-neutral form,
	// sorted by group then binding. Resources are bound to a program or computation by the
	// Name of each entry.
	//
	// Returns:
	//   - []Binding: the reflected bindings
	Bindings() []Binding

	// Uniform returns the reflected struct layout of a var<uniform> declaration.
	//
	// Parameters:
	//   - varName: the WGSL variable name of the uniform
	//
	// Returns:
	//   - StructLayout: the member offsets and total size
	//   - bool: false if no uniform of that name exists or its type could not be resolved
	Uniform(varName string) (StructLayout, bool)
}

var _ Shader = &shader{}

// NewShaderFromSource pre-processes and reflects WGSL source held in memory.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage whose entry point is used
//   - source: the raw WGSL source, possibly containing @oxy annotations
//
// Returns:
//   - Shader: the parsed shader
//   - error: error if pre-processing fails or the source has no entry point for the stage
func NewShaderFromSource(key string, shaderType ShaderType, source string) (Shader, error) {
	processed, err := NewPreProcessor().Process(source)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to pre-process source: %w", key, err)
	}

	mod := parseModule(processed)
	s := &shader{
		key:        key,
		source:     processed,
		shaderType: shaderType,
		entryPoint: mod.entryPoint(shaderType),
		module: &wgpu.ShaderModuleDescriptor{
			Label:          key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: processed},
		},
		vertexLayouts: make(map[int][]wgpu.VertexBufferLayout),
	}
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: %w", key, ErrNoEntryPoint)
	}

	var visibility wgpu.ShaderStage
	switch shaderType {
	case ShaderTypeVertex:
		visibility = wgpu.ShaderStageVertex
		s.vertexLayouts = mod.vertexLayouts()
	case ShaderTypeFragment:
		visibility = wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		visibility = wgpu.ShaderStageCompute
		s.workgroupSize = mod.workgroupSize()
	}
	s.layouts = mod.bindGroupLayouts(visibility)
	s.bindings, s.uniforms = mod.bindings()
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.layouts
}

func (s *shader) VertexLayout(key int) []wgpu.VertexBufferLayout {
	return s.vertexLayouts[key]
}

func (s *shader) VertexLayouts() map[int][]wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workgroupSize
}

func (s *shader) Bindings() []Binding {
	return s.bindings
}

func (s *shader) Uniform(varName string) (StructLayout, bool) {
	l, ok := s.uniforms[varName]
	return l, ok
}
