package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

// Computation is a compute pipeline together with the resources bound to it.
// Resources are bound by their WGSL variable name and persist across dispatches until replaced.
type Computation struct {
	name     string
	shader   shader.Shader
	bindings *BindingTable
	native   any
}

// NewComputation wraps a backend compute pipeline. It is called by Backend implementations.
//
// Parameters:
//   - name: label of the computation
//   - s: the compute shader the pipeline was built from
//   - native: the backend pipeline object
//
// Returns:
//   - *Computation: the computation with an empty binding table
func NewComputation(name string, s shader.Shader, native any) *Computation {
	return &Computation{
		name:     name,
		shader:   s,
		bindings: NewBindingTable(s.Bindings()),
		native:   native,
	}
}

// Name returns the label of the computation.
func (c *Computation) Name() string {
	return c.name
}

// Shader returns the compute shader.
func (c *Computation) Shader() shader.Shader {
	return c.shader
}

// Native returns the backend pipeline object.
func (c *Computation) Native() any {
	return c.native
}

// Bindings returns the binding table of the computation.
func (c *Computation) Bindings() *BindingTable {
	return c.bindings
}

// WorkgroupSize returns the reflected @workgroup_size of the shader.
func (c *Computation) WorkgroupSize() [3]uint32 {
	return c.shader.WorkgroupSize()
}

// SetInput binds a resource read by the shader. See BindingTable.SetInput.
func (c *Computation) SetInput(name string, r any) error {
	return c.bindings.SetInput(name, r)
}

// SetOutput binds a resource written by the shader. See BindingTable.SetOutput.
func (c *Computation) SetOutput(name string, r any) error {
	return c.bindings.SetOutput(name, r)
}

// SetUniform binds a uniform window. See BindingTable.SetUniform.
func (c *Computation) SetUniform(name string, r BufferRange) error {
	return c.bindings.SetUniform(name, r)
}

// Dispatch records enough workgroups to cover x*y*z threads.
//
// Parameters:
//   - enc: the frame encoder
//   - x, y, z: the thread counts, e.g. the output width and height
//
// Returns:
//   - error: ErrMissingBinding or an encoder error
func (c *Computation) Dispatch(enc Encoder, x, y, z uint32) error {
	if err := c.bindings.Validate(); err != nil {
		return fmt.Errorf("computation %s: %w", c.name, err)
	}
	return enc.Dispatch(c, DispatchSize(c.WorkgroupSize(), x, y, z))
}

// DispatchSize returns the workgroup counts needed to cover a thread grid.
//
// Parameters:
//   - workgroup: the workgroup size
//   - x, y, z: the thread counts
//
// Returns:
//   - [3]uint32: ceil(x/wx), ceil(y/wy), ceil(z/wz)
func DispatchSize(workgroup [3]uint32, x, y, z uint32) [3]uint32 {
	size := func(n, w uint32) uint32 {
		if w == 0 {
			w = 1
		}
		if n == 0 {
			n = 1
		}
		return common.DivCeil(n, w)
	}
	return [3]uint32{size(x, workgroup[0]), size(y, workgroup[1]), size(z, workgroup[2])}
}

// Program is a render pipeline. Resources are supplied per draw through a BindingTable
// obtained from NewBindings.
type Program struct {
	pipeline pipeline.Pipeline
	bindings []shader.Binding
	native   any
}

// NewProgram wraps a backend render pipeline. It is called by Backend implementations.
//
// Parameters:
//   - p: the pipeline state the program was built from
//   - native: the backend pipeline object
//
// Returns:
//   - *Program: the program
func NewProgram(p pipeline.Pipeline, native any) *Program {
	return &Program{
		pipeline: p,
		bindings: ProgramBindings(p),
		native:   native,
	}
}

// Name returns the pipeline key.
func (p *Program) Name() string {
	return p.pipeline.PipelineKey()
}

// Pipeline returns the pipeline state.
func (p *Program) Pipeline() pipeline.Pipeline {
	return p.pipeline
}

// Bindings returns the bindings of the vertex and fragment stages.
func (p *Program) Bindings() []shader.Binding {
	return p.bindings
}

// Native returns the backend pipeline object.
func (p *Program) Native() any {
	return p.native
}

// NewBindings creates an empty binding table for this program.
func (p *Program) NewBindings() *BindingTable {
	return NewBindingTable(p.bindings)
}

// ProgramBindings merges the bindings of the vertex and fragment shader of a pipeline.
// A group/binding pair declared by both stages appears once.
//
// Parameters:
//   - p: the pipeline
//
// Returns:
//   - []shader.Binding: the merged bindings
func ProgramBindings(p pipeline.Pipeline) []shader.Binding {
	seen := make(map[[2]int]bool)
	var out []shader.Binding
	for _, st := range []shader.ShaderType{shader.ShaderTypeVertex, shader.ShaderTypeFragment} {
		s := p.Shader(st)
		if s == nil {
			continue
		}
		for _, b := range s.Bindings() {
			key := [2]int{b.Group, b.Binding}
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, b)
		}
	}
	return out
}
