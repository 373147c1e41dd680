package material

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/log"
)

var logger = log.New("material")

// constantBuffer is the CPU copy of one uniform binding plus the arena window it was last
// uploaded to.
type constantBuffer struct {
	name   string
	block  *shader.UniformBlock
	window renderer.BufferRange
	epoch  uint64
	valid  bool
}

// material is the implementation of the Material interface.
type material struct {
	mu *sync.Mutex

	name     string
	program  *renderer.Program
	bindings *renderer.BindingTable
	buffers  []*constantBuffer

	pending []func(*material) error
}

// Material is an instance of a render program with its own constant values and inputs.
//
// Every uniform binding of the program is backed by a CPU-side constant buffer laid out from
// the shader's reflected struct. Setters write members by name and mark the buffer dirty;
// Commit uploads the dirty buffers into a per-frame uniform arena and Bind applies the
// program and all bindings to a render pass.
//
// Member names are either a bare member ("world") resolved against the first constant buffer
// that declares it, or qualified by the binding variable ("object.world").
type Material interface {
	// Name returns the name of the material.
	//
	// Returns:
	//   - string: the material name
	Name() string

	// Program returns the render program the material draws with.
	//
	// Returns:
	//   - *renderer.Program: the program
	Program() *renderer.Program

	// SetMatrix writes a mat4x4f member.
	//
	// Parameters:
	//   - name: the member name
	//   - m: the column-major matrix
	//
	// Returns:
	//   - error: shader.ErrUnknownMember or shader.ErrMemberSize
	SetMatrix(name string, m [16]float32) error

	// SetFloat writes an f32 member.
	//
	// Parameters:
	//   - name: the member name
	//   - v: the value
	//
	// Returns:
	//   - error: shader.ErrUnknownMember or shader.ErrMemberSize
	SetFloat(name string, v float32) error

	// SetVector writes a vector member. The slice length must match the member.
	//
	// Parameters:
	//   - name: the member name
	//   - v: the components
	//
	// Returns:
	//   - error: shader.ErrUnknownMember or shader.ErrMemberSize
	SetVector(name string, v []float32) error

	// SetUint writes a u32 member.
	//
	// Parameters:
	//   - name: the member name
	//   - v: the value
	//
	// Returns:
	//   - error: shader.ErrUnknownMember or shader.ErrMemberSize
	SetUint(name string, v uint32) error

	// SetInput binds a texture, sampler or storage buffer to the binding of the given name.
	//
	// Parameters:
	//   - tag: the binding variable name
	//   - r: the resource
	//
	// Returns:
	//   - error: renderer.ErrUnknownBinding or renderer.ErrBindingKind
	SetInput(tag string, r any) error

	// Commit uploads every constant buffer written since the last commit, and every buffer
	// whose previous window belongs to an earlier arena epoch, into the arena.
	//
	// Parameters:
	//   - arena: the per-frame uniform arena
	//
	// Returns:
	//   - error: renderer.ErrArenaExhausted or a backend write error
	Commit(arena *renderer.UniformArena) error

	// Bind sets the material's program and bindings on a render pass. Commit must run first
	// in the same frame.
	//
	// Parameters:
	//   - pass: the render pass
	//
	// Returns:
	//   - error: renderer.ErrMissingBinding if an input was never set
	Bind(pass renderer.RenderPass) error

	// Dirty reports whether any constant buffer changed since the last Commit.
	//
	// Returns:
	//   - bool: true when Commit would upload
	Dirty() bool

	// Instantiate creates a new material sharing this material's program and reflection.
	// Constant values and inputs are copied; later writes to either material are independent.
	//
	// Parameters:
	//   - name: the name of the new material
	//
	// Returns:
	//   - Material: the new instance
	Instantiate(name string) Material
}

var _ Material = &material{}

// NewMaterial creates a material for a render program. One constant buffer is created per
// uniform binding of the program's vertex and fragment shaders.
//
// Parameters:
//   - program: the render program
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: the material
//   - error: error if a uniform binding has no reflected layout or an option fails
func NewMaterial(program *renderer.Program, options ...MaterialBuilderOption) (Material, error) {
	if program == nil {
		return nil, fmt.Errorf("material: nil program")
	}
	m := &material{
		mu:       &sync.Mutex{},
		name:     program.Name(),
		program:  program,
		bindings: program.NewBindings(),
	}
	for _, b := range program.Bindings() {
		if b.Kind != shader.BindingKindUniform {
			continue
		}
		layout, ok := uniformLayout(program, b.Name)
		if !ok {
			return nil, fmt.Errorf("material %s: no struct layout for uniform %q", m.name, b.Name)
		}
		m.buffers = append(m.buffers, &constantBuffer{name: b.Name, block: shader.NewUniformBlock(layout)})
	}

	for _, option := range options {
		option(m)
	}
	for _, apply := range m.pending {
		if err := apply(m); err != nil {
			return nil, fmt.Errorf("material %s: %w", m.name, err)
		}
	}
	m.pending = nil
	return m, nil
}

// uniformLayout finds the reflected struct of a uniform variable in either program stage.
func uniformLayout(program *renderer.Program, varName string) (shader.StructLayout, bool) {
	for _, st := range []shader.ShaderType{shader.ShaderTypeVertex, shader.ShaderTypeFragment} {
		s := program.Pipeline().Shader(st)
		if s == nil {
			continue
		}
		if layout, ok := s.Uniform(varName); ok {
			return layout, true
		}
	}
	return shader.StructLayout{}, false
}

func (m *material) Name() string {
	return m.name
}

func (m *material) Program() *renderer.Program {
	return m.program
}

func (m *material) SetMatrix(name string, v [16]float32) error {
	return m.write(name, func(b *shader.UniformBlock, member string) error {
		return b.SetMatrix(member, v)
	})
}

func (m *material) SetFloat(name string, v float32) error {
	return m.write(name, func(b *shader.UniformBlock, member string) error {
		return b.SetFloat(member, v)
	})
}

func (m *material) SetVector(name string, v []float32) error {
	return m.write(name, func(b *shader.UniformBlock, member string) error {
		return b.SetVector(member, v)
	})
}

func (m *material) SetUint(name string, v uint32) error {
	return m.write(name, func(b *shader.UniformBlock, member string) error {
		return b.SetUint(member, v)
	})
}

// write resolves a member name to its constant buffer and applies set to it.
func (m *material) write(name string, set func(*shader.UniformBlock, string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if varName, member, ok := strings.Cut(name, "."); ok {
		for _, cb := range m.buffers {
			if cb.name == varName {
				return set(cb.block, member)
			}
		}
	}
	for _, cb := range m.buffers {
		if _, ok := cb.block.Layout().Member(name); ok {
			return set(cb.block, name)
		}
	}
	return fmt.Errorf("%w: %q in material %s", shader.ErrUnknownMember, name, m.name)
}

func (m *material) SetInput(tag string, r any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bindings.SetInput(tag, r)
}

func (m *material) Commit(arena *renderer.UniformArena) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	epoch := arena.Epoch()
	for _, cb := range m.buffers {
		if !cb.block.Dirty() && cb.valid && cb.epoch == epoch {
			continue
		}
		window, err := arena.Allocate(cb.block.Bytes())
		if err != nil {
			return fmt.Errorf("material %s: failed to commit %s: %w", m.name, cb.name, err)
		}
		if err := m.bindings.SetUniform(cb.name, window); err != nil {
			return err
		}
		cb.window = window
		cb.epoch = epoch
		cb.valid = true
		cb.block.ClearDirty()
	}
	return nil
}

func (m *material) Bind(pass renderer.RenderPass) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, cb := range m.buffers {
		if !cb.valid {
			logger.Debugf("material %s bound before commit of %s", m.name, cb.name)
			break
		}
	}
	pass.SetProgram(m.program)
	return pass.SetBindings(m.bindings)
}

func (m *material) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cb := range m.buffers {
		if cb.block.Dirty() {
			return true
		}
	}
	return false
}

func (m *material) Instantiate(name string) Material {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst := &material{
		mu:       &sync.Mutex{},
		name:     name,
		program:  m.program,
		bindings: m.program.NewBindings(),
	}
	for _, cb := range m.buffers {
		block := shader.NewUniformBlock(cb.block.Layout())
		_ = block.SetBytes(cb.block.Bytes())
		inst.buffers = append(inst.buffers, &constantBuffer{name: cb.name, block: block})
	}
	for i, b := range m.bindings.Bindings() {
		if b.Kind == shader.BindingKindUniform {
			continue
		}
		if r := m.bindings.ResourceAt(i); r != nil {
			if b.Kind.IsOutput() {
				_ = inst.bindings.SetOutput(b.Name, r)
			} else {
				_ = inst.bindings.SetInput(b.Name, r)
			}
		}
	}
	return inst
}
