package renderer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
)

var (
	// ErrUnknownBinding is returned when a resource is set on a name the shader does not declare.
	ErrUnknownBinding = errors.New("renderer: unknown binding")

	// ErrBindingKind is returned when a resource does not fit the declared binding kind,
	// e.g. a sampler for a texture, or an input set on a written binding.
	ErrBindingKind = errors.New("renderer: resource does not match binding kind")

	// ErrMissingBinding is returned when work is recorded while a declared binding is empty.
	ErrMissingBinding = errors.New("renderer: binding has no resource")
)

// BufferRange is a window of a buffer bound to a single binding.
type BufferRange struct {
	Buffer Buffer
	Offset uint64
	// Size of the window. Zero means the rest of the buffer.
	Size uint64
}

// BindingTable maps the reflected bindings of a program or computation to resources by name.
// Values are Texture, Sampler, Buffer or BufferRange depending on the binding kind.
type BindingTable struct {
	bindings []shader.Binding
	index    map[string]int
	values   []any
}

// NewBindingTable creates an empty table for a set of reflected bindings.
//
// Parameters:
//   - bindings: the bindings, usually shader.Shader.Bindings
//
// Returns:
//   - *BindingTable: the table
func NewBindingTable(bindings []shader.Binding) *BindingTable {
	sorted := append([]shader.Binding(nil), bindings...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Group != sorted[j].Group {
			return sorted[i].Group < sorted[j].Group
		}
		return sorted[i].Binding < sorted[j].Binding
	})
	t := &BindingTable{
		bindings: sorted,
		index:    make(map[string]int, len(sorted)),
		values:   make([]any, len(sorted)),
	}
	for i, b := range sorted {
		t.index[b.Name] = i
	}
	return t
}

// Bindings returns the bindings of the table sorted by group then binding.
func (t *BindingTable) Bindings() []shader.Binding {
	return t.bindings
}

// Has reports whether the shader declares a binding with this name.
func (t *BindingTable) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Binding returns the reflected declaration of a name.
func (t *BindingTable) Binding(name string) (shader.Binding, bool) {
	i, ok := t.index[name]
	if !ok {
		return shader.Binding{}, false
	}
	return t.bindings[i], true
}

// Resource returns the resource bound to a name, or nil.
func (t *BindingTable) Resource(name string) any {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.values[i]
}

// ResourceAt returns the resource bound at the i-th binding of Bindings.
func (t *BindingTable) ResourceAt(i int) any {
	return t.values[i]
}

// SetInput binds a resource the shader reads: a sampled or depth texture, a sampler, a uniform
// or a read-only storage buffer.
//
// Parameters:
//   - name: the WGSL variable name
//   - r: a Texture, Sampler, Buffer or BufferRange
//
// Returns:
//   - error: ErrUnknownBinding or ErrBindingKind
func (t *BindingTable) SetInput(name string, r any) error {
	return t.set(name, r, false)
}

// SetOutput binds a resource the shader writes: a storage texture or a read-write storage buffer.
//
// Parameters:
//   - name: the WGSL variable name
//   - r: a Texture, Buffer or BufferRange
//
// Returns:
//   - error: ErrUnknownBinding or ErrBindingKind
func (t *BindingTable) SetOutput(name string, r any) error {
	return t.set(name, r, true)
}

// SetUniform binds a window of a uniform buffer, typically an allocation from a UniformArena.
func (t *BindingTable) SetUniform(name string, r BufferRange) error {
	return t.set(name, r, false)
}

func (t *BindingTable) set(name string, r any, output bool) error {
	i, ok := t.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBinding, name)
	}
	b := t.bindings[i]
	if b.Kind.IsOutput() != output {
		return fmt.Errorf("%w: %q is %s", ErrBindingKind, name, b.Kind)
	}
	if !kindAccepts(b.Kind, r) {
		return fmt.Errorf("%w: %q is %s, got %T", ErrBindingKind, name, b.Kind, r)
	}
	t.values[i] = r
	return nil
}

// Clear removes every resource from the table.
func (t *BindingTable) Clear() {
	for i := range t.values {
		t.values[i] = nil
	}
}

// Validate checks that every declared binding has a resource.
//
// Returns:
//   - error: ErrMissingBinding naming the first empty binding
func (t *BindingTable) Validate() error {
	for i, v := range t.values {
		if v == nil {
			b := t.bindings[i]
			return fmt.Errorf("%w: %q (group %d binding %d)", ErrMissingBinding, b.Name, b.Group, b.Binding)
		}
	}
	return nil
}

// Groups returns the distinct group indices of the table in ascending order.
func (t *BindingTable) Groups() []int {
	var groups []int
	for _, b := range t.bindings {
		if len(groups) == 0 || groups[len(groups)-1] != b.Group {
			groups = append(groups, b.Group)
		}
	}
	return groups
}

func kindAccepts(kind shader.BindingKind, r any) bool {
	switch r.(type) {
	case Texture:
		return kind.IsTexture()
	case Buffer, BufferRange:
		return kind.IsBuffer()
	case Sampler:
		return kind == shader.BindingKindSampler
	default:
		return false
	}
}

// BufferOf returns the buffer and window of a buffer-like resource.
//
// Parameters:
//   - r: a Buffer or BufferRange
//
// Returns:
//   - BufferRange: the window, covering the whole buffer for a plain Buffer
//   - bool: false if r is not buffer-like
func BufferOf(r any) (BufferRange, bool) {
	switch v := r.(type) {
	case BufferRange:
		if v.Size == 0 && v.Buffer != nil {
			v.Size = v.Buffer.Size() - v.Offset
		}
		return v, true
	case Buffer:
		return BufferRange{Buffer: v, Size: v.Size()}, true
	default:
		return BufferRange{}, false
	}
}
