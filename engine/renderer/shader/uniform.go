package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnknownMember is returned when a uniform block has no member of the requested name.
var ErrUnknownMember = errors.New("shader: unknown uniform member")

// ErrMemberSize is returned when a value does not fit the member it is written to.
var ErrMemberSize = errors.New("shader: value does not match member size")

// UniformBlock is the CPU copy of a uniform buffer laid out after a reflected StructLayout.
// Members are written by name; the block tracks whether it changed since the last upload.
type UniformBlock struct {
	layout StructLayout
	data   []byte
	dirty  bool
}

// NewUniformBlock allocates a zeroed block for a struct layout. A new block starts dirty.
//
// Parameters:
//   - layout: the reflected struct layout
//
// Returns:
//   - *UniformBlock: the block
func NewUniformBlock(layout StructLayout) *UniformBlock {
	return &UniformBlock{
		layout: layout,
		data:   make([]byte, layout.Size),
		dirty:  true,
	}
}

// Layout returns the struct layout the block was created from.
func (u *UniformBlock) Layout() StructLayout {
	return u.layout
}

// Bytes returns the block contents. The slice aliases the block.
func (u *UniformBlock) Bytes() []byte {
	return u.data
}

// Dirty reports whether a member was written since the last ClearDirty.
func (u *UniformBlock) Dirty() bool {
	return u.dirty
}

// ClearDirty marks the block as uploaded.
func (u *UniformBlock) ClearDirty() {
	u.dirty = false
}

// SetFloat writes an f32 member.
//
// Parameters:
//   - name: the dotted member name
//   - v: the value
//
// Returns:
//   - error: ErrUnknownMember or ErrMemberSize
func (u *UniformBlock) SetFloat(name string, v float32) error {
	return u.SetVector(name, []float32{v})
}

// SetUint writes a u32 member.
//
// Parameters:
//   - name: the dotted member name
//   - v: the value
//
// Returns:
//   - error: ErrUnknownMember or ErrMemberSize
func (u *UniformBlock) SetUint(name string, v uint32) error {
	m, err := u.member(name, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(u.data[m.Offset:], v)
	u.dirty = true
	return nil
}

// SetVector writes consecutive f32 components starting at a member. The components must
// fit inside the member.
//
// Parameters:
//   - name: the dotted member name
//   - v: the components
//
// Returns:
//   - error: ErrUnknownMember or ErrMemberSize
func (u *UniformBlock) SetVector(name string, v []float32) error {
	m, err := u.member(name, uint64(len(v))*4)
	if err != nil {
		return err
	}
	for i, f := range v {
		binary.LittleEndian.PutUint32(u.data[m.Offset+uint64(i)*4:], math.Float32bits(f))
	}
	u.dirty = true
	return nil
}

// SetMatrix writes a column-major mat4x4f member.
//
// Parameters:
//   - name: the dotted member name
//   - m: the matrix
//
// Returns:
//   - error: ErrUnknownMember or ErrMemberSize
func (u *UniformBlock) SetMatrix(name string, m [16]float32) error {
	return u.SetVector(name, m[:])
}

// SetBytes copies raw bytes over the whole block, typically a marshaled GPU struct.
//
// Parameters:
//   - data: the new contents; must not be longer than the block
//
// Returns:
//   - error: ErrMemberSize if data is longer than the block
func (u *UniformBlock) SetBytes(data []byte) error {
	if len(data) > len(u.data) {
		return fmt.Errorf("%w: %d bytes into %s (%d bytes)", ErrMemberSize, len(data), u.layout.Name, len(u.data))
	}
	copy(u.data, data)
	u.dirty = true
	return nil
}

func (u *UniformBlock) member(name string, size uint64) (Member, error) {
	m, ok := u.layout.Member(name)
	if !ok {
		return Member{}, fmt.Errorf("%w: %s.%s", ErrUnknownMember, u.layout.Name, name)
	}
	if size > m.Size || m.Offset+size > uint64(len(u.data)) {
		return Member{}, fmt.Errorf("%w: %s.%s is %d bytes, got %d", ErrMemberSize, u.layout.Name, name, m.Size, size)
	}
	return m, nil
}
