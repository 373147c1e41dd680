package renderer

import (
	"errors"
	"fmt"
)

// UniformAlignment is the WebGPU minimum uniform buffer offset alignment.
const UniformAlignment = 256

// ErrArenaExhausted is returned when a frame allocates more uniform data than the arena holds.
var ErrArenaExhausted = errors.New("renderer: uniform arena exhausted")

// UniformArena hands out aligned windows of one large uniform buffer. Every allocation is
// written to its own region, so draws recorded in the same frame never observe each other's
// constants. Reset rewinds the arena at the start of a frame.
type UniformArena struct {
	backend  Backend
	buffer   Buffer
	capacity uint64
	offset   uint64
	peak     uint64
	epoch    uint64
}

// NewUniformArena allocates the backing buffer of an arena.
//
// Parameters:
//   - backend: the backend creating and writing the buffer
//   - capacity: the size of the buffer in bytes
//
// Returns:
//   - *UniformArena: the arena
//   - error: error if the buffer cannot be created
func NewUniformArena(backend Backend, capacity uint64) (*UniformArena, error) {
	capacity = alignUp(capacity, UniformAlignment)
	buf, err := backend.CreateBuffer(BufferDesc{
		Label: "Uniform Arena",
		Size:  capacity,
		Usage: BufferUsageUniform | BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create uniform arena: %w", err)
	}
	return &UniformArena{backend: backend, buffer: buf, capacity: capacity}, nil
}

// Allocate copies data into the next free aligned window and returns it.
//
// Parameters:
//   - data: the uniform bytes
//
// Returns:
//   - BufferRange: the window holding data
//   - error: ErrArenaExhausted, or a backend write error
func (a *UniformArena) Allocate(data []byte) (BufferRange, error) {
	size := uint64(len(data))
	if size == 0 {
		return BufferRange{}, fmt.Errorf("renderer: empty uniform allocation")
	}
	if a.offset+size > a.capacity {
		return BufferRange{}, fmt.Errorf("%w: %d of %d bytes used, %d requested", ErrArenaExhausted, a.offset, a.capacity, size)
	}
	r := BufferRange{Buffer: a.buffer, Offset: a.offset, Size: size}
	if err := a.backend.WriteBuffer(a.buffer, a.offset, data); err != nil {
		return BufferRange{}, err
	}
	a.offset = alignUp(a.offset+size, UniformAlignment)
	a.peak = max(a.peak, a.offset)
	return r, nil
}

// Reset rewinds the arena. Windows handed out before Reset must not be bound afterwards.
func (a *UniformArena) Reset() {
	a.offset = 0
	a.epoch++
}

// Epoch returns the number of Reset calls. A window allocated in an older epoch is stale.
func (a *UniformArena) Epoch() uint64 {
	return a.epoch
}

// Used returns the bytes consumed since the last Reset.
func (a *UniformArena) Used() uint64 {
	return a.offset
}

// Peak returns the largest Used value ever reached.
func (a *UniformArena) Peak() uint64 {
	return a.peak
}

// Capacity returns the size of the backing buffer.
func (a *UniformArena) Capacity() uint64 {
	return a.capacity
}

// Release destroys the backing buffer.
func (a *UniformArena) Release() {
	if a.buffer != nil {
		a.buffer.Release()
		a.buffer = nil
	}
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) / align * align
}
