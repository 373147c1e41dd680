package resource

import "sync/atomic"

// shared is the control block of a reference-counted value.
type shared[T any] struct {
	value   T
	strong  atomic.Int64
	release func(T)
}

// Handle is a strong reference to a shared value. The value's release function runs exactly
// once, when the last strong handle is dropped.
type Handle[T any] struct {
	s       *shared[T]
	dropped atomic.Bool
}

// WeakHandle observes a shared value without keeping it alive.
type WeakHandle[T any] struct {
	s *shared[T]
}

// NewHandle wraps a value in its first strong handle.
//
// Parameters:
//   - value: the shared value
//   - release: called with the value when the last strong handle is dropped; may be nil
//
// Returns:
//   - *Handle[T]: the first strong handle
func NewHandle[T any](value T, release func(T)) *Handle[T] {
	s := &shared[T]{value: value, release: release}
	s.strong.Store(1)
	return &Handle[T]{s: s}
}

// Get returns the shared value. Calling Get on a dropped handle returns the zero value.
func (h *Handle[T]) Get() T {
	if h == nil || h.dropped.Load() {
		var zero T
		return zero
	}
	return h.s.value
}

// Clone returns a new strong handle to the same value.
func (h *Handle[T]) Clone() *Handle[T] {
	h.s.strong.Add(1)
	return &Handle[T]{s: h.s}
}

// Drop releases this handle's reference. Dropping a handle twice is a no-op.
func (h *Handle[T]) Drop() {
	if h == nil || !h.dropped.CompareAndSwap(false, true) {
		return
	}
	if h.s.strong.Add(-1) == 0 && h.s.release != nil {
		h.s.release(h.s.value)
	}
}

// Weak returns a weak handle to the same value.
func (h *Handle[T]) Weak() WeakHandle[T] {
	return WeakHandle[T]{s: h.s}
}

// Count returns the number of live strong handles.
func (h *Handle[T]) Count() int64 {
	return h.s.strong.Load()
}

// Upgrade returns a new strong handle if the value is still alive.
//
// Returns:
//   - *Handle[T]: the strong handle, or nil
//   - bool: false once the last strong handle was dropped
func (w WeakHandle[T]) Upgrade() (*Handle[T], bool) {
	if w.s == nil {
		return nil, false
	}
	for {
		n := w.s.strong.Load()
		if n <= 0 {
			return nil, false
		}
		if w.s.strong.CompareAndSwap(n, n+1) {
			return &Handle[T]{s: w.s}, true
		}
	}
}

// Alive reports whether a strong handle to the value exists.
func (w WeakHandle[T]) Alive() bool {
	return w.s != nil && w.s.strong.Load() > 0
}
