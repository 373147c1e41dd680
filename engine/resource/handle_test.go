package resource

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleReleasesAfterLastDrop(t *testing.T) {
	released := 0
	h := NewHandle("mesh", func(string) { released++ })
	c := h.Clone()
	assert.Equal(t, int64(2), h.Count())

	h.Drop()
	h.Drop()
	assert.Equal(t, 0, released)
	assert.Equal(t, "", h.Get())
	assert.Equal(t, "mesh", c.Get())

	c.Drop()
	assert.Equal(t, 1, released)
}

func TestWeakUpgradeFailsAfterLastDrop(t *testing.T) {
	h := NewHandle(42, nil)
	w := h.Weak()

	s, ok := w.Upgrade()
	require.True(t, ok)
	assert.Equal(t, 42, s.Get())
	s.Drop()
	assert.True(t, w.Alive())

	h.Drop()
	assert.False(t, w.Alive())
	_, ok = w.Upgrade()
	assert.False(t, ok)

	var zero WeakHandle[int]
	_, ok = zero.Upgrade()
	assert.False(t, ok)
}

func TestHandleConcurrentCloneDrop(t *testing.T) {
	released := 0
	h := NewHandle(struct{}{}, func(struct{}) { released++ })
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		c := h.Clone()
		go func() {
			defer wg.Done()
			c.Drop()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), h.Count())
	h.Drop()
	assert.Equal(t, 1, released)
}
