// Package resource provides the GPU texture cache shared by the render passes and the
// reference-counted handles used by scene nodes.
package resource

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/log"
)

var logger = log.New("resource")

// Kind separates textures bound as render targets from general-purpose (storage) textures.
type Kind int

const (
	// KindGeneral textures are sampled or written by compute passes.
	KindGeneral Kind = iota
	// KindRenderTarget textures are written as color or depth attachments.
	KindRenderTarget
)

func (k Kind) String() string {
	if k == KindRenderTarget {
		return "render-target"
	}
	return "general"
}

// KindOf classifies a texture usage.
func KindOf(usage renderer.TextureUsage) Kind {
	if usage.Has(renderer.TextureUsageRenderTarget) {
		return KindRenderTarget
	}
	return KindGeneral
}

// cacheKey identifies interchangeable textures.
type cacheKey struct {
	width  uint32
	height uint32
	layers uint32
	format renderer.TextureFormat
	usage  renderer.TextureUsage
	kind   Kind
}

func keyOf(desc renderer.TextureDesc) cacheKey {
	layers := desc.Layers
	if layers == 0 {
		layers = 1
	}
	return cacheKey{
		width:  desc.Width,
		height: desc.Height,
		layers: layers,
		format: desc.Format,
		usage:  desc.Usage,
		kind:   KindOf(desc.Usage),
	}
}

// Stats is a snapshot of cache activity.
type Stats struct {
	// Hits counts Acquire calls served from the idle pool.
	Hits uint64
	// Misses counts Acquire calls that created a texture.
	Misses uint64
	// Idle is the number of textures waiting in the pool.
	Idle int
	// Outstanding is the number of cache textures currently acquired.
	Outstanding int
}

// Cache recycles textures between passes and frames. A texture handed back with Release
// waits in the idle pool until an Acquire with the same width, height, layers, format and
// usage takes it again; it is destroyed only by Purge.
//
// A Cache is touched only from the frame thread and is not safe for concurrent use.
type Cache struct {
	backend     renderer.Backend
	idle        map[cacheKey][]renderer.Texture
	idleSet     map[renderer.Texture]struct{}
	outstanding map[renderer.Texture]cacheKey
	hits        uint64
	misses      uint64
}

// NewCache creates an empty cache.
//
// Parameters:
//   - backend: the backend creating textures on a miss
//
// Returns:
//   - *Cache: the cache
func NewCache(backend renderer.Backend) *Cache {
	return &Cache{
		backend:     backend,
		idle:        make(map[cacheKey][]renderer.Texture),
		idleSet:     make(map[renderer.Texture]struct{}),
		outstanding: make(map[renderer.Texture]cacheKey),
	}
}

// Acquire returns an idle texture matching desc, or creates one. The label of a reused
// texture is the label it was created with.
//
// Parameters:
//   - desc: the texture description
//
// Returns:
//   - renderer.Texture: the texture
//   - error: the backend creation error on a miss
func (c *Cache) Acquire(desc renderer.TextureDesc) (renderer.Texture, error) {
	if tex, ok := c.TryAcquire(desc); ok {
		return tex, nil
	}
	tex, err := c.backend.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create cached texture %s (%dx%d %s): %w", desc.Label, desc.Width, desc.Height, desc.Format, err)
	}
	c.misses++
	c.outstanding[tex] = keyOf(desc)
	logger.Debugf("cache miss: %s %dx%d %s %s", desc.Label, desc.Width, desc.Height, desc.Format, KindOf(desc.Usage))
	return tex, nil
}

// TryAcquire returns an idle texture matching desc without creating one.
//
// Parameters:
//   - desc: the texture description
//
// Returns:
//   - renderer.Texture: the texture, or nil
//   - bool: false when no idle texture matches
func (c *Cache) TryAcquire(desc renderer.TextureDesc) (renderer.Texture, bool) {
	key := keyOf(desc)
	pool := c.idle[key]
	if len(pool) == 0 {
		return nil, false
	}
	tex := pool[len(pool)-1]
	pool[len(pool)-1] = nil
	c.idle[key] = pool[:len(pool)-1]
	delete(c.idleSet, tex)
	c.outstanding[tex] = key
	c.hits++
	return tex, true
}

// Release returns a texture to the idle pool without destroying it. Textures not created by
// the cache are adopted. A nil texture, or one already idle, is ignored.
//
// Parameters:
//   - tex: the texture
func (c *Cache) Release(tex renderer.Texture) {
	if tex == nil {
		return
	}
	if _, idle := c.idleSet[tex]; idle {
		return
	}
	key, ok := c.outstanding[tex]
	if !ok {
		key = keyOf(renderer.TextureDesc{
			Width:  tex.Width(),
			Height: tex.Height(),
			Layers: tex.Layers(),
			Format: tex.Format(),
			Usage:  tex.Usage(),
		})
	}
	delete(c.outstanding, tex)
	c.idle[key] = append(c.idle[key], tex)
	c.idleSet[tex] = struct{}{}
}

// Purge destroys every idle texture. Acquired textures are unaffected.
//
// Returns:
//   - int: the number of destroyed textures
func (c *Cache) Purge() int {
	n := 0
	for key, pool := range c.idle {
		for _, tex := range pool {
			tex.Release()
			n++
		}
		delete(c.idle, key)
	}
	clear(c.idleSet)
	if n > 0 {
		logger.Debugf("purged %d cached textures", n)
	}
	return n
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Idle:        len(c.idleSet),
		Outstanding: len(c.outstanding),
	}
}
