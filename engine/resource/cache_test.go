package resource_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
)

func lightBufferDesc(w, h uint32) renderer.TextureDesc {
	return renderer.TextureDesc{
		Label:  "Light Buffer",
		Width:  w,
		Height: h,
		Format: renderer.FormatRGBA16Float,
		Usage:  renderer.TextureUsageSampled | renderer.TextureUsageStorage,
	}
}

func TestCacheReusesReleasedTextures(t *testing.T) {
	rec := renderertest.NewRecorder()
	c := resource.NewCache(rec)

	a, err := c.Acquire(lightBufferDesc(640, 480))
	require.NoError(t, err)
	c.Release(a)

	b, err := c.Acquire(lightBufferDesc(640, 480))
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, rec.Count("CreateTexture"))

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Outstanding)
	assert.Equal(t, 0, stats.Idle)
}

func TestCacheKeysOnSizeFormatAndKind(t *testing.T) {
	rec := renderertest.NewRecorder()
	c := resource.NewCache(rec)

	a, err := c.Acquire(lightBufferDesc(640, 480))
	require.NoError(t, err)
	c.Release(a)

	_, err = c.Acquire(lightBufferDesc(320, 240))
	require.NoError(t, err)

	rt := lightBufferDesc(640, 480)
	rt.Usage = renderer.TextureUsageSampled | renderer.TextureUsageRenderTarget
	_, err = c.Acquire(rt)
	require.NoError(t, err)

	other := lightBufferDesc(640, 480)
	other.Format = renderer.FormatRGBA8Unorm
	_, err = c.Acquire(other)
	require.NoError(t, err)

	assert.Equal(t, 4, rec.Count("CreateTexture"))
	assert.Equal(t, 1, c.Stats().Idle)
	assert.Equal(t, resource.KindRenderTarget, resource.KindOf(rt.Usage))
	assert.Equal(t, resource.KindGeneral, resource.KindOf(other.Usage))
}

func TestCacheReleaseIsIdempotentAndNilSafe(t *testing.T) {
	rec := renderertest.NewRecorder()
	c := resource.NewCache(rec)

	c.Release(nil)
	a, err := c.Acquire(lightBufferDesc(8, 8))
	require.NoError(t, err)
	c.Release(a)
	c.Release(a)
	assert.Equal(t, 1, c.Stats().Idle)

	b, _ := c.Acquire(lightBufferDesc(8, 8))
	d, _ := c.Acquire(lightBufferDesc(8, 8))
	assert.NotSame(t, b, d, "a texture released twice is handed out once")
}

func TestCachePurgeDestroysIdleOnly(t *testing.T) {
	rec := renderertest.NewRecorder()
	c := resource.NewCache(rec)

	a, _ := c.Acquire(lightBufferDesc(8, 8))
	b, _ := c.Acquire(lightBufferDesc(16, 16))
	c.Release(a)

	assert.Equal(t, 1, c.Purge())
	assert.True(t, a.(*renderertest.Texture).Released)
	assert.False(t, b.(*renderertest.Texture).Released)
	assert.Equal(t, 1, rec.LiveTextures())

	_, ok := c.TryAcquire(lightBufferDesc(8, 8))
	assert.False(t, ok)
}

func TestCacheAdoptsForeignTextures(t *testing.T) {
	rec := renderertest.NewRecorder()
	c := resource.NewCache(rec)

	tex, err := rec.CreateTexture(lightBufferDesc(32, 32))
	require.NoError(t, err)
	c.Release(tex)

	got, ok := c.TryAcquire(lightBufferDesc(32, 32))
	require.True(t, ok)
	assert.Same(t, tex, got)
}

func TestCacheCreationFailure(t *testing.T) {
	rec := renderertest.NewRecorder()
	boom := errors.New("out of memory")
	rec.FailOn("CreateTexture", boom)
	c := resource.NewCache(rec)

	_, err := c.Acquire(lightBufferDesc(8, 8))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(0), c.Stats().Misses)
}
