package shadow_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
)

func box(x0, y0, x1, y1 uint32) common.Box2D {
	return common.Box2D{Min: common.Point2D{X: x0, Y: y0}, Max: common.Point2D{X: x1, Y: y1}}
}

type reservation struct {
	page uint32
	box  common.Box2D
}

func TestReserveChunk1024Then512(t *testing.T) {
	a := shadow.NewAllocator(2048, 1)

	page, b, ok := a.ReserveChunk(1024, 1024)
	require.True(t, ok)
	assert.Equal(t, uint32(0), page)
	assert.Equal(t, box(0, 0, 1023, 1023), b)
	assert.Equal(t, []common.Box2D{box(1024, 0, 2047, 1023), box(0, 1024, 2047, 2047)}, a.FreeBoxes(0))

	page, b, ok = a.ReserveChunk(512, 512)
	require.True(t, ok)
	assert.Equal(t, uint32(0), page)
	assert.Equal(t, box(1024, 0, 1535, 511), b)
	assert.Equal(t, []common.Box2D{
		box(0, 1024, 2047, 2047),
		box(1536, 0, 2047, 511),
		box(1024, 512, 2047, 1023),
	}, a.FreeBoxes(0))

	uvMin, uvMax := b.UV(a.Size())
	assert.InDelta(t, 1024.0/2047, uvMin[0], 1e-6)
	assert.InDelta(t, 0, uvMin[1], 1e-6)
	assert.InDelta(t, 1535.0/2047, uvMax[0], 1e-6)
	assert.InDelta(t, 511.0/2047, uvMax[1], 1e-6)
}

func TestReserveChunkTilesPage(t *testing.T) {
	a := shadow.NewAllocator(2048, 1)
	want := []common.Box2D{
		box(0, 0, 1023, 1023),
		box(1024, 0, 2047, 1023),
		box(0, 1024, 1023, 2047),
		box(1024, 1024, 2047, 2047),
	}
	for _, w := range want {
		_, b, ok := a.ReserveChunk(1024, 1024)
		require.True(t, ok)
		assert.Equal(t, w, b)
	}
	_, _, ok := a.ReserveChunk(1, 1)
	assert.False(t, ok)
	assert.Empty(t, a.FreeBoxes(0))
}

func TestReserveChunkPicksSmallestFittingBox(t *testing.T) {
	a := shadow.NewAllocator(30, 1)
	for _, size := range [][2]uint32{{10, 10}, {10, 20}, {10, 10}} {
		_, _, ok := a.ReserveChunk(size[0], size[1])
		require.True(t, ok)
	}
	require.Equal(t, []common.Box2D{box(10, 10, 29, 29), box(20, 0, 29, 9)}, a.FreeBoxes(0))

	_, b, ok := a.ReserveChunk(8, 8)
	require.True(t, ok)
	assert.Equal(t, box(20, 0, 27, 7), b)
	assert.Equal(t, []common.Box2D{
		box(10, 10, 29, 29),
		box(28, 0, 29, 7),
		box(20, 8, 29, 9),
	}, a.FreeBoxes(0))
}

func TestReserveChunkTieGoesToEarliestBox(t *testing.T) {
	a := shadow.NewAllocator(8, 1)
	_, _, ok := a.ReserveChunk(1, 1)
	require.True(t, ok)
	_, b, ok := a.ReserveChunk(1, 2)
	require.True(t, ok)
	assert.Equal(t, box(0, 1, 0, 2), b)

	// (1,0)-(7,0) and (1,1)-(7,2) both have a larger side of 7.
	_, b, ok = a.ReserveChunk(1, 1)
	require.True(t, ok)
	assert.Equal(t, box(1, 0, 1, 0), b)
	assert.Equal(t, []common.Box2D{box(0, 3, 7, 7), box(1, 1, 7, 2), box(2, 0, 7, 0)}, a.FreeBoxes(0))
}

func TestReserveChunkFallsThroughPages(t *testing.T) {
	a := shadow.NewAllocator(1024, 2)
	page, _, ok := a.ReserveChunk(1024, 1024)
	require.True(t, ok)
	assert.Equal(t, uint32(0), page)

	page, b, ok := a.ReserveChunk(512, 256)
	require.True(t, ok)
	assert.Equal(t, uint32(1), page)
	assert.Equal(t, box(0, 0, 511, 255), b)
}

func TestReserveChunkFailureLeavesListsUntouched(t *testing.T) {
	a := shadow.NewAllocator(2048, 2)
	_, _, ok := a.ReserveChunk(1024, 1024)
	require.True(t, ok)
	_, _, ok = a.ReserveChunk(2048, 2048)
	require.True(t, ok, "second page")

	before := [][]common.Box2D{a.FreeBoxes(0), a.FreeBoxes(1)}
	_, _, ok = a.ReserveChunk(1500, 1500)
	assert.False(t, ok)
	_, _, ok = a.ReserveChunk(0, 16)
	assert.False(t, ok)
	assert.Equal(t, before, [][]common.Box2D{a.FreeBoxes(0), a.FreeBoxes(1)})
}

func TestResetIsIdempotent(t *testing.T) {
	a := shadow.NewAllocator(2048, 3)
	full := []common.Box2D{box(0, 0, 2047, 2047)}

	a.Reset()
	a.Reset()
	for p := range a.Pages() {
		assert.Equal(t, full, a.FreeBoxes(p))
	}

	_, _, ok := a.ReserveChunk(512, 512)
	require.True(t, ok)
	a.Reset()
	for p := range a.Pages() {
		assert.Equal(t, full, a.FreeBoxes(p))
	}
	assert.Nil(t, a.FreeBoxes(3))
}

func TestReserveChunkIsDeterministic(t *testing.T) {
	run := func(a *shadow.Allocator) []reservation {
		rng := rand.New(rand.NewSource(7))
		var out []reservation
		for range 64 {
			w := uint32(16 << rng.Intn(6))
			h := uint32(16 << rng.Intn(6))
			if page, b, ok := a.ReserveChunk(w, h); ok {
				out = append(out, reservation{page, b})
			}
		}
		return out
	}
	a := shadow.NewAllocator(2048, 2)
	first := run(a)
	a.Reset()
	assert.Equal(t, first, run(a))
	assert.Equal(t, first, run(shadow.NewAllocator(2048, 2)))
}

func TestReservationsAreSound(t *testing.T) {
	const size = 1024
	a := shadow.NewAllocator(size, 2)
	page := box(0, 0, size-1, size-1)
	rng := rand.New(rand.NewSource(42))

	var got []reservation
	for range 200 {
		w := uint32(1 + rng.Intn(300))
		h := uint32(1 + rng.Intn(300))
		p, b, ok := a.ReserveChunk(w, h)
		if !ok {
			continue
		}
		require.Equal(t, w, b.Width())
		require.Equal(t, h, b.Height())
		require.True(t, page.Contains(b), "%v outside the page", b)
		for _, prev := range got {
			if prev.page == p {
				require.False(t, prev.box.Overlaps(b), "%v overlaps %v", b, prev.box)
			}
		}
		got = append(got, reservation{p, b})
	}
	require.NotEmpty(t, got)

	// Reserved and free boxes partition every page.
	for p := range a.Pages() {
		free := a.FreeBoxes(p)
		var area uint64
		for i, f := range free {
			require.True(t, page.Contains(f))
			area += f.Area()
			for _, g := range free[i+1:] {
				require.False(t, f.Overlaps(g), "free boxes %v and %v overlap", f, g)
			}
			for _, r := range got {
				if r.page == p {
					require.False(t, f.Overlaps(r.box), "free box %v overlaps reserved %v", f, r.box)
				}
			}
		}
		for _, r := range got {
			if r.page == p {
				area += r.box.Area()
			}
		}
		assert.Equal(t, uint64(size*size), area, "page %d", p)
	}
}
