// Package shadow packs the variance shadow maps of the visible lights into a layered
// atlas texture. The allocator is rebuilt every frame; the atlas renders the caster
// moments of each light into a scratch target and blurs them into the reserved region.
package shadow

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/log"
)

var logger = log.New("shadow")

// Allocator hands out square-ish rectangular chunks of the atlas pages with a best-fit
// guillotine packer. Each page keeps a list of disjoint free boxes with inclusive bounds.
//
// An Allocator is used from the frame thread only.
type Allocator struct {
	size  uint32
	pages [][]common.Box2D
}

// NewAllocator creates an allocator for pages of size×size texels, reset and ready.
//
// Parameters:
//   - size: the page edge length in texels
//   - pages: the number of pages
//
// Returns:
//   - *Allocator: the allocator
func NewAllocator(size, pages uint32) *Allocator {
	a := &Allocator{
		size:  size,
		pages: make([][]common.Box2D, pages),
	}
	a.Reset()
	return a
}

// Size returns the page edge length in texels.
func (a *Allocator) Size() uint32 {
	return a.size
}

// Pages returns the number of pages.
func (a *Allocator) Pages() uint32 {
	return uint32(len(a.pages))
}

// Reset makes every page a single free box covering the whole page.
func (a *Allocator) Reset() {
	full := common.Box2D{Max: common.Point2D{X: a.size - 1, Y: a.size - 1}}
	for i := range a.pages {
		a.pages[i] = append(a.pages[i][:0], full)
	}
}

// FreeBoxes returns a copy of the free list of a page.
//
// Parameters:
//   - page: the page index
//
// Returns:
//   - []common.Box2D: the free boxes, nil for an unknown page
func (a *Allocator) FreeBoxes(page uint32) []common.Box2D {
	if int(page) >= len(a.pages) {
		return nil
	}
	return append([]common.Box2D(nil), a.pages[page]...)
}

// ReserveChunk reserves a width×height region on the first page that can hold it.
//
// Within a page the candidate with the smallest larger dimension wins, ties going to the
// earliest box in the list. The winner is swapped to the end of the list and removed, and
// its right and bottom residuals are appended. A failed reservation changes nothing.
//
// Parameters:
//   - width, height: the requested size in texels
//
// Returns:
//   - uint32: the page holding the region
//   - common.Box2D: the reserved region, [min, min+size-1]
//   - bool: false when no page has room or the size is zero
func (a *Allocator) ReserveChunk(width, height uint32) (uint32, common.Box2D, bool) {
	if width == 0 || height == 0 {
		return 0, common.Box2D{}, false
	}
	for page := range a.pages {
		free := a.pages[page]
		best := bestFit(free, width, height)
		if best < 0 {
			continue
		}
		last := len(free) - 1
		free[best], free[last] = free[last], free[best]
		box := free[last]
		free = free[:last]

		if box.Width() > width {
			free = append(free, common.Box2D{
				Min: common.Point2D{X: box.Min.X + width, Y: box.Min.Y},
				Max: common.Point2D{X: box.Max.X, Y: box.Min.Y + height - 1},
			})
		}
		if box.Height() > height {
			free = append(free, common.Box2D{
				Min: common.Point2D{X: box.Min.X, Y: box.Min.Y + height},
				Max: box.Max,
			})
		}
		a.pages[page] = free

		reserved := common.Box2D{
			Min: box.Min,
			Max: common.Point2D{X: box.Min.X + width - 1, Y: box.Min.Y + height - 1},
		}
		return uint32(page), reserved, true
	}
	return 0, common.Box2D{}, false
}

// bestFit returns the index of the fitting box with the smallest larger dimension, or -1.
func bestFit(free []common.Box2D, width, height uint32) int {
	best := -1
	var bestDim uint32
	for i, b := range free {
		w, h := b.Width(), b.Height()
		if w < width || h < height {
			continue
		}
		if dim := max(w, h); best < 0 || dim < bestDim {
			best, bestDim = i, dim
		}
	}
	return best
}
