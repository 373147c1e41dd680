// Package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

// Point2D is an integer texel coordinate.
type Point2D struct {
	X, Y uint32
}

// Box2D is an axis-aligned texel rectangle with inclusive bounds.
// A box covering a full W x H page is (0, 0)-(W-1, H-1).
type Box2D struct {
	Min Point2D
	Max Point2D
}

// Width returns the number of texel columns covered by the box.
func (b Box2D) Width() uint32 {
	return b.Max.X - b.Min.X + 1
}

// Height returns the number of texel rows covered by the box.
func (b Box2D) Height() uint32 {
	return b.Max.Y - b.Min.Y + 1
}

// Area returns the number of texels covered by the box.
func (b Box2D) Area() uint64 {
	return uint64(b.Width()) * uint64(b.Height())
}

// Overlaps reports whether two boxes share at least one texel.
func (b Box2D) Overlaps(o Box2D) bool {
	return b.Min.X <= o.Max.X && o.Min.X <= b.Max.X &&
		b.Min.Y <= o.Max.Y && o.Min.Y <= b.Max.Y
}

// Contains reports whether o lies completely inside b.
func (b Box2D) Contains(o Box2D) bool {
	return o.Min.X >= b.Min.X && o.Max.X <= b.Max.X &&
		o.Min.Y >= b.Min.Y && o.Max.Y <= b.Max.Y
}

// UV converts the box to normalized [0, 1] texture coordinates for a square page of the given size.
// Coordinates are divided by (size - 1) so that the inclusive max texel maps to 1.
//
// Parameters:
//   - size: the page edge length in texels
//
// Returns:
//   - [2]float32: normalized min corner
//   - [2]float32: normalized max corner
func (b Box2D) UV(size uint32) ([2]float32, [2]float32) {
	d := float32(size - 1)
	if d <= 0 {
		return [2]float32{}, [2]float32{}
	}
	return [2]float32{float32(b.Min.X) / d, float32(b.Min.Y) / d},
		[2]float32{float32(b.Max.X) / d, float32(b.Max.Y) / d}
}

// Color is a linear RGBA color.
type Color [4]float32
