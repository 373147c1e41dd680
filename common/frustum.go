package common

import (
	"github.com/chewxy/math32"
)

// Volume is a convex region of world space that can be tested against bounding spheres.
// Scene queries accept any Volume to select the nodes they return.
type Volume interface {
	// IntersectsSphere reports whether the sphere overlaps the volume.
	//
	// Parameters:
	//   - s: the bounding sphere to test
	//
	// Returns:
	//   - bool: true if any part of the sphere is inside the volume
	IntersectsSphere(s Sphere) bool
}

// Sphere is a bounding sphere in world space.
type Sphere struct {
	Center [3]float32
	Radius float32
}

var _ Volume = Sphere{}
var _ Volume = &Frustum{}

// IntersectsSphere reports whether two spheres overlap.
func (s Sphere) IntersectsSphere(o Sphere) bool {
	d := [3]float32{o.Center[0] - s.Center[0], o.Center[1] - s.Center[1], o.Center[2] - s.Center[2]}
	r := s.Radius + o.Radius
	return Dot3(d, d) <= r*r
}

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// SignedDistance returns the signed distance from a point to the plane. Positive values are on the normal side.
func (p Plane) SignedDistance(point [3]float32) float32 {
	return Dot3(p.Normal, point) + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix.
// The matrix should be the combined Projection * View matrix producing clip depth in [0, 1].
// Uses the Gribb/Hartmann method for plane extraction.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: 16 float32 values representing the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj []float32) Frustum {
	var f Frustum

	// For column-major matrix M, row r is (M[r], M[4+r], M[8+r], M[12+r]).
	row := func(r int) [4]float32 {
		return [4]float32{viewProj[r], viewProj[4+r], viewProj[8+r], viewProj[12+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	set := func(index int, v [4]float32) {
		f.Planes[index] = Plane{Normal: [3]float32{v[0], v[1], v[2]}, Distance: v[3]}
	}
	add := func(a, b [4]float32) [4]float32 {
		return [4]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
	}
	sub := func(a, b [4]float32) [4]float32 {
		return [4]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2], a[3] - b[3]}
	}

	set(FrustumLeft, add(r3, r0))
	set(FrustumRight, sub(r3, r0))
	set(FrustumBottom, add(r3, r1))
	set(FrustumTop, sub(r3, r1))
	// Clip depth is [0, 1], so the near plane is z >= 0 rather than z >= -w.
	set(FrustumNear, r2)
	set(FrustumFar, sub(r3, r2))

	for i := range f.Planes {
		f.normalizePlane(i)
	}

	return f
}

// IntersectsSphere reports whether a sphere is at least partially inside all six planes.
func (f *Frustum) IntersectsSphere(s Sphere) bool {
	for i := range f.Planes {
		if f.Planes[i].SignedDistance(s.Center) < -s.Radius {
			return false
		}
	}
	return true
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := math32.Sqrt(Dot3(p.Normal, p.Normal))

	if length > 0 {
		invLen := 1.0 / length
		p.Normal[0] *= invLen
		p.Normal[1] *= invLen
		p.Normal[2] *= invLen
		p.Distance *= invLen
	}
}
