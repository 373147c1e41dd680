package model

import (
	"github.com/chewxy/math32"
)

// NewCube builds an axis-aligned cube centered on the origin with one shadow-casting subset.
//
// Parameters:
//   - size: edge length
//
// Returns:
//   - Model: the cube model
func NewCube(size float32) Model {
	h := size / 2
	faces := []struct {
		normal, u, v [3]float32
	}{
		{[3]float32{1, 0, 0}, [3]float32{0, 0, 1}, [3]float32{0, 1, 0}},
		{[3]float32{-1, 0, 0}, [3]float32{0, 0, -1}, [3]float32{0, 1, 0}},
		{[3]float32{0, 1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, 1}},
		{[3]float32{0, -1, 0}, [3]float32{1, 0, 0}, [3]float32{0, 0, -1}},
		{[3]float32{0, 0, 1}, [3]float32{-1, 0, 0}, [3]float32{0, 1, 0}},
		{[3]float32{0, 0, -1}, [3]float32{1, 0, 0}, [3]float32{0, 1, 0}},
	}
	vertices := make([]GPUVertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			var p [3]float32
			for i := range 3 {
				p[i] = (f.normal[i] + c[0]*f.u[i] + c[1]*f.v[i]) * h
			}
			vertices = append(vertices, GPUVertex{
				Position: p,
				Normal:   f.normal,
				TexCoord: [2]float32{(c[0] + 1) / 2, 1 - (c[1]+1)/2},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return NewModel(WithName("cube"), WithGeometry(vertices, indices))
}

// NewPlane builds a square on the XZ plane facing +Y. Planes are not shadow casters.
//
// Parameters:
//   - size: edge length
//
// Returns:
//   - Model: the plane model
func NewPlane(size float32) Model {
	h := size / 2
	vertices := []GPUVertex{
		{Position: [3]float32{-h, 0, -h}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{0, 1}},
		{Position: [3]float32{h, 0, -h}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{1, 1}},
		{Position: [3]float32{h, 0, h}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{1, 0}},
		{Position: [3]float32{-h, 0, h}, Normal: [3]float32{0, 1, 0}, TexCoord: [2]float32{0, 0}},
	}
	indices := []uint32{0, 2, 1, 0, 3, 2}
	return NewModel(
		WithName("plane"),
		WithSubsets(Subset{IndexCount: 6}),
		WithGeometry(vertices, indices),
	)
}

// NewSphere builds a UV sphere centered on the origin.
//
// Parameters:
//   - radius: sphere radius
//   - rings: number of latitude bands (at least 2)
//   - segments: number of longitude bands (at least 3)
//
// Returns:
//   - Model: the sphere model
func NewSphere(radius float32, rings, segments int) Model {
	rings = max(rings, 2)
	segments = max(segments, 3)
	vertices := make([]GPUVertex, 0, (rings+1)*(segments+1))
	for r := 0; r <= rings; r++ {
		phi := math32.Pi * float32(r) / float32(rings)
		for s := 0; s <= segments; s++ {
			theta := 2 * math32.Pi * float32(s) / float32(segments)
			n := [3]float32{
				math32.Sin(phi) * math32.Cos(theta),
				math32.Cos(phi),
				math32.Sin(phi) * math32.Sin(theta),
			}
			vertices = append(vertices, GPUVertex{
				Position: [3]float32{n[0] * radius, n[1] * radius, n[2] * radius},
				Normal:   n,
				TexCoord: [2]float32{float32(s) / float32(segments), float32(r) / float32(rings)},
			})
		}
	}
	indices := make([]uint32, 0, rings*segments*6)
	stride := uint32(segments + 1)
	for r := range uint32(rings) {
		for s := range uint32(segments) {
			a := r*stride + s
			b := a + stride
			indices = append(indices, a, a+1, b, a+1, b+1, b)
		}
	}
	return NewModel(WithName("sphere"), WithGeometry(vertices, indices))
}
