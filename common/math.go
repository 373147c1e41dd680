package common

import (
	"unsafe"

	"github.com/chewxy/math32"
)

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order.
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// TransformPoint multiplies the point (x, y, z, 1) by a column-major matrix and performs the perspective divide.
//
// Parameters:
//   - m: 16-element column-major matrix
//   - p: point to transform
//
// Returns:
//   - [3]float32: the transformed point
func TransformPoint(m []float32, p [3]float32) [3]float32 {
	x := m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12]
	y := m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13]
	z := m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14]
	w := m[3]*p[0] + m[7]*p[1] + m[11]*p[2] + m[15]
	if w != 0 && w != 1 {
		x, y, z = x/w, y/w, z/w
	}
	return [3]float32{x, y, z}
}

// PerspectiveLH creates a left-handed perspective projection matrix mapping view-space depth
// [near, far] to clip depth [0, 1]. The camera looks down +Z.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
func PerspectiveLH(out []float32, fovY, aspect, near, far float32) {
	f := 1.0 / math32.Tan(fovY/2.0)
	Identity(out)

	out[0] = f / aspect
	out[5] = f
	out[10] = far / (far - near)
	out[11] = 1.0
	out[14] = -(near * far) / (far - near)
	out[15] = 0.0
}

// OrthographicLH creates a left-handed orthographic projection matrix centered on the view axis,
// mapping view-space depth [near, far] to clip depth [0, 1].
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - width: view volume width
//   - height: view volume height
//   - near: near clipping plane distance
//   - far: far clipping plane distance (must differ from near)
func OrthographicLH(out []float32, width, height, near, far float32) {
	Identity(out)
	out[0] = 2 / width
	out[5] = 2 / height
	out[10] = 1 / (far - near)
	out[14] = -near / (far - near)
}

// LookToLH builds a left-handed view matrix from an eye position and orthonormal basis vectors.
// The forward vector maps to +Z in view space.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eye: world-space eye position
//   - right, up, forward: orthonormal world-space basis of the viewer
func LookToLH(out []float32, eye, right, up, forward [3]float32) {
	out[0], out[4], out[8], out[12] = right[0], right[1], right[2], -Dot3(right, eye)
	out[1], out[5], out[9], out[13] = up[0], up[1], up[2], -Dot3(up, eye)
	out[2], out[6], out[10], out[14] = forward[0], forward[1], forward[2], -Dot3(forward, eye)
	out[3], out[7], out[11], out[15] = 0, 0, 0, 1
}

// Invert4 computes the inverse of a 4x4 column-major matrix using the Laplace
// expansion (cofactor) method. If the matrix is singular (determinant ≈ 0) the
// output is left unchanged and the function returns false.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - m: source matrix (16 elements, column-major)
//
// Returns:
//   - bool: true if the matrix was successfully inverted, false if singular
func Invert4(out, m []float32) bool {
	// 2x2 sub-determinants of the upper-left and lower-right quadrants.
	s0 := m[0]*m[5] - m[4]*m[1]
	s1 := m[0]*m[6] - m[4]*m[2]
	s2 := m[0]*m[7] - m[4]*m[3]
	s3 := m[1]*m[6] - m[5]*m[2]
	s4 := m[1]*m[7] - m[5]*m[3]
	s5 := m[2]*m[7] - m[6]*m[3]

	c5 := m[10]*m[15] - m[14]*m[11]
	c4 := m[9]*m[15] - m[13]*m[11]
	c3 := m[9]*m[14] - m[13]*m[10]
	c2 := m[8]*m[15] - m[12]*m[11]
	c1 := m[8]*m[14] - m[12]*m[10]
	c0 := m[8]*m[13] - m[12]*m[9]

	det := s0*c5 - s1*c4 + s2*c3 + s3*c2 - s4*c1 + s5*c0
	if det == 0 {
		return false
	}

	invDet := 1.0 / det

	var buf [16]float32
	buf[0] = (m[5]*c5 - m[6]*c4 + m[7]*c3) * invDet
	buf[1] = (-m[1]*c5 + m[2]*c4 - m[3]*c3) * invDet
	buf[2] = (m[13]*s5 - m[14]*s4 + m[15]*s3) * invDet
	buf[3] = (-m[9]*s5 + m[10]*s4 - m[11]*s3) * invDet

	buf[4] = (-m[4]*c5 + m[6]*c2 - m[7]*c1) * invDet
	buf[5] = (m[0]*c5 - m[2]*c2 + m[3]*c1) * invDet
	buf[6] = (-m[12]*s5 + m[14]*s2 - m[15]*s1) * invDet
	buf[7] = (m[8]*s5 - m[10]*s2 + m[11]*s1) * invDet

	buf[8] = (m[4]*c4 - m[5]*c2 + m[7]*c0) * invDet
	buf[9] = (-m[0]*c4 + m[1]*c2 - m[3]*c0) * invDet
	buf[10] = (m[12]*s4 - m[13]*s2 + m[15]*s0) * invDet
	buf[11] = (-m[8]*s4 + m[9]*s2 - m[11]*s0) * invDet

	buf[12] = (-m[4]*c3 + m[5]*c1 - m[6]*c0) * invDet
	buf[13] = (m[0]*c3 - m[1]*c1 + m[2]*c0) * invDet
	buf[14] = (-m[12]*s3 + m[13]*s1 - m[14]*s0) * invDet
	buf[15] = (m[8]*s3 - m[9]*s1 + m[10]*s0) * invDet

	copy(out, buf[:])
	return true
}

// Dot3 returns the dot product of two 3-vectors.
func Dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// Cross3 returns the cross product a x b.
func Cross3(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Length3 returns the euclidean length of a 3-vector.
func Length3(v [3]float32) float32 {
	return math32.Sqrt(Dot3(v, v))
}

// Normalize3 returns v scaled to unit length, or v unchanged when its length is zero.
func Normalize3(v [3]float32) [3]float32 {
	l := Length3(v)
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}

// OrthonormalBasis builds right and up vectors completing a left-handed basis around a forward direction.
// A world up of +Y is used unless forward is nearly parallel to it, in which case +Z is used.
//
// Parameters:
//   - forward: unit forward direction
//
// Returns:
//   - [3]float32: right vector
//   - [3]float32: up vector
func OrthonormalBasis(forward [3]float32) ([3]float32, [3]float32) {
	worldUp := [3]float32{0, 1, 0}
	if math32.Abs(Dot3(forward, worldUp)) > 0.999 {
		worldUp = [3]float32{0, 0, 1}
	}
	right := Normalize3(Cross3(worldUp, forward))
	up := Cross3(forward, right)
	return right, up
}

// DivCeil returns ceil(n / d) for positive integers.
func DivCeil(n, d uint32) uint32 {
	if d == 0 {
		return 0
	}
	return (n + d - 1) / d
}

// RigidInverse computes the view matrix of a world transform by discarding scale and
// inverting the remaining rotation and translation. The transform's X, Y and Z axes become
// the view's right, up and forward directions.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - world: 16-element column-major world transform
func RigidInverse(out, world []float32) {
	right := Normalize3([3]float32{world[0], world[1], world[2]})
	up := Normalize3([3]float32{world[4], world[5], world[6]})
	forward := Normalize3([3]float32{world[8], world[9], world[10]})
	eye := [3]float32{world[12], world[13], world[14]}
	LookToLH(out, eye, right, up, forward)
}
