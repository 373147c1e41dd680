package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

// Transform is the local translation, rotation and scale of a node relative to its parent.
// Matrices are column-major and left-handed; +Z is forward.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// IdentityTransform returns a transform with no translation, no rotation and unit scale.
func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// Matrix returns translation * rotation * scale.
func (t Transform) Matrix() [16]float32 {
	m := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z()).
		Mul4(t.Rotation.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
	return [16]float32(m)
}

// LookRotation returns the rotation turning +Z toward forward with +Y as close to up as
// possible. A forward parallel to up falls back to the basis chosen by common.OrthonormalBasis.
//
// Parameters:
//   - forward: the direction to face
//   - up: the reference up direction
//
// Returns:
//   - mgl32.Quat: the rotation
func LookRotation(forward, up mgl32.Vec3) mgl32.Quat {
	f := forward.Normalize()
	r := up.Cross(f)
	if r.Len() < 1e-6 {
		right, _ := common.OrthonormalBasis([3]float32(f))
		r = mgl32.Vec3(right)
	}
	r = r.Normalize()
	u := f.Cross(r)
	basis := mgl32.Mat3FromCols(r, u, f)
	return mgl32.Mat4ToQuat(basis.Mat4())
}
