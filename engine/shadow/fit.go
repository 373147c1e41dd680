package shadow

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

// CameraView is the part of the frame camera that directional shadow maps are fitted to.
type CameraView struct {
	Position [3]float32
	Forward  [3]float32
	Near     float32
	Far      float32
	// FarHeight is the height of the view volume at the far plane: 2·far·tan(fov/2) for a
	// perspective camera, the view height for an orthographic one.
	FarHeight float32
	Aspect    float32
}

// LightVolume is the region of space whose casters are drawn into a directional shadow map:
// a box aligned to the light basis, Diameter wide across the light and 2·domain deep along it.
type LightVolume struct {
	Center   [3]float32
	Right    [3]float32
	Up       [3]float32
	Forward  [3]float32
	Diameter float32
	Frustum  common.Frustum
}

// FitDirectional fits the light volume of a directional light to the camera view. The
// volume is centered halfway between the camera near and far planes; its width is a third of
// the far plane diagonal extended by the far distance.
//
// Parameters:
//   - forward: the light direction of travel
//   - view: the camera
//   - domain: the half depth of the volume along the light direction
//
// Returns:
//   - LightVolume: the fitted volume
func FitDirectional(forward [3]float32, view CameraView, domain float32) LightVolume {
	f := mgl32.Vec3(common.Normalize3(forward))
	r, u := common.OrthonormalBasis(f)
	right, up := mgl32.Vec3(r), mgl32.Vec3(u)

	camForward := mgl32.Vec3(common.Normalize3(view.Forward))
	center := mgl32.Vec3(view.Position).Add(camForward.Mul((view.Near + view.Far) * 0.5))
	diameter := mgl32.Vec3{view.FarHeight * view.Aspect, view.FarHeight, view.Far}.Len() / 3
	half := diameter * 0.5

	plane := func(normal, point mgl32.Vec3) common.Plane {
		return common.Plane{Normal: normal, Distance: -normal.Dot(point)}
	}
	var fr common.Frustum
	fr.Planes[common.FrustumNear] = plane(f, center.Sub(f.Mul(domain)))
	fr.Planes[common.FrustumFar] = plane(f.Mul(-1), center.Add(f.Mul(domain)))
	fr.Planes[common.FrustumLeft] = plane(right, center.Sub(right.Mul(half)))
	fr.Planes[common.FrustumRight] = plane(right.Mul(-1), center.Add(right.Mul(half)))
	fr.Planes[common.FrustumBottom] = plane(up, center.Sub(up.Mul(half)))
	fr.Planes[common.FrustumTop] = plane(up.Mul(-1), center.Add(up.Mul(half)))

	return LightVolume{
		Center:   center,
		Right:    right,
		Up:       up,
		Forward:  f,
		Diameter: diameter,
		Frustum:  fr,
	}
}

// DepthRange returns the extent of a set of bounding spheres along the light direction,
// measured from the volume center. With no spheres the range is [-1, 1].
//
// Parameters:
//   - v: the light volume
//   - spheres: the caster bounds
//
// Returns:
//   - float32: the nearest caster distance
//   - float32: the farthest caster distance
func (v LightVolume) DepthRange(spheres []common.Sphere) (float32, float32) {
	if len(spheres) == 0 {
		return -1, 1
	}
	zMin, zMax := math32.MaxFloat32, -math32.MaxFloat32
	center := mgl32.Vec3(v.Center)
	forward := mgl32.Vec3(v.Forward)
	for _, s := range spheres {
		d := mgl32.Vec3(s.Center).Sub(center).Dot(forward)
		zMin = min(zMin, d-s.Radius)
		zMax = max(zMax, d+s.Radius)
	}
	if zMax <= zMin {
		zMax = zMin + 1
	}
	return zMin, zMax
}

// ViewProj builds the orthographic world-to-clip transform of the volume for a depth range.
//
// Parameters:
//   - zMin, zMax: the depth range from DepthRange
//
// Returns:
//   - [16]float32: column-major view-projection matrix
func (v LightVolume) ViewProj(zMin, zMax float32) [16]float32 {
	var view, proj, out [16]float32
	common.LookToLH(view[:], v.Center, v.Right, v.Up, v.Forward)
	common.OrthographicLH(proj[:], v.Diameter, v.Diameter, zMin, zMax)
	common.Mul4(out[:], proj[:], view[:])
	return out
}
