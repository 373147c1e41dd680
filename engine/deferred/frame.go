package deferred

import (
	"github.com/chewxy/math32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
)

// FrameInfo is everything the passes of one frame know about the view. It is built at the
// start of Draw and never retained past the frame.
type FrameInfo struct {
	// Query is the scene the frame draws.
	Query scene.Query
	// CameraNode hosts Camera; its world transform places the view.
	CameraNode scene.Node
	Camera     camera.Camera

	Width  uint32
	Height uint32
	Aspect float32

	View        [16]float32
	Projection  [16]float32
	ViewProj    [16]float32
	InvViewProj [16]float32

	// Frustum is extracted from ViewProj; visible nodes intersect it.
	Frustum common.Frustum
}

// NewFrameInfo builds the frame description from the scene's main camera.
//
// Parameters:
//   - query: the scene
//   - width, height: the output size in pixels
//
// Returns:
//   - FrameInfo: the frame
//   - bool: false when the scene has no main camera
func NewFrameInfo(query scene.Query, width, height uint32) (FrameInfo, bool) {
	node, cam, ok := query.MainCamera()
	if !ok {
		return FrameInfo{}, false
	}
	f := FrameInfo{
		Query:      query,
		CameraNode: node,
		Camera:     cam,
		Width:      width,
		Height:     height,
		Aspect:     float32(width) / float32(max(height, 1)),
	}
	f.View = cam.ViewMatrix(node.World())
	f.Projection = cam.ProjectionMatrix(f.Aspect)
	common.Mul4(f.ViewProj[:], f.Projection[:], f.View[:])
	if !common.Invert4(f.InvViewProj[:], f.ViewProj[:]) {
		common.Identity(f.InvViewProj[:])
	}
	f.Frustum = common.ExtractFrustumFromMatrix(f.ViewProj[:])
	return f, true
}

// CameraPosition returns the world-space position of the camera.
func (f *FrameInfo) CameraPosition() [3]float32 {
	return f.CameraNode.Position()
}

// CameraView returns the view volume directional shadow maps are fitted to.
//
// Returns:
//   - shadow.CameraView: the camera position, direction, depth range and far plane height
func (f *FrameInfo) CameraView() shadow.CameraView {
	v := shadow.CameraView{
		Position: f.CameraNode.Position(),
		Forward:  f.CameraNode.Forward(),
		Near:     f.Camera.Near(),
		Far:      f.Camera.Far(),
		Aspect:   f.Aspect,
	}
	if f.Camera.Projection() == camera.ProjectionOrthographic {
		v.FarHeight = f.Camera.OrthoHeight()
	} else {
		v.FarHeight = 2 * v.Far * math32.Tan(f.Camera.Fov()*0.5)
	}
	return v
}
