package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

// Projection selects how a camera maps view space to clip space.
type Projection int

const (
	// ProjectionPerspective uses a left-handed perspective frustum built from the vertical
	// field of view.
	ProjectionPerspective Projection = iota

	// ProjectionOrthographic uses a left-handed box of fixed height; the width follows the
	// output aspect ratio.
	ProjectionOrthographic
)

type cameraImpl struct {
	mu *sync.Mutex

	projection  Projection
	fov         float32
	orthoHeight float32
	near        float32
	far         float32
}

// Camera is the camera aspect of a scene node.
//
// A camera only holds projection settings. Its view matrix is the rigid inverse of the
// hosting node's world transform, so moving the node moves the camera. The aspect ratio is
// supplied per frame from the output size.
type Camera interface {
	// Projection returns the projection mode.
	//
	// Returns:
	//   - Projection: perspective or orthographic
	Projection() Projection

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// OrthoHeight returns the height of the orthographic view volume in world units.
	//
	// Returns:
	//   - float32: view volume height
	OrthoHeight() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// SetPerspective switches the camera to a perspective projection.
	//
	// Parameters:
	//   - fov: vertical field of view in radians
	//   - near: near plane distance
	//   - far: far plane distance
	SetPerspective(fov, near, far float32)

	// SetOrthographic switches the camera to an orthographic projection.
	//
	// Parameters:
	//   - height: view volume height in world units
	//   - near: near plane distance
	//   - far: far plane distance
	SetOrthographic(height, near, far float32)

	// ProjectionMatrix builds the left-handed projection matrix for an output aspect ratio.
	//
	// Parameters:
	//   - aspect: output width divided by height
	//
	// Returns:
	//   - [16]float32: column-major projection matrix with clip depth in [0, 1]
	ProjectionMatrix(aspect float32) [16]float32

	// ViewMatrix builds the view matrix from the hosting node's world transform.
	//
	// Parameters:
	//   - world: column-major world transform of the camera node
	//
	// Returns:
	//   - [16]float32: column-major view matrix
	ViewMatrix(world [16]float32) [16]float32
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new perspective Camera with a 45 degree field of view and
// any provided options applied.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:          &sync.Mutex{},
		projection:  ProjectionPerspective,
		fov:         45.0 * (math.Pi / 180.0), // radians
		orthoHeight: 10.0,
		near:        0.1,
		far:         1000.0,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *cameraImpl) Projection() Projection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projection
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) OrthoHeight() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orthoHeight
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) SetPerspective(fov, near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projection = ProjectionPerspective
	c.fov = fov
	c.near = near
	c.far = far
}

func (c *cameraImpl) SetOrthographic(height, near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projection = ProjectionOrthographic
	c.orthoHeight = height
	c.near = near
	c.far = far
}

func (c *cameraImpl) ProjectionMatrix(aspect float32) [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [16]float32
	if aspect <= 0 {
		aspect = 1
	}
	switch c.projection {
	case ProjectionOrthographic:
		common.OrthographicLH(out[:], c.orthoHeight*aspect, c.orthoHeight, c.near, c.far)
	default:
		common.PerspectiveLH(out[:], c.fov, aspect, c.near, c.far)
	}
	return out
}

func (c *cameraImpl) ViewMatrix(world [16]float32) [16]float32 {
	var out [16]float32
	common.RigidInverse(out[:], world[:])
	return out
}
