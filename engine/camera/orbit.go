package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/chewxy/math32"
)

// Orbit moves a camera node on a sphere around a target point.
// Spherical coordinates are kept and the eye position is recomputed on every change.
type Orbit struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32

	radius    float32
	azimuth   float32 // horizontal angle around Y
	elevation float32 // vertical angle from the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed float32
	zoomSpeed  float32
}

// OrbitOption is a functional option for configuring an Orbit.
type OrbitOption func(*Orbit)

// WithRadius sets the initial orbit radius (distance from target).
//
// Parameters:
//   - radius: distance from the orbit target
//
// Returns:
//   - OrbitOption: functional option to set the radius
func WithRadius(radius float32) OrbitOption {
	return func(o *Orbit) {
		o.radius = radius
	}
}

// WithTarget sets the pivot point.
//
// Parameters:
//   - x, y, z: target coordinates
//
// Returns:
//   - OrbitOption: functional option to set the target position
func WithTarget(x, y, z float32) OrbitOption {
	return func(o *Orbit) {
		o.target = [3]float32{x, y, z}
	}
}

// WithElevation sets the initial vertical angle from the horizontal plane.
//
// Parameters:
//   - elevation: vertical angle in radians
//
// Returns:
//   - OrbitOption: functional option to set the elevation
func WithElevation(elevation float32) OrbitOption {
	return func(o *Orbit) {
		o.elevation = elevation
	}
}

// NewOrbit creates an Orbit with sensible defaults and any provided options applied.
//
// Parameters:
//   - options: functional options to configure the orbit
//
// Returns:
//   - *Orbit: the newly created orbit
func NewOrbit(options ...OrbitOption) *Orbit {
	o := &Orbit{
		mu:           &sync.Mutex{},
		radius:       25.0,
		elevation:    float32(math.Pi / 6),
		minRadius:    1.0,
		maxRadius:    2000.0,
		minElevation: -float32(math.Pi/2 - 0.1),
		maxElevation: float32(math.Pi/2 - 0.1),
		orbitSpeed:   0.03,
		zoomSpeed:    1.0,
	}
	for _, option := range options {
		option(o)
	}
	o.updatePosition()
	return o
}

// updatePosition recomputes the eye from the spherical coordinates. Caller must hold the mutex.
func (o *Orbit) updatePosition() {
	o.radius = min(max(o.radius, o.minRadius), o.maxRadius)
	o.elevation = min(max(o.elevation, o.minElevation), o.maxElevation)
	cosElev, sinElev := math32.Cos(o.elevation), math32.Sin(o.elevation)
	cosAzim, sinAzim := math32.Cos(o.azimuth), math32.Sin(o.azimuth)
	o.position[0] = o.target[0] + o.radius*cosElev*sinAzim
	o.position[1] = o.target[1] + o.radius*sinElev
	o.position[2] = o.target[2] - o.radius*cosElev*cosAzim
}

// Position returns the current eye position.
func (o *Orbit) Position() [3]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.position
}

// Target returns the pivot point.
func (o *Orbit) Target() [3]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.target
}

// Rotate advances the azimuth and elevation by multiples of the orbit speed.
//
// Parameters:
//   - horizontal: azimuth steps, positive to the right
//   - vertical: elevation steps, positive upward
func (o *Orbit) Rotate(horizontal, vertical float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.azimuth += horizontal * o.orbitSpeed
	o.elevation += vertical * o.orbitSpeed
	o.updatePosition()
}

// Zoom moves the eye toward (positive delta) or away from the target.
//
// Parameters:
//   - delta: zoom steps
func (o *Orbit) Zoom(delta float32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.radius -= delta * o.zoomSpeed
	o.updatePosition()
}

// World returns the world transform of a node placed at the eye and facing the target.
// The transform's +Z axis is the viewing direction.
//
// Returns:
//   - [16]float32: column-major world transform
func (o *Orbit) World() [16]float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	forward := common.Normalize3([3]float32{
		o.target[0] - o.position[0],
		o.target[1] - o.position[1],
		o.target[2] - o.position[2],
	})
	right, up := common.OrthonormalBasis(forward)
	return [16]float32{
		right[0], right[1], right[2], 0,
		up[0], up[1], up[2], 0,
		forward[0], forward[1], forward[2], 0,
		o.position[0], o.position[1], o.position[2], 1,
	}
}
