// Package deferred renders a scene in deferred passes: a geometry pass writes surface
// attributes into the GBuffer, a compute pass accumulates every visible light with its
// variance shadow map into the light buffer, and the post chain turns the light buffer into
// the displayable frame.
package deferred

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-deferred/log"
)

var logger = log.New("deferred")

//go:embed assets/*.wgsl
var assets embed.FS

var shaders = func() *shader.Library {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(fmt.Sprintf("deferred: embedded assets: %v", err))
	}
	return shader.NewLibrary("deferred", sub)
}()

// Shaders returns the library holding the geometry and lighting shaders.
func Shaders() *shader.Library {
	return shaders
}

// State is the stage of the frame the renderer is recording.
type State int

const (
	// StateIdle is the state between frames.
	StateIdle State = iota
	// StateGeometry records the GBuffer pass.
	StateGeometry
	// StateLighting records the shadow maps and the light accumulation pass.
	StateLighting
	// StatePost records luminance, bloom and tonemapping.
	StatePost
	// StatePresent submits the frame.
	StatePresent
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGeometry:
		return "geometry"
	case StateLighting:
		return "lighting"
	case StatePost:
		return "post"
	case StatePresent:
		return "present"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
