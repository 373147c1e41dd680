package window

import "github.com/go-gl/glfw/v3.3/glfw"

// Key is a keyboard key. Values are GLFW key codes.
type Key int

// Keys the viewer binds.
const (
	KeyW      = Key(glfw.KeyW)
	KeyA      = Key(glfw.KeyA)
	KeyS      = Key(glfw.KeyS)
	KeyD      = Key(glfw.KeyD)
	KeyQ      = Key(glfw.KeyQ)
	KeyE      = Key(glfw.KeyE)
	KeyP      = Key(glfw.KeyP)
	KeyR      = Key(glfw.KeyR)
	KeySpace  = Key(glfw.KeySpace)
	KeyEscape = Key(glfw.KeyEscape)
	KeyLeft   = Key(glfw.KeyLeft)
	KeyRight  = Key(glfw.KeyRight)
	KeyUp     = Key(glfw.KeyUp)
	KeyDown   = Key(glfw.KeyDown)
)
