package scene

import "github.com/go-gl/mathgl/mgl32"

// NodeBuilderOption is a functional option for configuring a Node.
// Use the With* functions to create options.
type NodeBuilderOption func(n *node)

// WithPosition sets the local position of the node.
//
// Parameters:
//   - x, y, z: the position
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithPosition(x, y, z float32) NodeBuilderOption {
	return func(n *node) {
		n.local.Position = mgl32.Vec3{x, y, z}
	}
}

// WithRotation sets the local rotation of the node.
//
// Parameters:
//   - q: the rotation
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithRotation(q mgl32.Quat) NodeBuilderOption {
	return func(n *node) {
		n.local.Rotation = q
	}
}

// WithDirection rotates the node so +Z points along dir. Used for directional lights and cameras.
//
// Parameters:
//   - x, y, z: the world direction
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithDirection(x, y, z float32) NodeBuilderOption {
	return func(n *node) {
		n.local.Rotation = LookRotation(mgl32.Vec3{x, y, z}, mgl32.Vec3{0, 1, 0})
	}
}

// WithScale sets the local scale of the node.
//
// Parameters:
//   - x, y, z: the scale factors
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithScale(x, y, z float32) NodeBuilderOption {
	return func(n *node) {
		n.local.Scale = mgl32.Vec3{x, y, z}
	}
}

// WithAspects attaches aspects to the node.
//
// Parameters:
//   - aspects: drawables, lights or cameras
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithAspects(aspects ...any) NodeBuilderOption {
	return func(n *node) {
		n.aspects = append(n.aspects, aspects...)
	}
}

// WithChildren attaches child nodes.
//
// Parameters:
//   - children: the child nodes
//
// Returns:
//   - NodeBuilderOption: option function to apply
func WithChildren(children ...Node) NodeBuilderOption {
	return func(n *node) {
		for _, c := range children {
			n.children = append(n.children, c.Handle().Clone())
			c.setParent(n.self.Weak())
		}
	}
}
