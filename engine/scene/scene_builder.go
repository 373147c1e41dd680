package scene

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithName sets the scene's identifier.
//
// Parameters:
//   - name: the scene name
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *scene) {
		s.name = name
	}
}

// WithNodes adds initial root nodes to the scene.
//
// Parameters:
//   - nodes: the root nodes
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithNodes(nodes ...Node) SceneBuilderOption {
	return func(s *scene) {
		for _, n := range nodes {
			s.roots = append(s.roots, n.Handle().Clone())
		}
	}
}

// WithMainCamera selects the camera node. The node must carry a camera.Camera aspect.
//
// Parameters:
//   - n: the camera node
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithMainCamera(n Node) SceneBuilderOption {
	return func(s *scene) {
		s.mainCamera = n.Handle().Weak()
	}
}
