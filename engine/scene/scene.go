package scene

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
)

// Query is the read-only view of a scene the renderer consumes each frame. Every call walks
// the current graph, returns a finite result and has no side effects.
type Query interface {
	// MeshNodes returns the nodes with a Drawable aspect whose bounds intersect v, in
	// depth-first order. A nil volume selects every such node.
	//
	// Parameters:
	//   - v: the volume to test
	//
	// Returns:
	//   - []Node: the visible mesh nodes
	MeshNodes(v common.Volume) []Node

	// LightNodes returns the nodes with a light aspect whose bounds intersect v, in
	// depth-first order. A nil volume selects every such node.
	//
	// Parameters:
	//   - v: the volume to test
	//
	// Returns:
	//   - []Node: the visible light nodes
	LightNodes(v common.Volume) []Node

	// MainCamera returns the node hosting the main camera and its first camera aspect.
	//
	// Returns:
	//   - Node: the camera node
	//   - camera.Camera: the camera aspect
	//   - bool: false when no main camera is set or its node was released
	MainCamera() (Node, camera.Camera, bool)
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu *sync.Mutex

	name       string
	roots      []*resource.Handle[Node]
	mainCamera resource.WeakHandle[Node]
}

// Scene is an in-memory scene graph. It owns strong handles to its root nodes and a weak
// reference to the main camera node.
type Scene interface {
	Query

	// Name returns the scene name.
	Name() string

	// Add attaches a root node.
	//
	// Parameters:
	//   - n: the node
	Add(n Node)

	// Remove detaches a root node.
	//
	// Parameters:
	//   - n: the node
	Remove(n Node)

	// Roots returns the root nodes.
	Roots() []Node

	// SetMainCamera selects the camera node. The scene does not keep the node alive.
	//
	// Parameters:
	//   - n: a node with a camera.Camera aspect
	SetMainCamera(n Node)

	// Walk visits every node depth-first until fn returns false.
	//
	// Parameters:
	//   - fn: the visitor
	Walk(fn func(Node) bool)

	// Clear drops every root node.
	Clear()
}

var _ Scene = &scene{}

// NewScene creates an empty scene.
//
// Parameters:
//   - options: variadic list of SceneBuilderOption functions to configure the scene
//
// Returns:
//   - Scene: the scene
func NewScene(options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:   &sync.Mutex{},
		name: "scene",
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *scene) Name() string {
	return s.name
}

func (s *scene) Add(n Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots = append(s.roots, n.Handle().Clone())
}

func (s *scene) Remove(n Node) {
	s.mu.Lock()
	var removed *resource.Handle[Node]
	for i, r := range s.roots {
		if r.Get() == n {
			removed = r
			s.roots = append(s.roots[:i], s.roots[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	if removed != nil {
		removed.Drop()
	}
}

func (s *scene) Roots() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Node, 0, len(s.roots))
	for _, r := range s.roots {
		out = append(out, r.Get())
	}
	return out
}

func (s *scene) SetMainCamera(n Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == nil {
		s.mainCamera = resource.WeakHandle[Node]{}
		return
	}
	s.mainCamera = n.Handle().Weak()
}

func (s *scene) MainCamera() (Node, camera.Camera, bool) {
	s.mu.Lock()
	weak := s.mainCamera
	s.mu.Unlock()

	h, ok := weak.Upgrade()
	if !ok {
		return nil, nil, false
	}
	defer h.Drop()
	n := h.Get()
	cams := AspectsOf[camera.Camera](n)
	if len(cams) == 0 {
		return nil, nil, false
	}
	return n, cams[0], true
}

func (s *scene) Walk(fn func(Node) bool) {
	var visit func(n Node) bool
	visit = func(n Node) bool {
		if !fn(n) {
			return false
		}
		for _, c := range n.Children() {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	for _, r := range s.Roots() {
		if !visit(r) {
			return
		}
	}
}

func (s *scene) MeshNodes(v common.Volume) []Node {
	return s.collect(v, HasAspect[*Drawable])
}

func (s *scene) LightNodes(v common.Volume) []Node {
	return s.collect(v, HasAspect[light.Light])
}

// collect returns the nodes accepted by match whose bounds intersect v.
func (s *scene) collect(v common.Volume, match func(Node) bool) []Node {
	var out []Node
	s.Walk(func(n Node) bool {
		if !match(n) {
			return true
		}
		if v != nil {
			bounds, ok := n.BoundingSphere()
			if ok && !v.IntersectsSphere(bounds) {
				return true
			}
		}
		out = append(out, n)
		return true
	})
	return out
}

func (s *scene) Clear() {
	s.mu.Lock()
	roots := s.roots
	s.roots = nil
	s.mu.Unlock()
	for _, r := range roots {
		r.Drop()
	}
}
