package scene

import (
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/material"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
)

// Drawable is the mesh aspect of a node: a model and the materials its subsets draw with.
// Subset i uses Materials[Subset.Material].
type Drawable struct {
	model     *resource.Handle[model.Model]
	materials []*resource.Handle[material.Material]
}

// NewDrawable creates a drawable aspect holding strong references to a model and its materials.
//
// Parameters:
//   - mdl: the model handle; the drawable takes ownership of this reference
//   - materials: one material handle per material slot
//
// Returns:
//   - *Drawable: the aspect
func NewDrawable(mdl *resource.Handle[model.Model], materials ...*resource.Handle[material.Material]) *Drawable {
	return &Drawable{model: mdl, materials: materials}
}

// Model returns the drawable's model.
func (d *Drawable) Model() model.Model {
	return d.model.Get()
}

// Material returns the material of a slot, or nil when the slot is out of range.
func (d *Drawable) Material(slot int) material.Material {
	if slot < 0 || slot >= len(d.materials) {
		return nil
	}
	return d.materials[slot].Get()
}

// MaterialCount returns the number of material slots.
func (d *Drawable) MaterialCount() int {
	return len(d.materials)
}

// Release drops the drawable's model and material references.
func (d *Drawable) Release() {
	d.model.Drop()
	for _, m := range d.materials {
		m.Drop()
	}
}

// releaser is implemented by aspects holding references that must be dropped with the node.
type releaser interface {
	Release()
}

// node is the implementation of the Node interface.
type node struct {
	mu *sync.Mutex

	name     string
	local    Transform
	world    [16]float32
	dirty    bool
	version  uint64
	aspects  []any
	parent   resource.WeakHandle[Node]
	children []*resource.Handle[Node]
	self     *resource.Handle[Node]
}

// Node is an element of the scene graph: a local transform, a list of aspects and children.
//
// The world transform is recomputed on read when the node or an ancestor moved. A node
// holds strong handles to its children and a weak handle to its parent.
type Node interface {
	// Name returns the node name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// Transform returns the local transform.
	//
	// Returns:
	//   - Transform: the local transform
	Transform() Transform

	// SetTransform replaces the local transform and invalidates the world transform of the
	// node and its descendants.
	//
	// Parameters:
	//   - t: the new local transform
	SetTransform(t Transform)

	// SetPosition moves the node.
	//
	// Parameters:
	//   - x, y, z: the local position
	SetPosition(x, y, z float32)

	// LookAt rotates the node so +Z faces a local-space target.
	//
	// Parameters:
	//   - target: the point to face
	LookAt(target mgl32.Vec3)

	// World returns the node's world transform.
	//
	// Returns:
	//   - [16]float32: column-major world matrix
	World() [16]float32

	// Position returns the world-space origin of the node.
	//
	// Returns:
	//   - [3]float32: world position
	Position() [3]float32

	// Forward returns the normalized world-space +Z axis of the node.
	//
	// Returns:
	//   - [3]float32: world forward direction
	Forward() [3]float32

	// Aspects returns the node's aspects in insertion order.
	//
	// Returns:
	//   - []any: the aspects
	Aspects() []any

	// AddAspect attaches an aspect. Several aspects of the same kind are allowed.
	//
	// Parameters:
	//   - a: the aspect
	AddAspect(a any)

	// BoundingSphere returns the world-space sphere enclosing every drawable and point light
	// aspect of the node. Directional lights have an infinite radius.
	//
	// Returns:
	//   - common.Sphere: the bounds
	//   - bool: false when the node has no bounded aspect
	BoundingSphere() (common.Sphere, bool)

	// Parent returns the parent node if it is still alive.
	//
	// Returns:
	//   - Node: the parent, or nil
	//   - bool: false for root nodes and released parents
	Parent() (Node, bool)

	// Children returns the child nodes.
	//
	// Returns:
	//   - []Node: the children
	Children() []Node

	// AddChild attaches a child. The child keeps a weak handle to this node.
	//
	// Parameters:
	//   - child: the child node
	AddChild(child Node)

	// RemoveChild detaches a child.
	//
	// Parameters:
	//   - child: the child node
	RemoveChild(child Node)

	// Handle returns the node's own strong handle. Dropping it with Release releases the
	// node's aspects once no other strong handle remains.
	//
	// Returns:
	//   - *resource.Handle[Node]: the handle
	Handle() *resource.Handle[Node]

	// Release drops the creator's reference to the node.
	Release()

	invalidate()
	setParent(parent resource.WeakHandle[Node])
}

var _ Node = &node{}

// NewNode creates a node with an identity transform.
//
// Parameters:
//   - name: the node name
//   - options: variadic list of NodeBuilderOption functions to configure the node
//
// Returns:
//   - Node: the node
func NewNode(name string, options ...NodeBuilderOption) Node {
	n := &node{
		mu:    &sync.Mutex{},
		name:  name,
		local: IdentityTransform(),
		dirty: true,
	}
	n.self = resource.NewHandle[Node](n, func(Node) { n.releaseAspects() })
	for _, option := range options {
		option(n)
	}
	return n
}

func (n *node) Name() string {
	return n.name
}

func (n *node) Transform() Transform {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.local
}

func (n *node) SetTransform(t Transform) {
	n.mu.Lock()
	n.local = t
	n.mu.Unlock()
	n.invalidate()
}

func (n *node) SetPosition(x, y, z float32) {
	n.mu.Lock()
	n.local.Position = mgl32.Vec3{x, y, z}
	n.mu.Unlock()
	n.invalidate()
}

func (n *node) LookAt(target mgl32.Vec3) {
	n.mu.Lock()
	n.local.Rotation = LookRotation(target.Sub(n.local.Position), mgl32.Vec3{0, 1, 0})
	n.mu.Unlock()
	n.invalidate()
}

// invalidate marks the world transform of the node and its descendants stale. The node's
// lock is not held while descending.
func (n *node) invalidate() {
	n.mu.Lock()
	n.dirty = true
	n.version++
	children := make([]Node, 0, len(n.children))
	for _, c := range n.children {
		children = append(children, c.Get())
	}
	n.mu.Unlock()
	for _, c := range children {
		c.invalidate()
	}
}

// World recomputes a stale world transform from the parent's without holding the node's lock.
// An invalidation that lands meanwhile bumps the version and the result is recomputed.
func (n *node) World() [16]float32 {
	for {
		n.mu.Lock()
		if !n.dirty {
			world := n.world
			n.mu.Unlock()
			return world
		}
		version := n.version
		local := n.local.Matrix()
		n.mu.Unlock()

		world := local
		if parent, ok := n.Parent(); ok {
			parentWorld := parent.World()
			common.Mul4(world[:], parentWorld[:], local[:])
		}

		n.mu.Lock()
		if n.version == version {
			n.world = world
			n.dirty = false
			n.mu.Unlock()
			return world
		}
		n.mu.Unlock()
	}
}

func (n *node) Position() [3]float32 {
	w := n.World()
	return [3]float32{w[12], w[13], w[14]}
}

func (n *node) Forward() [3]float32 {
	w := n.World()
	return common.Normalize3([3]float32{w[8], w[9], w[10]})
}

func (n *node) Aspects() []any {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]any(nil), n.aspects...)
}

func (n *node) AddAspect(a any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.aspects = append(n.aspects, a)
}

func (n *node) BoundingSphere() (common.Sphere, bool) {
	world := n.World()
	var bounds common.Sphere
	found := false
	grow := func(s common.Sphere) {
		if !found {
			bounds, found = s, true
			return
		}
		bounds = mergeSpheres(bounds, s)
	}
	for _, a := range n.Aspects() {
		switch v := a.(type) {
		case *Drawable:
			grow(v.Model().BoundingSphere(world))
		case light.Light:
			switch v.Type() {
			case light.LightTypePoint:
				grow(common.Sphere{Center: [3]float32{world[12], world[13], world[14]}, Radius: v.Range()})
			case light.LightTypeDirectional:
				grow(common.Sphere{Center: [3]float32{world[12], world[13], world[14]}, Radius: math32.Inf(1)})
			}
		}
	}
	return bounds, found
}

// mergeSpheres returns the smallest sphere enclosing a and b.
func mergeSpheres(a, b common.Sphere) common.Sphere {
	if math32.IsInf(a.Radius, 1) || math32.IsInf(b.Radius, 1) {
		return common.Sphere{Center: a.Center, Radius: math32.Inf(1)}
	}
	d := [3]float32{b.Center[0] - a.Center[0], b.Center[1] - a.Center[1], b.Center[2] - a.Center[2]}
	dist := common.Length3(d)
	if dist+b.Radius <= a.Radius {
		return a
	}
	if dist+a.Radius <= b.Radius {
		return b
	}
	r := (dist + a.Radius + b.Radius) / 2
	t := (r - a.Radius) / dist
	return common.Sphere{
		Center: [3]float32{a.Center[0] + d[0]*t, a.Center[1] + d[1]*t, a.Center[2] + d[2]*t},
		Radius: r,
	}
}

func (n *node) Parent() (Node, bool) {
	n.mu.Lock()
	weak := n.parent
	n.mu.Unlock()
	h, ok := weak.Upgrade()
	if !ok {
		return nil, false
	}
	defer h.Drop()
	return h.Get(), true
}

func (n *node) Children() []Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Node, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c.Get())
	}
	return out
}

func (n *node) AddChild(child Node) {
	n.mu.Lock()
	n.children = append(n.children, child.Handle().Clone())
	n.mu.Unlock()
	child.setParent(n.self.Weak())
}

func (n *node) RemoveChild(child Node) {
	n.mu.Lock()
	var removed *resource.Handle[Node]
	for i, c := range n.children {
		if c.Get() == child {
			removed = c
			n.children = append(n.children[:i], n.children[i+1:]...)
			break
		}
	}
	n.mu.Unlock()
	if removed == nil {
		return
	}
	child.setParent(resource.WeakHandle[Node]{})
	removed.Drop()
}

func (n *node) setParent(parent resource.WeakHandle[Node]) {
	n.mu.Lock()
	n.parent = parent
	n.mu.Unlock()
	n.invalidate()
}

func (n *node) Handle() *resource.Handle[Node] {
	return n.self
}

func (n *node) Release() {
	n.self.Drop()
}

// releaseAspects runs once the last strong handle to the node is dropped.
func (n *node) releaseAspects() {
	n.mu.Lock()
	aspects := n.aspects
	children := n.children
	n.aspects = nil
	n.children = nil
	n.mu.Unlock()
	for _, a := range aspects {
		if r, ok := a.(releaser); ok {
			r.Release()
		}
	}
	for _, c := range children {
		c.Drop()
	}
}

// AspectsOf returns every aspect of a node assignable to T, in insertion order.
//
// Parameters:
//   - n: the node
//
// Returns:
//   - []T: the matching aspects
func AspectsOf[T any](n Node) []T {
	var out []T
	for _, a := range n.Aspects() {
		if v, ok := a.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// HasAspect reports whether a node has at least one aspect assignable to T.
func HasAspect[T any](n Node) bool {
	for _, a := range n.Aspects() {
		if _, ok := a.(T); ok {
			return true
		}
	}
	return false
}
