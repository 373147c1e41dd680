package model

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
)

// SubsetFlag is a bit set of per-subset rendering options.
type SubsetFlag uint32

const (
	// SubsetFlagShadowCaster marks a subset as rendered into shadow maps.
	SubsetFlagShadowCaster SubsetFlag = 1 << iota
)

// Subset is a contiguous index range of a model drawn with one material.
type Subset struct {
	// FirstIndex is the offset of the range in the index buffer, in indices.
	FirstIndex uint32
	// IndexCount is the number of indices in the range.
	IndexCount uint32
	// Material is the slot of the drawable's material list used by the range.
	Material int
	// Flags holds the subset's rendering options.
	Flags SubsetFlag
}

// CastsShadows reports whether the subset is rendered into shadow maps.
func (s Subset) CastsShadows() bool {
	return s.Flags&SubsetFlagShadowCaster != 0
}

// model is the implementation of the Model interface.
type model struct {
	mu *sync.Mutex

	name       string
	vertexData []byte
	indexData  []byte
	indexCount uint32
	subsets    []Subset
	radius     float32
	version    uint64
}

// Model is indexed triangle geometry split into subsets.
//
// A Model holds CPU-side vertex and index bytes in the GPUVertex layout. The renderer
// uploads them to GPU buffers on first use and again whenever Version changes.
type Model interface {
	// Name returns the name of the model.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// VertexData returns the serialized vertex buffer contents.
	//
	// Returns:
	//   - []byte: GPUVertex records
	VertexData() []byte

	// IndexData returns the serialized 32-bit index buffer contents.
	//
	// Returns:
	//   - []byte: little-endian uint32 indices
	IndexData() []byte

	// IndexCount returns the number of indices in the index buffer.
	//
	// Returns:
	//   - uint32: index count
	IndexCount() uint32

	// Subsets returns the index ranges of the model.
	//
	// Returns:
	//   - []Subset: the subsets in draw order
	Subsets() []Subset

	// BoundingRadius returns the radius of a sphere around the model-space origin
	// enclosing every vertex.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32

	// BoundingSphere returns the model's bounding sphere transformed by a world matrix.
	// The radius is scaled by the largest axis scale of the matrix.
	//
	// Parameters:
	//   - world: column-major world transform
	//
	// Returns:
	//   - common.Sphere: world-space bounding sphere
	BoundingSphere(world [16]float32) common.Sphere

	// Version returns a counter bumped whenever the geometry changes.
	//
	// Returns:
	//   - uint64: the geometry version
	Version() uint64

	// SetGeometry replaces the vertices and indices. When no subsets were set a single
	// shadow-casting subset covering all indices with material slot 0 is created.
	//
	// Parameters:
	//   - vertices: the vertex list
	//   - indices: the triangle list indices
	SetGeometry(vertices []GPUVertex, indices []uint32)

	// SetSubsets replaces the subset list.
	//
	// Parameters:
	//   - subsets: the new subsets
	SetSubsets(subsets []Subset)
}

var _ Model = &model{}

// NewModel creates a new Model with the provided options applied.
//
// Parameters:
//   - options: functional options to configure the model
//
// Returns:
//   - Model: the newly created model
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{mu: &sync.Mutex{}}
	for _, option := range options {
		option(m)
	}
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) VertexData() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vertexData
}

func (m *model) IndexData() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexData
}

func (m *model) IndexCount() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexCount
}

func (m *model) Subsets() []Subset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subsets
}

func (m *model) BoundingRadius() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.radius
}

func (m *model) BoundingSphere(world [16]float32) common.Sphere {
	r := m.BoundingRadius()
	scale := max(
		common.Length3([3]float32{world[0], world[1], world[2]}),
		common.Length3([3]float32{world[4], world[5], world[6]}),
		common.Length3([3]float32{world[8], world[9], world[10]}),
	)
	return common.Sphere{
		Center: [3]float32{world[12], world[13], world[14]},
		Radius: r * scale,
	}
}

func (m *model) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *model) SetGeometry(vertices []GPUVertex, indices []uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setGeometry(vertices, indices)
}

// setGeometry stores the geometry. Caller must hold the mutex.
func (m *model) setGeometry(vertices []GPUVertex, indices []uint32) {
	m.vertexData = MarshalVertices(vertices)
	m.indexData = common.SliceToBytes(indices)
	m.indexCount = uint32(len(indices))
	m.radius = ComputeBoundingRadius(vertices)
	if len(m.subsets) == 0 {
		m.subsets = []Subset{{IndexCount: m.indexCount, Flags: SubsetFlagShadowCaster}}
	}
	m.version++
}

func (m *model) SetSubsets(subsets []Subset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subsets = subsets
}
