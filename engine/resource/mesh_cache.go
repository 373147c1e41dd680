package resource

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
)

// Mesh holds the GPU vertex and index buffers of a model.
type Mesh struct {
	Vertices renderer.Buffer
	Indices  renderer.Buffer
	version  uint64
}

// release destroys both buffers.
func (m *Mesh) release() {
	if m.Vertices != nil {
		m.Vertices.Release()
	}
	if m.Indices != nil {
		m.Indices.Release()
	}
}

// MeshCache uploads model geometry to GPU buffers on first use and again whenever the
// model's version changes. It is shared by every pass drawing meshes and is touched only
// from the frame thread.
type MeshCache struct {
	backend renderer.Backend
	meshes  map[model.Model]*Mesh
	uploads uint64
}

// NewMeshCache creates an empty mesh cache.
//
// Parameters:
//   - backend: the backend creating the buffers
//
// Returns:
//   - *MeshCache: the cache
func NewMeshCache(backend renderer.Backend) *MeshCache {
	return &MeshCache{
		backend: backend,
		meshes:  make(map[model.Model]*Mesh),
	}
}

// Get returns the buffers of a model, uploading its geometry when the model is new or was
// modified since the last upload.
//
// Parameters:
//   - m: the model
//
// Returns:
//   - *Mesh: the buffers
//   - error: error if the model has no geometry or a buffer cannot be created or written
func (c *MeshCache) Get(m model.Model) (*Mesh, error) {
	version := m.Version()
	if mesh, ok := c.meshes[m]; ok && mesh.version == version {
		return mesh, nil
	}

	vertexData, indexData := m.VertexData(), m.IndexData()
	if len(vertexData) == 0 || len(indexData) == 0 {
		return nil, fmt.Errorf("model %s has no geometry", m.Name())
	}
	mesh := &Mesh{version: version}
	var err error
	mesh.Vertices, err = c.upload(m.Name()+" Vertices", vertexData, renderer.BufferUsageVertex)
	if err != nil {
		return nil, err
	}
	mesh.Indices, err = c.upload(m.Name()+" Indices", indexData, renderer.BufferUsageIndex)
	if err != nil {
		mesh.release()
		return nil, err
	}

	if old, ok := c.meshes[m]; ok {
		old.release()
	}
	c.meshes[m] = mesh
	c.uploads++
	logger.Debugf("uploaded mesh %s v%d: %d vertex bytes, %d index bytes", m.Name(), version, len(vertexData), len(indexData))
	return mesh, nil
}

func (c *MeshCache) upload(label string, data []byte, usage renderer.BufferUsage) (renderer.Buffer, error) {
	// Buffer writes must be a multiple of four bytes.
	size := (uint64(len(data)) + 3) &^ 3
	buf, err := c.backend.CreateBuffer(renderer.BufferDesc{
		Label: label,
		Size:  size,
		Usage: usage | renderer.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %s: %w", label, err)
	}
	if uint64(len(data)) != size {
		padded := make([]byte, size)
		copy(padded, data)
		data = padded
	}
	if err := c.backend.WriteBuffer(buf, 0, data); err != nil {
		buf.Release()
		return nil, fmt.Errorf("failed to write buffer %s: %w", label, err)
	}
	return buf, nil
}

// Evict destroys the buffers of a model. A model that was never uploaded is ignored.
//
// Parameters:
//   - m: the model
func (c *MeshCache) Evict(m model.Model) {
	if mesh, ok := c.meshes[m]; ok {
		mesh.release()
		delete(c.meshes, m)
	}
}

// Len returns the number of uploaded models.
func (c *MeshCache) Len() int {
	return len(c.meshes)
}

// Uploads returns the number of geometry uploads performed, re-uploads included.
func (c *MeshCache) Uploads() uint64 {
	return c.uploads
}

// Release destroys every buffer.
func (c *MeshCache) Release() {
	for m, mesh := range c.meshes {
		mesh.release()
		delete(c.meshes, m)
	}
}
