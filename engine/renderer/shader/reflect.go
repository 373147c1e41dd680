package shader

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// BindingKind classifies a reflected resource declaration.
type BindingKind int

const (
	// BindingKindUniform is a var<uniform> buffer.
	BindingKindUniform BindingKind = iota
	// BindingKindStorageRead is a var<storage, read> buffer.
	BindingKindStorageRead
	// BindingKindStorageReadWrite is a var<storage, read_write> buffer.
	BindingKindStorageReadWrite
	// BindingKindTexture is a sampled color texture.
	BindingKindTexture
	// BindingKindDepthTexture is a sampled depth texture.
	BindingKindDepthTexture
	// BindingKindStorageTexture is a writable storage texture.
	BindingKindStorageTexture
	// BindingKindSampler is a filtering or comparison sampler.
	BindingKindSampler
)

// String returns the WGSL-flavoured name of the binding kind.
func (k BindingKind) String() string {
	switch k {
	case BindingKindUniform:
		return "uniform"
	case BindingKindStorageRead:
		return "storage<read>"
	case BindingKindStorageReadWrite:
		return "storage<read_write>"
	case BindingKindTexture:
		return "texture"
	case BindingKindDepthTexture:
		return "depth_texture"
	case BindingKindStorageTexture:
		return "storage_texture"
	case BindingKindSampler:
		return "sampler"
	default:
		return "unknown"
	}
}

// IsOutput reports whether the binding is written by the shader.
func (k BindingKind) IsOutput() bool {
	return k == BindingKindStorageReadWrite || k == BindingKindStorageTexture
}

// IsBuffer reports whether the binding is backed by a buffer.
func (k BindingKind) IsBuffer() bool {
	return k == BindingKindUniform || k == BindingKindStorageRead || k == BindingKindStorageReadWrite
}

// IsTexture reports whether the binding is backed by a texture view.
func (k BindingKind) IsTexture() bool {
	return k == BindingKindTexture || k == BindingKindDepthTexture || k == BindingKindStorageTexture
}

// Binding is the backend-neutral description of one @group/@binding declaration.
type Binding struct {
	// Group is the @group index.
	Group int
	// Binding is the @binding index within the group.
	Binding int
	// Name is the WGSL variable name. Resources are bound by this name.
	Name string
	// Kind classifies the resource.
	Kind BindingKind
	// TypeName is the declared WGSL type.
	TypeName string
	// ViewDimension is the texture view dimension for texture kinds.
	ViewDimension wgpu.TextureViewDimension
	// StorageFormat is the texel format of storage textures.
	StorageFormat wgpu.TextureFormat
	// MinSize is the byte size of the bound type for buffer kinds, when resolvable.
	MinSize uint64
}

// Member is a reflected field of a host-shareable struct.
type Member struct {
	// Name is the dotted path of the member, e.g. "light.color".
	Name string
	// TypeName is the WGSL type of the member.
	TypeName string
	// Offset is the byte offset from the start of the struct.
	Offset uint64
	// Size is the byte size of the member.
	Size uint64
}

// StructLayout is the reflected memory layout of a struct bound as a uniform buffer.
type StructLayout struct {
	// Name is the WGSL struct name.
	Name string
	// Size is the total struct size rounded up to its alignment.
	Size uint64
	// Members lists every leaf member in declaration order.
	Members []Member
}

// Member finds a member by its dotted name.
//
// Parameters:
//   - name: the member path
//
// Returns:
//   - Member: the member
//   - bool: false if no member has that name
func (l StructLayout) Member(name string) (Member, bool) {
	for _, m := range l.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}
