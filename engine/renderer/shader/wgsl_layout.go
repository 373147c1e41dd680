package shader

import (
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslTypeLayout is the host-shareable size and alignment of a WGSL type.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// vertexFormat is the wgpu format of a vertex attribute type and its byte size.
type vertexFormat struct {
	format wgpu.VertexFormat
	size   uint64
}

// typeLayouts holds scalars, vectors in both spellings (vec3f and vec3<f32>), f32 matrices and
// atomics. See https://www.w3.org/TR/WGSL/#alignment-and-size.
var typeLayouts = func() map[string]wgslTypeLayout {
	m := map[string]wgslTypeLayout{
		"f32": {4, 4}, "i32": {4, 4}, "u32": {4, 4}, "bool": {4, 4}, "f16": {2, 2},
		"atomic<u32>": {4, 4}, "atomic<i32>": {4, 4},
		"vec2<f16>": {4, 4}, "vec2h": {4, 4}, "vec4<f16>": {8, 8}, "vec4h": {8, 8},
	}
	for _, scalar := range []string{"f32", "i32", "u32"} {
		short := scalar[:1]
		for n, l := range map[int]wgslTypeLayout{2: {8, 8}, 3: {12, 16}, 4: {16, 16}} {
			m["vec"+strconv.Itoa(n)+short] = l
			m["vec"+strconv.Itoa(n)+"<"+scalar+">"] = l
		}
	}
	// matCxR: C columns of vecR, each padded to the vecR alignment.
	for c := 2; c <= 4; c++ {
		for r := 2; r <= 4; r++ {
			align := uint64(8)
			if r > 2 {
				align = 16
			}
			m["mat"+strconv.Itoa(c)+"x"+strconv.Itoa(r)+"<f32>"] = wgslTypeLayout{uint64(c) * align, align}
		}
	}
	m["mat3x3f"], m["mat4x4f"] = m["mat3x3<f32>"], m["mat4x4<f32>"]
	return m
}()

var vertexFormats = map[string]vertexFormat{
	"f32": {wgpu.VertexFormatFloat32, 4}, "vec2f": {wgpu.VertexFormatFloat32x2, 8},
	"vec3f": {wgpu.VertexFormatFloat32x3, 12}, "vec4f": {wgpu.VertexFormatFloat32x4, 16},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8}, "vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"i32": {wgpu.VertexFormatSint32, 4}, "vec2i": {wgpu.VertexFormatSint32x2, 8},
	"vec3i": {wgpu.VertexFormatSint32x3, 12}, "vec4i": {wgpu.VertexFormatSint32x4, 16},
	"vec2<i32>": {wgpu.VertexFormatSint32x2, 8}, "vec3<i32>": {wgpu.VertexFormatSint32x3, 12},
	"vec4<i32>": {wgpu.VertexFormatSint32x4, 16},
	"u32": {wgpu.VertexFormatUint32, 4}, "vec2u": {wgpu.VertexFormatUint32x2, 8},
	"vec3u": {wgpu.VertexFormatUint32x3, 12}, "vec4u": {wgpu.VertexFormatUint32x4, 16},
	"vec2<u32>": {wgpu.VertexFormatUint32x2, 8}, "vec3<u32>": {wgpu.VertexFormatUint32x3, 12},
	"vec4<u32>": {wgpu.VertexFormatUint32x4, 16},
	"vec2h": {wgpu.VertexFormatFloat16x2, 4}, "vec4h": {wgpu.VertexFormatFloat16x4, 8},
	"vec2<f16>": {wgpu.VertexFormatFloat16x2, 4}, "vec4<f16>": {wgpu.VertexFormatFloat16x4, 8},
}

var viewDimensions = map[string]wgpu.TextureViewDimension{
	"1d":              wgpu.TextureViewDimension1D,
	"2d":              wgpu.TextureViewDimension2D,
	"2d_array":        wgpu.TextureViewDimension2DArray,
	"3d":              wgpu.TextureViewDimension3D,
	"cube":            wgpu.TextureViewDimensionCube,
	"cube_array":      wgpu.TextureViewDimensionCubeArray,
	"multisampled_2d": wgpu.TextureViewDimension2D,
}

var sampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

var storageAccess = map[string]wgpu.StorageTextureAccess{
	"write":      wgpu.StorageTextureAccessWriteOnly,
	"read":       wgpu.StorageTextureAccessReadOnly,
	"read_write": wgpu.StorageTextureAccessReadWrite,
}

// texelFormats are the formats WGSL allows for storage textures.
var texelFormats = map[string]wgpu.TextureFormat{
	"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
	"rgba8snorm":  wgpu.TextureFormatRGBA8Snorm,
	"rgba8uint":   wgpu.TextureFormatRGBA8Uint,
	"rgba8sint":   wgpu.TextureFormatRGBA8Sint,
	"rgba16uint":  wgpu.TextureFormatRGBA16Uint,
	"rgba16sint":  wgpu.TextureFormatRGBA16Sint,
	"rgba16float": wgpu.TextureFormatRGBA16Float,
	"r32uint":     wgpu.TextureFormatR32Uint,
	"r32sint":     wgpu.TextureFormatR32Sint,
	"r32float":    wgpu.TextureFormatR32Float,
	"rg32uint":    wgpu.TextureFormatRG32Uint,
	"rg32sint":    wgpu.TextureFormatRG32Sint,
	"rg32float":   wgpu.TextureFormatRG32Float,
	"rgba32uint":  wgpu.TextureFormatRGBA32Uint,
	"rgba32sint":  wgpu.TextureFormatRGBA32Sint,
	"rgba32float": wgpu.TextureFormatRGBA32Float,
	"bgra8unorm":  wgpu.TextureFormatBGRA8Unorm,
}

// alignUp rounds value up to a power-of-two alignment.
func alignUp(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout resolves a primitive, a known struct or an array of either. A runtime-sized
// array resolves to one element stride, the smallest useful binding.
//
// Parameters:
//   - typeName: the WGSL type, e.g. "vec3f", "LightParams" or "array<PointLight, 32>"
//   - structs: layouts of the structs resolved so far
//
// Returns:
//   - wgslTypeLayout: the layout
//   - bool: false for unknown types
func resolveTypeLayout(typeName string, structs map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if l, ok := typeLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := structs[typeName]; ok {
		return l, true
	}
	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return wgslTypeLayout{}, false
	}
	elemType, count, sized := strings.Cut(strings.TrimSuffix(inner, ">"), ",")
	elem, ok := resolveTypeLayout(strings.TrimSpace(elemType), structs)
	if !ok {
		return wgslTypeLayout{}, false
	}
	stride := alignUp(elem.align, elem.size)
	if !sized {
		return wgslTypeLayout{stride, elem.align}, true
	}
	n, err := strconv.ParseUint(strings.TrimSpace(count), 10, 64)
	if err != nil {
		return wgslTypeLayout{}, false
	}
	return wgslTypeLayout{n * stride, elem.align}, true
}

// structLayout lays out the members of st in order. A trailing runtime-sized array of an
// unresolvable element ends the struct at its fixed prefix.
func structLayout(st wgslStruct, structs map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	var offset uint64
	align := uint64(1)
	for _, f := range st.fields {
		if f.builtin {
			continue
		}
		l, ok := resolveTypeLayout(f.typeName, structs)
		if !ok && runtimeArray(f.typeName) && offset > 0 {
			return wgslTypeLayout{alignUp(align, offset), align}, true
		}
		if !ok {
			return wgslTypeLayout{}, false
		}
		offset = alignUp(l.align, offset) + l.size
		align = max(align, l.align)
	}
	return wgslTypeLayout{alignUp(align, offset), align}, true
}

func runtimeArray(typeName string) bool {
	return strings.HasPrefix(typeName, "array<") && !strings.Contains(typeName, ",")
}

// structLayouts resolves every struct, repeating until no struct depending on another
// unresolved struct can make progress.
func structLayouts(structs []wgslStruct) map[string]wgslTypeLayout {
	resolved := make(map[string]wgslTypeLayout, len(structs))
	pending := append([]wgslStruct(nil), structs...)
	for len(pending) > 0 {
		next := pending[:0]
		for _, st := range pending {
			if l, ok := structLayout(st, resolved); ok {
				resolved[st.name] = l
			} else {
				next = append(next, st)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return resolved
}

// layoutEntry classifies a declaration by its address space (buffers) or handle type
// (samplers and textures).
//
// Parameters:
//   - binding: the @binding index
//   - visibility: the declaring stage
//   - addressSpace: "uniform", "storage, read" etc., empty for handle types
//   - typeName: the declared type, e.g. "texture_storage_2d<rgba16float, write>"
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the layout entry
func layoutEntry(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: visibility}

	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		return entry
	case strings.HasPrefix(addressSpace, "storage"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(addressSpace, "read_write") {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
		return entry
	case addressSpace != "":
		return entry
	}

	base, params := splitTypeParams(typeName)
	switch {
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case typeName == "sampler_comparison":
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(base, "texture_storage_"):
		entry.StorageTexture.ViewDimension = viewDimensions[strings.TrimPrefix(base, "texture_storage_")]
		format, access, _ := strings.Cut(params, ",")
		entry.StorageTexture.Format = texelFormats[strings.TrimSpace(format)]
		entry.StorageTexture.Access = storageAccess[strings.TrimSpace(access)]
	case strings.HasPrefix(base, "texture_depth_"):
		dim := strings.TrimPrefix(base, "texture_depth_")
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = viewDimensions[dim]
		entry.Texture.Multisampled = dim == "multisampled_2d"
	case strings.HasPrefix(base, "texture_"):
		dim := strings.TrimPrefix(base, "texture_")
		entry.Texture.ViewDimension = viewDimensions[dim]
		entry.Texture.Multisampled = dim == "multisampled_2d"
		entry.Texture.SampleType = sampleTypes[params]
	}
	return entry
}

// splitTypeParams splits "texture_2d<f32>" into ("texture_2d", "f32"). Types without
// parameters return an empty params string.
func splitTypeParams(typeName string) (string, string) {
	base, params, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return base, strings.TrimSpace(strings.TrimSuffix(params, ">"))
}
