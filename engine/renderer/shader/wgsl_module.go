package shader

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	structBlockRegex   = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex      = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex       = regexp.MustCompile(`@builtin\(\w+\)`)
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// fieldRegex skips leading attributes and captures the name and the rest of the line as the
	// type, so parameterized types like array<T, N> stay whole.
	fieldRegex = regexp.MustCompile(`(?:(?:@\w+\([^)]*\)\s*)*)*\s*(\w+)\s*:\s*(.+)`)

	// declRegex captures group, binding, optional address space, name and type of
	// "@group(0) @binding(1) var<uniform> params: Params;" and handle declarations without <...>.
	declRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	entryRegex = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderTypeCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}
)

// wgslField is one member of a parsed struct. location is -1 when the member has no @location.
type wgslField struct {
	name     string
	typeName string
	location int
	builtin  bool
}

// wgslStruct is a parsed struct declaration.
type wgslStruct struct {
	name   string
	fields []wgslField
}

// wgslDecl is one @group/@binding resource declaration.
type wgslDecl struct {
	group        int
	binding      int
	addressSpace string
	name         string
	typeName     string
}

// wgslModule is the reflection view of a pre-processed WGSL source. The source is stripped
// of comments and scanned once; every query reads the parsed declarations.
type wgslModule struct {
	code    string
	structs []wgslStruct
	byName  map[string]wgslStruct
	layouts map[string]wgslTypeLayout
	decls   []wgslDecl
}

// parseModule strips comments from source and collects its structs, their host-shareable
// layouts and its resource declarations.
//
// Parameters:
//   - source: WGSL source after pre-processing
//
// Returns:
//   - *wgslModule: the parsed module
func parseModule(source string) *wgslModule {
	m := &wgslModule{code: stripComments(source)}

	for _, match := range structBlockRegex.FindAllStringSubmatch(m.code, -1) {
		m.structs = append(m.structs, wgslStruct{name: match[1], fields: parseFields(match[2])})
	}
	m.byName = make(map[string]wgslStruct, len(m.structs))
	for _, st := range m.structs {
		m.byName[st.name] = st
	}
	m.layouts = structLayouts(m.structs)

	for _, match := range declRegex.FindAllStringSubmatch(m.code, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		m.decls = append(m.decls, wgslDecl{
			group:        group,
			binding:      binding,
			addressSpace: strings.TrimSpace(match[3]),
			name:         strings.TrimSpace(match[4]),
			typeName:     strings.TrimSpace(match[5]),
		})
	}
	slices.SortStableFunc(m.decls, func(a, b wgslDecl) int {
		if a.group != b.group {
			return a.group - b.group
		}
		return a.binding - b.binding
	})
	return m
}

// parseFields splits a struct body at top-level commas into fields.
func parseFields(body string) []wgslField {
	var fields []wgslField
	for _, part := range splitTopLevel(body) {
		part = strings.TrimSpace(part)
		fm := fieldRegex.FindStringSubmatch(part)
		if part == "" || fm == nil {
			continue
		}
		f := wgslField{
			name:     fm[1],
			typeName: strings.TrimSpace(fm[2]),
			location: -1,
			builtin:  builtinRegex.MatchString(part),
		}
		if loc := locationRegex.FindStringSubmatch(part); loc != nil {
			f.location, _ = strconv.Atoi(loc[1])
		}
		fields = append(fields, f)
	}
	return fields
}

// entryPoint returns the name of the first function marked with the stage attribute, or "".
func (m *wgslModule) entryPoint(stage ShaderType) string {
	re, ok := entryRegex[stage]
	if !ok {
		return ""
	}
	if match := re.FindStringSubmatch(m.code); match != nil {
		return match[1]
	}
	return ""
}

// workgroupSize returns the @workgroup_size dimensions. Missing dimensions, and a missing
// attribute, count as 1.
func (m *wgslModule) workgroupSize() [3]uint32 {
	size := [3]uint32{1, 1, 1}
	match := workgroupSizeRegex.FindStringSubmatch(m.code)
	if match == nil {
		return size
	}
	for i, dim := range match[1:4] {
		if v, err := strconv.ParseUint(dim, 10, 32); err == nil {
			size[i] = uint32(v)
		}
	}
	return size
}

// vertexLayouts turns every vertex input struct into one buffer layout. An input struct has
// @location members and no @builtin member; structs using a type without a vertex format are
// skipped.
func (m *wgslModule) vertexLayouts() map[int][]wgpu.VertexBufferLayout {
	out := make(map[int][]wgpu.VertexBufferLayout)
	for _, st := range m.structs {
		if !isVertexInput(st) {
			continue
		}
		layout, ok := vertexBufferLayout(st)
		if !ok {
			continue
		}
		out[len(out)] = []wgpu.VertexBufferLayout{layout}
	}
	return out
}

func isVertexInput(st wgslStruct) bool {
	located := false
	for _, f := range st.fields {
		if f.builtin {
			return false
		}
		located = located || f.location >= 0
	}
	return located
}

func vertexBufferLayout(st wgslStruct) (wgpu.VertexBufferLayout, bool) {
	layout := wgpu.VertexBufferLayout{StepMode: wgpu.VertexStepModeVertex}
	for _, f := range st.fields {
		vf, ok := vertexFormats[f.typeName]
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		layout.Attributes = append(layout.Attributes, wgpu.VertexAttribute{
			Format:         vf.format,
			Offset:         layout.ArrayStride,
			ShaderLocation: uint32(f.location),
		})
		layout.ArrayStride += vf.size
	}
	return layout, true
}

// bindGroupLayouts builds one layout descriptor per group, entries sorted by binding, all
// visible to the given stage. Buffer entries carry the bound type's size as MinBindingSize.
func (m *wgslModule) bindGroupLayouts(visibility wgpu.ShaderStage) map[int]wgpu.BindGroupLayoutDescriptor {
	descs := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, d := range m.decls {
		entry := layoutEntry(uint32(d.binding), visibility, d.addressSpace, d.typeName)
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if l, ok := resolveTypeLayout(d.typeName, m.layouts); ok {
				entry.Buffer.MinBindingSize = l.size
			}
		}
		desc := descs[d.group]
		desc.Entries = append(desc.Entries, entry)
		descs[d.group] = desc
	}
	return descs
}

// bindings reflects the declarations into backend-neutral Binding values, sorted by group and
// binding, along with the member layout of every struct bound as a uniform.
func (m *wgslModule) bindings() ([]Binding, map[string]StructLayout) {
	out := make([]Binding, 0, len(m.decls))
	uniforms := make(map[string]StructLayout)

	for _, d := range m.decls {
		entry := layoutEntry(uint32(d.binding), wgpu.ShaderStageNone, d.addressSpace, d.typeName)
		b := Binding{Group: d.group, Binding: d.binding, Name: d.name, TypeName: d.typeName}
		switch {
		case entry.Buffer.Type == wgpu.BufferBindingTypeUniform:
			b.Kind = BindingKindUniform
		case entry.Buffer.Type == wgpu.BufferBindingTypeReadOnlyStorage:
			b.Kind = BindingKindStorageRead
		case entry.Buffer.Type == wgpu.BufferBindingTypeStorage:
			b.Kind = BindingKindStorageReadWrite
		case entry.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
			b.Kind = BindingKindSampler
		case entry.StorageTexture.Access != wgpu.StorageTextureAccessUndefined:
			b.Kind = BindingKindStorageTexture
			b.ViewDimension = entry.StorageTexture.ViewDimension
			b.StorageFormat = entry.StorageTexture.Format
		case entry.Texture.SampleType == wgpu.TextureSampleTypeDepth:
			b.Kind = BindingKindDepthTexture
			b.ViewDimension = entry.Texture.ViewDimension
		default:
			b.Kind = BindingKindTexture
			b.ViewDimension = entry.Texture.ViewDimension
		}
		if b.Kind.IsBuffer() {
			if l, ok := resolveTypeLayout(d.typeName, m.layouts); ok {
				b.MinSize = l.size
			}
		}
		if st, ok := m.byName[d.typeName]; ok && b.Kind == BindingKindUniform {
			uniforms[d.name] = StructLayout{
				Name:    d.typeName,
				Size:    m.layouts[d.typeName].size,
				Members: m.members(st, "", 0),
			}
		}
		out = append(out, b)
	}
	return out, uniforms
}

// members flattens a struct into leaf members with absolute offsets. Nested structs are
// expanded with dotted names; a fixed-size array is one member spanning the whole array.
func (m *wgslModule) members(st wgslStruct, prefix string, base uint64) []Member {
	var out []Member
	var offset uint64
	for _, f := range st.fields {
		if f.builtin {
			continue
		}
		l, ok := resolveTypeLayout(f.typeName, m.layouts)
		if !ok {
			break
		}
		offset = alignUp(l.align, offset)
		name := prefix + f.name
		if nested, ok := m.byName[f.typeName]; ok {
			out = append(out, m.members(nested, name+".", base+offset)...)
		} else {
			out = append(out, Member{Name: name, TypeName: f.typeName, Offset: base + offset, Size: l.size})
		}
		offset += l.size
	}
	return out
}

// stripComments removes line comments and nestable block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch source[i : i+2] {
			case "/*":
				depth++
				i++
				continue
			case "*/":
				if depth > 0 {
					depth--
					i++
					continue
				}
			case "//":
				if depth == 0 {
					for i < len(source) && source[i] != '\n' {
						i++
					}
					if i < len(source) {
						sb.WriteByte('\n')
					}
					continue
				}
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// splitTopLevel splits s at commas outside angle brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
