package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
)

// registryEntry is the canonical WGSL definition of a Go GPU struct and the type name it
// declares.
type registryEntry struct {
	Source string
	Type   string
}

// structRegistry maps include and group type arguments to the struct definitions owned by the
// Go packages that marshal them.
var structRegistry = map[AnnotationArg]registryEntry{
	annotationArgVertex:            {Source: model.GPUVertexSource, Type: "VertexInput"},
	AnnotationArgObjectConstants:   {Source: model.GPUObjectConstantsSource, Type: "ObjectConstants"},
	AnnotationArgPointLight:        {Source: light.GPUPointLightSource, Type: "PointLight"},
	AnnotationArgDirectionalLight:  {Source: light.GPUDirectionalLightSource, Type: "DirectionalLight"},
	AnnotationArgPointShadow:       {Source: light.GPUPointShadowSource, Type: "PointShadow"},
	AnnotationArgDirectionalShadow: {Source: light.GPUDirectionalShadowSource, Type: "DirectionalShadow"},
	AnnotationArgLightParams:       {Source: light.GPULightParamsSource, Type: "LightParams"},
	AnnotationArgShadowPass:        {Source: light.GPUShadowPassSource, Type: "ShadowPass"},
}

var addressSpaces = map[AnnotationArg]string{
	annotationArgStorageTypeUniform:   "var<uniform>",
	annotationArgStorageTypeRead:      "var<storage, read>",
	annotationArgStorageTypeReadWrite: "var<storage, read_write>",
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	included map[AnnotationArg]bool
}

// PreProcessor expands @oxy: annotations in WGSL source.
type PreProcessor interface {
	// Process replaces every //@oxy:include line with the registered struct source, at most
	// once per struct, and every //@oxy:group line with its @group/@binding declaration.
	//
	// Parameters:
	//   - source: WGSL source containing annotations
	//
	// Returns:
	//   - string: plain WGSL
	//   - error: error naming the line of a malformed annotation or unknown type
	Process(source string) (string, error)
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor.
func NewPreProcessor() PreProcessor {
	return &preProcessor{}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.included = make(map[AnnotationArg]bool)
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			entry, ok := structRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", a.Line, a.Args[0])
			}
			if p.included[a.Args[0]] {
				continue
			}
			p.included[a.Args[0]] = true
			out = append(out, entry.Source)
		case AnnotationTypeBindingGroup:
			typeName, err := declaredType(a.Args[2])
			if err != nil {
				return "", fmt.Errorf("line %d: %w", a.Line, err)
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				*a.Group, *a.Binding, addressSpaces[a.Args[0]], a.Args[1], typeName))
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", a.Line, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

// declaredType maps a group type argument, a struct key or array<key>, to its WGSL type.
func declaredType(arg AnnotationArg) (string, error) {
	key, isArray := strings.CutPrefix(string(arg), "array<")
	if isArray {
		key = strings.TrimSuffix(key, ">")
	}
	entry, ok := structRegistry[AnnotationArg(key)]
	if !ok {
		return "", fmt.Errorf("unknown @oxy:group type %q", arg)
	}
	if isArray {
		return "array<" + entry.Type + ">", nil
	}
	return entry.Type, nil
}
