package material

// MaterialBuilderOption is a function that configures a material instance during construction.
type MaterialBuilderOption func(*material)

// WithName is an option builder that sets the name of the material.
// The default name is the key of the program's pipeline.
//
// Parameters:
//   - name: the identifier for the material
//
// Returns:
//   - MaterialBuilderOption: a function that applies the name option to a material
func WithName(name string) MaterialBuilderOption {
	return func(m *material) {
		m.name = name
	}
}

// WithFloat is an option builder that writes an initial f32 constant.
//
// Parameters:
//   - name: the member name
//   - v: the value
//
// Returns:
//   - MaterialBuilderOption: a function that applies the constant to a material
func WithFloat(name string, v float32) MaterialBuilderOption {
	return func(m *material) {
		m.pending = append(m.pending, func(m *material) error {
			return m.SetFloat(name, v)
		})
	}
}

// WithVector is an option builder that writes an initial vector constant, e.g. a base color.
//
// Parameters:
//   - name: the member name
//   - v: the components
//
// Returns:
//   - MaterialBuilderOption: a function that applies the constant to a material
func WithVector(name string, v ...float32) MaterialBuilderOption {
	return func(m *material) {
		m.pending = append(m.pending, func(m *material) error {
			return m.SetVector(name, v)
		})
	}
}

// WithInput is an option builder that binds an initial texture, sampler or storage buffer.
//
// Parameters:
//   - tag: the binding variable name
//   - r: the resource
//
// Returns:
//   - MaterialBuilderOption: a function that applies the input to a material
func WithInput(tag string, r any) MaterialBuilderOption {
	return func(m *material) {
		m.pending = append(m.pending, func(m *material) error {
			return m.SetInput(tag, r)
		})
	}
}
