package model

// ModelBuilderOption is a functional option for configuring a Model.
type ModelBuilderOption func(*model)

// WithName sets the name of the model.
//
// Parameters:
//   - name: the model name
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithSubsets sets the subset list. Apply before WithGeometry to keep the subsets.
//
// Parameters:
//   - subsets: the subsets in draw order
//
// Returns:
//   - ModelBuilderOption: a function that applies the subsets option to a model
func WithSubsets(subsets ...Subset) ModelBuilderOption {
	return func(m *model) {
		m.subsets = subsets
	}
}

// WithGeometry sets the vertex and index data of the model.
//
// Parameters:
//   - vertices: the vertex list
//   - indices: the triangle list indices
//
// Returns:
//   - ModelBuilderOption: a function that applies the geometry option to a model
func WithGeometry(vertices []GPUVertex, indices []uint32) ModelBuilderOption {
	return func(m *model) {
		m.setGeometry(vertices, indices)
	}
}
