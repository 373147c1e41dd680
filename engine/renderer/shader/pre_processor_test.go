package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessIncludesOnce(t *testing.T) {
	out, err := NewPreProcessor().Process("//@oxy:include point_light\n//@oxy:include point_light\nfn f() {}")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "struct PointLight"))
}

func TestProcessGroupDeclarations(t *testing.T) {
	out, err := NewPreProcessor().Process(strings.Join([]string{
		"//@oxy:group 0 1 storage_read lights array<point_light>",
		"  //@oxy:group 2 0 storage_uniform params light_params",
	}, "\n"))
	require.NoError(t, err)
	assert.Contains(t, out, "@group(0) @binding(1) var<storage, read> lights: array<PointLight>;")
	assert.Contains(t, out, "@group(2) @binding(0) var<uniform> params: LightParams;")
}

func TestProcessRejectsMalformedAnnotations(t *testing.T) {
	for _, src := range []string{
		"//@oxy:",
		"//@oxy:include",
		"//@oxy:include teapot",
		"//@oxy:group 0 x storage_read lights array<point_light>",
		"//@oxy:group 0 1 storage_write lights array<point_light>",
		"//@oxy:group 0 1 storage_read lights array<teapot>",
		"//@oxy:macro foo",
	} {
		_, err := NewPreProcessor().Process(src)
		assert.Error(t, err, src)
	}
}

func TestStripComments(t *testing.T) {
	out := stripComments("a /* b /* nested */ c */ d // e\nf")
	assert.Equal(t, "a  d \nf", out)
}
