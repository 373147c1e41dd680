package shader

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryCachesByKeyAndStage(t *testing.T) {
	fsys := fstest.MapFS{
		"blur.comp.wgsl": {Data: []byte("@compute @workgroup_size(64) fn main() {}")},
	}
	lib := NewLibrary("test", fsys)

	a, err := lib.Get("blur", ShaderTypeCompute)
	require.NoError(t, err)
	b, err := lib.Get("blur", ShaderTypeCompute)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, [3]uint32{64, 1, 1}, a.WorkgroupSize())

	_, err = lib.Get("blur", ShaderTypeVertex)
	assert.Error(t, err)
}

func TestLibraryInvalidateBumpsVersion(t *testing.T) {
	lib := NewLibrary("test", fstest.MapFS{})
	v := lib.Version()
	lib.invalidate()
	assert.Equal(t, v+1, lib.Version())
}

func TestParseFile(t *testing.T) {
	key, st, ok := ParseFile("assets/gbuffer.frag.wgsl")
	require.True(t, ok)
	assert.Equal(t, "gbuffer", key)
	assert.Equal(t, ShaderTypeFragment, st)

	_, _, ok = ParseFile("common.wgsl")
	assert.False(t, ok)
}

func TestLibraryFiles(t *testing.T) {
	lib := NewLibrary("test", fstest.MapFS{
		"b.comp.wgsl": {Data: []byte("")},
		"a.vert.wgsl": {Data: []byte("")},
		"readme.md":   {Data: []byte("")},
	})
	files, err := lib.Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.vert.wgsl", "b.comp.wgsl"}, files)
}
