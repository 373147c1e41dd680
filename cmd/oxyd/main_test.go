package main

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/config"
	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/renderertest"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/Carmen-Shannon/oxy-deferred/engine/shadow"
)

func chunks(sizes ...uint32) []placement {
	out := make([]placement, len(sizes))
	for i, s := range sizes {
		out[i] = placement{Label: fmt.Sprintf("chunk %d", i), Size: s}
	}
	return out
}

func TestPackAtlasReportsOverflow(t *testing.T) {
	alloc := shadow.NewAllocator(2048, 1)
	placed := packAtlas(alloc, chunks(1024, 1024, 1024, 1024, 1024))

	require.Len(t, placed, 5)
	for i, p := range placed[:4] {
		assert.True(t, p.OK, "chunk %d", i)
		assert.Equal(t, uint32(1024), p.Box.Width())
		assert.Equal(t, uint32(1024), p.Box.Height())
		for _, q := range placed[:i] {
			assert.False(t, p.Box.Overlaps(q.Box), "%s overlaps %s", p.Label, q.Label)
		}
	}
	assert.False(t, placed[4].OK)

	var buf bytes.Buffer
	writeAtlasReport(&buf, config.Default().Shadow, alloc, placed)
	out := buf.String()
	assert.Contains(t, out, "chunk 4")
	assert.Contains(t, out, "unshadowed")
	assert.Contains(t, out, "(0,0)-(1023,1023)")
}

func TestPackAtlasClampsToPage(t *testing.T) {
	alloc := shadow.NewAllocator(256, 2)
	placed := packAtlas(alloc, chunks(4096, 4096, 4096))

	assert.True(t, placed[0].OK)
	assert.True(t, placed[1].OK)
	assert.False(t, placed[2].OK)
	assert.Equal(t, uint32(256), placed[0].Size)
	assert.NotEqual(t, placed[0].Page, placed[1].Page)
}

func TestShaderTableListsLibraries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeShaderTable(&buf))
	out := buf.String()
	assert.Contains(t, out, "lighting.comp.wgsl")
	assert.Contains(t, out, "16x16x1")
	assert.Contains(t, out, "gbuffer.frag.wgsl")
}

func TestFindShader(t *testing.T) {
	s, err := findShader("lighting.comp.wgsl")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Source())

	_, err = findShader("lighting.wgsl")
	assert.Error(t, err)
	_, err = findShader("missing.comp.wgsl")
	assert.Error(t, err)
}

func TestHueColor(t *testing.T) {
	r, g, b := hueColor(0)
	assert.Equal(t, [3]float32{1, 0, 0}, [3]float32{r, g, b})
	r, g, b = hueColor(1.0 / 3)
	assert.InDelta(t, 0, r, 1e-5)
	assert.InDelta(t, 1, g, 1e-5)
	assert.InDelta(t, 0, b, 1e-5)
}

func TestDemoScene(t *testing.T) {
	d := newDemo(3, 4, 2)
	require.Len(t, d.crates, 9)
	require.Len(t, d.lamps, 4)
	cam, _, ok := d.scene.MainCamera()
	require.True(t, ok)
	assert.Equal(t, "camera", cam.Name())

	shadowed := 0
	for _, lamp := range d.lamps {
		for _, a := range lamp.Aspects() {
			l, ok := a.(light.Light)
			if !ok {
				continue
			}
			assert.InDelta(t, 28.25, l.Range(), 0.01)
			if l.CastsShadows() {
				shadowed++
			}
		}
	}
	assert.Equal(t, 2, shadowed)

	before := d.lamps[0].Position()
	d.tick(1)
	assert.NotEqual(t, before, d.lamps[0].Position())

	d.paused = true
	before = d.lamps[0].Position()
	d.tick(1)
	assert.Equal(t, before, d.lamps[0].Position())
}

func TestDemoFurnish(t *testing.T) {
	rec := renderertest.NewRecorder()
	d := newDemo(2, 1, 1)
	r, err := deferred.NewRenderer(rec, d.scene, deferred.WithWorkers(0))
	require.NoError(t, err)
	t.Cleanup(r.Release)

	require.NoError(t, d.furnish(r.BaseMaterial()))
	for _, crate := range d.crates {
		var drawables int
		for _, a := range crate.Aspects() {
			if dr, ok := a.(*scene.Drawable); ok {
				drawables++
				assert.Equal(t, 1, dr.MaterialCount())
			}
		}
		assert.Equal(t, 1, drawables, crate.Name())
	}
}
