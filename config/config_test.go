package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint32(2048), cfg.Shadow.AtlasSize)
	assert.Equal(t, uint32(1), cfg.Shadow.AtlasPages)
	assert.InDelta(t, 1.67, cfg.Shadow.BlurSigma, 1e-6)
	assert.Equal(t, OverflowFirst, cfg.Renderer.LightOverflow)
	assert.Equal(t, 4096, cfg.Renderer.BindGroupCache)
}

func TestParseKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
[shadow]
atlas_size = 4096

[tonemap]
vignette = 0.25
`))
	require.NoError(t, err)
	assert.Equal(t, uint32(4096), cfg.Shadow.AtlasSize)
	assert.Equal(t, 5, cfg.Shadow.BlurRadius)
	assert.InDelta(t, 0.25, cfg.Tonemap.Vignette, 1e-6)
	assert.Equal(t, 1280, cfg.Window.Width)
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte(`
[renderer]
light_overflow = "random"
`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))

	_, err = Parse([]byte(`
[exposure]
min_luminance = 4.0
max_luminance = 2.0
`))
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestValidateShadowPointRange(t *testing.T) {
	cfg := Default()
	cfg.Shadow.PointFar = cfg.Shadow.PointNear
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalid))

	cfg = Default()
	cfg.Shadow.PointNear = 0
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalid))

	cfg = Default()
	cfg.Renderer.BindGroupCache = -1
	assert.True(t, errors.Is(cfg.Validate(), ErrInvalid))
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse([]byte(`[shadow`))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalid))
}

func TestEncodeWritesSections(t *testing.T) {
	data, err := Default().Encode()
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "[shadow]")
	assert.Contains(t, out, "atlas_size = 2048")
	assert.Contains(t, out, "light_overflow = 'first'")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oxy.toml")
	require.NoError(t, os.WriteFile(path, []byte("[bloom]\nstrength = 1.0\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c Config) { changes <- c })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[bloom]\nstrength = 3.0\n"), 0o644))

	select {
	case cfg := <-changes:
		assert.InDelta(t, 3.0, cfg.Bloom.Strength, 1e-6)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
