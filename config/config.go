// Package config holds the renderer tunables. Values are read from a TOML file, defaulted where absent, validated, and
// optionally hot reloaded while the application runs.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is returned by Validate when a value is out of range.
var ErrInvalid = errors.New("invalid config")

// Light overflow policies.
const (
	// OverflowFirst keeps the first lights visited by the scene query.
	OverflowFirst = "first"
	// OverflowNearest keeps the point lights closest to the camera.
	OverflowNearest = "nearest"
)

// Config is the root configuration document.
type Config struct {
	Window   Window   `toml:"window"`
	Renderer Renderer `toml:"renderer"`
	Shadow   Shadow   `toml:"shadow"`
	Bloom    Bloom    `toml:"bloom"`
	Tonemap  Tonemap  `toml:"tonemap"`
	Exposure Exposure `toml:"exposure"`
	Log      Log      `toml:"log"`
}

// Window configures the demo window.
type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	VSync  bool   `toml:"vsync"`
}

// Renderer configures the deferred frame.
type Renderer struct {
	// SkyColor is the clear color of the albedo target.
	SkyColor [4]float32 `toml:"sky_color"`
	// LightOverflow selects which lights survive when more than the GPU array capacity are visible.
	LightOverflow string `toml:"light_overflow"`
	// Workers is the size of the CPU preparation pool. Zero disables parallel preparation.
	Workers int `toml:"workers"`
	// ForceSoftware requests a fallback adapter.
	ForceSoftware bool `toml:"force_software"`
	// BindGroupCache bounds the bind groups the backend keeps between frames. Zero is unbounded.
	BindGroupCache int `toml:"bind_group_cache"`
}

// Shadow configures the variance shadow map atlas.
type Shadow struct {
	AtlasSize       uint32  `toml:"atlas_size"`
	AtlasPages      uint32  `toml:"atlas_pages"`
	PointChunk      uint32  `toml:"point_chunk"`
	DirectionalSize uint32  `toml:"directional_chunk"`
	BlurSigma       float32 `toml:"blur_sigma"`
	BlurRadius      int     `toml:"blur_radius"`
	DepthBias       int32   `toml:"depth_bias"`
	SlopeBias       float32 `toml:"slope_bias"`
	PointNear       float32 `toml:"point_near"`
	PointFar        float32 `toml:"point_far"`
	DomainRadius    float32 `toml:"domain_radius"`
}

// Bloom configures the bright-pass and bloom chain.
type Bloom struct {
	Threshold float32 `toml:"threshold"`
	Strength  float32 `toml:"strength"`
	Sigma     float32 `toml:"sigma"`
	Radius    int     `toml:"radius"`
}

// Tonemap configures the final exposure pass.
type Tonemap struct {
	Vignette float32 `toml:"vignette"`
	KeyValue float32 `toml:"key_value"`
}

// Exposure configures the luminance histogram.
type Exposure struct {
	MinLuminance float32 `toml:"min_luminance"`
	MaxLuminance float32 `toml:"max_luminance"`
	LowPercent   float32 `toml:"low_percent"`
	HighPercent  float32 `toml:"high_percent"`
}

// Log configures verbosity.
type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Window: Window{Title: "oxy-deferred", Width: 1280, Height: 720, VSync: true},
		Renderer: Renderer{
			SkyColor:       [4]float32{0.66, 2.05, 3.96, 1},
			LightOverflow:  OverflowFirst,
			Workers:        4,
			BindGroupCache: 4096,
		},
		Shadow: Shadow{
			AtlasSize:       2048,
			AtlasPages:      1,
			PointChunk:      512,
			DirectionalSize: 1024,
			BlurSigma:       1.67,
			BlurRadius:      5,
			DepthBias:       2,
			SlopeBias:       2.0,
			PointNear:       0.05,
			PointFar:        100,
			DomainRadius:    15000,
		},
		Bloom:    Bloom{Threshold: 1.0, Strength: 1.0, Sigma: 1.67, Radius: 5},
		Tonemap:  Tonemap{Vignette: 0.5, KeyValue: 0.18},
		Exposure: Exposure{MinLuminance: 1.0 / 256, MaxLuminance: 256, LowPercent: 0.5, HighPercent: 0.95},
		Log:      Log{Level: "notice"},
	}
}

// Load reads a TOML file on top of the defaults. Keys missing from the file keep their default value.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - Config: the merged and validated configuration
//   - error: error if the file cannot be read, parsed or validated
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a TOML document on top of the defaults.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the merged and validated configuration
//   - error: error if decoding or validation fails
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode renders the configuration as TOML.
//
// Returns:
//   - []byte: the encoded document
//   - error: error if encoding fails
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate checks value ranges. Errors wrap ErrInvalid.
//
// Returns:
//   - error: nil if every value is usable
func (c Config) Validate() error {
	if c.Shadow.AtlasSize < 2 {
		return fmt.Errorf("%w: shadow.atlas_size must be at least 2, got %d", ErrInvalid, c.Shadow.AtlasSize)
	}
	if c.Shadow.AtlasPages == 0 {
		return fmt.Errorf("%w: shadow.atlas_pages must be positive", ErrInvalid)
	}
	if c.Shadow.PointChunk > c.Shadow.AtlasSize || c.Shadow.DirectionalSize > c.Shadow.AtlasSize {
		return fmt.Errorf("%w: shadow chunk sizes must not exceed atlas_size %d", ErrInvalid, c.Shadow.AtlasSize)
	}
	if c.Shadow.PointNear <= 0 || c.Shadow.PointFar <= c.Shadow.PointNear {
		return fmt.Errorf("%w: shadow point range [%g, %g] is empty", ErrInvalid, c.Shadow.PointNear, c.Shadow.PointFar)
	}
	if c.Shadow.BlurRadius < 0 || c.Bloom.Radius < 0 {
		return fmt.Errorf("%w: blur radius must not be negative", ErrInvalid)
	}
	if c.Exposure.MinLuminance <= 0 || c.Exposure.MaxLuminance <= c.Exposure.MinLuminance {
		return fmt.Errorf("%w: exposure luminance range [%g, %g] is empty", ErrInvalid, c.Exposure.MinLuminance, c.Exposure.MaxLuminance)
	}
	if c.Exposure.LowPercent < 0 || c.Exposure.HighPercent > 1 || c.Exposure.LowPercent > c.Exposure.HighPercent {
		return fmt.Errorf("%w: exposure percentiles must satisfy 0 <= low <= high <= 1", ErrInvalid)
	}
	switch c.Renderer.LightOverflow {
	case OverflowFirst, OverflowNearest:
	default:
		return fmt.Errorf("%w: renderer.light_overflow %q", ErrInvalid, c.Renderer.LightOverflow)
	}
	if c.Renderer.BindGroupCache < 0 {
		return fmt.Errorf("%w: renderer.bind_group_cache must not be negative", ErrInvalid)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height)
	}
	return nil
}
