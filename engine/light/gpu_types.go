package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// Capacity is the number of slots in each per-frame light and shadow storage array.
// Lights visited after a kind's array is full are dropped for the frame.
const Capacity = 32

// Shadow pass modes written into GPUShadowPass.Mode.
const (
	// ShadowModePoint projects casters octahedrally around the light position.
	ShadowModePoint uint32 = 0

	// ShadowModeDirectional projects casters with an orthographic view-projection.
	ShadowModeDirectional uint32 = 1
)

// GPUPointLightSource is the canonical WGSL definition of the PointLight struct.
//
//go:embed assets/point_light.wgsl
var GPUPointLightSource string

// GPUDirectionalLightSource is the canonical WGSL definition of the DirectionalLight struct.
//
//go:embed assets/directional_light.wgsl
var GPUDirectionalLightSource string

// GPUPointShadowSource is the canonical WGSL definition of the PointShadow struct.
//
//go:embed assets/point_shadow.wgsl
var GPUPointShadowSource string

// GPUDirectionalShadowSource is the canonical WGSL definition of the DirectionalShadow struct.
//
//go:embed assets/directional_shadow.wgsl
var GPUDirectionalShadowSource string

// GPULightParamsSource is the canonical WGSL definition of the LightParams uniform struct.
//
//go:embed assets/light_params.wgsl
var GPULightParamsSource string

// GPUShadowPassSource is the canonical WGSL definition of the ShadowPass uniform struct.
//
//go:embed assets/shadow_pass.wgsl
var GPUShadowPassSource string

// GPUPointLight is the GPU-aligned representation of a point light.
// Matches the WGSL PointLight struct layout exactly (see GPUPointLightSource).
// Size: 48 bytes.
type GPUPointLight struct {
	Position [3]float32 // offset  0: world-space position
	Radius   float32    // offset 12: influence radius
	Color    [3]float32 // offset 16: RGB color premultiplied by intensity
	Cutoff   float32    // offset 28: attenuated intensity below which the light is ignored
	Kc       float32    // offset 32: constant attenuation
	Kl       float32    // offset 36: linear attenuation
	Kq       float32    // offset 40: quadratic attenuation
	_pad     float32    // offset 44
}

// Size returns the size of the GPUPointLight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (g *GPUPointLight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUPointLight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPUPointLight) Marshal() []byte {
	buf := make([]byte, 48)
	putVec3(buf[0:], g.Position)
	putFloat(buf[12:], g.Radius)
	putVec3(buf[16:], g.Color)
	putFloat(buf[28:], g.Cutoff)
	putFloat(buf[32:], g.Kc)
	putFloat(buf[36:], g.Kl)
	putFloat(buf[40:], g.Kq)
	return buf
}

// GPUDirectionalLight is the GPU-aligned representation of a directional light.
// Matches the WGSL DirectionalLight struct layout exactly (see GPUDirectionalLightSource).
// Size: 32 bytes.
type GPUDirectionalLight struct {
	Direction [3]float32 // offset  0: normalized direction the light travels
	_pad0     float32    // offset 12
	Color     [3]float32 // offset 16: RGB color premultiplied by intensity
	_pad1     float32    // offset 28
}

// Size returns the size of the GPUDirectionalLight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUDirectionalLight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUDirectionalLight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPUDirectionalLight) Marshal() []byte {
	buf := make([]byte, 32)
	putVec3(buf[0:], g.Direction)
	putVec3(buf[16:], g.Color)
	return buf
}

// GPUPointShadow is the per-light shadow metadata of a point light.
// Matches the WGSL PointShadow struct layout exactly (see GPUPointShadowSource).
// Size: 96 bytes.
type GPUPointShadow struct {
	View    [16]float32 // offset  0: world to light view matrix
	UVMin   [2]float32  // offset 64: atlas region min corner
	UVMax   [2]float32  // offset 72: atlas region max corner
	Near    float32     // offset 80
	Far     float32     // offset 84
	Page    uint32      // offset 88: atlas page index
	Enabled uint32      // offset 92: 1 when the atlas region holds a valid shadow map
}

// Size returns the size of the GPUPointShadow struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPUPointShadow) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUPointShadow struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload
func (g *GPUPointShadow) Marshal() []byte {
	buf := make([]byte, 96)
	putMat4(buf[0:], g.View)
	putVec2(buf[64:], g.UVMin)
	putVec2(buf[72:], g.UVMax)
	putFloat(buf[80:], g.Near)
	putFloat(buf[84:], g.Far)
	binary.LittleEndian.PutUint32(buf[88:], g.Page)
	binary.LittleEndian.PutUint32(buf[92:], g.Enabled)
	return buf
}

// GPUDirectionalShadow is the per-light shadow metadata of a directional light.
// Matches the WGSL DirectionalShadow struct layout exactly (see GPUDirectionalShadowSource).
// Size: 96 bytes.
type GPUDirectionalShadow struct {
	ViewProj [16]float32 // offset  0: world to light clip matrix
	UVMin    [2]float32  // offset 64
	UVMax    [2]float32  // offset 72
	Page     uint32      // offset 80
	Enabled  uint32      // offset 84
	_pad     [2]uint32   // offset 88
}

// Size returns the size of the GPUDirectionalShadow struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPUDirectionalShadow) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUDirectionalShadow struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload
func (g *GPUDirectionalShadow) Marshal() []byte {
	buf := make([]byte, 96)
	putMat4(buf[0:], g.ViewProj)
	putVec2(buf[64:], g.UVMin)
	putVec2(buf[72:], g.UVMax)
	binary.LittleEndian.PutUint32(buf[80:], g.Page)
	binary.LittleEndian.PutUint32(buf[84:], g.Enabled)
	return buf
}

// GPULightParams is the uniform block read by the light accumulation pass.
// Matches the WGSL LightParams struct layout exactly (see GPULightParamsSource).
// Size: 96 bytes.
type GPULightParams struct {
	InvViewProj      [16]float32 // offset  0: inverse camera view-projection
	CameraPosition   [3]float32  // offset 64
	PointCount       uint32      // offset 76
	DirectionalCount uint32      // offset 80
	AtlasSize        float32     // offset 84: atlas page edge in texels
	Width            uint32      // offset 88: output width
	Height           uint32      // offset 92: output height
}

// Size returns the size of the GPULightParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (96)
func (g *GPULightParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULightParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 96-byte buffer ready for GPU upload
func (g *GPULightParams) Marshal() []byte {
	buf := make([]byte, 96)
	putMat4(buf[0:], g.InvViewProj)
	putVec3(buf[64:], g.CameraPosition)
	binary.LittleEndian.PutUint32(buf[76:], g.PointCount)
	binary.LittleEndian.PutUint32(buf[80:], g.DirectionalCount)
	putFloat(buf[84:], g.AtlasSize)
	binary.LittleEndian.PutUint32(buf[88:], g.Width)
	binary.LittleEndian.PutUint32(buf[92:], g.Height)
	return buf
}

// GPUShadowPass is the uniform block of the shadow depth programs.
// Matches the WGSL ShadowPass struct layout exactly (see GPUShadowPassSource).
// Size: 80 bytes.
type GPUShadowPass struct {
	View [16]float32 // offset  0: light view (point) or view-projection (directional)
	Near float32     // offset 64
	Far  float32     // offset 68
	Mode uint32      // offset 72: ShadowModePoint or ShadowModeDirectional
	_pad uint32      // offset 76
}

// Size returns the size of the GPUShadowPass struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUShadowPass) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUShadowPass struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (g *GPUShadowPass) Marshal() []byte {
	buf := make([]byte, 80)
	putMat4(buf[0:], g.View)
	putFloat(buf[64:], g.Near)
	putFloat(buf[68:], g.Far)
	binary.LittleEndian.PutUint32(buf[72:], g.Mode)
	return buf
}

// MarshalPointLights packs point lights into a fixed Capacity-slot storage array.
// Unused slots are zeroed; entries beyond Capacity are ignored.
//
// Parameters:
//   - lights: the lights to pack
//
// Returns:
//   - []byte: Capacity*48 bytes ready for GPU upload
func MarshalPointLights(lights []GPUPointLight) []byte {
	stride := int(unsafe.Sizeof(GPUPointLight{}))
	buf := make([]byte, Capacity*stride)
	for i := 0; i < len(lights) && i < Capacity; i++ {
		copy(buf[i*stride:], lights[i].Marshal())
	}
	return buf
}

// MarshalDirectionalLights packs directional lights into a fixed Capacity-slot storage array.
//
// Parameters:
//   - lights: the lights to pack
//
// Returns:
//   - []byte: Capacity*32 bytes ready for GPU upload
func MarshalDirectionalLights(lights []GPUDirectionalLight) []byte {
	stride := int(unsafe.Sizeof(GPUDirectionalLight{}))
	buf := make([]byte, Capacity*stride)
	for i := 0; i < len(lights) && i < Capacity; i++ {
		copy(buf[i*stride:], lights[i].Marshal())
	}
	return buf
}

// MarshalPointShadows packs point shadow metadata into a fixed Capacity-slot storage array.
//
// Parameters:
//   - shadows: the shadow metadata to pack, index-aligned with the point lights
//
// Returns:
//   - []byte: Capacity*96 bytes ready for GPU upload
func MarshalPointShadows(shadows []GPUPointShadow) []byte {
	stride := int(unsafe.Sizeof(GPUPointShadow{}))
	buf := make([]byte, Capacity*stride)
	for i := 0; i < len(shadows) && i < Capacity; i++ {
		copy(buf[i*stride:], shadows[i].Marshal())
	}
	return buf
}

// MarshalDirectionalShadows packs directional shadow metadata into a fixed Capacity-slot storage array.
//
// Parameters:
//   - shadows: the shadow metadata to pack, index-aligned with the directional lights
//
// Returns:
//   - []byte: Capacity*96 bytes ready for GPU upload
func MarshalDirectionalShadows(shadows []GPUDirectionalShadow) []byte {
	stride := int(unsafe.Sizeof(GPUDirectionalShadow{}))
	buf := make([]byte, Capacity*stride)
	for i := 0; i < len(shadows) && i < Capacity; i++ {
		copy(buf[i*stride:], shadows[i].Marshal())
	}
	return buf
}

func putFloat(buf []byte, v float32) {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
}

func putVec2(buf []byte, v [2]float32) {
	putFloat(buf[0:], v[0])
	putFloat(buf[4:], v[1])
}

func putVec3(buf []byte, v [3]float32) {
	putFloat(buf[0:], v[0])
	putFloat(buf[4:], v[1])
	putFloat(buf[8:], v[2])
}

func putMat4(buf []byte, m [16]float32) {
	for i, v := range m {
		putFloat(buf[i*4:], v)
	}
}
