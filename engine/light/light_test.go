package light

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfluenceRadiusQuadratic(t *testing.T) {
	r, ok := InfluenceRadius(1, [3]float32{1, 0, 1}, 0.0001)
	require.True(t, ok)
	// 1 + d^2 = 10000
	assert.InDelta(t, math.Sqrt(9999), r, 1e-2)
}

func TestInfluenceRadiusLinear(t *testing.T) {
	r, ok := InfluenceRadius(2, [3]float32{0, 1, 0}, 0.5)
	require.True(t, ok)
	assert.InDelta(t, 4.0, r, 1e-5)
}

func TestInfluenceRadiusUnbounded(t *testing.T) {
	r, ok := InfluenceRadius(1, [3]float32{1, 0, 0}, 0.0001)
	assert.False(t, ok)
	assert.Zero(t, r)

	_, ok = InfluenceRadius(1, [3]float32{1, 0, 1}, 0)
	assert.False(t, ok)

	r, ok = InfluenceRadius(0, [3]float32{1, 0, 0}, 0.0001)
	assert.True(t, ok)
	assert.Zero(t, r)
}

func TestRangeOfUnboundedLight(t *testing.T) {
	p := NewLight(LightTypePoint, WithAttenuation(1, 0, 0))
	assert.True(t, math32.IsInf(p.Range(), 1))

	g := ToGPUPoint(p, [3]float32{}, p.Range())
	assert.Equal(t, float32(math32.MaxFloat32), g.Radius)

	dark := NewLight(LightTypePoint, WithIntensity(0))
	assert.Zero(t, dark.Range())
}

func TestNewLightDefaults(t *testing.T) {
	p := NewLight(LightTypePoint)
	assert.Equal(t, LightTypePoint, p.Type())
	assert.Equal(t, DefaultPointShadowResolution, p.ShadowResolution())
	assert.True(t, p.Enabled())
	assert.False(t, p.CastsShadows())
	assert.InDelta(t, 100.0, p.Range(), 0.1)

	d := NewLight(LightTypeDirectional, WithCastsShadows(true), WithShadowResolution(2048))
	assert.Equal(t, uint32(2048), d.ShadowResolution())
	assert.True(t, d.CastsShadows())
}

func TestToGPUPointPremultipliesIntensity(t *testing.T) {
	l := NewLight(LightTypePoint, WithColor(1, 0.5, 0.25), WithIntensity(4), WithAttenuation(1, 2, 3))
	g := ToGPUPoint(l, [3]float32{1, 2, 3}, 10)
	assert.Equal(t, [3]float32{4, 2, 1}, g.Color)
	assert.Equal(t, float32(2), g.Kl)
	assert.Equal(t, float32(10), g.Radius)
}

func TestGPUStructSizes(t *testing.T) {
	assert.Equal(t, 48, (&GPUPointLight{}).Size())
	assert.Equal(t, 32, (&GPUDirectionalLight{}).Size())
	assert.Equal(t, 96, (&GPUPointShadow{}).Size())
	assert.Equal(t, 96, (&GPUDirectionalShadow{}).Size())
	assert.Equal(t, 96, (&GPULightParams{}).Size())
	assert.Equal(t, 80, (&GPUShadowPass{}).Size())
}

func TestMarshalPointShadowsFixedCapacity(t *testing.T) {
	shadows := make([]GPUPointShadow, Capacity+3)
	for i := range shadows {
		shadows[i].Enabled = 1
		shadows[i].Page = uint32(i)
	}
	buf := MarshalPointShadows(shadows)
	require.Len(t, buf, Capacity*96)
	last := buf[(Capacity-1)*96:]
	assert.Equal(t, uint32(Capacity-1), binary.LittleEndian.Uint32(last[88:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(last[92:]))
}

func TestMarshalPointLightsZeroesUnusedSlots(t *testing.T) {
	buf := MarshalPointLights([]GPUPointLight{{Radius: 5}})
	require.Len(t, buf, Capacity*48)
	assert.Equal(t, float32(5), math.Float32frombits(binary.LittleEndian.Uint32(buf[12:])))
	for _, b := range buf[48:] {
		require.Zero(t, b)
	}
}
