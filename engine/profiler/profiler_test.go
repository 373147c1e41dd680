package profiler

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
)

func TestTickReportsPerInterval(t *testing.T) {
	clock := time.Unix(0, 0)
	p := NewProfiler(time.Second)
	p.now = func() time.Time { return clock }
	p.lastTime = clock

	frame := func(ms int, dropped int) Sample {
		return Sample{
			Frame:     deferred.FrameStats{Draws: 7, Dropped: dropped, Unshadowed: 1},
			Cache:     resource.Stats{Hits: 3, Misses: 1},
			FrameTime: time.Duration(ms) * time.Millisecond,
		}
	}

	for _, ms := range []int{10, 20, 30} {
		clock = clock.Add(250 * time.Millisecond)
		assert.False(t, p.Tick(frame(ms, 2)))
	}
	clock = clock.Add(250 * time.Millisecond)
	require.True(t, p.Tick(frame(40, 0)))

	r := p.Last()
	assert.Equal(t, 4, r.Frames)
	assert.InDelta(t, 4.0, r.FPS, 1e-9)
	assert.Equal(t, 25*time.Millisecond, r.AvgFrameTime)
	assert.Equal(t, 40*time.Millisecond, r.MaxFrameTime)
	assert.Equal(t, 6, r.Dropped)
	assert.Equal(t, 4, r.Unshadowed)
	assert.Equal(t, 7, r.Last.Frame.Draws)

	// The next interval starts empty.
	clock = clock.Add(100 * time.Millisecond)
	assert.False(t, p.Tick(frame(5, 0)))
	assert.Equal(t, 4, p.Last().Frames)
}

func TestWriteTable(t *testing.T) {
	r := Report{
		Frames: 60,
		FPS:    60,
		Last: Sample{
			Frame: deferred.FrameStats{Draws: 12, PointLights: 3, ShadowRequests: 2, Shadowed: 1},
		},
		Unshadowed: 1,
	}
	var buf bytes.Buffer
	r.WriteTable(&buf)
	out := buf.String()
	assert.Contains(t, out, "Stage")
	assert.Contains(t, out, "Point lights")
	assert.Contains(t, out, "60.0")
	assert.Contains(t, out, "12")
}
