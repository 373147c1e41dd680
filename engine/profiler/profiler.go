// Package profiler aggregates per-frame renderer statistics and logs them at a fixed interval.
package profiler

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/Carmen-Shannon/oxy-deferred/engine/deferred"
	"github.com/Carmen-Shannon/oxy-deferred/engine/resource"
	"github.com/Carmen-Shannon/oxy-deferred/log"
)

var logger = log.New("profiler")

// Sample is what one frame reports to the profiler.
type Sample struct {
	Frame     deferred.FrameStats
	Cache     resource.Stats
	FrameTime time.Duration
}

// Report summarises the frames of one interval.
type Report struct {
	Frames       int
	FPS          float64
	AvgFrameTime time.Duration
	MaxFrameTime time.Duration

	// Last is the sample of the final frame in the interval.
	Last Sample
	// Dropped and Unshadowed are summed over the interval.
	Dropped    int
	Unshadowed int

	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	MaxPauseUs  uint64
}

// Profiler tracks frame rate, frame statistics and memory use.
type Profiler struct {
	interval time.Duration
	now      func() time.Time

	lastTime time.Time
	current  Report
	last     Report

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a profiler reporting every interval. A non-positive interval reports every second.
//
// Parameters:
//   - interval: time between reports
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(interval time.Duration) *Profiler {
	if interval <= 0 {
		interval = time.Second
	}
	p := &Profiler{interval: interval, now: time.Now}
	p.lastTime = p.now()
	return p
}

// Tick records one frame. When the interval has elapsed the accumulated report is logged
// and a new interval starts.
//
// Parameters:
//   - s: the statistics of the frame
//
// Returns:
//   - bool: true if a report was logged this tick
func (p *Profiler) Tick(s Sample) bool {
	c := &p.current
	c.Frames++
	c.AvgFrameTime += s.FrameTime
	c.MaxFrameTime = max(c.MaxFrameTime, s.FrameTime)
	c.Dropped += s.Frame.Dropped
	c.Unshadowed += s.Frame.Unshadowed
	c.Last = s

	now := p.now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.interval {
		return false
	}
	c.FPS = float64(c.Frames) / elapsed.Seconds()
	c.AvgFrameTime /= time.Duration(c.Frames)
	p.readMemory(c, elapsed)

	logger.Infof("FPS: %.1f | frame: %s avg, %s max | draws: %d | lights: %d point, %d directional, %d dropped | shadows: %d, %d unshadowed | cache: %d hits, %d misses | heap: %.2f MB, %.2f MB/s, GC %d (max %d µs)",
		c.FPS, c.AvgFrameTime.Round(time.Microsecond), c.MaxFrameTime.Round(time.Microsecond),
		s.Frame.Draws, s.Frame.PointLights, s.Frame.DirectionalLights, c.Dropped,
		s.Frame.Shadowed, c.Unshadowed, s.Cache.Hits, s.Cache.Misses,
		c.HeapMB, c.AllocRateMB, c.GCCount, c.MaxPauseUs)

	p.last = *c
	p.current = Report{}
	p.lastTime = now
	return true
}

// readMemory fills the memory fields of r from the runtime.
func (p *Profiler) readMemory(r *Report, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	r.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 pauses.
	r.GCCount = p.memStats.NumGC
	start := max(p.lastGCCount, r.GCCount-min(r.GCCount, 256))
	for i := start; i < r.GCCount; i++ {
		r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
	}
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

// Last returns the most recent complete report.
func (p *Profiler) Last() Report {
	return p.last
}

// WriteTable renders the report as a table.
//
// Parameters:
//   - w: the destination
func (r Report) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Stage", "Metric", "Value"})
	f := r.Last.Frame
	table.Append([]string{"Frame", "FPS", fmt.Sprintf("%.1f", r.FPS)})
	table.Append([]string{"", "Average time", r.AvgFrameTime.String()})
	table.Append([]string{"", "Max time", r.MaxFrameTime.String()})
	table.Append([]string{"Geometry", "Meshes", fmt.Sprint(f.Meshes)})
	table.Append([]string{"", "Draws", fmt.Sprint(f.Draws)})
	table.Append([]string{"Lighting", "Point lights", fmt.Sprint(f.PointLights)})
	table.Append([]string{"", "Directional lights", fmt.Sprint(f.DirectionalLights)})
	table.Append([]string{"", "Dropped", fmt.Sprint(r.Dropped)})
	table.Append([]string{"Shadows", "Requested", fmt.Sprint(f.ShadowRequests)})
	table.Append([]string{"", "Rendered", fmt.Sprint(f.Shadowed)})
	table.Append([]string{"", "Unshadowed", fmt.Sprint(r.Unshadowed)})
	table.Append([]string{"", "Caster draws", fmt.Sprint(f.ShadowDraws)})
	table.Append([]string{"Post", "Average luminance", fmt.Sprintf("%.4f", f.AverageLuminance)})
	table.Append([]string{"Memory", "Uniform arena", fmt.Sprintf("%d KiB", f.ArenaBytes>>10)})
	table.Append([]string{"", "Cache hits / misses", fmt.Sprintf("%d / %d", r.Last.Cache.Hits, r.Last.Cache.Misses)})
	table.Append([]string{"", "Cached textures", fmt.Sprintf("%d idle, %d in use", r.Last.Cache.Idle, r.Last.Cache.Outstanding)})
	table.Append([]string{"", "Heap", fmt.Sprintf("%.2f MB", r.HeapMB)})
	table.Render()
}
