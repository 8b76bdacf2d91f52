// Package profiler collects frame statistics and logs them once per interval.
package profiler

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
)

// Stats summarizes one reporting interval.
type Stats struct {
	Frames     int
	FPS        float64
	MsPerFrame float64
	// FenceWaits and AvgFenceWait cover the frame-end flushes recorded in the interval.
	FenceWaits   int
	AvgFenceWait time.Duration
	HeapMB       float64
	AllocRateMB  float64
	SysMB        float64
	NumGC        uint32
	MaxGCPause   time.Duration
}

// Profiler tracks frame rate, fence waits and memory statistics.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	mu             *sync.Mutex
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	now            func() time.Time
	readMem        bool
	fenceWaits     int
	fenceWaitTotal time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats
	log            *slog.Logger
}

type ProfilerOption func(*Profiler)

// WithInterval sets the reporting interval.
//
// Parameters:
//   - d: the interval; non-positive values keep the one second default
//
// Returns:
//   - ProfilerOption: functional option to set the interval
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}

// WithMemStats toggles reading runtime memory statistics at each report. It stops the world
// briefly, so it is on by default and off in tight benchmarks.
func WithMemStats(enabled bool) ProfilerOption {
	return func(p *Profiler) {
		p.readMem = enabled
	}
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		updateInterval: time.Second,
		now:            time.Now,
		readMem:        true,
		log:            common.ComponentLogger("profiler"),
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// RecordFenceWait adds one end-of-frame fence wait to the current interval.
func (p *Profiler) RecordFenceWait(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fenceWaits++
	p.fenceWaitTotal += d
}

// Tick should be called once per frame. When the update interval has elapsed it computes the
// interval's Stats and logs them at Info.
//
// Returns:
//   - bool: true if stats were reported this tick
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	s := Stats{
		Frames:     p.frameCount,
		FPS:        float64(p.frameCount) / elapsed.Seconds(),
		FenceWaits: p.fenceWaits,
	}
	s.MsPerFrame = float64(elapsed.Milliseconds()) / float64(p.frameCount)
	if p.fenceWaits > 0 {
		s.AvgFenceWait = p.fenceWaitTotal / time.Duration(p.fenceWaits)
	}
	if p.readMem {
		p.sampleMemory(&s, elapsed)
	}

	p.log.Info("frame stats",
		"fps", fmt.Sprintf("%.2f", s.FPS),
		"ms_per_frame", fmt.Sprintf("%.3f", s.MsPerFrame),
		"fence_waits", s.FenceWaits,
		"avg_fence_wait", s.AvgFenceWait,
		"heap_mb", fmt.Sprintf("%.2f", s.HeapMB),
		"alloc_rate_mb", fmt.Sprintf("%.2f", s.AllocRateMB),
		"gc", s.NumGC,
		"max_gc_pause", s.MaxGCPause,
		"sys_mb", fmt.Sprintf("%.2f", s.SysMB))

	p.last = s
	p.frameCount = 0
	p.fenceWaits = 0
	p.fenceWaitTotal = 0
	p.lastTime = currentTime
	return true
}

func (p *Profiler) sampleMemory(s *Stats, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	s.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	s.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	s.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()
	s.NumGC = p.memStats.NumGC

	// PauseNs is a circular buffer of the last 256 pauses
	start := p.lastGCCount
	if s.NumGC-start > 256 {
		start = s.NumGC - 256
	}
	for i := start; i < s.NumGC; i++ {
		if pause := time.Duration(p.memStats.PauseNs[i%256]); pause > s.MaxGCPause {
			s.MaxGCPause = pause
		}
	}
	p.lastGCCount = s.NumGC
	p.lastTotalAlloc = p.memStats.TotalAlloc
}

// Last returns the stats of the most recent completed interval.
func (p *Profiler) Last() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Caption formats the last interval for a window title.
//
// Parameters:
//   - title: the base window title
//
// Returns:
//   - string: the title followed by fps and ms per frame
func (p *Profiler) Caption(title string) string {
	s := p.Last()
	return fmt.Sprintf("%s    fps: %.0f   mspf: %.3f", title, s.FPS, s.MsPerFrame)
}
