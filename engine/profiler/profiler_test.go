package profiler

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestProfilerTick(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithInterval(time.Second), WithMemStats(false))

	for i := 0; i < 59; i++ {
		clock.t = clock.t.Add(16 * time.Millisecond)
		if p.Tick() {
			t.Fatalf("Tick() %d reported before the interval elapsed", i)
		}
	}
	p.RecordFenceWait(2 * time.Millisecond)
	p.RecordFenceWait(4 * time.Millisecond)

	clock.t = time.Unix(1, 0)
	if !p.Tick() {
		t.Fatal("Tick() after 1s = false, want true")
	}
	s := p.Last()
	if s.Frames != 60 {
		t.Errorf("Frames = %d, want 60", s.Frames)
	}
	if s.FPS < 59.99 || s.FPS > 60.01 {
		t.Errorf("FPS = %v, want 60", s.FPS)
	}
	if s.MsPerFrame < 16.66 || s.MsPerFrame > 16.67 {
		t.Errorf("MsPerFrame = %v, want 16.67", s.MsPerFrame)
	}
	if s.FenceWaits != 2 || s.AvgFenceWait != 3*time.Millisecond {
		t.Errorf("fence waits = %d avg %v, want 2 avg 3ms", s.FenceWaits, s.AvgFenceWait)
	}
	if got, want := p.Caption("quilt"), "quilt    fps: 60   mspf: 16.667"; got != want {
		t.Errorf("Caption() = %q, want %q", got, want)
	}

	clock.t = clock.t.Add(500 * time.Millisecond)
	if p.Tick() {
		t.Error("Tick() half an interval later = true, want false")
	}
}

func TestProfilerMemStats(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now))
	clock.t = clock.t.Add(2 * time.Second)
	if !p.Tick() {
		t.Fatal("Tick() = false, want true")
	}
	if s := p.Last(); s.HeapMB <= 0 || s.SysMB <= 0 {
		t.Errorf("memory stats = heap %v sys %v, want positive", s.HeapMB, s.SysMB)
	}
}
