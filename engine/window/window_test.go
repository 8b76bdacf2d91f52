package window

import (
	"image"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/event"
)

func drainTypes(q *event.Queue) []event.Type {
	var out []event.Type
	for _, ev := range q.Drain() {
		out = append(out, ev.Type())
	}
	return out
}

func TestHeadlessDragResizeSettles(t *testing.T) {
	w := NewHeadless(WithSize(320, 240), WithSettleDelay(time.Hour))
	defer w.Close()

	w.DragResize(330, 240)
	w.DragResize(340, 250)
	w.DragResize(350, 260)
	if got := w.State(); got != event.StateResizing {
		t.Errorf("State() during drag = %v, want resizing", got)
	}

	w.PollEvents()
	evs := w.Events().Drain()
	if len(evs) != 1 {
		t.Fatalf("Drain() during drag returned %d events, want 1 coalesced resize", len(evs))
	}
	if r := evs[0].(event.Resize); r.Width != 350 || r.Height != 260 || r.State != event.StateResizing {
		t.Errorf("Drain()[0] = %+v, want 350x260 resizing", r)
	}

	// drop the settle delay so the next poll completes the drag
	w.(*headlessWindow).settleDelay = 0
	w.PollEvents()
	evs = w.Events().Drain()
	if len(evs) != 1 {
		t.Fatalf("Drain() after settle returned %d events, want 1", len(evs))
	}
	if rc, ok := evs[0].(event.ResizeComplete); !ok || rc.Width != 350 || rc.Height != 260 {
		t.Errorf("Drain()[0] = %+v, want ResizeComplete 350x260", evs[0])
	}
	if got := w.State(); got != event.StateNormal {
		t.Errorf("State() after settle = %v, want normal", got)
	}
	if fw, fh := w.FramebufferSize(); fw != 350 || fh != 260 {
		t.Errorf("FramebufferSize() = %dx%d, want 350x260", fw, fh)
	}
}

func TestHeadlessMinimizeMaximize(t *testing.T) {
	w := NewHeadless(WithSize(320, 240), WithSettleDelay(0))
	defer w.Close()

	tests := []struct {
		name  string
		act   func()
		state event.WindowState
		w, h  int
	}{
		{"minimize", w.Minimize, event.StateMinimized, 320, 240},
		{"restore", w.Restore, event.StateNormal, 320, 240},
		{"maximize", func() { w.Maximize(1920, 1080) }, event.StateMaximized, 1920, 1080},
		{"restore maximized", w.Restore, event.StateNormal, 1920, 1080},
	}
	for _, tt := range tests {
		tt.act()
		evs := w.Events().Drain()
		if len(evs) != 1 {
			t.Fatalf("%s: Drain() returned %d events, want 1", tt.name, len(evs))
		}
		r := evs[0].(event.Resize)
		if r.State != tt.state || r.Width != tt.w || r.Height != tt.h {
			t.Errorf("%s: Resize = %+v, want %v %dx%d", tt.name, r, tt.state, tt.w, tt.h)
		}
		if got := w.State(); got != tt.state {
			t.Errorf("%s: State() = %v, want %v", tt.name, got, tt.state)
		}
	}

	w.Minimize()
	w.Events().Drain()
	w.DragResize(100, 100)
	if got := w.Events().Len(); got != 0 {
		t.Errorf("resize while minimized queued %d events, want 0", got)
	}
}

func TestHeadlessKeysAndClose(t *testing.T) {
	w := NewHeadless()
	w.PressKey(common.KeyF2)
	w.RequestClose()

	got := drainTypes(w.Events())
	want := []event.Type{event.TypeKey, event.TypeKey, event.TypeClose}
	if len(got) != len(want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
	if w.IsRunning() {
		t.Error("IsRunning() after RequestClose() = true, want false")
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Place(0, 0, 10, 10, true); err == nil {
		t.Error("Place() after Close() error = nil, want error")
	}
}

func TestHeadlessPlaceAndPresent(t *testing.T) {
	w := NewHeadless(WithTitle("quilt"), WithSize(64, 64))
	defer w.Close()

	if err := w.Place(1920, 0, 1536, 2048, true); err != nil {
		t.Fatalf("Place() error = %v", err)
	}
	if x, y := w.Position(); x != 1920 || y != 0 {
		t.Errorf("Position() = %d,%d, want 1920,0", x, y)
	}
	if !w.Borderless() || w.Width() != 1536 || w.Height() != 2048 {
		t.Errorf("after Place() borderless=%v size=%dx%d, want true 1536x2048", w.Borderless(), w.Width(), w.Height())
	}
	if got := drainTypes(w.Events()); len(got) != 1 || got[0] != event.TypeResize {
		t.Errorf("Place() events = %v, want one resize", got)
	}

	w.SetTitle("renamed")
	if w.Title() != "renamed" {
		t.Errorf("Title() = %q, want renamed", w.Title())
	}

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	w.PresentImage(img)
	w.PresentImage(img)
	if w.Presented() != 2 || w.LastImage() != img {
		t.Errorf("Presented() = %d, LastImage() = %p, want 2 and %p", w.Presented(), w.LastImage(), img)
	}
}
