package event

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/pkg/errors"
)

func TestQueueDrainOrder(t *testing.T) {
	q := NewQueue()
	pushes := []Event{
		Key{Code: common.KeyF2, Action: KeyPress},
		Resize{Width: 10, Height: 10},
		Close{},
	}
	for _, ev := range pushes {
		if ok, err := q.Push(ev); !ok || err != nil {
			t.Fatalf("Push(%v) = %v, %v, want true, nil", ev.Type(), ok, err)
		}
	}

	got := q.Drain()
	if len(got) != len(pushes) {
		t.Fatalf("Drain() returned %d events, want %d", len(got), len(pushes))
	}
	for i := range got {
		if got[i].Type() != pushes[i].Type() {
			t.Errorf("Drain()[%d].Type() = %v, want %v", i, got[i].Type(), pushes[i].Type())
		}
		if got[i].Timestamp().IsZero() {
			t.Errorf("Drain()[%d].Timestamp() is zero, want stamped", i)
		}
	}
	if q.Len() != 0 || q.Drain() != nil {
		t.Errorf("queue not empty after Drain()")
	}
}

func TestQueueCoalescesResize(t *testing.T) {
	q := NewQueue()
	q.Push(Resize{Width: 100, Height: 100, State: StateResizing})
	q.Push(Resize{Width: 120, Height: 90, State: StateResizing})
	q.Push(Resize{Width: 140, Height: 80, State: StateResizing})
	q.Push(ResizeComplete{Width: 140, Height: 80})
	q.Push(Resize{Width: 200, Height: 200, State: StateMaximized})

	got := q.Drain()
	if len(got) != 3 {
		t.Fatalf("Drain() returned %d events, want 3", len(got))
	}
	r, ok := got[0].(Resize)
	if !ok || r.Width != 140 || r.Height != 80 {
		t.Errorf("Drain()[0] = %+v, want the newest Resize 140x80", got[0])
	}
	if got[1].Type() != TypeResizeComplete || got[2].Type() != TypeResize {
		t.Errorf("Drain() types = %v, %v, want resize_complete, resize", got[1].Type(), got[2].Type())
	}
	if q.MaxSeen() != 3 {
		t.Errorf("MaxSeen() = %d, want 3", q.MaxSeen())
	}
}

func TestQueueFull(t *testing.T) {
	q := NewQueue()
	for i := 0; i < MaxQueued; i++ {
		if _, err := q.Push(Key{Code: i}); err != nil {
			t.Fatalf("Push(%d) error = %v", i, err)
		}
	}
	if _, err := q.Push(Close{}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Push() on full queue error = %v, want %v", err, ErrQueueFull)
	}
	// a resize only coalesces with a queued resize
	if _, err := q.Push(Resize{Width: 1, Height: 1}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Push(Resize) on full queue error = %v, want %v", err, ErrQueueFull)
	}
}

func TestQueueFilterAndFlush(t *testing.T) {
	q := NewQueue(WithFilter(func(ev Event) bool {
		k, ok := ev.(Key)
		return !ok || k.Action != KeyRepeat
	}))

	if ok, _ := q.Push(Key{Code: common.KeyLeft, Action: KeyRepeat}); ok {
		t.Error("Push(repeat) = true, want filtered")
	}
	q.Push(Key{Code: common.KeyLeft, Action: KeyPress})
	q.Push(Close{})
	if !q.HasType(TypeKey) {
		t.Error("HasType(TypeKey) = false, want true")
	}
	q.FlushType(TypeKey)
	if q.HasType(TypeKey) || q.Len() != 1 {
		t.Errorf("after FlushType(TypeKey) Len() = %d, HasType = %v, want 1, false", q.Len(), q.HasType(TypeKey))
	}
}

func TestQueueWaitAndClose(t *testing.T) {
	q := NewQueue()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Push(ConfigReload{Path: "quilt.toml"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := q.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if r, ok := ev.(ConfigReload); !ok || r.Path != "quilt.toml" {
		t.Errorf("Wait() = %+v, want ConfigReload for quilt.toml", ev)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancelShort()
	if _, err := q.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() on empty queue error = %v, want %v", err, context.DeadlineExceeded)
	}

	q.Push(Close{})
	q.Close()
	if _, err := q.Push(Close{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Push() after Close() error = %v, want %v", err, ErrQueueClosed)
	}
	if ev, err := q.Wait(ctx); err != nil || ev.Type() != TypeClose {
		t.Errorf("Wait() after Close() = %v, %v, want the queued close", ev, err)
	}
	if _, err := q.Wait(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Wait() on closed empty queue error = %v, want %v", err, ErrQueueClosed)
	}
	q.Close()
}
