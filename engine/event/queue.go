package event

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// MaxQueued bounds the number of undrained events.
const MaxQueued = 1024

var (
	// ErrQueueFull is returned by Push when MaxQueued events are waiting.
	ErrQueueFull = errors.New("event queue is full")
	// ErrQueueClosed is returned by Push and Wait after Close.
	ErrQueueClosed = errors.New("event queue is closed")
)

// Filter decides whether an event is queued. Returning false drops it.
type Filter func(ev Event) bool

// Queue is a FIFO of events safe for concurrent producers and one consumer. Consecutive Resize
// events coalesce into the newest one so a drag produces at most one pending resize.
type Queue struct {
	mu      *sync.Mutex
	events  []Event
	filter  Filter
	notify  chan struct{}
	closed  bool
	maxSeen int
	now     func() time.Time
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithFilter installs a filter run on every Push.
//
// Parameters:
//   - f: the filter; nil accepts everything
//
// Returns:
//   - QueueOption: functional option to set the filter
func WithFilter(f Filter) QueueOption {
	return func(q *Queue) {
		q.filter = f
	}
}

// NewQueue creates an empty queue.
func NewQueue(options ...QueueOption) *Queue {
	q := &Queue{
		mu:     &sync.Mutex{},
		notify: make(chan struct{}, 1),
		now:    time.Now,
	}
	for _, opt := range options {
		opt(q)
	}
	return q
}

// Push appends ev, stamping it with the current time when it has none.
//
// Parameters:
//   - ev: the event to queue
//
// Returns:
//   - bool: false if the filter dropped the event
//   - error: ErrQueueFull or ErrQueueClosed
func (q *Queue) Push(ev Event) (bool, error) {
	if q.filter != nil && !q.filter(ev) {
		return false, nil
	}
	ev = q.stamp(ev)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false, ErrQueueClosed
	}
	if n := len(q.events); n > 0 && ev.Type() == TypeResize && q.events[n-1].Type() == TypeResize {
		q.events[n-1] = ev
	} else {
		if len(q.events) >= MaxQueued {
			q.mu.Unlock()
			return false, ErrQueueFull
		}
		q.events = append(q.events, ev)
	}
	if len(q.events) > q.maxSeen {
		q.maxSeen = len(q.events)
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
	q.mu.Unlock()
	return true, nil
}

func (q *Queue) stamp(ev Event) Event {
	t := q.now()
	switch e := ev.(type) {
	case Resize:
		e.stamp(t)
		return e
	case ResizeComplete:
		e.stamp(t)
		return e
	case Close:
		e.stamp(t)
		return e
	case Key:
		e.stamp(t)
		return e
	case ConfigReload:
		e.stamp(t)
		return e
	}
	return ev
}

// Drain removes and returns every queued event in push order.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil
	}
	out := q.events
	q.events = nil
	return out
}

// Poll removes and returns the oldest event, if any.
func (q *Queue) Poll() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return nil, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

// Wait blocks until an event is available, the queue is closed, or ctx ends.
//
// Parameters:
//   - ctx: bounds the wait
//
// Returns:
//   - Event: the oldest event
//   - error: ErrQueueClosed, or the context error
func (q *Queue) Wait(ctx context.Context) (Event, error) {
	for {
		if ev, ok := q.Poll(); ok {
			return ev, nil
		}
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, ErrQueueClosed
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "wait for event")
		}
	}
}

// HasType reports whether an event of type t is queued.
func (q *Queue) HasType(t Type) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ev := range q.events {
		if ev.Type() == t {
			return true
		}
	}
	return false
}

// FlushType drops every queued event of type t.
func (q *Queue) FlushType(t Type) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.events[:0]
	for _, ev := range q.events {
		if ev.Type() != t {
			kept = append(kept, ev)
		}
	}
	q.events = kept
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// MaxSeen returns the largest backlog the queue has held.
func (q *Queue) MaxSeen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxSeen
}

// Close rejects further pushes and wakes a blocked Wait. Queued events can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.notify)
}
