package soft_device

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/pkg/errors"
)

type submission struct {
	cmds    []gpu.Command
	alloc   *allocator
	fence   *fence
	value   uint64
	present *texture
	sink    PresentSink
}

type queue struct {
	dev    *device
	mu     *sync.Mutex
	work   chan submission
	done   chan struct{}
	closed bool
}

var _ gpu.CommandQueue = (*queue)(nil)

func newQueue(d *device) *queue {
	q := &queue{
		dev:  d,
		mu:   &sync.Mutex{},
		work: make(chan submission, submissionQueueSize),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *queue) enqueue(s submission) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errors.Wrap(gpu.ErrReleased, "queue")
	}
	if err := q.dev.RemovedReason(); err != nil {
		return err
	}
	q.work <- s
	return nil
}

func (q *queue) stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.work)
	q.mu.Unlock()
	<-q.done
}

func (q *queue) run() {
	defer close(q.done)
	log := common.ComponentLogger("soft_device")

	for s := range q.work {
		if q.dev.RemovedReason() != nil {
			if s.alloc != nil {
				s.alloc.inflight.Add(-1)
			}
			continue
		}
		switch {
		case s.cmds != nil:
			if q.dev.execDelay > 0 {
				time.Sleep(q.dev.execDelay)
			}
			if err := q.dev.execute(s.cmds); err != nil {
				log.Error("command list execution failed", "error", err)
				q.dev.Remove(err)
			}
			s.alloc.inflight.Add(-1)
		case s.present != nil:
			if s.sink != nil {
				s.sink.PresentImage(s.present.snapshot())
			}
		case s.fence != nil:
			s.fence.signal(s.value)
		}
	}
}

// ExecuteCommandLists commits each list's final resource states in submission order and queues
// its commands for execution.
func (q *queue) ExecuteCommandLists(lists ...gpu.CommandList) error {
	for _, l := range lists {
		cl, ok := l.(*commandList)
		if !ok || cl.dev != q.dev {
			return errors.Wrap(gpu.ErrUnsupported, "command list from another device")
		}
		if cl.Recording() {
			return errors.Wrap(gpu.ErrListOpen, "execute")
		}
		if err := cl.Err(); err != nil {
			return errors.Wrap(err, "execute list with recording error")
		}
	}
	for _, l := range lists {
		cl := l.(*commandList)
		cmds := make([]gpu.Command, len(cl.Commands()))
		copy(cmds, cl.Commands())

		cl.alloc.inflight.Add(1)
		if err := q.enqueue(submission{cmds: cmds, alloc: cl.alloc}); err != nil {
			cl.alloc.inflight.Add(-1)
			return err
		}
		for res, state := range cl.FinalStates() {
			if s, ok := res.(stateful); ok {
				s.setState(state)
			}
		}
	}
	return nil
}

func (q *queue) Signal(f gpu.Fence, value uint64) error {
	sf, ok := f.(*fence)
	if !ok || sf.dev != q.dev {
		return errors.Wrap(gpu.ErrUnsupported, "fence from another device")
	}
	return q.enqueue(submission{fence: sf, value: value})
}

func (q *queue) present(tex *texture, sink PresentSink) error {
	return q.enqueue(submission{present: tex, sink: sink})
}

type allocator struct {
	id       uint64
	inflight atomic.Int64
}

func (a *allocator) Reset() error {
	if n := a.inflight.Load(); n > 0 {
		return errors.Wrapf(gpu.ErrAllocatorInUse, "%d submissions pending", n)
	}
	return nil
}

func (a *allocator) Release() {}

type fenceWaiter struct {
	value uint64
	ch    chan struct{}
}

type fence struct {
	dev       *device
	mu        *sync.Mutex
	completed uint64
	waiters   []fenceWaiter
}

var _ gpu.Fence = (*fence)(nil)

func (f *fence) signal(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
	}
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if w.value <= f.completed {
			close(w.ch)
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
}

func (f *fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *fence) Wait(ctx context.Context, value uint64) error {
	f.mu.Lock()
	if f.completed >= value {
		f.mu.Unlock()
		return nil
	}
	if err := f.dev.RemovedReason(); err != nil {
		f.mu.Unlock()
		return err
	}
	ch := make(chan struct{})
	f.waiters = append(f.waiters, fenceWaiter{value: value, ch: ch})
	f.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-f.dev.lost:
		return f.dev.RemovedReason()
	case <-ctx.Done():
		f.drop(ch)
		return errors.Wrapf(ctx.Err(), "fence wait for %d, completed %d", value, f.CompletedValue())
	}
}

func (f *fence) drop(ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.waiters {
		if w.ch == ch {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

func (f *fence) Release() {}

// PresentSink receives a copy of each presented back buffer. Headless windows implement it.
type PresentSink interface {
	PresentImage(img *image.RGBA)
}
