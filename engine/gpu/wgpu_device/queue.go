package wgpu_device

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/cenkalti/backoff/v4"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

type commandList struct {
	gpu.Recorder
	dev   *device
	alloc *allocator
}

var _ gpu.CommandList = (*commandList)(nil)

func (l *commandList) Reset(alloc gpu.CommandAllocator) error {
	a, ok := alloc.(*allocator)
	if !ok || a.dev != l.dev {
		return errors.Wrap(gpu.ErrUnsupported, "allocator from another device")
	}
	if err := l.dev.RemovedReason(); err != nil {
		return err
	}
	if err := l.Begin(); err != nil {
		return err
	}
	l.alloc = a
	return nil
}

func (l *commandList) Close() error {
	return l.End()
}

func (l *commandList) Release() {}

type queue struct {
	dev *device
	mu  *sync.Mutex
	// uniforms holds every draw's MVP of one submission, drawStride bytes apart
	uniforms     *wgpu.Buffer
	uniformBytes int
	uniformGroup *wgpu.BindGroup
	staging      []byte
}

var _ gpu.CommandQueue = (*queue)(nil)

// ExecuteCommandLists translates each list into one WebGPU command buffer and submits them in
// order. Resource states are committed as each list is submitted.
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
	if err := q.dev.RemovedReason(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, l := range lists {
		cl := l.(*commandList)
		if err := q.submit(cl); err != nil {
			q.dev.lose(err)
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

func (q *queue) submit(cl *commandList) error {
	q.dev.mu.Lock()
	defer q.dev.mu.Unlock()

	cb, err := q.translate(cl.Commands())
	if err != nil {
		return err
	}
	defer cb.Release()

	alloc := cl.alloc
	alloc.inflight.Add(1)
	q.dev.wq.Submit(cb)
	q.dev.wq.OnSubmittedWorkDone(func(wgpu.QueueWorkDoneStatus) {
		alloc.inflight.Add(-1)
	})
	return nil
}

// Signal sets the fence once all previously submitted work is done. Work-done callbacks fire in
// submission order while the device is polled.
func (q *queue) Signal(f gpu.Fence, value uint64) error {
	wf, ok := f.(*fence)
	if !ok || wf.dev != q.dev {
		return errors.Wrap(gpu.ErrUnsupported, "fence from another device")
	}
	if err := q.dev.RemovedReason(); err != nil {
		return err
	}
	q.dev.mu.Lock()
	defer q.dev.mu.Unlock()
	q.dev.wq.OnSubmittedWorkDone(func(wgpu.QueueWorkDoneStatus) {
		wf.signal(value)
	})
	return nil
}

// ensureUniforms grows the shared uniform buffer to hold n draws.
func (q *queue) ensureUniforms(n int) error {
	need := n * drawStride
	if need <= q.uniformBytes && q.uniforms != nil {
		return nil
	}
	size := drawStride * 64
	for size < need {
		size *= 2
	}
	buf, err := q.dev.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Draw Uniforms",
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:  uint64(size),
	})
	if err != nil {
		return errors.Wrap(err, "create draw uniform buffer")
	}
	group, err := q.dev.dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Draw Uniforms",
		Layout: q.dev.pipelines.drawLayout,
		Entries: []wgpu.BindGroupEntry{{
			Binding: 0,
			Buffer:  buf,
			Offset:  0,
			Size:    uint64((&GPUDrawUniform{}).Size()),
		}},
	})
	if err != nil {
		buf.Release()
		return errors.Wrap(err, "create draw uniform bind group")
	}
	q.releaseUniforms()
	q.uniforms, q.uniformGroup, q.uniformBytes = buf, group, size
	return nil
}

func (q *queue) releaseUniforms() {
	if q.uniformGroup != nil {
		q.uniformGroup.Release()
		q.uniformGroup = nil
	}
	if q.uniforms != nil {
		q.uniforms.Release()
		q.uniforms = nil
	}
	q.uniformBytes = 0
}

func (q *queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.releaseUniforms()
}

type allocator struct {
	dev      *device
	id       uint64
	inflight atomic.Int64
}

func (a *allocator) Reset() error {
	if a.inflight.Load() > 0 {
		a.dev.poll(false)
	}
	if n := a.inflight.Load(); n > 0 {
		return errors.Wrapf(gpu.ErrAllocatorInUse, "%d submissions pending", n)
	}
	return nil
}

func (a *allocator) Release() {}

type fence struct {
	dev       *device
	mu        *sync.Mutex
	completed uint64
}

var _ gpu.Fence = (*fence)(nil)

func (f *fence) signal(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.completed {
		f.completed = value
	}
}

func (f *fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

// Wait polls the device on an exponential backoff until the fence reaches value.
func (f *fence) Wait(ctx context.Context, value uint64) error {
	poll := backoff.WithContext(f.dev.pollBackOff(), ctx)
	for {
		if f.CompletedValue() >= value {
			return nil
		}
		if err := f.dev.RemovedReason(); err != nil {
			return err
		}
		f.dev.poll(false)
		if f.CompletedValue() >= value {
			return nil
		}

		wait := poll.NextBackOff()
		if wait == backoff.Stop {
			if err := ctx.Err(); err != nil {
				return errors.Wrapf(err, "fence wait for %d, completed %d", value, f.CompletedValue())
			}
			f.dev.lose(errors.Errorf("fence wait for %d timed out at %d", value, f.CompletedValue()))
			return f.dev.RemovedReason()
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "fence wait for %d, completed %d", value, f.CompletedValue())
		default:
		}
		sleep(wait)
	}
}

func (f *fence) Release() {}
