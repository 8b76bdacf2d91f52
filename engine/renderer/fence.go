package renderer

import (
	"context"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/pkg/errors"
)

// DefaultFlushTimeout bounds every fence wait unless configured otherwise.
const DefaultFlushTimeout = 10 * time.Second

// FenceStats accumulates fence wait statistics.
type FenceStats struct {
	// Waits is the number of waits that actually blocked.
	Waits uint64
	// Skipped is the number of waits satisfied by the completed-value fast path.
	Skipped uint64
	// WaitTime is the total time spent blocked.
	WaitTime time.Duration
}

// FrameFence pairs a GPU fence with the value most recently signaled on the queue. It is the only
// way the CPU learns that submitted work has finished.
type FrameFence struct {
	mu      *sync.Mutex
	device  gpu.Device
	queue   gpu.CommandQueue
	fence   gpu.Fence
	current uint64
	timeout time.Duration
	stats   FenceStats
}

// NewFrameFence creates a fence starting at zero on the device's queue.
//
// Parameters:
//   - device: the device owning the queue
//   - timeout: the bound on each wait; zero selects DefaultFlushTimeout
//
// Returns:
//   - *FrameFence: the fence
//   - error: the device error if the fence cannot be created
func NewFrameFence(device gpu.Device, timeout time.Duration) (*FrameFence, error) {
	f, err := device.CreateFence(0)
	if err != nil {
		return nil, errors.Wrap(err, "create frame fence")
	}
	if timeout <= 0 {
		timeout = DefaultFlushTimeout
	}
	return &FrameFence{
		mu:      &sync.Mutex{},
		device:  device,
		queue:   device.Queue(),
		fence:   f,
		timeout: timeout,
	}, nil
}

// SignalNext increments the fence value and asks the queue to signal it once all previously
// submitted work completes.
//
// Returns:
//   - uint64: the new fence value
//   - error: the queue error, typically wrapping gpu.ErrDeviceLost
func (f *FrameFence) SignalNext() (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.current + 1
	if err := f.queue.Signal(f.fence, next); err != nil {
		return f.current, errors.Wrapf(err, "signal fence value %d", next)
	}
	f.current = next
	return next, nil
}

// Flush signals a new value and blocks until the GPU reaches it, so every command submitted before
// the call has finished when it returns.
func (f *FrameFence) Flush() error {
	v, err := f.SignalNext()
	if err != nil {
		return err
	}
	return f.WaitFor(v)
}

// WaitFor blocks until the fence reaches value or the wait bound expires.
//
// Parameters:
//   - value: the fence value to wait for
//
// Returns:
//   - error: nil on completion, gpu.ErrDeviceLost if the device was removed, ErrFenceTimeout otherwise
func (f *FrameFence) WaitFor(value uint64) error {
	if f.fence.CompletedValue() >= value {
		f.mu.Lock()
		f.stats.Skipped++
		f.mu.Unlock()
		return nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	err := f.fence.Wait(ctx, value)
	cancel()
	elapsed := time.Since(start)

	f.mu.Lock()
	f.stats.Waits++
	f.stats.WaitTime += elapsed
	f.mu.Unlock()

	if err == nil {
		return nil
	}
	if errors.Is(err, gpu.ErrDeviceLost) {
		return err
	}
	if removed := f.device.RemovedReason(); removed != nil {
		return removed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		common.ComponentLogger("renderer").Error("fence wait timed out",
			"value", value, "completed", f.fence.CompletedValue(), "timeout", f.timeout)
		return errors.Wrapf(ErrFenceTimeout, "value %d after %s", value, f.timeout)
	}
	return errors.Wrapf(err, "wait for fence value %d", value)
}

// Current returns the most recently signaled value.
func (f *FrameFence) Current() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Completed returns the value the GPU has reached.
func (f *FrameFence) Completed() uint64 {
	return f.fence.CompletedValue()
}

// Stats returns a copy of the accumulated wait statistics.
func (f *FrameFence) Stats() FenceStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// Release drops the underlying fence.
func (f *FrameFence) Release() {
	f.fence.Release()
}
