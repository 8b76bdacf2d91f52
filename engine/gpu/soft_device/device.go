// Package soft_device is a CPU implementation of the gpu device model. Command lists are executed
// in submission order by a single executor goroutine; draws into non-overlapping viewport regions
// are rasterized in parallel with fauxgl on a worker pool.
package soft_device

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/pkg/errors"
)

const (
	defaultMaxTextureDimension uint32 = 16384
	submissionQueueSize               = 64
)

func init() {
	gpu.Register(gpu.AdapterSoftware, "soft", func(target gpu.SurfaceTarget) (gpu.Device, error) {
		return NewDevice(), nil
	})
}

// Device is a software gpu.Device that can also be removed on demand, which is how device loss is
// exercised without a real driver.
type Device interface {
	gpu.Device

	// Remove puts the device into the lost state. Pending fence waits return gpu.ErrDeviceLost and
	// no further work executes.
	Remove(reason error)
}

type device struct {
	name          string
	maxDim        uint32
	msaaLevels    map[uint32]uint32
	rasterWorkers int
	execDelay     time.Duration

	queue *queue
	pool  worker.DynamicWorkerPool

	ids       atomic.Uint64
	lostOnce  sync.Once
	lost      chan struct{}
	removedMu *sync.Mutex
	removed   error

	meshes sync.Map
}

var _ Device = (*device)(nil)

// NewDevice creates a software device and starts its executor.
//
// Parameters:
//   - options: builder options
//
// Returns:
//   - Device: the device
func NewDevice(options ...DeviceBuilderOption) Device {
	d := &device{
		name:          "Software Rasterizer",
		maxDim:        defaultMaxTextureDimension,
		msaaLevels:    map[uint32]uint32{1: 1, 2: 1, 4: 1, 8: 1},
		rasterWorkers: defaultRasterWorkers(),
		lost:          make(chan struct{}),
		removedMu:     &sync.Mutex{},
	}
	for _, option := range options {
		option(d)
	}

	d.pool = worker.NewDynamicWorkerPool(d.rasterWorkers, 256, 1*time.Second)
	d.queue = newQueue(d)
	return d
}

func (d *device) nextID() uint64 {
	return d.ids.Add(1)
}

func (d *device) Info() gpu.AdapterInfo {
	return gpu.AdapterInfo{Name: d.name, Kind: gpu.AdapterSoftware, Backend: "soft"}
}

func (d *device) Queue() gpu.CommandQueue {
	return d.queue
}

func (d *device) CreateFence(initial uint64) (gpu.Fence, error) {
	if err := d.RemovedReason(); err != nil {
		return nil, err
	}
	return &fence{dev: d, mu: &sync.Mutex{}, completed: initial}, nil
}

func (d *device) CreateCommandAllocator() (gpu.CommandAllocator, error) {
	if err := d.RemovedReason(); err != nil {
		return nil, err
	}
	return &allocator{id: d.nextID()}, nil
}

func (d *device) CreateCommandList(alloc gpu.CommandAllocator) (gpu.CommandList, error) {
	if err := d.RemovedReason(); err != nil {
		return nil, err
	}
	a, ok := alloc.(*allocator)
	if !ok {
		return nil, errors.Wrap(gpu.ErrUnsupported, "allocator from another device")
	}
	return &commandList{dev: d, alloc: a}, nil
}

func (d *device) CreateTexture(desc gpu.TextureDescriptor) (gpu.Texture, error) {
	if err := d.RemovedReason(); err != nil {
		return nil, err
	}
	if err := desc.Validate(d.maxDim); err != nil {
		return nil, err
	}
	if desc.Sample.Count > 1 {
		if levels := d.msaaLevels[desc.Sample.Count]; desc.Sample.Quality >= levels {
			return nil, errors.Wrapf(gpu.ErrUnsupported, "texture %q: %dx quality %d (levels %d)",
				desc.Label, desc.Sample.Count, desc.Sample.Quality, levels)
		}
	}
	return newTexture(d.nextID(), desc), nil
}

func (d *device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	if err := d.RemovedReason(); err != nil {
		return nil, err
	}
	if desc.Size == 0 {
		return nil, errors.Wrapf(gpu.ErrInvalidDescriptor, "buffer %q has zero size", desc.Label)
	}
	b := &buffer{
		size: desc.Size,
		heap: desc.Heap,
		data: make([]byte, desc.Size),
	}
	b.init(d.nextID(), desc.Label, desc.InitialState)
	return b, nil
}

func (d *device) CreateSwapChain(target gpu.SurfaceTarget, desc gpu.SwapChainDescriptor) (gpu.SwapChain, error) {
	if err := d.RemovedReason(); err != nil {
		return nil, err
	}
	sc := &swapChain{dev: d, mu: &sync.Mutex{}, presentMode: desc.PresentMode}
	if sink, ok := target.(PresentSink); ok {
		sc.sink = sink
	}
	if target != nil {
		sc.target = target
	}
	if err := sc.ResizeBuffers(desc.BufferCount, desc.Width, desc.Height, desc.Format); err != nil {
		return nil, err
	}
	return sc, nil
}

func (d *device) CheckMultisampleQualityLevels(format gpu.Format, sampleCount uint32) (uint32, error) {
	if err := d.RemovedReason(); err != nil {
		return 0, err
	}
	if format == gpu.FormatUnknown {
		return 0, errors.Wrap(gpu.ErrUnsupported, "multisample query for unknown format")
	}
	return d.msaaLevels[sampleCount], nil
}

func (d *device) CopyableFootprint(tex gpu.Texture) gpu.Footprint {
	return gpu.Footprint{
		Width:    tex.Width(),
		Height:   tex.Height(),
		RowPitch: gpu.AlignedRowPitch(tex.Width(), tex.Format().BytesPerPixel()),
		Format:   tex.Format(),
	}
}

func (d *device) MaxTextureDimension() uint32 {
	return d.maxDim
}

func (d *device) RemovedReason() error {
	d.removedMu.Lock()
	defer d.removedMu.Unlock()
	return d.removed
}

func (d *device) Remove(reason error) {
	d.lostOnce.Do(func() {
		d.removedMu.Lock()
		if reason == nil {
			d.removed = gpu.ErrDeviceLost
		} else {
			d.removed = errors.Wrap(gpu.ErrDeviceLost, reason.Error())
		}
		d.removedMu.Unlock()
		close(d.lost)
		common.ComponentLogger("soft_device").Error("device removed", "reason", reason)
	})
}

func (d *device) Release() {
	d.queue.stop()
	d.pool.Stop()
}
