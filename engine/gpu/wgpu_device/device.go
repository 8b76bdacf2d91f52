// Package wgpu_device drives real hardware through WebGPU. Command lists are recorded with
// gpu.Recorder and translated into WebGPU command encoders when they are executed; fences are
// signalled from queue work-done callbacks, which fire while the device is polled.
package wgpu_device

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/cenkalti/backoff/v4"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// SurfaceProvider is implemented by windows that can describe a native surface for WebGPU.
type SurfaceProvider interface {
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
}

var sleep = time.Sleep

func init() {
	gpu.Register(gpu.AdapterHardware, "wgpu", func(target gpu.SurfaceTarget) (gpu.Device, error) {
		return NewDevice(target)
	})
}

type device struct {
	name        string
	backend     string
	maxDim      uint32
	fallback    bool
	pollMin     time.Duration
	pollMax     time.Duration
	pollTimeout time.Duration

	mu       *sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	dev      *wgpu.Device
	wq       *wgpu.Queue
	surface  *wgpu.Surface

	queue     *queue
	pipelines *pipelineCache
	meshes    sync.Map

	ids       atomic.Uint64
	lostOnce  sync.Once
	removedMu *sync.Mutex
	removed   error
}

var _ gpu.Device = (*device)(nil)

// NewDevice opens a WebGPU adapter compatible with target's surface. A nil target, or one that is
// not a SurfaceProvider, opens an offscreen device whose swap chains never reach a display.
//
// Parameters:
//   - target: the window to present to, or nil
//   - options: builder options
//
// Returns:
//   - gpu.Device: the device
//   - error: the adapter or device request failure
func NewDevice(target gpu.SurfaceTarget, options ...DeviceBuilderOption) (gpu.Device, error) {
	d := &device{
		mu:          &sync.Mutex{},
		removedMu:   &sync.Mutex{},
		pollMin:     50 * time.Microsecond,
		pollMax:     2 * time.Millisecond,
		pollTimeout: 30 * time.Second,
	}
	for _, option := range options {
		option(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	if sp, ok := target.(SurfaceProvider); ok {
		if desc := sp.SurfaceDescriptor(); desc != nil {
			d.surface = d.instance.CreateSurface(desc)
		}
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.fallback,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.releaseInstance()
		return nil, errors.Wrap(err, "request webgpu adapter")
	}
	d.adapter = a

	info := a.GetInfo()
	d.name = info.Name
	d.backend = "wgpu/" + info.BackendType.String()
	limits := a.GetLimits().Limits
	if d.maxDim == 0 || d.maxDim > limits.MaxTextureDimension2D {
		d.maxDim = limits.MaxTextureDimension2D
	}

	required := wgpu.DefaultLimits()
	required.MaxTextureDimension2D = d.maxDim
	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "Quilt Device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: required},
	})
	if err != nil {
		d.releaseInstance()
		return nil, errors.Wrap(err, "request webgpu device")
	}
	d.dev = dev
	d.wq = dev.GetQueue()
	d.queue = &queue{dev: d, mu: &sync.Mutex{}}
	d.pipelines = newPipelineCache(d)

	common.ComponentLogger("wgpu_device").Info("device opened",
		"adapter", d.name, "backend", d.backend, "max_texture", d.maxDim, "surface", d.surface != nil)
	return d, nil
}

func (d *device) nextID() uint64 {
	return d.ids.Add(1)
}

// poll lets WebGPU run pending map and work-done callbacks.
func (d *device) poll(wait bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		d.dev.Poll(wait, nil)
	}
}

// pollBackOff is the schedule fence waits and buffer maps poll the device on.
func (d *device) pollBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.pollMin
	b.MaxInterval = d.pollMax
	b.MaxElapsedTime = d.pollTimeout
	b.Reset()
	return b
}

func (d *device) Info() gpu.AdapterInfo {
	return gpu.AdapterInfo{Name: d.name, Kind: gpu.AdapterHardware, Backend: d.backend}
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
	return &allocator{dev: d, id: d.nextID()}, nil
}

func (d *device) CreateCommandList(alloc gpu.CommandAllocator) (gpu.CommandList, error) {
	if err := d.RemovedReason(); err != nil {
		return nil, err
	}
	a, ok := alloc.(*allocator)
	if !ok || a.dev != d {
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
		levels, err := d.CheckMultisampleQualityLevels(desc.Format, desc.Sample.Count)
		if err != nil {
			return nil, err
		}
		if desc.Sample.Quality >= levels {
			return nil, errors.Wrapf(gpu.ErrUnsupported, "texture %q: %dx quality %d (levels %d)",
				desc.Label, desc.Sample.Count, desc.Sample.Quality, levels)
		}
	}
	wf, err := textureFormat(desc.Format)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	tex, err := d.dev.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   desc.Sample.Count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wf,
		Usage:         textureUsage(desc),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create texture %q", desc.Label)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, errors.Wrapf(err, "create view of %q", desc.Label)
	}

	t := &texture{desc: desc, wformat: wf, tex: tex, view: view}
	t.init(d.nextID(), desc.Label, desc.InitialState)
	return t, nil
}

func (d *device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	if err := d.RemovedReason(); err != nil {
		return nil, err
	}
	if desc.Size == 0 {
		return nil, errors.Wrapf(gpu.ErrInvalidDescriptor, "buffer %q has zero size", desc.Label)
	}
	// mappable sizes must be a multiple of 4
	size := (desc.Size + 3) &^ 3

	d.mu.Lock()
	defer d.mu.Unlock()
	buf, err := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Usage: bufferUsage(desc.Heap),
		Size:  size,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create buffer %q", desc.Label)
	}
	b := &buffer{dev: d, size: desc.Size, heap: desc.Heap, buf: buf}
	b.init(d.nextID(), desc.Label, desc.InitialState)
	return b, nil
}

func (d *device) CreateSwapChain(target gpu.SurfaceTarget, desc gpu.SwapChainDescriptor) (gpu.SwapChain, error) {
	if err := d.RemovedReason(); err != nil {
		return nil, err
	}
	sc := &swapChain{
		dev:         d,
		mu:          &sync.Mutex{},
		acquiredMu:  &sync.Mutex{},
		target:      target,
		surface:     d.surface,
		presentMode: desc.PresentMode,
	}
	if err := sc.ResizeBuffers(desc.BufferCount, desc.Width, desc.Height, desc.Format); err != nil {
		return nil, err
	}
	return sc, nil
}

// CheckMultisampleQualityLevels reports one quality level for the sample counts every WebGPU
// implementation supports, 1 and 4, and none otherwise.
func (d *device) CheckMultisampleQualityLevels(format gpu.Format, sampleCount uint32) (uint32, error) {
	if err := d.RemovedReason(); err != nil {
		return 0, err
	}
	if _, err := textureFormat(format); err != nil {
		return 0, errors.Wrap(err, "multisample query")
	}
	if sampleCount == 1 || sampleCount == 4 {
		return 1, nil
	}
	return 0, nil
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

// lose marks the device removed after a WebGPU call failed in a way the frame cannot recover from.
func (d *device) lose(reason error) {
	d.lostOnce.Do(func() {
		d.removedMu.Lock()
		d.removed = errors.Wrap(gpu.ErrDeviceLost, reason.Error())
		d.removedMu.Unlock()
		common.ComponentLogger("wgpu_device").Error("device lost", "reason", reason)
	})
}

func (d *device) Release() {
	d.meshes.Range(func(key, value any) bool {
		value.(*meshBuffers).release()
		d.meshes.Delete(key)
		return true
	})
	d.pipelines.release()
	d.queue.release()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dev != nil {
		d.dev.Release()
		d.dev = nil
	}
	d.releaseInstance()
}

func (d *device) releaseInstance() {
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}
