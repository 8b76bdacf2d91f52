package wgpu_device

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/cenkalti/backoff/v4"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

type resource struct {
	id       uint64
	label    string
	mu       *sync.Mutex
	state    gpu.ResourceState
	released atomic.Bool
}

func (r *resource) init(id uint64, label string, state gpu.ResourceState) {
	r.id = id
	r.label = label
	r.mu = &sync.Mutex{}
	r.state = state
}

func (r *resource) Label() string {
	return r.label
}

func (r *resource) CurrentState() gpu.ResourceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *resource) setState(s gpu.ResourceState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

type stateful interface {
	setState(s gpu.ResourceState)
}

// texture wraps a WebGPU texture. Swap chain buffers carry no texture of their own: their view is
// the surface texture acquired for the current frame.
type texture struct {
	resource
	desc    gpu.TextureDescriptor
	wformat wgpu.TextureFormat
	tex     *wgpu.Texture
	view    *wgpu.TextureView

	chain *swapChain
	refs  atomic.Int32
}

func (t *texture) Width() uint32            { return t.desc.Width }
func (t *texture) Height() uint32           { return t.desc.Height }
func (t *texture) Format() gpu.Format       { return t.desc.Format }
func (t *texture) Sample() gpu.SampleDesc   { return t.desc.Sample }
func (t *texture) Flags() gpu.ResourceFlags { return t.desc.Flags }

// SharedHandle returns a process-local handle. WebGPU cannot export textures to another process,
// so the handle is only meaningful to displays running in-process.
func (t *texture) SharedHandle() (uintptr, error) {
	if t.desc.HeapFlags&gpu.HeapFlagShared == 0 {
		return 0, errors.Wrapf(gpu.ErrNotShared, "texture %q", t.label)
	}
	return uintptr(t.id), nil
}

// textureView returns the view draws and copies use.
func (t *texture) textureView() (*wgpu.TextureView, error) {
	if t.chain != nil {
		return t.chain.acquire()
	}
	if t.released.Load() {
		return nil, errors.Wrapf(gpu.ErrReleased, "texture %q", t.label)
	}
	return t.view, nil
}

func (t *texture) rawTexture() (*wgpu.Texture, error) {
	if t.chain != nil {
		if _, err := t.chain.acquire(); err != nil {
			return nil, err
		}
		return t.chain.acquiredTexture(), nil
	}
	if t.released.Load() {
		return nil, errors.Wrapf(gpu.ErrReleased, "texture %q", t.label)
	}
	return t.tex, nil
}

func (t *texture) Release() {
	if t.chain != nil {
		if t.refs.Add(-1) < 0 {
			t.refs.Store(0)
		}
		return
	}
	if t.released.Swap(true) {
		return
	}
	if t.view != nil {
		t.view.Release()
	}
	if t.tex != nil {
		t.tex.Release()
	}
}

type buffer struct {
	resource
	dev    *device
	size   uint64
	heap   gpu.HeapType
	buf    *wgpu.Buffer
	mapped atomic.Bool
}

func (b *buffer) Size() uint64       { return b.size }
func (b *buffer) Heap() gpu.HeapType { return b.heap }

// Map maps the whole buffer, polling the device until the mapping completes.
func (b *buffer) Map() ([]byte, error) {
	if b.released.Load() {
		return nil, errors.Wrapf(gpu.ErrReleased, "buffer %q", b.label)
	}
	if b.heap == gpu.HeapDefault {
		return nil, errors.Wrapf(gpu.ErrNotMappable, "buffer %q", b.label)
	}
	if b.mapped.Load() {
		return b.buf.GetMappedRange(0, uint(b.size)), nil
	}

	mode := wgpu.MapModeRead
	if b.heap == gpu.HeapUpload {
		mode = wgpu.MapModeWrite
	}
	var (
		done   atomic.Bool
		status wgpu.BufferMapAsyncStatus
	)
	err := b.buf.MapAsync(mode, 0, b.size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		done.Store(true)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "map buffer %q", b.label)
	}

	poll := b.dev.pollBackOff()
	for !done.Load() {
		if err := b.dev.RemovedReason(); err != nil {
			return nil, err
		}
		b.dev.poll(false)
		if done.Load() {
			break
		}
		wait := poll.NextBackOff()
		if wait == backoff.Stop {
			return nil, errors.Wrapf(gpu.ErrDeviceLost, "map buffer %q timed out", b.label)
		}
		sleep(wait)
	}
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, errors.Errorf("map buffer %q: status %d", b.label, status)
	}
	b.mapped.Store(true)
	return b.buf.GetMappedRange(0, uint(b.size)), nil
}

func (b *buffer) Unmap() {
	if b.mapped.Swap(false) {
		_ = b.buf.Unmap()
	}
}

func (b *buffer) Release() {
	if b.released.Swap(true) {
		return
	}
	b.Unmap()
	b.buf.Release()
}
