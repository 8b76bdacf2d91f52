package soft_device

import (
	"image"
	"math"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
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

// stateful lets the queue commit barrier results onto any resource type.
type stateful interface {
	setState(s gpu.ResourceState)
}

// texture stores color as RGBA8 regardless of its declared channel order; multisampled textures
// are stored at one sample per pixel.
type texture struct {
	resource
	desc    gpu.TextureDescriptor
	pix     []byte
	depth   []float32
	stencil []uint8

	chain *swapChain
	refs  atomic.Int32
}

func newTexture(id uint64, desc gpu.TextureDescriptor) *texture {
	t := &texture{desc: desc}
	t.init(id, desc.Label, desc.InitialState)

	n := int(desc.Width) * int(desc.Height)
	if desc.Format.IsDepth() {
		t.depth = make([]float32, n)
		t.stencil = make([]uint8, n)
		clearDepth := float32(1)
		if desc.Clear != nil {
			clearDepth = desc.Clear.Depth
		}
		for i := range t.depth {
			t.depth[i] = clearDepth
		}
	} else {
		t.pix = make([]byte, n*4)
	}
	return t
}

func (t *texture) Width() uint32           { return t.desc.Width }
func (t *texture) Height() uint32          { return t.desc.Height }
func (t *texture) Format() gpu.Format      { return t.desc.Format }
func (t *texture) Sample() gpu.SampleDesc  { return t.desc.Sample }
func (t *texture) Flags() gpu.ResourceFlags { return t.desc.Flags }

func (t *texture) SharedHandle() (uintptr, error) {
	if t.desc.HeapFlags&gpu.HeapFlagShared == 0 {
		return 0, errors.Wrapf(gpu.ErrNotShared, "texture %q", t.label)
	}
	return uintptr(t.id), nil
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
	t.pix, t.depth, t.stencil = nil, nil, nil
}

func (t *texture) bounds() image.Rectangle {
	return image.Rect(0, 0, int(t.desc.Width), int(t.desc.Height))
}

// rgba wraps the color storage without copying.
func (t *texture) rgba() *image.RGBA {
	return &image.RGBA{Pix: t.pix, Stride: int(t.desc.Width) * 4, Rect: t.bounds()}
}

func (t *texture) clearColor(c common.Color) {
	px := c.RGBA8()
	for i := 0; i+3 < len(t.pix); i += 4 {
		t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3] = px[0], px[1], px[2], px[3]
	}
}

func (t *texture) clearDepthStencil(depth float32, stencil uint8) {
	depth = float32(math.Max(0, math.Min(1, float64(depth))))
	for i := range t.depth {
		t.depth[i] = depth
		t.stencil[i] = stencil
	}
}

// snapshot copies the color storage into a new image.
func (t *texture) snapshot() *image.RGBA {
	img := image.NewRGBA(t.bounds())
	copy(img.Pix, t.pix)
	return img
}

type buffer struct {
	resource
	size   uint64
	heap   gpu.HeapType
	data   []byte
	mapped atomic.Bool
}

func (b *buffer) Size() uint64       { return b.size }
func (b *buffer) Heap() gpu.HeapType { return b.heap }

func (b *buffer) Map() ([]byte, error) {
	if b.released.Load() {
		return nil, errors.Wrapf(gpu.ErrReleased, "buffer %q", b.label)
	}
	if b.heap == gpu.HeapDefault {
		return nil, errors.Wrapf(gpu.ErrNotMappable, "buffer %q", b.label)
	}
	b.mapped.Store(true)
	return b.data, nil
}

func (b *buffer) Unmap() {
	b.mapped.Store(false)
}

func (b *buffer) Release() {
	if b.released.Swap(true) {
		return
	}
	b.data = nil
}
