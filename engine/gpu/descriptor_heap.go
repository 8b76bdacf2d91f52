package gpu

import (
	"sync"

	"github.com/pkg/errors"
)

// DescriptorHeapType is the kind of view a heap holds.
type DescriptorHeapType int

const (
	HeapTypeRTV DescriptorHeapType = iota
	HeapTypeDSV
	HeapTypeCBVSRVUAV
)

func (t DescriptorHeapType) String() string {
	switch t {
	case HeapTypeRTV:
		return "RTV"
	case HeapTypeDSV:
		return "DSV"
	default:
		return "CBV_SRV_UAV"
	}
}

// ViewDesc describes the view stored in one heap slot.
type ViewDesc struct {
	Label   string
	Format  Format
	Width   uint32
	Height  uint32
	Samples SampleDesc
}

type heapEntry struct {
	tex  Texture
	view ViewDesc
	gen  uint64
}

// DescriptorHeap is a fixed-capacity table of views of one type. RTV and DSV heaps are never
// shader-visible; shader-resource views must live in a shader-visible heap before a shader can
// read them.
type DescriptorHeap struct {
	mu            *sync.Mutex
	kind          DescriptorHeapType
	shaderVisible bool
	entries       []heapEntry
	gen           uint64
}

// Descriptor is a handle to a slot of a DescriptorHeap. The zero value refers to nothing.
type Descriptor struct {
	heap *DescriptorHeap
	slot int
	gen  uint64
}

// NewDescriptorHeap creates a heap with capacity slots.
//
// Parameters:
//   - kind: the view type the heap stores
//   - capacity: number of slots, at least 1
//   - shaderVisible: whether shaders may index the heap; only valid for CBV_SRV_UAV heaps
//
// Returns:
//   - *DescriptorHeap: the heap
//   - error: ErrShaderVisibleHeap for a shader-visible RTV/DSV heap, ErrHeapFull for zero capacity
func NewDescriptorHeap(kind DescriptorHeapType, capacity int, shaderVisible bool) (*DescriptorHeap, error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(ErrHeapFull, "%s heap capacity %d", kind, capacity)
	}
	if shaderVisible && kind != HeapTypeCBVSRVUAV {
		return nil, errors.Wrapf(ErrShaderVisibleHeap, "%s heaps cannot be shader visible", kind)
	}
	return &DescriptorHeap{
		mu:            &sync.Mutex{},
		kind:          kind,
		shaderVisible: shaderVisible,
		entries:       make([]heapEntry, capacity),
	}, nil
}

func (h *DescriptorHeap) Type() DescriptorHeapType { return h.kind }
func (h *DescriptorHeap) Capacity() int            { return len(h.entries) }
func (h *DescriptorHeap) ShaderVisible() bool      { return h.shaderVisible }

// CreateRenderTargetView writes a render-target view of tex into slot.
func (h *DescriptorHeap) CreateRenderTargetView(slot int, tex Texture) (Descriptor, error) {
	if h.kind != HeapTypeRTV {
		return Descriptor{}, errors.Wrapf(ErrHeapType, "render target view in %s heap", h.kind)
	}
	if tex.Flags()&FlagAllowRenderTarget == 0 {
		return Descriptor{}, errors.Wrapf(ErrInvalidDescriptor, "texture %q does not allow render targets", tex.Label())
	}
	return h.write(slot, tex, tex.Format())
}

// CreateDepthStencilView writes a depth-stencil view of tex into slot using format, which may
// differ from a typeless resource format.
func (h *DescriptorHeap) CreateDepthStencilView(slot int, tex Texture, format Format) (Descriptor, error) {
	if h.kind != HeapTypeDSV {
		return Descriptor{}, errors.Wrapf(ErrHeapType, "depth stencil view in %s heap", h.kind)
	}
	if tex.Flags()&FlagAllowDepthStencil == 0 {
		return Descriptor{}, errors.Wrapf(ErrInvalidDescriptor, "texture %q does not allow depth stencil", tex.Label())
	}
	if format.ResourceFormat() != tex.Format() && format != tex.Format() {
		return Descriptor{}, errors.Wrapf(ErrInvalidDescriptor, "view format %s incompatible with %s", format, tex.Format())
	}
	return h.write(slot, tex, format)
}

// CreateShaderResourceView writes a shader-resource view of tex into slot.
func (h *DescriptorHeap) CreateShaderResourceView(slot int, tex Texture) (Descriptor, error) {
	if h.kind != HeapTypeCBVSRVUAV {
		return Descriptor{}, errors.Wrapf(ErrHeapType, "shader resource view in %s heap", h.kind)
	}
	if tex.Flags()&FlagDenyShaderResource != 0 {
		return Descriptor{}, errors.Wrapf(ErrInvalidDescriptor, "texture %q denies shader resource", tex.Label())
	}
	return h.write(slot, tex, tex.Format().ViewFormat())
}

func (h *DescriptorHeap) write(slot int, tex Texture, format Format) (Descriptor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if slot < 0 || slot >= len(h.entries) {
		return Descriptor{}, errors.Wrapf(ErrHeapFull, "slot %d of %d in %s heap", slot, len(h.entries), h.kind)
	}
	h.gen++
	h.entries[slot] = heapEntry{
		tex: tex,
		view: ViewDesc{
			Label:   tex.Label(),
			Format:  format,
			Width:   tex.Width(),
			Height:  tex.Height(),
			Samples: tex.Sample(),
		},
		gen: h.gen,
	}
	return Descriptor{heap: h, slot: slot, gen: h.gen}, nil
}

// Handle returns a descriptor for whatever view currently occupies slot.
func (h *DescriptorHeap) Handle(slot int) Descriptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	if slot < 0 || slot >= len(h.entries) || h.entries[slot].tex == nil {
		return Descriptor{}
	}
	return Descriptor{heap: h, slot: slot, gen: h.entries[slot].gen}
}

// Clear empties slot. Descriptors to it become stale.
func (h *DescriptorHeap) Clear(slot int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if slot >= 0 && slot < len(h.entries) {
		h.entries[slot] = heapEntry{}
	}
}

// ClearAll empties every slot.
func (h *DescriptorHeap) ClearAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.entries {
		h.entries[i] = heapEntry{}
	}
}

// Snapshot returns the view description of every slot, in slot order. Empty slots are zero.
func (h *DescriptorHeap) Snapshot() []ViewDesc {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ViewDesc, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.view
	}
	return out
}

// IsZero reports whether d refers to no heap.
func (d Descriptor) IsZero() bool { return d.heap == nil }

// Heap returns the heap d points into.
func (d Descriptor) Heap() *DescriptorHeap { return d.heap }

// Slot returns d's index within its heap.
func (d Descriptor) Slot() int { return d.slot }

// Resolve returns the texture and view d refers to.
//
// Returns:
//   - Texture: the viewed texture
//   - ViewDesc: the view description
//   - error: ErrStaleDescriptor if the slot has been cleared or overwritten since d was made
func (d Descriptor) Resolve() (Texture, ViewDesc, error) {
	if d.heap == nil {
		return nil, ViewDesc{}, errors.Wrap(ErrStaleDescriptor, "zero descriptor")
	}
	d.heap.mu.Lock()
	defer d.heap.mu.Unlock()
	e := d.heap.entries[d.slot]
	if e.tex == nil || e.gen != d.gen {
		return nil, ViewDesc{}, errors.Wrapf(ErrStaleDescriptor, "%s heap slot %d", d.heap.kind, d.slot)
	}
	return e.tex, e.view, nil
}
