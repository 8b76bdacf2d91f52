// Package gpu is the explicit-API hardware abstraction the renderer is written against: devices,
// command queues, command allocators and lists, fences, resources with tracked states, descriptor
// heaps and swap chains. Backends live in sub-packages and register themselves with Register.
package gpu

import (
	"context"

	"github.com/Carmen-Shannon/oxy-quilt/common"
)

// Resource is any GPU-owned object with a tracked access state.
type Resource interface {
	// Label returns the debug label the resource was created with.
	Label() string
	// CurrentState returns the state the resource will be in once all submitted work has executed.
	CurrentState() ResourceState
	// Release drops the caller's reference to the resource.
	Release()
}

// Texture is a 2D image resource.
type Texture interface {
	Resource
	Width() uint32
	Height() uint32
	Format() Format
	Sample() SampleDesc
	Flags() ResourceFlags
	// SharedHandle returns a handle another consumer can open the texture by. Only textures created
	// with HeapFlagShared have one.
	SharedHandle() (uintptr, error)
}

// Buffer is a linear memory resource.
type Buffer interface {
	Resource
	Size() uint64
	Heap() HeapType
	// Map returns a CPU view of an upload or readback buffer. Readback contents are only valid after
	// the copy that filled them has completed on the GPU.
	Map() ([]byte, error)
	Unmap()
}

// Fence is a monotonically increasing counter written by the GPU timeline.
type Fence interface {
	// CompletedValue returns the highest value the GPU has reached.
	CompletedValue() uint64
	// Wait blocks until CompletedValue >= value, the context ends, or the device is lost.
	//
	// Returns:
	//   - error: nil on completion, the context error on cancellation, ErrDeviceLost on removal
	Wait(ctx context.Context, value uint64) error
	Release()
}

// CommandQueue executes command lists in submission order.
type CommandQueue interface {
	// ExecuteCommandLists submits closed command lists. The lists may be reset and re-recorded as
	// soon as this returns; their allocators may not be reset until the work completes.
	ExecuteCommandLists(lists ...CommandList) error
	// Signal asks the GPU to set the fence to value once all previously submitted work completes.
	Signal(fence Fence, value uint64) error
}

// CommandAllocator owns the memory backing recorded commands.
type CommandAllocator interface {
	// Reset reclaims the allocator. It fails with ErrAllocatorInUse while any command list
	// recorded from it is still executing.
	Reset() error
	Release()
}

// CommandList records GPU work. Lists are created closed; Reset opens one for recording and Close
// finishes it. Recording methods do not return errors: the first recording error is reported by
// Close and the list cannot be submitted.
type CommandList interface {
	Reset(alloc CommandAllocator) error
	Close() error

	ResourceBarrier(res Resource, before, after ResourceState)
	ClearRenderTarget(rtv Descriptor, color common.Color)
	ClearDepthStencil(dsv Descriptor, depth float32, stencil uint8)
	// SetRenderTargets binds a render-target view and an optional depth-stencil view. Pass the
	// zero Descriptor for no depth.
	SetRenderTargets(rtv Descriptor, dsv Descriptor)
	SetViewport(vp common.Viewport)
	SetScissorRect(r common.Rect)
	Draw(item DrawItem)
	// Blit draws src, a shader-resource view in a shader-visible heap, scaled over the current viewport.
	Blit(src Descriptor)
	Resolve(dst, src Texture, format Format)
	CopyTextureToBuffer(dst Buffer, src Texture, footprint Footprint)

	Release()
}

// SwapChain owns the presentable back buffers of a window surface.
type SwapChain interface {
	BufferCount() int
	Format() Format
	Width() uint32
	Height() uint32
	CurrentBackBufferIndex() int
	// Buffer returns a new reference to back buffer i. Every reference must be released before
	// ResizeBuffers is called.
	Buffer(i int) (Texture, error)
	ResizeBuffers(count int, width, height uint32, format Format) error
	Present(syncInterval int) error
	Release()
}

// SurfaceTarget is the window side of a swap chain. Backends type-assert it for the narrower
// capabilities they need.
type SurfaceTarget interface {
	FramebufferSize() (width, height int)
}

// AdapterInfo describes the adapter a device was opened on.
type AdapterInfo struct {
	Name    string
	Kind    AdapterKind
	Backend string
}

// Device creates resources and exposes the single direct command queue.
type Device interface {
	Info() AdapterInfo
	Queue() CommandQueue

	CreateFence(initial uint64) (Fence, error)
	CreateCommandAllocator() (CommandAllocator, error)
	// CreateCommandList returns a closed list associated with alloc.
	CreateCommandList(alloc CommandAllocator) (CommandList, error)
	CreateTexture(desc TextureDescriptor) (Texture, error)
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreateSwapChain(target SurfaceTarget, desc SwapChainDescriptor) (SwapChain, error)

	// CheckMultisampleQualityLevels returns the number of quality levels for format at sampleCount;
	// zero means the combination is unsupported.
	CheckMultisampleQualityLevels(format Format, sampleCount uint32) (uint32, error)
	// CopyableFootprint returns the buffer layout for copying tex into a readback buffer.
	CopyableFootprint(tex Texture) Footprint
	MaxTextureDimension() uint32
	// RemovedReason returns nil while the device is healthy and an error wrapping ErrDeviceLost after.
	RemovedReason() error
	Release()
}
