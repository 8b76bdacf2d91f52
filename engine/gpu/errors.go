package gpu

import "github.com/pkg/errors"

var (
	// ErrDeviceLost is returned once the device has been removed or reset; every later operation fails with it.
	ErrDeviceLost = errors.New("gpu: device lost")
	// ErrNoAdapter is returned when every adapter attempt failed.
	ErrNoAdapter = errors.New("gpu: no usable adapter")
	// ErrUnsupported marks a format, sample count, or feature the device cannot provide.
	ErrUnsupported = errors.New("gpu: unsupported")
	// ErrInvalidDescriptor marks a resource descriptor that fails validation.
	ErrInvalidDescriptor = errors.New("gpu: invalid descriptor")

	ErrAllocatorInUse    = errors.New("gpu: command allocator reset while its commands are in flight")
	ErrListClosed        = errors.New("gpu: command list is closed")
	ErrListOpen          = errors.New("gpu: command list is still recording")
	ErrInvalidTransition = errors.New("gpu: invalid resource state transition")
	ErrInvalidState      = errors.New("gpu: resource used in wrong state")
	ErrNoRenderTarget    = errors.New("gpu: no render target bound")
	ErrNoViewport        = errors.New("gpu: no viewport set")

	ErrHeapFull          = errors.New("gpu: descriptor heap slot out of range")
	ErrHeapType          = errors.New("gpu: view kind does not match descriptor heap type")
	ErrShaderVisibleHeap = errors.New("gpu: descriptor heap shader visibility mismatch")
	ErrStaleDescriptor   = errors.New("gpu: descriptor does not reference a live view")

	ErrBuffersInUse = errors.New("gpu: swap chain buffers are still referenced")
	ErrNotMappable  = errors.New("gpu: buffer heap is not CPU mappable")
	ErrNotShared    = errors.New("gpu: texture was not created with a shared heap")
	ErrReleased     = errors.New("gpu: resource already released")
)
