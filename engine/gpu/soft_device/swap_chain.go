package soft_device

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/pkg/errors"
)

type swapChain struct {
	dev         *device
	mu          *sync.Mutex
	target      gpu.SurfaceTarget
	sink        PresentSink
	presentMode gpu.PresentMode

	format  gpu.Format
	width   uint32
	height  uint32
	buffers []*texture
	index   int
}

var _ gpu.SwapChain = (*swapChain)(nil)

func (s *swapChain) BufferCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffers)
}

func (s *swapChain) Format() gpu.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *swapChain) Width() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

func (s *swapChain) Height() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

func (s *swapChain) CurrentBackBufferIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *swapChain) Buffer(i int) (gpu.Texture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.buffers) {
		return nil, errors.Errorf("swap chain buffer %d out of range [0,%d)", i, len(s.buffers))
	}
	b := s.buffers[i]
	b.refs.Add(1)
	return b, nil
}

// ResizeBuffers reallocates every back buffer. A zero count, extent or format keeps the current
// value; a zero extent on first use falls back to the surface size.
func (s *swapChain) ResizeBuffers(count int, width, height uint32, format gpu.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dev.RemovedReason(); err != nil {
		return err
	}
	for i, b := range s.buffers {
		if n := b.refs.Load(); n > 0 {
			return errors.Wrapf(gpu.ErrBuffersInUse, "buffer %d has %d references", i, n)
		}
	}

	if count <= 0 {
		count = len(s.buffers)
	}
	if count < 2 {
		return errors.Wrapf(gpu.ErrInvalidDescriptor, "swap chain needs at least 2 buffers, got %d", count)
	}
	if (width == 0 || height == 0) && s.target != nil {
		w, h := s.target.FramebufferSize()
		width, height = uint32(w), uint32(h)
	}
	if width == 0 {
		width = s.width
	}
	if height == 0 {
		height = s.height
	}
	if format == gpu.FormatUnknown {
		format = s.format
	}
	if !format.IsColor() {
		return errors.Wrapf(gpu.ErrUnsupported, "swap chain format %s", format)
	}

	buffers := make([]*texture, count)
	for i := range buffers {
		desc := gpu.TextureDescriptor{
			Label:        fmt.Sprintf("back buffer %d", i),
			Width:        width,
			Height:       height,
			Format:       format,
			Sample:       gpu.SingleSample,
			Flags:        gpu.FlagAllowRenderTarget,
			InitialState: gpu.StatePresent,
		}
		if err := desc.Validate(s.dev.maxDim); err != nil {
			return err
		}
		t := newTexture(s.dev.nextID(), desc)
		t.chain = s
		buffers[i] = t
	}

	s.buffers = buffers
	s.width, s.height, s.format = width, height, format
	s.index = 0
	return nil
}

// Present queues the current back buffer for display. The buffer must have been transitioned back
// to the present state by submitted work.
func (s *swapChain) Present(syncInterval int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffers) == 0 {
		return errors.New("present on swap chain without buffers")
	}
	b := s.buffers[s.index]
	if st := b.CurrentState(); st != gpu.StatePresent {
		return errors.Wrapf(gpu.ErrInvalidState, "present: %q is %s", b.label, st)
	}
	if err := s.dev.queue.present(b, s.sink); err != nil {
		return err
	}
	s.index = (s.index + 1) % len(s.buffers)
	return nil
}

func (s *swapChain) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffers = nil
}
