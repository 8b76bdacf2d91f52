package wgpu_device

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// swapChain maps the explicit back-buffer model onto a WebGPU surface. Each back buffer is a proxy
// whose view is the surface texture acquired the first time submitted work touches it; Present
// hands that texture back to the surface. Without a surface the buffers are plain textures.
type swapChain struct {
	dev         *device
	mu          *sync.Mutex
	target      gpu.SurfaceTarget
	surface     *wgpu.Surface
	presentMode gpu.PresentMode

	format  gpu.Format
	wformat wgpu.TextureFormat
	width   uint32
	height  uint32
	buffers []*texture
	index   int

	acquiredMu   *sync.Mutex
	acquired     *wgpu.Texture
	acquiredView *wgpu.TextureView
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

// ResizeBuffers reconfigures the surface. A zero count, extent or format keeps the current value;
// a zero extent on first use falls back to the surface size. When the surface cannot present the
// requested format it presents its preferred format instead and Format keeps reporting the request.
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
	wf, err := textureFormat(format)
	if err != nil {
		return err
	}

	desc := gpu.TextureDescriptor{
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

	s.releaseAcquired()
	s.releaseBuffers()
	if s.surface != nil {
		wf = s.configure(wf, width, height)
	}

	buffers := make([]*texture, count)
	for i := range buffers {
		d := desc
		d.Label = fmt.Sprintf("back buffer %d", i)
		if s.surface == nil {
			t, err := s.dev.CreateTexture(d)
			if err != nil {
				s.releaseBuffers()
				return err
			}
			buffers[i] = t.(*texture)
			continue
		}
		t := &texture{desc: d, wformat: wf, chain: s}
		t.init(s.dev.nextID(), d.Label, d.InitialState)
		buffers[i] = t
	}

	s.buffers = buffers
	s.width, s.height, s.format, s.wformat = width, height, format, wf
	s.index = 0
	return nil
}

// configure applies the surface configuration and returns the format the surface presents in.
func (s *swapChain) configure(want wgpu.TextureFormat, width, height uint32) wgpu.TextureFormat {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	caps := s.surface.GetCapabilities(d.adapter)
	format := want
	if !slices.Contains(caps.Formats, want) && len(caps.Formats) > 0 {
		format = caps.Formats[0]
	}
	mode := wgpu.PresentModeFifo
	if s.presentMode == gpu.PresentModeUncapped && slices.Contains(caps.PresentModes, wgpu.PresentModeImmediate) {
		mode = wgpu.PresentModeImmediate
	}
	alpha := wgpu.CompositeAlphaModeAuto
	if len(caps.AlphaModes) > 0 {
		alpha = caps.AlphaModes[0]
	}
	s.surface.Configure(d.adapter, d.dev, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       width,
		Height:      height,
		PresentMode: mode,
		AlphaMode:   alpha,
	})
	return format
}

// acquire returns the view of the surface texture for the current frame.
func (s *swapChain) acquire() (*wgpu.TextureView, error) {
	s.acquiredMu.Lock()
	defer s.acquiredMu.Unlock()
	if s.acquiredView != nil {
		return s.acquiredView, nil
	}
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, errors.Wrap(err, "acquire surface texture")
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, errors.Wrap(err, "create surface texture view")
	}
	s.acquired, s.acquiredView = tex, view
	return view, nil
}

func (s *swapChain) acquiredTexture() *wgpu.Texture {
	s.acquiredMu.Lock()
	defer s.acquiredMu.Unlock()
	return s.acquired
}

func (s *swapChain) releaseAcquired() {
	s.acquiredMu.Lock()
	defer s.acquiredMu.Unlock()
	if s.acquiredView != nil {
		s.acquiredView.Release()
		s.acquiredView = nil
	}
	if s.acquired != nil {
		s.acquired.Release()
		s.acquired = nil
	}
}

func (s *swapChain) releaseBuffers() {
	for _, b := range s.buffers {
		if b != nil && b.chain == nil {
			b.Release()
		}
	}
	s.buffers = nil
}

// Present hands the acquired surface texture to the display. The present mode is fixed when the
// surface is configured, so syncInterval only has to agree with it.
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
	if s.surface != nil && s.acquiredTexture() != nil {
		s.dev.mu.Lock()
		s.surface.Present()
		s.dev.mu.Unlock()
		s.releaseAcquired()
	}
	s.index = (s.index + 1) % len(s.buffers)
	return nil
}

func (s *swapChain) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseAcquired()
	s.releaseBuffers()
}
