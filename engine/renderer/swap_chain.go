package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/pkg/errors"
)

// SwapChainState is the resize state machine's state.
type SwapChainState int

const (
	SwapChainUninitialized SwapChainState = iota
	SwapChainReady
	SwapChainResizing
	// SwapChainFailed means a resize failed after the old targets were released. The swap chain
	// still exists and another Resize may rebuild the targets.
	SwapChainFailed
)

func (s SwapChainState) String() string {
	switch s {
	case SwapChainReady:
		return "ready"
	case SwapChainResizing:
		return "resizing"
	case SwapChainFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// SwapChainConfig holds the swap chain settings fixed at creation.
type SwapChainConfig struct {
	BufferCount        int
	BackBufferFormat   gpu.Format
	DepthStencilFormat gpu.Format
	MSAA               bool
	SampleCount        MSAASampleCount
	PresentMode        gpu.PresentMode
}

// DefaultSwapChainConfig returns double-buffered RGBA8 with D24S8 depth and 4x MSAA available but off.
func DefaultSwapChainConfig() SwapChainConfig {
	return SwapChainConfig{
		BufferCount:        2,
		BackBufferFormat:   gpu.FormatRGBA8Unorm,
		DepthStencilFormat: gpu.FormatD24UnormS8Uint,
		SampleCount:        MSAA4x,
		PresentMode:        gpu.PresentModeVSync,
	}
}

type qualityKey struct {
	format gpu.Format
	count  uint32
}

// SwapChainManager owns the swap chain, its render-target views, the main depth buffer and the
// optional multisampled color target, and rebuilds them all on every resize.
type SwapChainManager struct {
	mu     *sync.Mutex
	device gpu.Device
	fence  *FrameFence
	alloc  gpu.CommandAllocator
	list   gpu.CommandList
	cfg    SwapChainConfig

	state   SwapChainState
	chain   gpu.SwapChain
	width   uint32
	height  uint32
	quality map[qualityKey]uint32

	buffers   []gpu.Texture
	depth     gpu.Texture
	msaaColor gpu.Texture
	rtvHeap   *gpu.DescriptorHeap
	dsvHeap   *gpu.DescriptorHeap
	viewport  common.Viewport
	scissor   common.Rect
}

// NewSwapChainManager creates a manager in the Uninitialized state. The allocator and list are
// shared with the frame loop; the manager only uses them between flushes.
//
// Parameters:
//   - device: the device to create resources on
//   - fence: the frame fence used to drain the GPU around a resize
//   - alloc: the command allocator for the depth transition
//   - list: the command list for the depth transition
//   - cfg: swap chain settings
//
// Returns:
//   - *SwapChainManager: the manager
func NewSwapChainManager(device gpu.Device, fence *FrameFence, alloc gpu.CommandAllocator, list gpu.CommandList, cfg SwapChainConfig) *SwapChainManager {
	if cfg.BufferCount < 2 {
		cfg.BufferCount = 2
	}
	if cfg.SampleCount < MSAA4x {
		cfg.SampleCount = MSAA4x
	}
	return &SwapChainManager{
		mu:      &sync.Mutex{},
		device:  device,
		fence:   fence,
		alloc:   alloc,
		list:    list,
		cfg:     cfg,
		quality: make(map[qualityKey]uint32),
	}
}

// Create builds the swap chain for target and runs the first resize.
//
// Parameters:
//   - target: the window surface
//   - width, height: the initial client size; clamped to at least 1
//
// Returns:
//   - error: ErrFeatureQuery if multisample support cannot be determined, or the device error
func (m *SwapChainManager) Create(target gpu.SurfaceTarget, width, height int) error {
	m.mu.Lock()
	if m.state != SwapChainUninitialized {
		m.mu.Unlock()
		return errors.New("swap chain already created")
	}
	if _, err := m.queryQuality(m.cfg.BackBufferFormat); err != nil {
		m.mu.Unlock()
		return err
	}

	w, h := clampExtent(width, height)
	chain, err := m.device.CreateSwapChain(target, gpu.SwapChainDescriptor{
		Width:       w,
		Height:      h,
		Format:      m.cfg.BackBufferFormat,
		BufferCount: m.cfg.BufferCount,
		PresentMode: m.cfg.PresentMode,
	})
	if err != nil {
		m.mu.Unlock()
		return errors.Wrap(err, "create swap chain")
	}
	m.chain = chain

	if m.rtvHeap, err = gpu.NewDescriptorHeap(gpu.HeapTypeRTV, m.cfg.BufferCount+1, false); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.dsvHeap, err = gpu.NewDescriptorHeap(gpu.HeapTypeDSV, 1, false); err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = SwapChainReady
	m.mu.Unlock()

	return m.Resize(width, height)
}

func clampExtent(width, height int) (uint32, uint32) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return uint32(width), uint32(height)
}

// queryQuality returns the quality level count for the configured sample count, querying the
// device on a cache miss. Caller holds m.mu.
func (m *SwapChainManager) queryQuality(format gpu.Format) (uint32, error) {
	key := qualityKey{format: format, count: uint32(m.cfg.SampleCount)}
	if levels, ok := m.quality[key]; ok {
		return levels, nil
	}
	levels, err := m.device.CheckMultisampleQualityLevels(format, key.count)
	if err != nil {
		return 0, errors.Wrapf(ErrFeatureQuery, "%dx %s: %v", key.count, format, err)
	}
	if levels == 0 {
		return 0, errors.Wrapf(ErrFeatureQuery, "%dx %s reports no quality levels", key.count, format)
	}
	m.quality[key] = levels
	return levels, nil
}

// sampleDesc returns the sample description render targets use right now. Caller holds m.mu.
func (m *SwapChainManager) sampleDesc() (gpu.SampleDesc, error) {
	if !m.cfg.MSAA {
		return gpu.SingleSample, nil
	}
	levels, err := m.queryQuality(m.cfg.BackBufferFormat)
	if err != nil {
		return gpu.SampleDesc{}, err
	}
	return gpu.SampleDesc{Count: uint32(m.cfg.SampleCount), Quality: levels - 1}, nil
}

// Resize drains the GPU, releases every size-dependent resource, resizes the swap chain and
// recreates views, depth buffer and MSAA target at the new size. Degenerate sizes are clamped to
// 1x1. Calling it with the current size runs the full path and produces identical views.
//
// Parameters:
//   - width, height: the new client size
//
// Returns:
//   - error: any failure here is fatal to the frame loop. A failed flush leaves the state as it
//     was; later failures release what was built and leave SwapChainFailed.
func (m *SwapChainManager) Resize(width, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == SwapChainUninitialized {
		return errors.Wrap(ErrNotCreated, "resize swap chain")
	}
	prev := m.state
	m.state = SwapChainResizing
	w, h := clampExtent(width, height)

	if err := m.fence.Flush(); err != nil {
		m.state = prev
		return errors.Wrap(err, "flush before resize")
	}

	sample, err := m.rebuild(w, h)
	if err != nil {
		m.releaseTargets()
		m.state = SwapChainFailed
		return err
	}

	m.width, m.height = w, h
	m.viewport = common.Viewport{Width: float32(w), Height: float32(h), MinDepth: 0, MaxDepth: 1}
	m.scissor = common.Rect{Right: int(w), Bottom: int(h)}
	m.state = SwapChainReady

	common.ComponentLogger("renderer").Info("swap chain resized",
		"width", w, "height", h, "msaa", m.cfg.MSAA, "samples", sample.Count, "quality", sample.Quality)
	return nil
}

// rebuild releases the size-dependent targets and recreates them at w by h, ending with the depth
// transition submitted and flushed. Caller holds m.mu.
func (m *SwapChainManager) rebuild(w, h uint32) (gpu.SampleDesc, error) {
	m.releaseTargets()

	if err := m.chain.ResizeBuffers(m.cfg.BufferCount, w, h, m.cfg.BackBufferFormat); err != nil {
		return gpu.SampleDesc{}, errors.Wrap(err, "resize buffers")
	}

	m.buffers = make([]gpu.Texture, m.cfg.BufferCount)
	for i := range m.buffers {
		buf, err := m.chain.Buffer(i)
		if err != nil {
			return gpu.SampleDesc{}, errors.Wrapf(err, "get back buffer %d", i)
		}
		m.buffers[i] = buf
		if _, err := m.rtvHeap.CreateRenderTargetView(i, buf); err != nil {
			return gpu.SampleDesc{}, err
		}
	}

	sample, err := m.sampleDesc()
	if err != nil {
		return gpu.SampleDesc{}, err
	}
	if m.cfg.MSAA {
		m.msaaColor, err = m.device.CreateTexture(gpu.TextureDescriptor{
			Label:        "msaa color",
			Width:        w,
			Height:       h,
			Format:       m.cfg.BackBufferFormat,
			Sample:       sample,
			Flags:        gpu.FlagAllowRenderTarget,
			InitialState: gpu.StateResolveSource,
			Clear:        &gpu.ClearValue{Format: m.cfg.BackBufferFormat, Color: common.ColorBlack},
		})
		if err != nil {
			return gpu.SampleDesc{}, errors.Wrap(err, "create msaa color target")
		}
		if _, err := m.rtvHeap.CreateRenderTargetView(m.cfg.BufferCount, m.msaaColor); err != nil {
			return gpu.SampleDesc{}, err
		}
	}

	m.depth, err = m.device.CreateTexture(gpu.TextureDescriptor{
		Label:        "depth stencil",
		Width:        w,
		Height:       h,
		Format:       m.cfg.DepthStencilFormat.ResourceFormat(),
		Sample:       sample,
		Flags:        gpu.FlagAllowDepthStencil,
		InitialState: gpu.StateCommon,
		Clear:        &gpu.ClearValue{Format: m.cfg.DepthStencilFormat, Depth: 1, Stencil: 0},
	})
	if err != nil {
		return gpu.SampleDesc{}, errors.Wrap(err, "create depth stencil")
	}
	if _, err := m.dsvHeap.CreateDepthStencilView(0, m.depth, m.cfg.DepthStencilFormat); err != nil {
		return gpu.SampleDesc{}, err
	}

	if err := m.alloc.Reset(); err != nil {
		return gpu.SampleDesc{}, errors.Wrap(err, "reset allocator for resize")
	}
	if err := m.list.Reset(m.alloc); err != nil {
		return gpu.SampleDesc{}, errors.Wrap(err, "reset command list for resize")
	}
	m.list.ResourceBarrier(m.depth, gpu.StateCommon, gpu.StateDepthWrite)
	if err := m.list.Close(); err != nil {
		return gpu.SampleDesc{}, errors.Wrap(err, "close resize command list")
	}
	if err := m.device.Queue().ExecuteCommandLists(m.list); err != nil {
		return gpu.SampleDesc{}, errors.Wrap(err, "submit resize command list")
	}
	if err := m.fence.Flush(); err != nil {
		return gpu.SampleDesc{}, errors.Wrap(err, "flush after resize")
	}
	return sample, nil
}

// releaseTargets drops every size-dependent resource and clears their views. Caller holds m.mu.
func (m *SwapChainManager) releaseTargets() {
	for _, b := range m.buffers {
		if b != nil {
			b.Release()
		}
	}
	m.buffers = nil
	if m.msaaColor != nil {
		m.msaaColor.Release()
		m.msaaColor = nil
	}
	if m.depth != nil {
		m.depth.Release()
		m.depth = nil
	}
	if m.rtvHeap != nil {
		m.rtvHeap.ClearAll()
	}
	if m.dsvHeap != nil {
		m.dsvHeap.ClearAll()
	}
}

// SetMSAA switches multisampling and rebuilds the targets at the current size.
func (m *SwapChainManager) SetMSAA(enabled bool) error {
	m.mu.Lock()
	if m.cfg.MSAA == enabled {
		m.mu.Unlock()
		return nil
	}
	m.cfg.MSAA = enabled
	ready := m.state != SwapChainUninitialized
	w, h := int(m.width), int(m.height)
	m.mu.Unlock()

	if !ready {
		return nil
	}
	if err := m.Resize(w, h); err != nil {
		m.mu.Lock()
		m.cfg.MSAA = !enabled
		m.mu.Unlock()
		return err
	}
	return nil
}

// SetBackBufferFormat changes the back buffer format, re-queries multisample support for it and
// rebuilds the targets.
func (m *SwapChainManager) SetBackBufferFormat(format gpu.Format) error {
	m.mu.Lock()
	if !format.IsColor() {
		m.mu.Unlock()
		return errors.Wrapf(gpu.ErrUnsupported, "back buffer format %s", format)
	}
	if _, err := m.queryQuality(format); err != nil {
		m.mu.Unlock()
		return err
	}
	prev := m.cfg.BackBufferFormat
	m.cfg.BackBufferFormat = format
	ready := m.state != SwapChainUninitialized
	w, h := int(m.width), int(m.height)
	m.mu.Unlock()

	if !ready {
		return nil
	}
	if err := m.Resize(w, h); err != nil {
		m.mu.Lock()
		m.cfg.BackBufferFormat = prev
		m.mu.Unlock()
		return err
	}
	return nil
}

// Present presents the current back buffer with the configured sync interval.
func (m *SwapChainManager) Present() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != SwapChainReady {
		return errors.Wrapf(ErrNotCreated, "present in state %s", m.state)
	}
	if err := m.chain.Present(m.cfg.PresentMode.SyncInterval()); err != nil {
		return errors.Wrap(err, "present")
	}
	return nil
}

// CurrentBackBuffer returns the back buffer the next frame renders into.
func (m *SwapChainManager) CurrentBackBuffer() gpu.Texture {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.buffers) == 0 {
		return nil
	}
	return m.buffers[m.chain.CurrentBackBufferIndex()]
}

// CurrentRTV returns the render-target view of the current back buffer.
func (m *SwapChainManager) CurrentRTV() gpu.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chain == nil {
		return gpu.Descriptor{}
	}
	return m.rtvHeap.Handle(m.chain.CurrentBackBufferIndex())
}

// ColorTarget returns the texture frames draw into: the MSAA target when multisampling, otherwise
// the current back buffer.
func (m *SwapChainManager) ColorTarget() gpu.Texture {
	m.mu.Lock()
	msaa := m.msaaColor
	m.mu.Unlock()
	if msaa != nil {
		return msaa
	}
	return m.CurrentBackBuffer()
}

// ColorRTV returns the render-target view of ColorTarget.
func (m *SwapChainManager) ColorRTV() gpu.Descriptor {
	m.mu.Lock()
	msaa := m.msaaColor != nil
	m.mu.Unlock()
	if msaa {
		return m.rtvHeap.Handle(m.cfg.BufferCount)
	}
	return m.CurrentRTV()
}

// DepthStencil returns the main depth buffer.
func (m *SwapChainManager) DepthStencil() gpu.Texture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth
}

// DSV returns the main depth buffer's view.
func (m *SwapChainManager) DSV() gpu.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dsvHeap == nil {
		return gpu.Descriptor{}
	}
	return m.dsvHeap.Handle(0)
}

// DescriptorSnapshot describes every RTV and DSV slot, RTVs first.
func (m *SwapChainManager) DescriptorSnapshot() []gpu.ViewDesc {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rtvHeap == nil {
		return nil
	}
	return append(m.rtvHeap.Snapshot(), m.dsvHeap.Snapshot()...)
}

func (m *SwapChainManager) MSAAEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.MSAA
}

func (m *SwapChainManager) Viewport() common.Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewport
}

func (m *SwapChainManager) ScissorRect() common.Rect {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scissor
}

func (m *SwapChainManager) Width() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(m.width)
}

func (m *SwapChainManager) Height() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int(m.height)
}

func (m *SwapChainManager) Format() gpu.Format {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.BackBufferFormat
}

func (m *SwapChainManager) State() SwapChainState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Release flushes and destroys the swap chain and its targets.
func (m *SwapChainManager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == SwapChainUninitialized {
		return nil
	}
	err := m.fence.Flush()
	m.releaseTargets()
	m.chain.Release()
	m.chain = nil
	m.state = SwapChainUninitialized
	if err != nil {
		return errors.Wrap(err, "flush before swap chain release")
	}
	return nil
}

func (m *SwapChainManager) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("swap chain %dx%d %s msaa=%v state=%s", m.width, m.height, m.cfg.BackBufferFormat, m.cfg.MSAA, m.state)
}
