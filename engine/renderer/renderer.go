package renderer

import (
	"image"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/pkg/errors"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	device gpu.Device
	target gpu.SurfaceTarget
	fence  *FrameFence
	alloc  gpu.CommandAllocator
	list   gpu.CommandList
	swap   *SwapChainManager
	quilt  *QuiltTarget

	// Pre-creation config collected from builder options
	swapConfig   SwapChainConfig
	flushTimeout time.Duration
	preview      bool
	clearColor   common.Color

	inFrame   bool
	lastFrame uint64
}

// Renderer defines the interface for the multi-view rendering system.
//
// The Renderer owns the frame fence, the single command allocator and command list, the window swap
// chain and the offscreen quilt. One frame is BeginFrame, then SetTile and Draw for each view, then
// EndFrame, Present and Flush. The previous frame must have been flushed before BeginFrame because
// the allocator is reused every frame.
type Renderer interface {
	// Device returns the device the renderer was created on.
	Device() gpu.Device

	// Fence returns the frame fence.
	Fence() *FrameFence

	// SwapChain returns the window swap chain manager.
	SwapChain() *SwapChainManager

	// Quilt returns the offscreen quilt target.
	Quilt() *QuiltTarget

	// ConfigureQuilt sets the quilt tile geometry and creates the quilt if it does not exist yet.
	// Changing the geometry of an existing quilt rebuilds it and re-registers it with the bridge.
	//
	// Parameters:
	//   - tilesX, tilesY: tile counts
	//   - tileWidth, tileHeight: the requested per-view size
	//   - maxDim: the largest texture dimension the consumer accepts, zero for the device limit
	//
	// Returns:
	//   - error: an error if the quilt cannot be created
	ConfigureQuilt(tilesX, tilesY, tileWidth, tileHeight, maxDim int) error

	// Resize rebuilds the swap chain for a new window size. Sizes below 1x1 are clamped.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: any failure is fatal to the frame loop
	Resize(width, height int) error

	// SetMSAA switches multisampling for the window targets.
	//
	// Parameters:
	//   - enabled: true to render the window through a multisampled color target
	//
	// Returns:
	//   - error: any failure is fatal to the frame loop
	SetMSAA(enabled bool) error

	// MSAAEnabled reports whether the window targets are multisampled.
	MSAAEnabled() bool

	// SetPreview toggles drawing the quilt into the window and copying it back to the CPU.
	SetPreview(enabled bool)

	// BeginFrame resets the allocator and command list, transitions the window color target to
	// the render-target state and clears the window and quilt targets.
	//
	// Returns:
	//   - error: gpu.ErrAllocatorInUse if the previous frame was not flushed
	BeginFrame() error

	// SetTile binds the quilt targets and restricts the viewport and scissor to view i.
	//
	// Parameters:
	//   - i: the view index, 0 at the bottom-left of the quilt
	//
	// Returns:
	//   - error: ErrFrameNotStarted or ErrNotCreated
	SetTile(i int) error

	// Draw records a draw into the currently bound tile.
	//
	// Parameters:
	//   - item: the mesh and its matrices
	//
	// Returns:
	//   - error: ErrFrameNotStarted outside a frame
	Draw(item gpu.DrawItem) error

	// EndFrame records the readback and window preview, returns the back buffer to the present
	// state, submits the frame and signals the fence.
	//
	// Returns:
	//   - uint64: the fence value that marks the end of this frame
	//   - error: the first recording error, or the submission error
	EndFrame() (uint64, error)

	// Present presents the current back buffer.
	Present() error

	// Flush blocks until all submitted work has completed.
	Flush() error

	// ReadbackImage returns the quilt copied back by the last flushed frame with preview enabled.
	ReadbackImage() (*image.NRGBA, error)

	// Close flushes and releases everything the renderer created, in reverse order. The device
	// itself is not released.
	Close() error
}

var _ Renderer = &renderer{}

// NewRenderer creates the frame fence, command objects and swap chain on device for the given
// surface.
//
// Parameters:
//   - device: the device to render with, usually from OpenDevice
//   - target: the window surface
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: the first creation failure
func NewRenderer(device gpu.Device, target gpu.SurfaceTarget, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:         &sync.Mutex{},
		device:     device,
		target:     target,
		swapConfig: DefaultSwapChainConfig(),
		preview:    true,
		clearColor: common.ColorBlack,
	}
	for _, opt := range options {
		opt(r)
	}

	var err error
	if r.fence, err = NewFrameFence(device, r.flushTimeout); err != nil {
		return nil, err
	}
	if r.alloc, err = device.CreateCommandAllocator(); err != nil {
		r.fence.Release()
		return nil, errors.Wrap(err, "create command allocator")
	}
	if r.list, err = device.CreateCommandList(r.alloc); err != nil {
		r.alloc.Release()
		r.fence.Release()
		return nil, errors.Wrap(err, "create command list")
	}

	r.swap = NewSwapChainManager(device, r.fence, r.alloc, r.list, r.swapConfig)
	width, height := target.FramebufferSize()
	if err := r.swap.Create(target, width, height); err != nil {
		r.list.Release()
		r.alloc.Release()
		r.fence.Release()
		return nil, err
	}
	r.quilt = NewQuiltTarget(device, r.fence)

	info := device.Info()
	common.ComponentLogger("renderer").Info("renderer created",
		"adapter", info.Name, "backend", info.Backend, "width", r.swap.Width(), "height", r.swap.Height())
	return r, nil
}

func (r *renderer) Device() gpu.Device           { return r.device }
func (r *renderer) Fence() *FrameFence           { return r.fence }
func (r *renderer) SwapChain() *SwapChainManager { return r.swap }
func (r *renderer) Quilt() *QuiltTarget          { return r.quilt }

func (r *renderer) ConfigureQuilt(tilesX, tilesY, tileWidth, tileHeight, maxDim int) error {
	if err := r.quilt.Configure(tilesX, tilesY, tileWidth, tileHeight, maxDim); err != nil {
		return err
	}
	if r.quilt.Created() {
		return nil
	}
	return r.quilt.Create()
}

func (r *renderer) Resize(width, height int) error {
	return r.swap.Resize(width, height)
}

func (r *renderer) SetMSAA(enabled bool) error {
	return r.swap.SetMSAA(enabled)
}

func (r *renderer) MSAAEnabled() bool {
	return r.swap.MSAAEnabled()
}

func (r *renderer) SetPreview(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preview = enabled
}

func (r *renderer) BeginFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFrame {
		return errors.New("frame already in progress")
	}
	if err := r.alloc.Reset(); err != nil {
		return errors.Wrap(err, "reset frame allocator")
	}
	if err := r.list.Reset(r.alloc); err != nil {
		return errors.Wrap(err, "reset frame command list")
	}

	if r.swap.MSAAEnabled() {
		r.list.ResourceBarrier(r.swap.ColorTarget(), gpu.StateResolveSource, gpu.StateRenderTarget)
	} else {
		r.list.ResourceBarrier(r.swap.CurrentBackBuffer(), gpu.StatePresent, gpu.StateRenderTarget)
	}
	r.list.ClearRenderTarget(r.swap.ColorRTV(), r.clearColor)
	r.list.ClearDepthStencil(r.swap.DSV(), 1, 0)

	if r.quilt.Created() {
		r.list.ClearRenderTarget(r.quilt.RTV(), common.ColorBlack)
		r.list.ClearDepthStencil(r.quilt.DSV(), 1, 0)
	}
	r.inFrame = true
	return nil
}

func (r *renderer) SetTile(i int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFrame {
		return ErrFrameNotStarted
	}
	if !r.quilt.Created() {
		return errors.Wrap(ErrNotCreated, "set tile")
	}
	r.list.SetRenderTargets(r.quilt.RTV(), r.quilt.DSV())
	r.list.SetViewport(r.quilt.TileViewport(i))
	r.list.SetScissorRect(r.quilt.TileScissor(i))
	return nil
}

func (r *renderer) Draw(item gpu.DrawItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFrame {
		return ErrFrameNotStarted
	}
	r.list.Draw(item)
	return nil
}

func (r *renderer) EndFrame() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.inFrame {
		return 0, ErrFrameNotStarted
	}
	r.inFrame = false

	quiltReady := r.quilt.Created()
	if r.preview && quiltReady {
		r.quilt.RecordReadback(r.list)

		color := r.quilt.Color()
		r.list.SetRenderTargets(r.swap.ColorRTV(), r.swap.DSV())
		r.list.SetViewport(r.swap.Viewport())
		r.list.SetScissorRect(r.swap.ScissorRect())
		r.list.ResourceBarrier(color, gpu.StateRenderTarget, gpu.StatePixelShaderResource)
		r.list.Blit(r.quilt.SRV())
		r.list.ResourceBarrier(color, gpu.StatePixelShaderResource, gpu.StateRenderTarget)
	}

	back := r.swap.CurrentBackBuffer()
	if r.swap.MSAAEnabled() {
		msaa := r.swap.ColorTarget()
		r.list.ResourceBarrier(msaa, gpu.StateRenderTarget, gpu.StateResolveSource)
		r.list.ResourceBarrier(back, gpu.StatePresent, gpu.StateResolveDest)
		r.list.Resolve(back, msaa, r.swap.Format())
		r.list.ResourceBarrier(back, gpu.StateResolveDest, gpu.StatePresent)
	} else {
		r.list.ResourceBarrier(back, gpu.StateRenderTarget, gpu.StatePresent)
	}

	if err := r.list.Close(); err != nil {
		return 0, errors.Wrap(err, "close frame command list")
	}
	if err := r.device.Queue().ExecuteCommandLists(r.list); err != nil {
		return 0, errors.Wrap(err, "submit frame")
	}
	v, err := r.fence.SignalNext()
	if err != nil {
		return 0, err
	}
	r.lastFrame = v
	return v, nil
}

func (r *renderer) Present() error {
	return r.swap.Present()
}

func (r *renderer) Flush() error {
	return r.fence.Flush()
}

func (r *renderer) ReadbackImage() (*image.NRGBA, error) {
	return r.quilt.ReadbackImage()
}

func (r *renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(r.fence.Flush())
	keep(r.quilt.Release())
	keep(r.swap.Release())
	r.fence.Release()
	r.list.Release()
	r.alloc.Release()
	common.ComponentLogger("renderer").Info("renderer closed")
	return first
}
