package renderer

import (
	"fmt"
	"image"
	"sync"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/pkg/errors"
)

// QuiltFormat is the color format of the quilt texture handed to the display bridge.
const QuiltFormat = gpu.FormatRGBA8Unorm

// QuiltLayout is the tile geometry of a quilt.
type QuiltLayout struct {
	TilesX, TilesY int
	// TileWidth and TileHeight are the per-view extent after any downscale.
	TileWidth, TileHeight int
	// Width and Height are the aggregate quilt extent.
	Width, Height int
	// Scale is the factor applied to the requested tile size, 1 when it fit.
	Scale float64
}

// Views returns the number of tiles in the quilt.
func (l QuiltLayout) Views() int { return l.TilesX * l.TilesY }

// Aspect returns the per-tile aspect ratio.
func (l QuiltLayout) Aspect() float32 {
	if l.TileHeight == 0 {
		return 1
	}
	return float32(l.TileWidth) / float32(l.TileHeight)
}

func (l QuiltLayout) String() string {
	return fmt.Sprintf("%dx%d tiles of %dx%d (%dx%d)", l.TilesX, l.TilesY, l.TileWidth, l.TileHeight, l.Width, l.Height)
}

// ComputeQuiltLayout fits tilesX by tilesY tiles of the requested size into a maxDim square. The
// requested size is kept when both totals fit; otherwise both axes shrink by the one scalar that
// brings the more oversized total down to maxDim, so the tile aspect ratio is preserved.
//
// Parameters:
//   - tilesX, tilesY: tile counts, clamped to at least 1
//   - reqW, reqH: the requested tile size, clamped to at least 1
//   - maxDim: the largest texture dimension the device and bridge accept
//
// Returns:
//   - QuiltLayout: the resulting geometry. Tiles never shrink below one pixel, so a layout with more
//     tiles than maxDim along an axis still exceeds it; Configure rejects that case.
func ComputeQuiltLayout(tilesX, tilesY, reqW, reqH, maxDim int) QuiltLayout {
	tilesX, tilesY = max(tilesX, 1), max(tilesY, 1)
	reqW, reqH = max(reqW, 1), max(reqH, 1)

	l := QuiltLayout{TilesX: tilesX, TilesY: tilesY, TileWidth: reqW, TileHeight: reqH, Scale: 1}
	totalW, totalH := reqW*tilesX, reqH*tilesY
	if largest := max(totalW, totalH); maxDim > 0 && largest > maxDim {
		l.Scale = float64(maxDim) / float64(largest)
		// integer math keeps the floor exact
		l.TileWidth = max(reqW*maxDim/largest, 1)
		l.TileHeight = max(reqH*maxDim/largest, 1)
	}
	l.Width, l.Height = l.TileWidth*tilesX, l.TileHeight*tilesY
	return l
}

// TextureRegistrar receives the quilt's shared handle. bridge.Bridge satisfies it.
type TextureRegistrar interface {
	RegisterTexture(handle uintptr) error
	UnregisterTexture(handle uintptr) error
}

// QuiltTarget owns the offscreen quilt: color and depth textures, their views, a shader-visible
// view for the window preview and the readback staging buffer.
type QuiltTarget struct {
	mu     *sync.Mutex
	device gpu.Device
	fence  *FrameFence

	layout     QuiltLayout
	configured bool
	created    bool

	color     gpu.Texture
	depth     gpu.Texture
	readback  gpu.Buffer
	footprint gpu.Footprint
	rtvHeap   *gpu.DescriptorHeap
	dsvHeap   *gpu.DescriptorHeap
	srvHeap   *gpu.DescriptorHeap

	registrar  TextureRegistrar
	handle     uintptr
	registered bool
	recorded   bool
}

// NewQuiltTarget creates an unconfigured quilt target.
func NewQuiltTarget(device gpu.Device, fence *FrameFence) *QuiltTarget {
	return &QuiltTarget{
		mu:     &sync.Mutex{},
		device: device,
		fence:  fence,
	}
}

// Configure stores the layout for the given tile geometry, capped by maxDim and the device limit.
// When the quilt already exists and the layout changed it is rebuilt in place.
//
// Parameters:
//   - tilesX, tilesY: tile counts
//   - reqW, reqH: requested tile size
//   - maxDim: the bridge's texture size limit; zero uses the device limit
//
// Returns:
//   - error: ErrQuiltTooLarge when even one-pixel tiles exceed the limit, or any error from Reconfigure
func (q *QuiltTarget) Configure(tilesX, tilesY, reqW, reqH, maxDim int) error {
	limit := int(q.device.MaxTextureDimension())
	if maxDim <= 0 || maxDim > limit {
		maxDim = limit
	}
	layout := ComputeQuiltLayout(tilesX, tilesY, reqW, reqH, maxDim)
	if layout.Width > maxDim || layout.Height > maxDim {
		return errors.Wrapf(ErrQuiltTooLarge, "%d by %d tiles in %d pixels", layout.TilesX, layout.TilesY, maxDim)
	}

	q.mu.Lock()
	changed := !q.configured || layout != q.layout
	created := q.created
	if !created {
		q.layout = layout
		q.configured = true
	}
	q.mu.Unlock()

	if created && changed {
		return q.Reconfigure(layout)
	}
	return nil
}

// Create allocates the quilt resources for the configured layout.
//
// Returns:
//   - error: ErrNotCreated if Configure has not run, or the device error
func (q *QuiltTarget) Create() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.create()
}

func (q *QuiltTarget) create() error {
	if !q.configured {
		return errors.Wrap(ErrNotCreated, "quilt has no layout")
	}
	if q.created {
		return nil
	}
	w, h := uint32(q.layout.Width), uint32(q.layout.Height)

	color, err := q.device.CreateTexture(gpu.TextureDescriptor{
		Label:        "quilt color",
		Width:        w,
		Height:       h,
		Format:       QuiltFormat,
		Sample:       gpu.SingleSample,
		Flags:        gpu.FlagAllowRenderTarget | gpu.FlagAllowSimultaneousAccess,
		HeapFlags:    gpu.HeapFlagShared,
		InitialState: gpu.StateRenderTarget,
		Clear:        &gpu.ClearValue{Format: QuiltFormat, Color: common.ColorBlack},
	})
	if err != nil {
		return errors.Wrap(err, "create quilt color")
	}
	q.color = color

	depth, err := q.device.CreateTexture(gpu.TextureDescriptor{
		Label:        "quilt depth",
		Width:        w,
		Height:       h,
		Format:       gpu.FormatR24G8Typeless,
		Sample:       gpu.SingleSample,
		Flags:        gpu.FlagAllowDepthStencil,
		InitialState: gpu.StateDepthWrite,
		Clear:        &gpu.ClearValue{Format: gpu.FormatD24UnormS8Uint, Depth: 1, Stencil: 0},
	})
	if err != nil {
		q.destroy()
		return errors.Wrap(err, "create quilt depth")
	}
	q.depth = depth

	if q.rtvHeap == nil {
		if q.rtvHeap, err = gpu.NewDescriptorHeap(gpu.HeapTypeRTV, 1, false); err != nil {
			q.destroy()
			return err
		}
		if q.dsvHeap, err = gpu.NewDescriptorHeap(gpu.HeapTypeDSV, 1, false); err != nil {
			q.destroy()
			return err
		}
		if q.srvHeap, err = gpu.NewDescriptorHeap(gpu.HeapTypeCBVSRVUAV, 1, true); err != nil {
			q.destroy()
			return err
		}
	}
	if _, err := q.rtvHeap.CreateRenderTargetView(0, color); err != nil {
		q.destroy()
		return err
	}
	if _, err := q.dsvHeap.CreateDepthStencilView(0, depth, gpu.FormatD24UnormS8Uint); err != nil {
		q.destroy()
		return err
	}
	if _, err := q.srvHeap.CreateShaderResourceView(0, color); err != nil {
		q.destroy()
		return err
	}

	q.footprint = q.device.CopyableFootprint(color)
	readback, err := q.device.CreateBuffer(gpu.BufferDescriptor{
		Label:        "quilt readback",
		Size:         q.footprint.TotalBytes(),
		Heap:         gpu.HeapReadback,
		InitialState: gpu.StateCopyDest,
	})
	if err != nil {
		q.destroy()
		return errors.Wrap(err, "create quilt readback")
	}
	q.readback = readback

	if q.handle, err = color.SharedHandle(); err != nil {
		q.destroy()
		return errors.Wrap(err, "quilt shared handle")
	}
	q.created = true
	q.recorded = false

	common.ComponentLogger("quilt").Info("quilt created", "layout", q.layout.String(), "row_pitch", q.footprint.RowPitch)
	return nil
}

// destroy releases whatever exists in reverse acquisition order. Caller holds q.mu.
func (q *QuiltTarget) destroy() {
	if q.readback != nil {
		q.readback.Release()
		q.readback = nil
	}
	if q.srvHeap != nil {
		q.srvHeap.ClearAll()
	}
	if q.dsvHeap != nil {
		q.dsvHeap.ClearAll()
	}
	if q.depth != nil {
		q.depth.Release()
		q.depth = nil
	}
	if q.rtvHeap != nil {
		q.rtvHeap.ClearAll()
	}
	if q.color != nil {
		q.color.Release()
		q.color = nil
	}
	q.handle = 0
	q.created = false
	q.recorded = false
}

// Register hands the quilt's shared handle to reg. It may be called once per successful Create.
//
// Parameters:
//   - reg: the display bridge
//
// Returns:
//   - error: ErrNotCreated, ErrAlreadyRegistered, or the bridge error
func (q *QuiltTarget) Register(reg TextureRegistrar) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.created {
		return errors.Wrap(ErrNotCreated, "register quilt")
	}
	if q.registered {
		return ErrAlreadyRegistered
	}
	if err := reg.RegisterTexture(q.handle); err != nil {
		return errors.Wrap(err, "register quilt")
	}
	q.registrar = reg
	q.registered = true
	common.ComponentLogger("quilt").Info("quilt registered", "handle", q.handle)
	return nil
}

// Unregister withdraws the handle from the bridge. It is a no-op when not registered.
func (q *QuiltTarget) Unregister() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	err := q.unregister()
	q.registrar = nil
	return err
}

func (q *QuiltTarget) unregister() error {
	if !q.registered {
		return nil
	}
	q.registered = false
	if err := q.registrar.UnregisterTexture(q.handle); err != nil {
		return errors.Wrap(err, "unregister quilt")
	}
	common.ComponentLogger("quilt").Info("quilt unregistered", "handle", q.handle)
	return nil
}

// Reconfigure flushes, unregisters, destroys and recreates the quilt for layout, then registers it
// again with the same bridge if it was registered.
func (q *QuiltTarget) Reconfigure(layout QuiltLayout) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.fence.Flush(); err != nil {
		return errors.Wrap(err, "flush before quilt reconfigure")
	}
	reg := q.registrar
	wasRegistered := q.registered
	if err := q.unregister(); err != nil {
		return err
	}
	q.destroy()

	q.layout = layout
	q.configured = true
	if err := q.create(); err != nil {
		return err
	}
	if wasRegistered {
		if err := reg.RegisterTexture(q.handle); err != nil {
			return errors.Wrap(err, "register quilt")
		}
		q.registered = true
	}
	common.ComponentLogger("quilt").Info("quilt reconfigured", "layout", layout.String())
	return nil
}

// Release flushes, unregisters and destroys the quilt.
func (q *QuiltTarget) Release() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.created {
		return nil
	}
	flushErr := q.fence.Flush()
	unregErr := q.unregister()
	q.registrar = nil
	q.destroy()
	if flushErr != nil {
		return errors.Wrap(flushErr, "flush before quilt release")
	}
	return unregErr
}

// TileViewport returns the viewport of view i. View 0 is the bottom-left tile; views advance left
// to right, then bottom to top.
func (q *QuiltTarget) TileViewport(i int) common.Viewport {
	q.mu.Lock()
	l := q.layout
	q.mu.Unlock()
	return tileViewport(l, i)
}

func tileViewport(l QuiltLayout, i int) common.Viewport {
	col := i % l.TilesX
	row := i / l.TilesX
	return common.Viewport{
		X:        float32(col * l.TileWidth),
		Y:        float32((l.TilesY - 1 - row) * l.TileHeight),
		Width:    float32(l.TileWidth),
		Height:   float32(l.TileHeight),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

// TileScissor returns the pixel rectangle of view i.
func (q *QuiltTarget) TileScissor(i int) common.Rect {
	return q.TileViewport(i).Rect()
}

// NormalizedView maps view i onto [0, 1].
func (q *QuiltTarget) NormalizedView(i int) float32 {
	q.mu.Lock()
	n := q.layout.Views()
	q.mu.Unlock()
	return NormalizedView(i, n)
}

// NormalizedView returns i/(n-1), or 0 for a single view.
func NormalizedView(i, n int) float32 {
	if n <= 1 {
		return 0
	}
	return float32(i) / float32(n-1)
}

// RecordReadback records a copy of the quilt into the staging buffer. The color target leaves and
// returns to the RenderTarget state.
func (q *QuiltTarget) RecordReadback(list gpu.CommandList) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.created {
		return
	}
	list.ResourceBarrier(q.color, gpu.StateRenderTarget, gpu.StateCopySource)
	list.CopyTextureToBuffer(q.readback, q.color, q.footprint)
	list.ResourceBarrier(q.color, gpu.StateCopySource, gpu.StateRenderTarget)
	q.recorded = true
}

// ReadbackImage returns the last copied quilt. The caller must have flushed the frame that
// recorded the readback.
//
// Returns:
//   - *image.NRGBA: the quilt, top row first
//   - error: ErrNotCreated, or an error if no readback has been recorded
func (q *QuiltTarget) ReadbackImage() (*image.NRGBA, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.created {
		return nil, errors.Wrap(ErrNotCreated, "quilt readback")
	}
	if !q.recorded {
		return nil, errors.New("quilt readback not recorded")
	}
	data, err := q.readback.Map()
	if err != nil {
		return nil, errors.Wrap(err, "map quilt readback")
	}
	defer q.readback.Unmap()

	fp := q.footprint
	img := image.NewNRGBA(image.Rect(0, 0, int(fp.Width), int(fp.Height)))
	rowBytes := int(fp.Width) * 4
	for y := 0; y < int(fp.Height); y++ {
		src := data[y*int(fp.RowPitch) : y*int(fp.RowPitch)+rowBytes]
		dst := img.Pix[y*img.Stride : y*img.Stride+rowBytes]
		copy(dst, src)
		if fp.Format == gpu.FormatBGRA8Unorm {
			for x := 0; x < rowBytes; x += 4 {
				dst[x], dst[x+2] = dst[x+2], dst[x]
			}
		}
	}
	return img, nil
}

func (q *QuiltTarget) Layout() QuiltLayout {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.layout
}

func (q *QuiltTarget) Created() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.created
}

func (q *QuiltTarget) Registered() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.registered
}

// Handle returns the shared handle of the color target, zero before Create.
func (q *QuiltTarget) Handle() uintptr {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.handle
}

func (q *QuiltTarget) Color() gpu.Texture {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.color
}

func (q *QuiltTarget) RTV() gpu.Descriptor {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.rtvHeap == nil {
		return gpu.Descriptor{}
	}
	return q.rtvHeap.Handle(0)
}

func (q *QuiltTarget) DSV() gpu.Descriptor {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.dsvHeap == nil {
		return gpu.Descriptor{}
	}
	return q.dsvHeap.Handle(0)
}

// SRV returns the shader-visible view used to draw the quilt preview.
func (q *QuiltTarget) SRV() gpu.Descriptor {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.srvHeap == nil {
		return gpu.Descriptor{}
	}
	return q.srvHeap.Handle(0)
}
