package renderer

import (
	"image"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu/soft_device"
	"github.com/pkg/errors"
)

type surface struct {
	mu     sync.Mutex
	w, h   int
	frames int
}

func (s *surface) FramebufferSize() (int, int) { return s.w, s.h }

func (s *surface) PresentImage(img *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
}

func (s *surface) presented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

type fakeRegistrar struct {
	textures map[uintptr]bool
	calls    int
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{textures: make(map[uintptr]bool)}
}

func (f *fakeRegistrar) RegisterTexture(handle uintptr) error {
	f.calls++
	f.textures[handle] = true
	return nil
}

func (f *fakeRegistrar) UnregisterTexture(handle uintptr) error {
	delete(f.textures, handle)
	return nil
}

func newSwapChainManager(t *testing.T, dev gpu.Device, cfg SwapChainConfig) (*SwapChainManager, gpu.CommandAllocator) {
	t.Helper()
	fence, err := NewFrameFence(dev, time.Second)
	if err != nil {
		t.Fatalf("NewFrameFence() error = %v", err)
	}
	alloc, err := dev.CreateCommandAllocator()
	if err != nil {
		t.Fatalf("CreateCommandAllocator() error = %v", err)
	}
	list, err := dev.CreateCommandList(alloc)
	if err != nil {
		t.Fatalf("CreateCommandList() error = %v", err)
	}
	return NewSwapChainManager(dev, fence, alloc, list, cfg), alloc
}

func TestComputeQuiltLayout(t *testing.T) {
	tests := []struct {
		name                 string
		tilesX, tilesY       int
		reqW, reqH, maxDim   int
		wantTileW, wantTileH int
		wantW, wantH         int
	}{
		{"fits", 5, 9, 800, 600, 16384, 800, 600, 4000, 5400},
		{"downscaled by height", 5, 9, 1920, 1080, 8192, 1618, 910, 8090, 8190},
		{"downscaled by width", 8, 1, 1000, 500, 4000, 500, 250, 4000, 250},
		{"exact fit", 2, 2, 50, 50, 100, 50, 50, 100, 100},
		{"degenerate input", 0, 0, 0, 0, 16, 1, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ComputeQuiltLayout(tt.tilesX, tt.tilesY, tt.reqW, tt.reqH, tt.maxDim)
			if l.TileWidth != tt.wantTileW || l.TileHeight != tt.wantTileH {
				t.Errorf("tile = %dx%d, want %dx%d", l.TileWidth, l.TileHeight, tt.wantTileW, tt.wantTileH)
			}
			if l.Width != tt.wantW || l.Height != tt.wantH {
				t.Errorf("quilt = %dx%d, want %dx%d", l.Width, l.Height, tt.wantW, tt.wantH)
			}
			if l.Width > max(tt.maxDim, 1) || l.Height > max(tt.maxDim, 1) {
				t.Errorf("quilt %dx%d exceeds %d", l.Width, l.Height, tt.maxDim)
			}
		})
	}
}

func TestComputeQuiltLayoutPreservesAspect(t *testing.T) {
	l := ComputeQuiltLayout(5, 9, 1920, 1080, 8192)
	want := 1920.0 / 1080.0
	got := float64(l.TileWidth) / float64(l.TileHeight)
	if diff := got - want; diff > 0.01 || diff < -0.01 {
		t.Errorf("tile aspect = %v, want %v", got, want)
	}
	if l.Scale >= 1 {
		t.Errorf("Scale = %v, want < 1", l.Scale)
	}
}

func TestTileViewport(t *testing.T) {
	l := QuiltLayout{TilesX: 2, TilesY: 2, TileWidth: 10, TileHeight: 20, Width: 20, Height: 40}
	tests := []struct {
		view int
		x, y float32
	}{
		{0, 0, 20},
		{1, 10, 20},
		{2, 0, 0},
		{3, 10, 0},
	}
	for _, tt := range tests {
		vp := tileViewport(l, tt.view)
		if vp.X != tt.x || vp.Y != tt.y || vp.Width != 10 || vp.Height != 20 || vp.MaxDepth != 1 {
			t.Errorf("tileViewport(%d) = %+v, want origin (%v, %v) size 10x20", tt.view, vp, tt.x, tt.y)
		}
	}
}

func TestNormalizedView(t *testing.T) {
	tests := []struct {
		i, n int
		want float32
	}{
		{0, 1, 0},
		{0, 45, 0},
		{22, 45, 0.5},
		{44, 45, 1},
	}
	for _, tt := range tests {
		if got := NormalizedView(tt.i, tt.n); got != tt.want {
			t.Errorf("NormalizedView(%d, %d) = %v, want %v", tt.i, tt.n, got, tt.want)
		}
	}
}

func TestFrameFenceFlush(t *testing.T) {
	dev := soft_device.NewDevice()
	defer dev.Release()

	f, err := NewFrameFence(dev, time.Second)
	if err != nil {
		t.Fatalf("NewFrameFence() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := f.Flush(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
	}
	if f.Current() != 3 || f.Completed() != 3 {
		t.Errorf("Current() = %d, Completed() = %d, want 3 and 3", f.Current(), f.Completed())
	}

	before := f.Stats().Skipped
	if err := f.WaitFor(2); err != nil {
		t.Fatalf("WaitFor(2) error = %v", err)
	}
	if got := f.Stats().Skipped; got != before+1 {
		t.Errorf("Stats().Skipped = %d, want %d", got, before+1)
	}
}

func TestFrameFenceTimeout(t *testing.T) {
	dev := soft_device.NewDevice()
	defer dev.Release()

	f, err := NewFrameFence(dev, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFrameFence() error = %v", err)
	}
	if err := f.WaitFor(5); !errors.Is(err, ErrFenceTimeout) {
		t.Errorf("WaitFor(unsignaled) error = %v, want %v", err, ErrFenceTimeout)
	}
}

func TestFrameFenceDeviceLost(t *testing.T) {
	dev := soft_device.NewDevice()
	defer dev.Release()

	f, err := NewFrameFence(dev, time.Second)
	if err != nil {
		t.Fatalf("NewFrameFence() error = %v", err)
	}
	dev.Remove(nil)
	if err := f.Flush(); !errors.Is(err, gpu.ErrDeviceLost) {
		t.Errorf("Flush() after removal error = %v, want %v", err, gpu.ErrDeviceLost)
	}
}

func TestSwapChainResizeIsIdempotent(t *testing.T) {
	dev := soft_device.NewDevice()
	defer dev.Release()
	m, alloc := newSwapChainManager(t, dev, DefaultSwapChainConfig())

	if err := m.Create(&surface{w: 40, h: 30}, 40, 30); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	first := m.DescriptorSnapshot()
	if err := m.Resize(40, 30); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if second := m.DescriptorSnapshot(); !reflect.DeepEqual(first, second) {
		t.Errorf("DescriptorSnapshot() after same-size Resize = %+v, want %+v", second, first)
	}
	if err := alloc.Reset(); err != nil {
		t.Errorf("allocator Reset() after Resize error = %v, want nil", err)
	}
	if got := m.DepthStencil().CurrentState(); got != gpu.StateDepthWrite {
		t.Errorf("depth state = %v, want %v", got, gpu.StateDepthWrite)
	}
	if m.State() != SwapChainReady {
		t.Errorf("State() = %v, want %v", m.State(), SwapChainReady)
	}
}

func TestSwapChainResizeClampsDegenerateSize(t *testing.T) {
	dev := soft_device.NewDevice()
	defer dev.Release()
	m, _ := newSwapChainManager(t, dev, DefaultSwapChainConfig())

	if err := m.Create(&surface{w: 40, h: 30}, 40, 30); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := m.Resize(0, -5); err != nil {
		t.Fatalf("Resize(0, -5) error = %v", err)
	}
	if m.Width() != 1 || m.Height() != 1 {
		t.Errorf("size = %dx%d, want 1x1", m.Width(), m.Height())
	}
	if vp := m.Viewport(); vp.Width != 1 || vp.Height != 1 {
		t.Errorf("Viewport() = %+v, want 1x1", vp)
	}
}

func TestSwapChainMSAA(t *testing.T) {
	dev := soft_device.NewDevice(soft_device.WithMultisampleQualityLevels(4, 3))
	defer dev.Release()
	m, _ := newSwapChainManager(t, dev, DefaultSwapChainConfig())

	if err := m.Create(&surface{w: 16, h: 16}, 16, 16); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got := m.ColorTarget(); got != m.CurrentBackBuffer() {
		t.Errorf("ColorTarget() without MSAA = %v, want the back buffer", got.Label())
	}
	if err := m.SetMSAA(true); err != nil {
		t.Fatalf("SetMSAA(true) error = %v", err)
	}
	want := gpu.SampleDesc{Count: 4, Quality: 2}
	if got := m.ColorTarget().Sample(); got != want {
		t.Errorf("ColorTarget().Sample() = %+v, want %+v", got, want)
	}
	if got := m.DepthStencil().Sample(); got != want {
		t.Errorf("DepthStencil().Sample() = %+v, want %+v", got, want)
	}
	if err := m.SetMSAA(false); err != nil {
		t.Fatalf("SetMSAA(false) error = %v", err)
	}
	if got := m.DepthStencil().Sample(); got != gpu.SingleSample {
		t.Errorf("DepthStencil().Sample() after disable = %+v, want %+v", got, gpu.SingleSample)
	}
}

func TestSwapChainFeatureQueryFailure(t *testing.T) {
	dev := soft_device.NewDevice(soft_device.WithMultisampleQualityLevels(4, 0))
	defer dev.Release()
	m, _ := newSwapChainManager(t, dev, DefaultSwapChainConfig())

	if err := m.Create(&surface{w: 16, h: 16}, 16, 16); !errors.Is(err, ErrFeatureQuery) {
		t.Errorf("Create() error = %v, want %v", err, ErrFeatureQuery)
	}
	if err := m.Resize(16, 16); !errors.Is(err, ErrNotCreated) {
		t.Errorf("Resize() before Create error = %v, want %v", err, ErrNotCreated)
	}
}

func TestSwapChainFailedResizeReportsState(t *testing.T) {
	dev := soft_device.NewDevice()
	defer dev.Release()
	m, _ := newSwapChainManager(t, dev, DefaultSwapChainConfig())

	if err := m.Create(&surface{w: 16, h: 16}, 16, 16); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	held, err := m.chain.Buffer(0)
	if err != nil {
		t.Fatalf("Buffer(0) error = %v", err)
	}

	if err := m.SetMSAA(true); !errors.Is(err, gpu.ErrBuffersInUse) {
		t.Fatalf("SetMSAA(true) with a held buffer error = %v, want %v", err, gpu.ErrBuffersInUse)
	}
	if got := m.State(); got != SwapChainFailed {
		t.Errorf("State() after failed resize = %v, want %v", got, SwapChainFailed)
	}
	if m.MSAAEnabled() {
		t.Error("MSAAEnabled() after failed SetMSAA = true, want false")
	}
	if m.CurrentBackBuffer() != nil || m.DepthStencil() != nil {
		t.Error("targets survived a failed resize, want them released")
	}

	if err := m.SetBackBufferFormat(gpu.FormatBGRA8Unorm); !errors.Is(err, gpu.ErrBuffersInUse) {
		t.Fatalf("SetBackBufferFormat() with a held buffer error = %v, want %v", err, gpu.ErrBuffersInUse)
	}
	if got := m.Format(); got != gpu.FormatRGBA8Unorm {
		t.Errorf("Format() after failed SetBackBufferFormat = %v, want %v", got, gpu.FormatRGBA8Unorm)
	}

	held.Release()
	if err := m.Resize(16, 16); err != nil {
		t.Fatalf("Resize() after releasing the buffer error = %v", err)
	}
	if got := m.State(); got != SwapChainReady || m.CurrentBackBuffer() == nil {
		t.Errorf("State() after retry = %v, want %v with a back buffer", got, SwapChainReady)
	}
	if err := m.Release(); err != nil {
		t.Errorf("Release() error = %v", err)
	}
}

func TestQuiltRegistration(t *testing.T) {
	dev := soft_device.NewDevice()
	defer dev.Release()
	fence, err := NewFrameFence(dev, time.Second)
	if err != nil {
		t.Fatalf("NewFrameFence() error = %v", err)
	}
	q := NewQuiltTarget(dev, fence)
	reg := newFakeRegistrar()

	if err := q.Register(reg); !errors.Is(err, ErrNotCreated) {
		t.Errorf("Register() before Create error = %v, want %v", err, ErrNotCreated)
	}
	if err := q.Configure(2, 2, 8, 8, 0); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if err := q.Create(); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := q.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := q.Register(reg); !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second Register() error = %v, want %v", err, ErrAlreadyRegistered)
	}
	if err := q.Unregister(); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if len(reg.textures) != 0 {
		t.Errorf("registered textures after Unregister = %d, want 0", len(reg.textures))
	}
	if err := q.Register(reg); err != nil {
		t.Errorf("Register() after Unregister error = %v, want nil", err)
	}

	handle := q.Handle()
	if err := q.Configure(3, 2, 8, 8, 0); err != nil {
		t.Fatalf("Configure(changed) error = %v", err)
	}
	if l := q.Layout(); l.Width != 24 || l.Height != 16 {
		t.Errorf("Layout() after reconfigure = %v, want 24x16", l)
	}
	if !q.Registered() || reg.textures[handle] || !reg.textures[q.Handle()] {
		t.Errorf("after reconfigure registered = %v textures = %v, want only the new handle %d", q.Registered(), reg.textures, q.Handle())
	}

	if err := q.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if len(reg.textures) != 0 || q.Created() {
		t.Errorf("after Release textures = %v created = %v, want none and false", reg.textures, q.Created())
	}
}

func TestQuiltConfigureRejectsTooManyTiles(t *testing.T) {
	dev := soft_device.NewDevice()
	defer dev.Release()
	fence, err := NewFrameFence(dev, time.Second)
	if err != nil {
		t.Fatalf("NewFrameFence() error = %v", err)
	}
	q := NewQuiltTarget(dev, fence)

	tests := []struct {
		name                             string
		tilesX, tilesY, reqW, reqH, max int
		wantErr                          bool
	}{
		{"row wider than limit", 45, 1, 100, 100, 40, true},
		{"column taller than limit", 5, 9, 10, 10, 4, true},
		{"one pixel tiles fit exactly", 40, 1, 100, 100, 40, false},
		{"downscaled fit", 4, 4, 100, 100, 40, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := q.Configure(tt.tilesX, tt.tilesY, tt.reqW, tt.reqH, tt.max)
			if tt.wantErr {
				if !errors.Is(err, ErrQuiltTooLarge) {
					t.Errorf("Configure() error = %v, want %v", err, ErrQuiltTooLarge)
				}
				return
			}
			if err != nil {
				t.Fatalf("Configure() error = %v", err)
			}
			if l := q.Layout(); l.Width > tt.max || l.Height > tt.max {
				t.Errorf("Layout() = %v, want both dimensions <= %d", l, tt.max)
			}
		})
	}

	if err := q.Create(); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer q.Release()
	before := q.Layout()
	if err := q.Configure(45, 1, 100, 100, 40); !errors.Is(err, ErrQuiltTooLarge) {
		t.Errorf("Configure() on created quilt error = %v, want %v", err, ErrQuiltTooLarge)
	}
	if got := q.Layout(); got != before || !q.Created() {
		t.Errorf("Layout() after rejected Configure = %v created = %v, want %v and true", got, q.Created(), before)
	}
}

func renderTiles(t *testing.T, r Renderer, cube *gpu.Mesh) {
	t.Helper()
	var id [16]float32
	common.Identity(id[:])

	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	for i := 0; i < r.Quilt().Layout().Views(); i++ {
		if err := r.SetTile(i); err != nil {
			t.Fatalf("SetTile(%d) error = %v", i, err)
		}
		if err := r.Draw(gpu.DrawItem{Mesh: cube, World: id, View: id, Projection: id}); err != nil {
			t.Fatalf("Draw() error = %v", err)
		}
	}
	if _, err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
	if err := r.Present(); err != nil {
		t.Fatalf("Present() error = %v", err)
	}
}

func TestRendererFrame(t *testing.T) {
	for _, msaa := range []bool{false, true} {
		name := "single sample"
		if msaa {
			name = "msaa"
		}
		t.Run(name, func(t *testing.T) {
			dev := soft_device.NewDevice()
			defer dev.Release()
			win := &surface{w: 32, h: 16}

			r, err := NewRenderer(dev, win, WithMSAA(msaa))
			if err != nil {
				t.Fatalf("NewRenderer() error = %v", err)
			}
			defer r.Close()
			if err := r.ConfigureQuilt(2, 1, 16, 16, 0); err != nil {
				t.Fatalf("ConfigureQuilt() error = %v", err)
			}

			cube := gpu.NewCube(0.5)
			for frame := 0; frame < 2; frame++ {
				renderTiles(t, r, cube)
				if err := r.Flush(); err != nil {
					t.Fatalf("Flush() error = %v", err)
				}
			}
			if got := win.presented(); got != 2 {
				t.Errorf("presented frames = %d, want 2", got)
			}

			img, err := r.ReadbackImage()
			if err != nil {
				t.Fatalf("ReadbackImage() error = %v", err)
			}
			if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 16 {
				t.Fatalf("ReadbackImage() bounds = %v, want 32x16", img.Bounds())
			}
			black := [4]uint8{0, 0, 0, 255}
			at := func(x, y int) [4]uint8 {
				c := img.NRGBAAt(x, y)
				return [4]uint8{c.R, c.G, c.B, c.A}
			}
			if at(8, 8) == black || at(24, 8) == black {
				t.Errorf("tile centres = %v %v, want both drawn", at(8, 8), at(24, 8))
			}
			if at(1, 1) != black || at(30, 14) != black {
				t.Errorf("tile corners = %v %v, want black", at(1, 1), at(30, 14))
			}
		})
	}
}

func TestRendererBeginFrameBeforeFlush(t *testing.T) {
	dev := soft_device.NewDevice(soft_device.WithExecutionDelay(100 * time.Millisecond))
	defer dev.Release()

	r, err := NewRenderer(dev, &surface{w: 16, h: 16})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	defer r.Close()

	if err := r.BeginFrame(); err != nil {
		t.Fatalf("BeginFrame() error = %v", err)
	}
	if _, err := r.EndFrame(); err != nil {
		t.Fatalf("EndFrame() error = %v", err)
	}
	if err := r.BeginFrame(); !errors.Is(err, gpu.ErrAllocatorInUse) {
		t.Errorf("BeginFrame() before flush error = %v, want %v", err, gpu.ErrAllocatorInUse)
	}
	if err := r.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := r.SetTile(0); !errors.Is(err, ErrFrameNotStarted) {
		t.Errorf("SetTile() outside a frame error = %v, want %v", err, ErrFrameNotStarted)
	}
}
