package engine

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/bridge"
	"github.com/Carmen-Shannon/oxy-quilt/engine/camera"
	"github.com/Carmen-Shannon/oxy-quilt/engine/config"
	"github.com/Carmen-Shannon/oxy-quilt/engine/event"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu/soft_device"
	"github.com/Carmen-Shannon/oxy-quilt/engine/window"
	"github.com/pkg/errors"
)

type testApp struct {
	initialized int
	teardowns   int
	updates     int
	draws       int
	views       []float32
	resizes     [][2]int
	keys        []int
	cube        *gpu.Mesh
	model       camera.ModelController
}

func (a *testApp) Initialize(e Engine) error {
	a.initialized++
	a.cube = gpu.NewCube(1)
	a.model = camera.NewModelController()
	return nil
}

func (a *testApp) OnResize(width, height int) {
	a.resizes = append(a.resizes, [2]int{width, height})
}

func (a *testApp) Update(dt float32) {
	a.updates++
}

func (a *testApp) Draw(ctx *FrameContext) error {
	a.draws++
	if ctx.Frame == 0 {
		a.views = append(a.views, ctx.NormalizedView)
	}
	return ctx.Draw(a.cube, a.model.ModelMatrix())
}

func (a *testApp) Teardown() {
	a.teardowns++
}

func (a *testApp) OnKey(code int, action event.KeyAction) {
	if action == event.KeyPress {
		a.keys = append(a.keys, code)
		a.model.HandleKey(code)
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Quilt.TilesX, cfg.Quilt.TilesY = 2, 1
	cfg.Renderer.MSAAEnabled = false
	cfg.Profiler.Enabled = false
	cfg.Bridge.ConnectTimeout = 0
	return cfg
}

func newTestDevice(t *testing.T) gpu.Device {
	t.Helper()
	dev := soft_device.NewDevice(soft_device.WithRasterWorkers(2))
	t.Cleanup(dev.Release)
	return dev
}

func TestEngineRun(t *testing.T) {
	win := window.NewHeadless(window.WithSize(32, 16))
	defer win.Close()
	display := bridge.NewVirtualDisplay(bridge.WithDisplaySize(16, 16), bridge.WithDisplayPosition(100, 50))
	app := &testApp{}

	e := NewEngine(
		WithDevice(newTestDevice(t)),
		WithWindow(win),
		WithDisplay(display),
		WithConfig(testConfig()),
		WithMaxFrames(3),
	)
	if err := e.Run(app); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if app.initialized != 1 || app.teardowns != 1 {
		t.Errorf("Initialize/Teardown calls = %d/%d, want 1/1", app.initialized, app.teardowns)
	}
	if app.updates != 3 || app.draws != 6 {
		t.Errorf("Update/Draw calls = %d/%d, want 3/6", app.updates, app.draws)
	}
	if len(app.views) != 2 || app.views[0] != 0 || app.views[1] != 1 {
		t.Errorf("normalized views = %v, want [0 1]", app.views)
	}
	if e.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", e.Frames())
	}
	if got := win.Presented(); got != 3 {
		t.Errorf("window presented %d frames, want 3", got)
	}

	if x, y := win.Position(); x != 100 || y != 50 || !win.Borderless() {
		t.Errorf("window placed at %d,%d borderless=%v, want 100,50 borderless", x, y, win.Borderless())
	}
	if len(app.resizes) != 1 || app.resizes[0] != [2]int{16, 16} {
		t.Errorf("OnResize calls = %v, want [[16 16]]", app.resizes)
	}

	if got := display.Frames(); got != 3 {
		t.Errorf("display frames = %d, want 3", got)
	}
	if got := display.Registered(); got != 0 {
		t.Errorf("display registered textures after Run() = %d, want 0", got)
	}
	last, ok := display.LastParams()
	if !ok || last.TilesX != 2 || last.TilesY != 1 || last.Width != 32 || last.Height != 16 {
		t.Errorf("LastParams() = %+v, want a 2x1 quilt of 32x16", last)
	}
	if last.Offset != 1 || last.Zoom != 1 || last.Aspect != 1 {
		t.Errorf("LastParams() offset/zoom/aspect = %v/%v/%v, want 1/1/1", last.Offset, last.Zoom, last.Aspect)
	}
	if last.Image == nil {
		t.Error("LastParams().Image = nil, want the previous frame's quilt")
	}
	if display.Preview() == nil {
		t.Error("Preview() = nil, want a composited preview")
	}
	if e.Renderer() != nil {
		t.Error("Renderer() after Run() is not nil, want released")
	}
}

func TestEngineKeys(t *testing.T) {
	win := window.NewHeadless(window.WithSize(16, 16))
	defer win.Close()
	cfg := testConfig()
	cfg.Bridge.Enabled = false
	app := &testApp{}

	win.PressKey(common.KeyF2)
	win.PressKey(common.KeyEsc)

	e := NewEngine(WithDevice(newTestDevice(t)), WithWindow(win), WithConfig(cfg), WithMaxFrames(10))
	if err := e.Run(app); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !e.Config().Renderer.MSAAEnabled {
		t.Error("MSAA after F2 = false, want true")
	}
	if len(app.keys) != 2 || app.keys[0] != common.KeyF2 || app.keys[1] != common.KeyEsc {
		t.Errorf("forwarded keys = %v, want [F2 Esc]", app.keys)
	}
	if app.draws != 0 || e.Frames() != 0 {
		t.Errorf("draws = %d, frames = %d after Escape, want 0", app.draws, e.Frames())
	}
	if app.teardowns != 1 {
		t.Errorf("Teardown calls = %d, want 1", app.teardowns)
	}
}

func TestEnginePausesWhileMinimized(t *testing.T) {
	win := window.NewHeadless(window.WithSize(16, 16))
	defer win.Close()
	cfg := testConfig()
	cfg.Bridge.Enabled = false
	app := &testApp{}
	win.Minimize()

	e := NewEngine(WithDevice(newTestDevice(t)), WithWindow(win), WithConfig(cfg))
	go func() {
		time.Sleep(200 * time.Millisecond)
		e.Quit()
	}()
	if err := e.Run(app); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if app.draws != 0 || app.updates != 0 {
		t.Errorf("Update/Draw while minimized = %d/%d, want 0/0", app.updates, app.draws)
	}
}

func TestEngineDragResize(t *testing.T) {
	win := window.NewHeadless(window.WithSize(32, 16), window.WithSettleDelay(0))
	defer win.Close()
	cfg := testConfig()
	cfg.Bridge.Enabled = false
	app := &testApp{}
	win.DragResize(20, 10)

	e := NewEngine(WithDevice(newTestDevice(t)), WithWindow(win), WithConfig(cfg), WithMaxFrames(1))
	if err := e.Run(app); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(app.resizes) != 1 || app.resizes[0] != [2]int{20, 10} {
		t.Errorf("OnResize calls = %v, want [[20 10]]", app.resizes)
	}
	if app.draws != 2 {
		t.Errorf("Draw calls = %d, want 2", app.draws)
	}
}

func TestEngineConfigReload(t *testing.T) {
	win := window.NewHeadless(window.WithSize(32, 16))
	defer win.Close()
	display := bridge.NewVirtualDisplay(bridge.WithDisplaySize(16, 16))
	app := &testApp{}

	next := testConfig()
	next.Quilt.TilesX = 3
	next.Camera.FOV = 30
	win.Events().Push(event.ConfigReload{Path: "quilt.toml", Config: next})

	e := NewEngine(WithDevice(newTestDevice(t)), WithWindow(win), WithDisplay(display), WithConfig(testConfig()), WithMaxFrames(1))
	if err := e.Run(app); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if app.draws != 3 {
		t.Errorf("Draw calls = %d, want 3", app.draws)
	}
	if last, _ := display.LastParams(); last.TilesX != 3 || last.Width != 48 {
		t.Errorf("LastParams() = %+v, want 3 tiles and width 48", last)
	}
	if got := e.Camera().Fov(); got != 30 {
		t.Errorf("Camera().Fov() = %v, want 30", got)
	}
	if got := display.Registered(); got != 0 {
		t.Errorf("display registered textures after Run() = %d, want 0", got)
	}
}

func TestEngineConfigReloadRejectsOversizedQuilt(t *testing.T) {
	win := window.NewHeadless(window.WithSize(32, 16))
	defer win.Close()
	display := bridge.NewVirtualDisplay(bridge.WithDisplaySize(16, 16))
	app := &testApp{}

	next := testConfig()
	next.Quilt.TilesX = 3
	next.Quilt.MaxTextureSize = 2
	next.Camera.FOV = 30
	win.Events().Push(event.ConfigReload{Path: "quilt.toml", Config: next})

	e := NewEngine(WithDevice(newTestDevice(t)), WithWindow(win), WithDisplay(display), WithConfig(testConfig()), WithMaxFrames(1))
	if err := e.Run(app); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if app.draws != 2 {
		t.Errorf("Draw calls = %d, want 2", app.draws)
	}
	if last, _ := display.LastParams(); last.TilesX != 2 || last.Width != 32 {
		t.Errorf("LastParams() = %+v, want the original 2 tiles and width 32", last)
	}
	if got := e.Config().Quilt; got.TilesX != 2 || got.MaxTextureSize != 0 {
		t.Errorf("Config().Quilt = %+v, want the previous quilt section", got)
	}
	if got := e.Camera().Fov(); got != 30 {
		t.Errorf("Camera().Fov() = %v, want 30", got)
	}
}

func TestEngineRunErrors(t *testing.T) {
	if err := NewEngine().Run(nil); !errors.Is(err, ErrNoApplication) {
		t.Errorf("Run(nil) error = %v, want %v", err, ErrNoApplication)
	}

	win := window.NewHeadless(window.WithSize(16, 16))
	defer win.Close()
	app := &testApp{}
	e := NewEngine(
		WithDevice(newTestDevice(t)),
		WithWindow(win),
		WithDisplay(bridge.NewVirtualDisplay(bridge.WithInitFailures(1))),
		WithConfig(testConfig()),
	)
	if err := e.Run(app); !errors.Is(err, bridge.ErrBridgeInit) {
		t.Errorf("Run() with unreachable display error = %v, want %v", err, bridge.ErrBridgeInit)
	}
	if app.initialized != 0 || app.teardowns != 0 {
		t.Errorf("Initialize/Teardown calls = %d/%d, want 0/0", app.initialized, app.teardowns)
	}

	bad := testConfig()
	bad.Quilt.TilesX = 0
	if err := NewEngine(WithWindow(win), WithConfig(bad)).Run(app); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("Run() with invalid config error = %v, want %v", err, config.ErrInvalidConfig)
	}
}
