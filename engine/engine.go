package engine

import (
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/bridge"
	"github.com/Carmen-Shannon/oxy-quilt/engine/camera"
	"github.com/Carmen-Shannon/oxy-quilt/engine/config"
	"github.com/Carmen-Shannon/oxy-quilt/engine/event"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quilt/engine/profiler"
	"github.com/Carmen-Shannon/oxy-quilt/engine/renderer"
	"github.com/Carmen-Shannon/oxy-quilt/engine/window"
	"github.com/pkg/errors"
)

var (
	// ErrAlreadyRunning is returned by Run while another Run is in progress.
	ErrAlreadyRunning = errors.New("engine: already running")
	// ErrNoApplication is returned by Run without an application.
	ErrNoApplication = errors.New("engine: no application")
)

// pausePoll is how long the loop sleeps between event polls while rendering is paused.
const pausePoll = 10 * time.Millisecond

// engine implements the Engine interface.
// Owns the frame loop and everything it renders with.
type engine struct {
	mu *sync.Mutex

	cfg         *config.Config
	configPath  string
	watchConfig bool

	window   window.Window
	device   gpu.Device
	display  bridge.Display
	bridge   bridge.Bridge
	camera   camera.Camera
	renderer renderer.Renderer

	profiler         *profiler.Profiler
	profilingEnabled bool
	profilingSet     bool

	running          atomic.Bool
	quit             atomic.Bool
	frames           uint64
	maxFrames        uint64
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	lastQuilt        *image.NRGBA

	log *slog.Logger
}

// Engine is the main entry point for the engine.
// It owns the single-threaded frame loop: it drains window events, renders every quilt view, presents
// to the window and the display bridge, and waits for the GPU before the next frame.
type Engine interface {
	// Window returns the window, nil before Run created one.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer while Run is active.
	Renderer() renderer.Renderer

	// Camera returns the multi-view camera while Run is active.
	Camera() camera.Camera

	// Bridge returns the display bridge, or nil when none is connected.
	Bridge() bridge.Bridge

	// Config returns a copy of the configuration in effect.
	//
	// Returns:
	//   - *config.Config: a deep copy; changing it does not affect the engine
	Config() *config.Config

	// Profiler returns the frame statistics collector.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Frames returns the number of frames rendered by the current or last Run.
	Frames() uint64

	// Run sets everything up, runs app until the window closes, Quit is called or a fatal error
	// occurs, then releases everything in reverse order. Must be called from the goroutine that
	// created the window.
	//
	// Parameters:
	//   - app: the application to drive
	//
	// Returns:
	//   - error: the fatal error that ended the loop, or the first teardown error
	Run(app Application) error

	// Quit asks the loop to stop at the top of the next frame.
	// Safe to call multiple times and from any goroutine.
	Quit()
}

var _ Engine = &engine{}

// NewEngine creates a new Engine instance with the provided options.
// Nothing is opened until Run.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:  &sync.Mutex{},
		log: common.ComponentLogger("engine"),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func (e *engine) Window() window.Window       { return e.window }
func (e *engine) Renderer() renderer.Renderer { return e.renderer }
func (e *engine) Camera() camera.Camera       { return e.camera }
func (e *engine) Bridge() bridge.Bridge       { return e.bridge }
func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg == nil {
		return config.Default()
	}
	return e.cfg.Clone()
}

func (e *engine) EnableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = true
}

func (e *engine) DisableProfiler() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profilingEnabled = false
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

func (e *engine) Quit() {
	e.quit.Store(true)
}

func (e *engine) Run(app Application) (err error) {
	if app == nil {
		return ErrNoApplication
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)
	e.quit.Store(false)
	e.frames = 0
	e.lastQuilt = nil

	td := &teardown{log: e.log}
	defer func() {
		if terr := td.run(); terr != nil && err == nil {
			err = terr
		}
	}()

	if err := e.setup(td); err != nil {
		e.log.Error("engine setup failed", "error", err)
		return err
	}
	if err := app.Initialize(e); err != nil {
		e.log.Error("application initialize failed", "error", err)
		return errors.Wrap(err, "initialize application")
	}
	td.push("application", func() error {
		app.Teardown()
		return nil
	})

	e.log.Info("frame loop started", "layout", e.renderer.Quilt().Layout().String())
	if err := e.loop(app); err != nil {
		e.log.Error("frame loop stopped", "error", err, "frames", e.Frames())
		return err
	}
	e.log.Info("frame loop finished", "frames", e.Frames())
	return nil
}

// setup acquires every resource in order and registers its release with td.
func (e *engine) setup(td *teardown) error {
	cfg := e.cfg
	if e.configPath != "" {
		loaded, err := config.Load(e.configPath)
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		cfg = loaded
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	e.cfg = cfg
	if !e.profilingSet {
		e.profilingEnabled = cfg.Profiler.Enabled
	}
	e.mu.Unlock()
	e.profiler = profiler.NewProfiler(profiler.WithInterval(cfg.Profiler.Interval.Std()))

	if e.window == nil {
		w, err := window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithSize(cfg.Window.Width, cfg.Window.Height),
			window.WithBorderless(cfg.Window.Borderless),
		)
		if err != nil {
			return errors.Wrap(err, "create window")
		}
		e.window = w
		td.push("window", func() error {
			err := w.Close()
			e.window = nil
			return err
		})
	}

	if e.configPath != "" && e.watchConfig {
		watcher, err := config.Watch(e.configPath, e.window.Events())
		if err != nil {
			return err
		}
		td.push("config watcher", watcher.Close)
	}

	if err := e.setupBridge(td); err != nil {
		return err
	}

	if e.device == nil {
		dev, _, err := renderer.OpenDevice(e.window, cfg.AdapterPreference())
		if err != nil {
			return err
		}
		e.device = dev
		td.push("device", func() error {
			dev.Release()
			e.device = nil
			return nil
		})
	}

	opts, err := cfg.RendererOptions()
	if err != nil {
		return err
	}
	r, err := renderer.NewRenderer(e.device, e.window, opts...)
	if err != nil {
		return err
	}
	e.renderer = r
	td.push("renderer", func() error {
		err := r.Close()
		e.renderer = nil
		return err
	})

	if err := e.configureQuilt(); err != nil {
		return err
	}
	layout := r.Quilt().Layout()
	if e.camera == nil {
		cam, err := camera.NewCamera(camera.WithParams(cfg.CameraParams(layout.Aspect())))
		if err != nil {
			return err
		}
		e.camera = cam
	} else if err := e.camera.SetAspect(layout.Aspect()); err != nil {
		return err
	}

	if e.bridge != nil {
		if err := r.Quilt().Register(e.bridge); err != nil {
			return err
		}
		td.push("quilt registration", r.Quilt().Unregister)
	}
	return nil
}

// setupBridge connects a session when bridging is enabled and places the window over the display.
// Without a display controller the quilt goes to an in-process virtual display.
func (e *engine) setupBridge(td *teardown) error {
	cfg := e.cfg
	place := e.bridge != nil || e.display != nil
	if e.bridge == nil && cfg.Bridge.Enabled {
		display := e.display
		if display == nil {
			w, h := e.window.FramebufferSize()
			display = bridge.NewVirtualDisplay(bridge.WithDisplaySize(w, h))
			e.log.Info("no display controller, using a virtual display", "width", w, "height", h)
		}
		b, err := bridge.NewSession(display,
			bridge.WithAppName(cfg.Bridge.AppName),
			bridge.WithConnectTimeout(cfg.Bridge.ConnectTimeout.Std()),
			bridge.WithPreferredTiles(cfg.Quilt.TilesX, cfg.Quilt.TilesY),
		)
		if err != nil {
			return err
		}
		e.bridge = b
		td.push("bridge", func() error {
			err := b.Close()
			e.bridge = nil
			return err
		})
	}
	if e.bridge == nil || !place {
		return nil
	}

	x, y := e.bridge.DisplayPosition()
	w, h := e.bridge.DisplaySize()
	if err := e.window.Place(x, y, w, h, true); err != nil {
		return errors.Wrap(err, "place window over display")
	}
	return nil
}

// configureQuilt sizes the quilt from the configuration, the display and the device limits.
func (e *engine) configureQuilt() error {
	q := e.cfg.Quilt
	tw, th := q.TileWidth, q.TileHeight
	if tw == 0 || th == 0 {
		if e.bridge != nil {
			tw, th = e.bridge.DisplaySize()
		} else {
			tw, th = e.window.FramebufferSize()
		}
	}
	maxDim := q.MaxTextureSize
	if e.bridge != nil {
		if bm := e.bridge.MaxTextureSize(); maxDim == 0 || bm < maxDim {
			maxDim = bm
		}
	}
	if err := e.renderer.ConfigureQuilt(q.TilesX, q.TilesY, tw, th, maxDim); err != nil {
		return err
	}
	if e.camera != nil {
		return e.camera.SetAspect(e.renderer.Quilt().Layout().Aspect())
	}
	return nil
}

func (e *engine) loop(app Application) error {
	last := time.Now()
	for !e.quit.Load() {
		frameStart := time.Now()

		e.window.PollEvents()
		if err := e.handleEvents(app); err != nil {
			return err
		}
		if e.quit.Load() {
			break
		}
		if e.paused() {
			time.Sleep(pausePoll)
			last = time.Now()
			continue
		}

		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		app.Update(dt)
		if err := e.renderFrame(app, dt); err != nil {
			return err
		}

		e.mu.Lock()
		e.frames++
		frames, profiling, limit := e.frames, e.profilingEnabled, e.renderFrameLimit
		e.mu.Unlock()

		if profiling && e.profiler.Tick() {
			e.window.SetTitle(e.profiler.Caption(e.cfg.Window.Title))
		}
		if e.maxFrames > 0 && frames >= e.maxFrames {
			e.Quit()
		}
		if limit > 0 {
			if remaining := limit - time.Since(frameStart); remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
	return nil
}

// paused reports whether rendering is suspended: minimized, or in the middle of a drag resize.
func (e *engine) paused() bool {
	switch e.window.State() {
	case event.StateMinimized, event.StateResizing:
		return true
	}
	return false
}

func (e *engine) handleEvents(app Application) error {
	for _, ev := range e.window.Events().Drain() {
		switch ev := ev.(type) {
		case event.Resize:
			switch ev.State {
			case event.StateMinimized:
				e.log.Debug("rendering paused", "state", ev.State.String())
			case event.StateResizing:
				// applied on ResizeComplete
			default:
				if err := e.resize(app, ev.Width, ev.Height); err != nil {
					return err
				}
			}
		case event.ResizeComplete:
			if err := e.resize(app, ev.Width, ev.Height); err != nil {
				return err
			}
		case event.Close:
			e.Quit()
		case event.Key:
			if err := e.handleKey(app, ev); err != nil {
				return err
			}
		case event.ConfigReload:
			if err := e.applyConfig(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *engine) resize(app Application, width, height int) error {
	if err := e.renderer.Resize(width, height); err != nil {
		return errors.Wrap(err, "resize")
	}
	sc := e.renderer.SwapChain()
	app.OnResize(sc.Width(), sc.Height())
	return nil
}

func (e *engine) handleKey(app Application, ev event.Key) error {
	if ev.Action == event.KeyPress {
		switch ev.Code {
		case common.KeyEsc:
			e.Quit()
		case common.KeyF2:
			enabled := !e.renderer.MSAAEnabled()
			if err := e.renderer.SetMSAA(enabled); err != nil {
				return errors.Wrap(err, "toggle msaa")
			}
			e.mu.Lock()
			e.cfg.Renderer.MSAAEnabled = enabled
			e.mu.Unlock()
			sc := e.renderer.SwapChain()
			app.OnResize(sc.Width(), sc.Height())
			e.log.Info("msaa toggled", "enabled", enabled)
		}
	}
	if l, ok := app.(KeyListener); ok {
		l.OnKey(ev.Code, ev.Action)
	}
	return nil
}

// applyConfig applies a reloaded configuration. Camera values apply immediately, quilt layout
// changes rebuild the quilt, and values that need a restart are ignored.
func (e *engine) applyConfig(ev event.ConfigReload) error {
	if ev.Err != nil {
		e.log.Warn("config reload ignored", "path", ev.Path, "error", ev.Err)
		return nil
	}
	next, ok := ev.Config.(*config.Config)
	if !ok || next == nil {
		return nil
	}
	if err := e.camera.SetParams(next.OverlayCamera(e.camera.Params())); err != nil {
		e.log.Warn("config reload rejected", "path", ev.Path, "error", err)
		return nil
	}

	e.mu.Lock()
	prev := e.cfg
	merged := next.Clone()
	// window, device, swap chain and bridge connection settings only apply at start-up
	merged.Window = prev.Window
	msaa := merged.Renderer.MSAAEnabled
	merged.Renderer = prev.Renderer
	merged.Renderer.MSAAEnabled = msaa
	merged.Bridge.Enabled = prev.Bridge.Enabled
	merged.Bridge.AppName = prev.Bridge.AppName
	e.cfg = merged
	e.mu.Unlock()

	if merged.Quilt != prev.Quilt {
		e.renderer.SetPreview(merged.Quilt.Preview)
		e.lastQuilt = nil
		if err := e.configureQuilt(); errors.Is(err, renderer.ErrQuiltTooLarge) {
			e.log.Warn("quilt reload rejected", "path", ev.Path, "error", err)
			e.mu.Lock()
			e.cfg.Quilt = prev.Quilt
			e.mu.Unlock()
			e.renderer.SetPreview(prev.Quilt.Preview)
		} else if err != nil {
			return errors.Wrap(err, "apply quilt config")
		}
	}
	if merged.Renderer.MSAAEnabled != e.renderer.MSAAEnabled() {
		if err := e.renderer.SetMSAA(merged.Renderer.MSAAEnabled); err != nil {
			return errors.Wrap(err, "apply msaa config")
		}
	}
	e.log.Info("config applied", "path", ev.Path, "layout", e.renderer.Quilt().Layout().String())
	return nil
}
