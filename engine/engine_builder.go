package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/engine/bridge"
	"github.com/Carmen-Shannon/oxy-quilt/engine/camera"
	"github.com/Carmen-Shannon/oxy-quilt/engine/config"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quilt/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
		e.profilingSet = true
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally. The engine does not close a window it did not create.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithConfig sets the configuration. It is validated when Run starts.
//
// Parameters:
//   - cfg: the configuration; nil uses config.Default
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg *config.Config) EngineBuilderOption {
	return func(e *engine) {
		e.cfg = cfg
	}
}

// WithConfigFile loads the configuration from path when Run starts and, when watch is true,
// applies changes to the file while running.
//
// Parameters:
//   - path: the TOML file
//   - watch: reload the file when it changes
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfigFile(path string, watch bool) EngineBuilderOption {
	return func(e *engine) {
		e.configPath = path
		e.watchConfig = watch
	}
}

// WithDevice renders on dev instead of opening one from the adapter attempt list. The engine does
// not release a device it did not open.
func WithDevice(dev gpu.Device) EngineBuilderOption {
	return func(e *engine) {
		e.device = dev
	}
}

// WithDisplay connects a bridge session to display when Run starts. The window is placed borderless
// over the display.
//
// Parameters:
//   - d: the display controller
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDisplay(d bridge.Display) EngineBuilderOption {
	return func(e *engine) {
		e.display = d
	}
}

// WithBridge uses an already connected bridge. The engine does not close a bridge it did not create.
func WithBridge(b bridge.Bridge) EngineBuilderOption {
	return func(e *engine) {
		e.bridge = b
	}
}

// WithCamera uses c instead of a camera built from the configuration.
func WithCamera(c camera.Camera) EngineBuilderOption {
	return func(e *engine) {
		e.camera = c
	}
}

// WithMaxFrames stops Run after n rendered frames. Zero runs until the window closes.
//
// Parameters:
//   - n: frame budget
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMaxFrames(n uint64) EngineBuilderOption {
	return func(e *engine) {
		e.maxFrames = n
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}
