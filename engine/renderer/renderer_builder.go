package renderer

import (
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the swap chain present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode gpu.PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.swapConfig.PresentMode = mode
	}
}

// WithMSAA enables or disables multisampling of the window targets at creation.
// The sample count is MSAA4x unless WithSampleCount says otherwise.
//
// Parameters:
//   - enabled: true to start with multisampling on
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.swapConfig.MSAA = enabled
	}
}

// WithSampleCount sets the sample count used when multisampling is on.
// Counts above 4 are adapter-dependent; creation fails with ErrFeatureQuery when unsupported.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the sample count option to a renderer
func WithSampleCount(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.swapConfig.SampleCount = count
	}
}

// WithBackBufferFormat sets the swap chain color format.
//
// Parameters:
//   - format: a color format, RGBA8Unorm by default
//
// Returns:
//   - RendererBuilderOption: a function that applies the format option to a renderer
func WithBackBufferFormat(format gpu.Format) RendererBuilderOption {
	return func(r *renderer) {
		r.swapConfig.BackBufferFormat = format
	}
}

// WithDepthStencilFormat sets the format of the window depth buffer view.
//
// Parameters:
//   - format: a depth format, D24UnormS8Uint by default
//
// Returns:
//   - RendererBuilderOption: a function that applies the format option to a renderer
func WithDepthStencilFormat(format gpu.Format) RendererBuilderOption {
	return func(r *renderer) {
		r.swapConfig.DepthStencilFormat = format
	}
}

// WithSwapBufferCount sets the number of swap chain back buffers. Values below 2 are raised to 2.
//
// Parameters:
//   - count: the number of back buffers
//
// Returns:
//   - RendererBuilderOption: a function that applies the buffer count option to a renderer
func WithSwapBufferCount(count int) RendererBuilderOption {
	return func(r *renderer) {
		r.swapConfig.BufferCount = count
	}
}

// WithFlushTimeout bounds every fence wait.
//
// Parameters:
//   - d: the wait bound, DefaultFlushTimeout when zero
//
// Returns:
//   - RendererBuilderOption: a function that applies the timeout option to a renderer
func WithFlushTimeout(d time.Duration) RendererBuilderOption {
	return func(r *renderer) {
		r.flushTimeout = d
	}
}

// WithPreview toggles drawing the quilt into the window and reading it back every frame.
//
// Parameters:
//   - enabled: true to draw and read back the quilt, the default
//
// Returns:
//   - RendererBuilderOption: a function that applies the preview option to a renderer
func WithPreview(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.preview = enabled
	}
}

// WithClearColor sets the clear color of the window back buffer.
//
// Parameters:
//   - c: the clear color, opaque black by default
//
// Returns:
//   - RendererBuilderOption: a function that applies the clear color option to a renderer
func WithClearColor(c common.Color) RendererBuilderOption {
	return func(r *renderer) {
		r.clearColor = c
	}
}
