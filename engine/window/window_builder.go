package window

import "time"

// WindowBuilderOption is a functional option for configuring a window.
// Use the With* functions to create options.
type WindowBuilderOption func(w *baseWindow)

// WithTitle sets the window title displayed in the title bar.
//
// Parameters:
//   - title: the window title text
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(w *baseWindow) {
		w.title = title
	}
}

// WithSize sets the initial client size.
//
// Parameters:
//   - width, height: initial size in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSize(width, height int) WindowBuilderOption {
	return func(w *baseWindow) {
		w.width, w.height = width, height
	}
}

// WithMinSize sets the smallest size a user can drag the window to. Zero leaves it unbounded.
//
// Parameters:
//   - width, height: minimum size in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithMinSize(width, height int) WindowBuilderOption {
	return func(w *baseWindow) {
		w.minWidth, w.minHeight = width, height
	}
}

// WithMaxSize sets the largest size a user can drag the window to. Zero leaves it unbounded.
//
// Parameters:
//   - width, height: maximum size in pixels
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithMaxSize(width, height int) WindowBuilderOption {
	return func(w *baseWindow) {
		w.maxWidth, w.maxHeight = width, height
	}
}

// WithBorderless creates the window without decorations.
func WithBorderless(borderless bool) WindowBuilderOption {
	return func(w *baseWindow) {
		w.borderless = borderless
	}
}

// WithSettleDelay sets how long a drag resize must be idle before ResizeComplete is pushed.
//
// Parameters:
//   - d: the settle delay
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSettleDelay(d time.Duration) WindowBuilderOption {
	return func(w *baseWindow) {
		if d >= 0 {
			w.settleDelay = d
		}
	}
}
