package window

import (
	"image"

	"github.com/Carmen-Shannon/oxy-quilt/engine/event"
	"github.com/pkg/errors"
)

// HeadlessWindow is an offscreen Window. It keeps the last presented image instead of showing it and
// lets callers drive the same resize and input paths a desktop window would.
type HeadlessWindow interface {
	Window

	// PresentImage receives a presented frame. It makes the window a present sink for the software
	// device and a preview sink for the virtual display.
	PresentImage(img *image.RGBA)

	// LastImage returns the most recently presented frame, or nil.
	LastImage() *image.RGBA

	// Presented returns how many frames were presented.
	Presented() int

	// Position returns the position set by Place.
	Position() (x, y int)

	// Borderless reports whether the window is undecorated.
	Borderless() bool

	// DragResize simulates one step of an interactive resize.
	DragResize(width, height int)

	Minimize()
	Restore()

	// Maximize simulates maximizing to the given size.
	Maximize(width, height int)

	// PressKey simulates a key press followed by its release.
	PressKey(code int)
}

type headlessWindow struct {
	*baseWindow
	x, y      int
	closed    bool
	last      *image.RGBA
	presented int
}

var _ HeadlessWindow = &headlessWindow{}

// NewHeadless creates an offscreen window.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - HeadlessWindow: the new window
func NewHeadless(options ...WindowBuilderOption) HeadlessWindow {
	base := newBaseWindow()
	for _, opt := range options {
		opt(base)
	}
	return &headlessWindow{baseWindow: base}
}

func (w *headlessWindow) PollEvents() {
	w.settle()
}

func (w *headlessWindow) SetTitle(title string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.title = title
}

func (w *headlessWindow) Place(x, y, width, height int, borderless bool) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return errors.New("window is closed")
	}
	w.x, w.y = x, y
	w.borderless = borderless
	resized := width != w.width || height != w.height
	w.width, w.height = width, height
	w.state = event.StateNormal
	w.mu.Unlock()

	if resized {
		w.queue.Push(event.Resize{Width: width, Height: height, State: event.StateNormal})
	}
	return nil
}

func (w *headlessWindow) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.running = false
	w.mu.Unlock()
	w.queue.Close()
	return nil
}

func (w *headlessWindow) PresentImage(img *image.RGBA) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = img
	w.presented++
}

func (w *headlessWindow) LastImage() *image.RGBA {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *headlessWindow) Presented() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.presented
}

func (w *headlessWindow) Position() (x, y int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.x, w.y
}

func (w *headlessWindow) Borderless() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.borderless
}

func (w *headlessWindow) DragResize(width, height int) {
	w.onFramebufferSize(width, height)
}

func (w *headlessWindow) Minimize() {
	w.onIconify(true)
}

func (w *headlessWindow) Restore() {
	if w.State() == event.StateMaximized {
		w.onMaximize(false, 0, 0)
		return
	}
	w.onIconify(false)
}

func (w *headlessWindow) Maximize(width, height int) {
	w.onMaximize(true, width, height)
}

func (w *headlessWindow) PressKey(code int) {
	w.onKey(code, event.KeyPress)
	w.onKey(code, event.KeyRelease)
}
