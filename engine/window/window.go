package window

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/engine/event"
)

// DefaultSettleDelay is how long a drag resize must stay still before it is reported complete.
const DefaultSettleDelay = 150 * time.Millisecond

// Window is the platform window the frame driver renders into. Platform callbacks never call into
// the renderer; they only update the window state and push events into Events().
type Window interface {
	// FramebufferSize returns the client area size in pixels. It makes a Window a gpu.SurfaceTarget.
	//
	// Returns:
	//   - width, height: the framebuffer size in pixels
	FramebufferSize() (width, height int)

	// Width returns the current client area width in pixels.
	Width() int

	// Height returns the current client area height in pixels.
	Height() int

	// State returns the current presentation state.
	State() event.WindowState

	// Events returns the queue the window pushes Resize, ResizeComplete, Key and Close events into.
	Events() *event.Queue

	// PollEvents processes pending platform events without blocking. Call it once per frame.
	PollEvents()

	Title() string
	SetTitle(title string)

	// Place moves and sizes the window, e.g. over a light-field display.
	//
	// Parameters:
	//   - x, y: desktop position of the window
	//   - width, height: client size in pixels
	//   - borderless: remove the window decorations
	//
	// Returns:
	//   - error: an error if the window is closed
	Place(x, y, width, height int, borderless bool) error

	// IsRunning returns false once the window was asked to close.
	IsRunning() bool

	// RequestClose asks the frame loop to stop by pushing a Close event.
	RequestClose()

	// Close destroys the window and releases platform resources.
	Close() error
}

// baseWindow is the platform independent state shared by every Window implementation. It turns
// raw platform notifications into queued events.
type baseWindow struct {
	mu          *sync.Mutex
	title       string
	width       int
	height      int
	minWidth    int
	minHeight   int
	maxWidth    int
	maxHeight   int
	borderless  bool
	state       event.WindowState
	queue       *event.Queue
	running     bool
	settleDelay time.Duration
	lastResize  time.Time
	now         func() time.Time
}

func newBaseWindow() *baseWindow {
	return &baseWindow{
		mu:          &sync.Mutex{},
		title:       "oxy-quilt",
		width:       800,
		height:      600,
		state:       event.StateNormal,
		queue:       event.NewQueue(),
		running:     true,
		settleDelay: DefaultSettleDelay,
		now:         time.Now,
	}
}

func (w *baseWindow) FramebufferSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

func (w *baseWindow) Width() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width
}

func (w *baseWindow) Height() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.height
}

func (w *baseWindow) State() event.WindowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *baseWindow) Events() *event.Queue {
	return w.queue
}

func (w *baseWindow) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

func (w *baseWindow) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *baseWindow) RequestClose() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.queue.Push(event.Close{})
}

// onFramebufferSize handles a size change that is not a minimize or maximize, i.e. an interactive
// drag. Zero sizes arrive while minimizing and are left to onIconify.
func (w *baseWindow) onFramebufferSize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	w.mu.Lock()
	if w.state == event.StateMinimized || (width == w.width && height == w.height && w.state != event.StateResizing) {
		w.mu.Unlock()
		return
	}
	w.width, w.height = width, height
	if w.state != event.StateMaximized {
		w.state = event.StateResizing
		w.lastResize = w.now()
	}
	state := w.state
	w.mu.Unlock()

	w.queue.Push(event.Resize{Width: width, Height: height, State: state})
}

// onIconify handles minimize and restore.
func (w *baseWindow) onIconify(iconified bool) {
	w.mu.Lock()
	if iconified {
		w.state = event.StateMinimized
	} else {
		w.state = event.StateNormal
	}
	ev := event.Resize{Width: w.width, Height: w.height, State: w.state}
	w.mu.Unlock()

	w.queue.Push(ev)
}

// onMaximize handles maximize and restore from maximized. The new size follows immediately.
func (w *baseWindow) onMaximize(maximized bool, width, height int) {
	w.mu.Lock()
	if maximized {
		w.state = event.StateMaximized
	} else {
		w.state = event.StateNormal
	}
	if width > 0 && height > 0 {
		w.width, w.height = width, height
	}
	ev := event.Resize{Width: w.width, Height: w.height, State: w.state}
	w.mu.Unlock()

	w.queue.Push(ev)
}

func (w *baseWindow) onKey(code int, action event.KeyAction) {
	w.queue.Push(event.Key{Code: code, Action: action})
}

func (w *baseWindow) onClose() {
	w.RequestClose()
}

// settle reports the end of a drag once no resize has arrived for the settle delay.
func (w *baseWindow) settle() {
	w.mu.Lock()
	if w.state != event.StateResizing || w.now().Sub(w.lastResize) < w.settleDelay {
		w.mu.Unlock()
		return
	}
	w.state = event.StateNormal
	ev := event.ResizeComplete{Width: w.width, Height: w.height}
	w.mu.Unlock()

	w.queue.Push(ev)
}
