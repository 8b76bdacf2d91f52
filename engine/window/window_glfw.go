package window

import (
	"runtime"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/event"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
)

// glfwWindow is a desktop window backed by GLFW.
type glfwWindow struct {
	*baseWindow
	window *glfw.Window
}

var _ Window = &glfwWindow{}

// NewWindow creates a GLFW window without a client API; the GPU backend creates its own surface.
// The calling goroutine is locked to its OS thread and must run the frame loop.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the created window
//   - error: an error if GLFW cannot initialize or create the window
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	base := newBaseWindow()
	for _, opt := range options {
		opt(base)
	}

	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "initialize GLFW")
	}

	// WebGPU provides its own graphics API, so disable OpenGL context creation.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	if base.borderless {
		glfw.WindowHint(glfw.Decorated, glfw.False)
	}
	win, err := glfw.CreateWindow(base.width, base.height, base.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "create GLFW window")
	}
	win.SetSizeLimits(limit(base.minWidth), limit(base.minHeight), limit(base.maxWidth), limit(base.maxHeight))

	w := &glfwWindow{baseWindow: base, window: win}

	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		switch action {
		case glfw.Press:
			w.onKey(int(key), event.KeyPress)
		case glfw.Repeat:
			w.onKey(int(key), event.KeyRepeat)
		case glfw.Release:
			w.onKey(int(key), event.KeyRelease)
		}
	})

	// Framebuffer size rather than window size: on high-DPI displays they differ and the swap chain
	// needs pixels.
	win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.onFramebufferSize(width, height)
	})
	win.SetIconifyCallback(func(_ *glfw.Window, iconified bool) {
		w.onIconify(iconified)
	})
	win.SetMaximizeCallback(func(gw *glfw.Window, maximized bool) {
		fbw, fbh := gw.GetFramebufferSize()
		w.onMaximize(maximized, fbw, fbh)
	})
	win.SetCloseCallback(func(_ *glfw.Window) {
		w.onClose()
	})

	fbw, fbh := win.GetFramebufferSize()
	base.mu.Lock()
	base.width, base.height = fbw, fbh
	base.mu.Unlock()

	common.ComponentLogger("window").Info("window created", "title", base.title, "width", fbw, "height", fbh)
	return w, nil
}

func limit(v int) int {
	if v <= 0 {
		return glfw.DontCare
	}
	return v
}

// SurfaceDescriptor returns the platform surface descriptor (HWND, X11, Wayland or Metal layer)
// for the WebGPU backend.
//
// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func (w *glfwWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.window == nil {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.window)
}

func (w *glfwWindow) PollEvents() {
	if w.window == nil {
		return
	}
	glfw.PollEvents()
	if w.window.ShouldClose() && w.IsRunning() {
		w.RequestClose()
	}
	w.settle()
}

func (w *glfwWindow) SetTitle(title string) {
	w.mu.Lock()
	w.title = title
	w.mu.Unlock()
	if w.window != nil {
		w.window.SetTitle(title)
	}
}

func (w *glfwWindow) Place(x, y, width, height int, borderless bool) error {
	if w.window == nil {
		return errors.New("window is closed")
	}
	decorated := glfw.True
	if borderless {
		decorated = glfw.False
	}
	w.window.SetAttrib(glfw.Decorated, decorated)
	w.window.SetSizeLimits(glfw.DontCare, glfw.DontCare, glfw.DontCare, glfw.DontCare)
	w.window.SetPos(x, y)
	w.window.SetSize(width, height)

	w.mu.Lock()
	w.borderless = borderless
	w.mu.Unlock()
	return nil
}

func (w *glfwWindow) Close() error {
	if w.window == nil {
		return nil
	}
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	w.window.Destroy()
	w.window = nil
	glfw.Terminate()
	w.queue.Close()
	return nil
}
