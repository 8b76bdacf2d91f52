// Package event carries window and engine notifications from callbacks to the frame loop. Window
// callbacks only push into a Queue; the frame driver drains it once per frame.
package event

import (
	"fmt"
	"time"
)

// Type identifies the kind of an Event.
type Type uint32

const (
	TypeResize Type = 0x200 + iota
	TypeResizeComplete
	TypeClose
	TypeKey
	TypeConfigReload
)

func (t Type) String() string {
	switch t {
	case TypeResize:
		return "resize"
	case TypeResizeComplete:
		return "resize_complete"
	case TypeClose:
		return "close"
	case TypeKey:
		return "key"
	case TypeConfigReload:
		return "config_reload"
	}
	return fmt.Sprintf("type(%#x)", uint32(t))
}

// WindowState is the window's presentation state. Rendering pauses while Minimized and resizes are
// deferred while Resizing.
type WindowState int

const (
	StateNormal WindowState = iota
	StateMinimized
	StateMaximized
	StateResizing
)

func (s WindowState) String() string {
	switch s {
	case StateMinimized:
		return "minimized"
	case StateMaximized:
		return "maximized"
	case StateResizing:
		return "resizing"
	default:
		return "normal"
	}
}

// Event is a queued notification.
type Event interface {
	Type() Type
	// Timestamp returns when the event was pushed.
	Timestamp() time.Time
}

// header is embedded by every event to carry its timestamp.
type header struct {
	Time time.Time
}

func (h header) Timestamp() time.Time { return h.Time }

func (h *header) stamp(t time.Time) {
	if h.Time.IsZero() {
		h.Time = t
	}
}

// Resize reports a new client size and the window state that caused it.
type Resize struct {
	header
	Width, Height int
	State         WindowState
}

func (Resize) Type() Type { return TypeResize }

// ResizeComplete reports the end of an interactive drag resize with the final client size.
type ResizeComplete struct {
	header
	Width, Height int
}

func (ResizeComplete) Type() Type { return TypeResizeComplete }

// Close asks the frame loop to stop.
type Close struct {
	header
}

func (Close) Type() Type { return TypeClose }

// KeyAction is what happened to a key.
type KeyAction int

const (
	KeyPress KeyAction = iota
	KeyRelease
	KeyRepeat
)

// Key reports a key transition. Code is one of the common.Key* values.
type Key struct {
	header
	Code   int
	Action KeyAction
}

func (Key) Type() Type { return TypeKey }

// ConfigReload carries a configuration that changed on disk. Config holds the decoded value, or
// Err explains why the file could not be reloaded.
type ConfigReload struct {
	header
	Path   string
	Config any
	Err    error
}

func (ConfigReload) Type() Type { return TypeConfigReload }
