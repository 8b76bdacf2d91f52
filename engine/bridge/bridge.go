// Package bridge hands the rendered quilt to a light-field display. A Session drives a Display
// controller: it connects, reads the display geometry and forwards shared texture handles and per
// frame present parameters.
package bridge

import (
	"image"

	"github.com/pkg/errors"
)

const (
	// MaxTextureCap bounds the quilt texture size regardless of what the display reports.
	MaxTextureCap = 16384
	// DefaultTilesX and DefaultTilesY are the quilt layout used when the caller has no preference.
	DefaultTilesX = 5
	DefaultTilesY = 9
)

var (
	// ErrBridgeInit is returned when the display controller cannot be initialized or has no window.
	ErrBridgeInit = errors.New("bridge: initialization failed")
	// ErrNotRegistered is returned when a handle is presented or unregistered without registration.
	ErrNotRegistered = errors.New("bridge: texture not registered")
	// ErrAlreadyRegistered is returned when a handle is registered twice.
	ErrAlreadyRegistered = errors.New("bridge: texture already registered")
	// ErrClosed is returned by every call after Close.
	ErrClosed = errors.New("bridge: session closed")
	// ErrInvalidParams is returned by Present for a quilt description that cannot be interpreted.
	ErrInvalidParams = errors.New("bridge: invalid present parameters")
)

// DisplayInfo describes the output window the display controller created.
type DisplayInfo struct {
	Width, Height  int
	X, Y           int
	MaxTextureSize int
}

// PresentParams describes one quilt frame.
type PresentParams struct {
	// Handle is the shared texture handle passed to RegisterTexture.
	Handle uintptr
	// Width and Height are the quilt texture size in pixels.
	Width, Height int
	TilesX        int
	TilesY        int
	Focus         float32
	Offset        float32
	// Aspect is the width / height of one view.
	Aspect float32
	Zoom   float32
	// DepthLoc tells the display where depth lives for RGBD input; 0 for plain quilts.
	DepthLoc int
	// Image optionally carries the quilt pixels for displays that composite on the CPU. Row 0 is the
	// top of the quilt; view 0 sits at the bottom-left.
	Image *image.NRGBA
}

// Validate reports parameters that cannot describe a quilt.
func (p PresentParams) Validate() error {
	switch {
	case p.Handle == 0:
		return errors.Wrap(ErrInvalidParams, "handle is zero")
	case p.Width <= 0 || p.Height <= 0:
		return errors.Wrapf(ErrInvalidParams, "quilt size %dx%d", p.Width, p.Height)
	case p.TilesX <= 0 || p.TilesY <= 0:
		return errors.Wrapf(ErrInvalidParams, "tiles %dx%d", p.TilesX, p.TilesY)
	case p.Image != nil && (p.Image.Bounds().Dx() != p.Width || p.Image.Bounds().Dy() != p.Height):
		return errors.Wrapf(ErrInvalidParams, "image %v does not match quilt %dx%d", p.Image.Bounds().Size(), p.Width, p.Height)
	}
	return nil
}

// Views returns the number of views in the quilt.
func (p PresentParams) Views() int {
	return p.TilesX * p.TilesY
}

// ViewRect returns the pixel rectangle of view i inside the quilt image. Views fill rows left to
// right starting at the bottom row.
func (p PresentParams) ViewRect(i int) image.Rectangle {
	tw, th := p.Width/p.TilesX, p.Height/p.TilesY
	col, row := i%p.TilesX, i/p.TilesX
	x, y := col*tw, (p.TilesY-1-row)*th
	return image.Rect(x, y, x+tw, y+th)
}

// Display is the controller side of a light-field display: the native SDK or an in-process stand-in.
type Display interface {
	// Initialize connects to the display service and creates the output window.
	//
	// Parameters:
	//   - appName: the name the service shows for this client
	//
	// Returns:
	//   - error: any connection failure; a failure wrapped with backoff.Permanent is not retried
	Initialize(appName string) error

	// Info returns the output window geometry. Only valid after Initialize.
	Info() (DisplayInfo, error)

	RegisterTexture(handle uintptr) error
	UnregisterTexture(handle uintptr) error

	// Present submits one quilt frame to the display.
	Present(p PresentParams) error

	Close() error
}

// Bridge is what the frame driver talks to.
type Bridge interface {
	// MaxTextureSize returns the largest quilt dimension the display accepts, capped at MaxTextureCap.
	MaxTextureSize() int

	// PreferredTiles returns the quilt layout for this display.
	//
	// Returns:
	//   - x, y: tile columns and rows
	PreferredTiles() (x, y int)

	// DisplaySize returns the output window size, which is also the requested size of one view.
	DisplaySize() (width, height int)

	// DisplayPosition returns the output window's desktop position.
	DisplayPosition() (x, y int)

	// RegisterTexture shares a texture handle with the display. Call once per texture.
	//
	// Parameters:
	//   - handle: the shared handle of the quilt color texture
	//
	// Returns:
	//   - error: ErrAlreadyRegistered, ErrClosed or a controller error
	RegisterTexture(handle uintptr) error

	// UnregisterTexture releases a handle shared with RegisterTexture.
	//
	// Parameters:
	//   - handle: the handle to release
	//
	// Returns:
	//   - error: ErrNotRegistered, ErrClosed or a controller error
	UnregisterTexture(handle uintptr) error

	// Present hands one finished quilt to the display.
	//
	// Parameters:
	//   - p: the quilt frame; p.Handle must be registered
	//
	// Returns:
	//   - error: ErrInvalidParams, ErrNotRegistered, ErrClosed or a controller error
	Present(p PresentParams) error

	// Close unregisters any remaining textures and shuts the controller down.
	Close() error
}
