package renderer

import "github.com/pkg/errors"

var (
	// ErrFenceTimeout is returned when a fence wait exceeds its bound on a device that is still healthy.
	ErrFenceTimeout = errors.New("renderer: fence wait timed out")
	// ErrFeatureQuery is returned when the device cannot report multisample support for the back buffer format.
	ErrFeatureQuery = errors.New("renderer: feature support query failed")
	// ErrNotCreated is returned when a manager is used before Create.
	ErrNotCreated = errors.New("renderer: target not created")
	// ErrAlreadyRegistered is returned by a second Register of the same quilt target.
	ErrAlreadyRegistered = errors.New("renderer: quilt already registered with the bridge")
	// ErrQuiltTooLarge is returned when the tile counts alone exceed the texture size limit.
	ErrQuiltTooLarge = errors.New("renderer: quilt does not fit the texture size limit")
	// ErrFrameNotStarted is returned when frame commands are issued outside BeginFrame/EndFrame.
	ErrFrameNotStarted = errors.New("renderer: no frame in progress")
)
