package bridge

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// ErrDisplayUnavailable is what a VirtualDisplay returns from Initialize while simulating an
// unreachable display service.
var ErrDisplayUnavailable = errors.New("bridge: display service unavailable")

// PreviewSink receives the composited preview of every presented quilt.
type PreviewSink interface {
	PresentImage(img *image.RGBA)
}

// VirtualDisplay is an in-process Display. It records what it is sent and renders the centre view
// of each quilt that carries pixels into a preview image the size of the display.
type VirtualDisplay interface {
	Display

	// Registered returns the number of textures currently registered.
	Registered() int

	// Frames returns how many quilts have been presented.
	Frames() uint64

	// LastParams returns the parameters of the most recent Present.
	//
	// Returns:
	//   - PresentParams: the last frame, Image included
	//   - bool: false if nothing was presented yet
	LastParams() (PresentParams, bool)

	// Preview returns the last composited preview, or nil when no presented quilt carried pixels.
	Preview() *image.RGBA
}

type virtualDisplay struct {
	mu           *sync.Mutex
	info         DisplayInfo
	initFailures int
	initialized  bool
	closed       bool
	appName      string
	handles      map[uintptr]struct{}
	frames       uint64
	last         PresentParams
	preview      *image.RGBA
	sink         PreviewSink
	scaler       draw.Scaler
}

var _ VirtualDisplay = &virtualDisplay{}

// NewVirtualDisplay creates a 1440x2560 display at the desktop origin with a 16384 texture limit.
//
// Parameters:
//   - options: functional options to configure the display
//
// Returns:
//   - VirtualDisplay: the new display
func NewVirtualDisplay(options ...VirtualDisplayBuilderOption) VirtualDisplay {
	d := &virtualDisplay{
		mu: &sync.Mutex{},
		info: DisplayInfo{
			Width:          1440,
			Height:         2560,
			MaxTextureSize: MaxTextureCap,
		},
		handles: make(map[uintptr]struct{}),
		scaler:  draw.BiLinear,
	}
	for _, option := range options {
		option(d)
	}
	return d
}

func (d *virtualDisplay) Initialize(appName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initFailures > 0 {
		d.initFailures--
		return ErrDisplayUnavailable
	}
	d.initialized = true
	d.closed = false
	d.appName = appName
	return nil
}

func (d *virtualDisplay) Info() (DisplayInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return DisplayInfo{}, errors.New("display not initialized")
	}
	return d.info, nil
}

func (d *virtualDisplay) RegisterTexture(handle uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usableLocked(); err != nil {
		return err
	}
	if handle == 0 {
		return errors.New("register null handle")
	}
	if _, ok := d.handles[handle]; ok {
		return errors.Wrapf(ErrAlreadyRegistered, "handle %#x", handle)
	}
	d.handles[handle] = struct{}{}
	return nil
}

func (d *virtualDisplay) UnregisterTexture(handle uintptr) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.usableLocked(); err != nil {
		return err
	}
	if _, ok := d.handles[handle]; !ok {
		return errors.Wrapf(ErrNotRegistered, "handle %#x", handle)
	}
	delete(d.handles, handle)
	return nil
}

func (d *virtualDisplay) Present(p PresentParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	if err := d.usableLocked(); err != nil {
		d.mu.Unlock()
		return err
	}
	if _, ok := d.handles[p.Handle]; !ok {
		d.mu.Unlock()
		return errors.Wrapf(ErrNotRegistered, "present handle %#x", p.Handle)
	}
	if p.Width > d.info.MaxTextureSize || p.Height > d.info.MaxTextureSize {
		d.mu.Unlock()
		return errors.Wrapf(ErrInvalidParams, "quilt %dx%d exceeds %d", p.Width, p.Height, d.info.MaxTextureSize)
	}

	d.frames++
	d.last = p
	var preview *image.RGBA
	if p.Image != nil {
		preview = image.NewRGBA(image.Rect(0, 0, d.info.Width, d.info.Height))
		src := p.ViewRect(p.Views() / 2)
		d.scaler.Scale(preview, preview.Bounds(), p.Image, src.Add(p.Image.Bounds().Min), draw.Src, nil)
		d.preview = preview
	}
	sink := d.sink
	d.mu.Unlock()

	if sink != nil && preview != nil {
		sink.PresentImage(preview)
	}
	return nil
}

func (d *virtualDisplay) usableLocked() error {
	if d.closed {
		return ErrClosed
	}
	if !d.initialized {
		return errors.New("display not initialized")
	}
	return nil
}

func (d *virtualDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.initialized = false
	return nil
}

func (d *virtualDisplay) Registered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

func (d *virtualDisplay) Frames() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

func (d *virtualDisplay) LastParams() (PresentParams, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last, d.frames > 0
}

func (d *virtualDisplay) Preview() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.preview
}
