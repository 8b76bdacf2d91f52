package bridge

import "golang.org/x/image/draw"

type VirtualDisplayBuilderOption func(*virtualDisplay)

// WithDisplaySize sets the output window size. A non-positive size makes session setup fail the way
// a display without a window does.
//
// Parameters:
//   - width, height: the window size in pixels
//
// Returns:
//   - VirtualDisplayBuilderOption: functional option to set the display size
func WithDisplaySize(width, height int) VirtualDisplayBuilderOption {
	return func(d *virtualDisplay) {
		d.info.Width, d.info.Height = width, height
	}
}

// WithDisplayPosition sets the output window's desktop position.
func WithDisplayPosition(x, y int) VirtualDisplayBuilderOption {
	return func(d *virtualDisplay) {
		d.info.X, d.info.Y = x, y
	}
}

// WithReportedMaxTexture sets the texture limit the display reports. Sessions cap it at MaxTextureCap.
func WithReportedMaxTexture(size int) VirtualDisplayBuilderOption {
	return func(d *virtualDisplay) {
		d.info.MaxTextureSize = size
	}
}

// WithInitFailures makes the first n Initialize calls fail with ErrDisplayUnavailable.
//
// Parameters:
//   - n: number of failing attempts
//
// Returns:
//   - VirtualDisplayBuilderOption: functional option to simulate a slow service
func WithInitFailures(n int) VirtualDisplayBuilderOption {
	return func(d *virtualDisplay) {
		d.initFailures = n
	}
}

// WithPreviewSink forwards every composited preview to sink.
func WithPreviewSink(sink PreviewSink) VirtualDisplayBuilderOption {
	return func(d *virtualDisplay) {
		d.sink = sink
	}
}

// WithScaler replaces the bilinear preview scaler, e.g. with draw.NearestNeighbor.
func WithScaler(scaler draw.Scaler) VirtualDisplayBuilderOption {
	return func(d *virtualDisplay) {
		if scaler != nil {
			d.scaler = scaler
		}
	}
}
