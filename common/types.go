// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

// Viewport describes the rasterizer's mapping from clip space to a pixel rectangle of a render target.
type Viewport struct {
	// X and Y are the top-left corner in pixels.
	X, Y float32
	// Width and Height are the extent in pixels.
	Width, Height float32
	// MinDepth and MaxDepth bound the depth range, normally 0 and 1.
	MinDepth, MaxDepth float32
}

// Rect is an integer pixel rectangle. Right and Bottom are exclusive.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool { return r.Right <= r.Left || r.Bottom <= r.Top }

// Intersect returns the overlap of r and o, which is empty when they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Left:   max(r.Left, o.Left),
		Top:    max(r.Top, o.Top),
		Right:  min(r.Right, o.Right),
		Bottom: min(r.Bottom, o.Bottom),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Rect returns the pixel rectangle covered by the viewport.
func (v Viewport) Rect() Rect {
	return Rect{
		Left:   int(v.X),
		Top:    int(v.Y),
		Right:  int(v.X + v.Width),
		Bottom: int(v.Y + v.Height),
	}
}

// Color is a linear RGBA color with components in [0, 1].
type Color struct {
	R, G, B, A float32
}

// ColorBlack is opaque black, the clear color of the quilt and the window back buffers.
var ColorBlack = Color{0, 0, 0, 1}

// RGBA8 converts the color to 8-bit channels, clamping out-of-range components.
func (c Color) RGBA8() [4]uint8 {
	conv := func(f float32) uint8 {
		return uint8(Clamp(f, 0, 1)*255 + 0.5)
	}
	return [4]uint8{conv(c.R), conv(c.G), conv(c.B), conv(c.A)}
}
