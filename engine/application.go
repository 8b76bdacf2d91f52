package engine

import (
	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/event"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quilt/engine/renderer"
)

// Application is what the frame driver runs. Every hook is called on the Run goroutine.
type Application interface {
	// Initialize is called once after the device, swap chain, quilt and camera exist.
	//
	// Parameters:
	//   - e: the running engine
	//
	// Returns:
	//   - error: a failure aborts Run; Teardown is not called
	Initialize(e Engine) error

	// OnResize is called after the swap chain was rebuilt for a new window size.
	OnResize(width, height int)

	// Update is called once per rendered frame before any view is drawn.
	//
	// Parameters:
	//   - dt: seconds since the previous update
	Update(dt float32)

	// Draw records the scene for one view. It is called once per quilt tile with the tile bound.
	//
	// Parameters:
	//   - ctx: the view being drawn
	//
	// Returns:
	//   - error: a failure is fatal to the frame loop
	Draw(ctx *FrameContext) error

	// Teardown is called once before the engine releases its resources.
	Teardown()
}

// KeyListener is implemented by applications that want key events. Escape and F2 are handled by the
// engine first and are still forwarded.
type KeyListener interface {
	OnKey(code int, action event.KeyAction)
}

// FrameContext describes the view Draw is recording.
type FrameContext struct {
	// Frame counts rendered frames from zero.
	Frame     uint64
	DeltaTime float32
	// View is the tile index, 0 at the bottom-left of the quilt.
	View           int
	Views          int
	NormalizedView float32
	ViewMatrix     [16]float32
	Projection     [16]float32
	Tile           common.Viewport

	renderer renderer.Renderer
}

// Draw records mesh with the view's matrices into the bound tile.
//
// Parameters:
//   - mesh: the geometry to draw
//   - world: the column-major model matrix
//
// Returns:
//   - error: a recording error
func (c *FrameContext) Draw(mesh *gpu.Mesh, world [16]float32) error {
	return c.renderer.Draw(gpu.DrawItem{
		Mesh:       mesh,
		World:      world,
		View:       c.ViewMatrix,
		Projection: c.Projection,
	})
}
