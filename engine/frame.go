package engine

import (
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/engine/bridge"
	"github.com/Carmen-Shannon/oxy-quilt/engine/renderer"
	"github.com/pkg/errors"
)

// renderFrame records every quilt view, submits, presents to the window and the bridge, then
// waits for the GPU so the allocator can be reset next frame.
func (e *engine) renderFrame(app Application, dt float32) error {
	r := e.renderer
	if err := r.BeginFrame(); err != nil {
		return errors.Wrap(err, "begin frame")
	}

	e.mu.Lock()
	cc, bc, preview := e.cfg.Camera, e.cfg.Bridge, e.cfg.Quilt.Preview
	frame := e.frames
	e.mu.Unlock()

	q := r.Quilt()
	layout := q.Layout()
	n := layout.Views()
	ctx := FrameContext{
		Frame:     frame,
		DeltaTime: dt,
		Views:     n,
		renderer:  r,
	}
	for i := 0; i < n; i++ {
		if err := r.SetTile(i); err != nil {
			return errors.Wrapf(err, "bind view %d", i)
		}
		ctx.View = i
		ctx.NormalizedView = renderer.NormalizedView(i, n)
		ctx.ViewMatrix, ctx.Projection = e.camera.ViewProjection(ctx.NormalizedView, cc.Invert, cc.Depthiness, cc.Focus)
		ctx.Tile = q.TileViewport(i)
		if err := app.Draw(&ctx); err != nil {
			return errors.Wrapf(err, "draw view %d", i)
		}
	}

	if _, err := r.EndFrame(); err != nil {
		return errors.Wrap(err, "end frame")
	}
	if err := r.Present(); err != nil {
		return errors.Wrap(err, "present")
	}

	if e.bridge != nil && q.Registered() {
		err := e.bridge.Present(bridge.PresentParams{
			Handle:   q.Handle(),
			Width:    layout.Width,
			Height:   layout.Height,
			TilesX:   layout.TilesX,
			TilesY:   layout.TilesY,
			Focus:    cc.Focus,
			Offset:   bc.Offset,
			Aspect:   layout.Aspect(),
			Zoom:     bc.Zoom,
			DepthLoc: bc.DepthLocation,
			Image:    e.lastQuilt,
		})
		if err != nil {
			return errors.Wrap(err, "bridge present")
		}
	}

	start := time.Now()
	if err := r.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	e.profiler.RecordFenceWait(time.Since(start))

	// the display gets the CPU copy one frame late; the shared handle is always current
	e.lastQuilt = nil
	if preview && e.bridge != nil {
		if img, err := r.ReadbackImage(); err == nil && img.Bounds().Dx() == layout.Width && img.Bounds().Dy() == layout.Height {
			e.lastQuilt = img
		}
	}
	return nil
}

// teardown releases acquired resources in reverse order of acquisition.
type teardown struct {
	steps []teardownStep
	log   *slog.Logger
}

type teardownStep struct {
	name    string
	release func() error
}

func (t *teardown) push(name string, release func() error) {
	t.steps = append(t.steps, teardownStep{name: name, release: release})
}

// run releases every step even when one fails and returns the first error.
func (t *teardown) run() error {
	var first error
	for i := len(t.steps) - 1; i >= 0; i-- {
		s := t.steps[i]
		if err := s.release(); err != nil {
			t.log.Warn("release failed", "resource", s.name, "error", err)
			if first == nil {
				first = errors.Wrapf(err, "release %s", s.name)
			}
			continue
		}
		t.log.Debug("released", "resource", s.name)
	}
	t.steps = nil
	return first
}
