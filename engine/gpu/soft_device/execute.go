package soft_device

import (
	"image"
	"math"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// drawBatch is a run of draws sharing targets and viewport. Batches whose regions do not overlap
// are rasterized concurrently.
type drawBatch struct {
	target   *texture
	depth    *texture
	viewport common.Viewport
	region   image.Rectangle
	items    []gpu.DrawItem
}

type execState struct {
	target     *texture
	depth      *texture
	viewport   common.Viewport
	scissor    common.Rect
	hasScissor bool
	batches    []*drawBatch
}

func (d *device) execute(cmds []gpu.Command) error {
	st := &execState{}
	for _, c := range cmds {
		switch c.Op {
		case gpu.OpBarrier:
		case gpu.OpSetRenderTargets:
			st.target = asTexture(c.Target)
			st.depth = asTexture(c.Depth)
		case gpu.OpSetViewport:
			st.viewport = c.Viewport
		case gpu.OpSetScissor:
			st.scissor, st.hasScissor = c.Scissor, true
		case gpu.OpDraw:
			if err := d.queueDraw(st, c.Item); err != nil {
				return err
			}
		default:
			d.flushBatches(st)
			if err := d.executeImmediate(st, c); err != nil {
				return err
			}
		}
	}
	d.flushBatches(st)
	return nil
}

func asTexture(t gpu.Texture) *texture {
	if t == nil {
		return nil
	}
	tex, _ := t.(*texture)
	return tex
}

// region returns the pixels the current viewport and scissor allow writes to.
func (st *execState) region() image.Rectangle {
	vp := st.viewport
	r := image.Rect(
		int(math.Floor(float64(vp.X))),
		int(math.Floor(float64(vp.Y))),
		int(math.Ceil(float64(vp.X+vp.Width))),
		int(math.Ceil(float64(vp.Y+vp.Height))),
	)
	if st.hasScissor {
		r = r.Intersect(image.Rect(st.scissor.Left, st.scissor.Top, st.scissor.Right, st.scissor.Bottom))
	}
	return r.Intersect(st.target.bounds())
}

func (d *device) queueDraw(st *execState, item gpu.DrawItem) error {
	if st.target == nil || st.target.pix == nil {
		return errors.Wrap(gpu.ErrNoRenderTarget, "draw")
	}
	region := st.region()
	if region.Empty() {
		return nil
	}
	if n := len(st.batches); n > 0 {
		last := st.batches[n-1]
		if last.target == st.target && last.depth == st.depth && last.viewport == st.viewport && last.region == region {
			last.items = append(last.items, item)
			return nil
		}
	}
	for _, b := range st.batches {
		if b.target == st.target && b.region.Overlaps(region) {
			d.flushBatches(st)
			break
		}
	}
	st.batches = append(st.batches, &drawBatch{
		target:   st.target,
		depth:    st.depth,
		viewport: st.viewport,
		region:   region,
		items:    []gpu.DrawItem{item},
	})
	return nil
}

func (d *device) flushBatches(st *execState) {
	switch len(st.batches) {
	case 0:
		return
	case 1:
		d.rasterize(st.batches[0])
	default:
		wg := sync.WaitGroup{}
		for i, b := range st.batches {
			wg.Add(1)
			batch := b
			d.pool.SubmitTask(worker.Task{
				ID: i,
				Do: func() (any, error) {
					defer wg.Done()
					d.rasterize(batch)
					return nil, nil
				},
			})
		}
		wg.Wait()
	}
	st.batches = st.batches[:0]
}

func (d *device) executeImmediate(st *execState, c gpu.Command) error {
	switch c.Op {
	case gpu.OpClearRenderTarget:
		asTexture(c.Target).clearColor(c.Color)
	case gpu.OpClearDepthStencil:
		asTexture(c.Depth).clearDepthStencil(c.ClearDepth, c.ClearStencil)
	case gpu.OpBlit:
		if st.target == nil {
			return errors.Wrap(gpu.ErrNoRenderTarget, "blit")
		}
		region := st.region()
		if region.Empty() {
			return nil
		}
		src := asTexture(c.Source)
		dst := st.target.rgba().SubImage(region).(*image.RGBA)
		vp := st.viewport
		dr := image.Rect(int(vp.X), int(vp.Y), int(vp.X+vp.Width), int(vp.Y+vp.Height))
		draw.ApproxBiLinear.Scale(dst, dr, src.rgba(), src.bounds(), draw.Src, nil)
	case gpu.OpResolve:
		dst, src := asTexture(c.Target), asTexture(c.Source)
		copy(dst.pix, src.pix)
	case gpu.OpCopyTextureToBuffer:
		return copyToBuffer(c.Buffer.(*buffer), asTexture(c.Source), c.Footprint)
	default:
		return errors.Wrapf(gpu.ErrUnsupported, "op %d", c.Op)
	}
	return nil
}

// copyToBuffer writes the texture rows at the footprint's pitch, in the footprint's channel order.
func copyToBuffer(dst *buffer, src *texture, fp gpu.Footprint) error {
	if src.pix == nil {
		return errors.Wrapf(gpu.ErrUnsupported, "copy from depth texture %q", src.label)
	}
	rowBytes := int(fp.Width) * 4
	srcStride := int(src.desc.Width) * 4
	swap := fp.Format == gpu.FormatBGRA8Unorm
	for y := 0; y < int(fp.Height) && y < int(src.desc.Height); y++ {
		row := dst.data[y*int(fp.RowPitch) : y*int(fp.RowPitch)+rowBytes]
		copy(row, src.pix[y*srcStride:y*srcStride+rowBytes])
		if swap {
			for i := 0; i+3 < len(row); i += 4 {
				row[i], row[i+2] = row[i+2], row[i]
			}
		}
	}
	return nil
}
