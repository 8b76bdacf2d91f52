package wgpu_device

import (
	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// meshBuffers are the uploaded vertex and index buffers of one gpu.Mesh.
type meshBuffers struct {
	vertices *wgpu.Buffer
	indices  *wgpu.Buffer
	count    uint32
}

func (m *meshBuffers) release() {
	m.vertices.Release()
	m.indices.Release()
}

// translator turns one recorded command list into a WebGPU command buffer. Render passes are
// opened lazily on the first draw after the targets change and closed by any non-draw command.
type translator struct {
	q    *queue
	enc  *wgpu.CommandEncoder
	pass *wgpu.RenderPassEncoder

	target *texture
	depth  *texture

	viewport    common.Viewport
	hasViewport bool
	scissor     common.Rect
	hasScissor  bool
	pipeline    *wgpu.RenderPipeline

	draws     int
	transient []*wgpu.BindGroup
}

// translate is called with the device lock held.
func (q *queue) translate(cmds []gpu.Command) (*wgpu.CommandBuffer, error) {
	if err := q.dev.pipelines.init(); err != nil {
		return nil, err
	}
	draws := 0
	for _, c := range cmds {
		if c.Op == gpu.OpDraw {
			draws++
		}
	}
	if draws > 0 {
		if err := q.ensureUniforms(draws); err != nil {
			return nil, err
		}
		if need := draws * drawStride; len(q.staging) < need {
			q.staging = make([]byte, need)
		}
	}

	enc, err := q.dev.dev.CreateCommandEncoder(nil)
	if err != nil {
		return nil, errors.Wrap(err, "create command encoder")
	}
	t := &translator{q: q, enc: enc}
	defer t.releaseTransient()

	for _, c := range cmds {
		if err := t.command(c); err != nil {
			t.endPass()
			enc.Release()
			return nil, err
		}
	}
	t.endPass()

	if draws > 0 {
		q.dev.wq.WriteBuffer(q.uniforms, 0, q.staging[:draws*drawStride])
	}
	cb, err := enc.Finish(nil)
	enc.Release()
	if err != nil {
		return nil, errors.Wrap(err, "finish command encoder")
	}
	return cb, nil
}

func (t *translator) command(c gpu.Command) error {
	switch c.Op {
	case gpu.OpBarrier:
		// WebGPU tracks usage itself; the recorder already validated the transition
		return nil
	case gpu.OpSetRenderTargets:
		t.endPass()
		t.target, t.depth = asTexture(c.Target), asTexture(c.Depth)
		return nil
	case gpu.OpSetViewport:
		t.viewport, t.hasViewport = c.Viewport, true
		t.applyViewport()
		return nil
	case gpu.OpSetScissor:
		t.scissor, t.hasScissor = c.Scissor, true
		t.applyScissor()
		return nil
	case gpu.OpDraw:
		return t.draw(c.Item)
	case gpu.OpBlit:
		return t.blit(asTexture(c.Source))
	}

	t.endPass()
	switch c.Op {
	case gpu.OpClearRenderTarget:
		return t.clearColor(asTexture(c.Target), c.Color)
	case gpu.OpClearDepthStencil:
		return t.clearDepth(asTexture(c.Depth), c.ClearDepth, c.ClearStencil)
	case gpu.OpResolve:
		return t.resolve(asTexture(c.Target), asTexture(c.Source))
	case gpu.OpCopyTextureToBuffer:
		b, ok := c.Buffer.(*buffer)
		if !ok {
			return errors.Wrap(gpu.ErrUnsupported, "copy into buffer from another device")
		}
		return t.copyToBuffer(b, asTexture(c.Source), c.Footprint)
	}
	return errors.Errorf("unknown command %d", c.Op)
}

func asTexture(t gpu.Texture) *texture {
	if t == nil {
		return nil
	}
	tex, _ := t.(*texture)
	return tex
}

func (t *translator) endPass() {
	if t.pass == nil {
		return
	}
	t.pass.End()
	t.pass.Release()
	t.pass = nil
	t.pipeline = nil
}

func (t *translator) openPass() error {
	if t.pass != nil {
		return nil
	}
	if t.target == nil {
		return errors.Wrap(gpu.ErrNoRenderTarget, "open render pass")
	}
	view, err := t.target.textureView()
	if err != nil {
		return err
	}
	desc := &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	}
	if t.depth != nil {
		dv, err := t.depth.textureView()
		if err != nil {
			return err
		}
		desc.DepthStencilAttachment = depthAttachment(dv, t.depth.wformat, wgpu.LoadOpLoad, 1, 0)
	}
	t.pass = t.enc.BeginRenderPass(desc)
	t.applyViewport()
	t.applyScissor()
	return nil
}

func depthAttachment(view *wgpu.TextureView, format wgpu.TextureFormat, load wgpu.LoadOp, depth float32, stencil uint8) *wgpu.RenderPassDepthStencilAttachment {
	a := &wgpu.RenderPassDepthStencilAttachment{
		View:            view,
		DepthLoadOp:     load,
		DepthStoreOp:    wgpu.StoreOpStore,
		DepthClearValue: depth,
	}
	if hasStencil(format) {
		a.StencilLoadOp = load
		a.StencilStoreOp = wgpu.StoreOpStore
		a.StencilClearValue = uint32(stencil)
	}
	return a
}

func (t *translator) applyViewport() {
	if t.pass == nil || !t.hasViewport {
		return
	}
	vp := t.viewport
	t.pass.SetViewport(vp.X, vp.Y, vp.Width, vp.Height, vp.MinDepth, vp.MaxDepth)
}

// applyScissor clamps the scissor to the bound target; WebGPU rejects rectangles that leave it.
func (t *translator) applyScissor() {
	if t.pass == nil || !t.hasScissor || t.target == nil {
		return
	}
	r := t.scissor
	w, h := int(t.target.Width()), int(t.target.Height())
	r.Left, r.Top = clamp(r.Left, 0, w), clamp(r.Top, 0, h)
	r.Right, r.Bottom = clamp(r.Right, r.Left, w), clamp(r.Bottom, r.Top, h)
	t.pass.SetScissorRect(uint32(r.Left), uint32(r.Top), uint32(r.Width()), uint32(r.Height()))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func (t *translator) bindPipeline(blit bool) error {
	key := pipelineKey{
		blit:    blit,
		color:   t.target.wformat,
		samples: t.target.desc.Sample.Count,
	}
	if t.depth != nil {
		key.depth = t.depth.wformat
	}
	p, err := t.q.dev.pipelines.get(key)
	if err != nil {
		return err
	}
	if p != t.pipeline {
		t.pass.SetPipeline(p)
		t.pipeline = p
	}
	return nil
}

func (t *translator) draw(item gpu.DrawItem) error {
	if err := t.openPass(); err != nil {
		return err
	}
	if err := t.bindPipeline(false); err != nil {
		return err
	}
	mesh, err := t.q.dev.meshBuffers(item.Mesh)
	if err != nil {
		return err
	}

	offset := t.draws * drawStride
	u := GPUDrawUniform{MVP: item.MVP()}
	u.MarshalInto(t.q.staging[offset:])
	t.draws++

	t.pass.SetBindGroup(0, t.q.uniformGroup, []uint32{uint32(offset)})
	t.pass.SetVertexBuffer(0, mesh.vertices, 0, wgpu.WholeSize)
	t.pass.SetIndexBuffer(mesh.indices, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	t.pass.DrawIndexed(mesh.count, 1, 0, 0, 0)
	return nil
}

func (t *translator) blit(src *texture) error {
	if src == nil {
		return errors.Wrap(gpu.ErrUnsupported, "blit source from another device")
	}
	if err := t.openPass(); err != nil {
		return err
	}
	if err := t.bindPipeline(true); err != nil {
		return err
	}
	view, err := src.textureView()
	if err != nil {
		return err
	}
	cache := t.q.dev.pipelines
	group, err := t.q.dev.dev.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Blit " + src.label,
		Layout: cache.blitLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: cache.sampler},
		},
	})
	if err != nil {
		return errors.Wrapf(err, "blit %q", src.label)
	}
	t.transient = append(t.transient, group)

	t.pass.SetBindGroup(0, group, nil)
	t.pass.Draw(3, 1, 0, 0)
	return nil
}

func (t *translator) clearColor(target *texture, color common.Color) error {
	view, err := target.textureView()
	if err != nil {
		return err
	}
	pass := t.enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    view,
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(color.R), G: float64(color.G), B: float64(color.B), A: float64(color.A),
			},
		}},
	})
	pass.End()
	pass.Release()
	return nil
}

func (t *translator) clearDepth(target *texture, depth float32, stencil uint8) error {
	view, err := target.textureView()
	if err != nil {
		return err
	}
	pass := t.enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		DepthStencilAttachment: depthAttachment(view, target.wformat, wgpu.LoadOpClear, depth, stencil),
	})
	pass.End()
	pass.Release()
	return nil
}

// resolve runs an empty pass over the multisampled source with dst as its resolve target.
func (t *translator) resolve(dst, src *texture) error {
	sv, err := src.textureView()
	if err != nil {
		return err
	}
	dv, err := dst.textureView()
	if err != nil {
		return err
	}
	pass := t.enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:          sv,
			ResolveTarget: dv,
			LoadOp:        wgpu.LoadOpLoad,
			StoreOp:       wgpu.StoreOpStore,
		}},
	})
	pass.End()
	pass.Release()
	return nil
}

func (t *translator) copyToBuffer(dst *buffer, src *texture, fp gpu.Footprint) error {
	tex, err := src.rawTexture()
	if err != nil {
		return err
	}
	if fp.RowPitch%gpu.RowPitchAlignment != 0 {
		return errors.Wrapf(gpu.ErrInvalidDescriptor, "copy row pitch %d is not %d-aligned", fp.RowPitch, gpu.RowPitchAlignment)
	}
	t.enc.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		&wgpu.ImageCopyBuffer{
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  fp.RowPitch,
				RowsPerImage: fp.Height,
			},
			Buffer: dst.buf,
		},
		&wgpu.Extent3D{
			Width:              fp.Width,
			Height:             fp.Height,
			DepthOrArrayLayers: 1,
		},
	)
	return nil
}

func (t *translator) releaseTransient() {
	for _, g := range t.transient {
		g.Release()
	}
	t.transient = nil
}

// meshBuffers uploads m on first use. Meshes are immutable, so the upload is cached by ID.
func (d *device) meshBuffers(m *gpu.Mesh) (*meshBuffers, error) {
	if v, ok := d.meshes.Load(m.ID); ok {
		return v.(*meshBuffers), nil
	}
	vdata, idata := marshalVertices(m.Vertices), marshalIndices(m.Indices)
	vb, err := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: m.Label + " Vertices",
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		Size:  uint64(len(vdata)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "upload mesh %q", m.Label)
	}
	ib, err := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Label: m.Label + " Indices",
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		Size:  uint64(len(idata)),
	})
	if err != nil {
		vb.Release()
		return nil, errors.Wrapf(err, "upload mesh %q", m.Label)
	}
	d.wq.WriteBuffer(vb, 0, vdata)
	d.wq.WriteBuffer(ib, 0, idata)

	mb := &meshBuffers{vertices: vb, indices: ib, count: uint32(len(m.Indices))}
	d.meshes.Store(m.ID, mb)
	return mb, nil
}
