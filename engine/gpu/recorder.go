package gpu

import (
	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/pkg/errors"
)

// Op identifies a recorded command.
type Op int

const (
	OpBarrier Op = iota
	OpClearRenderTarget
	OpClearDepthStencil
	OpSetRenderTargets
	OpSetViewport
	OpSetScissor
	OpDraw
	OpBlit
	OpResolve
	OpCopyTextureToBuffer
)

// Command is one recorded operation. Only the fields relevant to Op are set; descriptors are
// resolved at record time so later heap writes cannot change what a recorded command touches.
type Command struct {
	Op Op

	Resource Resource
	Before   ResourceState
	After    ResourceState

	Target       Texture
	TargetView   ViewDesc
	Depth        Texture
	DepthView    ViewDesc
	Source       Texture
	SourceView   ViewDesc
	Buffer       Buffer
	Footprint    Footprint
	Format       Format
	Color        common.Color
	ClearDepth   float32
	ClearStencil uint8

	Viewport common.Viewport
	Scissor  common.Rect
	Item     DrawItem
}

// Recorder implements the recording half of CommandList with state validation. Backends embed it
// and translate Commands at submission.
type Recorder struct {
	open     bool
	err      error
	cmds     []Command
	pending  map[Resource]ResourceState
	rtv      Texture
	dsv      Texture
	viewport bool
}

// Begin opens the recorder, discarding previously recorded commands.
func (r *Recorder) Begin() error {
	if r.open {
		return ErrListOpen
	}
	r.open = true
	r.err = nil
	r.cmds = r.cmds[:0]
	r.pending = make(map[Resource]ResourceState)
	r.rtv, r.dsv, r.viewport = nil, nil, false
	return nil
}

// End closes the recorder and returns the first recording error.
func (r *Recorder) End() error {
	if !r.open {
		return ErrListClosed
	}
	r.open = false
	return r.err
}

// Recording reports whether the recorder is open.
func (r *Recorder) Recording() bool { return r.open }

// Err returns the first recording error.
func (r *Recorder) Err() error { return r.err }

// Commands returns the recorded commands. The slice is reused by the next Begin.
func (r *Recorder) Commands() []Command { return r.cmds }

// FinalStates returns the state each transitioned resource ends the list in.
func (r *Recorder) FinalStates() map[Resource]ResourceState { return r.pending }

func (r *Recorder) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Recorder) record(c Command) bool {
	if !r.open {
		r.fail(ErrListClosed)
		return false
	}
	if r.err != nil {
		return false
	}
	r.cmds = append(r.cmds, c)
	return true
}

func (r *Recorder) stateOf(res Resource) ResourceState {
	if s, ok := r.pending[res]; ok {
		return s
	}
	return res.CurrentState()
}

func (r *Recorder) require(res Resource, want ResourceState, what string) bool {
	if got := r.stateOf(res); !got.Has(want) || (want == StateCommon && got != StateCommon) {
		r.fail(errors.Wrapf(ErrInvalidState, "%s: %q is %s, want %s", what, res.Label(), got, want))
		return false
	}
	return true
}

func (r *Recorder) resolve(d Descriptor, kind DescriptorHeapType, what string) (Texture, ViewDesc, bool) {
	if d.heap != nil && d.heap.kind != kind {
		r.fail(errors.Wrapf(ErrHeapType, "%s: descriptor from %s heap", what, d.heap.kind))
		return nil, ViewDesc{}, false
	}
	tex, view, err := d.Resolve()
	if err != nil {
		r.fail(errors.Wrap(err, what))
		return nil, ViewDesc{}, false
	}
	return tex, view, true
}

func (r *Recorder) ResourceBarrier(res Resource, before, after ResourceState) {
	if res == nil {
		r.fail(errors.Wrap(ErrInvalidTransition, "barrier on nil resource"))
		return
	}
	if cur := r.stateOf(res); cur != before {
		r.fail(errors.Wrapf(ErrInvalidTransition, "%q: barrier from %s but resource is %s", res.Label(), before, cur))
		return
	}
	if before == after {
		r.fail(errors.Wrapf(ErrInvalidTransition, "%q: barrier from %s to itself", res.Label(), before))
		return
	}
	if r.record(Command{Op: OpBarrier, Resource: res, Before: before, After: after}) {
		r.pending[res] = after
	}
}

func (r *Recorder) ClearRenderTarget(rtv Descriptor, color common.Color) {
	tex, view, ok := r.resolve(rtv, HeapTypeRTV, "clear render target")
	if !ok || !r.require(tex, StateRenderTarget, "clear render target") {
		return
	}
	r.record(Command{Op: OpClearRenderTarget, Target: tex, TargetView: view, Color: color})
}

func (r *Recorder) ClearDepthStencil(dsv Descriptor, depth float32, stencil uint8) {
	tex, view, ok := r.resolve(dsv, HeapTypeDSV, "clear depth stencil")
	if !ok || !r.require(tex, StateDepthWrite, "clear depth stencil") {
		return
	}
	r.record(Command{Op: OpClearDepthStencil, Depth: tex, DepthView: view, ClearDepth: depth, ClearStencil: stencil})
}

func (r *Recorder) SetRenderTargets(rtv Descriptor, dsv Descriptor) {
	tex, view, ok := r.resolve(rtv, HeapTypeRTV, "set render targets")
	if !ok {
		return
	}
	c := Command{Op: OpSetRenderTargets, Target: tex, TargetView: view}
	if !dsv.IsZero() {
		dtex, dview, ok := r.resolve(dsv, HeapTypeDSV, "set render targets")
		if !ok {
			return
		}
		if dview.Width != view.Width || dview.Height != view.Height || dview.Samples != view.Samples {
			r.fail(errors.Wrapf(ErrInvalidDescriptor, "depth %q %dx%d/%d does not match target %q %dx%d/%d",
				dview.Label, dview.Width, dview.Height, dview.Samples.Count, view.Label, view.Width, view.Height, view.Samples.Count))
			return
		}
		c.Depth, c.DepthView = dtex, dview
	}
	if r.record(c) {
		r.rtv, r.dsv = c.Target, c.Depth
	}
}

func (r *Recorder) SetViewport(vp common.Viewport) {
	if r.record(Command{Op: OpSetViewport, Viewport: vp}) {
		r.viewport = true
	}
}

func (r *Recorder) SetScissorRect(rect common.Rect) {
	r.record(Command{Op: OpSetScissor, Scissor: rect})
}

func (r *Recorder) drawable(what string) bool {
	if r.rtv == nil {
		r.fail(errors.Wrap(ErrNoRenderTarget, what))
		return false
	}
	if !r.viewport {
		r.fail(errors.Wrap(ErrNoViewport, what))
		return false
	}
	if !r.require(r.rtv, StateRenderTarget, what) {
		return false
	}
	if r.dsv != nil && !r.require(r.dsv, StateDepthWrite, what) {
		return false
	}
	return true
}

func (r *Recorder) Draw(item DrawItem) {
	if item.Mesh == nil {
		r.fail(errors.Wrap(ErrInvalidDescriptor, "draw without mesh"))
		return
	}
	if !r.drawable("draw") {
		return
	}
	r.record(Command{Op: OpDraw, Item: item})
}

func (r *Recorder) Blit(src Descriptor) {
	tex, view, ok := r.resolve(src, HeapTypeCBVSRVUAV, "blit")
	if !ok {
		return
	}
	if !src.heap.shaderVisible {
		r.fail(errors.Wrapf(ErrShaderVisibleHeap, "blit: %q is not in a shader-visible heap", view.Label))
		return
	}
	if !r.drawable("blit") || !r.require(tex, StatePixelShaderResource, "blit") {
		return
	}
	r.record(Command{Op: OpBlit, Source: tex, SourceView: view})
}

func (r *Recorder) Resolve(dst, src Texture, format Format) {
	if src.Sample().Count <= 1 {
		r.fail(errors.Wrapf(ErrInvalidState, "resolve: %q is not multisampled", src.Label()))
		return
	}
	if dst.Width() != src.Width() || dst.Height() != src.Height() {
		r.fail(errors.Wrapf(ErrInvalidDescriptor, "resolve: %q and %q differ in size", dst.Label(), src.Label()))
		return
	}
	if !r.require(src, StateResolveSource, "resolve") || !r.require(dst, StateResolveDest, "resolve") {
		return
	}
	r.record(Command{Op: OpResolve, Target: dst, Source: src, Format: format})
}

func (r *Recorder) CopyTextureToBuffer(dst Buffer, src Texture, footprint Footprint) {
	if dst.Size() < footprint.TotalBytes() {
		r.fail(errors.Wrapf(ErrInvalidDescriptor, "copy: buffer %q holds %d bytes, footprint needs %d", dst.Label(), dst.Size(), footprint.TotalBytes()))
		return
	}
	if !r.require(src, StateCopySource, "copy") {
		return
	}
	r.record(Command{Op: OpCopyTextureToBuffer, Buffer: dst, Source: src, Footprint: footprint})
}
