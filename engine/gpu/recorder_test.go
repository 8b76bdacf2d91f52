package gpu

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/pkg/errors"
)

type recorderFixture struct {
	rec   *Recorder
	color *fakeTexture
	depth *fakeTexture
	rtv   Descriptor
	dsv   Descriptor
}

func newRecorderFixture(t *testing.T) *recorderFixture {
	t.Helper()
	rtvHeap, _ := NewDescriptorHeap(HeapTypeRTV, 1, false)
	dsvHeap, _ := NewDescriptorHeap(HeapTypeDSV, 1, false)
	f := &recorderFixture{
		rec:   &Recorder{},
		color: newFakeTexture("color", 16, 16, FormatRGBA8Unorm, FlagAllowRenderTarget, StatePresent),
		depth: newFakeTexture("depth", 16, 16, FormatR24G8Typeless, FlagAllowDepthStencil, StateCommon),
	}
	var err error
	if f.rtv, err = rtvHeap.CreateRenderTargetView(0, f.color); err != nil {
		t.Fatalf("CreateRenderTargetView() error = %v", err)
	}
	if f.dsv, err = dsvHeap.CreateDepthStencilView(0, f.depth, FormatD24UnormS8Uint); err != nil {
		t.Fatalf("CreateDepthStencilView() error = %v", err)
	}
	if err := f.rec.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	return f
}

func TestRecorderFrame(t *testing.T) {
	f := newRecorderFixture(t)
	r := f.rec

	r.ResourceBarrier(f.depth, StateCommon, StateDepthWrite)
	r.ResourceBarrier(f.color, StatePresent, StateRenderTarget)
	r.SetViewport(common.Viewport{Width: 16, Height: 16, MaxDepth: 1})
	r.SetScissorRect(common.Rect{Right: 16, Bottom: 16})
	r.ClearRenderTarget(f.rtv, common.ColorBlack)
	r.ClearDepthStencil(f.dsv, 1, 0)
	r.SetRenderTargets(f.rtv, f.dsv)
	r.Draw(DrawItem{Mesh: NewCube(1)})
	r.ResourceBarrier(f.color, StateRenderTarget, StatePresent)

	if err := r.End(); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if got := len(r.Commands()); got != 9 {
		t.Errorf("len(Commands()) = %d, want 9", got)
	}
	final := r.FinalStates()
	if final[f.color] != StatePresent || final[f.depth] != StateDepthWrite {
		t.Errorf("FinalStates() = %v, want color Present and depth DepthWrite", final)
	}
}

func TestRecorderValidation(t *testing.T) {
	tests := []struct {
		name    string
		record  func(f *recorderFixture)
		wantErr error
	}{
		{
			name: "barrier with wrong before state",
			record: func(f *recorderFixture) {
				f.rec.ResourceBarrier(f.color, StateRenderTarget, StatePresent)
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "barrier to same state",
			record: func(f *recorderFixture) {
				f.rec.ResourceBarrier(f.depth, StateCommon, StateCommon)
			},
			wantErr: ErrInvalidTransition,
		},
		{
			name: "clear before transition",
			record: func(f *recorderFixture) {
				f.rec.ClearRenderTarget(f.rtv, common.ColorBlack)
			},
			wantErr: ErrInvalidState,
		},
		{
			name: "clear depth in common state",
			record: func(f *recorderFixture) {
				f.rec.ClearDepthStencil(f.dsv, 1, 0)
			},
			wantErr: ErrInvalidState,
		},
		{
			name: "draw without targets",
			record: func(f *recorderFixture) {
				f.rec.SetViewport(common.Viewport{Width: 16, Height: 16})
				f.rec.Draw(DrawItem{Mesh: NewCube(1)})
			},
			wantErr: ErrNoRenderTarget,
		},
		{
			name: "draw without viewport",
			record: func(f *recorderFixture) {
				f.rec.ResourceBarrier(f.color, StatePresent, StateRenderTarget)
				f.rec.SetRenderTargets(f.rtv, Descriptor{})
				f.rec.Draw(DrawItem{Mesh: NewCube(1)})
			},
			wantErr: ErrNoViewport,
		},
		{
			name: "rtv descriptor in dsv slot",
			record: func(f *recorderFixture) {
				f.rec.SetRenderTargets(f.rtv, f.rtv)
			},
			wantErr: ErrHeapType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRecorderFixture(t)
			tt.record(f)
			if err := f.rec.End(); errors.Cause(err) != tt.wantErr {
				t.Errorf("End() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecorderClosed(t *testing.T) {
	r := &Recorder{}
	r.SetViewport(common.Viewport{})
	if err := r.Err(); err != ErrListClosed {
		t.Errorf("Err() after recording on closed list = %v, want %v", err, ErrListClosed)
	}
	if err := r.End(); err != ErrListClosed {
		t.Errorf("End() on closed list = %v, want %v", err, ErrListClosed)
	}
	if err := r.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := r.Begin(); err != ErrListOpen {
		t.Errorf("Begin() on open list = %v, want %v", err, ErrListOpen)
	}
}

func TestRecorderBlitNeedsShaderVisibleHeap(t *testing.T) {
	f := newRecorderFixture(t)
	src := newFakeTexture("quilt", 8, 8, FormatRGBA8Unorm, FlagAllowRenderTarget, StatePixelShaderResource)
	hidden, _ := NewDescriptorHeap(HeapTypeCBVSRVUAV, 1, false)
	srv, _ := hidden.CreateShaderResourceView(0, src)

	f.rec.ResourceBarrier(f.color, StatePresent, StateRenderTarget)
	f.rec.SetRenderTargets(f.rtv, Descriptor{})
	f.rec.SetViewport(common.Viewport{Width: 16, Height: 16})
	f.rec.Blit(srv)
	if err := f.rec.End(); errors.Cause(err) != ErrShaderVisibleHeap {
		t.Errorf("End() error = %v, want %v", err, ErrShaderVisibleHeap)
	}
}
