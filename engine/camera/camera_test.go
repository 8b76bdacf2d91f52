package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/pkg/errors"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-3
}

func newTestCamera(t *testing.T, options ...CameraBuilderOption) Camera {
	t.Helper()
	c, err := NewCamera(options...)
	if err != nil {
		t.Fatalf("NewCamera() error = %v", err)
	}
	return c
}

func TestCameraDistanceAndOffset(t *testing.T) {
	c := newTestCamera(t)
	if got := c.CameraDistance(); !approx(got, 10) {
		t.Errorf("CameraDistance() = %v, want 10", got)
	}
	if got := c.CameraOffset(); !approx(got, 8.391) {
		t.Errorf("CameraOffset() = %v, want 8.391", got)
	}

	tests := []struct {
		nv   float32
		want float32
	}{
		{0, 4.1955},
		{0.5, 0},
		{1, -4.1955},
		{1.5, -8.391},
	}
	for _, tt := range tests {
		if got := c.ViewOffset(tt.nv, 1); !approx(got, tt.want) {
			t.Errorf("ViewOffset(%v, 1) = %v, want %v", tt.nv, got, tt.want)
		}
	}
}

func TestViewOffsetIsOddAboutCentre(t *testing.T) {
	p := DefaultParams()
	for _, d := range []float32{0.1, 0.25, 0.5} {
		a, b := p.ViewOffset(0.5+d, 0.7), p.ViewOffset(0.5-d, 0.7)
		if !approx(a, -b) {
			t.Errorf("ViewOffset(0.5+%v) = %v, ViewOffset(0.5-%v) = %v, want negatives", d, a, d, b)
		}
	}
	if got := p.ViewOffset(0.5, 3); got != 0 {
		t.Errorf("ViewOffset(0.5, 3) = %v, want 0", got)
	}
}

func TestComputeViewProjection(t *testing.T) {
	p := DefaultParams()

	view, proj := ComputeViewProjection(p, 0.5, false, 1, 0)
	if !approx(view[0], -1) || !approx(view[5], 1) || !approx(view[14], 10) {
		t.Errorf("centre view = %v, want mirrored X, +Y up and z translation 10", view)
	}
	if proj[8] != 0 {
		t.Errorf("centre proj[8] = %v, want 0", proj[8])
	}

	view, _ = ComputeViewProjection(p, 0.5, true, 1, 0)
	if !approx(view[5], -1) {
		t.Errorf("inverted view[5] = %v, want -1", view[5])
	}

	_, proj = ComputeViewProjection(p, 0, false, 1, 0)
	if !approx(proj[8], 0.8391) {
		t.Errorf("first view proj[8] = %v, want 0.8391", proj[8])
	}

	_, proj = ComputeViewProjection(p, 1, false, 0, 2)
	if !approx(proj[8], 1) {
		t.Errorf("focus-only proj[8] = %v, want 1", proj[8])
	}
}

func TestComputeViewProjectionMirrorsWorldX(t *testing.T) {
	p := DefaultParams()
	view, _ := ComputeViewProjection(p, 0.2, false, 1, 0)

	var plain [16]float32
	eye := [3]float32{p.ViewOffset(0.2, 1), 0, -p.CameraDistance()}
	common.LookAtLH(plain[:], eye, p.Center, p.Up)
	for i := range view {
		want := plain[i]
		if i < 4 {
			want = -want
		}
		if !approx(view[i], want) {
			t.Errorf("view[%d] = %v, want %v", i, view[i], want)
		}
	}
}

func TestComputeViewProjectionIsDeterministic(t *testing.T) {
	p := DefaultParams()
	v1, p1 := ComputeViewProjection(p, 0.37, false, 1.3, 0.2)
	v2, p2 := ComputeViewProjection(p, 0.37, false, 1.3, 0.2)
	if v1 != v2 || p1 != p2 {
		t.Errorf("ComputeViewProjection() is not deterministic: %v/%v vs %v/%v", v1, p1, v2, p2)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults", func(*Params) {}, false},
		{"zero fov", func(p *Params) { p.FOV = 0 }, true},
		{"negative near", func(p *Params) { p.Near = -1 }, true},
		{"near beyond far", func(p *Params) { p.Near, p.Far = 10, 5 }, true},
		{"zero aspect", func(p *Params) { p.Aspect = 0 }, true},
		{"zero up", func(p *Params) { p.Up = [3]float32{} }, true},
		{"zero size", func(p *Params) { p.Size = 0 }, true},
		{"right-angle viewcone", func(p *Params) { p.Viewcone = 90 }, true},
		{"negative viewcone", func(p *Params) { p.Viewcone = -30 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("Validate() error = %v, want %v", err, ErrInvalidParams)
			}
		})
	}
}

func TestSetParamsRejectsInvalid(t *testing.T) {
	c := newTestCamera(t, WithSize(5), WithViewcone(30))
	bad := c.Params()
	bad.Far = 0
	if err := c.SetParams(bad); err == nil {
		t.Fatal("SetParams() error = nil, want error")
	}
	if got := c.Far(); got != 100 {
		t.Errorf("Far() after rejected SetParams = %v, want 100", got)
	}
	if c.Size() != 5 || c.Viewcone() != 30 {
		t.Errorf("Size() = %v, Viewcone() = %v, want 5 and 30", c.Size(), c.Viewcone())
	}
}

func TestSettersRejectInvalid(t *testing.T) {
	tests := []struct {
		name string
		set  func(Camera) error
	}{
		{"zero fov", func(c Camera) error { return c.SetFov(0) }},
		{"straight fov", func(c Camera) error { return c.SetFov(180) }},
		{"near beyond far", func(c Camera) error { return c.SetNear(200) }},
		{"far before near", func(c Camera) error { return c.SetFar(0.05) }},
		{"zero size", func(c Camera) error { return c.SetSize(0) }},
		{"zero up", func(c Camera) error { return c.SetUp(0, 0, 0) }},
		{"negative aspect", func(c Camera) error { return c.SetAspect(-1) }},
		{"viewcone 90", func(c Camera) error { return c.SetViewcone(90) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCamera(t)
			err := tt.set(c)
			if !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("setter error = %v, want %v", err, ErrInvalidParams)
			}
			if got := c.Params(); got != DefaultParams() {
				t.Errorf("Params() after rejected setter = %+v, want defaults", got)
			}
		})
	}
}

func TestSettersKeepMatricesFinite(t *testing.T) {
	c := newTestCamera(t)
	if err := c.SetFov(0); err == nil {
		t.Error("SetFov(0) error = nil, want error")
	}
	if err := c.SetNear(5); err != nil {
		t.Errorf("SetNear(5) error = %v", err)
	}
	if err := c.SetFar(1); err == nil {
		t.Error("SetFar(1) with near 5 error = nil, want error")
	}
	view, proj := c.ViewProjection(0, false, 1, 0)
	for i := range view {
		for _, v := range []float32{view[i], proj[i]} {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("ViewProjection()[%d] = %v, want finite", i, v)
			}
		}
	}
}

func TestNewCameraRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		options []CameraBuilderOption
	}{
		{"zero fov", []CameraBuilderOption{WithFov(0)}},
		{"near beyond far", []CameraBuilderOption{WithNear(10), WithFar(5)}},
		{"zero aspect", []CameraBuilderOption{WithAspect(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCamera(tt.options...)
			if !errors.Is(err, ErrInvalidParams) {
				t.Errorf("NewCamera() error = %v, want %v", err, ErrInvalidParams)
			}
			if c != nil {
				t.Errorf("NewCamera() = %v, want nil", c)
			}
		})
	}
}

func TestModelController(t *testing.T) {
	mc := NewModelController()

	if !mc.HandleKey(common.KeyRight) {
		t.Error("HandleKey(KeyRight) = false, want true")
	}
	if got := mc.AngleY(); !approx(got, mc.RotationSpeed()) {
		t.Errorf("AngleY() = %v, want %v", got, mc.RotationSpeed())
	}
	if mc.HandleKey(common.KeyF2) {
		t.Error("HandleKey(KeyF2) = true, want false")
	}

	mc.SetAngles(10, 0)
	if got := mc.AngleX(); !approx(got, math.Pi/2) {
		t.Errorf("AngleX() after SetAngles(10, 0) = %v, want pi/2", got)
	}

	mc.SetAngles(0, 0)
	m := mc.ModelMatrix()
	if m[0] != 1 || m[5] != 1 || m[10] != 1 || m[14] != -DefaultModelDepth {
		t.Errorf("ModelMatrix() at rest = %v, want identity pushed to z=-%v", m, DefaultModelDepth)
	}
}
