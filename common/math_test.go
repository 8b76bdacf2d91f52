package common

import (
	"math"
	"testing"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestMul4Identity(t *testing.T) {
	var id, m, out [16]float32
	Identity(id[:])
	for i := range m {
		m[i] = float32(i + 1)
	}
	Mul4(out[:], id[:], m[:])
	if out != m {
		t.Errorf("Mul4(I, m) = %v, want %v", out, m)
	}
	Mul4(out[:], m[:], id[:])
	if out != m {
		t.Errorf("Mul4(m, I) = %v, want %v", out, m)
	}
}

func TestMul4Aliasing(t *testing.T) {
	var a, b [16]float32
	Translation(a[:], 1, 2, 3)
	Translation(b[:], 4, 5, 6)
	Mul4(a[:], a[:], b[:])
	if a[12] != 5 || a[13] != 7 || a[14] != 9 {
		t.Errorf("aliased Mul4 translation = (%v, %v, %v), want (5, 7, 9)", a[12], a[13], a[14])
	}
}

func TestLookAtLH(t *testing.T) {
	var v [16]float32
	LookAtLH(v[:], [3]float32{0, 0, -10}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})

	p := MulPoint(v[:], 0, 0, 0)
	if !approx(p[0], 0) || !approx(p[1], 0) || !approx(p[2], 10) {
		t.Errorf("origin in view space = %v, want (0, 0, 10)", p)
	}
	p = MulPoint(v[:], 1, 0, 0)
	if !approx(p[0], 1) {
		t.Errorf("+X in view space = %v, want x = 1", p)
	}
	p = MulPoint(v[:], 0, 2, 0)
	if !approx(p[1], 2) {
		t.Errorf("+Y in view space = %v, want y = 2", p)
	}
}

func TestLookAtLHNormalizesUp(t *testing.T) {
	var a, b [16]float32
	LookAtLH(a[:], [3]float32{1, 2, -5}, [3]float32{}, [3]float32{0, 1, 0})
	LookAtLH(b[:], [3]float32{1, 2, -5}, [3]float32{}, [3]float32{0, 7, 0})
	for i := range a {
		if !approx(a[i], b[i]) {
			t.Fatalf("LookAtLH with scaled up [%d] = %v, want %v", i, b[i], a[i])
		}
	}
}

func TestPerspectiveLH(t *testing.T) {
	var p [16]float32
	near, far := float32(0.1), float32(100)
	PerspectiveLH(p[:], DegToRad(90), 2, near, far)

	if !approx(p[5], 1) {
		t.Errorf("yScale = %v, want 1", p[5])
	}
	if !approx(p[0], 0.5) {
		t.Errorf("xScale = %v, want 0.5", p[0])
	}

	tests := []struct {
		name  string
		z     float32
		depth float32
	}{
		{"near plane", near, 0},
		{"far plane", far, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := MulPoint(p[:], 0, 0, tt.z)
			if got := c[2] / c[3]; !approx(got, tt.depth) {
				t.Errorf("depth at z=%v = %v, want %v", tt.z, got, tt.depth)
			}
		})
	}
}

func TestModelMatrix(t *testing.T) {
	var m [16]float32
	ModelMatrix(m[:], 0, 0, 3)
	p := MulPoint(m[:], 0, 0, 0)
	if p != [4]float32{0, 0, -3, 1} {
		t.Errorf("ModelMatrix(0, 0, 3) origin = %v, want (0, 0, -3, 1)", p)
	}

	ModelMatrix(m[:], 0, math.Pi/2, 0)
	p = MulPoint(m[:], 1, 0, 0)
	if !approx(p[0], 0) || !approx(p[2], 1) {
		t.Errorf("90 degree Y rotation of +X = %v, want (0, 0, 1)", p)
	}

	ModelMatrix(m[:], math.Pi/2, 0, 0)
	p = MulPoint(m[:], 0, 1, 0)
	if !approx(p[1], 0) || !approx(p[2], -1) {
		t.Errorf("90 degree X rotation of +Y = %v, want (0, 0, -1)", p)
	}
}

func TestRectIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want Rect
	}{
		{"overlap", Rect{0, 0, 10, 10}, Rect{5, 5, 20, 20}, Rect{5, 5, 10, 10}},
		{"contained", Rect{0, 0, 10, 10}, Rect{2, 3, 4, 5}, Rect{2, 3, 4, 5}},
		{"disjoint", Rect{0, 0, 10, 10}, Rect{10, 0, 20, 10}, Rect{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Intersect(tt.b); got != tt.want {
				t.Errorf("Intersect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestColorRGBA8(t *testing.T) {
	got := Color{R: 1, G: 0.5, B: -1, A: 2}.RGBA8()
	want := [4]uint8{255, 128, 0, 255}
	if got != want {
		t.Errorf("RGBA8() = %v, want %v", got, want)
	}
}
