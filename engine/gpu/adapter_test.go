package gpu

import (
	"testing"

	"github.com/pkg/errors"
)

type fakeDevice struct {
	Device
	info AdapterInfo
}

func (f *fakeDevice) Info() AdapterInfo { return f.info }

func TestSelectAdapterFallsBack(t *testing.T) {
	hwErr := errors.New("no hardware adapter")
	attempts := []Attempt{
		{Kind: AdapterHardware, Name: "hw", Open: func(SurfaceTarget) (Device, error) { return nil, hwErr }},
		{Kind: AdapterSoftware, Name: "sw", Open: func(SurfaceTarget) (Device, error) {
			return &fakeDevice{info: AdapterInfo{Name: "sw", Kind: AdapterSoftware}}, nil
		}},
	}

	dev, results, err := SelectAdapter(nil, attempts)
	if err != nil {
		t.Fatalf("SelectAdapter() error = %v", err)
	}
	if dev.Info().Kind != AdapterSoftware {
		t.Errorf("selected kind = %v, want %v", dev.Info().Kind, AdapterSoftware)
	}
	if len(results) != 2 || results[0].Err != hwErr || results[1].Err != nil {
		t.Errorf("results = %+v, want hardware failure then software success", results)
	}
}

func TestSelectAdapterAllFail(t *testing.T) {
	attempts := []Attempt{
		{Kind: AdapterHardware, Name: "hw", Open: func(SurfaceTarget) (Device, error) { return nil, errors.New("a") }},
		{Kind: AdapterSoftware, Name: "sw", Open: func(SurfaceTarget) (Device, error) { return nil, errors.New("b") }},
	}
	_, results, err := SelectAdapter(nil, attempts)
	if errors.Cause(err) != ErrNoAdapter {
		t.Errorf("SelectAdapter() error = %v, want %v", err, ErrNoAdapter)
	}
	if len(results) != 2 {
		t.Errorf("len(results) = %d, want 2", len(results))
	}

	if _, _, err := SelectAdapter(nil, nil); errors.Cause(err) != ErrNoAdapter {
		t.Errorf("SelectAdapter(empty) error = %v, want %v", err, ErrNoAdapter)
	}
}

func TestParseAdapterPreference(t *testing.T) {
	tests := []struct {
		in      string
		want    AdapterPreference
		wantErr bool
	}{
		{"", PreferAuto, false},
		{"auto", PreferAuto, false},
		{"Hardware", PreferHardware, false},
		{"software", PreferSoftware, false},
		{"warp", PreferAuto, true},
	}
	for _, tt := range tests {
		got, err := ParseAdapterPreference(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseAdapterPreference(%q) = (%v, %v), want (%v, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"rgba8_unorm", FormatRGBA8Unorm, false},
		{"BGRA8_UNORM", FormatBGRA8Unorm, false},
		{"d24_unorm_s8_uint", FormatD24UnormS8Uint, false},
		{"unknown", FormatUnknown, true},
		{"r11g11b10", FormatUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) = (%v, %v), want (%v, err=%v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestAlignedRowPitch(t *testing.T) {
	tests := []struct {
		width uint32
		want  uint32
	}{
		{1, 256},
		{64, 256},
		{65, 512},
		{1618, 6656},
	}
	for _, tt := range tests {
		if got := AlignedRowPitch(tt.width, 4); got != tt.want {
			t.Errorf("AlignedRowPitch(%d, 4) = %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestDrawItemMVP(t *testing.T) {
	item := DrawItem{}
	for _, m := range []*[16]float32{&item.World, &item.View, &item.Projection} {
		m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	}
	item.World[12] = 2
	item.Projection[0] = 3
	mvp := item.MVP()
	if mvp[12] != 6 || mvp[0] != 3 {
		t.Errorf("MVP() = %v, want x scale 3 and x translation 6", mvp)
	}
}
