package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-quilt/engine/event"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/pkg/errors"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if c.Quilt.TilesX != 5 || c.Quilt.TilesY != 9 {
		t.Errorf("Default() tiles = %dx%d, want 5x9", c.Quilt.TilesX, c.Quilt.TilesY)
	}
	if c.Bridge.Offset != 1 {
		t.Errorf("Default() bridge.offset = %v, want 1", c.Bridge.Offset)
	}
	if got := c.AdapterPreference(); got != gpu.PreferAuto {
		t.Errorf("AdapterPreference() = %v, want auto", got)
	}
	opts, err := c.RendererOptions()
	if err != nil || len(opts) == 0 {
		t.Errorf("RendererOptions() = %d options, %v", len(opts), err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quilt.toml")
	writeFile(t, path, `
[renderer]
msaa_enabled = false
present_mode = "uncapped"
flush_timeout = "2s"

[camera]
fov = 30.0
focus = 0.25

[quilt]
tiles_x = 8
tiles_y = 6
`)

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Renderer.MSAAEnabled {
		t.Error("renderer.msaa_enabled = true, want false")
	}
	if got := c.Renderer.FlushTimeout.Std(); got != 2*time.Second {
		t.Errorf("renderer.flush_timeout = %v, want 2s", got)
	}
	if c.Camera.FOV != 30 || c.Camera.Focus != 0.25 {
		t.Errorf("camera = %+v, want fov 30 and focus 0.25", c.Camera)
	}
	if c.Camera.Size != 10 || c.Camera.Viewcone != 40 {
		t.Errorf("camera defaults lost: %+v", c.Camera)
	}
	if c.Quilt.TilesX != 8 || c.Quilt.TilesY != 6 || !c.Quilt.Preview {
		t.Errorf("quilt = %+v, want 8x6 with preview", c.Quilt)
	}
	if mode, _ := ParsePresentMode(c.Renderer.PresentMode); mode != gpu.PresentModeUncapped {
		t.Errorf("present mode = %v, want uncapped", mode)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "[camera]\nzoomies = 1\n"},
		{"bad format", "[renderer]\nback_buffer_format = \"d32_float\"\n"},
		{"buffer count", "[renderer]\nswap_buffer_count = 3\n"},
		{"bad present mode", "[renderer]\npresent_mode = \"sometimes\"\n"},
		{"bad duration", "[renderer]\nflush_timeout = \"soon\"\n"},
		{"near beyond far", "[camera]\nnear = 200.0\n"},
		{"zero tiles", "[quilt]\ntiles_x = 0\n"},
		{"tiles beyond texture limit", "[quilt]\ntiles_x = 8\nmax_texture_size = 4\n"},
		{"zero camera size", "[camera]\nsize = 0.0\n"},
		{"zero zoom", "[bridge]\nzoom = 0.0\n"},
	}
	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.toml")
			writeFile(t, path, tt.body)
			if _, err := Load(path); err == nil {
				t.Errorf("Load(%q) error = nil, want error", tt.body)
			}
		})
	}
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("Load(missing) error = nil, want error")
	}
}

func TestValidateWrapsSentinel(t *testing.T) {
	c := Default()
	c.Window.Width = 0
	if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate() error = %v, want %v", err, ErrInvalidConfig)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "quilt.toml")
	c := Default()
	c.Bridge.ConnectTimeout = Duration(750 * time.Millisecond)
	c.Camera.Invert = true
	if err := c.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if *got != *c {
		t.Errorf("Load(Save(c)) = %+v, want %+v", got, c)
	}
}

func TestClone(t *testing.T) {
	c := Default()
	cl := c.Clone()
	if cl == c || *cl != *c {
		t.Fatalf("Clone() = %p %+v, want an equal copy of %p", cl, cl, c)
	}
	cl.Camera.FOV = 60
	if c.Camera.FOV == 60 {
		t.Error("Clone() shares state with the original")
	}
}

func TestWatchPushesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quilt.toml")
	writeFile(t, path, "[camera]\nfov = 45.0\n")

	q := event.NewQueue()
	w, err := Watch(path, q, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	next := func(accept func(event.ConfigReload) bool) event.ConfigReload {
		t.Helper()
		for {
			ev, err := q.Wait(ctx)
			if err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
			reload, ok := ev.(event.ConfigReload)
			if !ok {
				t.Fatalf("Wait() = %T, want event.ConfigReload", ev)
			}
			if accept(reload) {
				return reload
			}
		}
	}

	writeFile(t, path, "[camera]\nfov = 35.0\n")
	reload := next(func(r event.ConfigReload) bool {
		cfg, ok := r.Config.(*Config)
		return ok && cfg.Camera.FOV == 35
	})
	if reload.Err != nil || reload.Path == "" {
		t.Errorf("reload = %+v, want fov 35 without error", reload)
	}

	writeFile(t, path, "[camera]\nfov = -1.0\n")
	reload = next(func(r event.ConfigReload) bool { return r.Err != nil })
	if reload.Config != nil {
		t.Errorf("invalid reload Config = %v, want nil", reload.Config)
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if w.Reloads() < 2 {
		t.Errorf("Reloads() = %d, want at least 2", w.Reloads())
	}
}
