// Package config loads the engine configuration from TOML and watches it for changes.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Carmen-Shannon/oxy-quilt/engine/camera"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/Carmen-Shannon/oxy-quilt/engine/renderer"
	"github.com/barkimedes/go-deepcopy"
	"github.com/pkg/errors"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("config: invalid value")

// Duration is a time.Duration written as a Go duration string, e.g. "250ms".
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "duration %q", text)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type RendererConfig struct {
	MSAAEnabled        bool     `toml:"msaa_enabled"`
	BackBufferFormat   string   `toml:"back_buffer_format"`
	DepthStencilFormat string   `toml:"depth_stencil_format"`
	SwapBufferCount    int      `toml:"swap_buffer_count"`
	PresentMode        string   `toml:"present_mode"`
	Adapter            string   `toml:"adapter"`
	FlushTimeout       Duration `toml:"flush_timeout"`
}

type CameraConfig struct {
	Size       float32 `toml:"size"`
	FOV        float32 `toml:"fov"`
	Viewcone   float32 `toml:"viewcone"`
	Near       float32 `toml:"near"`
	Far        float32 `toml:"far"`
	Depthiness float32 `toml:"depthiness"`
	Focus      float32 `toml:"focus"`
	Invert     bool    `toml:"invert"`
}

// QuiltConfig describes the quilt layout. A zero tile size means "use the display size"; a zero
// max texture size means "use what the bridge and device allow".
type QuiltConfig struct {
	TilesX         int  `toml:"tiles_x"`
	TilesY         int  `toml:"tiles_y"`
	TileWidth      int  `toml:"tile_width"`
	TileHeight     int  `toml:"tile_height"`
	MaxTextureSize int  `toml:"max_texture_size"`
	Preview        bool `toml:"preview"`
}

type BridgeConfig struct {
	Enabled        bool     `toml:"enabled"`
	AppName        string   `toml:"app_name"`
	ConnectTimeout Duration `toml:"connect_timeout"`
	Zoom           float32  `toml:"zoom"`
	Offset         float32  `toml:"offset"`
	DepthLocation  int      `toml:"depth_location"`
}

type WindowConfig struct {
	Title      string `toml:"title"`
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Borderless bool   `toml:"borderless"`
}

type ProfilerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
}

// Config is the complete engine configuration.
type Config struct {
	Renderer RendererConfig `toml:"renderer"`
	Camera   CameraConfig   `toml:"camera"`
	Quilt    QuiltConfig    `toml:"quilt"`
	Bridge   BridgeConfig   `toml:"bridge"`
	Window   WindowConfig   `toml:"window"`
	Profiler ProfilerConfig `toml:"profiler"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	p := camera.DefaultParams()
	return &Config{
		Renderer: RendererConfig{
			MSAAEnabled:        true,
			BackBufferFormat:   gpu.FormatRGBA8Unorm.String(),
			DepthStencilFormat: gpu.FormatD24UnormS8Uint.String(),
			SwapBufferCount:    2,
			PresentMode:        "vsync",
			Adapter:            gpu.PreferAuto.String(),
			FlushTimeout:       Duration(renderer.DefaultFlushTimeout),
		},
		Camera: CameraConfig{
			Size:       p.Size,
			FOV:        p.FOV,
			Viewcone:   p.Viewcone,
			Near:       p.Near,
			Far:        p.Far,
			Depthiness: 1,
		},
		Quilt: QuiltConfig{
			TilesX:  5,
			TilesY:  9,
			Preview: true,
		},
		Bridge: BridgeConfig{
			Enabled:        true,
			AppName:        "oxy-quilt",
			ConnectTimeout: Duration(5 * time.Second),
			Zoom:           1,
			Offset:         1,
		},
		Window: WindowConfig{
			Title:  "oxy-quilt",
			Width:  800,
			Height: 600,
		},
		Profiler: ProfilerConfig{
			Enabled:  true,
			Interval: Duration(time.Second),
		},
	}
}

// Load reads path over the defaults, so keys missing from the file keep their default value.
//
// Parameters:
//   - path: the TOML file to read
//
// Returns:
//   - *Config: the decoded and validated configuration
//   - error: a read, decode or validation error
func Load(path string) (*Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "%s: unknown key %s", path, undecoded[0])
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return c, nil
}

// Save writes c to path, creating the parent directory.
//
// Parameters:
//   - path: the destination file
//
// Returns:
//   - error: an encode or write error
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return errors.Wrap(err, "encode config")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	return deepcopy.MustAnything(c).(*Config)
}

// Validate reports the first value that cannot be used.
func (c *Config) Validate() error {
	r := c.Renderer
	bb, err := gpu.ParseFormat(r.BackBufferFormat)
	if err != nil || !bb.IsColor() {
		return errors.Wrapf(ErrInvalidConfig, "renderer.back_buffer_format %q", r.BackBufferFormat)
	}
	ds, err := gpu.ParseFormat(r.DepthStencilFormat)
	if err != nil || !ds.IsDepth() {
		return errors.Wrapf(ErrInvalidConfig, "renderer.depth_stencil_format %q", r.DepthStencilFormat)
	}
	if r.SwapBufferCount != 2 {
		return errors.Wrapf(ErrInvalidConfig, "renderer.swap_buffer_count %d, only 2 is supported", r.SwapBufferCount)
	}
	if _, err := ParsePresentMode(r.PresentMode); err != nil {
		return err
	}
	if _, err := gpu.ParseAdapterPreference(r.Adapter); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "renderer.adapter %q", r.Adapter)
	}
	if r.FlushTimeout <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "renderer.flush_timeout %v", r.FlushTimeout.Std())
	}

	if err := c.CameraParams(1).Validate(); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "camera: %v", err)
	}

	q := c.Quilt
	switch {
	case q.TilesX < 1 || q.TilesY < 1:
		return errors.Wrapf(ErrInvalidConfig, "quilt tiles %dx%d", q.TilesX, q.TilesY)
	case q.TileWidth < 0 || q.TileHeight < 0:
		return errors.Wrapf(ErrInvalidConfig, "quilt tile size %dx%d", q.TileWidth, q.TileHeight)
	case q.MaxTextureSize < 0:
		return errors.Wrapf(ErrInvalidConfig, "quilt.max_texture_size %d", q.MaxTextureSize)
	case q.MaxTextureSize > 0 && max(q.TilesX, q.TilesY) > q.MaxTextureSize:
		return errors.Wrapf(ErrInvalidConfig, "quilt tiles %dx%d exceed max_texture_size %d", q.TilesX, q.TilesY, q.MaxTextureSize)
	}

	b := c.Bridge
	switch {
	case !(b.Zoom > 0):
		return errors.Wrapf(ErrInvalidConfig, "bridge.zoom %v", b.Zoom)
	case b.ConnectTimeout < 0:
		return errors.Wrapf(ErrInvalidConfig, "bridge.connect_timeout %v", b.ConnectTimeout.Std())
	case b.DepthLocation < 0:
		return errors.Wrapf(ErrInvalidConfig, "bridge.depth_location %d", b.DepthLocation)
	}

	if c.Window.Width < 1 || c.Window.Height < 1 {
		return errors.Wrapf(ErrInvalidConfig, "window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Profiler.Enabled && c.Profiler.Interval <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "profiler.interval %v", c.Profiler.Interval.Std())
	}
	return nil
}

// ParsePresentMode maps "vsync" or "uncapped" to a present mode.
func ParsePresentMode(s string) (gpu.PresentMode, error) {
	switch s {
	case "", "vsync":
		return gpu.PresentModeVSync, nil
	case "uncapped":
		return gpu.PresentModeUncapped, nil
	}
	return gpu.PresentModeVSync, errors.Wrapf(ErrInvalidConfig, "renderer.present_mode %q", s)
}

// CameraParams returns the camera parameters for views of the given aspect ratio.
func (c *Config) CameraParams(aspect float32) camera.Params {
	p := camera.DefaultParams()
	p.Aspect = aspect
	return c.OverlayCamera(p)
}

// OverlayCamera replaces the fields of p that the camera section configures. Center, up and aspect
// are left as they are.
func (c *Config) OverlayCamera(p camera.Params) camera.Params {
	p.Size = c.Camera.Size
	p.FOV = c.Camera.FOV
	p.Viewcone = c.Camera.Viewcone
	p.Near = c.Camera.Near
	p.Far = c.Camera.Far
	return p
}

// AdapterPreference returns the parsed renderer.adapter value, PreferAuto when it is invalid.
func (c *Config) AdapterPreference() gpu.AdapterPreference {
	pref, _ := gpu.ParseAdapterPreference(c.Renderer.Adapter)
	return pref
}

// RendererOptions translates the renderer and quilt sections into renderer options. The
// configuration must be valid.
//
// Returns:
//   - []renderer.RendererBuilderOption: options for renderer.NewRenderer
//   - error: ErrInvalidConfig when a format or mode does not parse
func (c *Config) RendererOptions() ([]renderer.RendererBuilderOption, error) {
	bb, err := gpu.ParseFormat(c.Renderer.BackBufferFormat)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	ds, err := gpu.ParseFormat(c.Renderer.DepthStencilFormat)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, err.Error())
	}
	mode, err := ParsePresentMode(c.Renderer.PresentMode)
	if err != nil {
		return nil, err
	}
	return []renderer.RendererBuilderOption{
		renderer.WithMSAA(c.Renderer.MSAAEnabled),
		renderer.WithBackBufferFormat(bb),
		renderer.WithDepthStencilFormat(ds),
		renderer.WithSwapBufferCount(c.Renderer.SwapBufferCount),
		renderer.WithPresentMode(mode),
		renderer.WithFlushTimeout(c.Renderer.FlushTimeout.Std()),
		renderer.WithPreview(c.Quilt.Preview),
	}, nil
}
