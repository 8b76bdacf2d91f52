package gpu

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/pkg/errors"
)

// Format identifies a texel format.
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	// FormatR24G8Typeless is the resource format of a 24/8 depth-stencil texture; views reinterpret it
	// as FormatD24UnormS8Uint.
	FormatR24G8Typeless
	FormatD24UnormS8Uint
	FormatD32Float
)

var formatNames = map[Format]string{
	FormatUnknown:        "unknown",
	FormatRGBA8Unorm:     "rgba8_unorm",
	FormatBGRA8Unorm:     "bgra8_unorm",
	FormatR24G8Typeless:  "r24g8_typeless",
	FormatD24UnormS8Uint: "d24_unorm_s8_uint",
	FormatD32Float:       "d32_float",
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat maps a config name such as "rgba8_unorm" to a Format.
//
// Parameters:
//   - s: the format name, case-insensitive
//
// Returns:
//   - Format: the parsed format
//   - error: ErrUnsupported wrapped with the name when it is not recognized
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, n := range formatNames {
		if n == s && f != FormatUnknown {
			return f, nil
		}
	}
	return FormatUnknown, errors.Wrapf(ErrUnsupported, "format %q", s)
}

// BytesPerPixel returns the texel size in bytes.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatUnknown:
		return 0
	default:
		return 4
	}
}

// IsDepth reports whether the format holds depth (typeless depth resources included).
func (f Format) IsDepth() bool {
	return f == FormatR24G8Typeless || f == FormatD24UnormS8Uint || f == FormatD32Float
}

// IsColor reports whether the format can back a render-target view.
func (f Format) IsColor() bool {
	return f == FormatRGBA8Unorm || f == FormatBGRA8Unorm
}

// ResourceFormat returns the format a depth texture must be created with so that the given view
// format can be used on it.
func (f Format) ResourceFormat() Format {
	if f == FormatD24UnormS8Uint {
		return FormatR24G8Typeless
	}
	return f
}

// ViewFormat returns the default view format for a resource format.
func (f Format) ViewFormat() Format {
	if f == FormatR24G8Typeless {
		return FormatD24UnormS8Uint
	}
	return f
}

// ResourceState is a bit set describing how the GPU may access a resource.
type ResourceState uint32

const (
	StateCommon ResourceState = 0
	// StatePresent is identical to StateCommon.
	StatePresent                ResourceState = 0
	StateRenderTarget           ResourceState = 1 << 0
	StateDepthWrite             ResourceState = 1 << 1
	StateDepthRead              ResourceState = 1 << 2
	StatePixelShaderResource    ResourceState = 1 << 3
	StateCopySource             ResourceState = 1 << 4
	StateCopyDest               ResourceState = 1 << 5
	StateResolveSource          ResourceState = 1 << 6
	StateResolveDest            ResourceState = 1 << 7
	StateGenericRead            ResourceState = 1 << 8
	StateNonPixelShaderResource ResourceState = 1 << 9
)

var stateNames = []struct {
	s    ResourceState
	name string
}{
	{StateRenderTarget, "RenderTarget"},
	{StateDepthWrite, "DepthWrite"},
	{StateDepthRead, "DepthRead"},
	{StatePixelShaderResource, "PixelShaderResource"},
	{StateCopySource, "CopySource"},
	{StateCopyDest, "CopyDest"},
	{StateResolveSource, "ResolveSource"},
	{StateResolveDest, "ResolveDest"},
	{StateGenericRead, "GenericRead"},
	{StateNonPixelShaderResource, "NonPixelShaderResource"},
}

func (s ResourceState) String() string {
	if s == StateCommon {
		return "Common|Present"
	}
	var parts []string
	for _, n := range stateNames {
		if s&n.s != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Has reports whether every bit of other is set in s.
func (s ResourceState) Has(other ResourceState) bool {
	return s&other == other
}

// ResourceFlags enable optional usages of a texture.
type ResourceFlags uint32

const (
	FlagNone                    ResourceFlags = 0
	FlagAllowRenderTarget       ResourceFlags = 1 << 0
	FlagAllowDepthStencil       ResourceFlags = 1 << 1
	FlagAllowSimultaneousAccess ResourceFlags = 1 << 2
	FlagDenyShaderResource      ResourceFlags = 1 << 3
)

// HeapFlags control how a resource's memory may be shared.
type HeapFlags uint32

const (
	HeapFlagNone   HeapFlags = 0
	HeapFlagShared HeapFlags = 1 << 0
)

// HeapType selects the memory pool a buffer lives in.
type HeapType int

const (
	HeapDefault HeapType = iota
	HeapUpload
	HeapReadback
)

func (h HeapType) String() string {
	switch h {
	case HeapUpload:
		return "upload"
	case HeapReadback:
		return "readback"
	default:
		return "default"
	}
}

// SampleDesc is the multisample count and quality level of a texture.
type SampleDesc struct {
	Count   uint32
	Quality uint32
}

// SingleSample is the SampleDesc of a non-multisampled resource.
var SingleSample = SampleDesc{Count: 1, Quality: 0}

// ClearValue is the optimized clear value supplied at texture creation.
type ClearValue struct {
	Format  Format
	Color   common.Color
	Depth   float32
	Stencil uint8
}

// TextureDescriptor describes a 2D texture.
type TextureDescriptor struct {
	Label        string
	Width        uint32
	Height       uint32
	Format       Format
	Sample       SampleDesc
	Flags        ResourceFlags
	HeapFlags    HeapFlags
	InitialState ResourceState
	Clear        *ClearValue
}

// Validate checks the descriptor against the device's texture dimension limit.
//
// Parameters:
//   - maxDim: the largest width or height the device supports
//
// Returns:
//   - error: a wrapped ErrInvalidDescriptor describing the first violation, or nil
func (d TextureDescriptor) Validate(maxDim uint32) error {
	switch {
	case d.Width == 0 || d.Height == 0:
		return errors.Wrapf(ErrInvalidDescriptor, "texture %q has zero extent %dx%d", d.Label, d.Width, d.Height)
	case d.Width > maxDim || d.Height > maxDim:
		return errors.Wrapf(ErrInvalidDescriptor, "texture %q extent %dx%d exceeds %d", d.Label, d.Width, d.Height, maxDim)
	case d.Format == FormatUnknown:
		return errors.Wrapf(ErrInvalidDescriptor, "texture %q has no format", d.Label)
	case d.Flags&FlagAllowDepthStencil != 0 && !d.Format.IsDepth():
		return errors.Wrapf(ErrInvalidDescriptor, "texture %q allows depth-stencil with color format %s", d.Label, d.Format)
	case d.Flags&FlagAllowRenderTarget != 0 && !d.Format.IsColor():
		return errors.Wrapf(ErrInvalidDescriptor, "texture %q allows render target with format %s", d.Label, d.Format)
	case d.Flags&FlagAllowSimultaneousAccess != 0 && d.Flags&FlagAllowDepthStencil != 0:
		return errors.Wrapf(ErrInvalidDescriptor, "texture %q: depth-stencil textures cannot allow simultaneous access", d.Label)
	case d.Sample.Count == 0:
		return errors.Wrapf(ErrInvalidDescriptor, "texture %q has sample count 0", d.Label)
	}
	return nil
}

// BufferDescriptor describes a linear buffer.
type BufferDescriptor struct {
	Label        string
	Size         uint64
	Heap         HeapType
	InitialState ResourceState
}

// Footprint is the linear layout of a texture copied into a buffer.
type Footprint struct {
	Width    uint32
	Height   uint32
	RowPitch uint32
	Format   Format
}

// TotalBytes returns the buffer size required to hold the footprint.
func (f Footprint) TotalBytes() uint64 {
	return uint64(f.RowPitch) * uint64(f.Height)
}

// PresentMode controls how Present synchronizes with the display.
type PresentMode int

const (
	PresentModeVSync PresentMode = iota
	PresentModeUncapped
)

// SyncInterval returns the present sync interval for the mode.
func (p PresentMode) SyncInterval() int {
	if p == PresentModeVSync {
		return 1
	}
	return 0
}

// SwapChainDescriptor describes the presentation surface's buffers.
type SwapChainDescriptor struct {
	Width       uint32
	Height      uint32
	Format      Format
	BufferCount int
	PresentMode PresentMode
}

// RowPitchAlignment is the alignment of each row of a texture copied into a buffer.
const RowPitchAlignment = 256

// AlignedRowPitch returns width*bytesPerPixel rounded up to RowPitchAlignment.
func AlignedRowPitch(width uint32, bytesPerPixel int) uint32 {
	raw := width * uint32(bytesPerPixel)
	return (raw + RowPitchAlignment - 1) &^ (RowPitchAlignment - 1)
}
