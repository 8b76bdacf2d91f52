package wgpu_device

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// vertexColorSource draws gpu.Mesh geometry with its per-vertex colors.
//
//go:embed assets/vertex_color.wgsl
var vertexColorSource string

// blitSource samples a shader-resource view over the current viewport.
//
//go:embed assets/blit.wgsl
var blitSource string

// uniformAlignment is the minimum dynamic uniform buffer offset alignment WebGPU guarantees.
const uniformAlignment = 256

// GPUDrawUniform is the per-draw uniform block of vertex_color.wgsl (64 bytes).
type GPUDrawUniform struct {
	MVP [16]float32 // offset 0: model-view-projection (mat4x4<f32>)
}

// Size returns the size of the GPUDrawUniform struct in bytes.
func (g *GPUDrawUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// MarshalInto writes the uniform into buf, which must hold at least Size bytes.
func (g *GPUDrawUniform) MarshalInto(buf []byte) {
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(g.MVP[i]))
	}
}

// vertexStride is the byte size of one gpu.Vertex: vec3 position then vec4 color.
const vertexStride = 7 * 4

func marshalVertices(vs []gpu.Vertex) []byte {
	buf := make([]byte, len(vs)*vertexStride)
	for i, v := range vs {
		o := i * vertexStride
		for j := range 3 {
			binary.LittleEndian.PutUint32(buf[o+j*4:], math.Float32bits(v.Position[j]))
		}
		for j := range 4 {
			binary.LittleEndian.PutUint32(buf[o+12+j*4:], math.Float32bits(v.Color[j]))
		}
	}
	return buf
}

// marshalIndices views the indices as bytes; every supported backend is little-endian.
func marshalIndices(idx []uint32) []byte {
	return common.SliceToBytes(idx)
}

var vertexLayout = wgpu.VertexBufferLayout{
	ArrayStride: vertexStride,
	StepMode:    wgpu.VertexStepModeVertex,
	Attributes: []wgpu.VertexAttribute{
		{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		{Format: wgpu.VertexFormatFloat32x4, Offset: 12, ShaderLocation: 1},
	},
}

// textureFormat maps a gpu format to its WebGPU equivalent. The typeless depth format has no
// WebGPU counterpart and is created directly as the depth-stencil format it is viewed as.
func textureFormat(f gpu.Format) (wgpu.TextureFormat, error) {
	switch f {
	case gpu.FormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm, nil
	case gpu.FormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm, nil
	case gpu.FormatR24G8Typeless, gpu.FormatD24UnormS8Uint:
		return wgpu.TextureFormatDepth24PlusStencil8, nil
	case gpu.FormatD32Float:
		return wgpu.TextureFormatDepth32Float, nil
	}
	return wgpu.TextureFormatUndefined, errors.Wrapf(gpu.ErrUnsupported, "format %s", f)
}

func hasStencil(f wgpu.TextureFormat) bool {
	return f == wgpu.TextureFormatDepth24PlusStencil8
}

func textureUsage(desc gpu.TextureDescriptor) wgpu.TextureUsage {
	var usage wgpu.TextureUsage
	if desc.Flags&(gpu.FlagAllowRenderTarget|gpu.FlagAllowDepthStencil) != 0 {
		usage |= wgpu.TextureUsageRenderAttachment
	}
	if desc.Sample.Count > 1 {
		// multisampled textures can only be attachments and resolve sources
		return usage | wgpu.TextureUsageRenderAttachment
	}
	if desc.Flags&gpu.FlagDenyShaderResource == 0 {
		usage |= wgpu.TextureUsageTextureBinding
	}
	return usage | wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst
}

func bufferUsage(heap gpu.HeapType) wgpu.BufferUsage {
	switch heap {
	case gpu.HeapReadback:
		return wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
	case gpu.HeapUpload:
		return wgpu.BufferUsageMapWrite | wgpu.BufferUsageCopySrc
	}
	return wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst | wgpu.BufferUsageStorage
}

func alignUniform(n int) int {
	return (n + uniformAlignment - 1) &^ (uniformAlignment - 1)
}

// drawStride is the distance between consecutive draws' uniforms in the shared buffer.
var drawStride = alignUniform((&GPUDrawUniform{}).Size())
