package soft_device

import (
	"image"

	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/fogleman/fauxgl"
)

// vertexColorShader passes vertex colors through a single clip-space transform.
type vertexColorShader struct {
	matrix fauxgl.Matrix
}

func (s *vertexColorShader) Vertex(v fauxgl.Vertex) fauxgl.Vertex {
	v.Output = s.matrix.MulPositionW(v.Position)
	return v
}

func (s *vertexColorShader) Fragment(v fauxgl.Vertex) fauxgl.Color {
	return v.Color
}

// toFauxglMatrix converts a column-major matrix to fauxgl's row-major layout.
func toFauxglMatrix(m [16]float32) fauxgl.Matrix {
	return fauxgl.Matrix{
		X00: float64(m[0]), X01: float64(m[4]), X02: float64(m[8]), X03: float64(m[12]),
		X10: float64(m[1]), X11: float64(m[5]), X12: float64(m[9]), X13: float64(m[13]),
		X20: float64(m[2]), X21: float64(m[6]), X22: float64(m[10]), X23: float64(m[14]),
		X30: float64(m[3]), X31: float64(m[7]), X32: float64(m[11]), X33: float64(m[15]),
	}
}

func (d *device) fauxglMesh(m *gpu.Mesh) *fauxgl.Mesh {
	if cached, ok := d.meshes.Load(m.ID); ok {
		return cached.(*fauxgl.Mesh)
	}
	vert := func(i uint32) fauxgl.Vertex {
		v := m.Vertices[i]
		return fauxgl.Vertex{
			Position: fauxgl.Vector{X: float64(v.Position[0]), Y: float64(v.Position[1]), Z: float64(v.Position[2])},
			Color:    fauxgl.Color{R: float64(v.Color[0]), G: float64(v.Color[1]), B: float64(v.Color[2]), A: float64(v.Color[3])},
		}
	}
	n := uint32(len(m.Vertices))
	tris := make([]*fauxgl.Triangle, 0, m.TriangleCount())
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		if a >= n || b >= n || c >= n {
			continue
		}
		tris = append(tris, &fauxgl.Triangle{V1: vert(a), V2: vert(b), V3: vert(c)})
	}
	mesh := fauxgl.NewTriangleMesh(tris)
	actual, _ := d.meshes.LoadOrStore(m.ID, mesh)
	return actual.(*fauxgl.Mesh)
}

// rasterize draws a batch through a fauxgl context the size of the viewport. The allowed region is
// copied in first so depth testing sees earlier work, then copied back out.
func (d *device) rasterize(b *drawBatch) {
	vp := b.viewport
	vx, vy := int(vp.X), int(vp.Y)
	vw, vh := int(vp.Width+0.5), int(vp.Height+0.5)
	if vw <= 0 || vh <= 0 {
		return
	}

	ctx := fauxgl.NewContext(vw, vh)
	ctx.Cull = fauxgl.CullNone
	img := ctx.Image().(*image.NRGBA)

	tw := int(b.target.desc.Width)
	for y := b.region.Min.Y; y < b.region.Max.Y; y++ {
		for x := b.region.Min.X; x < b.region.Max.X; x++ {
			lx, ly := x-vx, y-vy
			if lx < 0 || ly < 0 || lx >= vw || ly >= vh {
				continue
			}
			si := (y*tw + x) * 4
			copy(img.Pix[img.PixOffset(lx, ly):img.PixOffset(lx, ly)+4], b.target.pix[si:si+4])
			if b.depth != nil {
				// fauxgl keeps depth as 0.5*ndc+0.5
				ctx.DepthBuffer[ly*vw+lx] = 0.5*float64(b.depth.depth[y*tw+x]) + 0.5
			}
		}
	}

	for _, item := range b.items {
		ctx.Shader = &vertexColorShader{matrix: toFauxglMatrix(item.MVP())}
		ctx.DrawMesh(d.fauxglMesh(item.Mesh))
	}

	for y := b.region.Min.Y; y < b.region.Max.Y; y++ {
		for x := b.region.Min.X; x < b.region.Max.X; x++ {
			lx, ly := x-vx, y-vy
			if lx < 0 || ly < 0 || lx >= vw || ly >= vh {
				continue
			}
			si := (y*tw + x) * 4
			copy(b.target.pix[si:si+4], img.Pix[img.PixOffset(lx, ly):img.PixOffset(lx, ly)+4])
			if b.depth != nil {
				b.depth.depth[y*tw+x] = float32(2*ctx.DepthBuffer[ly*vw+lx] - 1)
			}
		}
	}
}
