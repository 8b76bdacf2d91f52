package gpu

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-quilt/common"
)

// Vertex is a position with a per-vertex color.
type Vertex struct {
	Position [3]float32
	Color    [4]float32
}

// Mesh is indexed triangle-list geometry. Meshes are immutable once drawn; backends cache their
// uploads by ID.
type Mesh struct {
	ID       uint64
	Label    string
	Vertices []Vertex
	Indices  []uint32
}

var meshIDs atomic.Uint64

// NewMesh assigns an ID to geometry.
//
// Parameters:
//   - label: debug label
//   - vertices: vertex data
//   - indices: triangle-list indices into vertices
//
// Returns:
//   - *Mesh: the mesh
func NewMesh(label string, vertices []Vertex, indices []uint32) *Mesh {
	return &Mesh{
		ID:       meshIDs.Add(1),
		Label:    label,
		Vertices: vertices,
		Indices:  indices,
	}
}

// TriangleCount returns the number of triangles in the index list.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

var (
	colorWhite   = [4]float32{1, 1, 1, 1}
	colorBlack   = [4]float32{0, 0, 0, 1}
	colorRed     = [4]float32{1, 0, 0, 1}
	colorGreen   = [4]float32{0, 0.5, 0, 1}
	colorBlue    = [4]float32{0, 0, 1, 1}
	colorYellow  = [4]float32{1, 1, 0, 1}
	colorCyan    = [4]float32{0, 1, 1, 1}
	colorMagenta = [4]float32{1, 0, 1, 1}
)

// NewCube returns a vertex-colored cube centred on the origin with the given half extent.
func NewCube(half float32) *Mesh {
	h := half
	vertices := []Vertex{
		{Position: [3]float32{-h, -h, -h}, Color: colorWhite},
		{Position: [3]float32{-h, +h, -h}, Color: colorBlack},
		{Position: [3]float32{+h, +h, -h}, Color: colorRed},
		{Position: [3]float32{+h, -h, -h}, Color: colorGreen},
		{Position: [3]float32{-h, -h, +h}, Color: colorBlue},
		{Position: [3]float32{-h, +h, +h}, Color: colorYellow},
		{Position: [3]float32{+h, +h, +h}, Color: colorCyan},
		{Position: [3]float32{+h, -h, +h}, Color: colorMagenta},
	}
	indices := []uint32{
		// front
		0, 1, 2,
		0, 2, 3,
		// back
		4, 6, 5,
		4, 7, 6,
		// left
		4, 5, 1,
		4, 1, 0,
		// right
		3, 2, 6,
		3, 6, 7,
		// top
		1, 5, 6,
		1, 6, 2,
		// bottom
		4, 0, 3,
		4, 3, 7,
	}
	return NewMesh("cube", vertices, indices)
}

// DrawItem is one mesh draw with its transforms. Matrices are column-major.
type DrawItem struct {
	Mesh       *Mesh
	World      [16]float32
	View       [16]float32
	Projection [16]float32
}

// MVP returns Projection * View * World.
func (d DrawItem) MVP() [16]float32 {
	var vw, out [16]float32
	common.Mul4(vw[:], d.View[:], d.World[:])
	common.Mul4(out[:], d.Projection[:], vw[:])
	return out
}
