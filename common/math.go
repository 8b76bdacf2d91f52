package common

import (
	"math"
	"unsafe"
)

// Matrices in this package are flat [16]float32 slices stored column-major and applied to column
// vectors (clip = P * V * M * p). Read row-major, the same array is the row-vector form used by
// D3D-style math libraries, so an element named Mrc in that convention lives at index (r-1)*4+(c-1).

// Identity resets a 4x4 matrix (flat slice) to the identity matrix.
// The matrix is stored in column-major order.
//
// Parameters:
//   - m: destination slice (must be at least 16 elements)
func Identity(m []float32) {
	for i := range m {
		m[i] = 0
	}
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// Mul4 multiplies two 4x4 matrices and stores the result in out.
// All matrices are stored in column-major order.
// Result: out = a * b
//
// Parameters:
//   - out: destination slice (must be at least 16 elements, may alias a or b)
//   - a: left-hand matrix (16 elements)
//   - b: right-hand matrix (16 elements)
func Mul4(out, a, b []float32) {
	var buf [16]float32
	for i := 0; i < 4; i++ { // column of B
		for j := 0; j < 4; j++ { // row of A
			sum := float32(0)
			for k := 0; k < 4; k++ {
				sum += a[k*4+j] * b[i*4+k]
			}
			buf[i*4+j] = sum
		}
	}
	copy(out, buf[:])
}

// MulPoint transforms the point (x, y, z, 1) by m and returns the homogeneous result.
//
// Parameters:
//   - m: column-major matrix (16 elements)
//   - x, y, z: point coordinates
//
// Returns:
//   - [4]float32: the transformed (x, y, z, w)
func MulPoint(m []float32, x, y, z float32) [4]float32 {
	return [4]float32{
		m[0]*x + m[4]*y + m[8]*z + m[12],
		m[1]*x + m[5]*y + m[9]*z + m[13],
		m[2]*x + m[6]*y + m[10]*z + m[14],
		m[3]*x + m[7]*y + m[11]*z + m[15],
	}
}

// DegToRad converts an angle in degrees to radians.
func DegToRad(deg float32) float32 {
	return deg * (math.Pi / 180.0)
}

// LookAtLH builds a left-handed view matrix: +Z points from the eye toward the target.
// The up vector is normalized before use.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - eye: camera position in world space
//   - target: point the camera looks at
//   - up: up direction (need not be unit length)
func LookAtLH(out []float32, eye, target, up [3]float32) {
	z := normalize3(sub3(target, eye))
	x := normalize3(cross3(normalize3(up), z))
	y := cross3(z, x)

	out[0], out[1], out[2], out[3] = x[0], y[0], z[0], 0
	out[4], out[5], out[6], out[7] = x[1], y[1], z[1], 0
	out[8], out[9], out[10], out[11] = x[2], y[2], z[2], 0
	out[12] = -dot3(x, eye)
	out[13] = -dot3(y, eye)
	out[14] = -dot3(z, eye)
	out[15] = 1
}

// PerspectiveLH builds a left-handed perspective projection with clip-space depth in [0, 1].
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
func PerspectiveLH(out []float32, fovY, aspect, near, far float32) {
	yScale := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	xScale := yScale / aspect
	for i := range out[:16] {
		out[i] = 0
	}
	out[0] = xScale
	out[5] = yScale
	out[10] = far / (far - near)
	out[11] = 1
	out[14] = -near * far / (far - near)
}

// Scaling writes a non-uniform scale matrix into out.
func Scaling(out []float32, sx, sy, sz float32) {
	Identity(out)
	out[0], out[5], out[10] = sx, sy, sz
}

// Translation writes a translation matrix into out.
func Translation(out []float32, tx, ty, tz float32) {
	Identity(out)
	out[12], out[13], out[14] = tx, ty, tz
}

// RotationX writes a rotation of angle radians about the X axis into out. Positive angles turn +Y
// toward -Z.
func RotationX(out []float32, angle float32) {
	c := float32(math.Cos(float64(angle)))
	s := float32(math.Sin(float64(angle)))
	Identity(out)
	out[5], out[6] = c, -s
	out[9], out[10] = s, c
}

// RotationY writes a rotation of angle radians about the Y axis into out. Positive angles turn +X
// toward +Z.
func RotationY(out []float32, angle float32) {
	c := float32(math.Cos(float64(angle)))
	s := float32(math.Sin(float64(angle)))
	Identity(out)
	out[0], out[2] = c, s
	out[8], out[10] = -s, c
}

// ModelMatrix builds the turntable model transform: rotate about Y, then about X, then push the
// object depth units along -Z.
//
// Parameters:
//   - out: destination slice (must be at least 16 elements)
//   - angleX: rotation about X in radians
//   - angleY: rotation about Y in radians
//   - depth: translation applied along -Z after rotating
func ModelMatrix(out []float32, angleX, angleY, depth float32) {
	var rx, ry, rot, t [16]float32
	RotationX(rx[:], angleX)
	RotationY(ry[:], angleY)
	Translation(t[:], 0, 0, -depth)
	// column-major a*b is the row-vector product b*a
	Mul4(rot[:], rx[:], ry[:])
	Mul4(out, t[:], rot[:])
}

func sub3(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross3(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func normalize3(v [3]float32) [3]float32 {
	l := float32(math.Sqrt(float64(dot3(v, v))))
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}
