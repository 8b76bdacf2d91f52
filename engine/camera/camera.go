package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/pkg/errors"
)

// ErrInvalidParams is returned when camera parameters cannot form a projection.
var ErrInvalidParams = errors.New("camera: invalid parameters")

// Params are the multi-view camera parameters. Angles are in degrees.
type Params struct {
	// Size is the half-height of the focal plane in world units.
	Size   float32
	Center [3]float32
	Up     [3]float32
	// FOV is the vertical field of view in degrees.
	FOV float32
	// Viewcone is the angle in degrees swept between the first and last view.
	Viewcone float32
	Aspect   float32
	Near     float32
	Far      float32
}

// DefaultParams returns size 10 centered on the origin, +Y up, a 45 degree field of view, a 40
// degree viewcone, square aspect and a 0.1 to 100 depth range.
func DefaultParams() Params {
	return Params{
		Size:     10,
		Up:       [3]float32{0, 1, 0},
		FOV:      45,
		Viewcone: 40,
		Aspect:   1,
		Near:     0.1,
		Far:      100,
	}
}

// Validate reports parameters that cannot produce a finite projection.
func (p Params) Validate() error {
	switch {
	case !(p.Size > 0):
		return errors.Wrapf(ErrInvalidParams, "size %v must be positive", p.Size)
	case !(p.FOV > 0) || p.FOV >= 180:
		return errors.Wrapf(ErrInvalidParams, "field of view %v must be in (0, 180)", p.FOV)
	case !(p.Near > 0) || !(p.Near < p.Far):
		return errors.Wrapf(ErrInvalidParams, "near %v and far %v must satisfy 0 < near < far", p.Near, p.Far)
	case !(p.Viewcone > -90 && p.Viewcone < 90):
		return errors.Wrapf(ErrInvalidParams, "viewcone %v must be in (-90, 90)", p.Viewcone)
	case !(p.Aspect > 0):
		return errors.Wrapf(ErrInvalidParams, "aspect %v must be positive", p.Aspect)
	case p.Up == [3]float32{}:
		return errors.Wrap(ErrInvalidParams, "up vector is zero")
	}
	return nil
}

// CameraDistance returns how far the eye sits from the focal plane so that it spans Size.
func (p Params) CameraDistance() float32 {
	return p.Size / float32(math.Tan(float64(common.DegToRad(p.FOV))))
}

// CameraOffset returns the horizontal eye travel that sweeps the viewcone at CameraDistance.
func (p Params) CameraOffset() float32 {
	return p.CameraDistance() * float32(math.Tan(float64(common.DegToRad(p.Viewcone))))
}

// ViewOffset returns the horizontal eye offset of the view at normalizedView. It is zero at 0.5
// and odd about it.
func (p Params) ViewOffset(normalizedView, depthiness float32) float32 {
	return -(normalizedView - 0.5) * depthiness * p.CameraOffset()
}

// ComputeViewProjection derives the view and projection matrices of one view. It is a pure
// function: identical inputs give bit-identical matrices. Values of normalizedView outside [0, 1]
// extrapolate linearly.
//
// Parameters:
//   - p: the camera parameters
//   - normalizedView: the view position across the viewcone, 0 for the first view and 1 for the last
//   - invert: flip the up vector and skip the horizontal mirror
//   - depthiness: scales the eye offset
//   - focus: shifts the frustum per view to move the zero-parallax plane
//
// Returns:
//   - view: column-major left-handed view matrix
//   - proj: column-major left-handed projection with depth in [0, 1]
func ComputeViewProjection(p Params, normalizedView float32, invert bool, depthiness, focus float32) (view, proj [16]float32) {
	offset := p.ViewOffset(normalizedView, depthiness)
	eye := [3]float32{offset, 0, -p.CameraDistance()}
	up := p.Up
	if invert {
		up[1] = -up[1]
	}

	common.LookAtLH(view[:], eye, p.Center, up)
	if !invert {
		// mirror world X before the view transform
		var look, flip [16]float32
		look = view
		common.Scaling(flip[:], -1, 1, 1)
		common.Mul4(view[:], look[:], flip[:])
	}

	common.PerspectiveLH(proj[:], common.DegToRad(p.FOV), p.Aspect, p.Near, p.Far)
	// row 3, column 1 of the row-vector form
	proj[8] += offset*2/(p.Size*p.Aspect) + (normalizedView-0.5)*focus
	return view, proj
}

type cameraImpl struct {
	mu     *sync.Mutex
	params Params
}

// Camera defines the interface for the multi-view camera.
// The camera holds the quilt camera parameters and derives a view and projection per view index.
// Nothing is cached: every call recomputes from the current parameters.
type Camera interface {
	// Params returns a copy of the current parameters.
	//
	// Returns:
	//   - Params: the camera parameters
	Params() Params

	// SetParams replaces every parameter after validating them.
	//
	// Parameters:
	//   - p: the new parameters
	//
	// Returns:
	//   - error: ErrInvalidParams when p cannot form a projection; the camera is unchanged
	SetParams(p Params) error

	// Size returns the half-height of the focal plane.
	//
	// Returns:
	//   - float32: the focal plane size in world units
	Size() float32

	// SetSize sets the half-height of the focal plane.
	//
	// Parameters:
	//   - size: the focal plane size in world units
	//
	// Returns:
	//   - error: ErrInvalidParams when size is not positive; the camera is unchanged
	SetSize(size float32) error

	// Center returns the look-at point.
	//
	// Returns:
	//   - x, y, z: world-space target position
	Center() (x, y, z float32)

	// SetCenter sets the look-at point.
	//
	// Parameters:
	//   - x, y, z: world-space target position
	//
	// Returns:
	//   - error: ErrInvalidParams when the resulting parameters are invalid
	SetCenter(x, y, z float32) error

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - x, y, z: up vector components
	Up() (x, y, z float32)

	// SetUp sets the camera's up vector.
	//
	// Parameters:
	//   - x, y, z: up vector components
	//
	// Returns:
	//   - error: ErrInvalidParams when the vector is zero; the camera is unchanged
	SetUp(x, y, z float32) error

	// Fov returns the vertical field of view in degrees.
	Fov() float32

	// SetFov sets the vertical field of view in degrees. Values outside (0, 180) are rejected with
	// ErrInvalidParams.
	SetFov(fov float32) error

	// Viewcone returns the viewcone angle in degrees.
	Viewcone() float32

	// SetViewcone sets the viewcone angle in degrees.
	SetViewcone(viewcone float32) error

	// Aspect returns the per-view aspect ratio (width / height).
	Aspect() float32

	// SetAspect sets the per-view aspect ratio (width / height).
	SetAspect(aspect float32) error

	// Near returns the near clipping plane distance.
	Near() float32

	// SetNear sets the near clipping plane distance. It must stay below Far.
	SetNear(near float32) error

	// Far returns the far clipping plane distance.
	Far() float32

	// SetFar sets the far clipping plane distance.
	SetFar(far float32) error

	// CameraDistance returns the eye distance from the focal plane.
	CameraDistance() float32

	// CameraOffset returns the eye travel across the whole viewcone.
	CameraOffset() float32

	// ViewOffset returns the horizontal eye offset of one view.
	//
	// Parameters:
	//   - normalizedView: the view position across the viewcone
	//   - depthiness: scales the offset
	//
	// Returns:
	//   - float32: the offset along the camera X axis
	ViewOffset(normalizedView, depthiness float32) float32

	// ViewProjection derives the matrices of one view from the current parameters.
	//
	// Parameters:
	//   - normalizedView: the view position across the viewcone, 0 for the first view and 1 for the last
	//   - invert: flip the up vector and skip the horizontal mirror
	//   - depthiness: scales the eye offset
	//   - focus: shifts the frustum per view
	//
	// Returns:
	//   - view, proj: column-major view and projection matrices
	ViewProjection(normalizedView float32, invert bool, depthiness, focus float32) (view, proj [16]float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with DefaultParams, then applies options.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
//   - error: ErrInvalidParams when the options leave parameters that cannot form a projection
func NewCamera(options ...CameraBuilderOption) (Camera, error) {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		params: DefaultParams(),
	}
	for _, option := range options {
		option(c)
	}
	if err := c.params.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *cameraImpl) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

func (c *cameraImpl) SetParams(p Params) error {
	return c.update(func(dst *Params) {
		*dst = p
	})
}

// update applies fn to a copy of the parameters and stores the copy only when it validates.
func (c *cameraImpl) update(fn func(p *Params)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.params
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	c.params = next
	return nil
}

func (c *cameraImpl) Size() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Size
}

func (c *cameraImpl) SetSize(size float32) error {
	return c.update(func(p *Params) {
		p.Size = size
	})
}

func (c *cameraImpl) Center() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Center[0], c.params.Center[1], c.params.Center[2]
}

func (c *cameraImpl) SetCenter(x, y, z float32) error {
	return c.update(func(p *Params) {
		p.Center = [3]float32{x, y, z}
	})
}

func (c *cameraImpl) Up() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Up[0], c.params.Up[1], c.params.Up[2]
}

func (c *cameraImpl) SetUp(x, y, z float32) error {
	return c.update(func(p *Params) {
		p.Up = [3]float32{x, y, z}
	})
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.FOV
}

func (c *cameraImpl) SetFov(fov float32) error {
	return c.update(func(p *Params) {
		p.FOV = fov
	})
}

func (c *cameraImpl) Viewcone() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Viewcone
}

func (c *cameraImpl) SetViewcone(viewcone float32) error {
	return c.update(func(p *Params) {
		p.Viewcone = viewcone
	})
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Aspect
}

func (c *cameraImpl) SetAspect(aspect float32) error {
	return c.update(func(p *Params) {
		p.Aspect = aspect
	})
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Near
}

func (c *cameraImpl) SetNear(near float32) error {
	return c.update(func(p *Params) {
		p.Near = near
	})
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Far
}

func (c *cameraImpl) SetFar(far float32) error {
	return c.update(func(p *Params) {
		p.Far = far
	})
}

func (c *cameraImpl) CameraDistance() float32 {
	return c.Params().CameraDistance()
}

func (c *cameraImpl) CameraOffset() float32 {
	return c.Params().CameraOffset()
}

func (c *cameraImpl) ViewOffset(normalizedView, depthiness float32) float32 {
	return c.Params().ViewOffset(normalizedView, depthiness)
}

func (c *cameraImpl) ViewProjection(normalizedView float32, invert bool, depthiness, focus float32) (view, proj [16]float32) {
	return ComputeViewProjection(c.Params(), normalizedView, invert, depthiness, focus)
}
