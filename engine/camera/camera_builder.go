package camera

type CameraBuilderOption func(*cameraImpl)

// WithParams replaces every camera parameter.
//
// Parameters:
//   - p: the parameters to use
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's parameters
func WithParams(p Params) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.params = p
	}
}

// WithSize sets the half-height of the focal plane.
//
// Parameters:
//   - size: focal plane size in world units
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's size
func WithSize(size float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.params.Size = size
	}
}

// WithCenter sets the look-at point.
//
// Parameters:
//   - x, y, z: world-space target position
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's center
func WithCenter(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.params.Center = [3]float32{x, y, z}
	}
}

// WithUp sets the camera's up vector.
//
// Parameters:
//   - x, y, z: up vector components
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's up vector
func WithUp(x, y, z float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.params.Up = [3]float32{x, y, z}
	}
}

// WithFov sets the camera's vertical field of view in degrees.
//
// Parameters:
//   - fov: field of view in degrees
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.params.FOV = fov
	}
}

// WithViewcone sets the angle in degrees swept across all views.
//
// Parameters:
//   - viewcone: viewcone in degrees
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's viewcone
func WithViewcone(viewcone float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.params.Viewcone = viewcone
	}
}

// WithAspect sets the per-view aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.params.Aspect = aspect
	}
}

// WithNear sets the near clipping plane distance.
//
// Parameters:
//   - near: near plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the near plane
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.params.Near = near
	}
}

// WithFar sets the far clipping plane distance.
//
// Parameters:
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: functional option to set the far plane
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.params.Far = far
	}
}
