package camera

// ModelControllerOption is a functional option for configuring a ModelController.
type ModelControllerOption func(*modelControllerImpl)

// WithAngles sets the initial rotation.
//
// Parameters:
//   - angleX: rotation about X in radians
//   - angleY: rotation about Y in radians
//
// Returns:
//   - ModelControllerOption: functional option to set the angles
func WithAngles(angleX, angleY float32) ModelControllerOption {
	return func(mc *modelControllerImpl) {
		mc.angleX = angleX
		mc.angleY = angleY
	}
}

// WithDepth sets how far the model is pushed along -Z.
//
// Parameters:
//   - depth: the push-back distance
//
// Returns:
//   - ModelControllerOption: functional option to set the depth
func WithDepth(depth float32) ModelControllerOption {
	return func(mc *modelControllerImpl) {
		mc.depth = depth
	}
}

// WithRotationSpeed sets the keyboard rotation speed.
//
// Parameters:
//   - speed: radians per rotation call
//
// Returns:
//   - ModelControllerOption: functional option to set rotation speed
func WithRotationSpeed(speed float32) ModelControllerOption {
	return func(mc *modelControllerImpl) {
		mc.speed = speed
	}
}

// WithPitchBounds sets the minimum and maximum rotation about X.
//
// Parameters:
//   - min: minimum pitch in radians
//   - max: maximum pitch in radians
//
// Returns:
//   - ModelControllerOption: functional option to set pitch bounds
func WithPitchBounds(min, max float32) ModelControllerOption {
	return func(mc *modelControllerImpl) {
		mc.minPitch = min
		mc.maxPitch = max
	}
}
