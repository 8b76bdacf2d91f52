package camera

// ModelController drives the turntable transform of the displayed model. It owns two rotation
// angles and a push-back depth and turns them into a model matrix each frame. The quilt camera
// itself never moves; rotating the model is how the scene is inspected.
type ModelController interface {
	// RotateLeft spins the model about Y by one rotation step.
	RotateLeft()

	// RotateRight spins the model about Y by one rotation step in the other direction.
	RotateRight()

	// RotateUp tilts the model about X by one rotation step, clamped to the pitch bounds.
	RotateUp()

	// RotateDown tilts the model about X by one rotation step, clamped to the pitch bounds.
	RotateDown()

	// HandleKey applies the rotation bound to an arrow key.
	//
	// Parameters:
	//   - key: a common.Key* code
	//
	// Returns:
	//   - bool: true if the key rotated the model
	HandleKey(key int) bool

	// AngleX returns the pitch in radians.
	//
	// Returns:
	//   - float32: rotation about X
	AngleX() float32

	// AngleY returns the yaw in radians.
	//
	// Returns:
	//   - float32: rotation about Y
	AngleY() float32

	// SetAngles sets both angles directly. The pitch is clamped to the bounds.
	//
	// Parameters:
	//   - angleX: rotation about X in radians
	//   - angleY: rotation about Y in radians
	SetAngles(angleX, angleY float32)

	// Depth returns how far the model is pushed along -Z after rotating.
	//
	// Returns:
	//   - float32: the push-back distance
	Depth() float32

	// SetDepth sets the push-back distance.
	//
	// Parameters:
	//   - depth: distance along -Z
	SetDepth(depth float32)

	// RotationSpeed returns the angle applied per rotation step.
	//
	// Returns:
	//   - float32: radians per step
	RotationSpeed() float32

	// ModelMatrix returns the column-major world matrix: rotate about Y, then X, then translate.
	//
	// Returns:
	//   - [16]float32: the model matrix
	ModelMatrix() [16]float32
}
