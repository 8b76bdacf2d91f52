package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-quilt/common"
)

// DefaultModelDepth is the push-back distance of the turntable model.
const DefaultModelDepth = 3.0

type modelControllerImpl struct {
	mu *sync.Mutex

	angleX float32
	angleY float32
	depth  float32

	speed    float32
	minPitch float32
	maxPitch float32
}

// Compile-time interface compliance check
var _ ModelController = &modelControllerImpl{}

// NewModelController creates a turntable controller at zero rotation and DefaultModelDepth.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - ModelController: the newly created controller
func NewModelController(options ...ModelControllerOption) ModelController {
	mc := &modelControllerImpl{
		mu:       &sync.Mutex{},
		depth:    DefaultModelDepth,
		speed:    0.05,
		minPitch: -math.Pi / 2,
		maxPitch: math.Pi / 2,
	}
	for _, option := range options {
		option(mc)
	}
	mc.angleX = common.Clamp(mc.angleX, mc.minPitch, mc.maxPitch)
	return mc
}

func (mc *modelControllerImpl) RotateLeft() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.angleY -= mc.speed
}

func (mc *modelControllerImpl) RotateRight() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.angleY += mc.speed
}

func (mc *modelControllerImpl) RotateUp() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.angleX = common.Clamp(mc.angleX-mc.speed, mc.minPitch, mc.maxPitch)
}

func (mc *modelControllerImpl) RotateDown() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.angleX = common.Clamp(mc.angleX+mc.speed, mc.minPitch, mc.maxPitch)
}

func (mc *modelControllerImpl) HandleKey(key int) bool {
	switch key {
	case common.KeyLeft:
		mc.RotateLeft()
	case common.KeyRight:
		mc.RotateRight()
	case common.KeyUp:
		mc.RotateUp()
	case common.KeyDown:
		mc.RotateDown()
	default:
		return false
	}
	return true
}

func (mc *modelControllerImpl) AngleX() float32 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.angleX
}

func (mc *modelControllerImpl) AngleY() float32 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.angleY
}

func (mc *modelControllerImpl) SetAngles(angleX, angleY float32) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.angleX = common.Clamp(angleX, mc.minPitch, mc.maxPitch)
	mc.angleY = angleY
}

func (mc *modelControllerImpl) Depth() float32 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.depth
}

func (mc *modelControllerImpl) SetDepth(depth float32) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.depth = depth
}

func (mc *modelControllerImpl) RotationSpeed() float32 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.speed
}

func (mc *modelControllerImpl) ModelMatrix() [16]float32 {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	var m [16]float32
	common.ModelMatrix(m[:], mc.angleX, mc.angleY, mc.depth)
	return m
}
