package soft_device

import (
	"runtime"
	"time"
)

// DeviceBuilderOption configures a software device.
type DeviceBuilderOption func(*device)

// WithName sets the adapter name reported by Info.
func WithName(name string) DeviceBuilderOption {
	return func(d *device) {
		d.name = name
	}
}

// WithMaxTextureDimension sets the largest texture width or height the device accepts.
func WithMaxTextureDimension(dim uint32) DeviceBuilderOption {
	return func(d *device) {
		if dim > 0 {
			d.maxDim = dim
		}
	}
}

// WithMultisampleQualityLevels sets how many quality levels a sample count reports. Zero levels
// marks the count unsupported.
func WithMultisampleQualityLevels(sampleCount, levels uint32) DeviceBuilderOption {
	return func(d *device) {
		d.msaaLevels[sampleCount] = levels
	}
}

// WithRasterWorkers sets how many tile batches rasterize concurrently.
func WithRasterWorkers(n int) DeviceBuilderOption {
	return func(d *device) {
		if n > 0 {
			d.rasterWorkers = n
		}
	}
}

// WithExecutionDelay makes the executor sleep before each command-list submission, simulating a
// slow GPU.
func WithExecutionDelay(delay time.Duration) DeviceBuilderOption {
	return func(d *device) {
		d.execDelay = delay
	}
}

func defaultRasterWorkers() int {
	n := runtime.NumCPU() / 2
	if n < 1 {
		n = 1
	}
	return n
}
