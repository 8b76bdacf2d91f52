package wgpu_device

import "time"

// DeviceBuilderOption configures a WebGPU device.
type DeviceBuilderOption func(*device)

// WithForceFallbackAdapter requests the platform's software WebGPU adapter.
func WithForceFallbackAdapter(fallback bool) DeviceBuilderOption {
	return func(d *device) {
		d.fallback = fallback
	}
}

// WithMaxTextureDimension caps the texture size requested from the adapter.
func WithMaxTextureDimension(dim uint32) DeviceBuilderOption {
	return func(d *device) {
		d.maxDim = dim
	}
}

// WithPollInterval sets the backoff bounds used while waiting on fences and buffer maps.
//
// Parameters:
//   - min: the first poll delay
//   - max: the longest poll delay
func WithPollInterval(min, max time.Duration) DeviceBuilderOption {
	return func(d *device) {
		if min > 0 && max >= min {
			d.pollMin, d.pollMax = min, max
		}
	}
}

// WithPollTimeout bounds how long a single wait polls before the device is treated as hung.
func WithPollTimeout(timeout time.Duration) DeviceBuilderOption {
	return func(d *device) {
		d.pollTimeout = timeout
	}
}
