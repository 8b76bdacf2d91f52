package renderer

import (
	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/Carmen-Shannon/oxy-quilt/engine/gpu"
	"github.com/pkg/errors"
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Only specific power-of-two values are valid for GPU hardware. 4 is supported by every backend;
// higher values are adapter-dependent and may not be available.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4

	// MSAA8x enables 8× multisample anti-aliasing. Adapter-dependent; not all hardware supports this.
	MSAA8x MSAASampleCount = 8
)

// OpenDevice opens the first backend that succeeds for target, trying hardware backends before
// software ones unless pref says otherwise. Backends register themselves when their package is
// imported, so callers blank-import the backends they want available.
//
// Parameters:
//   - target: the window surface, or nil for offscreen use
//   - pref: the adapter preference
//
// Returns:
//   - gpu.Device: the opened device
//   - []gpu.AttemptResult: one result per attempt, in order
//   - error: wraps gpu.ErrNoAdapter when every attempt failed
func OpenDevice(target gpu.SurfaceTarget, pref gpu.AdapterPreference) (gpu.Device, []gpu.AttemptResult, error) {
	attempts := gpu.Attempts(pref)
	if len(attempts) == 0 {
		return nil, nil, errors.Wrapf(gpu.ErrNoAdapter, "no backend registered for preference %s", pref)
	}
	dev, results, err := gpu.SelectAdapter(target, attempts)
	if err != nil {
		return nil, results, err
	}
	info := dev.Info()
	common.ComponentLogger("renderer").Info("device opened",
		"adapter", info.Name, "kind", info.Kind, "backend", info.Backend, "attempts", len(results))
	return dev, results, nil
}
