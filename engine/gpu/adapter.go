package gpu

import (
	"sort"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-quilt/common"
	"github.com/pkg/errors"
)

// AdapterKind distinguishes real hardware from the software fallback.
type AdapterKind int

const (
	AdapterHardware AdapterKind = iota
	AdapterSoftware
)

func (k AdapterKind) String() string {
	if k == AdapterSoftware {
		return "software"
	}
	return "hardware"
}

// AdapterPreference restricts which adapter kinds are attempted.
type AdapterPreference int

const (
	// PreferAuto tries hardware adapters first and falls back to software.
	PreferAuto AdapterPreference = iota
	PreferHardware
	PreferSoftware
)

func (p AdapterPreference) String() string {
	switch p {
	case PreferHardware:
		return "hardware"
	case PreferSoftware:
		return "software"
	default:
		return "auto"
	}
}

// ParseAdapterPreference maps "auto", "hardware" or "software" to a preference.
func ParseAdapterPreference(s string) (AdapterPreference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return PreferAuto, nil
	case "hardware":
		return PreferHardware, nil
	case "software":
		return PreferSoftware, nil
	}
	return PreferAuto, errors.Wrapf(ErrUnsupported, "adapter preference %q", s)
}

// Opener opens a device that can present to target. target may be nil for offscreen use.
type Opener func(target SurfaceTarget) (Device, error)

// Attempt is one entry of the adapter attempt list.
type Attempt struct {
	Kind AdapterKind
	Name string
	Open Opener
}

// AttemptResult records the outcome of one adapter attempt.
type AttemptResult struct {
	Kind AdapterKind
	Name string
	Err  error
}

var (
	backendsMu sync.Mutex
	backends   []Attempt
)

// Register makes a backend available to Attempts. Backends call it from init.
//
// Parameters:
//   - kind: whether the backend drives hardware or is a software fallback
//   - name: unique backend name
//   - open: the device constructor
func Register(kind AdapterKind, name string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	if open == nil {
		panic("gpu: Register opener is nil")
	}
	for _, b := range backends {
		if b.Name == name {
			panic("gpu: Register called twice for backend " + name)
		}
	}
	backends = append(backends, Attempt{Kind: kind, Name: name, Open: open})
}

// Attempts returns the registered backends allowed by pref, hardware first.
func Attempts(pref AdapterPreference) []Attempt {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	out := make([]Attempt, 0, len(backends))
	for _, b := range backends {
		switch {
		case pref == PreferHardware && b.Kind != AdapterHardware:
			continue
		case pref == PreferSoftware && b.Kind != AdapterSoftware:
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// SelectAdapter walks attempts in order and returns the first device that opens.
//
// Parameters:
//   - target: the surface the device must be able to present to, or nil
//   - attempts: the ordered attempt list
//
// Returns:
//   - Device: the opened device
//   - []AttemptResult: one entry per attempt made, in order
//   - error: ErrNoAdapter wrapping the last failure when nothing opened
func SelectAdapter(target SurfaceTarget, attempts []Attempt) (Device, []AttemptResult, error) {
	log := common.ComponentLogger("gpu")
	results := make([]AttemptResult, 0, len(attempts))

	var last error = errors.New("attempt list is empty")
	for _, a := range attempts {
		dev, err := a.Open(target)
		results = append(results, AttemptResult{Kind: a.Kind, Name: a.Name, Err: err})
		if err != nil {
			log.Warn("adapter attempt failed", "adapter", a.Name, "kind", a.Kind.String(), "error", err)
			last = err
			continue
		}
		log.Info("adapter selected", "adapter", a.Name, "kind", a.Kind.String(), "device", dev.Info().Name)
		return dev, results, nil
	}
	return nil, results, errors.Wrapf(ErrNoAdapter, "%d attempts: %v", len(attempts), last)
}
