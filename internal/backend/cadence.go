package backend

import (
	"time"

	"upowerd/internal/device"
)

// Default refresh cadences (spec §4.3).
const (
	DefaultPeripheralCadence = 30 * time.Second
	DefaultBatteryCadence    = 60 * time.Second
	PostTransitionCadence    = 10 * time.Second
	// PostTransitionWindow is how long after a state transition the
	// faster post-transition cadence stays in effect, to let the rate
	// estimate converge.
	PostTransitionWindow = 2 * time.Minute
)

// RefreshInterval picks the scheduled refresh cadence for a device
// (spec §4.3): 30s for line_power and peripherals, 60s for system
// batteries/UPS with rate smoothing active, 10s for 2 minutes after any
// state transition.
func RefreshInterval(kind device.Kind, justTransitioned bool) time.Duration {
	if justTransitioned {
		return PostTransitionCadence
	}
	switch kind {
	case device.KindBattery, device.KindUPS:
		return DefaultBatteryCadence
	default:
		return DefaultPeripheralCadence
	}
}
