package device

import "time"

// ewmaAlpha weights the newest sample in the exponentially weighted
// moving average that smooths energy_rate (spec §4.2). A higher alpha
// tracks faster but is noisier; 0.3 is a conventional middle ground for a
// 30-60s sample cadence.
const ewmaAlpha = 0.3

const minSampleInterval = 10 * time.Second

const (
	minEstimate = 60 * time.Second
	maxEstimate = 240 * time.Hour
)

// RateInput carries the two snapshots and timing rate smoothing needs;
// it is computed by the backend, which alone tracks per-device sample
// timestamps across refresh ticks.
type RateInput struct {
	Prior        *Device
	PriorSampled time.Time
	Now          time.Time
	// PowerNow, when non-zero, is a directly reported instantaneous power
	// reading (W); when present it replaces the Δenergy/Δt derivation but
	// is still EWMA-smoothed against the prior rate.
	PowerNow float64
}

// ApplyRate computes d.EnergyRate and the time-to-empty/full estimates in
// place, implementing spec §4.2's rate smoothing and time estimation.
func ApplyRate(d *Device, in RateInput) {
	if d.State != StateCharging && d.State != StateDischarging {
		if d.State == StateFullyCharged || d.State == StateEmpty {
			d.EnergyRate = 0
		}
		d.TimeToEmpty = 0
		d.TimeToFull = 0
		return
	}

	sample := instantaneousRate(d, in)
	if sample >= 0 {
		if in.Prior == nil || in.Prior.EnergyRate == 0 {
			d.EnergyRate = sample
		} else {
			d.EnergyRate = ewmaAlpha*sample + (1-ewmaAlpha)*in.Prior.EnergyRate
		}
	} else if in.Prior != nil {
		// Sample discarded (too-frequent tick or sign flip): keep the
		// prior smoothed rate rather than snapping to zero.
		d.EnergyRate = in.Prior.EnergyRate
	}

	d.TimeToEmpty = 0
	d.TimeToFull = 0
	if d.EnergyRate <= 0 {
		return
	}
	switch d.State {
	case StateDischarging:
		d.TimeToEmpty = clampEstimateSeconds(d.Energy / d.EnergyRate)
	case StateCharging:
		if d.EnergyFull > 0 {
			d.TimeToFull = clampEstimateSeconds((d.EnergyFull - d.Energy) / d.EnergyRate)
		}
	}
}

// instantaneousRate returns a non-negative W sample, or -1 if the sample
// must be discarded (insufficient elapsed time, or a sign flip against
// the prior direction within a short window).
func instantaneousRate(d *Device, in RateInput) float64 {
	if in.PowerNow > 0 {
		return in.PowerNow
	}
	if in.Prior == nil || in.PriorSampled.IsZero() {
		return -1
	}
	dt := in.Now.Sub(in.PriorSampled)
	if dt < minSampleInterval {
		return -1
	}
	dEnergy := d.Energy - in.Prior.Energy
	rate := dEnergy / dt.Hours()
	if d.State == StateDischarging && dEnergy > 0 {
		return -1 // sign-flipped: energy rose while discharging
	}
	if d.State == StateCharging && dEnergy < 0 {
		return -1
	}
	if rate < 0 {
		rate = -rate
	}
	return rate
}

// ClampEstimateSeconds applies spec §4.2's [60s, 240h] time-estimate
// window to an hours value, used by both per-device rate smoothing and
// the display device's sum-then-recompute synthesis (spec §4.4).
func ClampEstimateSeconds(hours float64) int64 { return clampEstimateSeconds(hours) }

// clampEstimateSeconds enforces spec §4.2's [60s, 240h] window; values
// outside it mean "unknown" (0).
func clampEstimateSeconds(hours float64) int64 {
	if hours <= 0 {
		return 0
	}
	d := time.Duration(hours * float64(time.Hour))
	if d < minEstimate || d > maxEstimate {
		return 0
	}
	return int64(d / time.Second)
}
