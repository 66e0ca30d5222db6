// Package warning implements the per-device warning-level state machine
// (spec §4.5): a pure function of (Device, prior level, thresholds) with
// hysteresis on the way back down from low/critical/action.
package warning

import "upowerd/internal/device"

// Thresholds holds the configurable percentage/time cutoffs (spec §6).
type Thresholds struct {
	PercentageLow      float64
	PercentageCritical float64
	PercentageAction   float64
	TimeLow            int64 // seconds
	TimeCritical       int64
	TimeAction         int64
	UsePercentageOnly  bool
}

// DefaultThresholds mirrors spec §6's literal defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PercentageLow:      10,
		PercentageCritical: 5,
		PercentageAction:   2,
		TimeLow:            600,
		TimeCritical:       300,
		TimeAction:         120,
	}
}

// state tracks, per device, the percentage at which the device most
// recently entered a low/critical/action level, for the hysteresis rule.
type state struct {
	level     device.WarningLevel
	entryPct  float64
	enteredAt bool
}

// Engine holds per-device hysteresis state. Not safe for concurrent use;
// callers serialize through the aggregator's single main loop.
type Engine struct {
	thresholds Thresholds
	devices    map[string]*state
}

// New constructs an Engine with the given thresholds.
func New(t Thresholds) *Engine {
	return &Engine{thresholds: t, devices: map[string]*state{}}
}

// SetThresholds replaces the configured thresholds (e.g. on config reload).
func (e *Engine) SetThresholds(t Thresholds) { e.thresholds = t }

// Forget discards hysteresis state for a removed device's object path.
func (e *Engine) Forget(objectPath string) { delete(e.devices, objectPath) }

// Evaluate computes the warning level for d (spec §4.5's threshold table
// plus hysteresis) and records the new state for objectPath.
func (e *Engine) Evaluate(objectPath string, d device.Device, isUPS bool) device.WarningLevel {
	st := e.devices[objectPath]
	if st == nil {
		st = &state{level: device.WarningUnknown}
		e.devices[objectPath] = st
	}

	target := e.classify(d, isUPS)

	if st.enteredAt && isSevere(st.level) && rank(target) < rank(st.level) {
		// Hysteresis: once severe, leave only once percentage has risen at
		// least 1 point above the entry threshold AND the device is no
		// longer discharging (spec §4.5) — a milder target alone is not
		// enough while still discharging.
		canLeave := d.Percentage >= st.entryPct+1 && d.State != device.StateDischarging
		if !canLeave {
			return st.level
		}
	}

	if isSevere(target) {
		if !isSevere(st.level) || target != st.level {
			st.entryPct = entryThresholdPercentage(e.thresholds, target)
		}
		st.enteredAt = true
	} else {
		st.enteredAt = false
	}
	st.level = target
	return target
}

func isSevere(l device.WarningLevel) bool {
	return l == device.WarningLow || l == device.WarningCritical || l == device.WarningAction
}

func entryThresholdPercentage(t Thresholds, level device.WarningLevel) float64 {
	switch level {
	case device.WarningAction:
		return t.PercentageAction
	case device.WarningCritical:
		return t.PercentageCritical
	case device.WarningLow:
		return t.PercentageLow
	default:
		return 0
	}
}

// classify applies spec §4.5's threshold table, ignoring hysteresis. A
// non-discharging device is always "none". A discharging UPS that has
// not yet crossed any percentage/time threshold reports "discharging"
// rather than "none", so clients can tell a UPS is on battery before it
// gets close to empty; a plain battery's equivalent baseline is "none".
func (e *Engine) classify(d device.Device, isUPS bool) device.WarningLevel {
	if d.State != device.StateDischarging {
		return device.WarningNone
	}
	t := e.thresholds
	below := func(pct float64, timeSec int64) bool {
		if d.Percentage <= pct {
			return true
		}
		if t.UsePercentageOnly {
			return false
		}
		return timeSec > 0 && d.TimeToEmpty > 0 && d.TimeToEmpty <= timeSec
	}
	switch {
	case below(t.PercentageAction, t.TimeAction):
		return device.WarningAction
	case below(t.PercentageCritical, t.TimeCritical):
		return device.WarningCritical
	case below(t.PercentageLow, t.TimeLow):
		return device.WarningLow
	case isUPS:
		return device.WarningDischarging
	default:
		return device.WarningNone
	}
}

// rank orders warning levels by severity for worst-of comparisons.
func rank(l device.WarningLevel) int {
	switch l {
	case device.WarningAction:
		return 4
	case device.WarningCritical:
		return 3
	case device.WarningLow:
		return 2
	case device.WarningDischarging:
		return 1
	default:
		return 0
	}
}

// GlobalLevel returns the worst level across devices that are
// power_supply=true and currently supplying the host (spec §4.4's
// "global warning-level = worst level across devices that are
// power_supply=true and currently supplying the host").
func GlobalLevel(levels []device.WarningLevel) device.WarningLevel {
	worst := device.WarningNone
	for _, l := range levels {
		if rank(l) > rank(worst) {
			worst = l
		}
	}
	return worst
}
