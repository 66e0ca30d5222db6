package aggregator

import "upowerd/internal/device"

// OnBattery computes spec §4.4's OnBattery boolean: true iff some
// power_supply battery reports state ∈ {discharging, pending_discharge}
// AND no power_supply line_power reports online=true. A UPS in one of
// those states makes OnBattery true whatever any line_power reports
// (the §9(a) Open Question resolution). Absent both a system battery
// and a line-power source, OnBattery is false.
func OnBattery(batteries, linePower []device.Device) bool {
	for _, b := range batteries {
		if b.Kind == device.KindUPS && (b.State == device.StateDischarging || b.State == device.StatePendingDischarge) {
			return true
		}
	}
	anyLineOnline := false
	for _, lp := range linePower {
		if lp.Online {
			anyLineOnline = true
			break
		}
	}
	if anyLineOnline {
		return false
	}
	for _, b := range batteries {
		if b.State == device.StateDischarging || b.State == device.StatePendingDischarge {
			return true
		}
	}
	return false
}
