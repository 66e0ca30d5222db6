package device

// resolveState maps the raw status text to a State, falling back to the
// §4.2 "unknown state resolution" algorithm when the source itself
// reports unknown (or an unrecognized string).
func resolveState(raw RawSnapshot, prior *Device, d Device) State {
	switch raw.Get("status") {
	case "Charging":
		return StateCharging
	case "Discharging":
		return StateDischarging
	case "Empty":
		return StateEmpty
	case "Full", "Not charging":
		return StateFullyCharged
	}
	return resolveUnknownState(prior, d)
}

// resolveUnknownState implements spec §4.2's fallback: compare current
// energy to the prior sample (rising ⇒ charging, falling ⇒ discharging,
// flat+full ⇒ fully_charged); with no prior sample it returns
// StateUnknown (ResolveInitialState covers that case from line power).
func resolveUnknownState(prior *Device, d Device) State {
	if prior == nil {
		return StateUnknown
	}
	switch {
	case d.Energy > prior.Energy:
		return StateCharging
	case d.Energy < prior.Energy:
		return StateDischarging
	case d.EnergyFull > 0 && d.Energy >= d.EnergyFull:
		return StateFullyCharged
	default:
		return prior.State
	}
}

// ResolveInitialState is used by the backend when it has no RawSnapshot
// status field at all (first coldplug sample of a source whose adapter
// cannot report status) but knows whether mains is present and online.
func ResolveInitialState(linePowerPresent, linePowerOnline bool) State {
	if !linePowerPresent {
		return StateDischarging
	}
	if linePowerOnline {
		return StateCharging
	}
	return StateDischarging
}

// LinePowerStatus summarizes whether any line-power device among
// devices is present and whether any is online. The backend's coldplug
// and hotplug-add paths use this to resolve a battery's or UPS's
// initial state via ResolveInitialState when the source's own status
// field was unreadable or absent (spec §4.2).
func LinePowerStatus(devices []Device) (present, online bool) {
	for _, d := range devices {
		if d.Kind != KindLinePower {
			continue
		}
		if d.IsPresent {
			present = true
		}
		if d.Online {
			online = true
		}
	}
	return present, online
}
