package device

import "strconv"

// peripheralKinds lists the Kind values whose devices never power the
// host (spec §3's power_supply invariant).
var peripheralKinds = map[Kind]bool{
	KindMouse:            true,
	KindKeyboard:         true,
	KindPDA:              true,
	KindPhone:            true,
	KindMediaPlayer:      true,
	KindTablet:           true,
	KindComputer:         true,
	KindGamingInput:      true,
	KindBluetoothGeneric: true,
}

// Normalize converts a RawSnapshot plus the prior Device (nil on first
// observation) into a new Device (spec §4.2). kind and nativePath are
// supplied by the backend, which alone has the device-tree context
// (parent subsystem walking) needed to classify a raw source; normalize
// is purely about turning attribute strings into derived numeric fields.
func Normalize(raw RawSnapshot, prior *Device, kind Kind, nativePath string, nowSeconds int64) Device {
	d := Device{
		ObjectPath: ObjectPath(kind, nativePath),
		NativePath: nativePath,
		Kind:       kind,
		UpdateTime: nowSeconds,
	}

	d.IsPresent = parseBool(raw.Get("present"), true)
	d.Online = parseBool(raw.Get("online"), false)
	d.Vendor = SanitizeText(raw.Get("manufacturer"))
	d.Model = SanitizeText(raw.Get("model_name"))
	d.Serial = SanitizeText(raw.Get("serial_number"))
	d.Technology = normalizeTechnology(raw.Get("technology"))

	d.PowerSupply = !peripheralKinds[kind]
	if scope := raw.Get("scope"); scope == "Device" {
		d.PowerSupply = false
	}
	d.IsRechargeable = d.Kind == KindBattery || d.Kind == KindUPS || raw.Get("technology") != ""

	if v, ok := parseFloat(raw.Get("voltage_now")); ok {
		d.Voltage = v / 1e6
	}
	if t, ok := parseFloat(raw.Get("temp")); ok {
		d.Temperature = t / 10
	}

	normalizeEnergy(&d, raw)

	d.State = resolveState(raw, prior, d)
	if d.State == StateFullyCharged {
		d.EnergyRate = 0
		d.TimeToEmpty = 0
		d.TimeToFull = 0
	}

	return d
}

// normalizeEnergy implements the §4.2 precedence table.
func normalizeEnergy(d *Device, raw RawSnapshot) {
	energyFull, hasEnergyFull := parseFloat(raw.Get("energy_full"))
	energyNow, hasEnergyNow := parseFloat(raw.Get("energy_now"))
	energyFullDesign, hasEnergyFullDesign := parseFloat(raw.Get("energy_full_design"))
	chargeFull, hasChargeFull := parseFloat(raw.Get("charge_full"))
	chargeNow, hasChargeNow := parseFloat(raw.Get("charge_now"))
	chargeFullDesign, hasChargeFullDesign := parseFloat(raw.Get("charge_full_design"))
	voltage, hasVoltage := parseFloat(raw.Get("voltage_now"))
	capacityPct, hasCapacity := parseFloat(raw.Get("capacity"))

	switch {
	case hasEnergyFull && hasEnergyNow:
		d.Energy = energyNow / 1e6
		d.EnergyFull = energyFull / 1e6
		if hasEnergyFullDesign {
			d.EnergyFullDesign = energyFullDesign / 1e6
		} else {
			d.EnergyFullDesign = d.EnergyFull
		}
	case hasChargeFull && hasChargeNow && hasVoltage:
		v := voltage / 1e6
		d.Energy = (chargeNow / 1e6) * v
		d.EnergyFull = (chargeFull / 1e6) * v
		if hasChargeFullDesign {
			d.EnergyFullDesign = (chargeFullDesign / 1e6) * v
		} else {
			d.EnergyFullDesign = d.EnergyFull
		}
	case hasChargeFull && hasCapacity && hasVoltage:
		v := voltage / 1e6
		d.EnergyFull = (chargeFull / 1e6) * v
		if hasChargeFullDesign {
			d.EnergyFullDesign = (chargeFullDesign / 1e6) * v
		} else {
			d.EnergyFullDesign = d.EnergyFull
		}
		d.Energy = d.EnergyFull * (capacityPct / 100)
		d.Percentage = capacityPct
	case hasCapacity:
		d.Percentage = capacityPct
	}

	// energy fields + capacity: energy wins, percentage recomputed from it.
	if (hasEnergyFull && hasEnergyNow || (hasChargeFull && hasChargeNow && hasVoltage)) && d.EnergyFull > 0 {
		d.Percentage = d.Energy / d.EnergyFull * 100
	}

	if d.EnergyFull > 0 && d.EnergyFullDesign == 0 {
		d.EnergyFullDesign = d.EnergyFull
	}
	if d.EnergyFullDesign > 0 {
		d.Capacity = d.EnergyFull / d.EnergyFullDesign * 100
	}

	// §3 invariant: energy ≤ energy_full ≤ energy_full_design.
	if d.EnergyFull > 0 && d.Energy > d.EnergyFull {
		d.EnergyFull = d.Energy
	}
	if d.EnergyFullDesign > 0 && d.EnergyFull > d.EnergyFullDesign {
		d.EnergyFullDesign = d.EnergyFull
	}

	status := raw.Get("status")
	if d.Percentage > 100 && isFullStatus(status) {
		d.Percentage = 100
		d.EnergyFull = d.Energy
		if d.EnergyFullDesign < d.EnergyFull {
			d.EnergyFullDesign = d.EnergyFull
		}
	}
	if d.Percentage < 0 {
		d.Percentage = 0
	}
	if d.Percentage > 100 {
		d.Percentage = 100
	}
}

func isFullStatus(status string) bool {
	return status == "Full" || status == "full"
}

func normalizeTechnology(raw string) Technology {
	switch raw {
	case "Li-ion", "Lithium-ion", "lithium-ion":
		return TechLithiumIon
	case "Li-poly", "Lithium-polymer":
		return TechLithiumPolymer
	case "LiFe", "Lithium-iron-phosphate":
		return TechLithiumIronPhosphate
	case "Pb", "Lead-acid":
		return TechLeadAcid
	case "NiCd":
		return TechNickelCadmium
	case "NiMH":
		return TechNickelMetalHydride
	default:
		return TechUnknown
	}
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseBool(s string, def bool) bool {
	switch s {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return def
	}
}
