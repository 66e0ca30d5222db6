package aggregator

import (
	"upowerd/internal/device"
	"upowerd/internal/warning"
)

// SynthesizeDisplayDevice computes spec §4.4's synthetic display device
// from the current set of power_supply batteries (including UPS). The
// aggregate's WarningLevel is classified from its own combined
// percentage/time/state via engine, not a worst-of the constituent
// devices' already-evaluated levels (spec §8 scenario 5: one battery
// individually critical can still leave the combined percentage well
// above every threshold).
func SynthesizeDisplayDevice(batteries []device.Device, engine *warning.Engine) device.Device {
	d := device.Device{
		ObjectPath:  device.DisplayDevicePath,
		PowerSupply: true,
	}

	switch len(batteries) {
	case 0:
		d.Kind = device.KindUnknown
		d.State = device.StateFullyCharged
		d.WarningLevel = device.WarningNone
		return d

	case 1:
		only := batteries[0]
		only.ObjectPath = device.DisplayDevicePath
		return only
	}

	var sumEnergy, sumEnergyFull, sumEnergyFullDesign, sumRate float64
	anyCharging, anyDischarging, allFull, anyUPS := false, false, true, false
	for _, b := range batteries {
		sumEnergy += b.Energy
		sumEnergyFull += b.EnergyFull
		sumEnergyFullDesign += b.EnergyFullDesign
		sumRate += b.EnergyRate
		switch b.State {
		case device.StateCharging:
			anyCharging = true
		case device.StateDischarging:
			anyDischarging = true
		}
		if b.State != device.StateFullyCharged {
			allFull = false
		}
		if b.Kind == device.KindUPS {
			anyUPS = true
		}
	}

	d.Kind = device.KindBattery
	d.Energy = sumEnergy
	d.EnergyFull = sumEnergyFull
	d.EnergyFullDesign = sumEnergyFullDesign
	d.EnergyRate = sumRate
	if sumEnergyFull > 0 {
		d.Percentage = sumEnergy / sumEnergyFull * 100
	}

	switch {
	case anyCharging:
		d.State = device.StateCharging
	case allFull:
		d.State = device.StateFullyCharged
	case anyDischarging:
		d.State = device.StateDischarging
	default:
		d.State = device.StateUnknown
	}

	if sumRate > 0 {
		switch d.State {
		case device.StateDischarging:
			d.TimeToEmpty = device.ClampEstimateSeconds(sumEnergy / sumRate)
		case device.StateCharging:
			d.TimeToFull = device.ClampEstimateSeconds((sumEnergyFull - sumEnergy) / sumRate)
		}
	}

	d.WarningLevel = engine.Evaluate(device.DisplayDevicePath, d, anyUPS)

	return d
}
