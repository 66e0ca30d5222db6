package warning

import (
	"testing"

	"upowerd/internal/device"
)

func discharging(pct float64) device.Device {
	return device.Device{State: device.StateDischarging, Percentage: pct}
}

func TestBoundary_PercentageTwoIsAction(t *testing.T) {
	e := New(DefaultThresholds())
	got := e.Evaluate("/d/1", discharging(2), false)
	if got != device.WarningAction {
		t.Fatalf("level = %v, want action", got)
	}
}

func TestHysteresis_StaysActionWhileStillDischarging(t *testing.T) {
	e := New(DefaultThresholds())
	e.Evaluate("/d/1", discharging(2), false)
	got := e.Evaluate("/d/1", discharging(2.5), false)
	if got != device.WarningAction {
		t.Fatalf("level = %v, want action (hysteresis)", got)
	}
	// Even once percentage has risen well past entry+1, still discharging
	// means the device has not actually recovered: spec §4.5 requires
	// percentage recovery AND a non-discharging state to leave a severe
	// level, to avoid chatter from a momentary percentage blip.
	got = e.Evaluate("/d/1", discharging(3.5), false)
	if got != device.WarningAction {
		t.Fatalf("level = %v, want still action while discharging", got)
	}
}

func TestHysteresis_ClearsOnceChargingAndAboveEntryThreshold(t *testing.T) {
	e := New(DefaultThresholds())
	e.Evaluate("/d/1", discharging(2), false)
	charging := device.Device{State: device.StateCharging, Percentage: 3.5}
	got := e.Evaluate("/d/1", charging, false)
	if got != device.WarningNone {
		t.Fatalf("level = %v, want none once charging above entry+1", got)
	}
}

func TestHysteresis_StaysActionIfChargingButStillBelowEntryThreshold(t *testing.T) {
	e := New(DefaultThresholds())
	e.Evaluate("/d/1", discharging(2), false)
	charging := device.Device{State: device.StateCharging, Percentage: 2.4}
	got := e.Evaluate("/d/1", charging, false)
	if got != device.WarningAction {
		t.Fatalf("level = %v, want still action below entry+1 even while charging", got)
	}
}

func TestNotDischargingIsNone(t *testing.T) {
	e := New(DefaultThresholds())
	d := device.Device{State: device.StateCharging, Percentage: 1}
	if got := e.Evaluate("/d/1", d, false); got != device.WarningNone {
		t.Fatalf("level = %v, want none", got)
	}
}

func TestUPSDischargingFirstObservationIsDischargingLevel(t *testing.T) {
	e := New(DefaultThresholds())
	d := discharging(90)
	got := e.Evaluate("/ups/0", d, true)
	if got != device.WarningDischarging {
		t.Fatalf("level = %v, want discharging", got)
	}
}

func TestGlobalLevelIsWorst(t *testing.T) {
	got := GlobalLevel([]device.WarningLevel{device.WarningNone, device.WarningLow, device.WarningCritical})
	if got != device.WarningCritical {
		t.Fatalf("global level = %v, want critical", got)
	}
}
