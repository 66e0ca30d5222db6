package aggregator

import (
	"math"
	"testing"

	"upowerd/internal/device"
	"upowerd/internal/warning"
)

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSynthesizeDisplayDevice_NoBatteries(t *testing.T) {
	engine := warning.New(warning.DefaultThresholds())
	d := SynthesizeDisplayDevice(nil, engine)
	if d.Kind != device.KindUnknown || d.State != device.StateFullyCharged || d.WarningLevel != device.WarningNone {
		t.Fatalf("d = %+v", d)
	}
}

func TestSynthesizeDisplayDevice_OneBattery(t *testing.T) {
	engine := warning.New(warning.DefaultThresholds())
	only := device.Device{ObjectPath: "/dev/bat0", Percentage: 55, State: device.StateDischarging}
	d := SynthesizeDisplayDevice([]device.Device{only}, engine)
	if d.ObjectPath != device.DisplayDevicePath {
		t.Fatalf("ObjectPath = %q, want display path", d.ObjectPath)
	}
	if d.Percentage != 55 || d.State != device.StateDischarging {
		t.Fatalf("d = %+v", d)
	}
}

// TestSynthesizeDisplayDevice_MultiBatteryAggregation mirrors spec §8
// scenario 5 literally: BAT0 {energy_full=60000000, energy_now=48000000}
// and BAT1 {energy_full=60000000, energy_now=1500000}, both discharging,
// normalized and warning-classified exactly as the registry would on
// ingest. BAT1 alone is "critical" (2.5%), but the combined percentage
// is ≈41.25% — well above every threshold — so the display device must
// report "none", not the worst of its constituents' already-evaluated
// levels.
func TestSynthesizeDisplayDevice_MultiBatteryAggregation(t *testing.T) {
	engine := warning.New(warning.DefaultThresholds())

	bat0 := device.Normalize(device.RawSnapshot{
		"type": "Battery", "present": "1", "status": "Discharging",
		"energy_full": "60000000", "energy_now": "48000000", "voltage_now": "12000000",
	}, nil, device.KindBattery, "/sys/class/power_supply/BAT0", 0)
	bat0.ObjectPath = "/dev/bat0"
	bat0.WarningLevel = engine.Evaluate(bat0.ObjectPath, bat0, false)
	if bat0.WarningLevel != device.WarningNone {
		t.Fatalf("BAT0 warning level = %v, want none", bat0.WarningLevel)
	}

	bat1 := device.Normalize(device.RawSnapshot{
		"type": "Battery", "present": "1", "status": "Discharging",
		"energy_full": "60000000", "energy_now": "1500000", "voltage_now": "12000000",
	}, nil, device.KindBattery, "/sys/class/power_supply/BAT1", 0)
	bat1.ObjectPath = "/dev/bat1"
	bat1.WarningLevel = engine.Evaluate(bat1.ObjectPath, bat1, false)
	if bat1.WarningLevel != device.WarningCritical {
		t.Fatalf("BAT1 warning level = %v, want critical", bat1.WarningLevel)
	}

	d := SynthesizeDisplayDevice([]device.Device{bat0, bat1}, engine)
	if !almostEqual(d.Percentage, 41.25) {
		t.Fatalf("percentage = %v, want 41.25", d.Percentage)
	}
	if d.State != device.StateDischarging {
		t.Fatalf("state = %v, want discharging", d.State)
	}
	if d.WarningLevel != device.WarningNone {
		t.Fatalf("warning level = %v, want none (combined percentage is well above every threshold)", d.WarningLevel)
	}
}

func TestSynthesizeDisplayDevice_AnyChargingWins(t *testing.T) {
	engine := warning.New(warning.DefaultThresholds())
	a := device.Device{Energy: 10, EnergyFull: 60, State: device.StateCharging}
	b := device.Device{Energy: 59, EnergyFull: 60, State: device.StateFullyCharged}
	d := SynthesizeDisplayDevice([]device.Device{a, b}, engine)
	if d.State != device.StateCharging {
		t.Fatalf("state = %v, want charging", d.State)
	}
}

func TestSynthesizeDisplayDevice_AllFullIsFullyCharged(t *testing.T) {
	engine := warning.New(warning.DefaultThresholds())
	a := device.Device{Energy: 60, EnergyFull: 60, State: device.StateFullyCharged}
	b := device.Device{Energy: 60, EnergyFull: 60, State: device.StateFullyCharged}
	d := SynthesizeDisplayDevice([]device.Device{a, b}, engine)
	if d.State != device.StateFullyCharged {
		t.Fatalf("state = %v, want fully_charged", d.State)
	}
}

func TestOnBattery_TrueWhenDischargingAndNoLineOnline(t *testing.T) {
	batteries := []device.Device{{State: device.StateDischarging}}
	if !OnBattery(batteries, nil) {
		t.Fatal("want OnBattery true")
	}
}

func TestOnBattery_FalseWhenLineOnline(t *testing.T) {
	batteries := []device.Device{{State: device.StateDischarging}}
	linePower := []device.Device{{Online: true}}
	if OnBattery(batteries, linePower) {
		t.Fatal("want OnBattery false")
	}
}

func TestOnBattery_FalseWhenNeitherExists(t *testing.T) {
	if OnBattery(nil, nil) {
		t.Fatal("want OnBattery false with no batteries and no line power")
	}
}

func TestOnBattery_UPSDischargingCountsLikeBattery(t *testing.T) {
	batteries := []device.Device{{Kind: device.KindUPS, State: device.StateDischarging}}
	if !OnBattery(batteries, nil) {
		t.Fatal("want OnBattery true for a discharging UPS")
	}
}
