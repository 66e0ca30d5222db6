package device

import "testing"

func almostEqual(a, b float64) bool {
	const eps = 1e-6
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < eps
}

// Scenario 1 (spec §8): offline AC + single discharging battery.
func TestNormalize_OfflineACSingleBattery(t *testing.T) {
	raw := RawSnapshot{
		"status":             "Discharging",
		"present":            "1",
		"energy_full":        "60000000",
		"energy_full_design": "80000000",
		"energy_now":         "48000000",
		"voltage_now":        "12000000",
	}
	d := Normalize(raw, nil, KindBattery, "BAT0", 0)

	if !almostEqual(d.Percentage, 80.0) {
		t.Fatalf("percentage = %v, want 80.0", d.Percentage)
	}
	if !almostEqual(d.Energy, 48.0) || !almostEqual(d.EnergyFull, 60.0) || !almostEqual(d.EnergyFullDesign, 80.0) {
		t.Fatalf("energies = %v/%v/%v", d.Energy, d.EnergyFull, d.EnergyFullDesign)
	}
	if !almostEqual(d.Voltage, 12.0) {
		t.Fatalf("voltage = %v, want 12.0", d.Voltage)
	}
	if d.State != StateDischarging {
		t.Fatalf("state = %v, want discharging", d.State)
	}
}

// Scenario 2 (spec §8): critical battery.
func TestNormalize_CriticalBattery(t *testing.T) {
	raw := RawSnapshot{
		"status":             "Discharging",
		"energy_full":        "60000000",
		"energy_full_design": "80000000",
		"energy_now":         "1500000",
		"voltage_now":        "12000000",
	}
	d := Normalize(raw, nil, KindBattery, "BAT0", 0)
	if !almostEqual(d.Percentage, 2.5) {
		t.Fatalf("percentage = %v, want 2.5", d.Percentage)
	}
}

// Scenario 3 (spec §8): overfull full battery, charge_*/capacity source.
func TestNormalize_OverfullFullBattery(t *testing.T) {
	raw := RawSnapshot{
		"status":             "Full",
		"charge_now":         "11000000",
		"charge_full":        "10000000",
		"charge_full_design": "11000000",
		"capacity":           "110",
		"voltage_now":        "12000000",
	}
	d := Normalize(raw, nil, KindBattery, "BAT0", 0)

	if !almostEqual(d.Percentage, 100.0) {
		t.Fatalf("percentage = %v, want 100.0", d.Percentage)
	}
	if d.State != StateFullyCharged {
		t.Fatalf("state = %v, want fully_charged", d.State)
	}
	if !almostEqual(d.Energy, 132.0) {
		t.Fatalf("energy = %v, want 132.0", d.Energy)
	}
	if !almostEqual(d.EnergyFull, 132.0) {
		t.Fatalf("energy_full = %v, want 132.0 (raised)", d.EnergyFull)
	}
	if !almostEqual(d.EnergyFullDesign, 132.0) {
		t.Fatalf("energy_full_design = %v, want 132.0", d.EnergyFullDesign)
	}
	if d.EnergyRate != 0 || d.TimeToEmpty != 0 || d.TimeToFull != 0 {
		t.Fatalf("fully_charged invariant violated: rate=%v tte=%v ttf=%v", d.EnergyRate, d.TimeToEmpty, d.TimeToFull)
	}
}

// Scenario 4 (spec §8): capacity-only battery (charge_full/design + capacity + voltage).
func TestNormalize_CapacityOnlyBattery(t *testing.T) {
	raw := RawSnapshot{
		"charge_full":        "10500000",
		"charge_full_design": "11000000",
		"capacity":           "40",
		"voltage_now":        "12000000",
	}
	d := Normalize(raw, nil, KindBattery, "BAT0", 0)

	if !almostEqual(d.Percentage, 40.0) {
		t.Fatalf("percentage = %v, want 40.0", d.Percentage)
	}
	if !almostEqual(d.Energy, 50.4) {
		t.Fatalf("energy = %v, want 50.4", d.Energy)
	}
	if !almostEqual(d.EnergyFull, 126.0) {
		t.Fatalf("energy_full = %v, want 126.0", d.EnergyFull)
	}
	if !almostEqual(d.EnergyFullDesign, 132.0) {
		t.Fatalf("energy_full_design = %v, want 132.0", d.EnergyFullDesign)
	}
}

func TestNormalize_EnergyNowZeroDischarging(t *testing.T) {
	raw := RawSnapshot{
		"status":      "Discharging",
		"energy_full": "60000000",
		"energy_now":  "0",
	}
	d := Normalize(raw, nil, KindBattery, "BAT0", 0)
	if d.Percentage != 0 {
		t.Fatalf("percentage = %v, want 0", d.Percentage)
	}
	if d.State != StateDischarging {
		t.Fatalf("state = %v, want discharging (published unchanged)", d.State)
	}
}

func TestNormalize_PercentageAlwaysClamped(t *testing.T) {
	cases := []RawSnapshot{
		{"capacity": "130"},
		{"capacity": "-5"},
	}
	for _, raw := range cases {
		d := Normalize(raw, nil, KindBattery, "BAT0", 0)
		if d.Percentage < 0 || d.Percentage > 100 {
			t.Fatalf("percentage %v out of [0,100] for %v", d.Percentage, raw)
		}
	}
}

func TestSanitizeText(t *testing.T) {
	in := "Fancy\x00 BT\x01 mouse  \t"
	want := "Fancy BT mouse"
	if got := SanitizeText(in); got != want {
		t.Fatalf("SanitizeText(%q) = %q, want %q", in, got, want)
	}
}

func TestObjectPathStable(t *testing.T) {
	p1 := ObjectPath(KindBattery, "/sys/class/power_supply/BAT0")
	p2 := ObjectPath(KindBattery, "/sys/class/power_supply/BAT0")
	if p1 != p2 {
		t.Fatalf("object path not stable: %q vs %q", p1, p2)
	}
	if p1 != DevicesPrefix+"/battery_BAT0" {
		t.Fatalf("object path = %q", p1)
	}
}
