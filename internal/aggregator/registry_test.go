package aggregator

import (
	"testing"

	"upowerd/internal/device"
	"upowerd/internal/warning"
)

func TestRegistry_AddUpdateRemove(t *testing.T) {
	r := NewRegistry(warning.New(warning.DefaultThresholds()))

	d := device.Device{ObjectPath: "/dev/bat0", Kind: device.KindBattery, PowerSupply: true, Percentage: 50, State: device.StateDischarging}
	ch := r.Add(d)
	if ch.Removed {
		t.Fatal("Add reported Removed")
	}
	got, ok := r.Get("/dev/bat0")
	if !ok || got.Percentage != 50 {
		t.Fatalf("Get after Add = %+v, ok=%v", got, ok)
	}

	d.Percentage = 2
	ch = r.Update(d)
	if ch.Device.WarningLevel != device.WarningAction {
		t.Fatalf("warning level after update = %v, want action", ch.Device.WarningLevel)
	}

	ch, ok = r.Remove("/dev/bat0")
	if !ok || !ch.Removed {
		t.Fatalf("Remove ok=%v, ch=%+v", ok, ch)
	}
	if _, ok := r.Get("/dev/bat0"); ok {
		t.Fatal("device still present after Remove")
	}
}

func TestRegistry_BatteriesAndLinePowerFilters(t *testing.T) {
	r := NewRegistry(warning.New(warning.DefaultThresholds()))
	r.Add(device.Device{ObjectPath: "/dev/bat0", Kind: device.KindBattery, PowerSupply: true})
	r.Add(device.Device{ObjectPath: "/dev/ac0", Kind: device.KindLinePower, PowerSupply: true, Online: true})
	r.Add(device.Device{ObjectPath: "/dev/mouse0", Kind: device.KindMouse, PowerSupply: true})

	if got := len(r.Batteries()); got != 1 {
		t.Fatalf("len(Batteries()) = %d, want 1", got)
	}
	if got := len(r.LinePower()); got != 1 {
		t.Fatalf("len(LinePower()) = %d, want 1", got)
	}
	if got := len(r.All()); got != 3 {
		t.Fatalf("len(All()) = %d, want 3", got)
	}
}
