package backend

import (
	"context"
	"testing"

	"upowerd/internal/device"
	"upowerd/internal/source"
)

// TestColdplug_InfersInitialStateFromLinePower exercises spec §4.2's
// no-prior-sample fallback: a battery whose adapter can't report status
// at all must still resolve to charging/discharging based on whether
// this coldplug batch also turned up a present, online line-power
// source, rather than sitting at "unknown" forever.
func TestColdplug_InfersInitialStateFromLinePower(t *testing.T) {
	sources := []source.RawSource{
		{ID: "ac0", Kind: device.KindLinePower, NativePath: "AC0"},
		{ID: "bat0", Kind: device.KindBattery, NativePath: "BAT0"},
	}
	snapshots := map[string]device.RawSnapshot{
		"ac0":  {"online": "1"},
		"bat0": {"energy_full": "60000000", "energy_now": "30000000"},
	}
	adapter := source.NewDummyAdapter(sources, snapshots)

	devices, err := Coldplug(context.Background(), adapter)
	if err != nil {
		t.Fatalf("Coldplug: %v", err)
	}

	var bat device.Device
	found := false
	for _, d := range devices {
		if d.Kind == device.KindBattery {
			bat, found = d, true
		}
	}
	if !found {
		t.Fatal("battery missing from coldplug result")
	}
	if bat.State != device.StateCharging {
		t.Fatalf("battery state = %v, want charging (line power present and online)", bat.State)
	}
}

// TestColdplug_InfersDischargingWithNoLinePower covers the same
// fallback when this batch has no line-power source at all.
func TestColdplug_InfersDischargingWithNoLinePower(t *testing.T) {
	sources := []source.RawSource{
		{ID: "bat0", Kind: device.KindBattery, NativePath: "BAT0"},
	}
	snapshots := map[string]device.RawSnapshot{
		"bat0": {"energy_full": "60000000", "energy_now": "30000000"},
	}
	adapter := source.NewDummyAdapter(sources, snapshots)

	devices, err := Coldplug(context.Background(), adapter)
	if err != nil {
		t.Fatalf("Coldplug: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("len(devices) = %d, want 1", len(devices))
	}
	if devices[0].State != device.StateDischarging {
		t.Fatalf("battery state = %v, want discharging (no line power present)", devices[0].State)
	}
}
