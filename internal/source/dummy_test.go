package source

import (
	"context"
	"testing"

	"upowerd/internal/device"
)

func TestDummyAdapter_EnumerateAndRefresh(t *testing.T) {
	a := NewDummyAdapter(
		[]RawSource{{ID: "BAT0", Kind: device.KindBattery, NativePath: "/sys/class/power_supply/BAT0"}},
		map[string]device.RawSnapshot{"BAT0": {"capacity": "80", "status": "Discharging"}},
	)

	sources, err := a.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(sources) != 1 || sources[0].ID != "BAT0" {
		t.Fatalf("sources = %+v", sources)
	}

	snap, err := a.Refresh(context.Background(), sources[0])
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if snap.Get("capacity") != "80" {
		t.Fatalf("capacity = %q, want 80", snap.Get("capacity"))
	}
}

func TestDummyAdapter_AddSourceEmitsEvent(t *testing.T) {
	a := NewDummyAdapter(nil, map[string]device.RawSnapshot{})
	sink := make(chan Event, 4)
	if _, err := a.Subscribe(context.Background(), sink); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	a.AddSource(RawSource{ID: "mouse0", Kind: device.KindMouse}, device.RawSnapshot{"capacity": "90"})

	select {
	case ev := <-sink:
		if ev.Type != EventAdd || ev.Source.ID != "mouse0" {
			t.Fatalf("event = %+v", ev)
		}
	default:
		t.Fatal("expected an EventAdd, got none")
	}
}

func TestDummyAdapter_RemoveSourceEmitsEvent(t *testing.T) {
	a := NewDummyAdapter(
		[]RawSource{{ID: "mouse0", Kind: device.KindMouse}},
		map[string]device.RawSnapshot{"mouse0": {}},
	)
	sink := make(chan Event, 4)
	if _, err := a.Subscribe(context.Background(), sink); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	a.RemoveSource("mouse0")

	select {
	case ev := <-sink:
		if ev.Type != EventRemove {
			t.Fatalf("event = %+v, want EventRemove", ev)
		}
	default:
		t.Fatal("expected an EventRemove, got none")
	}

	sources, _ := a.Enumerate(context.Background())
	if len(sources) != 0 {
		t.Fatalf("sources after remove = %+v", sources)
	}
}
