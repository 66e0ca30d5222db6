package busiface

import (
	"log"
	"testing"

	"upowerd/bus"
	"upowerd/internal/aggregator"
	"upowerd/internal/device"
	"upowerd/internal/warning"
)

func newTestService(t *testing.T) (*Service, *aggregator.Daemon) {
	t.Helper()
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	daemon := aggregator.NewDaemon(conn, warning.DefaultThresholds(), log.Default())
	svc := New(nil, conn, daemon, nil, "1.2.3", "HybridSleep")
	return svc, daemon
}

func TestManagerObject_GetDisplayDeviceAndCriticalAction(t *testing.T) {
	svc, _ := newTestService(t)
	mgr := &managerObject{svc: svc}

	path, err := mgr.GetDisplayDevice()
	if err != nil {
		t.Fatalf("GetDisplayDevice error: %v", err)
	}
	if string(path) != device.DisplayDevicePath {
		t.Fatalf("GetDisplayDevice = %q, want %q", path, device.DisplayDevicePath)
	}

	action, err := mgr.GetCriticalAction()
	if err != nil {
		t.Fatalf("GetCriticalAction error: %v", err)
	}
	if action != "HybridSleep" {
		t.Fatalf("GetCriticalAction = %q, want HybridSleep", action)
	}
}

func TestManagerObject_EnumerateDevicesAlwaysIncludesDisplayDevice(t *testing.T) {
	svc, _ := newTestService(t)
	mgr := &managerObject{svc: svc}

	devices, err := mgr.EnumerateDevices()
	if err != nil {
		t.Fatalf("EnumerateDevices error: %v", err)
	}
	found := false
	for _, p := range devices {
		if string(p) == device.DisplayDevicePath {
			found = true
		}
	}
	if !found {
		t.Fatal("EnumerateDevices did not include the display device path")
	}
}

func TestManagerObject_PropertiesIncludeDaemonVersion(t *testing.T) {
	svc, _ := newTestService(t)
	mgr := &managerObject{svc: svc}

	props, err := mgr.GetAll(managerIface)
	if err != nil {
		t.Fatalf("GetAll error: %v", err)
	}
	v, ok := props["DaemonVersion"]
	if !ok {
		t.Fatal("DaemonVersion missing from properties")
	}
	if got := v.Value().(string); got != "1.2.3" {
		t.Fatalf("DaemonVersion = %q, want 1.2.3", got)
	}
}

func TestDevicePropertyMap_IncludesCoreAttributes(t *testing.T) {
	dv := device.Device{
		ObjectPath: "/org/freedesktop/UPower/devices/battery_BAT0",
		Kind:       device.KindBattery,
		State:      device.StateDischarging,
		Percentage: 42,
	}
	props := devicePropertyMap(dv)
	if v := props["Percentage"].Value().(float64); v != 42 {
		t.Fatalf("Percentage = %v, want 42", v)
	}
	if v := props["Type"].Value().(string); v != "battery" {
		t.Fatalf("Type = %v, want battery", v)
	}
	if v := props["State"].Value().(string); v != "discharging" {
		t.Fatalf("State = %v, want discharging", v)
	}
}
