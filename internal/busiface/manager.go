package busiface

import (
	godbus "github.com/godbus/dbus/v5"

	"upowerd/errcode"
	"upowerd/internal/aggregator"
	"upowerd/internal/device"
)

// managerObject implements org.freedesktop.UPower (spec §4.7) at
// device.ManagerPath.
type managerObject struct {
	svc *Service
}

// EnumerateDevices returns every registered device's object path,
// including the synthetic display device.
func (m *managerObject) EnumerateDevices() ([]godbus.ObjectPath, *godbus.Error) {
	devices := m.svc.daemon.Registry().All()
	out := make([]godbus.ObjectPath, 0, len(devices)+1)
	for _, d := range devices {
		out = append(out, godbus.ObjectPath(d.ObjectPath))
	}
	out = append(out, godbus.ObjectPath(device.DisplayDevicePath))
	return out, nil
}

// GetDisplayDevice returns the well-known display device path.
func (m *managerObject) GetDisplayDevice() (godbus.ObjectPath, *godbus.Error) {
	return godbus.ObjectPath(device.DisplayDevicePath), nil
}

// GetCriticalAction returns the configured critical power action (spec
// §6's CriticalPowerAction key).
func (m *managerObject) GetCriticalAction() (string, *godbus.Error) {
	return m.svc.criticalAction, nil
}

// Get implements org.freedesktop.DBus.Properties.Get for the manager
// object's four read-only properties.
func (m *managerObject) Get(iface, prop string) (godbus.Variant, *godbus.Error) {
	props := m.properties()
	v, ok := props[prop]
	if !ok {
		return godbus.Variant{}, dbusErr(errcode.InvalidArgs, "unknown property: "+prop)
	}
	return v, nil
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll.
func (m *managerObject) GetAll(iface string) (map[string]godbus.Variant, *godbus.Error) {
	return m.properties(), nil
}

func (m *managerObject) properties() map[string]godbus.Variant {
	batteries := m.svc.daemon.Registry().Batteries()
	linePower := m.svc.daemon.Registry().LinePower()
	return map[string]godbus.Variant{
		"DaemonVersion": godbus.MakeVariant(m.svc.version),
		"OnBattery":     godbus.MakeVariant(aggregator.OnBattery(batteries, linePower)),
		// No lid-sensing native source exists yet (desktops/servers/VMs
		// have none); a future laptop-lid adapter would flip these.
		"LidIsClosed":  godbus.MakeVariant(false),
		"LidIsPresent": godbus.MakeVariant(false),
	}
}

func dbusErr(code errcode.Code, msg string) *godbus.Error {
	return godbus.NewError("org.freedesktop.UPower.Error."+string(code), []any{msg})
}
