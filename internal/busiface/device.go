package busiface

import (
	"context"
	"time"

	godbus "github.com/godbus/dbus/v5"

	"upowerd/errcode"
	"upowerd/internal/device"
	"upowerd/internal/history"
)

// deviceObject implements org.freedesktop.UPower.Device (spec §4.7) for
// one registered device, plus its Properties interface.
type deviceObject struct {
	svc        *Service
	objectPath string
}

// HistoryPoint is one GetHistory(type, timespan, resolution) result
// element: (time, value, state).
type HistoryPoint struct {
	Time  int64
	Value float64
	State string
}

// StatisticPoint is one GetStatistics(type) result element: (value,
// accuracy).
type StatisticPoint struct {
	Value    float64
	Accuracy float64
}

// current returns the device backing this object path. The synthetic
// display device is never stored in the registry (it's recomputed each
// tick by aggregator.SynthesizeDisplayDevice), so it's special-cased to
// the Service's cached copy instead of a registry lookup.
func (d *deviceObject) current() (device.Device, *godbus.Error) {
	if d.objectPath == device.DisplayDevicePath {
		return d.svc.currentDisplayDevice(), nil
	}
	dv, ok := d.svc.daemon.Registry().Get(d.objectPath)
	if !ok {
		return device.Device{}, dbusErr(errcode.Failed, "device no longer present: "+d.objectPath)
	}
	return dv, nil
}

// Refresh forces an immediate re-read of this device's native source
// (spec §4.7). Bus method handlers must return within 5 s (spec §5); the
// request is bounded accordingly.
func (d *deviceObject) Refresh() *godbus.Error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.svc.daemon.RequestRefresh(ctx, d.objectPath); err != nil {
		return dbusErr(errcode.Failed, err.Error())
	}
	return nil
}

// GetHistory implements spec §4.7's GetHistory(type, timespan,
// resolution) → list<(time, value, state)>.
func (d *deviceObject) GetHistory(seriesType string, timespanSeconds, resolution uint32) ([]HistoryPoint, *godbus.Error) {
	kind, ok := parseSeriesKind(seriesType)
	if !ok {
		return nil, dbusErr(errcode.InvalidArgs, "unknown history type: "+seriesType)
	}
	samples, err := d.svc.history.GetHistory(d.objectPath, kind, time.Duration(timespanSeconds)*time.Second, int(resolution))
	if err != nil {
		return nil, dbusErr(errcode.Failed, err.Error())
	}
	out := make([]HistoryPoint, len(samples))
	for i, s := range samples {
		out[i] = HistoryPoint{Time: s.Timestamp, Value: s.Value, State: s.StateTag}
	}
	return out, nil
}

// GetStatistics implements spec §4.7's GetStatistics(type) → list<(value,
// accuracy)>.
func (d *deviceObject) GetStatistics(seriesType string) ([]StatisticPoint, *godbus.Error) {
	kind, ok := parseSeriesKind(seriesType)
	if !ok {
		return nil, dbusErr(errcode.InvalidArgs, "unknown statistics type: "+seriesType)
	}
	stats, err := d.svc.history.GetStatistics(d.objectPath, kind)
	if err != nil {
		return nil, dbusErr(errcode.Failed, err.Error())
	}
	out := make([]StatisticPoint, len(stats))
	for i, s := range stats {
		out[i] = StatisticPoint{Value: s.Value, Accuracy: s.Accuracy}
	}
	return out, nil
}

func parseSeriesKind(s string) (history.SeriesKind, bool) {
	switch history.SeriesKind(s) {
	case history.SeriesRate, history.SeriesCharge, history.SeriesTimeFull, history.SeriesTimeEmpty:
		return history.SeriesKind(s), true
	default:
		return "", false
	}
}

// Get implements org.freedesktop.DBus.Properties.Get, exposing every
// spec §3 attribute as a read-only property.
func (d *deviceObject) Get(iface, prop string) (godbus.Variant, *godbus.Error) {
	dv, derr := d.current()
	if derr != nil {
		return godbus.Variant{}, derr
	}
	props := devicePropertyMap(dv)
	v, ok := props[prop]
	if !ok {
		return godbus.Variant{}, dbusErr(errcode.InvalidArgs, "unknown property: "+prop)
	}
	return v, nil
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll.
func (d *deviceObject) GetAll(iface string) (map[string]godbus.Variant, *godbus.Error) {
	dv, derr := d.current()
	if derr != nil {
		return nil, derr
	}
	return devicePropertyMap(dv), nil
}

// devicePropertyMap projects a Device onto the bus property set (spec
// §3's attribute list), shared by per-device PropertiesChanged emission
// and Properties.GetAll.
func devicePropertyMap(dv device.Device) map[string]godbus.Variant {
	return map[string]godbus.Variant{
		"NativePath":       godbus.MakeVariant(dv.NativePath),
		"Type":             godbus.MakeVariant(string(dv.Kind)),
		"State":            godbus.MakeVariant(string(dv.State)),
		"Online":           godbus.MakeVariant(dv.Online),
		"IsPresent":        godbus.MakeVariant(dv.IsPresent),
		"IsRechargeable":   godbus.MakeVariant(dv.IsRechargeable),
		"PowerSupply":      godbus.MakeVariant(dv.PowerSupply),
		"Percentage":       godbus.MakeVariant(dv.Percentage),
		"Energy":           godbus.MakeVariant(dv.Energy),
		"EnergyEmpty":      godbus.MakeVariant(dv.EnergyEmpty),
		"EnergyFull":       godbus.MakeVariant(dv.EnergyFull),
		"EnergyFullDesign": godbus.MakeVariant(dv.EnergyFullDesign),
		"EnergyRate":       godbus.MakeVariant(dv.EnergyRate),
		"Voltage":          godbus.MakeVariant(dv.Voltage),
		"Temperature":      godbus.MakeVariant(dv.Temperature),
		"TimeToEmpty":      godbus.MakeVariant(dv.TimeToEmpty),
		"TimeToFull":       godbus.MakeVariant(dv.TimeToFull),
		"Capacity":         godbus.MakeVariant(dv.Capacity),
		"Technology":       godbus.MakeVariant(string(dv.Technology)),
		"WarningLevel":     godbus.MakeVariant(string(dv.WarningLevel)),
		"Vendor":           godbus.MakeVariant(dv.Vendor),
		"Model":            godbus.MakeVariant(dv.Model),
		"Serial":           godbus.MakeVariant(dv.Serial),
		"UpdateTime":       godbus.MakeVariant(dv.UpdateTime),
	}
}
