// Package aggregator owns the device registry, OnBattery/display-device
// synthesis, and the main event loop that ties native sources, the
// backend scheduler, the warning engine, and the bus surface together
// (spec §4.4).
package aggregator

import (
	"upowerd/internal/device"
	"upowerd/internal/warning"
)

// Change describes a minimal property-change notification the registry
// emits after add/update/remove (spec §4.4's "a minimal set of
// property-change signals").
type Change struct {
	ObjectPath string
	Device     device.Device
	Removed    bool
}

// Registry is the object_path → Device map (spec §3), generalized from
// the teacher's capability-index pattern (core/registry.go) into a
// single flat device index plus a warning-level engine run inline with
// every mutation (spec §4.4's registry operations). It is only ever
// touched from the aggregator's main loop goroutine (spec §5).
type Registry struct {
	devices  map[string]device.Device
	warnings *warning.Engine
}

// NewRegistry builds an empty registry using the given warning engine.
func NewRegistry(w *warning.Engine) *Registry {
	return &Registry{devices: map[string]device.Device{}, warnings: w}
}

// Add inserts a newly-discovered device and returns the change to emit.
func (r *Registry) Add(d device.Device) Change {
	d.WarningLevel = r.warnings.Evaluate(d.ObjectPath, d, d.Kind == device.KindUPS)
	r.devices[d.ObjectPath] = d
	return Change{ObjectPath: d.ObjectPath, Device: d}
}

// Update replaces an existing device's state and recomputes its warning
// level, returning the change to emit.
func (r *Registry) Update(d device.Device) Change {
	d.WarningLevel = r.warnings.Evaluate(d.ObjectPath, d, d.Kind == device.KindUPS)
	r.devices[d.ObjectPath] = d
	return Change{ObjectPath: d.ObjectPath, Device: d}
}

// Remove deletes a device from the registry.
func (r *Registry) Remove(objectPath string) (Change, bool) {
	d, ok := r.devices[objectPath]
	if !ok {
		return Change{}, false
	}
	delete(r.devices, objectPath)
	r.warnings.Forget(objectPath)
	return Change{ObjectPath: objectPath, Device: d, Removed: true}, true
}

// Warnings exposes the registry's warning engine so the display device
// can be classified from its own aggregate fields under a stable
// DisplayDevicePath hysteresis key, rather than a worst-of the
// constituent devices' already-evaluated levels (spec §8 scenario 5).
func (r *Registry) Warnings() *warning.Engine { return r.warnings }

// Get returns the current Device at objectPath.
func (r *Registry) Get(objectPath string) (device.Device, bool) {
	d, ok := r.devices[objectPath]
	return d, ok
}

// All returns every registered device. The returned slice is a copy;
// callers may not mutate the registry through it.
func (r *Registry) All() []device.Device {
	out := make([]device.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}

// Batteries returns every power_supply battery or UPS currently
// registered (spec §4.4's display-device synthesis input set).
func (r *Registry) Batteries() []device.Device {
	out := make([]device.Device, 0, len(r.devices))
	for _, d := range r.devices {
		if d.IsBattery() {
			out = append(out, d)
		}
	}
	return out
}

// LinePower returns every power_supply line-power device.
func (r *Registry) LinePower() []device.Device {
	out := make([]device.Device, 0)
	for _, d := range r.devices {
		if d.PowerSupply && d.Kind == device.KindLinePower {
			out = append(out, d)
		}
	}
	return out
}
