// Package busiface exports the normalized device registry on the
// system D-Bus as org.freedesktop.UPower (spec §4.7), grounded on
// github.com/godbus/dbus/v5's Export/Emit pattern
// (other_examples/.../bluez/battery_provider.go's
// BluezBatteryProvider) and on the real org.freedesktop.UPower*
// interface names and object layout
// (other_examples/.../snapd/interfaces/builtin/upower.go's AppArmor/
// D-Bus policy templates).
package busiface

import (
	"context"
	"sync"

	godbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"upowerd/bus"
	"upowerd/internal/aggregator"
	"upowerd/internal/device"
	"upowerd/internal/history"
)

const (
	managerIface = "org.freedesktop.UPower"
	deviceIface  = "org.freedesktop.UPower.Device"
	busName      = "org.freedesktop.UPower"
)

// Service owns the D-Bus-facing object tree: the manager singleton, one
// object per registered device, and the synthetic display device. It
// subscribes to the in-process bus the aggregator.Daemon publishes
// change notifications on and mirrors them onto the real system bus as
// PropertiesChanged/DeviceAdded/DeviceRemoved.
type Service struct {
	dbusConn *godbus.Conn
	busConn  *bus.Connection
	daemon   *aggregator.Daemon
	history  *history.Store

	version        string
	criticalAction string

	exported map[string]bool

	// displayDevice caches the aggregator's last-synthesized display
	// device. It is never in the registry (aggregator.SynthesizeDisplayDevice
	// builds it fresh each tick), so deviceObject.current must read it
	// from here instead of Registry().Get for device.DisplayDevicePath.
	displayMu     sync.RWMutex
	displayDevice device.Device
}

// New builds a Service. Call Start to request the bus name, export the
// manager object and every currently-registered device, and begin
// mirroring subsequent changes.
func New(dbusConn *godbus.Conn, busConn *bus.Connection, daemon *aggregator.Daemon, hist *history.Store, version, criticalAction string) *Service {
	return &Service{
		dbusConn:       dbusConn,
		busConn:        busConn,
		daemon:         daemon,
		history:        hist,
		version:        version,
		criticalAction: criticalAction,
		exported:       map[string]bool{},
		displayDevice: device.Device{
			ObjectPath:   device.DisplayDevicePath,
			Kind:         device.KindUnknown,
			State:        device.StateFullyCharged,
			WarningLevel: device.WarningNone,
			PowerSupply:  true,
		},
	}
}

// setDisplayDevice records the aggregator's latest synthesized display
// device, called from the mirror goroutine whenever it fires.
func (s *Service) setDisplayDevice(d device.Device) {
	s.displayMu.Lock()
	s.displayDevice = d
	s.displayMu.Unlock()
}

// currentDisplayDevice returns the last-synthesized display device,
// or the empty placeholder set in New before the first tick.
func (s *Service) currentDisplayDevice() device.Device {
	s.displayMu.RLock()
	defer s.displayMu.RUnlock()
	return s.displayDevice
}

// Start requests the well-known bus name (replace controls whether an
// existing owner is evicted, spec §6's --replace flag), exports the
// manager object, exports every device already in the registry, and
// launches the change-mirroring goroutine.
func (s *Service) Start(ctx context.Context, replace bool) error {
	flags := godbus.NameFlagDoNotQueue
	if replace {
		flags |= godbus.NameFlagReplaceExisting | godbus.NameFlagAllowReplacement
	}
	reply, err := s.dbusConn.RequestName(busName, flags)
	if err != nil {
		return err
	}
	if reply != godbus.RequestNameReplyPrimaryOwner && !replace {
		return errBusNameTaken
	}

	if err := s.exportManager(); err != nil {
		return err
	}
	for _, d := range s.daemon.Registry().All() {
		s.exportDevice(d.ObjectPath)
	}
	s.exportDevice(device.DisplayDevicePath)

	go s.mirror(ctx)
	return nil
}

var errBusNameTaken = godbus.Error{Name: "org.freedesktop.DBus.Error.AddressInUse", Body: []any{"org.freedesktop.UPower is already owned"}}

func (s *Service) exportManager() error {
	mgr := &managerObject{svc: s}
	if err := s.dbusConn.Export(mgr, device.ManagerPath, managerIface); err != nil {
		return err
	}
	if err := s.dbusConn.Export(mgr, device.ManagerPath, "org.freedesktop.DBus.Properties"); err != nil {
		return err
	}
	return s.dbusConn.Export(introspect.Introspectable(managerIntrospectXML), device.ManagerPath, "org.freedesktop.DBus.Introspectable")
}

func (s *Service) exportDevice(objectPath string) {
	if s.exported[objectPath] {
		return
	}
	obj := &deviceObject{svc: s, objectPath: objectPath}
	path := godbus.ObjectPath(objectPath)
	_ = s.dbusConn.Export(obj, path, deviceIface)
	_ = s.dbusConn.Export(obj, path, "org.freedesktop.DBus.Properties")
	_ = s.dbusConn.Export(introspect.Introspectable(deviceIntrospectXML), path, "org.freedesktop.DBus.Introspectable")
	s.exported[objectPath] = true
}

func (s *Service) unexportDevice(objectPath string) {
	path := godbus.ObjectPath(objectPath)
	_ = s.dbusConn.Export(nil, path, deviceIface)
	_ = s.dbusConn.Export(nil, path, "org.freedesktop.DBus.Properties")
	delete(s.exported, objectPath)
}

// mirror subscribes to the aggregator's change topics and keeps the
// D-Bus object tree and its PropertiesChanged/DeviceAdded/DeviceRemoved
// signals in sync. It runs on its own goroutine; D-Bus export/emit calls
// are safe for concurrent use, so this never touches the daemon's own
// single-writer loop (spec §5).
func (s *Service) mirror(ctx context.Context) {
	added := s.busConn.Subscribe(bus.T("upower", "manager", "device_added"))
	removed := s.busConn.Subscribe(bus.T("upower", "manager", "device_removed"))
	changed := s.busConn.Subscribe(bus.T("upower", "device", "#"))
	display := s.busConn.Subscribe(bus.T("upower", "display"))
	onBattery := s.busConn.Subscribe(bus.T("upower", "onbattery"))
	defer s.busConn.Unsubscribe(added)
	defer s.busConn.Unsubscribe(removed)
	defer s.busConn.Unsubscribe(changed)
	defer s.busConn.Unsubscribe(display)
	defer s.busConn.Unsubscribe(onBattery)

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-added.Channel():
			objectPath, _ := m.Payload.(string)
			s.exportDevice(objectPath)
			_ = s.dbusConn.Emit(godbus.ObjectPath(device.ManagerPath), managerIface+".DeviceAdded", godbus.ObjectPath(objectPath))
		case m := <-removed.Channel():
			objectPath, _ := m.Payload.(string)
			s.unexportDevice(objectPath)
			_ = s.dbusConn.Emit(godbus.ObjectPath(device.ManagerPath), managerIface+".DeviceRemoved", godbus.ObjectPath(objectPath))
		case m := <-changed.Channel():
			dv, ok := m.Payload.(device.Device)
			if !ok {
				continue
			}
			s.recordHistory(dv)
			s.emitPropertiesChanged(dv.ObjectPath, deviceIface, devicePropertyMap(dv))
		case m := <-display.Channel():
			dv, ok := m.Payload.(device.Device)
			if !ok {
				continue
			}
			s.setDisplayDevice(dv)
			s.emitPropertiesChanged(device.DisplayDevicePath, deviceIface, devicePropertyMap(dv))
		case m := <-onBattery.Channel():
			onBat, _ := m.Payload.(bool)
			s.emitPropertiesChanged(device.ManagerPath, managerIface, map[string]godbus.Variant{
				"OnBattery": godbus.MakeVariant(onBat),
			})
		}
	}
}

func (s *Service) recordHistory(dv device.Device) {
	now := dv.UpdateTime
	tag := string(dv.State)
	s.history.Append(dv.ObjectPath, history.SeriesCharge, history.Sample{Timestamp: now, Value: dv.Percentage, StateTag: tag})
	s.history.Append(dv.ObjectPath, history.SeriesRate, history.Sample{Timestamp: now, Value: dv.EnergyRate, StateTag: tag})
	s.history.Append(dv.ObjectPath, history.SeriesTimeFull, history.Sample{Timestamp: now, Value: float64(dv.TimeToFull), StateTag: tag})
	s.history.Append(dv.ObjectPath, history.SeriesTimeEmpty, history.Sample{Timestamp: now, Value: float64(dv.TimeToEmpty), StateTag: tag})
}

func (s *Service) emitPropertiesChanged(objectPath, iface string, changedProps map[string]godbus.Variant) {
	_ = s.dbusConn.Emit(godbus.ObjectPath(objectPath), "org.freedesktop.DBus.Properties.PropertiesChanged",
		iface, changedProps, []string{})
}

const managerIntrospectXML = `
<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
"http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
<node>
	<interface name="org.freedesktop.UPower">
		<method name="EnumerateDevices">
			<arg name="devices" type="ao" direction="out"/>
		</method>
		<method name="GetDisplayDevice">
			<arg name="device" type="o" direction="out"/>
		</method>
		<method name="GetCriticalAction">
			<arg name="action" type="s" direction="out"/>
		</method>
		<signal name="DeviceAdded"><arg name="device" type="o"/></signal>
		<signal name="DeviceRemoved"><arg name="device" type="o"/></signal>
		<property name="DaemonVersion" type="s" access="read"/>
		<property name="OnBattery" type="b" access="read"/>
		<property name="LidIsClosed" type="b" access="read"/>
		<property name="LidIsPresent" type="b" access="read"/>
	</interface>
</node>`

const deviceIntrospectXML = `
<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN"
"http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
<node>
	<interface name="org.freedesktop.UPower.Device">
		<method name="Refresh"/>
		<method name="GetHistory">
			<arg name="type" type="s" direction="in"/>
			<arg name="timespan" type="u" direction="in"/>
			<arg name="resolution" type="u" direction="in"/>
			<arg name="data" type="a(udu)" direction="out"/>
		</method>
		<method name="GetStatistics">
			<arg name="type" type="s" direction="in"/>
			<arg name="data" type="a(dd)" direction="out"/>
		</method>
	</interface>
</node>`
