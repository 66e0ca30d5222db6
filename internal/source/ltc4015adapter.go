//go:build linux

package source

import (
	"context"
	"fmt"
	"strconv"

	"upowerd/drivers/ltc4015"
	"upowerd/internal/device"
)

// init registers this adapter under the "ltc4015" name (spec §4.1's
// native-source registry, grounded on registry.go's Builder/Lookup
// pair), so main builds it from config params instead of importing the
// concrete type and the driver package directly.
func init() {
	RegisterBuilder("ltc4015", BuilderFunc(func(params map[string]string) (Adapter, error) {
		i2cBus, _ := strconv.Atoi(params["i2c_bus"])
		addr, err := strconv.ParseUint(params["address"], 16, 16)
		if err != nil {
			return nil, fmt.Errorf("ltc4015: invalid address %q: %w", params["address"], err)
		}
		rsenseBatt, _ := strconv.Atoi(params["rsense_batt_uohm"])
		rsenseInput, _ := strconv.Atoi(params["rsense_input_uohm"])

		cfg := ltc4015.DefaultConfig()
		cfg.Address = uint16(addr)
		cfg.RSNSB_uOhm = uint32(rsenseBatt)
		cfg.RSNSI_uOhm = uint32(rsenseInput)
		if params["chemistry"] == "leadacid" {
			cfg.Chem = ltc4015.ChemLeadAcid
		}

		return NewLTC4015Adapter(i2cBus, cfg, params["id"])
	}))
}

// LTC4015Adapter wraps the adapted LTC4015 I2C smart-battery-charger
// driver as a native source (spec §4.1), representing an embedded
// charger IC's telemetry — cell voltage, charge current, die
// temperature, and charger state — as one power_supply-shaped device.
// The LTC4015 has no fuel-gauge register, so it never reports
// capacity/energy attributes; normalize.go's precedence table correctly
// falls through to "unknown" percentage for this source, same as any
// sysfs device that only exposes voltage_now.
type LTC4015Adapter struct {
	bus *ltc4015.LinuxBus
	dev *ltc4015.Device
	id  string
	cfg ltc4015.Config
}

// NewLTC4015Adapter opens /dev/i2c-<i2cBus> and constructs the driver
// with cfg. id is the stable source identity (RawSource.ID, e.g.
// "ltc4015-0-36" for bus 0, address 0x36); the object path derives from
// NativePath, "ltc4015-<address in decimal>".
func NewLTC4015Adapter(i2cBus int, cfg ltc4015.Config, id string) (*LTC4015Adapter, error) {
	bus, err := ltc4015.OpenLinuxBus(i2cBus)
	if err != nil {
		return nil, fmt.Errorf("ltc4015adapter: %w", err)
	}
	dev, err := ltc4015.NewAuto(bus, cfg)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("ltc4015adapter: detect chemistry: %w", err)
	}
	return &LTC4015Adapter{bus: bus, dev: dev, id: id, cfg: cfg}, nil
}

func (a *LTC4015Adapter) Enumerate(ctx context.Context) ([]RawSource, error) {
	return []RawSource{{
		ID:         a.id,
		Kind:       device.KindBattery,
		NativePath: fmt.Sprintf("ltc4015-%d", a.cfg.Address),
	}}, nil
}

// Subscribe: the LTC4015 can latch alerts into its ALERT pin, but
// reading that pin requires GPIO wiring this driver does not own, so
// there is no change-notification primitive available here.
func (a *LTC4015Adapter) Subscribe(ctx context.Context, sink chan<- Event) (Subscription, error) {
	return nil, ErrChangeEventsUnavailable
}

func (a *LTC4015Adapter) Refresh(ctx context.Context, src RawSource) (device.RawSnapshot, error) {
	snap := a.dev.Snapshot()

	raw := device.RawSnapshot{
		"type":        "Battery",
		"present":     "1",
		"voltage_now": strconv.Itoa(int(snap.Pack_mV) * 1000),
		"current_now": strconv.Itoa(int(snap.IBat_mA) * 1000),
		"temp":        strconv.Itoa(int(snap.Die_mC) / 100),
		"status":      ltc4015StatusToSysfsStatus(snap.State, snap.IBat_mA),
	}
	if lith, ok := a.dev.Lithium(); ok {
		_ = lith // chemistry accessors expose target/limit setpoints, not telemetry
		raw["technology"] = "Li-ion"
	}
	if _, ok := a.dev.LeadAcid(); ok {
		raw["technology"] = "Pb"
	}
	return raw, nil
}

func (a *LTC4015Adapter) Close() error {
	return a.bus.Close()
}

// ltc4015StatusToSysfsStatus derives a sysfs-style status string from
// the charger state bits and instantaneous battery current sign, since
// the LTC4015 has no single "charging/discharging" status register.
func ltc4015StatusToSysfsStatus(state ltc4015.ChargerState, ibatMA int32) string {
	switch {
	case state&ltc4015.StChargerSuspended != 0:
		return "Not charging"
	case state&(ltc4015.StTimerTerm|ltc4015.StCOverXTerm) != 0:
		return "Full"
	case ibatMA > 0:
		return "Charging"
	case ibatMA < 0:
		return "Discharging"
	default:
		return "Unknown"
	}
}
