package device

// RawSnapshot is a flat map of attribute name to the raw string exactly as
// the native OS/adapter presents it (spec §4.1). Normalization never
// special-cases an adapter; it only interprets the well-known attribute
// names below, which every adapter translates its own wire format into.
//
// Recognized keys (unit as supplied by the adapter, normalize.go converts):
//
//	type              Mains | Battery | UPS | <HID usage>
//	scope             System | Device
//	online            "0" | "1"                     (line_power)
//	present            "0" | "1"
//	status            Charging | Discharging | Full | Not charging | Unknown
//	capacity          integer percent, 0-100 (may exceed 100)
//	capacity_level    Full | Normal | Low | Critical | Unknown
//	energy_full       µWh
//	energy_full_design µWh
//	energy_now        µWh
//	charge_full       µAh
//	charge_full_design µAh
//	charge_now        µAh
//	voltage_now       µV
//	power_now         µW
//	current_now       µA
//	temp              tenths of °C
//	technology        Li-ion | Li-poly | LiFe | Pb | NiCd | NiMH
//	manufacturer      free text
//	model_name        free text
//	serial_number     free text
type RawSnapshot map[string]string

// Get returns the raw value for key, or "" if absent.
func (s RawSnapshot) Get(key string) string { return s[key] }

// Has reports whether key was present in the snapshot (distinguishing
// "absent" from "present but empty", relevant for the normalization
// precedence table).
func (s RawSnapshot) Has(key string) bool {
	_, ok := s[key]
	return ok
}
