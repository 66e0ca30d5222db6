// Package device defines the normalized Device model and the pure
// functions that derive it from raw kernel/adapter readings.
package device

// Kind classifies the role a device plays in the power system.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindLinePower        Kind = "line_power"
	KindBattery          Kind = "battery"
	KindUPS              Kind = "ups"
	KindMouse            Kind = "mouse"
	KindKeyboard         Kind = "keyboard"
	KindPDA              Kind = "pda"
	KindPhone            Kind = "phone"
	KindMediaPlayer      Kind = "media_player"
	KindTablet           Kind = "tablet"
	KindComputer         Kind = "computer"
	KindGamingInput      Kind = "gaming_input"
	KindBluetoothGeneric Kind = "bluetooth_generic"
)

// State is the charge/discharge lifecycle state of a device.
type State string

const (
	StateUnknown          State = "unknown"
	StateCharging         State = "charging"
	StateDischarging      State = "discharging"
	StateEmpty            State = "empty"
	StateFullyCharged     State = "fully_charged"
	StatePendingCharge    State = "pending_charge"
	StatePendingDischarge State = "pending_discharge"
)

// Technology names the cell chemistry of a battery.
type Technology string

const (
	TechUnknown              Technology = "unknown"
	TechLithiumIon           Technology = "lithium_ion"
	TechLithiumPolymer       Technology = "lithium_polymer"
	TechLithiumIronPhosphate Technology = "lithium_iron_phosphate"
	TechLeadAcid             Technology = "lead_acid"
	TechNickelCadmium        Technology = "nickel_cadmium"
	TechNickelMetalHydride   Technology = "nickel_metal_hydride"
)

// WarningLevel is the severity classification computed by the warning
// engine (see internal/warning).
type WarningLevel string

const (
	WarningUnknown     WarningLevel = "unknown"
	WarningNone        WarningLevel = "none"
	WarningDischarging WarningLevel = "discharging"
	WarningLow         WarningLevel = "low"
	WarningCritical    WarningLevel = "critical"
	WarningAction      WarningLevel = "action"
)

// Device is the normalized, registry-held representation of a power
// source. It is data, not a class: every transform that produces a new
// Device is a pure function of (RawSnapshot, prior Device, config).
type Device struct {
	ObjectPath string
	NativePath string

	Kind            Kind
	State           State
	Online          bool
	IsPresent       bool
	IsRechargeable  bool
	PowerSupply     bool

	Percentage real

	Energy           real
	EnergyEmpty      real
	EnergyFull       real
	EnergyFullDesign real
	EnergyRate       real

	Voltage     real
	Temperature real

	TimeToEmpty int64
	TimeToFull  int64

	Capacity   real
	Technology Technology

	WarningLevel WarningLevel

	Vendor string
	Model  string
	Serial string

	// UpdateTime is a monotonic timestamp in seconds.
	UpdateTime int64
}

// real is the spec's "real" numeric type: all percentage/energy/voltage/
// temperature fields are float64, kept as a named alias so the normalize
// and warning packages read close to the spec's own vocabulary.
type real = float64

// Clone returns a shallow copy; Device has no reference fields needing a
// deep copy, so this is just a value copy with an explicit name at call
// sites that want to mutate a registry entry without aliasing it.
func (d Device) Clone() Device { return d }

// IsBattery reports whether this device contributes to system battery
// accounting for OnBattery / display-device purposes (batteries and UPS,
// not peripherals).
func (d Device) IsBattery() bool {
	return d.PowerSupply && (d.Kind == KindBattery || d.Kind == KindUPS)
}
