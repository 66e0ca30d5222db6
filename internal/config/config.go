// Package config loads the daemon's key=value configuration file (spec
// §6), applying struct-of-defaults values and then environment variable
// overrides, grounded on the teacher's config services
// (services/config, services/hal/config) generalized from an
// embedded-JSON single-device model to a single host-wide INI file.
package config

import (
	"os"

	"gopkg.in/ini.v1"

	"upowerd/internal/warning"
	"upowerd/x/strx"
)

// Environment variable names (spec §6).
const (
	EnvConfFileName   = "UPOWER_CONF_FILE_NAME"
	EnvHistoryDir     = "UPOWER_HISTORY_DIR"
	EnvMockSysfsRoot  = "UPOWER_MOCK_SYSFS_ROOT"
	defaultConfPath   = "/etc/upowerd.conf"
	defaultHistoryDir = "/var/lib/upowerd/history"
)

// Config is the fully-resolved set of daemon settings (spec §6's table
// plus the two persistence-location env vars).
type Config struct {
	PercentageLow      float64
	PercentageCritical float64
	PercentageAction   float64

	TimeLow      int
	TimeCritical int
	TimeAction   int

	UsePercentageForPolicy bool
	CriticalPowerAction    string

	HistoryDir    string
	MockSysfsRoot string

	// Optional native sources beyond the platform default (sysfs on
	// Linux, ACPI elsewhere): a local NUT-managed USB-HID UPS, and/or a
	// directly-wired LTC4015 charger IC (spec §4.1's "HID-UPS"/embedded
	// sources). Both are off unless explicitly enabled, since neither
	// upsd nor an I2C charger IC is present on a typical host.
	HidUpsEnabled     bool
	HidUpsHost        string
	HidUpsUsername    string
	HidUpsPassword    string
	HidUpsPollSeconds int

	LTC4015Enabled     bool
	LTC4015ID          string
	LTC4015I2CBus      int
	LTC4015Address     string // hex, e.g. "36"
	LTC4015Chemistry   string // "lithium" or "leadacid"
	LTC4015RSenseBatt  int    // battery-path sense resistor, µΩ
	LTC4015RSenseInput int    // input-path sense resistor, µΩ
}

// Default returns spec §6's documented defaults.
func Default() Config {
	return Config{
		PercentageLow:          10,
		PercentageCritical:     5,
		PercentageAction:       2,
		TimeLow:                600,
		TimeCritical:           300,
		TimeAction:             120,
		UsePercentageForPolicy: false,
		CriticalPowerAction:    "HybridSleep",
		HistoryDir:             defaultHistoryDir,

		HidUpsHost:        "localhost",
		HidUpsPollSeconds: 30,

		LTC4015ID:          "ltc4015-0-36",
		LTC4015I2CBus:      1,
		LTC4015Address:     "36",
		LTC4015Chemistry:   "lithium",
		LTC4015RSenseBatt:  10000,
		LTC4015RSenseInput: 10000,
	}
}

// Load resolves the config file path from UPOWER_CONF_FILE_NAME (falling
// back to defaultConfPath), parses its key=value sections with
// gopkg.in/ini.v1, lays the parsed values over Default(), and finally
// applies UPOWER_HISTORY_DIR / UPOWER_MOCK_SYSFS_ROOT overrides. A
// missing config file is not an error: Default() alone is used.
func Load() (Config, error) {
	cfg := Default()

	path := os.Getenv(EnvConfFileName)
	if path == "" {
		path = defaultConfPath
	}
	if _, err := os.Stat(path); err == nil {
		f, err := ini.Load(path)
		if err != nil {
			return cfg, err
		}
		applyINI(&cfg, f.Section(""))
	}

	if dir := os.Getenv(EnvHistoryDir); dir != "" {
		cfg.HistoryDir = dir
	}
	cfg.MockSysfsRoot = os.Getenv(EnvMockSysfsRoot)

	return cfg, nil
}

func applyINI(cfg *Config, sec *ini.Section) {
	if k := sec.Key("PercentageLow"); k.String() != "" {
		cfg.PercentageLow, _ = k.Float64()
	}
	if k := sec.Key("PercentageCritical"); k.String() != "" {
		cfg.PercentageCritical, _ = k.Float64()
	}
	if k := sec.Key("PercentageAction"); k.String() != "" {
		cfg.PercentageAction, _ = k.Float64()
	}
	if k := sec.Key("TimeLow"); k.String() != "" {
		cfg.TimeLow, _ = k.Int()
	}
	if k := sec.Key("TimeCritical"); k.String() != "" {
		cfg.TimeCritical, _ = k.Int()
	}
	if k := sec.Key("TimeAction"); k.String() != "" {
		cfg.TimeAction, _ = k.Int()
	}
	if k := sec.Key("UsePercentageForPolicy"); k.String() != "" {
		cfg.UsePercentageForPolicy, _ = k.Bool()
	}
	cfg.CriticalPowerAction = strx.Coalesce(sec.Key("CriticalPowerAction").String(), cfg.CriticalPowerAction)

	if k := sec.Key("HidUpsEnabled"); k.String() != "" {
		cfg.HidUpsEnabled, _ = k.Bool()
	}
	cfg.HidUpsHost = strx.Coalesce(sec.Key("HidUpsHost").String(), cfg.HidUpsHost)
	cfg.HidUpsUsername = strx.Coalesce(sec.Key("HidUpsUsername").String(), cfg.HidUpsUsername)
	cfg.HidUpsPassword = strx.Coalesce(sec.Key("HidUpsPassword").String(), cfg.HidUpsPassword)
	if k := sec.Key("HidUpsPollSeconds"); k.String() != "" {
		cfg.HidUpsPollSeconds, _ = k.Int()
	}

	if k := sec.Key("LTC4015Enabled"); k.String() != "" {
		cfg.LTC4015Enabled, _ = k.Bool()
	}
	cfg.LTC4015ID = strx.Coalesce(sec.Key("LTC4015ID").String(), cfg.LTC4015ID)
	if k := sec.Key("LTC4015I2CBus"); k.String() != "" {
		cfg.LTC4015I2CBus, _ = k.Int()
	}
	cfg.LTC4015Address = strx.Coalesce(sec.Key("LTC4015Address").String(), cfg.LTC4015Address)
	cfg.LTC4015Chemistry = strx.Coalesce(sec.Key("LTC4015Chemistry").String(), cfg.LTC4015Chemistry)
	if k := sec.Key("LTC4015RSenseBatt"); k.String() != "" {
		cfg.LTC4015RSenseBatt, _ = k.Int()
	}
	if k := sec.Key("LTC4015RSenseInput"); k.String() != "" {
		cfg.LTC4015RSenseInput, _ = k.Int()
	}
}

// Thresholds projects the percentage/time warning-level fields into the
// warning engine's input type.
func (c Config) Thresholds() warning.Thresholds {
	return warning.Thresholds{
		PercentageLow:      c.PercentageLow,
		PercentageCritical: c.PercentageCritical,
		PercentageAction:   c.PercentageAction,
		TimeLow:            int64(c.TimeLow),
		TimeCritical:       int64(c.TimeCritical),
		TimeAction:         int64(c.TimeAction),
		UsePercentageOnly:  c.UsePercentageForPolicy,
	}
}
