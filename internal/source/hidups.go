package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	nut "github.com/robbiet480/go.nut"

	"upowerd/internal/device"
)

// init registers this adapter under the "hidups" name so main can build
// it from config without importing the concrete type (spec §4.1's
// native-source registry, grounded on registry.go's Builder/Lookup
// pair).
func init() {
	RegisterBuilder("hidups", BuilderFunc(func(params map[string]string) (Adapter, error) {
		pollSeconds, _ := strconv.Atoi(params["poll_seconds"])
		return NewHidUPSAdapter(params["host"], params["username"], params["password"], time.Duration(pollSeconds)*time.Second)
	}))
}

// defaultHidUPSPollInterval is spec §9(b)'s conservative default for
// USB-HID UPS polling, configurable via config's HidUpsPollSeconds.
const defaultHidUPSPollInterval = 30 * time.Second

// HidUPSAdapter models the "HID-UPS" native source (spec §4.1) as a
// client of a local Network UPS Tools daemon (upsd), which is how NUT
// normalizes the dozens of USB-HID UPS report formats into a single
// polled variable set. There is no push/interrupt primitive here — NUT's
// own protocol is poll-only — so Subscribe always reports
// ErrChangeEventsUnavailable and the backend drives this adapter purely
// off PollInterval.
type HidUPSAdapter struct {
	host         string
	username     string
	password     string
	PollInterval time.Duration

	client nut.Client
}

// NewHidUPSAdapter dials upsd at host (normally "localhost"). Credentials
// are optional; an unauthenticated connection can still read UPS
// variables on most NUT configurations.
func NewHidUPSAdapter(host, username, password string, pollInterval time.Duration) (*HidUPSAdapter, error) {
	if pollInterval <= 0 {
		pollInterval = defaultHidUPSPollInterval
	}
	client, err := nut.Connect(host)
	if err != nil {
		return nil, fmt.Errorf("hidups: connect to upsd at %s: %w", host, err)
	}
	if username != "" {
		if _, err := client.Authenticate(username, password); err != nil {
			return nil, fmt.Errorf("hidups: authenticate: %w", err)
		}
	}
	return &HidUPSAdapter{host: host, username: username, password: password, PollInterval: pollInterval, client: client}, nil
}

func (a *HidUPSAdapter) Enumerate(ctx context.Context) ([]RawSource, error) {
	upsList, err := a.client.GetUPSList()
	if err != nil {
		return nil, fmt.Errorf("hidups: list UPS devices: %w", err)
	}
	out := make([]RawSource, 0, len(upsList))
	for _, u := range upsList {
		out = append(out, RawSource{
			ID:         u.Name,
			Kind:       device.KindUPS,
			NativePath: "nut://" + a.host + "/" + u.Name,
			Handle:     u.Name,
		})
	}
	return out, nil
}

func (a *HidUPSAdapter) Subscribe(ctx context.Context, sink chan<- Event) (Subscription, error) {
	return nil, ErrChangeEventsUnavailable
}

func (a *HidUPSAdapter) Refresh(ctx context.Context, src RawSource) (device.RawSnapshot, error) {
	name, _ := src.Handle.(string)
	upsList, err := a.client.GetUPSList()
	if err != nil {
		return nil, fmt.Errorf("hidups: list UPS devices: %w", err)
	}
	for _, u := range upsList {
		if u.Name != name {
			continue
		}
		return natVariablesToSnapshot(u.Variables), nil
	}
	return nil, fmt.Errorf("hidups: UPS %q no longer listed", name)
}

func (a *HidUPSAdapter) Close() error {
	_, err := a.client.Disconnect()
	return err
}

// natVariablesToSnapshot translates NUT's ups.status/battery.charge/...
// variable set into the raw attribute vocabulary normalize.go consumes.
func natVariablesToSnapshot(vars []nut.Variable) device.RawSnapshot {
	raw := map[string]string{}
	for _, v := range vars {
		raw[v.Name] = fmt.Sprintf("%v", v.Value)
	}

	snap := device.RawSnapshot{"type": "UPS", "present": "1"}
	if charge, ok := raw["battery.charge"]; ok {
		snap["capacity"] = charge
	}
	if v, ok := raw["battery.voltage"]; ok {
		snap["voltage_now"] = microFromUnit(v)
	}
	if v, ok := raw["battery.runtime"]; ok {
		snap["time_to_empty_seconds"] = v
	}
	if v, ok := raw["ups.mfr"]; ok {
		snap["manufacturer"] = v
	}
	if v, ok := raw["ups.model"]; ok {
		snap["model_name"] = v
	}
	if v, ok := raw["ups.serial"]; ok {
		snap["serial_number"] = v
	}
	snap["status"] = natStatusToSysfsStatus(raw["ups.status"])
	return snap
}

// microFromUnit converts a NUT volts string into sysfs-style microvolts,
// falling back to the raw string unchanged if it does not parse (rare,
// NUT variables are not always numeric-typed at the protocol level).
func microFromUnit(s string) string {
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err != nil {
		return s
	}
	return fmt.Sprintf("%d", int64(f*1e6))
}

// natStatusToSysfsStatus maps NUT's space-separated ups.status flags
// (OL, OB, LB, CHRG, DISCHRG, ...) onto the sysfs status vocabulary.
func natStatusToSysfsStatus(status string) string {
	for _, flag := range []string{"CHRG"} {
		if containsWord(status, flag) {
			return "Charging"
		}
	}
	for _, flag := range []string{"DISCHRG", "OB"} {
		if containsWord(status, flag) {
			return "Discharging"
		}
	}
	if containsWord(status, "OL") {
		return "Full"
	}
	return "Unknown"
}

func containsWord(s, word string) bool {
	for i := 0; i+len(word) <= len(s); i++ {
		if s[i:i+len(word)] == word {
			if (i == 0 || s[i-1] == ' ') && (i+len(word) == len(s) || s[i+len(word)] == ' ') {
				return true
			}
		}
	}
	return false
}
