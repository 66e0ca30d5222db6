//go:build !linux

package source

import (
	"context"
	"fmt"
	"strconv"

	"github.com/distatus/battery"

	"upowerd/internal/device"
)

// ACPIAdapter is the non-Linux native source, backed by
// github.com/distatus/battery's cross-platform ACPI/IOKit/SetupAPI
// readers (spec §4.1's "BSD APM/ACPI" adapter, generalized to every
// non-Linux platform the library supports). It has no kernel change
// notification primitive of its own, so Subscribe always reports
// ErrChangeEventsUnavailable and the backend falls back to its poll
// cadence (spec §4.1's documented failure semantics).
type ACPIAdapter struct{}

// NewACPIAdapter builds the adapter. There is nothing to configure: the
// underlying library enumerates whatever batteries the OS reports.
func NewACPIAdapter() *ACPIAdapter { return &ACPIAdapter{} }

func (a *ACPIAdapter) Enumerate(ctx context.Context) ([]RawSource, error) {
	batteries, err := battery.GetAll()
	if err != nil && len(batteries) == 0 {
		return nil, fmt.Errorf("acpi: enumerate batteries: %w", err)
	}
	out := make([]RawSource, 0, len(batteries))
	for i := range batteries {
		id := strconv.Itoa(i)
		out = append(out, RawSource{
			ID:         id,
			Kind:       device.KindBattery,
			NativePath: "acpi-battery-" + id,
			Handle:     i,
		})
	}
	return out, nil
}

func (a *ACPIAdapter) Subscribe(ctx context.Context, sink chan<- Event) (Subscription, error) {
	return nil, ErrChangeEventsUnavailable
}

func (a *ACPIAdapter) Refresh(ctx context.Context, src RawSource) (device.RawSnapshot, error) {
	idx, _ := src.Handle.(int)
	b, err := battery.Get(idx)
	if err != nil {
		return nil, fmt.Errorf("acpi: read battery %d: %w", idx, err)
	}

	snap := device.RawSnapshot{
		"type":               "Battery",
		"energy_now":         formatMicroWh(b.Current),
		"energy_full":        formatMicroWh(b.Full),
		"energy_full_design": formatMicroWh(b.Design),
		"power_now":          formatMicroW(b.ChargeRate),
		"voltage_now":        formatMicroV(b.Voltage),
		"status":             acpiStateStatus(b.State),
		"present":            "1",
	}
	return snap, nil
}

func (a *ACPIAdapter) Close() error { return nil }

// acpiStateStatus maps distatus/battery's State to the same status
// vocabulary sysfs uses, so normalize.go's precedence table needs no
// adapter-specific branch.
func acpiStateStatus(s battery.State) string {
	switch s.Raw {
	case battery.Charging:
		return "Charging"
	case battery.Discharging:
		return "Discharging"
	case battery.Full:
		return "Full"
	case battery.Empty:
		return "Discharging"
	case battery.NotCharging:
		return "Not charging"
	default:
		return "Unknown"
	}
}

// formatMicroWh converts the library's watt-hour float into the
// microwatt-hour integer string sysfs-style attributes use.
func formatMicroWh(wh float64) string { return strconv.FormatInt(int64(wh*1e6), 10) }

func formatMicroW(w float64) string { return strconv.FormatInt(int64(w*1e6), 10) }

func formatMicroV(v float64) string { return strconv.FormatInt(int64(v*1e6), 10) }
