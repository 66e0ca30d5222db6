package backend

import (
	"context"
	"fmt"
	"time"

	"upowerd/internal/device"
	"upowerd/internal/source"
)

// Coldplug enumerates every source an adapter currently reports and
// converts each into a normalized Device, so the backend has emitted
// device-added for everything present before declaring itself ready
// (spec §4.3's "on startup, the backend enumerates all current sources
// and emits device-added for each before declaring itself ready").
func Coldplug(ctx context.Context, adapter source.Adapter) ([]device.Device, error) {
	sources, err := adapter.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("backend: coldplug enumerate: %w", err)
	}
	out := make([]device.Device, 0, len(sources))
	for _, src := range sources {
		snap, err := adapter.Refresh(ctx, src)
		if err != nil {
			// A single source failing to read at coldplug never aborts
			// the whole scan (spec §4.1's per-attribute failure
			// semantics extends to whole-source coldplug reads); it is
			// simply absent from this round and will be retried on its
			// next scheduled refresh.
			continue
		}
		d := device.Normalize(snap, nil, src.Kind, src.NativePath, time.Now().Unix())
		out = append(out, d)
	}

	// No prior sample exists for any of these (first observation), so a
	// battery/UPS whose own status field was unreadable is still
	// StateUnknown here; infer from whether this batch also turned up a
	// present/online line-power source (spec §4.2).
	present, online := device.LinePowerStatus(out)
	for i := range out {
		d := &out[i]
		if (d.Kind == device.KindBattery || d.Kind == device.KindUPS) && d.State == device.StateUnknown {
			d.State = device.ResolveInitialState(present, online)
		}
	}

	return out, nil
}
