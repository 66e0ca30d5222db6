package source

import (
	"context"
	"sync"

	"upowerd/internal/device"
)

// DummyAdapter emits a fixed inventory, for tests (spec §4.1).
type DummyAdapter struct {
	mu        sync.Mutex
	sources   []RawSource
	snapshots map[string]device.RawSnapshot
	sinks     []chan<- Event
}

// NewDummyAdapter builds a dummy adapter pre-seeded with sources/snapshots.
func NewDummyAdapter(sources []RawSource, snapshots map[string]device.RawSnapshot) *DummyAdapter {
	return &DummyAdapter{sources: sources, snapshots: snapshots}
}

func (a *DummyAdapter) Enumerate(ctx context.Context) ([]RawSource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]RawSource, len(a.sources))
	copy(out, a.sources)
	return out, nil
}

func (a *DummyAdapter) Subscribe(ctx context.Context, sink chan<- Event) (Subscription, error) {
	a.mu.Lock()
	a.sinks = append(a.sinks, sink)
	a.mu.Unlock()
	return dummySubscription{}, nil
}

func (a *DummyAdapter) Refresh(ctx context.Context, src RawSource) (device.RawSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap, ok := a.snapshots[src.ID]
	if !ok {
		return device.RawSnapshot{}, nil
	}
	out := make(device.RawSnapshot, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	return out, nil
}

func (a *DummyAdapter) Close() error { return nil }

// SetSnapshot updates the stored raw attributes for src.ID and, if a
// subscription is active, emits an EventChange so tests can exercise the
// change-driven refresh path.
func (a *DummyAdapter) SetSnapshot(id string, snap device.RawSnapshot) {
	a.mu.Lock()
	a.snapshots[id] = snap
	var src RawSource
	for _, s := range a.sources {
		if s.ID == id {
			src = s
			break
		}
	}
	sinks := append([]chan<- Event{}, a.sinks...)
	a.mu.Unlock()
	for _, sink := range sinks {
		select {
		case sink <- Event{Type: EventChange, Source: src}:
		default:
		}
	}
}

// AddSource appends a new source and emits EventAdd (peripheral
// reconnect tests, spec §8 scenario 6).
func (a *DummyAdapter) AddSource(src RawSource, snap device.RawSnapshot) {
	a.mu.Lock()
	a.sources = append(a.sources, src)
	a.snapshots[src.ID] = snap
	sinks := append([]chan<- Event{}, a.sinks...)
	a.mu.Unlock()
	for _, sink := range sinks {
		select {
		case sink <- Event{Type: EventAdd, Source: src}:
		default:
		}
	}
}

// RemoveSource drops a source and emits EventRemove.
func (a *DummyAdapter) RemoveSource(id string) {
	a.mu.Lock()
	var src RawSource
	kept := a.sources[:0]
	for _, s := range a.sources {
		if s.ID == id {
			src = s
			continue
		}
		kept = append(kept, s)
	}
	a.sources = kept
	sinks := append([]chan<- Event{}, a.sinks...)
	a.mu.Unlock()
	for _, sink := range sinks {
		select {
		case sink <- Event{Type: EventRemove, Source: src}:
		default:
		}
	}
}

type dummySubscription struct{}

func (dummySubscription) Close() error { return nil }
