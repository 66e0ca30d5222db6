package backend

import (
	"sync"
	"time"

	"upowerd/internal/device"
)

// QuarantineDuration is spec §4.3's peripheral-removal grace period: a
// removed peripheral is held rather than deleted immediately, so a
// bluetooth device that a kernel re-creates on wake resurrects under
// the same object_path and history instead of re-announcing itself.
const QuarantineDuration = 2 * time.Second

type quarantined struct {
	device   device.Device
	identity string
	timer    *time.Timer
}

// Quarantine holds recently-removed peripherals for QuarantineDuration,
// keyed by the native source's stable identity string (spec §4.3). It is
// only ever touched from the aggregator's main loop — no internal
// locking is needed for correctness, but Quarantine stays safe to use
// from a timer goroutine's callback via an explicit mutex, since Go
// timers always fire their callback on a separate goroutine.
type Quarantine struct {
	mu       sync.Mutex
	held     map[string]*quarantined
	onExpire func(identity string, d device.Device)
}

// NewQuarantine builds a Quarantine. onExpire is invoked, from a timer
// goroutine, when a held device's grace period elapses without a
// matching add event; callers should re-post it onto the main loop
// rather than mutate the registry directly from within onExpire.
func NewQuarantine(onExpire func(identity string, d device.Device)) *Quarantine {
	return &Quarantine{held: map[string]*quarantined{}, onExpire: onExpire}
}

// Hold starts (or restarts) the grace period for a removed peripheral.
func (q *Quarantine) Hold(identity string, d device.Device) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if existing, ok := q.held[identity]; ok {
		existing.timer.Stop()
	}
	entry := &quarantined{device: d, identity: identity}
	entry.timer = time.AfterFunc(QuarantineDuration, func() {
		q.mu.Lock()
		cur, ok := q.held[identity]
		if ok && cur == entry {
			delete(q.held, identity)
		}
		q.mu.Unlock()
		if ok && cur == entry {
			q.onExpire(identity, entry.device)
		}
	})
	q.held[identity] = entry
}

// Resurrect cancels a held peripheral's grace period and returns its
// prior Device (same object_path, same history) if identity matches a
// currently-quarantined entry.
func (q *Quarantine) Resurrect(identity string) (device.Device, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, ok := q.held[identity]
	if !ok {
		return device.Device{}, false
	}
	entry.timer.Stop()
	delete(q.held, identity)
	return entry.device, true
}

// Forget cancels a held entry without invoking onExpire.
func (q *Quarantine) Forget(identity string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if entry, ok := q.held[identity]; ok {
		entry.timer.Stop()
		delete(q.held, identity)
	}
}
