package aggregator

import (
	"context"
	"log"
	"time"

	"upowerd/bus"
	"upowerd/internal/backend"
	"upowerd/internal/device"
	"upowerd/internal/source"
	"upowerd/internal/warning"
)

// propertyCoalesceWindow is spec §4.7's property-change signal coalescing
// window: repeated refreshes of the same device within the window update
// the registry (always fresh) but only re-publish the retained bus
// message once the window has elapsed, generalized from the teacher's
// lastEmit/lastDevEmit retained-value coalescing timestamps
// (services/hal/internal/core/loop.go's handleEvent/pollFireDue).
const propertyCoalesceWindow = 200 * time.Millisecond

// defaultScheduleJitter spreads refreshes so devices discovered coldplug
// in a batch don't all poll in lockstep.
const defaultScheduleJitter = 3 * time.Second

type sourceBinding struct {
	adapter source.Adapter
	raw     source.RawSource
}

type boundEvent struct {
	adapter source.Adapter
	event   source.Event
}

type quarantineExpiry struct {
	identity string
	device   device.Device
}

type refreshRequest struct {
	objectPath string
	done       chan error
}

// Daemon is the main event loop tying native source adapters, the
// backend scheduler, the peripheral quarantine, the device registry, and
// the bus surface together (spec §4.4, §4.7). It is generalized from the
// teacher's HAL.Run: a single goroutine owns the registry and every
// mutation of it, so callers from other goroutines (busiface handlers,
// the scheduler, adapter subscriptions) only ever communicate with it
// over channels (spec §5).
type Daemon struct {
	conn *bus.Connection
	reg  *Registry

	adapters []source.Adapter
	bindings map[string]sourceBinding

	sched      *backend.Scheduler
	schedOut   chan backend.RefreshReq
	quarantine *backend.Quarantine
	quarExpiry chan quarantineExpiry

	events  chan boundEvent
	ctrl    chan refreshRequest
	logger  *log.Logger

	priorSampled       map[string]time.Time
	lastEmit           map[string]time.Time
	transitionDeadline map[string]time.Time

	ready bool
}

// NewDaemon builds a Daemon. logger may be nil, in which case log.Default
// is used.
func NewDaemon(conn *bus.Connection, thresholds warning.Thresholds, logger *log.Logger) *Daemon {
	if logger == nil {
		logger = log.Default()
	}
	schedOut := make(chan backend.RefreshReq, 16)
	d := &Daemon{
		conn:               conn,
		reg:                NewRegistry(warning.New(thresholds)),
		bindings:           map[string]sourceBinding{},
		sched:              backend.NewScheduler(schedOut, time.Now().UnixNano()),
		schedOut:           schedOut,
		quarExpiry:         make(chan quarantineExpiry, 8),
		events:             make(chan boundEvent, 32),
		ctrl:               make(chan refreshRequest, 8),
		logger:             logger,
		priorSampled:       map[string]time.Time{},
		lastEmit:           map[string]time.Time{},
		transitionDeadline: map[string]time.Time{},
	}
	d.quarantine = backend.NewQuarantine(func(identity string, dv device.Device) {
		select {
		case d.quarExpiry <- quarantineExpiry{identity: identity, device: dv}:
		default:
			// Loop is backed up; the entry has already expired so a
			// dropped notification only delays the eventual removal.
		}
	})
	return d
}

// AddAdapter enumerates adapter's current sources (coldplug), registers
// each as a Device, and starts the adapter's change subscription if it
// offers one (spec §4.1/§4.3). Call every AddAdapter before Run.
func (d *Daemon) AddAdapter(ctx context.Context, adapter source.Adapter) error {
	d.adapters = append(d.adapters, adapter)

	devices, err := backend.Coldplug(ctx, adapter)
	if err != nil {
		return err
	}
	sources, err := adapter.Enumerate(ctx)
	if err != nil {
		return err
	}
	byPath := make(map[string]source.RawSource, len(sources))
	for _, src := range sources {
		byPath[device.ObjectPath(src.Kind, src.NativePath)] = src
	}
	for _, dv := range devices {
		device.ApplyRate(&dv, device.RateInput{Now: time.Now()})
		d.bindings[dv.ObjectPath] = sourceBinding{adapter: adapter, raw: byPath[dv.ObjectPath]}
		d.priorSampled[dv.ObjectPath] = time.Now()
		ch := d.reg.Add(dv)
		d.sched.Upsert(dv.ObjectPath, backend.RefreshInterval(dv.Kind, false), defaultScheduleJitter)
		d.publishChange(ch, true)
	}

	sink := make(chan source.Event, 16)
	sub, err := adapter.Subscribe(ctx, sink)
	if err == source.ErrChangeEventsUnavailable {
		// Polling-only adapter: the scheduler cadence above is its only
		// change-detection mechanism (spec §4.1).
		return nil
	}
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = sub.Close()
	}()
	go func() {
		for ev := range sink {
			select {
			case d.events <- boundEvent{adapter: adapter, event: ev}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// RequestRefresh forces an immediate refresh of objectPath, used by the
// bus-facing per-device Refresh() method. The refresh itself runs on the
// daemon's own goroutine to preserve the single-writer registry
// invariant (spec §5).
func (d *Daemon) RequestRefresh(ctx context.Context, objectPath string) error {
	req := refreshRequest{objectPath: objectPath, done: make(chan error, 1)}
	select {
	case d.ctrl <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry exposes the read side for busiface (EnumerateDevices,
// GetDisplayDevice, property reads); only Run's goroutine mutates it.
func (d *Daemon) Registry() *Registry { return d.reg }

// Scheduler exposes the refresh scheduler so main can run its Run loop
// alongside the Daemon's own (spec §4.3); the scheduler only ever talks
// back to the Daemon over schedOut, so running it on its own goroutine
// never threatens the single-writer registry invariant (spec §5).
func (d *Daemon) Scheduler() *backend.Scheduler { return d.sched }

// Run drives the event loop until ctx is cancelled. Call AddAdapter for
// every native source before Run, then run Run and the Scheduler's Run
// concurrently.
func (d *Daemon) Run(ctx context.Context) {
	d.ready = true
	d.recomputeGlobalAndPublish(true)
	d.conn.Publish(d.conn.NewMessage(bus.T("upower", "state"), "ready", true))

	for {
		select {
		case <-ctx.Done():
			for _, a := range d.adapters {
				_ = a.Close()
			}
			d.conn.Publish(d.conn.NewMessage(bus.T("upower", "state"), "stopped", true))
			return

		case ev := <-d.events:
			d.handleSourceEvent(ctx, ev)

		case req := <-d.schedOut:
			d.handleScheduledRefresh(ctx, req)

		case qx := <-d.quarExpiry:
			d.handleQuarantineExpiry(qx)

		case req := <-d.ctrl:
			req.done <- d.refreshOne(ctx, req.objectPath)
		}
	}
}

func (d *Daemon) handleSourceEvent(ctx context.Context, ev boundEvent) {
	src := ev.event.Source
	objectPath := device.ObjectPath(src.Kind, src.NativePath)

	switch ev.event.Type {
	case source.EventAdd:
		if prior, ok := d.quarantine.Resurrect(src.ID); ok {
			d.bindings[objectPath] = sourceBinding{adapter: ev.adapter, raw: src}
			d.sched.Upsert(objectPath, backend.RefreshInterval(prior.Kind, false), defaultScheduleJitter)
			return
		}
		snap, err := ev.adapter.Refresh(ctx, src)
		if err != nil {
			d.logger.Printf("aggregator: refresh on add %s: %v", objectPath, err)
			return
		}
		dv := device.Normalize(snap, nil, src.Kind, src.NativePath, time.Now().Unix())
		if (dv.Kind == device.KindBattery || dv.Kind == device.KindUPS) && dv.State == device.StateUnknown {
			// Hotplug add with no prior sample: same inference Coldplug
			// applies, against the devices already in the registry
			// (spec §4.2).
			present, online := device.LinePowerStatus(d.reg.LinePower())
			dv.State = device.ResolveInitialState(present, online)
		}
		device.ApplyRate(&dv, device.RateInput{Now: time.Now()})
		d.bindings[objectPath] = sourceBinding{adapter: ev.adapter, raw: src}
		d.priorSampled[objectPath] = time.Now()
		ch := d.reg.Add(dv)
		d.sched.Upsert(objectPath, backend.RefreshInterval(dv.Kind, false), defaultScheduleJitter)
		d.publishChange(ch, true)
		d.recomputeGlobalAndPublish(false)

	case source.EventRemove:
		dv, ok := d.reg.Get(objectPath)
		if !ok {
			return
		}
		if dv.PowerSupply {
			// Only peripherals get the reconnect grace period (spec
			// §4.3): a battery or line-power device disappearing is a
			// real removal (hot-unplugged pack, AC unplugged from the
			// board, not a bus re-enumeration quirk).
			d.finalizeRemoval(objectPath)
			return
		}
		d.sched.Stop(objectPath)
		delete(d.bindings, objectPath)
		delete(d.priorSampled, objectPath)
		delete(d.transitionDeadline, objectPath)
		d.quarantine.Hold(src.ID, dv)

	case source.EventChange:
		d.refreshFrom(ctx, ev.adapter, src, objectPath, false)
		d.sched.BumpAfter(objectPath, time.Now())
	}
}

func (d *Daemon) handleScheduledRefresh(ctx context.Context, req backend.RefreshReq) {
	b, ok := d.bindings[req.ObjectPath]
	if !ok {
		return
	}
	d.refreshFrom(ctx, b.adapter, b.raw, req.ObjectPath, false)
}

func (d *Daemon) handleQuarantineExpiry(qx quarantineExpiry) {
	d.finalizeRemoval(qx.device.ObjectPath)
}

func (d *Daemon) finalizeRemoval(objectPath string) {
	d.sched.Stop(objectPath)
	delete(d.bindings, objectPath)
	delete(d.priorSampled, objectPath)
	delete(d.transitionDeadline, objectPath)
	ch, ok := d.reg.Remove(objectPath)
	if !ok {
		return
	}
	d.publishChange(ch, true)
	d.recomputeGlobalAndPublish(false)
}

// refreshOne is RequestRefresh's synchronous implementation, run on the
// Daemon goroutine.
func (d *Daemon) refreshOne(ctx context.Context, objectPath string) error {
	b, ok := d.bindings[objectPath]
	if !ok {
		return source.ErrChangeEventsUnavailable
	}
	return d.refreshFrom(ctx, b.adapter, b.raw, objectPath, true)
}

func (d *Daemon) refreshFrom(ctx context.Context, adapter source.Adapter, src source.RawSource, objectPath string, forceImmediate bool) error {
	snap, err := adapter.Refresh(ctx, src)
	if err != nil {
		return err
	}
	prior, hadPrior := d.reg.Get(objectPath)
	var priorPtr *device.Device
	if hadPrior {
		priorPtr = &prior
	}
	dv := device.Normalize(snap, priorPtr, src.Kind, src.NativePath, time.Now().Unix())

	in := device.RateInput{Now: time.Now()}
	if hadPrior {
		in.Prior = &prior
		in.PriorSampled = d.priorSampled[objectPath]
	}
	device.ApplyRate(&dv, in)
	d.priorSampled[objectPath] = time.Now()

	ch := d.reg.Update(dv)

	switch {
	case hadPrior && prior.State != dv.State:
		// A state transition just happened: poll faster for a while so
		// the rate estimate converges (spec §4.3), then revert once
		// PostTransitionWindow has passed.
		d.transitionDeadline[objectPath] = time.Now().Add(backend.PostTransitionWindow)
		d.sched.Upsert(objectPath, backend.RefreshInterval(dv.Kind, true), defaultScheduleJitter)
	case d.transitionWindowElapsed(objectPath):
		delete(d.transitionDeadline, objectPath)
		d.sched.Upsert(objectPath, backend.RefreshInterval(dv.Kind, false), defaultScheduleJitter)
	}

	d.publishChange(ch, forceImmediate)
	d.recomputeGlobalAndPublish(false)
	return nil
}

// transitionWindowElapsed reports whether objectPath was bumped to the
// post-transition cadence and PostTransitionWindow has since passed,
// so refreshFrom can revert it to its normal cadence (spec §4.3).
func (d *Daemon) transitionWindowElapsed(objectPath string) bool {
	deadline, ok := d.transitionDeadline[objectPath]
	return ok && !time.Now().Before(deadline)
}

// publishChange emits spec §4.4's minimal property-change signal set: a
// one-shot device_added/device_removed manager signal plus a retained
// per-device state message, coalesced to at most one retained publish
// per propertyCoalesceWindow unless immediate is requested (new device,
// explicit Refresh() call, or removal).
func (d *Daemon) publishChange(ch Change, immediate bool) {
	if ch.Removed {
		d.conn.Publish(d.conn.NewMessage(bus.T("upower", "manager", "device_removed"), ch.ObjectPath, false))
		d.conn.Publish(d.conn.NewMessage(bus.T("upower", "device", ch.ObjectPath), nil, true))
		delete(d.lastEmit, ch.ObjectPath)
		return
	}

	last, seen := d.lastEmit[ch.ObjectPath]
	if !seen {
		d.conn.Publish(d.conn.NewMessage(bus.T("upower", "manager", "device_added"), ch.ObjectPath, false))
	}
	now := time.Now()
	if immediate || !seen || now.Sub(last) >= propertyCoalesceWindow {
		d.conn.Publish(d.conn.NewMessage(bus.T("upower", "device", ch.ObjectPath), ch.Device, true))
		d.lastEmit[ch.ObjectPath] = now
	}
}

// recomputeGlobalAndPublish recomputes OnBattery and the display device
// after any registry mutation and republishes both, subject to the same
// coalescing window keyed by two reserved pseudo object-paths.
func (d *Daemon) recomputeGlobalAndPublish(immediate bool) {
	batteries := d.reg.Batteries()
	linePower := d.reg.LinePower()

	onBattery := OnBattery(batteries, linePower)
	display := SynthesizeDisplayDevice(batteries, d.reg.Warnings())

	now := time.Now()
	if last, seen := d.lastEmit["\x00onbattery"]; immediate || !seen || now.Sub(last) >= propertyCoalesceWindow {
		d.conn.Publish(d.conn.NewMessage(bus.T("upower", "onbattery"), onBattery, true))
		d.lastEmit["\x00onbattery"] = now
	}
	if last, seen := d.lastEmit["\x00display"]; immediate || !seen || now.Sub(last) >= propertyCoalesceWindow {
		d.conn.Publish(d.conn.NewMessage(bus.T("upower", "display"), display, true))
		d.lastEmit["\x00display"] = now
	}
}
