package aggregator

import (
	"testing"
	"time"

	"upowerd/bus"
	"upowerd/internal/warning"
)

// TestDaemon_TransitionWindowReverts exercises spec §4.3's "temporarily
// ... for 2 minutes" post-transition cadence: a device bumped to the
// fast cadence on transition must be reported as due for reversion once
// PostTransitionWindow has elapsed, not stay flagged forever.
func TestDaemon_TransitionWindowReverts(t *testing.T) {
	b := bus.NewBus(4)
	conn := b.NewConnection("test")
	d := NewDaemon(conn, warning.DefaultThresholds(), nil)

	const objectPath = "/dev/bat0"

	if d.transitionWindowElapsed(objectPath) {
		t.Fatal("no transition recorded yet; should not report elapsed")
	}

	d.transitionDeadline[objectPath] = time.Now().Add(time.Hour)
	if d.transitionWindowElapsed(objectPath) {
		t.Fatal("deadline an hour out should not be elapsed")
	}

	d.transitionDeadline[objectPath] = time.Now().Add(-time.Second)
	if !d.transitionWindowElapsed(objectPath) {
		t.Fatal("deadline in the past should be elapsed")
	}
}
