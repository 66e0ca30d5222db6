// Package history implements the per-device history and statistics
// store (spec §4.6): a bounded in-memory ring per series plus periodic
// flush to a per-device append-only file, downsampled on read.
package history

import "time"

// SeriesKind names one of the four per-device series spec §4.6 tracks.
type SeriesKind string

const (
	SeriesRate      SeriesKind = "rate"
	SeriesCharge    SeriesKind = "charge"
	SeriesTimeFull  SeriesKind = "time-full"
	SeriesTimeEmpty SeriesKind = "time-empty"
)

// Sample is one history record: (unix_seconds, value, state_tag), spec
// §4.6/§6's persisted record shape.
type Sample struct {
	Timestamp int64
	Value     float64
	StateTag  string
}

// Statistic is one GetStatistics(type) point (spec §4.7): a value bucket
// plus how many samples contributed to it relative to the fullest
// bucket, ranging (0, 1].
type Statistic struct {
	Value    float64
	Accuracy float64
}

// InMemoryWindow is spec §4.6's "10 minutes at 1 Hz-equivalent
// resolution" in-memory retention window.
const InMemoryWindow = 10 * time.Minute

// PersistedSampleInterval is the downsample cadence applied before a
// sample is written to the persisted file (spec §4.6: "downsampled to 1
// sample per 2 minutes").
const PersistedSampleInterval = 2 * time.Minute

// PersistedRetention is the maximum age of a persisted record (spec
// §4.6: "capped at 7 days per series").
const PersistedRetention = 7 * 24 * time.Hour

// maxFileBytes triggers truncate-based rotation (spec §6: "rotation by
// truncation when size exceeds a configurable cap").
const maxFileBytes = 1 << 20 // 1 MiB per series file
