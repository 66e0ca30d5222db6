package history

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"upowerd/x/mathx"
)

type seriesKey struct {
	objectPath string
	kind       SeriesKind
}

type series struct {
	mem           *ring
	lastPersisted time.Time
}

// Store owns every device's history rings and their persisted files
// under dir (spec §4.6/§6). Rings are owned by the store; the flush
// worker reads a copy-out snapshot per spec §5's "Shared resources"
// rule, never the live ring, so a concurrent Append never races a flush.
type Store struct {
	mu     sync.Mutex
	dir    string
	series map[seriesKey]*series
	dirty  map[seriesKey][]Sample
}

// NewStore builds a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: mkdir %s: %w", dir, err)
		}
	}
	return &Store{
		dir:    dir,
		series: map[seriesKey]*series{},
		dirty:  map[seriesKey][]Sample{},
	}, nil
}

// Append records one sample for (objectPath, kind), both into the
// in-memory ring and into the pending-flush buffer (spec §4.6: "write
// cadence: one sample per refresh tick while the device is present").
func (s *Store) Append(objectPath string, kind SeriesKind, sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey{objectPath: objectPath, kind: kind}
	sr, ok := s.series[key]
	if !ok {
		sr = &series{mem: newRing()}
		s.series[key] = sr
	}
	sr.mem.append(sample)

	if sr.lastPersisted.IsZero() || time.Unix(sample.Timestamp, 0).Sub(sr.lastPersisted) >= PersistedSampleInterval {
		s.dirty[key] = append(s.dirty[key], sample)
		sr.lastPersisted = time.Unix(sample.Timestamp, 0)
	}
}

// Flush writes every pending sample to its series file, append-only, and
// fsyncs it (spec §5's shutdown guarantee: "history store to flush and
// fsync pending files"). Call on a periodic timer and once more on
// shutdown.
func (s *Store) Flush() error {
	s.mu.Lock()
	pending := s.dirty
	s.dirty = map[seriesKey][]Sample{}
	s.mu.Unlock()

	if s.dir == "" {
		return nil // in-memory-only mode (empty history dir, as in tests)
	}

	for key, samples := range pending {
		if len(samples) == 0 {
			continue
		}
		if err := s.flushOne(key, samples); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) flushOne(key seriesKey, samples []Sample) error {
	path := s.filePath(key)
	if err := rotateIfOversize(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("history: open %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, sm := range samples {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\n", sm.Timestamp, formatValue(sm.Value), sm.StateTag); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

func rotateIfOversize(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return nil // doesn't exist yet
	}
	if fi.Size() < maxFileBytes {
		return nil
	}
	return os.Truncate(path, 0)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// filePath names a series file history-<kind>-<hash>.dat under dir,
// where hash is a stable digest of the device's object_path (spec §6:
// "one file per (device-identity-hash, series-kind)").
func (s *Store) filePath(key seriesKey) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key.objectPath))
	return filepath.Join(s.dir, fmt.Sprintf("history-%s-%x.dat", key.kind, h.Sum64()))
}

// GetHistory returns spec §4.7's GetHistory(type, timespan, resolution):
// up to resolution points from the last timespan, merged from the
// in-memory ring and the persisted file and reduced by downsample. The
// spacing between returned points is not bounded below by
// timespan/resolution.
func (s *Store) GetHistory(objectPath string, kind SeriesKind, timespan time.Duration, resolution int) ([]Sample, error) {
	if resolution <= 0 {
		resolution = 1
	}
	cutoff := time.Now().Add(-timespan).Unix()

	s.mu.Lock()
	var mem []Sample
	if sr, ok := s.series[seriesKey{objectPath: objectPath, kind: kind}]; ok {
		mem = sr.mem.snapshot()
	}
	s.mu.Unlock()

	persisted, err := s.readPersisted(seriesKey{objectPath: objectPath, kind: kind}, cutoff)
	if err != nil {
		return nil, err
	}

	merged := mergeByTimestamp(persisted, mem, cutoff)
	return downsample(merged, uint(resolution)), nil
}

func (s *Store) readPersisted(key seriesKey, cutoff int64) ([]Sample, error) {
	if s.dir == "" {
		return nil, nil
	}
	path := s.filePath(key)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	defer f.Close()

	var out []Sample
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		sm, ok := parseLine(sc.Text())
		if ok && sm.Timestamp >= cutoff {
			out = append(out, sm)
		}
	}
	return out, sc.Err()
}

func parseLine(line string) (Sample, bool) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) != 3 {
		return Sample{}, false
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Sample{}, false
	}
	v, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Sample{}, false
	}
	return Sample{Timestamp: ts, Value: v, StateTag: parts[2]}, true
}

func mergeByTimestamp(persisted, mem []Sample, cutoff int64) []Sample {
	out := make([]Sample, 0, len(persisted)+len(mem))
	for _, sm := range persisted {
		out = append(out, sm)
	}
	for _, sm := range mem {
		if sm.Timestamp >= cutoff {
			out = append(out, sm)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Timestamp > out[j].Timestamp; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// downsample buckets points into resolution evenly-spaced groups (by
// index, since samples are already in non-decreasing timestamp order)
// and keeps one representative (the bucket's last sample) per group.
// Buckets are counted in samples, not seconds: with evenly spaced
// samples the kept points are at least span/resolution apart, with
// unevenly spaced samples no minimum spacing holds, and at or under
// resolution points every sample is returned unchanged.
func downsample(points []Sample, resolution uint) []Sample {
	if uint(len(points)) <= resolution || resolution == 0 {
		return points
	}
	bucketSize := mathx.CeilDiv(uint(len(points)), resolution)
	out := make([]Sample, 0, resolution)
	for i := uint(0); i < uint(len(points)); i += bucketSize {
		end := i + bucketSize
		if end > uint(len(points)) {
			end = uint(len(points))
		}
		out = append(out, points[end-1])
	}
	return out
}

// GetStatistics implements spec §4.7's GetStatistics(type): the series'
// samples binned into 21 percentage buckets (0,5,...,100), each bucket's
// value the average sample value observed in it and its accuracy the
// bucket's sample count relative to the fullest bucket.
func (s *Store) GetStatistics(objectPath string, kind SeriesKind) ([]Statistic, error) {
	samples, err := s.GetHistory(objectPath, SeriesCharge, PersistedRetention, 1<<20)
	if err != nil {
		return nil, err
	}
	values, err := s.GetHistory(objectPath, kind, PersistedRetention, 1<<20)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 || len(values) == 0 {
		return nil, nil
	}

	const buckets = 21
	sums := make([]float64, buckets)
	counts := make([]int, buckets)
	for i, chg := range samples {
		if i >= len(values) {
			break
		}
		b := bucketOf(chg.Value, buckets)
		sums[b] += values[i].Value
		counts[b]++
	}

	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount == 0 {
		return nil, nil
	}

	out := make([]Statistic, 0, buckets)
	for b := 0; b < buckets; b++ {
		if counts[b] == 0 {
			continue
		}
		out = append(out, Statistic{
			Value:    sums[b] / float64(counts[b]),
			Accuracy: float64(counts[b]) / float64(maxCount),
		})
	}
	return out, nil
}

func bucketOf(percentage float64, buckets int) int {
	b := int(percentage / (100.0 / float64(buckets-1)))
	if b < 0 {
		b = 0
	}
	if b >= buckets {
		b = buckets - 1
	}
	return b
}
