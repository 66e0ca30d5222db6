// Package backend drives the per-device refresh cadence, peripheral
// reconnect debounce, and coldplug enumeration sitting between the
// native source adapters and the aggregator (spec §4.3).
package backend

import (
	"container/heap"
	"context"
	"math/rand"
	"sync"
	"time"
)

// RefreshReq is emitted when a scheduled device's refresh comes due.
type RefreshReq struct {
	ObjectPath string
	Every      time.Duration
}

type scheduleItem struct {
	objectPath string
	due        int64
	every      time.Duration
	jitter     time.Duration
	index      int
}

type scheduleHeap []*scheduleItem

func (h scheduleHeap) Len() int           { return len(h) }
func (h scheduleHeap) Less(i, j int) bool { return h[i].due < h[j].due }
func (h scheduleHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *scheduleHeap) Push(x any) {
	it := x.(*scheduleItem)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *scheduleHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	it.index = -1
	*h = old[:n-1]
	return it
}
func (h scheduleHeap) Top() *scheduleItem {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// Scheduler is a heap-based periodic refresh scheduler keyed by object
// path, generalized from the teacher's capability-key Poller (spec
// §4.3's 30s/60s/10s-post-transition cadence table). Jitter spreads
// refreshes so many devices arriving coldplug at once don't all poll in
// lockstep.
type Scheduler struct {
	mu    sync.Mutex
	wake  chan struct{}
	items map[string]*scheduleItem
	h     scheduleHeap
	rand  *rand.Rand
	out   chan<- RefreshReq
}

// NewScheduler builds a Scheduler that emits due refreshes on out.
func NewScheduler(out chan<- RefreshReq, seed int64) *Scheduler {
	return &Scheduler{
		wake:  make(chan struct{}, 1),
		items: make(map[string]*scheduleItem),
		rand:  rand.New(rand.NewSource(seed)),
		out:   out,
	}
}

// Upsert (re)schedules objectPath at the given cadence. The first fire
// occurs after interval plus a random jitter in [0, jitter].
func (s *Scheduler) Upsert(objectPath string, interval, jitter time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	if jitter < 0 {
		jitter = 0
	}
	nextDue := time.Now().Add(s.jittered(interval, jitter)).UnixNano()
	if it := s.items[objectPath]; it == nil {
		it2 := &scheduleItem{objectPath: objectPath, due: nextDue, every: interval, jitter: jitter, index: -1}
		s.items[objectPath] = it2
		heap.Push(&s.h, it2)
	} else {
		it.every = interval
		it.jitter = jitter
		it.due = nextDue
		heap.Fix(&s.h, it.index)
	}
	s.mu.Unlock()
	s.wakeup()
}

// Stop removes objectPath's schedule entirely (device removed).
func (s *Scheduler) Stop(objectPath string) {
	s.mu.Lock()
	if it := s.items[objectPath]; it != nil {
		heap.Remove(&s.h, it.index)
		delete(s.items, objectPath)
	}
	s.mu.Unlock()
	s.wakeup()
}

// BumpAfter re-arms objectPath's next due time relative to lastEmit,
// used after an event-driven refresh so the next scheduled poll doesn't
// fire needlessly soon.
func (s *Scheduler) BumpAfter(objectPath string, lastEmit time.Time) {
	now := time.Now()
	s.mu.Lock()
	if it := s.items[objectPath]; it != nil {
		due := lastEmit.Add(it.every)
		if due.Before(now) {
			due = now
		}
		it.due = due.UnixNano()
		heap.Fix(&s.h, it.index)
	}
	s.mu.Unlock()
	s.wakeup()
}

// Run drives the scheduler until ctx is cancelled. It must run on its
// own goroutine; RefreshReq delivery is the only cross-goroutine
// communication it performs (spec §5: the registry itself is only ever
// touched by the aggregator's main loop).
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := s.nextWait()
		if wait < 0 {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		if wait == 0 {
			var fire *scheduleItem
			s.mu.Lock()
			now := time.Now().UnixNano()
			if top := s.h.Top(); top != nil && top.due <= now {
				fire = heap.Pop(&s.h).(*scheduleItem)
				fire.due = time.Now().Add(s.jittered(fire.every, fire.jitter)).UnixNano()
				heap.Push(&s.h, fire)
			}
			s.mu.Unlock()

			if fire != nil {
				select {
				case s.out <- RefreshReq{ObjectPath: fire.objectPath, Every: fire.every}:
				case <-ctx.Done():
					return
				}
			}
			continue
		}

		timer.Reset(time.Duration(wait))
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			if !timer.Stop() {
				<-timer.C
			}
		case <-timer.C:
		}
	}
}

func (s *Scheduler) nextWait() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	top := s.h.Top()
	if top == nil {
		return -1
	}
	now := time.Now().UnixNano()
	if top.due <= now {
		return 0
	}
	return top.due - now
}

func (s *Scheduler) wakeup() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) jittered(interval, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return interval
	}
	extra := time.Duration(s.rand.Int63n(int64(jitter) + 1))
	return interval + extra
}
