// Package percentile implements per-label HDR histograms with LRU-bounded
// label cardinality and periodic rotation. Three instances are
// constructed by the supervisor: global request latencies
// (unlabeled), per-scenario latencies, and per-step latencies keyed by
// "scenario:step".
package percentile

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minValueMicros int64 = 1           // 1µs
	maxValueMicros int64 = 60_000_000  // 60s
	sigDigits      int   = 3
)

// Stats is a point-in-time snapshot of one label's latency distribution,
// in microseconds.
type Stats struct {
	Count   int64
	Min     int64
	Max     int64
	Mean    float64
	P50     int64
	P90     int64
	P95     int64
	P99     int64
	P999    int64
}

type entry struct {
	label string
	hist  *hdrhistogram.Histogram
	elem  *list.Element // position in the LRU list
}

// Store is a bounded, mutex-guarded map of label -> HDR histogram with
// least-recently-used eviction. Lock scope covers only map/list
// operations, never the sampling decision.
type Store struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*entry
	lru      *list.List // front = most recently used

	evicted      int64 // atomic: count of labels evicted for capacity
	warnedOnce   int32 // atomic: one-shot 80%-capacity warning fired
	active       int32 // atomic: percentile tracking active flag (1 = active)
	onWarn       func(label string) // called once when crossing 80% capacity
	onEvict      func(label string) // called on every eviction
}

// NewStore creates a Store with the given label-cardinality capacity
// (100 if capacity <= 0).
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 100
	}
	return &Store{
		capacity: capacity,
		entries:  make(map[string]*entry),
		lru:      list.New(),
		active:   1,
	}
}

// SetWarnHook installs a callback fired once per capacity-80% crossing.
func (s *Store) SetWarnHook(f func(label string)) { s.onWarn = f }

// SetEvictHook installs a callback fired on every LRU eviction.
func (s *Store) SetEvictHook(f func(label string)) { s.onEvict = f }

// SetActive toggles whether Record is a no-op — the memory guard's
// "percentile tracking active" flag.
func (s *Store) SetActive(active bool) {
	if active {
		atomic.StoreInt32(&s.active, 1)
	} else {
		atomic.StoreInt32(&s.active, 0)
	}
}

// Active reports the current percentile-tracking-active flag.
func (s *Store) Active() bool { return atomic.LoadInt32(&s.active) == 1 }

// Record appends a latency sample for label. Values outside
// [1µs, 60s] are clamped. A no-op while tracking is inactive.
func (s *Store) Record(label string, d time.Duration) {
	if !s.Active() {
		return
	}
	micros := d.Microseconds()
	if micros < minValueMicros {
		micros = minValueMicros
	}
	if micros > maxValueMicros {
		micros = maxValueMicros
	}

	s.mu.Lock()
	e, ok := s.entries[label]
	if !ok {
		e = s.insertLocked(label)
	} else {
		s.lru.MoveToFront(e.elem)
	}
	h := e.hist
	s.mu.Unlock()

	_ = h.RecordValue(micros)
}

// insertLocked creates a histogram for label, evicting the LRU tail if the
// map is already at capacity. Caller holds s.mu.
func (s *Store) insertLocked(label string) *entry {
	if len(s.entries) >= s.capacity {
		s.evictOneLocked()
	} else if len(s.entries) == (s.capacity*80)/100-1 {
		// The insertion about to happen will cross 80% capacity.
		if atomic.CompareAndSwapInt32(&s.warnedOnce, 0, 1) {
			if s.onWarn != nil {
				s.onWarn(label)
			}
		}
	}

	h := hdrhistogram.New(minValueMicros, maxValueMicros, sigDigits)
	el := s.lru.PushFront(label)
	e := &entry{label: label, hist: h, elem: el}
	s.entries[label] = e
	return e
}

func (s *Store) evictOneLocked() {
	tail := s.lru.Back()
	if tail == nil {
		return
	}
	label := tail.Value.(string)
	s.lru.Remove(tail)
	delete(s.entries, label)
	atomic.AddInt64(&s.evicted, 1)
	if s.onEvict != nil {
		s.onEvict(label)
	}
}

// Stat returns the current distribution for label, or ok=false if no
// samples have been recorded (or the label was evicted).
func (s *Store) Stat(label string) (Stats, bool) {
	s.mu.Lock()
	e, ok := s.entries[label]
	s.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	if e.hist.TotalCount() == 0 {
		return Stats{}, false
	}
	return Stats{
		Count: e.hist.TotalCount(),
		Min:   e.hist.Min(),
		Max:   e.hist.Max(),
		Mean:  e.hist.Mean(),
		P50:   e.hist.ValueAtQuantile(50),
		P90:   e.hist.ValueAtQuantile(90),
		P95:   e.hist.ValueAtQuantile(95),
		P99:   e.hist.ValueAtQuantile(99),
		P999:  e.hist.ValueAtQuantile(99.9),
	}, true
}

// Labels enumerates the currently-tracked labels.
func (s *Store) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for l := range s.entries {
		out = append(out, l)
	}
	return out
}

// EvictedCount returns the running total of LRU evictions.
func (s *Store) EvictedCount() int64 { return atomic.LoadInt64(&s.evicted) }

// Len returns the number of currently-active labels (never exceeds
// capacity).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Rotate clears all sample data but keeps label structure and LRU
// ordering.
func (s *Store) Rotate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.hist.Reset()
	}
}

// ResetAll clears both sample data and label structure.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
	s.lru = list.New()
	atomic.StoreInt32(&s.warnedOnce, 0)
}
