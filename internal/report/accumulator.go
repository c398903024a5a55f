// Package report accumulates run-level counters (atomic totals plus
// sync.Map-keyed breakdowns by error category and scenario) and renders
// the fixed-column text summary from them. Latency distributions live
// in internal/percentile, not here, so no histogram is duplicated.
package report

import (
	"sync"
	"sync/atomic"
	"time"
)

// Accumulator tracks total/success/failure counts, per-category error
// counts, and per-scenario request counts for the run's final summary.
// Percentile distributions live in percentile.Store instead; Accumulator
// only owns the counts a histogram can't answer (success rate, error
// taxonomy, throughput).
type Accumulator struct {
	start time.Time

	total   atomic.Int64
	success atomic.Int64
	fail    atomic.Int64

	errorsByCategory sync.Map // category string -> *atomic.Int64
	scenarioRequests sync.Map // scenario name -> *atomic.Int64
}

// NewAccumulator starts the clock used for throughput calculations.
func NewAccumulator() *Accumulator {
	return &Accumulator{start: time.Now()}
}

// Record registers one non-cache-hit step outcome. category is the empty
// string on success.
func (a *Accumulator) Record(scenarioName string, success bool, category string) {
	a.total.Add(1)
	if success {
		a.success.Add(1)
	} else {
		a.fail.Add(1)
		if category != "" {
			counterFor(&a.errorsByCategory, category).Add(1)
		}
	}
	counterFor(&a.scenarioRequests, scenarioName).Add(1)
}

func counterFor(m *sync.Map, key string) *atomic.Int64 {
	v, _ := m.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// Snapshot is a point-in-time, race-free copy of the accumulator's state.
type Snapshot struct {
	Total          int64
	Success        int64
	Failure        int64
	SuccessRate    float64
	Elapsed        time.Duration
	ErrorsByCat    map[string]int64
	ScenarioCounts map[string]int64
}

// Snapshot copies out the current counters. Throughput per scenario is
// ScenarioCounts[name] / Elapsed.Seconds(), left to the caller so it can
// render in whatever units it needs.
func (a *Accumulator) Snapshot() Snapshot {
	s := Snapshot{
		Total:       a.total.Load(),
		Success:     a.success.Load(),
		Failure:     a.fail.Load(),
		Elapsed:     time.Since(a.start),
		ErrorsByCat: make(map[string]int64),
		ScenarioCounts: make(map[string]int64),
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Success) / float64(s.Total) * 100
	}
	a.errorsByCategory.Range(func(k, v any) bool {
		s.ErrorsByCat[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	a.scenarioRequests.Range(func(k, v any) bool {
		s.ScenarioCounts[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return s
}
