// Package worker implements the N-worker pool: concurrent drivers
// sharing one HTTP client, each with its own session store, selecting
// scenarios by weight or round robin, paced by the load shaper, and
// draining cleanly on a stop signal. One goroutine per worker, a
// per-worker Context reused across iterations, and a select-on-ctx.Done
// loop carry the
// Scenario/Executor abstraction instead of a single hardcoded step
// chain. Pacing runs through one golang.org/x/time/rate.Limiter per
// worker, retargeted once a second from the shaper's current RPS target,
// the same primitive the shared-limiter stage-ramp pattern is built on.
package worker

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/sayl/loadgen/internal/executor"
	"github.com/sayl/loadgen/internal/scenario"
	"github.com/sayl/loadgen/internal/shaper"
)

// SelectionPolicy is the closed variant of scenario-selection disciplines.
type SelectionPolicy int

const (
	WeightedRandom SelectionPolicy = iota
	RoundRobin
)

// Selector picks the next scenario to run. It is safe for concurrent use
// by multiple workers sharing a fleet-wide round-robin counter.
type Selector struct {
	policy    SelectionPolicy
	scenarios []*scenario.Scenario
	totalW    float64
	counter   uint64 // round-robin fleet-wide cursor
}

// NewSelector builds a Selector over scenarios. scenarios must be
// non-empty and already Validate()-d (weights positive and finite).
func NewSelector(policy SelectionPolicy, scenarios []*scenario.Scenario) *Selector {
	s := &Selector{policy: policy, scenarios: scenarios}
	for _, sc := range scenarios {
		s.totalW += sc.Weight
	}
	return s
}

// Next returns the next scenario per the selector's policy.
func (s *Selector) Next() *scenario.Scenario {
	switch s.policy {
	case RoundRobin:
		idx := atomic.AddUint64(&s.counter, 1) - 1
		return s.scenarios[int(idx)%len(s.scenarios)]
	default:
		return s.weightedPick()
	}
}

func (s *Selector) weightedPick() *scenario.Scenario {
	if s.totalW <= 0 {
		return s.scenarios[rand.IntN(len(s.scenarios))]
	}
	r := rand.Float64() * s.totalW
	var acc float64
	for _, sc := range s.scenarios {
		acc += sc.Weight
		if r < acc {
			return sc
		}
	}
	return s.scenarios[len(s.scenarios)-1]
}

// Target gives the shaper's load model and overall test duration; the
// pool asks it for the current global RPS target as test time elapses.
type Target struct {
	Model    shaper.Model
	Duration time.Duration
}

// Pool runs N workers against scenarios, sharing one HTTP client, until
// Stop is called or the parent context is cancelled. On Stop each worker
// finishes its current iteration before exiting: workers never see a
// half-applied reconfiguration and are never interrupted mid-request.
// Cancelling the parent context also cancels in-flight requests, since
// Execute runs on that context.
type Pool struct {
	Count    int
	Executor *executor.Executor
	Selector *Selector
	Target   Target

	started  time.Time
	stop     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	limiters []*rate.Limiter // one per worker, retargeted by retarget()

	// completedIterations is exposed for throughput accounting by callers
	// that want a cheap read without going through the metrics registry.
	completedIterations atomic.Int64
}

// Run spawns Count workers and blocks until they have all drained. Workers
// exit when ctx is cancelled or Stop is called, whichever comes first.
func (p *Pool) Run(ctx context.Context) {
	p.stop = make(chan struct{})
	p.started = time.Now()

	// waitCtx cancels a worker blocked in limiter.Wait as soon as Stop is
	// called, without touching ctx itself: Execute always runs to
	// completion on the unmodified ctx, only pacing is interruptible.
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	p.limiters = make([]*rate.Limiter, p.Count)
	initial := p.perWorkerLimit(0)
	for i := range p.limiters {
		p.limiters[i] = rate.NewLimiter(initial, 1)
	}
	go p.retarget(waitCtx)

	for i := 0; i < p.Count; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, waitCtx, i)
	}
	p.wg.Wait()
}

// retarget reconfigures every worker's limiter once a second to track the
// shaper's current RPS target, mirroring the teacher's stage-ramp ticker
// that calls limiter.SetLimit as the test progresses.
func (p *Pool) retarget(waitCtx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-waitCtx.Done():
			return
		case <-ticker.C:
			limit := p.perWorkerLimit(time.Since(p.started))
			for _, l := range p.limiters {
				l.SetLimit(limit)
			}
		}
	}
}

// perWorkerLimit converts the shaper's global target at elapsed into the
// per-worker rate.Limit. Concurrent mode (an infinite global target) and a
// non-positive per-worker share both map to rate.Inf, preserving the "no
// pacing" behavior Concurrent mode and a zero worker count always had.
func (p *Pool) perWorkerLimit(elapsed time.Duration) rate.Limit {
	target := p.Target.Model.CurrentTarget(elapsed, p.Target.Duration)
	if p.Count <= 0 || math.IsInf(target, 1) {
		return rate.Inf
	}
	perWorker := target / float64(p.Count)
	if perWorker <= 0 {
		return rate.Inf
	}
	return rate.Limit(perWorker)
}

// Stop signals every worker to exit after its in-flight iteration. Safe
// to call multiple times and safe to call before Run's goroutines start
// (the channel send is never blocking here since stop is only closed).
func (p *Pool) Stop() {
	p.once.Do(func() {
		if p.stop != nil {
			close(p.stop)
		}
	})
}

// Wait blocks until every worker has exited. Equivalent to the blocking
// portion of Run for callers that started Run in a separate goroutine.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// CompletedIterations returns the number of scenario iterations finished
// (successfully or not) across the whole pool so far.
func (p *Pool) CompletedIterations() int64 {
	return p.completedIterations.Load()
}

func (p *Pool) runWorker(ctx, waitCtx context.Context, id int) {
	defer p.wg.Done()

	session := scenario.NewSession()
	var sctx *scenario.Context

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		default:
		}

		sc := p.Selector.Next()

		sctx = scenario.NewContext(sctx)
		if sc.Data != nil {
			if row := sc.Data.Next(); row != nil {
				sctx.LoadRow(row)
			}
		}

		p.Executor.Execute(ctx, sc, sctx, session)
		p.completedIterations.Add(1)

		p.pace(waitCtx, id)
	}
}

// pace blocks on this worker's rate.Limiter until it is next allowed to
// start a request. Under the Concurrent model the limiter is set to
// rate.Inf and Wait returns immediately; workers back-to-back requests
// for that model. waitCtx is cancelled as soon as Stop is called, so a
// worker parked here wakes up promptly instead of riding out its wait.
func (p *Pool) pace(waitCtx context.Context, id int) {
	_ = p.limiters[id].Wait(waitCtx)
}
