package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sayl/loadgen/internal/executor"
	"github.com/sayl/loadgen/internal/scenario"
	"github.com/sayl/loadgen/internal/shaper"
)

func TestSelectorRoundRobinCyclesInOrder(t *testing.T) {
	scenarios := []*scenario.Scenario{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	sel := NewSelector(RoundRobin, scenarios)

	var seen []string
	for i := 0; i < 6; i++ {
		seen = append(seen, sel.Next().Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, seen)
}

func TestSelectorWeightedRandomRespectsZeroTotalWeight(t *testing.T) {
	scenarios := []*scenario.Scenario{{Name: "only"}}
	sel := NewSelector(WeightedRandom, scenarios)
	assert.Equal(t, "only", sel.Next().Name)
}

func TestSelectorWeightedRandomDistribution(t *testing.T) {
	scenarios := []*scenario.Scenario{{Name: "heavy", Weight: 9}, {Name: "light", Weight: 1}}
	sel := NewSelector(WeightedRandom, scenarios)

	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		counts[sel.Next().Name]++
	}
	assert.Greater(t, counts["heavy"], counts["light"]*3)
}

func TestPoolRunDrainsOnStop(t *testing.T) {
	sc := &scenario.Scenario{Name: "noop", Weight: 1}
	exec := &executor.Executor{BaseURL: "http://example.invalid"}

	pool := &Pool{
		Count:    2,
		Executor: exec,
		Selector: NewSelector(RoundRobin, []*scenario.Scenario{sc}),
		Target:   Target{Model: shaper.Model{Kind: shaper.Concurrent}},
	}

	done := make(chan struct{})
	go func() {
		pool.Run(context.Background())
		close(done)
	}()

	// Give workers a moment to start looping, then stop the pool.
	time.Sleep(20 * time.Millisecond)
	pool.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not drain after Stop")
	}

	assert.Greater(t, pool.CompletedIterations(), int64(0))
}

func TestPoolRunRespectsContextCancellation(t *testing.T) {
	sc := &scenario.Scenario{Name: "noop", Weight: 1}
	exec := &executor.Executor{BaseURL: "http://example.invalid"}

	pool := &Pool{
		Count:    1,
		Executor: exec,
		Selector: NewSelector(RoundRobin, []*scenario.Scenario{sc}),
		Target:   Target{Model: shaper.Model{Kind: shaper.Concurrent}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not exit after context cancellation")
	}
}

func TestPoolStopIsIdempotent(t *testing.T) {
	pool := &Pool{}
	pool.stop = make(chan struct{})
	assert.NotPanics(t, func() {
		pool.Stop()
		pool.Stop()
	})
}

func TestPoolRunPacesUnderRpsModel(t *testing.T) {
	sc := &scenario.Scenario{Name: "noop", Weight: 1}
	exec := &executor.Executor{BaseURL: "http://example.invalid"}

	pool := &Pool{
		Count:    1,
		Executor: exec,
		Selector: NewSelector(RoundRobin, []*scenario.Scenario{sc}),
		Target:   Target{Model: shaper.Model{Kind: shaper.Rps, Target: 10}, Duration: time.Second},
	}

	done := make(chan struct{})
	go func() {
		pool.Run(context.Background())
		close(done)
	}()

	time.Sleep(220 * time.Millisecond)
	pool.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not drain after Stop")
	}

	// 10 rps with a burst of 1 means roughly one iteration per 100ms;
	// 220ms should allow a handful but nowhere near a tight busy loop.
	assert.Less(t, pool.CompletedIterations(), int64(10))
}

func TestPerWorkerLimitMatchesConcurrentAndRpsModels(t *testing.T) {
	concurrent := &Pool{Count: 4, Target: Target{Model: shaper.Model{Kind: shaper.Concurrent}}}
	assert.Equal(t, rate.Inf, concurrent.perWorkerLimit(0))

	rps := &Pool{Count: 4, Target: Target{Model: shaper.Model{Kind: shaper.Rps, Target: 100}}}
	assert.Equal(t, rate.Limit(25), rps.perWorkerLimit(0))

	zeroWorkers := &Pool{Count: 0, Target: Target{Model: shaper.Model{Kind: shaper.Rps, Target: 100}}}
	assert.Equal(t, rate.Inf, zeroWorkers.perWorkerLimit(0))
}

func TestPoolWaitBlocksUntilWorkersExit(t *testing.T) {
	sc := &scenario.Scenario{Name: "noop", Weight: 1}
	exec := &executor.Executor{BaseURL: "http://example.invalid"}

	pool := &Pool{
		Count:    1,
		Executor: exec,
		Selector: NewSelector(RoundRobin, []*scenario.Scenario{sc}),
		Target:   Target{Model: shaper.Model{Kind: shaper.Concurrent}},
	}

	var started atomic.Bool
	go func() {
		started.Store(true)
		pool.Run(context.Background())
	}()

	require.Eventually(t, started.Load, time.Second, time.Millisecond)
	pool.Stop()
	pool.Wait()
}
