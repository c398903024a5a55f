// Package shaper implements the load models as a closed variant with a
// single CurrentTarget(elapsed, duration) method, plus the per-worker
// pacing built on top of it. The ramp/stage interpolation generalizes a
// single ramp-up into the full model set, expressed as a pure function
// instead of a ticker-driven limiter mutation.
package shaper

import (
	"math"
	"time"
)

// Kind is the closed variant of supported load models.
type Kind int

const (
	Concurrent Kind = iota
	Rps
	Ramp
	DailyTraffic
)

// Phase names a DailyTraffic segment, in cycle order.
type Phase int

const (
	MorningRamp Phase = iota
	PeakSustain
	MidDecline
	MidSustain
	EveningDecline
	NightSustain
)

// DailyPhase pairs a phase with the fraction of the cycle it occupies.
// Ratios across all six phases must sum to <= 1; any remainder is treated
// as an implicit trailing NightSustain segment.
type DailyPhase struct {
	Phase Phase
	Ratio float64
}

// Model is the immutable load-model descriptor. Only the fields relevant
// to Kind are meaningful; Model has no validation of its own, but
// CurrentTarget degrades gracefully on zero ramp/cycle duration (and
// PerWorkerInterval on a zero worker count) instead of dividing by them.
type Model struct {
	Kind Kind

	// Rps
	Target float64

	// Ramp
	RampMin      float64
	RampMax      float64
	RampDuration time.Duration

	// DailyTraffic
	DailyMin          float64
	DailyMid          float64
	DailyMax          float64
	CycleDuration     time.Duration
	Phases            [6]DailyPhase
}

// CurrentTarget returns the instantaneous target RPS for this model at
// elapsed seconds into a test of the given overall duration. Concurrent
// returns +Inf: the shaper imposes no rate cap and the pool size alone
// bounds concurrency.
func (m Model) CurrentTarget(elapsed, duration time.Duration) float64 {
	switch m.Kind {
	case Concurrent:
		return math.Inf(1)
	case Rps:
		return m.Target
	case Ramp:
		return m.rampTarget(elapsed)
	case DailyTraffic:
		return m.dailyTarget(elapsed)
	default:
		return 0
	}
}

// rampTarget implements a three-way partition: linear ramp
// min->max over the first third, sustain max over the middle third,
// linear ramp max->min over the final third, then floor at min.
func (m Model) rampTarget(elapsed time.Duration) float64 {
	if m.RampDuration <= 0 {
		return m.RampMax
	}
	if elapsed >= m.RampDuration {
		return m.RampMin
	}
	if elapsed < 0 {
		elapsed = 0
	}

	third := m.RampDuration / 3
	switch {
	case elapsed < third:
		progress := float64(elapsed) / float64(third)
		return m.RampMin + (m.RampMax-m.RampMin)*progress
	case elapsed < 2*third:
		return m.RampMax
	default:
		remStart := 2 * third
		remDur := m.RampDuration - remStart
		if remDur <= 0 {
			return m.RampMin
		}
		progress := float64(elapsed-remStart) / float64(remDur)
		return m.RampMax - (m.RampMax-m.RampMin)*progress
	}
}

// dailyTarget implements the phase-piecewise-linear DailyTraffic model.
// time_mod_cycle selects the phase; within a ramp phase, linearly
// interpolates between the phase's start and end target.
func (m Model) dailyTarget(elapsed time.Duration) float64 {
	if m.CycleDuration <= 0 {
		return m.DailyMax
	}
	cyclePos := elapsed % m.CycleDuration
	if cyclePos < 0 {
		cyclePos += m.CycleDuration
	}

	phaseStart := time.Duration(0)
	for i, p := range m.Phases {
		phaseDur := time.Duration(float64(m.CycleDuration) * p.Ratio)
		phaseEnd := phaseStart + phaseDur
		if cyclePos < phaseEnd || i == len(m.Phases)-1 {
			var progress float64
			if phaseDur > 0 {
				progress = float64(cyclePos-phaseStart) / float64(phaseDur)
			}
			if progress < 0 {
				progress = 0
			}
			if progress > 1 {
				progress = 1
			}
			return m.phaseTarget(p.Phase, progress)
		}
		phaseStart = phaseEnd
	}
	return m.DailyMin
}

// phaseTarget returns the interpolated target for one named phase at
// progress in [0,1] through that phase.
func (m Model) phaseTarget(phase Phase, progress float64) float64 {
	lerp := func(a, b float64) float64 { return a + (b-a)*progress }
	switch phase {
	case MorningRamp:
		return lerp(m.DailyMin, m.DailyMax)
	case PeakSustain:
		return m.DailyMax
	case MidDecline:
		return lerp(m.DailyMax, m.DailyMid)
	case MidSustain:
		return m.DailyMid
	case EveningDecline:
		return lerp(m.DailyMid, m.DailyMin)
	case NightSustain:
		return m.DailyMin
	default:
		return m.DailyMin
	}
}

// PerWorkerInterval returns the sleep interval a worker should honor
// between request starts to collectively approximate globalRPS across
// workerCount workers. Concurrent mode (infinite target) returns 0,
// meaning workers never sleep for pacing.
func PerWorkerInterval(globalRPS float64, workerCount int) time.Duration {
	if workerCount <= 0 || math.IsInf(globalRPS, 1) || globalRPS <= 0 {
		return 0
	}
	perWorker := globalRPS / float64(workerCount)
	if perWorker <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / perWorker)
}
