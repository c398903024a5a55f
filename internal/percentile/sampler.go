package percentile

import "math/rand/v2"

// Sampler decides, independently per request, whether a given latency
// sample should be recorded, at a configured global sampling rate R ∈ [1,100].
type Sampler struct {
	rate int // percent, 1..100
}

// NewSampler clamps rate into [1,100].
func NewSampler(rate int) Sampler {
	if rate < 1 {
		rate = 1
	}
	if rate > 100 {
		rate = 100
	}
	return Sampler{rate: rate}
}

// ShouldSample returns true with probability rate/100.
func (s Sampler) ShouldSample() bool {
	if s.rate >= 100 {
		return true
	}
	return rand.IntN(100) < s.rate
}
