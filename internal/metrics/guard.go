package metrics

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/sayl/loadgen/internal/percentile"
)

// GuardConfig configures the memory-pressure guard.
type GuardConfig struct {
	WarningBytes  uint64
	CriticalBytes uint64
	PollInterval  time.Duration
	RotateEvery   time.Duration // 0 disables periodic rotation
}

// DefaultGuardConfig matches the "every few seconds" cadence.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		WarningBytes:  512 * 1024 * 1024,
		CriticalBytes: 1024 * 1024 * 1024,
		PollInterval:  5 * time.Second,
	}
}

// Guard periodically reads process RSS, flips the percentile stores'
// active flag on threshold transitions, and (on a longer interval)
// rotates histograms to bound sample-count growth.
type Guard struct {
	cfg     GuardConfig
	reg     *Registry
	stores  []*percentile.Store
	proc    *process.Process

	warning  bool // latched: currently above warning threshold
	critical bool // latched: currently above critical threshold
}

// NewGuard builds a guard reading this process's own RSS.
func NewGuard(cfg GuardConfig, reg *Registry, stores ...*percentile.Store) (*Guard, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Guard{cfg: cfg, reg: reg, stores: stores, proc: p}, nil
}

// Run polls until ctx is cancelled.
func (g *Guard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.PollInterval)
	defer ticker.Stop()

	var rotateTicker *time.Ticker
	var rotateCh <-chan time.Time
	if g.cfg.RotateEvery > 0 {
		rotateTicker = time.NewTicker(g.cfg.RotateEvery)
		defer rotateTicker.Stop()
		rotateCh = rotateTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.poll()
		case <-rotateCh:
			for _, s := range g.stores {
				s.Rotate()
			}
			log.Info().Msg("percentile histograms rotated")
		}
	}
}

func (g *Guard) poll() {
	mem, err := g.proc.MemoryInfo()
	if err != nil {
		log.Warn().Err(err).Msg("memory guard: failed to read RSS")
		return
	}
	rss := mem.RSS
	g.reg.ProcessMemoryRSS.Set(float64(rss))

	var activeHistograms int
	for _, s := range g.stores {
		activeHistograms += s.Len()
	}
	g.reg.HistogramCount.Set(float64(activeHistograms))
	g.reg.HistogramMemoryEstimate.Set(float64(activeHistograms) * 3 * 1024 * 1024)

	aboveWarning := rss >= g.cfg.WarningBytes
	aboveCritical := rss >= g.cfg.CriticalBytes

	if aboveWarning && !g.warning {
		g.reg.MemoryWarningExceeded.Inc()
		log.Warn().Uint64("rss_bytes", rss).Msg("memory warning threshold exceeded")
	}
	g.warning = aboveWarning

	if aboveCritical && !g.critical {
		g.reg.MemoryCriticalExceeded.Inc()
		for _, s := range g.stores {
			s.SetActive(false)
		}
		g.reg.PercentileTrackingActive.Set(0)
		log.Warn().Uint64("rss_bytes", rss).Msg("memory critical threshold exceeded: percentile tracking disabled")
	} else if !aboveCritical && g.critical {
		for _, s := range g.stores {
			s.SetActive(true)
		}
		g.reg.PercentileTrackingActive.Set(1)
		log.Info().Msg("memory pressure relieved: percentile tracking re-enabled")
	}
	g.critical = aboveCritical
}

// ConfigureLogger sets the package-wide zerolog logger to write leveled,
// structured output to stderr — the discipline every cluster-facing
// component in this repo follows.
func ConfigureLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}
