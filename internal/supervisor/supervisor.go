// Package supervisor wires every owned package into one running test:
// metrics, percentile tracking, the memory guard, the run-level
// accumulator, the worker pool, and — when configured — the Raft cluster
// node, its gRPC coordination service, and the service-discovery health
// endpoint. Standalone mode runs the configured scenarios once for
// Config.Duration; cluster mode additionally drains and restarts the
// worker pool whenever a new configuration commits to the replicated log.
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sayl/loadgen/internal/cluster/discovery"
	"github.com/sayl/loadgen/internal/cluster/raftfsm"
	"github.com/sayl/loadgen/internal/cluster/rpc"
	"github.com/sayl/loadgen/internal/executor"
	"github.com/sayl/loadgen/internal/metrics"
	"github.com/sayl/loadgen/internal/percentile"
	"github.com/sayl/loadgen/internal/report"
	"github.com/sayl/loadgen/internal/scenario"
	"github.com/sayl/loadgen/internal/worker"
	"github.com/sayl/loadgen/pkg/config"
)

// abortPollInterval bounds how quickly a tripped circuit breaker drains
// the running pool.
const abortPollInterval = 200 * time.Millisecond

// Supervisor owns the long-lived, process-wide components (metrics
// registry, percentile stores, cluster node) across however many
// worker-pool runs a reconfiguration cycle produces.
type Supervisor struct {
	Config *config.Config

	ReportPath string // defaults to "report.txt" when empty

	reg         *metrics.Registry
	global      *percentile.Store
	perScenario *percentile.Store
	perStep     *percentile.Store
	acc         *report.Accumulator
}

// New builds a Supervisor for cfg. Call Run to start the test.
func New(cfg *config.Config) *Supervisor {
	return &Supervisor{Config: cfg}
}

// Run blocks until the test completes: ctx is cancelled, Config.Duration
// elapses, or (in cluster mode) the supervisor is told to exit by its
// caller after a drain. It always writes the end-of-test summary before
// returning, even on a cancelled context.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg := s.Config

	s.reg = metrics.NewRegistry()
	s.global = percentile.NewStore(cfg.LabelCapacity)
	s.perScenario = percentile.NewStore(cfg.LabelCapacity)
	s.perStep = percentile.NewStore(cfg.LabelCapacity)
	wireEvictionHooks(s.reg, "global", s.global)
	wireEvictionHooks(s.reg, "scenario", s.perScenario)
	wireEvictionHooks(s.reg, "step", s.perStep)
	s.acc = report.NewAccumulator()

	guard, err := metrics.NewGuard(cfg.GuardConfig, s.reg, s.global, s.perScenario, s.perStep)
	if err != nil {
		return fmt.Errorf("supervisor: memory guard: %w", err)
	}
	go guard.Run(ctx)

	metricsSrv := metrics.NewScrapeServer(cfg.MetricsAddr, s.reg)
	go func() {
		if err := metricsSrv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("metrics scrape server exited")
		}
	}()

	stateTracker := rpc.NewStateTracker()
	stop := make(chan struct{})
	defer close(stop)

	var node *raftfsm.Node
	var notifyCh <-chan raftfsm.Notification

	if cfg.Cluster.Enabled {
		node, err = raftfsm.NewNode(raftfsm.NodeConfig{
			NodeID:   cfg.Cluster.NodeID,
			BindAddr: cfg.Cluster.BindAddr,
			Peers:    cfg.Cluster.Peers,
		})
		if err != nil {
			return fmt.Errorf("supervisor: raft node: %w", err)
		}
		defer node.Shutdown()
		go rpc.WatchRaftState(stateTracker, node, stop)
		go reflectClusterState(ctx, s.reg, cfg.Cluster.NodeID, cfg.Cluster.Region, stateTracker)

		peerPool := discovery.NewPool()
		for _, p := range cfg.Cluster.Peers {
			if p != cfg.Cluster.BindAddr {
				peerPool.Watch(p, stop)
			}
		}

		srv := &rpc.Server{
			NodeID:    cfg.Cluster.NodeID,
			Region:    cfg.Cluster.Region,
			Node:      node,
			State:     stateTracker,
			PeerCount: peerPool.Len,
		}
		listener, err := rpc.NewListener(cfg.Cluster.RPCAddr, srv)
		if err != nil {
			return fmt.Errorf("supervisor: rpc listener: %w", err)
		}
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Error().Err(err).Msg("cluster rpc listener exited")
			}
		}()

		notifyCh = node.Subscribe()
	}

	health := discovery.NewHealthServer(cfg.HealthAddr, cfg.Cluster.NodeID, cfg.Cluster.Region, stateTracker, func() []string {
		return cfg.Cluster.Peers
	})
	go func() {
		if err := health.Run(ctx); err != nil {
			log.Error().Err(err).Msg("cluster health server exited")
		}
	}()

	current := cfg
	for {
		reconfigured, runErr := s.runOnce(ctx, current, notifyCh)
		if runErr != nil {
			return runErr
		}
		if reconfigured == nil {
			break
		}
		log.Info().Msg("applying replicated configuration, draining current run")
		current = reconfigured
	}

	path := s.ReportPath
	if path == "" {
		path = "report.txt"
	}
	return report.GenerateText(s.acc, s.global, s.perScenario, s.perStep, current.Scenarios, path)
}

// runOnce runs one worker-pool generation against cfg until its context is
// done, Config.Duration elapses, the circuit breaker trips, or a new
// configuration commits on notifyCh. It returns the replacement config
// when a reconfiguration interrupted the run, or nil when the run ended
// on its own.
func (s *Supervisor) runOnce(ctx context.Context, cfg *config.Config, notifyCh <-chan raftfsm.Notification) (*config.Config, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.Duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	client := buildHTTPClient(cfg.HTTPClient)
	exec := &executor.Executor{
		BaseURL:     cfg.BaseURL,
		Client:      client,
		Registry:    s.reg,
		Region:      cfg.Cluster.Region,
		Global:      s.global,
		PerScenario: s.perScenario,
		PerStep:     s.perStep,
		Sampler:     percentile.NewSampler(cfg.SamplingRate),
		Accumulator: s.acc,
		Breaker:     cfg.CircuitBreaker,
	}

	scenarios := scenarioPointers(cfg.Scenarios)
	selector := worker.NewSelector(worker.WeightedRandom, scenarios)
	pool := &worker.Pool{
		Count:    cfg.WorkerCount,
		Executor: exec,
		Selector: selector,
		Target:   worker.Target{Model: cfg.Model, Duration: cfg.Duration},
	}

	done := make(chan struct{})
	go func() {
		pool.Run(runCtx)
		close(done)
	}()

	var reconfigured *config.Config
	ticker := time.NewTicker(abortPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return reconfigured, nil
		case n, ok := <-notifyCh:
			if !ok {
				notifyCh = nil
				continue
			}
			next, err := config.Parse([]byte(n.YAML))
			if err != nil {
				log.Warn().Err(err).Str("version", n.Version).Msg("ignoring unparseable replicated configuration")
				continue
			}
			reconfigured = next
			pool.Stop()
		case <-ticker.C:
			if exec.Aborted() {
				log.Warn().Str("reason", cfg.CircuitBreaker.Reason()).Msg("circuit breaker tripped, stopping run")
				pool.Stop()
			}
		}
	}
}

func scenarioPointers(scenarios []scenario.Scenario) []*scenario.Scenario {
	out := make([]*scenario.Scenario, len(scenarios))
	for i := range scenarios {
		out[i] = &scenarios[i]
	}
	return out
}

// wireEvictionHooks connects a percentile.Store's warn/evict callbacks to
// the process-wide eviction counter and a structured log line.
func wireEvictionHooks(reg *metrics.Registry, storeName string, store *percentile.Store) {
	store.SetWarnHook(func(label string) {
		log.Warn().Str("store", storeName).Str("label", label).Msg("percentile store approaching label-cardinality capacity")
	})
	store.SetEvictHook(func(label string) {
		reg.HistogramLabelsEvicted.Inc()
		log.Warn().Str("store", storeName).Str("label", label).Msg("percentile store evicted least-recently-used label")
	})
}

// reflectClusterState keeps the cluster_node_info gauge in sync with the
// node's state-model transitions until ctx is cancelled.
func reflectClusterState(ctx context.Context, reg *metrics.Registry, nodeID, region string, tracker *rpc.StateTracker) {
	ticker := time.NewTicker(abortPollInterval)
	defer ticker.Stop()

	var lastState string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := tracker.Get().String()
			if state == lastState {
				continue
			}
			if lastState != "" {
				reg.ClusterNodeInfo.WithLabelValues(nodeID, region, lastState).Set(0)
			}
			reg.ClusterNodeInfo.WithLabelValues(nodeID, region, state).Set(1)
			lastState = state
		}
	}
}
