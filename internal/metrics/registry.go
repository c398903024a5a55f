// Package metrics owns the process-wide Prometheus counters, gauges, and
// histograms named, plus the /metrics scrape server and the
// memory-pressure guard. Metric variables are registered at
// construction time and exposed over HTTP by promhttp.
package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loadgen"

// Registry holds every metric named, scoped to one process.
type Registry struct {
	reg *prometheus.Registry

	RequestsTotal          *prometheus.CounterVec
	RequestsStatusCodes    *prometheus.CounterVec
	ConcurrentRequests     *prometheus.GaugeVec
	RequestDuration        *prometheus.HistogramVec
	RequestErrorsByCat     *prometheus.CounterVec

	ScenarioExecutionsTotal  *prometheus.CounterVec
	ScenarioDuration         *prometheus.HistogramVec
	ScenarioStepsTotal       *prometheus.CounterVec
	ScenarioStepDuration     *prometheus.HistogramVec
	ScenarioStepStatusCodes  *prometheus.CounterVec
	ScenarioAssertionsTotal  *prometheus.CounterVec
	ConcurrentScenarios      prometheus.Gauge
	ScenarioRequestsTotal    *prometheus.CounterVec
	ScenarioThroughputRPS    *prometheus.GaugeVec

	ProcessMemoryRSS           prometheus.Gauge
	HistogramCount             prometheus.Gauge
	HistogramMemoryEstimate    prometheus.Gauge
	HistogramLabelsEvicted     prometheus.Counter
	MemoryWarningExceeded      prometheus.Counter
	MemoryCriticalExceeded     prometheus.Counter
	PercentileTrackingActive   prometheus.Gauge

	ClusterNodeInfo *prometheus.GaugeVec
}

// NewRegistry constructs and registers every metric on a private
// Prometheus registry. Metrics that carry a "region" label receive its
// value per call, through WithLabelValues.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{reg: reg}

	r.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "requests_total", Help: "Total HTTP requests issued.",
	}, []string{"region"})

	r.RequestsStatusCodes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "requests_status_codes_total", Help: "Total requests by status code.",
	}, []string{"status_code", "region"})

	r.ConcurrentRequests = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "concurrent_requests", Help: "In-flight requests.",
	}, []string{"region"})

	r.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "request_duration_seconds", Help: "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"region"})

	r.RequestErrorsByCat = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "request_errors_by_category", Help: "Errors by taxonomy category.",
	}, []string{"category", "region"})

	r.ScenarioExecutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "scenario_executions_total", Help: "Scenario iterations by outcome.",
	}, []string{"scenario", "status"})

	r.ScenarioDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "scenario_duration_seconds", Help: "Scenario iteration wall time.",
		Buckets: prometheus.DefBuckets,
	}, []string{"scenario"})

	r.ScenarioStepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "scenario_steps_total", Help: "Step executions by outcome.",
	}, []string{"scenario", "step", "status"})

	r.ScenarioStepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "scenario_step_duration_seconds", Help: "Step latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"scenario", "step"})

	r.ScenarioStepStatusCodes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "scenario_step_status_codes_total", Help: "Step executions by status code.",
	}, []string{"scenario", "step", "status_code"})

	r.ScenarioAssertionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "scenario_assertions_total", Help: "Assertions evaluated by result.",
	}, []string{"scenario", "step", "result"})

	r.ConcurrentScenarios = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "concurrent_scenarios", Help: "Scenario iterations currently in flight.",
	})

	r.ScenarioRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "scenario_requests_total", Help: "Requests issued per scenario.",
	}, []string{"scenario"})

	r.ScenarioThroughputRPS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "scenario_throughput_rps", Help: "Observed requests/sec per scenario.",
	}, []string{"scenario"})

	r.ProcessMemoryRSS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "process_memory_rss_bytes", Help: "Resident set size of this process.",
	})
	r.HistogramCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "histogram_count", Help: "Active percentile-store histograms.",
	})
	r.HistogramMemoryEstimate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "histogram_memory_estimate_bytes", Help: "Approximate histogram memory usage.",
	})
	r.HistogramLabelsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "histogram_labels_evicted_total", Help: "Labels evicted from percentile-store LRUs.",
	})
	r.MemoryWarningExceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "memory_warning_threshold_exceeded_total", Help: "Warning RSS threshold crossings.",
	})
	r.MemoryCriticalExceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "memory_critical_threshold_exceeded_total", Help: "Critical RSS threshold crossings.",
	})
	r.PercentileTrackingActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "percentile_tracking_active", Help: "1 if percentile sampling is active, 0 if disabled by the memory guard.",
	})

	r.ClusterNodeInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "cluster_node_info", Help: "Present with value 1, labeled by node identity and state.",
	}, []string{"node_id", "region", "state"})

	reg.MustRegister(
		r.RequestsTotal, r.RequestsStatusCodes, r.ConcurrentRequests, r.RequestDuration, r.RequestErrorsByCat,
		r.ScenarioExecutionsTotal, r.ScenarioDuration, r.ScenarioStepsTotal, r.ScenarioStepDuration,
		r.ScenarioStepStatusCodes, r.ScenarioAssertionsTotal, r.ConcurrentScenarios, r.ScenarioRequestsTotal,
		r.ScenarioThroughputRPS,
		r.ProcessMemoryRSS, r.HistogramCount, r.HistogramMemoryEstimate, r.HistogramLabelsEvicted,
		r.MemoryWarningExceeded, r.MemoryCriticalExceeded, r.PercentileTrackingActive,
		r.ClusterNodeInfo,
	)

	r.PercentileTrackingActive.Set(1)

	return r
}

// Handler returns the promhttp handler bound to this registry's metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ScrapeServer serves GET /metrics on addr; any other path 404s.
// It runs until ctx is cancelled.
type ScrapeServer struct {
	srv *http.Server
}

// NewScrapeServer builds (but does not start) the metrics HTTP server.
func NewScrapeServer(addr string, r *Registry) *ScrapeServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	})
	return &ScrapeServer{srv: &http.Server{Addr: addr, Handler: mux}}
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *ScrapeServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("metrics: listen %s: %w", s.srv.Addr, err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
