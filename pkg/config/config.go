// Package config loads a YAML document into the validated configuration
// object, converting it into the core's own types (scenario.Scenario,
// shaper.Model, cluster peer lists) via gopkg.in/yaml.v3. A full YAML
// schema surface, its documentation generator, and env/flag merging are
// left out — this loader covers only the mechanism of turning a YAML
// document into core types.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sayl/loadgen/internal/circuitbreaker"
	"github.com/sayl/loadgen/internal/extract"
	"github.com/sayl/loadgen/internal/metrics"
	"github.com/sayl/loadgen/internal/scenario"
	"github.com/sayl/loadgen/internal/shaper"
)

// HTTPClientConfig is the client-capability configuration
type HTTPClientConfig struct {
	Timeout         time.Duration
	TLSVerify       bool
	Headers         map[string]string
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	KeepAlive       bool
}

// ClusterConfig is unset (Enabled=false) for standalone mode.
type ClusterConfig struct {
	Enabled  bool
	NodeID   string
	BindAddr string
	RPCAddr  string
	Peers    []string
	Region   string
}

// Config is the fully validated configuration object
type Config struct {
	BaseURL     string
	WorkerCount int
	Duration    time.Duration

	Model shaper.Model

	Scenarios []scenario.Scenario

	HTTPClient HTTPClientConfig

	LabelCapacity int
	SamplingRate  int // percentile sampling rate R in [1,100]; 100 means sample every request
	GuardConfig   metrics.GuardConfig

	Cluster ClusterConfig

	MetricsAddr string
	HealthAddr  string

	CircuitBreaker *circuitbreaker.Breaker // nil when stop_if is unset
}

// yamlDoc mirrors a minimal, stable YAML surface sufficient to populate
// Config; full surface syntax, versioning, and schema docs are out of
// scope.
type yamlDoc struct {
	BaseURL     string `yaml:"base_url"`
	WorkerCount int    `yaml:"worker_count"`
	Duration    string `yaml:"duration"`

	Load struct {
		Model         string  `yaml:"model"`
		RPS           float64 `yaml:"rps"`
		RampMin       float64 `yaml:"ramp_min"`
		RampMax       float64 `yaml:"ramp_max"`
		RampDuration  string  `yaml:"ramp_duration"`
		DailyMin      float64 `yaml:"daily_min"`
		DailyMid      float64 `yaml:"daily_mid"`
		DailyMax      float64 `yaml:"daily_max"`
		CycleDuration string  `yaml:"cycle_duration"`
	} `yaml:"load"`

	HTTPClient struct {
		Timeout         string            `yaml:"timeout"`
		TLSVerify       bool              `yaml:"tls_verify"`
		Headers         map[string]string `yaml:"headers"`
		MaxIdleConns    int               `yaml:"max_idle_conns"`
		IdleConnTimeout string            `yaml:"idle_conn_timeout"`
		KeepAlive       bool              `yaml:"keep_alive"`
	} `yaml:"http_client"`

	LabelCapacity int `yaml:"label_capacity"`
	SamplingRate  int `yaml:"sampling_rate"`

	MemoryGuard struct {
		WarningBytes  uint64 `yaml:"warning_bytes"`
		CriticalBytes uint64 `yaml:"critical_bytes"`
		PollInterval  string `yaml:"poll_interval"`
		RotateEvery   string `yaml:"rotate_every"`
	} `yaml:"memory_guard"`

	Cluster struct {
		Enabled  bool     `yaml:"enabled"`
		NodeID   string   `yaml:"node_id"`
		BindAddr string   `yaml:"bind_addr"`
		RPCAddr  string   `yaml:"rpc_addr"`
		Peers    []string `yaml:"peers"`
		Region   string   `yaml:"region"`
	} `yaml:"cluster"`

	MetricsAddr string `yaml:"metrics_addr"`
	HealthAddr  string `yaml:"health_addr"`

	StopIf     string `yaml:"stop_if"`
	MinSamples int64  `yaml:"min_samples"`

	Scenarios []yamlScenario `yaml:"scenarios"`
}

type yamlScenario struct {
	Name   string     `yaml:"name"`
	Weight float64    `yaml:"weight"`
	Steps  []yamlStep `yaml:"steps"`
}

type yamlStep struct {
	Name    string            `yaml:"name"`
	Method  string            `yaml:"method"`
	Path    string            `yaml:"path"`
	Body    string            `yaml:"body"`
	Headers map[string]string `yaml:"headers"`

	Extract    []yamlExtractor `yaml:"extract"`
	Assertions []yamlAssertion `yaml:"assertions"`

	ThinkTime *yamlThinkTime `yaml:"think_time"`
	CacheTTL  string         `yaml:"cache_ttl"`
}

type yamlExtractor struct {
	Name  string `yaml:"name"`
	Kind  string `yaml:"kind"` // json_path | regex | header | cookie
	Path  string `yaml:"path"`
	Group string `yaml:"group"`
	Field string `yaml:"field"`
}

type yamlAssertion struct {
	Kind      string `yaml:"kind"`
	Code      int    `yaml:"code"`
	Threshold string `yaml:"threshold"`
	Path      string `yaml:"path"`
	Expected  string `yaml:"expected"`
	Substring string `yaml:"substring"`
	Pattern   string `yaml:"pattern"`
	Header    string `yaml:"header"`
}

type yamlThinkTime struct {
	Kind  string `yaml:"kind"` // fixed | random
	Fixed string `yaml:"fixed"`
	Min   string `yaml:"min"`
	Max   string `yaml:"max"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates a YAML document already in memory — the replicated
// cluster reconfiguration path receives a YAML payload straight off the
// Raft log rather than from a file on disk.
func Parse(raw []byte) (*Config, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return fromYAML(&doc)
}

func fromYAML(doc *yamlDoc) (*Config, error) {
	if err := PreValidate(doc); err != nil {
		return nil, err
	}

	duration, err := parseDuration(doc.Duration, 0)
	if err != nil {
		return nil, fmt.Errorf("config: duration: %w", err)
	}

	model, err := loadModel(doc)
	if err != nil {
		return nil, err
	}

	scenarios := make([]scenario.Scenario, 0, len(doc.Scenarios))
	for _, ys := range doc.Scenarios {
		sc, err := loadScenario(ys)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	if err := scenario.ValidateAll(scenarios); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	httpTimeout, err := parseDuration(doc.HTTPClient.Timeout, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config: http_client.timeout: %w", err)
	}
	idleTimeout, err := parseDuration(doc.HTTPClient.IdleConnTimeout, 90*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config: http_client.idle_conn_timeout: %w", err)
	}

	guard := metrics.DefaultGuardConfig()
	if doc.MemoryGuard.WarningBytes > 0 {
		guard.WarningBytes = doc.MemoryGuard.WarningBytes
	}
	if doc.MemoryGuard.CriticalBytes > 0 {
		guard.CriticalBytes = doc.MemoryGuard.CriticalBytes
	}
	if d, err := parseDuration(doc.MemoryGuard.PollInterval, guard.PollInterval); err == nil {
		guard.PollInterval = d
	}
	if d, err := parseDuration(doc.MemoryGuard.RotateEvery, guard.RotateEvery); err == nil {
		guard.RotateEvery = d
	}

	var breaker *circuitbreaker.Breaker
	if doc.StopIf != "" {
		breaker, err = circuitbreaker.NewBreaker(&circuitbreaker.Config{StopIf: doc.StopIf, MinSamples: doc.MinSamples})
		if err != nil {
			return nil, fmt.Errorf("config: stop_if: %w", err)
		}
	}

	cfg := &Config{
		BaseURL:     doc.BaseURL,
		WorkerCount: doc.WorkerCount,
		Duration:    duration,
		Model:       model,
		Scenarios:   scenarios,
		HTTPClient: HTTPClientConfig{
			Timeout:         httpTimeout,
			TLSVerify:       doc.HTTPClient.TLSVerify,
			Headers:         doc.HTTPClient.Headers,
			MaxIdleConns:    doc.HTTPClient.MaxIdleConns,
			IdleConnTimeout: idleTimeout,
			KeepAlive:       doc.HTTPClient.KeepAlive,
		},
		LabelCapacity: doc.LabelCapacity,
		SamplingRate:  orDefaultInt(doc.SamplingRate, 100),
		GuardConfig:   guard,
		Cluster: ClusterConfig{
			Enabled:  doc.Cluster.Enabled,
			NodeID:   doc.Cluster.NodeID,
			BindAddr: doc.Cluster.BindAddr,
			RPCAddr:  doc.Cluster.RPCAddr,
			Peers:    doc.Cluster.Peers,
			Region:   doc.Cluster.Region,
		},
		MetricsAddr:    orDefault(doc.MetricsAddr, ":9090"),
		HealthAddr:     orDefault(doc.HealthAddr, ":9091"),
		CircuitBreaker: breaker,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the baseline invariants of an already-loaded
// configuration (worker count positive, base URL set, at least one
// scenario).
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: base_url is required")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("config: worker_count must be positive, got %d", c.WorkerCount)
	}
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("config: at least one scenario is required")
	}
	return nil
}

func loadModel(doc *yamlDoc) (shaper.Model, error) {
	switch doc.Load.Model {
	case "", "concurrent":
		return shaper.Model{Kind: shaper.Concurrent}, nil
	case "rps":
		return shaper.Model{Kind: shaper.Rps, Target: doc.Load.RPS}, nil
	case "ramp":
		d, err := parseDuration(doc.Load.RampDuration, 0)
		if err != nil {
			return shaper.Model{}, fmt.Errorf("config: load.ramp_duration: %w", err)
		}
		return shaper.Model{
			Kind:         shaper.Ramp,
			RampMin:      doc.Load.RampMin,
			RampMax:      doc.Load.RampMax,
			RampDuration: d,
		}, nil
	case "daily_traffic":
		d, err := parseDuration(doc.Load.CycleDuration, 0)
		if err != nil {
			return shaper.Model{}, fmt.Errorf("config: load.cycle_duration: %w", err)
		}
		return shaper.Model{
			Kind:          shaper.DailyTraffic,
			DailyMin:      doc.Load.DailyMin,
			DailyMid:      doc.Load.DailyMid,
			DailyMax:      doc.Load.DailyMax,
			CycleDuration: d,
			Phases: [6]shaper.DailyPhase{
				{Phase: shaper.MorningRamp, Ratio: 1.0 / 6},
				{Phase: shaper.PeakSustain, Ratio: 1.0 / 6},
				{Phase: shaper.MidDecline, Ratio: 1.0 / 6},
				{Phase: shaper.MidSustain, Ratio: 1.0 / 6},
				{Phase: shaper.EveningDecline, Ratio: 1.0 / 6},
				{Phase: shaper.NightSustain, Ratio: 1.0 / 6},
			},
		}, nil
	default:
		return shaper.Model{}, fmt.Errorf("config: unknown load model %q", doc.Load.Model)
	}
}

func loadScenario(ys yamlScenario) (scenario.Scenario, error) {
	steps := make([]scenario.Step, 0, len(ys.Steps))
	for _, yst := range ys.Steps {
		st, err := loadStep(yst)
		if err != nil {
			return scenario.Scenario{}, fmt.Errorf("scenario %q: %w", ys.Name, err)
		}
		steps = append(steps, st)
	}
	return scenario.Scenario{Name: ys.Name, Weight: ys.Weight, Steps: steps}, nil
}

func loadStep(yst yamlStep) (scenario.Step, error) {
	method, err := scenario.ParseMethod(yst.Method)
	if err != nil {
		return scenario.Step{}, err
	}

	st := scenario.Step{
		Name: yst.Name,
		Request: scenario.RequestTemplate{
			Method:  method,
			Path:    yst.Path,
			Body:    yst.Body,
			Headers: yst.Headers,
		},
	}

	for _, ye := range yst.Extract {
		ext, err := loadExtractor(ye)
		if err != nil {
			return scenario.Step{}, err
		}
		st.Extractors = append(st.Extractors, ext)
	}

	for _, ya := range yst.Assertions {
		a, err := loadAssertion(ya)
		if err != nil {
			return scenario.Step{}, err
		}
		st.Assertions = append(st.Assertions, a)
	}

	if yst.ThinkTime != nil {
		tt, err := loadThinkTime(*yst.ThinkTime)
		if err != nil {
			return scenario.Step{}, err
		}
		st.ThinkTime = &tt
	}

	if yst.CacheTTL != "" {
		ttl, err := parseDuration(yst.CacheTTL, 0)
		if err != nil {
			return scenario.Step{}, fmt.Errorf("step %q: cache_ttl: %w", yst.Name, err)
		}
		st.SessionCache = &scenario.SessionCachePolicy{TTL: ttl}
	}

	return st, nil
}

func loadExtractor(ye yamlExtractor) (extract.Extractor, error) {
	var kind extract.ExtractorKind
	switch ye.Kind {
	case "json_path":
		kind = extract.ExtractJSONPath
	case "regex":
		kind = extract.ExtractRegex
	case "header":
		kind = extract.ExtractHeader
	case "cookie":
		kind = extract.ExtractCookie
	default:
		return extract.Extractor{}, fmt.Errorf("extractor %q: unknown kind %q", ye.Name, ye.Kind)
	}
	ext := extract.Extractor{Kind: kind, Name: ye.Name, Path: ye.Path, Group: ye.Group, Field: ye.Field}
	if kind == extract.ExtractRegex && ye.Path != "" {
		re, err := extract.CompileRegex(ye.Path)
		if err != nil {
			return extract.Extractor{}, fmt.Errorf("extractor %q: %w", ye.Name, err)
		}
		ext.Re = re
	}
	return ext, nil
}

func loadAssertion(ya yamlAssertion) (extract.Assertion, error) {
	switch ya.Kind {
	case "status_code":
		return extract.Assertion{Kind: extract.AssertStatusCode, StatusCode: ya.Code}, nil
	case "response_time":
		d, err := parseDuration(ya.Threshold, 0)
		if err != nil {
			return extract.Assertion{}, fmt.Errorf("assertion response_time: %w", err)
		}
		return extract.Assertion{Kind: extract.AssertResponseTime, MaxLatency: d}, nil
	case "json_path":
		return extract.Assertion{Kind: extract.AssertJSONPath, Path: ya.Path, ExpectedValue: ya.Expected}, nil
	case "body_contains":
		return extract.Assertion{Kind: extract.AssertBodyContains, Substring: ya.Substring}, nil
	case "body_matches":
		re, err := extract.CompileRegex(ya.Pattern)
		if err != nil {
			return extract.Assertion{}, fmt.Errorf("assertion body_matches: %w", err)
		}
		return extract.Assertion{Kind: extract.AssertBodyMatches, Re: re}, nil
	case "header_exists":
		return extract.Assertion{Kind: extract.AssertHeaderExists, HeaderName: ya.Header}, nil
	default:
		return extract.Assertion{}, fmt.Errorf("assertion: unknown kind %q", ya.Kind)
	}
}

func loadThinkTime(yt yamlThinkTime) (scenario.ThinkTime, error) {
	switch yt.Kind {
	case "fixed":
		d, err := parseDuration(yt.Fixed, 0)
		if err != nil {
			return scenario.ThinkTime{}, fmt.Errorf("think_time.fixed: %w", err)
		}
		return scenario.ThinkTime{Kind: scenario.ThinkFixed, Fixed: d}, nil
	case "random":
		min, err := parseDuration(yt.Min, 0)
		if err != nil {
			return scenario.ThinkTime{}, fmt.Errorf("think_time.min: %w", err)
		}
		max, err := parseDuration(yt.Max, 0)
		if err != nil {
			return scenario.ThinkTime{}, fmt.Errorf("think_time.max: %w", err)
		}
		return scenario.ThinkTime{Kind: scenario.ThinkRandom, RandMin: min, RandMax: max}, nil
	default:
		return scenario.ThinkTime{}, fmt.Errorf("think_time: unknown kind %q", yt.Kind)
	}
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func orDefaultInt(n, def int) int {
	if n == 0 {
		return def
	}
	return n
}
