// Package executor drives one scenario iteration against one scenario
// context and one session store, updating the metrics
// registry and percentile store as it goes.
package executor

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sayl/loadgen/internal/circuitbreaker"
	"github.com/sayl/loadgen/internal/extract"
	"github.com/sayl/loadgen/internal/metrics"
	"github.com/sayl/loadgen/internal/percentile"
	"github.com/sayl/loadgen/internal/report"
	"github.com/sayl/loadgen/internal/scenario"
)

// HTTPClient is the HTTP client capability the core requires.
// *http.Client satisfies it directly.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrorCategory is one row of the error taxonomy
type ErrorCategory string

const (
	ErrTransport  ErrorCategory = "transport"
	ErrStatus     ErrorCategory = "status"
	ErrAssertion  ErrorCategory = "assertion"
	ErrExtraction ErrorCategory = "extraction"
)

// StepResult is the outcome of executing (or cache-replaying) one step.
type StepResult struct {
	StepName         string
	CacheHit         bool
	Latency          time.Duration
	StatusCode       int // 0 on transport failure or cache hit
	Success          bool
	Error            error
	AssertionsPassed int
	AssertionsFailed int
}

// ScenarioResult is the outcome of one scenario iteration.
type ScenarioResult struct {
	ScenarioName string
	Steps        []StepResult
	Success      bool
	TotalTime    time.Duration
	FailedAtStep int // -1 if the iteration succeeded
}

// Executor drives scenario iterations. BaseURL resolves relative request
// paths; Client is the shared HTTP capability; Registry/Percentiles
// receive per-request samples.
type Executor struct {
	BaseURL     string
	Client      HTTPClient
	Registry    *metrics.Registry
	Region      string
	Global      *percentile.Store // unlabeled, global request latencies
	PerScenario *percentile.Store // keyed by scenario name
	PerStep     *percentile.Store // keyed by "scenario:step"
	Sampler     percentile.Sampler
	Accumulator *report.Accumulator // run-level totals for the end-of-test summary
	Breaker     *circuitbreaker.Breaker
}

// Aborted reports whether the circuit breaker has tripped; the worker
// pool polls this between iterations to stop the run early.
func (e *Executor) Aborted() bool {
	return e.Breaker.IsTripped()
}

// Execute runs one full iteration of scenario using context ctx and
// session store session, both owned by the caller. sctx is reset by the
// caller at the start of every iteration, before this call.
func (e *Executor) Execute(goCtx context.Context, s *scenario.Scenario, sctx *scenario.Context, session *scenario.Session) ScenarioResult {
	start := time.Now()
	result := ScenarioResult{ScenarioName: s.Name, FailedAtStep: -1}

	for idx, step := range s.Steps {
		sctx.Step = idx
		sr := e.executeStep(goCtx, s.Name, step, sctx, session, idx > 0)
		result.Steps = append(result.Steps, sr)

		e.recordStep(s.Name, step.Name, sr)

		if !sr.Success {
			result.FailedAtStep = idx
			result.TotalTime = time.Since(start)
			e.recordScenario(s.Name, result.TotalTime, false)
			return result
		}

		if step.ThinkTime != nil && idx > 0 {
			sleepThinkTime(goCtx, *step.ThinkTime)
		}
	}

	result.Success = true
	result.TotalTime = time.Since(start)
	e.recordScenario(s.Name, result.TotalTime, true)
	return result
}

// executeStep implements the per-step algorithm
func (e *Executor) executeStep(goCtx context.Context, scenarioName string, step scenario.Step, sctx *scenario.Context, session *scenario.Session, allowThinkTime bool) StepResult {
	now := time.Now()

	if step.SessionCache != nil {
		if vars, ok := session.Lookup(step.Name, now); ok {
			for k, v := range vars {
				sctx.Set(k, v)
			}
			return StepResult{StepName: step.Name, CacheHit: true, Success: true}
		}
	}

	url := e.resolveURL(step.Request.RenderPath(sctx))
	body := step.Request.RenderBody(sctx)

	req, err := http.NewRequestWithContext(goCtx, string(step.Request.Method), url, strings.NewReader(body))
	if err != nil {
		return StepResult{StepName: step.Name, Error: fmt.Errorf("%s: %w", ErrTransport, err)}
	}
	for k, v := range step.Request.RenderHeaders(sctx) {
		req.Header.Set(k, v)
	}

	reqStart := time.Now()
	resp, err := e.Client.Do(req)
	latency := time.Since(reqStart)
	if err != nil {
		return StepResult{StepName: step.Name, Latency: latency, Error: fmt.Errorf("%s: %w", ErrTransport, err)}
	}
	defer resp.Body.Close()

	body2, _ := io.ReadAll(resp.Body)

	extracted := make(map[string]string, len(step.Extractors))
	for _, ext := range step.Extractors {
		if v, ok := ext.Run(resp, body2); ok {
			sctx.Set(ext.Name, v)
			extracted[ext.Name] = v
		}
	}

	passed, failed := 0, 0
	var firstFail error
	for _, a := range step.Assertions {
		res := extract.Check(a, resp.StatusCode, latency, resp, body2)
		if res.Passed {
			passed++
		} else {
			failed++
			if firstFail == nil {
				firstFail = res.Err
			}
		}
	}

	success := extract.IsSuccessStatus(resp.StatusCode) && failed == 0
	if step.SessionCache != nil && success {
		session.Store(step.Name, extracted, now, step.SessionCache.TTL)
	}
	var stepErr error
	if !extract.IsSuccessStatus(resp.StatusCode) {
		stepErr = fmt.Errorf("%s: unexpected status %d", ErrStatus, resp.StatusCode)
	} else if failed > 0 {
		stepErr = fmt.Errorf("%s: %w", ErrAssertion, firstFail)
	}

	return StepResult{
		StepName:         step.Name,
		Latency:          latency,
		StatusCode:       resp.StatusCode,
		Success:          success,
		Error:            stepErr,
		AssertionsPassed: passed,
		AssertionsFailed: failed,
	}
}

func (e *Executor) resolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := strings.TrimSuffix(e.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func sleepThinkTime(ctx context.Context, t scenario.ThinkTime) {
	var d time.Duration
	switch t.Kind {
	case scenario.ThinkFixed:
		d = t.Fixed
	case scenario.ThinkRandom:
		d = randomBetween(t.RandMin, t.RandMax)
	}
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (e *Executor) recordStep(scenarioName, stepName string, sr StepResult) {
	status := "success"
	if !sr.Success {
		status = "failure"
	}
	if e.Registry != nil {
		e.Registry.ScenarioStepsTotal.WithLabelValues(scenarioName, stepName, status).Inc()
		if sr.StatusCode != 0 {
			e.Registry.ScenarioStepStatusCodes.WithLabelValues(scenarioName, stepName, strconv.Itoa(sr.StatusCode)).Inc()
		}
		if !sr.CacheHit {
			e.Registry.ScenarioStepDuration.WithLabelValues(scenarioName, stepName).Observe(sr.Latency.Seconds())
			e.Registry.RequestsTotal.WithLabelValues(e.Region).Inc()
			e.Registry.RequestDuration.WithLabelValues(e.Region).Observe(sr.Latency.Seconds())
			if sr.StatusCode != 0 {
				e.Registry.RequestsStatusCodes.WithLabelValues(strconv.Itoa(sr.StatusCode), e.Region).Inc()
			}
			if sr.Error != nil {
				e.Registry.RequestErrorsByCat.WithLabelValues(errorCategory(sr.Error), e.Region).Inc()
			}
		}
		if sr.AssertionsPassed > 0 {
			e.Registry.ScenarioAssertionsTotal.WithLabelValues(scenarioName, stepName, "passed").Add(float64(sr.AssertionsPassed))
		}
		if sr.AssertionsFailed > 0 {
			e.Registry.ScenarioAssertionsTotal.WithLabelValues(scenarioName, stepName, "failed").Add(float64(sr.AssertionsFailed))
		}
		e.Registry.ScenarioRequestsTotal.WithLabelValues(scenarioName).Inc()
	}

	if !sr.CacheHit && e.Accumulator != nil {
		category := ""
		if sr.Error != nil {
			category = errorCategory(sr.Error)
		}
		e.Accumulator.Record(scenarioName, sr.Success, category)

		if e.Breaker != nil {
			snap := e.Accumulator.Snapshot()
			e.Breaker.CheckSnapshot(snap.Total, snap.Failure-snap.ErrorsByCat["assertion"], snap.ErrorsByCat)
		}
	}

	if !sr.CacheHit && e.Sampler.ShouldSample() {
		if e.Global != nil {
			e.Global.Record("", sr.Latency)
		}
		if e.PerScenario != nil {
			e.PerScenario.Record(scenarioName, sr.Latency)
		}
		if e.PerStep != nil {
			e.PerStep.Record(scenarioName+":"+stepName, sr.Latency)
		}
	}
}

func (e *Executor) recordScenario(scenarioName string, d time.Duration, success bool) {
	if e.Registry == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	e.Registry.ScenarioExecutionsTotal.WithLabelValues(scenarioName, status).Inc()
	e.Registry.ScenarioDuration.WithLabelValues(scenarioName).Observe(d.Seconds())
}

func randomBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}

func errorCategory(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, string(ErrTransport)):
		return string(ErrTransport)
	case strings.Contains(msg, string(ErrStatus)):
		return string(ErrStatus)
	case strings.Contains(msg, string(ErrAssertion)):
		return string(ErrAssertion)
	default:
		return "unknown"
	}
}
