package executor

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sayl/loadgen/internal/circuitbreaker"
	"github.com/sayl/loadgen/internal/extract"
	"github.com/sayl/loadgen/internal/metrics"
	"github.com/sayl/loadgen/internal/percentile"
	"github.com/sayl/loadgen/internal/report"
	"github.com/sayl/loadgen/internal/scenario"
)

type stubClient struct {
	do func(req *http.Request) (*http.Response, error)
}

func (s *stubClient) Do(req *http.Request) (*http.Response, error) { return s.do(req) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newScenario(steps ...scenario.Step) *scenario.Scenario {
	s := &scenario.Scenario{Name: "checkout", Weight: 1, Steps: steps}
	for i := range s.Steps {
		s.Steps[i].Compile()
	}
	return s
}

func TestExecuteSuccessfulScenario(t *testing.T) {
	client := &stubClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"ok":true}`), nil
	}}

	sc := newScenario(scenario.Step{
		Name: "ping",
		Request: scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/ping"},
		Assertions: []extract.Assertion{{Kind: extract.AssertStatusCode, StatusCode: 200}},
	})

	e := &Executor{BaseURL: "http://api.example.com", Client: client}
	result := e.Execute(context.Background(), sc, scenario.NewContext(nil), scenario.NewSession())

	assert.True(t, result.Success)
	assert.Equal(t, -1, result.FailedAtStep)
	require.Len(t, result.Steps, 1)
	assert.True(t, result.Steps[0].Success)
}

func TestExecuteStopsAtFirstFailedStep(t *testing.T) {
	calls := 0
	client := &stubClient{do: func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(500, "boom"), nil
	}}

	sc := newScenario(
		scenario.Step{Name: "s1", Request: scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/a"}},
		scenario.Step{Name: "s2", Request: scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/b"}},
	)

	e := &Executor{BaseURL: "http://api.example.com", Client: client}
	result := e.Execute(context.Background(), sc, scenario.NewContext(nil), scenario.NewSession())

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.FailedAtStep)
	assert.Equal(t, 1, calls, "second step should never run after the first fails")
}

func TestExecuteTransportError(t *testing.T) {
	client := &stubClient{do: func(req *http.Request) (*http.Response, error) {
		return nil, assert.AnError
	}}

	sc := newScenario(scenario.Step{Name: "s1", Request: scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/a"}})
	e := &Executor{BaseURL: "http://api.example.com", Client: client}
	result := e.Execute(context.Background(), sc, scenario.NewContext(nil), scenario.NewSession())

	assert.False(t, result.Success)
	require.Error(t, result.Steps[0].Error)
	assert.Contains(t, result.Steps[0].Error.Error(), string(ErrTransport))
}

func TestExecuteSessionCacheHitSkipsRequest(t *testing.T) {
	calls := 0
	client := &stubClient{do: func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(200, `{"token":"abc"}`), nil
	}}

	step := scenario.Step{
		Name:    "login",
		Request: scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/login"},
		Extractors: []extract.Extractor{{Kind: extract.ExtractJSONPath, Name: "token", Path: "token"}},
		SessionCache: &scenario.SessionCachePolicy{TTL: time.Minute},
	}
	sc := newScenario(step)

	e := &Executor{BaseURL: "http://api.example.com", Client: client}
	session := scenario.NewSession()

	e.Execute(context.Background(), sc, scenario.NewContext(nil), session)
	result := e.Execute(context.Background(), sc, scenario.NewContext(nil), session)

	assert.Equal(t, 1, calls, "second iteration should replay the cached step instead of re-requesting")
	assert.True(t, result.Steps[0].CacheHit)
}

func TestExecuteExtractsVariableForLaterStep(t *testing.T) {
	client := &stubClient{do: func(req *http.Request) (*http.Response, error) {
		if strings.Contains(req.URL.Path, "/login") {
			return jsonResponse(200, `{"token":"tok-1"}`), nil
		}
		assert.Equal(t, "/orders/tok-1", req.URL.Path)
		return jsonResponse(200, `{}`), nil
	}}

	sc := newScenario(
		scenario.Step{
			Name:    "login",
			Request: scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/login"},
			Extractors: []extract.Extractor{{Kind: extract.ExtractJSONPath, Name: "token", Path: "token"}},
		},
		scenario.Step{
			Name:    "orders",
			Request: scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/orders/${token}"},
		},
	)

	e := &Executor{BaseURL: "http://api.example.com", Client: client}
	result := e.Execute(context.Background(), sc, scenario.NewContext(nil), scenario.NewSession())
	assert.True(t, result.Success)
}

func TestAbortedReflectsCircuitBreaker(t *testing.T) {
	breaker, err := circuitbreaker.NewBreaker(&circuitbreaker.Config{StopIf: "errors > 1%", MinSamples: 1})
	require.NoError(t, err)

	e := &Executor{Breaker: breaker}
	assert.False(t, e.Aborted())

	breaker.Check(10, 5, 0)
	assert.True(t, e.Aborted())
}

func TestAbortedNilBreakerNeverTrips(t *testing.T) {
	e := &Executor{}
	assert.False(t, e.Aborted())
}

func TestRecordStepFeedsAccumulatorAndBreaker(t *testing.T) {
	client := &stubClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(500, "boom"), nil
	}}
	breaker, err := circuitbreaker.NewBreaker(&circuitbreaker.Config{StopIf: "errors > 1%", MinSamples: 1})
	require.NoError(t, err)

	sc := newScenario(scenario.Step{Name: "s1", Request: scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/a"}})
	acc := report.NewAccumulator()
	e := &Executor{BaseURL: "http://api.example.com", Client: client, Accumulator: acc, Breaker: breaker}

	e.Execute(context.Background(), sc, scenario.NewContext(nil), scenario.NewSession())

	assert.True(t, e.Aborted())
	snap := acc.Snapshot()
	assert.Equal(t, int64(1), snap.Total)
	assert.Equal(t, int64(1), snap.Failure)
}

func TestRecordStepUpdatesPercentileStoresOnSampledRequests(t *testing.T) {
	client := &stubClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{}`), nil
	}}
	sc := newScenario(scenario.Step{Name: "s1", Request: scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/a"}})

	global := percentile.NewStore(10)
	perScenario := percentile.NewStore(10)
	perStep := percentile.NewStore(10)

	e := &Executor{
		BaseURL: "http://api.example.com", Client: client,
		Global: global, PerScenario: perScenario, PerStep: perStep,
		Sampler: percentile.NewSampler(100),
	}
	e.Execute(context.Background(), sc, scenario.NewContext(nil), scenario.NewSession())

	_, ok := global.Stat("")
	assert.True(t, ok)
	_, ok = perScenario.Stat("checkout")
	assert.True(t, ok)
	_, ok = perStep.Stat("checkout:s1")
	assert.True(t, ok)
}

func TestRecordStepSkipsPercentilesOnCacheHit(t *testing.T) {
	client := &stubClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{}`), nil
	}}
	sc := newScenario(scenario.Step{
		Name:         "s1",
		Request:      scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/a"},
		SessionCache: &scenario.SessionCachePolicy{TTL: time.Minute},
	})

	global := percentile.NewStore(10)
	e := &Executor{BaseURL: "http://api.example.com", Client: client, Global: global, Sampler: percentile.NewSampler(100)}
	session := scenario.NewSession()

	e.Execute(context.Background(), sc, scenario.NewContext(nil), session)
	statsBefore, _ := global.Stat("")

	e.Execute(context.Background(), sc, scenario.NewContext(nil), session)
	statsAfter, _ := global.Stat("")

	assert.Equal(t, statsBefore.Count, statsAfter.Count, "cache hit must not add another latency sample")
}

func TestRegistryMetricsUntouchedWhenNil(t *testing.T) {
	client := &stubClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{}`), nil
	}}
	sc := newScenario(scenario.Step{Name: "s1", Request: scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/a"}})

	e := &Executor{BaseURL: "http://api.example.com", Client: client}
	assert.NotPanics(t, func() {
		e.Execute(context.Background(), sc, scenario.NewContext(nil), scenario.NewSession())
	})
}

func TestRecordStepIncrementsRegistryCounters(t *testing.T) {
	client := &stubClient{do: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{}`), nil
	}}
	sc := newScenario(scenario.Step{Name: "s1", Request: scenario.RequestTemplate{Method: scenario.MethodGET, Path: "/a"}})

	reg := metrics.NewRegistry()
	e := &Executor{BaseURL: "http://api.example.com", Client: client, Registry: reg, Region: "us-east"}
	e.Execute(context.Background(), sc, scenario.NewContext(nil), scenario.NewSession())

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.RequestsTotal.WithLabelValues("us-east")))
}
