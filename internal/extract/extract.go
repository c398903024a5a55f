// Package extract implements the extractor/assertion tagged variants used
// by the scenario executor to pull values out of responses and validate
// them. Both are closed variants with an exhaustive switch, not open
// interfaces.
package extract

import (
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/tidwall/gjson"
)

// ExtractorKind tags which extraction strategy a step uses.
type ExtractorKind int

const (
	ExtractJSONPath ExtractorKind = iota
	ExtractRegex
	ExtractHeader
	ExtractCookie
)

// Extractor binds a name in the scenario context from a live response.
type Extractor struct {
	Kind  ExtractorKind
	Name  string // variable name bound in the context
	Path  string // JSONPath, for ExtractJSONPath
	Re    *regexp.Regexp
	Group string // named capture group, for ExtractRegex
	Field string // header or cookie name
}

// Run applies the extractor to a response. It returns ok=false (never an
// error that fails the step) when nothing was found.
func (e Extractor) Run(resp *http.Response, body []byte) (value string, ok bool) {
	switch e.Kind {
	case ExtractJSONPath:
		r := gjson.GetBytes(body, e.Path)
		if !r.Exists() {
			return "", false
		}
		return r.String(), true
	case ExtractRegex:
		if e.Re == nil {
			return "", false
		}
		names := e.Re.SubexpNames()
		m := e.Re.FindSubmatch(body)
		if m == nil {
			return "", false
		}
		if e.Group == "" {
			return string(m[0]), true
		}
		for i, n := range names {
			if n == e.Group && i < len(m) && m[i] != nil {
				return string(m[i]), true
			}
		}
		return "", false
	case ExtractHeader:
		v := resp.Header.Get(e.Field)
		if v == "" {
			return "", false
		}
		return v, true
	case ExtractCookie:
		for _, c := range resp.Cookies() {
			if c.Name == e.Field {
				return c.Value, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// AssertionKind tags which validation an assertion performs.
type AssertionKind int

const (
	AssertStatusCode AssertionKind = iota
	AssertResponseTime
	AssertJSONPath
	AssertBodyContains
	AssertBodyMatches
	AssertHeaderExists
)

// Assertion validates one property of a live response. A step's assertions
// only ever run against a live response, never against a cache hit.
type Assertion struct {
	Kind          AssertionKind
	StatusCode    int
	MaxLatency    time.Duration
	Path          string // JSONPath, for AssertJSONPath
	ExpectedValue string // optional expected value, for AssertJSONPath
	Substring     string // for AssertBodyContains
	Re            *regexp.Regexp
	HeaderName    string
}

// Result carries the outcome of a single assertion check.
type Result struct {
	Kind   AssertionKind
	Passed bool
	Err    error
}

// Check evaluates one assertion. status/latency describe the live
// response; body/resp give access to its content.
func Check(a Assertion, status int, latency time.Duration, resp *http.Response, body []byte) Result {
	switch a.Kind {
	case AssertStatusCode:
		if status != a.StatusCode {
			return Result{Kind: a.Kind, Passed: false, Err: fmt.Errorf("expected status %d, got %d", a.StatusCode, status)}
		}
	case AssertResponseTime:
		if latency > a.MaxLatency {
			return Result{Kind: a.Kind, Passed: false, Err: fmt.Errorf("response time %s exceeds threshold %s", latency, a.MaxLatency)}
		}
	case AssertJSONPath:
		r := gjson.GetBytes(body, a.Path)
		if !r.Exists() {
			return Result{Kind: a.Kind, Passed: false, Err: fmt.Errorf("json path %q not found", a.Path)}
		}
		if a.ExpectedValue != "" && r.String() != a.ExpectedValue {
			return Result{Kind: a.Kind, Passed: false, Err: fmt.Errorf("json path %q: expected %q, got %q", a.Path, a.ExpectedValue, r.String())}
		}
	case AssertBodyContains:
		if !bytes.Contains(body, []byte(a.Substring)) {
			return Result{Kind: a.Kind, Passed: false, Err: fmt.Errorf("body does not contain %q", a.Substring)}
		}
	case AssertBodyMatches:
		if a.Re == nil || !a.Re.Match(body) {
			return Result{Kind: a.Kind, Passed: false, Err: fmt.Errorf("body does not match pattern %q", a.Re)}
		}
	case AssertHeaderExists:
		if resp == nil || resp.Header.Get(a.HeaderName) == "" {
			return Result{Kind: a.Kind, Passed: false, Err: fmt.Errorf("header %q not present", a.HeaderName)}
		}
	default:
		return Result{Kind: a.Kind, Passed: false, Err: fmt.Errorf("unknown assertion kind %d", a.Kind)}
	}
	return Result{Kind: a.Kind, Passed: true}
}

// CompileRegex pre-compiles a regex pattern at scenario-load time, never
// at per-request time.
func CompileRegex(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("extract: invalid regex %q: %w", pattern, err)
	}
	return re, nil
}

// IsSuccessStatus reports whether an HTTP status is 2xx or 3xx, the
// definition of a successful step.
func IsSuccessStatus(status int) bool {
	return status >= 200 && status < 400
}
