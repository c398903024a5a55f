package extract

import (
	"bytes"
	"io"
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResponse(headers map[string]string, cookies []*http.Cookie) *http.Response {
	resp := &http.Response{Header: make(http.Header)}
	for k, v := range headers {
		resp.Header.Set(k, v)
	}
	for _, c := range cookies {
		resp.Header.Add("Set-Cookie", c.String())
	}
	return resp
}

func TestExtractorRunJSONPath(t *testing.T) {
	e := Extractor{Kind: ExtractJSONPath, Name: "token", Path: "auth.token"}
	body := []byte(`{"auth":{"token":"abc123"}}`)

	v, ok := e.Run(&http.Response{}, body)
	require.True(t, ok)
	assert.Equal(t, "abc123", v)
}

func TestExtractorRunJSONPathMissing(t *testing.T) {
	e := Extractor{Kind: ExtractJSONPath, Path: "missing.field"}
	_, ok := e.Run(&http.Response{}, []byte(`{}`))
	assert.False(t, ok)
}

func TestExtractorRunRegexWholeMatch(t *testing.T) {
	re := regexp.MustCompile(`id-\d+`)
	e := Extractor{Kind: ExtractRegex, Re: re}
	v, ok := e.Run(&http.Response{}, []byte("order id-42 placed"))
	require.True(t, ok)
	assert.Equal(t, "id-42", v)
}

func TestExtractorRunRegexNamedGroup(t *testing.T) {
	re := regexp.MustCompile(`id-(?P<num>\d+)`)
	e := Extractor{Kind: ExtractRegex, Re: re, Group: "num"}
	v, ok := e.Run(&http.Response{}, []byte("order id-42 placed"))
	require.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestExtractorRunRegexNoMatch(t *testing.T) {
	re := regexp.MustCompile(`nope-\d+`)
	e := Extractor{Kind: ExtractRegex, Re: re}
	_, ok := e.Run(&http.Response{}, []byte("no match here"))
	assert.False(t, ok)
}

func TestExtractorRunHeader(t *testing.T) {
	resp := newResponse(map[string]string{"X-Request-Id": "req-1"}, nil)
	e := Extractor{Kind: ExtractHeader, Field: "X-Request-Id"}
	v, ok := e.Run(resp, nil)
	require.True(t, ok)
	assert.Equal(t, "req-1", v)
}

func TestExtractorRunCookie(t *testing.T) {
	resp := newResponse(nil, []*http.Cookie{{Name: "session", Value: "s3ss10n"}})
	e := Extractor{Kind: ExtractCookie, Field: "session"}
	v, ok := e.Run(resp, nil)
	require.True(t, ok)
	assert.Equal(t, "s3ss10n", v)
}

func TestCheckStatusCode(t *testing.T) {
	a := Assertion{Kind: AssertStatusCode, StatusCode: 200}

	res := Check(a, 200, 0, nil, nil)
	assert.True(t, res.Passed)

	res = Check(a, 500, 0, nil, nil)
	assert.False(t, res.Passed)
	require.Error(t, res.Err)
}

func TestCheckResponseTime(t *testing.T) {
	a := Assertion{Kind: AssertResponseTime, MaxLatency: 100 * time.Millisecond}

	assert.True(t, Check(a, 200, 50*time.Millisecond, nil, nil).Passed)
	assert.False(t, Check(a, 200, 150*time.Millisecond, nil, nil).Passed)
}

func TestCheckJSONPath(t *testing.T) {
	a := Assertion{Kind: AssertJSONPath, Path: "status", ExpectedValue: "ok"}
	body := []byte(`{"status":"ok"}`)
	assert.True(t, Check(a, 200, 0, nil, body).Passed)

	a.ExpectedValue = "fail"
	assert.False(t, Check(a, 200, 0, nil, body).Passed)
}

func TestCheckBodyContains(t *testing.T) {
	a := Assertion{Kind: AssertBodyContains, Substring: "welcome"}
	assert.True(t, Check(a, 200, 0, nil, []byte("welcome aboard")).Passed)
	assert.False(t, Check(a, 200, 0, nil, []byte("goodbye")).Passed)
}

func TestCheckBodyMatches(t *testing.T) {
	a := Assertion{Kind: AssertBodyMatches, Re: regexp.MustCompile(`^\d+$`)}
	assert.True(t, Check(a, 200, 0, nil, []byte("12345")).Passed)
	assert.False(t, Check(a, 200, 0, nil, []byte("abc")).Passed)
}

func TestCheckHeaderExists(t *testing.T) {
	resp := newResponse(map[string]string{"X-Trace-Id": "abc"}, nil)
	a := Assertion{Kind: AssertHeaderExists, HeaderName: "X-Trace-Id"}
	assert.True(t, Check(a, 200, 0, resp, nil).Passed)

	a.HeaderName = "X-Missing"
	assert.False(t, Check(a, 200, 0, resp, nil).Passed)
}

func TestCompileRegexInvalidPattern(t *testing.T) {
	_, err := CompileRegex("(unterminated")
	require.Error(t, err)
}

func TestCompileRegexValidPattern(t *testing.T) {
	re, err := CompileRegex(`\d+`)
	require.NoError(t, err)
	assert.True(t, re.MatchString("42"))
}

func TestIsSuccessStatus(t *testing.T) {
	assert.True(t, IsSuccessStatus(200))
	assert.True(t, IsSuccessStatus(301))
	assert.False(t, IsSuccessStatus(404))
	assert.False(t, IsSuccessStatus(500))
}

func discardBody(r io.Reader) []byte {
	b, _ := io.ReadAll(r)
	return b
}

func TestExtractorRunReadsBodyBytes(t *testing.T) {
	body := bytes.NewBufferString(`{"a":"b"}`)
	e := Extractor{Kind: ExtractJSONPath, Path: "a"}
	v, ok := e.Run(&http.Response{}, discardBody(body))
	require.True(t, ok)
	assert.Equal(t, "b", v)
}
