package supervisor

import (
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"

	"github.com/sayl/loadgen/pkg/config"
)

// headerClient wraps an *http.Client to apply a fixed set of default
// headers to every outgoing request without each scenario step needing to
// repeat them.
type headerClient struct {
	client  *http.Client
	headers map[string]string
}

func (h *headerClient) Do(req *http.Request) (*http.Response, error) {
	for k, v := range h.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return h.client.Do(req)
}

// buildHTTPClient constructs the shared HTTP client every worker's
// executor issues requests through, tuned by cfg. The client carries a
// single cookie jar shared by every worker's session, so a login step's
// Set-Cookie is stored and resent on that worker's later steps the same
// way a browser session would.
func buildHTTPClient(cfg config.HTTPClientConfig) *headerClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   !cfg.KeepAlive,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !cfg.TLSVerify},
	}
	jar, _ := cookiejar.New(nil) // nil PublicSuffixList is always valid; New never errors here
	return &headerClient{
		client:  &http.Client{Transport: transport, Timeout: cfg.Timeout, Jar: jar},
		headers: cfg.Headers,
	}
}
