package discovery

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sayl/loadgen/internal/cluster/rpc"
)

func TestServeHealthReportsStateAndPeers(t *testing.T) {
	tr := rpc.NewStateTracker()
	tr.SetForming()
	h := NewHealthServer("127.0.0.1:0", "node-a", "us-east", tr, func() []string { return []string{"node-b:9000"} })

	rec := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/health/cluster", nil)
	require.NoError(t, err)
	h.serveHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "forming", body.State)
	assert.Equal(t, "node-a", body.NodeID)
	assert.True(t, body.ClusterEnabled)
	assert.False(t, body.ClusterReady)
	assert.Equal(t, []string{"node-b:9000"}, body.Peers)
}

func TestServeHealthStandaloneReportsClusterDisabled(t *testing.T) {
	h := NewHealthServer("127.0.0.1:0", "node-a", "us-east", rpc.NewStateTracker(), nil)

	rec := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/health/cluster", nil)
	require.NoError(t, err)
	h.serveHealth(rec, req)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.ClusterEnabled)
	assert.Empty(t, body.Peers)
}

func TestUnknownPathReturnsNotFound(t *testing.T) {
	h := NewHealthServer("127.0.0.1:0", "node-a", "us-east", rpc.NewStateTracker(), nil)
	mux := http.NewServeMux()
	mux.HandleFunc("/health/cluster", h.serveHealth)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) })

	rec := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/other", nil)
	require.NoError(t, err)
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunServesOverNetworkAndShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	h := NewHealthServer(addr, "node-a", "us-east", rpc.NewStateTracker(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		r, err := http.Get("http://" + addr + "/health/cluster")
		if err != nil {
			return false
		}
		resp = r
		return true
	}, 2*time.Second, 20*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("health server did not shut down after context cancellation")
	}
}
