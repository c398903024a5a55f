package discovery

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/sayl/loadgen/internal/cluster/rpc"
)

// HealthResponse is the JSON body of GET /health/cluster.
type HealthResponse struct {
	State          string   `json:"state"`
	NodeID         string   `json:"node_id"`
	Region         string   `json:"region"`
	ClusterEnabled bool     `json:"cluster_enabled"`
	ClusterReady   bool     `json:"cluster_ready"`
	Peers          []string `json:"peers"`
}

// HealthServer serves GET /health/cluster; any other path 404s. Used by
// an external service-discovery system to tag this node's role.
type HealthServer struct {
	NodeID  string
	Region  string
	State   *rpc.StateTracker
	Peers   func() []string

	srv *http.Server
}

// NewHealthServer builds (but does not start) the health HTTP server.
func NewHealthServer(addr string, nodeID, region string, state *rpc.StateTracker, peers func() []string) *HealthServer {
	h := &HealthServer{NodeID: nodeID, Region: region, State: state, Peers: peers}
	mux := http.NewServeMux()
	mux.HandleFunc("/health/cluster", h.serveHealth)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	h.srv = &http.Server{Addr: addr, Handler: mux}
	return h
}

func (h *HealthServer) serveHealth(w http.ResponseWriter, r *http.Request) {
	var peers []string
	if h.Peers != nil {
		peers = h.Peers()
	}
	resp := HealthResponse{
		State:          h.State.Get().String(),
		NodeID:         h.NodeID,
		Region:         h.Region,
		ClusterEnabled: h.State.Get() != rpc.Standalone,
		ClusterReady:   h.State.ClusterReady(),
		Peers:          peers,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (h *HealthServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.srv.Addr)
	if err != nil {
		return err
	}
	errCh := make(chan error, 1)
	go func() { errCh <- h.srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.srv.Shutdown(shutCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
