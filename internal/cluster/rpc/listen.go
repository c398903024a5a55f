package rpc

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"

	_ "github.com/sayl/loadgen/internal/cluster/rpc/codec" // registers the JSON grpc.Codec
	"github.com/sayl/loadgen/internal/cluster/rpc/pb"
)

// Listener runs the ClusterCoordination gRPC server on addr until its
// context is cancelled.
type Listener struct {
	srv *grpc.Server
	ln  net.Listener
}

// NewListener binds addr and registers srv as the ClusterCoordination
// implementation.
func NewListener(addr string, srv pb.ClusterCoordinationServer) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("rpc: listen %s: %w", addr, err)
	}
	gs := grpc.NewServer()
	pb.RegisterClusterCoordinationServer(gs, srv)
	return &Listener{srv: gs, ln: ln}, nil
}

// Addr returns the bound address (useful when addr was ":0").
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// Run serves until ctx is cancelled, then stops gracefully.
func (l *Listener) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- l.srv.Serve(l.ln) }()

	select {
	case <-ctx.Done():
		l.srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
