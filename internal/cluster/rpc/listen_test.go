package rpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sayl/loadgen/internal/cluster/rpc/codec"
	"github.com/sayl/loadgen/internal/cluster/rpc/pb"
)

func TestNewListenerBindsRequestedAddr(t *testing.T) {
	l, err := NewListener("127.0.0.1:0", &Server{NodeID: "node-a", State: NewStateTracker()})
	require.NoError(t, err)
	assert.NotEmpty(t, l.Addr())
	assert.Contains(t, l.Addr(), "127.0.0.1:")
}

func TestListenerServesHealthCheckOverGRPC(t *testing.T) {
	srv := &Server{NodeID: "node-a", Region: "us-east", State: NewStateTracker()}
	l, err := NewListener("127.0.0.1:0", srv)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	conn, err := grpc.NewClient(l.Addr(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codec.Name)),
	)
	require.NoError(t, err)
	defer conn.Close()

	client := pb.NewClusterCoordinationClient(conn)
	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()
	resp, err := client.HealthCheck(callCtx, &pb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, "node-a", resp.NodeID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not shut down after context cancellation")
	}
}
