// Package discovery implements the peer client pool and /health/cluster
// endpoint. Each known peer address gets a background connect loop with
// exponential backoff (200ms -> 30s cap, x2 per failure) via
// github.com/cenkalti/backoff/v5, dialing with grpc.NewClient and
// insecure.NewCredentials().
package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/sayl/loadgen/internal/cluster/rpc/codec"
	"github.com/sayl/loadgen/internal/cluster/rpc/pb"
)

const (
	dialTimeout = 3 * time.Second
	callTimeout = 4 * time.Second
)

// Pool is a mutex-guarded map of peer address -> ready gRPC client, kept
// warm by one background connect loop per peer.
type Pool struct {
	mu    sync.RWMutex
	peers map[string]*peer
}

type peer struct {
	conn   *grpc.ClientConn
	client pb.ClusterCoordinationClient
}

// NewPool builds an empty pool. Call Watch for each known peer address
// to start its connect loop.
func NewPool() *Pool {
	return &Pool{peers: make(map[string]*peer)}
}

// Watch starts a background connect loop for addr, reconnecting with
// exponential backoff on failure, until stop is closed.
func (p *Pool) Watch(addr string, stop <-chan struct{}) {
	go p.connectLoop(addr, stop)
}

func (p *Pool) connectLoop(addr string, stop <-chan struct{}) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.Multiplier = 2

	for {
		select {
		case <-stop:
			return
		default:
		}

		conn, err := p.dial(addr)
		if err != nil {
			wait, boErr := bo.NextBackOff()
			if boErr != nil {
				wait = bo.MaxInterval
			}
			select {
			case <-stop:
				return
			case <-time.After(wait):
			}
			continue
		}

		p.mu.Lock()
		p.peers[addr] = &peer{conn: conn, client: pb.NewClusterCoordinationClient(conn)}
		p.mu.Unlock()
		bo.Reset()

		// Hold the connection until it's no longer ready, then drop it
		// from the map and retry the dial loop.
		waitUntilDown(conn, stop)

		p.mu.Lock()
		delete(p.peers, addr)
		p.mu.Unlock()
		_ = conn.Close()
	}
}

func (p *Pool) dial(addr string) (*grpc.ClientConn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codec.Name)),
	)
	if err != nil {
		return nil, err
	}
	// grpc.NewClient is lazy; Connect kicks off the first dial so a bad
	// address fails the loop instead of silently idling.
	conn.Connect()
	state := conn.GetState()
	deadline := time.Now().Add(dialTimeout)
	for state != connectivity.Ready && time.Now().Before(deadline) {
		if !conn.WaitForStateChange(ctx, state) {
			break
		}
		state = conn.GetState()
	}
	if state != connectivity.Ready {
		_ = conn.Close()
		return nil, fmt.Errorf("discovery: %s not ready after %s (state %s)", addr, dialTimeout, state)
	}
	return conn, nil
}

func waitUntilDown(conn *grpc.ClientConn, stop <-chan struct{}) {
	for {
		state := conn.GetState()
		if state == connectivity.Shutdown || state == connectivity.TransientFailure {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		ok := conn.WaitForStateChange(ctx, state)
		cancel()
		if !ok {
			select {
			case <-stop:
				return
			default:
			}
		}
		select {
		case <-stop:
			return
		default:
		}
	}
}

// Lookup returns a cloned handle to the ready client for addr, or
// (nil, false) if no ready connection exists.
func (p *Pool) Lookup(addr string) (pb.ClusterCoordinationClient, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pe, ok := p.peers[addr]
	if !ok {
		return nil, false
	}
	return pe.client, true
}

// Len returns the number of currently-ready peer connections.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.peers)
}

// CallTimeout bounds a single peer RPC so a hung follower cannot stall a
// heartbeat long enough to trigger an unneeded election.
func CallTimeout() time.Duration { return callTimeout }
