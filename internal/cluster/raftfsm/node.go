package raftfsm

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sort"
	"time"

	"github.com/hashicorp/raft"
)

// NodeConfig describes one Raft node's bootstrap parameters.
type NodeConfig struct {
	NodeID   string
	BindAddr string
	Peers    []string // host:port, including this node's own BindAddr
}

// Node wires together the Raft instance, its FSM, and non-durable
// in-memory log/stable/snapshot stores (raft.NewInmemStore /
// NewInmemSnapshotStore): a restarted node rejoins by catching up from
// the leader rather than replaying anything from disk.
type Node struct {
	ID   string
	raft *raft.Raft
	fsm  *FSM
}

// NewNode constructs and starts a Raft instance bound to cfg.BindAddr,
// tuned with heartbeats more frequent than the election timer's
// minimum, to tolerate CPU pressure from co-located workers. Timeouts
// are widened toward a 5-10s election timeout since this process also
// runs CPU-bound load-generation workers on the same host.
func NewNode(cfg NodeConfig) (*Node, error) {
	fsm := New()

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	raftCfg.HeartbeatTimeout = 500 * time.Millisecond
	raftCfg.ElectionTimeout = 5 * time.Second
	raftCfg.LeaderLeaseTimeout = 400 * time.Millisecond
	raftCfg.CommitTimeout = 50 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("raftfsm: resolve bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftfsm: create transport: %w", err)
	}

	logStore := raft.NewInmemStore()
	stableStore := raft.NewInmemStore()
	snapshotStore := raft.NewInmemSnapshotStore()

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("raftfsm: create raft: %w", err)
	}

	node := &Node{ID: cfg.NodeID, raft: r, fsm: fsm}

	if shouldBootstrap(cfg.NodeID, cfg.Peers) {
		servers := make([]raft.Server, 0, len(cfg.Peers))
		for _, p := range cfg.Peers {
			servers = append(servers, raft.Server{
				ID:      raft.ServerID(p),
				Address: raft.ServerAddress(p),
			})
		}
		future := r.BootstrapCluster(raft.Configuration{Servers: servers})
		if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
			return nil, fmt.Errorf("raftfsm: bootstrap cluster: %w", err)
		}
	}

	return node, nil
}

// shouldBootstrap implements the convention that one node — the lowest
// node id in the bootstrap peer set — attempts to initialize cluster
// membership. Server IDs are the peer addresses themselves, so the
// address ordering doubles as the id ordering.
func shouldBootstrap(nodeID string, peers []string) bool {
	if len(peers) == 0 {
		return true
	}
	sorted := append([]string(nil), peers...)
	sort.Strings(sorted)
	return sorted[0] == nodeID
}

// IsLeader reports whether this node currently holds Raft leadership.
func (n *Node) IsLeader() bool { return n.raft.State() == raft.Leader }

// LeaderAddr returns the current leader's transport address, or "" if
// unknown.
func (n *Node) LeaderAddr() string { return string(n.raft.Leader()) }

// State returns the underlying raft.RaftState (Follower/Candidate/
// Leader/Shutdown); the cluster RPC layer maps this onto its
// own Forming/Follower/Leader state model.
func (n *Node) State() raft.RaftState { return n.raft.State() }

// Subscribe exposes the FSM's notification channel to the Supervisor.
func (n *Node) Subscribe() <-chan Notification { return n.fsm.Subscribe() }

// ApplySetConfig submits a SetConfig entry to the replicated log. Only
// the current leader accepts writes; non-leaders return ErrNotLeader for
// the caller to translate into a peer redirect.
func (n *Node) ApplySetConfig(yaml, version string) error {
	if !n.IsLeader() {
		return ErrNotLeader
	}
	data, err := json.Marshal(SetConfigData{YAML: yaml, Version: version})
	if err != nil {
		return fmt.Errorf("raftfsm: marshal set_config: %w", err)
	}
	cmd := Command{Op: OpSetConfig, Data: data}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("raftfsm: marshal command: %w", err)
	}
	future := n.raft.Apply(payload, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("raftfsm: apply: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops the Raft instance.
func (n *Node) Shutdown() error {
	return n.raft.Shutdown().Error()
}

// ErrNotLeader is returned by ApplySetConfig on a non-leader node, for
// the caller to translate into a peer redirect.
var ErrNotLeader = fmt.Errorf("raftfsm: not the leader")
