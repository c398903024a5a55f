// Package rpc implements the ClusterCoordination gRPC service:
// DistributeConfig proxies to the Raft leader, StartTest/StopTest are
// reserved stubs, and HealthCheck reports the node's state-model view.
// Raft's own AppendEntries/RequestVote/InstallSnapshot are carried
// natively by hashicorp/raft's TCPTransport and never pass through this
// service.
package rpc

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/raft"

	"github.com/sayl/loadgen/internal/cluster/raftfsm"
)

// pollInterval bounds how quickly WatchRaftState notices a state
// transition; well under the heartbeat timeout so HealthCheck never
// lags a real election by more than a fraction of it.
const pollInterval = 100 * time.Millisecond

// State is the closed per-node state model
type State int

const (
	Standalone State = iota
	Forming
	Follower
	Leader
)

func (s State) String() string {
	switch s {
	case Standalone:
		return "standalone"
	case Forming:
		return "forming"
	case Follower:
		return "follower"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// StateTracker holds the current node state, updated by a background
// watcher on the Raft instance and read by both the gRPC HealthCheck
// method and the /health/cluster HTTP endpoint.
type StateTracker struct {
	state atomic.Int32
}

// NewStateTracker starts in Standalone; callers running in cluster mode
// must call SetForming before starting the watch loop.
func NewStateTracker() *StateTracker {
	t := &StateTracker{}
	t.state.Store(int32(Standalone))
	return t
}

func (t *StateTracker) Get() State { return State(t.state.Load()) }
func (t *StateTracker) set(s State) { t.state.Store(int32(s)) }

// SetForming transitions into cluster mode's initial state.
func (t *StateTracker) SetForming() { t.set(Forming) }

// ClusterReady is true iff state is Follower or Leader.
func (t *StateTracker) ClusterReady() bool {
	s := t.Get()
	return s == Follower || s == Leader
}

// WatchRaftState maps raft.RaftState transitions onto this spec's state
// model: leader -> Leader, follower/candidate -> Follower, anything else
// -> Forming. It blocks until stop is closed.
func WatchRaftState(tracker *StateTracker, node *raftfsm.Node, stop <-chan struct{}) {
	tracker.SetForming()
	// Raft's own ObservationChan would require registering an
	// raft.Observer; a light poll loop is adequate here since state
	// transitions only need to be visible within one heartbeat window.
	for {
		select {
		case <-stop:
			return
		default:
		}
		switch node.State() {
		case raft.Leader:
			tracker.set(Leader)
		case raft.Follower, raft.Candidate:
			tracker.set(Follower)
		default:
			tracker.set(Forming)
		}
		select {
		case <-stop:
			return
		case <-time.After(pollInterval):
		}
	}
}
