package rpc

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sayl/loadgen/internal/cluster/raftfsm"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		Standalone: "standalone",
		Forming:    "forming",
		Follower:   "follower",
		Leader:     "leader",
		State(99):  "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestNewStateTrackerStartsStandalone(t *testing.T) {
	tr := NewStateTracker()
	assert.Equal(t, Standalone, tr.Get())
	assert.False(t, tr.ClusterReady())
}

func TestSetFormingTransitions(t *testing.T) {
	tr := NewStateTracker()
	tr.SetForming()
	assert.Equal(t, Forming, tr.Get())
	assert.False(t, tr.ClusterReady())
}

func TestClusterReadyTrueForFollowerAndLeader(t *testing.T) {
	tr := NewStateTracker()
	tr.set(Follower)
	assert.True(t, tr.ClusterReady())
	tr.set(Leader)
	assert.True(t, tr.ClusterReady())
}

func TestWatchRaftStateTracksSingleNodeElection(t *testing.T) {
	addr := freeAddr(t)
	node, err := raftfsm.NewNode(raftfsm.NodeConfig{NodeID: addr, BindAddr: addr, Peers: []string{addr}})
	require.NoError(t, err)
	defer node.Shutdown()

	tr := NewStateTracker()
	stop := make(chan struct{})
	go WatchRaftState(tr, node, stop)
	defer close(stop)

	require.Eventually(t, func() bool { return tr.Get() == Leader }, 3*time.Second, 50*time.Millisecond)
	assert.True(t, tr.ClusterReady())
}

func TestWatchRaftStateStopsOnSignal(t *testing.T) {
	addr := freeAddr(t)
	node, err := raftfsm.NewNode(raftfsm.NodeConfig{NodeID: addr, BindAddr: addr, Peers: []string{addr}})
	require.NoError(t, err)
	defer node.Shutdown()

	tr := NewStateTracker()
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		WatchRaftState(tr, node, stop)
		close(done)
	}()

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchRaftState did not return after stop was closed")
	}
}
