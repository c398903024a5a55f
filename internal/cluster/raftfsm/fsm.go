// Package raftfsm implements the Raft state machine: a replicated log of
// SetConfig{yaml,version}/Noop/Membership entries, non-durable in-memory
// storage, and a notification channel that fires on every committed
// SetConfig and on snapshot install. Storage is deliberately non-durable,
// using hashicorp/raft's InmemStore/InmemSnapshotStore: a fresh node
// always rejoins by catching up from the current leader rather than
// replaying a local log.
package raftfsm

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// Op is the closed variant of log-entry operations.
type Op string

const (
	OpSetConfig  Op = "set_config"
	OpNoop       Op = "noop"
	OpMembership Op = "membership"
)

// Command is the envelope every Raft log entry carries, JSON-encoded.
type Command struct {
	Op   Op              `json:"op"`
	Data json.RawMessage `json:"data"`
}

// SetConfigData is Command.Data's shape for OpSetConfig.
type SetConfigData struct {
	YAML    string `json:"yaml"`
	Version string `json:"version"`
}

// MembershipData is Command.Data's shape for OpMembership.
type MembershipData struct {
	Members []string `json:"members"`
}

// Notification is delivered on every committed SetConfig application and
// on snapshot install, carrying the new current_config value.
type Notification struct {
	YAML    string
	Version string
}

// FSM implements raft.FSM over a single replicated value: the current
// test configuration. State-machine reads never touch currentConfig
// directly from outside this package — subscribers use Subscribe instead.
type FSM struct {
	mu            sync.RWMutex
	currentConfig string
	currentVersion string
	lastApplied   uint64
	membership    []string

	subs   []chan Notification
	subsMu sync.Mutex
}

// New builds an empty FSM. current_config starts unset.
func New() *FSM {
	return &FSM{}
}

// Subscribe registers a new notification channel. The channel is
// buffered (capacity 1) and never blocks a publish: a slow subscriber
// only ever sees the latest notification, consistent with the "one
// sender, many observers, delivers the latest value" glossary
// definition of a notification channel.
func (f *FSM) Subscribe() <-chan Notification {
	ch := make(chan Notification, 1)
	f.subsMu.Lock()
	f.subs = append(f.subs, ch)
	f.subsMu.Unlock()
	return ch
}

func (f *FSM) publish(n Notification) {
	f.subsMu.Lock()
	defer f.subsMu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- n:
		default:
			// Drain the stale value so the latest one lands instead of
			// blocking; this is a "delivers the latest value" channel, not
			// a queue.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- n:
			default:
			}
		}
	}
}

// Apply applies one committed log entry. Returns an error value (not a
// panic) for bad envelopes, per raft.FSM's interface{} return
// convention.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("raftfsm: unmarshal command: %w", err)
	}

	f.mu.Lock()
	f.lastApplied = log.Index
	switch cmd.Op {
	case OpSetConfig:
		var data SetConfigData
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			f.mu.Unlock()
			return fmt.Errorf("raftfsm: unmarshal set_config: %w", err)
		}
		f.currentConfig = data.YAML
		f.currentVersion = data.Version
		f.mu.Unlock()
		f.publish(Notification{YAML: data.YAML, Version: data.Version})
		return nil

	case OpMembership:
		var data MembershipData
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			f.mu.Unlock()
			return fmt.Errorf("raftfsm: unmarshal membership: %w", err)
		}
		f.membership = data.Members
		f.mu.Unlock()
		return nil

	case OpNoop:
		f.mu.Unlock()
		return nil

	default:
		f.mu.Unlock()
		return fmt.Errorf("raftfsm: unknown op %q", cmd.Op)
	}
}

// LastApplied returns the index of the last applied log entry.
func (f *FSM) LastApplied() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastApplied
}

// snapshot is the JSON blob persisted by Snapshot/restored by Restore.
type snapshot struct {
	CurrentConfig  string   `json:"current_config"`
	CurrentVersion string   `json:"current_version"`
	LastApplied    uint64   `json:"last_applied"`
	Membership     []string `json:"membership"`
}

// Snapshot produces a point-in-time copy of current_config plus the
// applied log id and membership list.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &fsmSnapshot{snapshot{
		CurrentConfig:  f.currentConfig,
		CurrentVersion: f.currentVersion,
		LastApplied:    f.lastApplied,
		Membership:     append([]string(nil), f.membership...),
	}}, nil
}

// Restore installs a previously produced snapshot, overwriting
// current_config and emitting a notification.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var s snapshot
	if err := json.NewDecoder(rc).Decode(&s); err != nil {
		return fmt.Errorf("raftfsm: decode snapshot: %w", err)
	}

	f.mu.Lock()
	f.currentConfig = s.CurrentConfig
	f.currentVersion = s.CurrentVersion
	f.lastApplied = s.LastApplied
	f.membership = s.Membership
	f.mu.Unlock()

	f.publish(Notification{YAML: s.CurrentConfig, Version: s.CurrentVersion})
	return nil
}

type fsmSnapshot struct {
	data snapshot
}

// Persist writes the snapshot to sink as JSON: encode, close, and
// cancel the sink on any error.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s.data); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release is a no-op: the snapshot holds no external resources.
func (s *fsmSnapshot) Release() {}
