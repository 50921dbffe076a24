package watermark

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// command is the payload raft.Apply replicates: "actor X has synced
// through lamport Y".
type command struct {
	ActorID string `json:"actor_id"`
	Lamport uint64 `json:"lamport"`
}

// fsm is the raft.FSM backing a Cluster: every Advance call is proposed
// as a log entry, and fsm.Apply folds it into the replicated Clock the
// same way on every node.
type fsm struct {
	mu    sync.RWMutex
	clock *Clock
}

func newFSM() *fsm {
	return &fsm{clock: NewClock()}
}

// Apply implements raft.FSM.
func (f *fsm) Apply(entry *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(entry.Data, &cmd); err != nil {
		return fmt.Errorf("watermark: apply: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock.Advance(cmd.ActorID, cmd.Lamport)
	return nil
}

// Snapshot implements raft.FSM.
func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &fsmSnapshot{clock: f.clock.Copy()}, nil
}

// Restore implements raft.FSM.
func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var clock Clock
	if err := json.NewDecoder(rc).Decode(&clock); err != nil {
		return fmt.Errorf("watermark: restore: %w", err)
	}
	if clock.Marks == nil {
		clock.Marks = make(map[string]uint64)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.clock = &clock
	return nil
}

// snapshot returns a copy of the FSM's current clock, for reads that
// don't need to go through raft.Apply.
func (f *fsm) snapshot() *Clock {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.clock.Copy()
}

// fsmSnapshot adapts a Clock to raft.FSMSnapshot.
type fsmSnapshot struct {
	clock *Clock
}

// Persist implements raft.FSMSnapshot.
func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	data, err := json.Marshal(s.clock)
	if err != nil {
		sink.Cancel()
		return err
	}
	if _, err := sink.Write(data); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

// Release implements raft.FSMSnapshot.
func (s *fsmSnapshot) Release() {}
