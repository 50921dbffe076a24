package watermark

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/hashicorp/raft"
)

func applyCommand(t *testing.T, f *fsm, actorID string, lamport uint64) {
	t.Helper()
	data, err := json.Marshal(command{ActorID: actorID, Lamport: lamport})
	if err != nil {
		t.Fatalf("marshal command: %v", err)
	}
	if res := f.Apply(&raft.Log{Data: data}); res != nil {
		t.Fatalf("Apply returned error: %v", res)
	}
}

func TestFSMApplyAdvancesClock(t *testing.T) {
	f := newFSM()
	applyCommand(t, f, "actor1", 5)
	applyCommand(t, f, "actor2", 9)

	min, ok := f.snapshot().Min()
	if !ok || min != 5 {
		t.Fatalf("Min() = (%d, %v), want (5, true)", min, ok)
	}
}

func TestFSMApplyRejectsMalformedEntry(t *testing.T) {
	f := newFSM()
	res := f.Apply(&raft.Log{Data: []byte("not json")})
	if res == nil {
		t.Fatalf("Apply should report an error on malformed entries")
	}
	if _, ok := res.(error); !ok {
		t.Fatalf("Apply error result should be an error, got %T", res)
	}
}

type nopReadCloser struct {
	io.Reader
}

func (nopReadCloser) Close() error { return nil }

func TestFSMSnapshotRestoreRoundTrips(t *testing.T) {
	f := newFSM()
	applyCommand(t, f, "actor1", 3)
	applyCommand(t, f, "actor2", 7)

	snap, err := f.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	var buf bytes.Buffer
	sink := &fakeSnapshotSink{Buffer: &buf}
	if err := snap.Persist(sink); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	restored := newFSM()
	if err := restored.Restore(nopReadCloser{Reader: bytes.NewReader(buf.Bytes())}); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	min, ok := restored.snapshot().Min()
	if !ok || min != 3 {
		t.Fatalf("restored Min() = (%d, %v), want (3, true)", min, ok)
	}
}

// fakeSnapshotSink is a minimal raft.SnapshotSink backed by an in-memory
// buffer, enough to exercise fsmSnapshot.Persist without a real raft
// transport or file snapshot store.
type fakeSnapshotSink struct {
	*bytes.Buffer
}

func (s *fakeSnapshotSink) ID() string           { return "test" }
func (s *fakeSnapshotSink) Cancel() error        { return nil }
func (s *fakeSnapshotSink) Close() error         { return nil }
