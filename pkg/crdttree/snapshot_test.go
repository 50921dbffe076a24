package crdttree

import (
	"testing"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

func snapTicket(lamport uint64) *doctime.Ticket {
	return doctime.NewTicket(lamport, 0, &doctime.InitialActorID)
}

func buildSampleTree(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree(snapTicket(0))

	if err := tree.EditAt(0, 0, "p", "", snapTicket(1)); err != nil {
		t.Fatalf("Edit (open p): %v", err)
	}
	if err := tree.EditAt(1, 1, "", "12", snapTicket(2)); err != nil {
		t.Fatalf("Edit (text 12): %v", err)
	}
	if err := tree.StyleAt(0, 1, map[string]string{"bold": `"true"`}, snapTicket(3)); err != nil {
		t.Fatalf("Style: %v", err)
	}
	if err := tree.EditAt(4, 4, "p", "", snapTicket(4)); err != nil {
		t.Fatalf("Edit (open second p): %v", err)
	}
	if err := tree.EditAt(5, 5, "", "34", snapTicket(5)); err != nil {
		t.Fatalf("Edit (text 34): %v", err)
	}
	return tree
}

func TestTreeSnapshotRoundTripPreservesSizeAndStructure(t *testing.T) {
	tree := buildSampleTree(t)

	wantSize := tree.Size()
	wantMarshal := tree.Marshal()

	data, err := tree.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored, err := RestoreTree(snapTicket(100), data)
	if err != nil {
		t.Fatalf("RestoreTree: %v", err)
	}

	if got := restored.Size(); got != wantSize {
		t.Fatalf("restored Size() = %d, want %d", got, wantSize)
	}
	if got := restored.Marshal(); got != wantMarshal {
		t.Fatalf("restored Marshal() = %s, want %s", got, wantMarshal)
	}
}

func TestTreeSnapshotRoundTripEmptyTree(t *testing.T) {
	tree := NewTree(snapTicket(0))

	data, err := tree.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	restored, err := RestoreTree(snapTicket(1), data)
	if err != nil {
		t.Fatalf("RestoreTree: %v", err)
	}
	if restored.Size() != 0 {
		t.Fatalf("restored Size() = %d, want 0", restored.Size())
	}
}
