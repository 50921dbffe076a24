package crdttree

import (
	"testing"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

func treeActor(n byte) *doctime.ActorID {
	hex := ""
	for i := 0; i < 24; i++ {
		hex += string([]byte{"0123456789abcdef"[n%16]})
	}
	id, _ := doctime.NewActorIDFromHex(hex)
	return id
}

func treeTicket(lamport uint64, n byte) *doctime.Ticket {
	return doctime.NewTicket(lamport, 0, treeActor(n))
}

// buildSample constructs <r><p>12</p><p>34</p></r> purely through Edit
// calls, exercising insertion the same way a real session would.
func buildSample(t *testing.T) *Tree {
	t.Helper()
	tree := NewTree(treeTicket(0, 1))

	if err := tree.EditAt(0, 0, "p", "", treeTicket(1, 1)); err != nil {
		t.Fatalf("insert p0: %v", err)
	}
	if err := tree.EditAt(1, 1, "", "12", treeTicket(2, 1)); err != nil {
		t.Fatalf("insert text 12: %v", err)
	}
	if err := tree.EditAt(4, 4, "p", "", treeTicket(3, 1)); err != nil {
		t.Fatalf("insert p1: %v", err)
	}
	if err := tree.EditAt(5, 5, "", "34", treeTicket(4, 1)); err != nil {
		t.Fatalf("insert text 34: %v", err)
	}
	return tree
}

func TestTreeBuildSampleMarshal(t *testing.T) {
	tree := buildSample(t)
	want := `{"type":"root","children":[{"type":"p","children":["12"]},{"type":"p","children":["34"]}]}`
	if got := tree.Marshal(); got != want {
		t.Fatalf("Marshal() = %s, want %s", got, want)
	}
	if tree.Size() != 8 {
		t.Fatalf("Size() = %d, want 8", tree.Size())
	}
}

func TestTreeEditMergesSiblingElements(t *testing.T) {
	tree := buildSample(t)

	if err := tree.EditAt(2, 6, "", "", treeTicket(5, 1)); err != nil {
		t.Fatalf("merge edit: %v", err)
	}

	want := `{"type":"root","children":[{"type":"p","children":["1","4"]}]}`
	if got := tree.Marshal(); got != want {
		t.Fatalf("Marshal() = %s, want %s", got, want)
	}
	if tree.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", tree.Size())
	}
}

func TestTreeStyleAndRemoveStyle(t *testing.T) {
	tree := buildSample(t)
	if err := tree.EditAt(2, 6, "", "", treeTicket(5, 1)); err != nil {
		t.Fatalf("merge edit: %v", err)
	}

	if err := tree.StyleAt(0, 1, map[string]string{"b": "true", "i": "true"}, treeTicket(6, 1)); err != nil {
		t.Fatalf("Style: %v", err)
	}
	if err := tree.RemoveStyleAt(0, 1, []string{"i"}, treeTicket(7, 1)); err != nil {
		t.Fatalf("RemoveStyle: %v", err)
	}

	want := `{"type":"root","children":[{"type":"p","attrs":{"b":true},"children":["1","4"]}]}`
	if got := tree.Marshal(); got != want {
		t.Fatalf("Marshal() = %s, want %s", got, want)
	}
}

func TestTreePurgeWithGarbage(t *testing.T) {
	tree := buildSample(t)
	if err := tree.EditAt(2, 6, "", "", treeTicket(5, 1)); err != nil {
		t.Fatalf("merge edit: %v", err)
	}

	if len(tree.removedNodeMap) == 0 {
		t.Fatalf("expected the dissolved sibling element to be registered for GC")
	}
	purged := tree.PurgeWithGarbage(treeTicket(6, 1))
	if purged == 0 {
		t.Fatalf("PurgeWithGarbage() = 0, want > 0")
	}
	if len(tree.removedNodeMap) != 0 {
		t.Fatalf("removedNodeMap not drained after purge")
	}
}

func TestTreeDeepCopyIsIndependent(t *testing.T) {
	tree := buildSample(t)
	cp := tree.DeepCopy()

	if err := cp.EditAt(2, 6, "", "", treeTicket(5, 1)); err != nil {
		t.Fatalf("merge edit on copy: %v", err)
	}

	if tree.Size() != 8 {
		t.Fatalf("original mutated: Size() = %d, want 8", tree.Size())
	}
	if cp.Size() != 4 {
		t.Fatalf("copy not mutated: Size() = %d, want 4", cp.Size())
	}
}

func TestTreeDump(t *testing.T) {
	tree := buildSample(t)
	if dump := tree.Dump(); dump == "" {
		t.Fatalf("Dump() returned empty string")
	}
}
