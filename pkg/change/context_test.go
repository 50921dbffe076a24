package change

import (
	"testing"

	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

func TestContextIssueTimeTicketFixesLamportAndAdvancesDelimiter(t *testing.T) {
	root, _ := newTestRoot()
	ctx := NewContext(changeID(1, 7, 1), root, "")

	first := ctx.IssueTimeTicket()
	second := ctx.IssueTimeTicket()

	if first.Lamport() != 7 || second.Lamport() != 7 {
		t.Fatalf("Lamport() = %d, %d, want both fixed at 7", first.Lamport(), second.Lamport())
	}
	if first.Delimiter() != 0 || second.Delimiter() != 1 {
		t.Fatalf("Delimiter() = %d, %d, want 0 then 1", first.Delimiter(), second.Delimiter())
	}
}

func TestContextToChangeAssemblesPushedOperations(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(3, 1, 2), root, "hello")

	value := crdt.NewPrimitiveElement(crdt.NewInt32(1), ctx.IssueTimeTicket())
	op := NewSetOperation(obj.CreatedAt(), "a", value, value.CreatedAt())
	ctx.Push(op)

	if !ctx.HasOperations() {
		t.Fatalf("HasOperations() = false after Push")
	}

	ch := ctx.ToChange()
	if ch.Message() != "hello" {
		t.Fatalf("Message() = %q, want hello", ch.Message())
	}
	if len(ch.Operations()) != 1 {
		t.Fatalf("Operations() = %d, want 1", len(ch.Operations()))
	}
	if ch.ID().ClientSeq() != 3 {
		t.Fatalf("ID().ClientSeq() = %d, want 3", ch.ID().ClientSeq())
	}
}

func TestChangeExecuteReplaysOperationsInOrder(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")

	v1 := crdt.NewPrimitiveElement(crdt.NewInt32(1), ctx.IssueTimeTicket())
	setA := NewSetOperation(obj.CreatedAt(), "a", v1, v1.CreatedAt())
	v2 := crdt.NewPrimitiveElement(crdt.NewInt32(2), ctx.IssueTimeTicket())
	setB := NewSetOperation(obj.CreatedAt(), "b", v2, v2.CreatedAt())
	ctx.Push(setA)
	ctx.Push(setB)

	ch := ctx.ToChange()
	if err := ch.Execute(root); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if root.Marshal() != `{"a":1,"b":2}` {
		t.Fatalf("Marshal() = %s, want both keys applied in order", root.Marshal())
	}
}

func TestChangeExecuteToleratesOperationAgainstAlreadyRemovedParent(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")

	nested := crdt.NewObjectElement(ctx.IssueTimeTicket())
	NewSetOperation(obj.CreatedAt(), "nested", nested, nested.CreatedAt()).Execute(root)

	removeNested := NewRemoveOperation(obj.CreatedAt(), nested.CreatedAt(), ctx.IssueTimeTicket())
	staleSet := NewSetOperation(nested.CreatedAt(), "x", crdt.NewPrimitiveElement(crdt.NewInt32(9), ctx.IssueTimeTicket()), ctx.IssueTimeTicket())

	ch := NewChange(ctx.ID(), []Operation{removeNested, staleSet}, "")
	if err := ch.Execute(root); err != nil {
		t.Fatalf("Execute: %v, want replay to tolerate a stale op silently", err)
	}
}

func TestPackReportsChangesAndSnapshotPresence(t *testing.T) {
	empty := NewPack("doc-1", doctime.InitialCheckpoint, nil)
	if empty.HasChanges() || empty.HasSnapshot() {
		t.Fatalf("empty Pack reports HasChanges=%v HasSnapshot=%v, want both false", empty.HasChanges(), empty.HasSnapshot())
	}

	withChange := NewPack("doc-1", doctime.InitialCheckpoint, []*Change{NewChange(changeID(1, 0, 1), nil, "")})
	if !withChange.HasChanges() {
		t.Fatalf("HasChanges() = false, want true")
	}

	withSnapshot := &Pack{DocumentKey: "doc-1", Snapshot: []byte(`{"a":1}`)}
	if !withSnapshot.HasSnapshot() {
		t.Fatalf("HasSnapshot() = false, want true")
	}
}
