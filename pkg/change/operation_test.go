package change

import (
	"testing"

	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

func changeActor(n byte) *doctime.ActorID {
	hex := ""
	for i := 0; i < 24; i++ {
		hex += string([]byte{"0123456789abcdef"[n%16]})
	}
	id, err := doctime.NewActorIDFromHex(hex)
	if err != nil {
		panic(err)
	}
	return id
}

func changeID(clientSeq uint32, lamport uint64, n byte) *doctime.ChangeID {
	return doctime.NewChangeID(clientSeq, lamport, changeActor(n))
}

func newTestRoot() (*crdt.Root, *crdt.Element) {
	obj := crdt.NewObjectElement(doctime.InitialTicket)
	return crdt.NewRoot(obj), obj
}

func TestSetOperationBindsKeyAndRegistersElement(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")

	value := crdt.NewPrimitiveElement(crdt.NewInt32(42), ctx.IssueTimeTicket())
	op := NewSetOperation(obj.CreatedAt(), "a", value, value.CreatedAt())
	ctx.Push(op)

	if err := op.Execute(root); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if root.Marshal() != `{"a":42}` {
		t.Fatalf("Marshal() = %s, want {\"a\":42}", root.Marshal())
	}
	if _, ok := root.FindByCreatedAt(value.CreatedAt()); !ok {
		t.Fatalf("Set value was not registered in root's element index")
	}
}

func TestSetOperationOverwriteRegistersShadowedElementForGC(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")
	objBody, _ := obj.AsObject()

	first := crdt.NewPrimitiveElement(crdt.NewInt32(1), ctx.IssueTimeTicket())
	NewSetOperation(obj.CreatedAt(), "a", first, first.CreatedAt()).Execute(root)

	second := crdt.NewPrimitiveElement(crdt.NewInt32(2), ctx.IssueTimeTicket())
	op := NewSetOperation(obj.CreatedAt(), "a", second, second.CreatedAt())
	if err := op.Execute(root); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if root.Marshal() != `{"a":2}` {
		t.Fatalf("Marshal() = %s, want {\"a\":2}", root.Marshal())
	}
	if len(objBody.Elements()) != 2 {
		t.Fatalf("Elements() = %d, want 2 (live binding plus shadowed tombstone)", len(objBody.Elements()))
	}

	purged := root.GarbageCollect(second.CreatedAt())
	if purged == 0 {
		t.Fatalf("GarbageCollect() = 0, want > 0 after overwrite shadowed the old binding")
	}
}

func TestRemoveOperationIsIdempotentWhenParentAlreadyRemoved(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")

	nested := crdt.NewObjectElement(ctx.IssueTimeTicket())
	NewSetOperation(obj.CreatedAt(), "nested", nested, nested.CreatedAt()).Execute(root)

	removedAt := ctx.IssueTimeTicket()
	removeNested := NewRemoveOperation(obj.CreatedAt(), nested.CreatedAt(), removedAt)
	if err := removeNested.Execute(root); err != nil {
		t.Fatalf("Execute remove nested: %v", err)
	}

	// A Set targeting the now-removed nested object must be a silent
	// no-op, not an error, to keep replay idempotent under concurrent
	// deletes (spec §4.5).
	value := crdt.NewPrimitiveElement(crdt.NewInt32(1), ctx.IssueTimeTicket())
	op := NewSetOperation(nested.CreatedAt(), "x", value, value.CreatedAt())
	if err := op.Execute(root); err != nil {
		t.Fatalf("Execute against removed parent returned an error: %v", err)
	}
}

func TestAddMoveRemoveOnArray(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")
	objBody, _ := obj.AsObject()

	arrElem := crdt.NewArrayElement(ctx.IssueTimeTicket())
	NewSetOperation(obj.CreatedAt(), "list", arrElem, arrElem.CreatedAt()).Execute(root)
	arr, _ := arrElem.AsArray()

	head := arr.LastCreatedAt()
	v1 := crdt.NewPrimitiveElement(crdt.NewInt32(1), ctx.IssueTimeTicket())
	if err := NewAddOperation(arrElem.CreatedAt(), head, v1, v1.CreatedAt()).Execute(root); err != nil {
		t.Fatalf("Add v1: %v", err)
	}
	v2 := crdt.NewPrimitiveElement(crdt.NewInt32(2), ctx.IssueTimeTicket())
	if err := NewAddOperation(arrElem.CreatedAt(), v1.CreatedAt(), v2, v2.CreatedAt()).Execute(root); err != nil {
		t.Fatalf("Add v2: %v", err)
	}

	if objBody.Marshal() != `{"list":[1,2]}` {
		t.Fatalf("Marshal() = %s, want {\"list\":[1,2]}", objBody.Marshal())
	}

	moveAt := ctx.IssueTimeTicket()
	if err := NewMoveOperation(arrElem.CreatedAt(), head, v2.CreatedAt(), moveAt).Execute(root); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if objBody.Marshal() != `{"list":[2,1]}` {
		t.Fatalf("Marshal() after move = %s, want {\"list\":[2,1]}", objBody.Marshal())
	}

	removeAt := ctx.IssueTimeTicket()
	if err := NewRemoveOperation(arrElem.CreatedAt(), v1.CreatedAt(), removeAt).Execute(root); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if objBody.Marshal() != `{"list":[2]}` {
		t.Fatalf("Marshal() after remove = %s, want {\"list\":[2]}", objBody.Marshal())
	}
}

func TestIncreaseOperationOnCounter(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")

	counter := crdt.NewCounter32Element(10, ctx.IssueTimeTicket())
	NewSetOperation(obj.CreatedAt(), "hits", counter, counter.CreatedAt()).Execute(root)

	op := NewIncreaseOperation(counter.CreatedAt(), 5, ctx.IssueTimeTicket())
	if err := op.Execute(root); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	c, _ := counter.AsCounter32()
	if c.Value() != 15 {
		t.Fatalf("Value() = %d, want 15", c.Value())
	}
}
