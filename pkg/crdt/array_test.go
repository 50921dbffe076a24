package crdt

import (
	"testing"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

func arrActor(n byte) *doctime.ActorID {
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

func arrTicket(lamport uint64, delim uint32, n byte) *doctime.Ticket {
	return doctime.NewTicket(lamport, delim, arrActor(n))
}

func newIntElem(v int32, createdAt *doctime.Ticket) *Element {
	return NewPrimitiveElement(NewInt32(v), createdAt)
}

func TestArrayAppendInOrder(t *testing.T) {
	el := NewArrayElement(arrTicket(0, 0, 1))
	arr, _ := el.AsArray()

	anchor := arr.LastCreatedAt()
	v1 := newIntElem(1, arrTicket(1, 0, 1))
	if err := arr.InsertAfter(anchor, v1); err != nil {
		t.Fatalf("InsertAfter v1: %v", err)
	}

	v2 := newIntElem(2, arrTicket(2, 0, 1))
	if err := arr.InsertAfter(v1.CreatedAt(), v2); err != nil {
		t.Fatalf("InsertAfter v2: %v", err)
	}

	if arr.Marshal() != "[1,2]" {
		t.Fatalf("Marshal() = %s, want [1,2]", arr.Marshal())
	}
}

func TestArrayConcurrentInsertAtSameAnchorOrdersNewestFirst(t *testing.T) {
	el := NewArrayElement(arrTicket(0, 0, 1))
	arr, _ := el.AsArray()

	head := arr.LastCreatedAt()

	// Two replicas concurrently insert after the same anchor; the
	// later ticket must end up directly after the anchor regardless of
	// application order.
	vLate := newIntElem(20, arrTicket(5, 0, 2))
	vEarly := newIntElem(10, arrTicket(3, 0, 1))

	if err := arr.InsertAfter(head, vEarly); err != nil {
		t.Fatalf("InsertAfter vEarly: %v", err)
	}
	if err := arr.InsertAfter(head, vLate); err != nil {
		t.Fatalf("InsertAfter vLate: %v", err)
	}

	if got := arr.Marshal(); got != "[20,10]" {
		t.Fatalf("Marshal() = %s, want [20,10]", got)
	}
}

func TestArrayRemoveByIndexDropsFromMarshal(t *testing.T) {
	el := NewArrayElement(arrTicket(0, 0, 1))
	arr, _ := el.AsArray()

	anchor := arr.LastCreatedAt()
	v1 := newIntElem(1, arrTicket(1, 0, 1))
	arr.InsertAfter(anchor, v1)
	v2 := newIntElem(2, arrTicket(2, 0, 1))
	arr.InsertAfter(v1.CreatedAt(), v2)

	removed, ok := arr.RemoveByIndex(0, arrTicket(3, 0, 1))
	if !ok || removed != v1 {
		t.Fatalf("RemoveByIndex(0) ok=%v removed=%v", ok, removed)
	}
	if got := arr.Marshal(); got != "[2]" {
		t.Fatalf("Marshal() after remove = %s, want [2]", got)
	}
	if arr.Len() != 1 {
		t.Fatalf("Len() after remove = %d, want 1", arr.Len())
	}
}

func TestArrayMoveAfterRelocates(t *testing.T) {
	el := NewArrayElement(arrTicket(0, 0, 1))
	arr, _ := el.AsArray()

	head := arr.LastCreatedAt()
	v1 := newIntElem(1, arrTicket(1, 0, 1))
	arr.InsertAfter(head, v1)
	v2 := newIntElem(2, arrTicket(2, 0, 1))
	arr.InsertAfter(v1.CreatedAt(), v2)
	v3 := newIntElem(3, arrTicket(3, 0, 1))
	arr.InsertAfter(v2.CreatedAt(), v3)

	// [1,2,3] -> move v3 right after head -> [3,1,2]
	if err := arr.MoveAfter(head, v3.CreatedAt(), arrTicket(4, 0, 1)); err != nil {
		t.Fatalf("MoveAfter: %v", err)
	}
	if got := arr.Marshal(); got != "[3,1,2]" {
		t.Fatalf("Marshal() after move = %s, want [3,1,2]", got)
	}
}

func TestArrayMoveAfterStaleTicketIgnored(t *testing.T) {
	el := NewArrayElement(arrTicket(0, 0, 1))
	arr, _ := el.AsArray()

	head := arr.LastCreatedAt()
	v1 := newIntElem(1, arrTicket(1, 0, 1))
	arr.InsertAfter(head, v1)
	v2 := newIntElem(2, arrTicket(2, 0, 1))
	arr.InsertAfter(v1.CreatedAt(), v2)

	if err := arr.MoveAfter(head, v2.CreatedAt(), arrTicket(10, 0, 1)); err != nil {
		t.Fatalf("MoveAfter: %v", err)
	}
	if got := arr.Marshal(); got != "[2,1]" {
		t.Fatalf("Marshal() after move = %s, want [2,1]", got)
	}

	// A stale move (older than the last applied move) must be ignored.
	if err := arr.MoveAfter(v1.CreatedAt(), v2.CreatedAt(), arrTicket(1, 0, 1)); err != nil {
		t.Fatalf("MoveAfter stale: %v", err)
	}
	if got := arr.Marshal(); got != "[2,1]" {
		t.Fatalf("Marshal() after stale move = %s, want [2,1]", got)
	}
}

func TestArrayDeepCopyIsIndependent(t *testing.T) {
	el := NewArrayElement(arrTicket(0, 0, 1))
	arr, _ := el.AsArray()
	head := arr.LastCreatedAt()
	v1 := newIntElem(1, arrTicket(1, 0, 1))
	arr.InsertAfter(head, v1)

	cp := arr.DeepCopy()
	cp.RemoveByIndex(0, arrTicket(2, 0, 1))

	if arr.Len() != 1 {
		t.Fatalf("original Len() = %d, want 1 (unaffected by copy mutation)", arr.Len())
	}
	if cp.Len() != 0 {
		t.Fatalf("copy Len() = %d, want 0", cp.Len())
	}
}
