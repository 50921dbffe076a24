package crdt

import (
	"testing"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

func testTicket(lamport uint64) *doctime.Ticket {
	return doctime.NewTicket(lamport, 0, &doctime.InitialActorID)
}

func TestRootSnapshotRoundTripsPrimitivesCountersAndNesting(t *testing.T) {
	root := NewRoot(NewObjectElement(testTicket(0)))
	rootObj, _ := root.Object().AsObject()

	strVal := NewPrimitiveElement(NewString("hello"), testTicket(1))
	rootObj.Set("s", strVal)
	intVal := NewPrimitiveElement(NewInt32(42), testTicket(2))
	rootObj.Set("i", intVal)
	boolVal := NewPrimitiveElement(NewBool(true), testTicket(3))
	rootObj.Set("b", boolVal)
	counter := NewCounter64Element(9, testTicket(4))
	rootObj.Set("c", counter)

	nested := NewObjectElement(testTicket(5))
	nestedObj, _ := nested.AsObject()
	nestedObj.Set("n", NewPrimitiveElement(NewInt64(7), testTicket(6)))
	rootObj.Set("obj", nested)

	arr := NewArrayElement(testTicket(7))
	arrVal, _ := arr.AsArray()
	item1 := NewPrimitiveElement(NewInt32(1), testTicket(8))
	item2 := NewPrimitiveElement(NewInt32(2), testTicket(9))
	arrVal.InsertAfter(doctime.InitialTicket, item1)
	arrVal.InsertAfter(item1.CreatedAt(), item2)
	rootObj.Set("arr", arr)

	before := root.Marshal()

	data, err := root.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restoredObj, err := UnmarshalObjectElement(data)
	if err != nil {
		t.Fatalf("UnmarshalObjectElement: %v", err)
	}
	restoredRoot := NewRoot(restoredObj)

	after := restoredRoot.Marshal()
	if before != after {
		t.Fatalf("snapshot round trip changed JSON:\nbefore: %s\nafter:  %s", before, after)
	}
}

func TestRootSnapshotPreservesTombstones(t *testing.T) {
	root := NewRoot(NewObjectElement(testTicket(0)))
	rootObj, _ := root.Object().AsObject()

	value := NewPrimitiveElement(NewInt32(1), testTicket(1))
	rootObj.Set("a", value)
	removedAt := testTicket(2)
	if !value.Remove(removedAt) {
		t.Fatalf("Remove() = false, want true")
	}

	data, err := root.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	restoredObj, err := UnmarshalObjectElement(data)
	if err != nil {
		t.Fatalf("UnmarshalObjectElement: %v", err)
	}

	obj, _ := restoredObj.AsObject()
	elem, found := obj.memberMapByKey["a"]
	if !found {
		t.Fatalf("member %q not found after restore", "a")
	}
	if !elem.IsRemoved() {
		t.Fatalf("restored element IsRemoved() = false, want true")
	}
	if !elem.RemovedAt().Equal(removedAt) {
		t.Fatalf("restored RemovedAt() = %v, want %v", elem.RemovedAt(), removedAt)
	}
}

func TestPrimitiveRawValueRoundTripsEachValueType(t *testing.T) {
	values := []*Primitive{
		NewNull(),
		NewBool(true),
		NewBool(false),
		NewInt32(-7),
		NewInt64(1 << 40),
		NewFloat64(3.25),
		NewString(`quoted "string" with spaces`),
		NewBytes([]byte{0x01, 0x02, 0x03}),
	}

	for _, p := range values {
		raw := primitiveRawValue(p)
		got, err := primitiveFromRawValue(p.Type(), raw)
		if err != nil {
			t.Fatalf("primitiveFromRawValue(%v, %q): %v", p.Type(), raw, err)
		}
		if got.Marshal() != p.Marshal() {
			t.Fatalf("round trip for type %v: got %s, want %s", p.Type(), got.Marshal(), p.Marshal())
		}
	}
}
