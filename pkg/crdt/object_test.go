package crdt

import (
	"testing"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

func objActor(n byte) *doctime.ActorID { return arrActor(n) }

func objTicket(lamport uint64, delim uint32, n byte) *doctime.Ticket {
	return doctime.NewTicket(lamport, delim, objActor(n))
}

func TestObjectSetAndGet(t *testing.T) {
	el := NewObjectElement(objTicket(0, 0, 1))
	obj, _ := el.AsObject()

	v := NewPrimitiveElement(NewString("1"), objTicket(1, 0, 1))
	if _, err := obj.Set("k1", v); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := obj.Get("k1")
	if !ok || got != v {
		t.Fatalf("Get(k1) = %v, %v, want %v, true", got, ok, v)
	}
}

func TestObjectSetRejectsReservedSeparator(t *testing.T) {
	el := NewObjectElement(objTicket(0, 0, 1))
	obj, _ := el.AsObject()

	v := NewPrimitiveElement(NewString("1"), objTicket(1, 0, 1))
	if _, err := obj.Set("a.b", v); err == nil {
		t.Fatalf("Set(a.b) should reject the reserved separator")
	}
}

func TestObjectSetOlderTicketLosesSilently(t *testing.T) {
	el := NewObjectElement(objTicket(0, 0, 1))
	obj, _ := el.AsObject()

	newer := NewPrimitiveElement(NewString("new"), objTicket(5, 0, 1))
	if _, err := obj.Set("k", newer); err != nil {
		t.Fatalf("Set newer: %v", err)
	}

	older := NewPrimitiveElement(NewString("old"), objTicket(1, 0, 1))
	shadowed, err := obj.Set("k", older)
	if err != nil {
		t.Fatalf("Set older: %v", err)
	}
	if shadowed != nil {
		t.Fatalf("older write should not shadow anything, got %v", shadowed)
	}

	got, _ := obj.Get("k")
	if got != newer {
		t.Fatalf("Get(k) = %v, want the newer binding to survive", got)
	}
}

func TestObjectScenarioSetThenRemoveMatchesSpec(t *testing.T) {
	// spec §8 scenario 3: set k1="1", k2="2", k3=[1,2]; remove k1,
	// remove array index 0 of k3, remove non-existing k4, remove
	// out-of-range index 2 of k3 -> {"k2":"2","k3":[2]}.
	el := NewObjectElement(objTicket(0, 0, 1))
	obj, _ := el.AsObject()

	k1 := NewPrimitiveElement(NewString("1"), objTicket(1, 0, 1))
	k2 := NewPrimitiveElement(NewString("2"), objTicket(2, 0, 1))
	arrEl := NewArrayElement(objTicket(3, 0, 1))
	arr, _ := arrEl.AsArray()
	a1 := newIntElem(1, objTicket(4, 0, 1))
	a2 := newIntElem(2, objTicket(5, 0, 1))
	if err := arr.InsertAfter(arr.LastCreatedAt(), a1); err != nil {
		t.Fatalf("InsertAfter a1: %v", err)
	}
	if err := arr.InsertAfter(a1.CreatedAt(), a2); err != nil {
		t.Fatalf("InsertAfter a2: %v", err)
	}

	if _, err := obj.Set("k1", k1); err != nil {
		t.Fatalf("Set k1: %v", err)
	}
	if _, err := obj.Set("k2", k2); err != nil {
		t.Fatalf("Set k2: %v", err)
	}
	if _, err := obj.Set("k3", arrEl); err != nil {
		t.Fatalf("Set k3: %v", err)
	}

	if _, ok := obj.RemoveByKey("k1", objTicket(6, 0, 1)); !ok {
		t.Fatalf("RemoveByKey(k1) should have removed the live binding")
	}
	if _, ok := arr.RemoveByIndex(0, objTicket(7, 0, 1)); !ok {
		t.Fatalf("array remove index 0 should succeed")
	}
	if _, ok := obj.RemoveByKey("k4", objTicket(8, 0, 1)); ok {
		t.Fatalf("RemoveByKey(k4) on a missing key should be a no-op")
	}
	if _, ok := arr.RemoveByIndex(2, objTicket(9, 0, 1)); ok {
		t.Fatalf("array remove out-of-range index 2 should be a no-op, not succeed")
	}

	if got, want := obj.Marshal(), `{"k2":"2","k3":[2]}`; got != want {
		t.Fatalf("Marshal() = %s, want %s", got, want)
	}
}

func TestObjectKeysWithPrefix(t *testing.T) {
	el := NewObjectElement(objTicket(0, 0, 1))
	obj, _ := el.AsObject()

	for i, key := range []string{"username", "userage", "age"} {
		v := NewPrimitiveElement(NewString(key), objTicket(uint64(i+1), 0, 1))
		if _, err := obj.Set(key, v); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}

	got := obj.KeysWithPrefix("user")
	if len(got) != 2 || got[0] != "userage" || got[1] != "username" {
		t.Fatalf("KeysWithPrefix(user) = %v, want [userage username]", got)
	}
}

func TestObjectKeysWithPrefixExcludesRemoved(t *testing.T) {
	el := NewObjectElement(objTicket(0, 0, 1))
	obj, _ := el.AsObject()

	v := NewPrimitiveElement(NewString("x"), objTicket(1, 0, 1))
	if _, err := obj.Set("foo", v); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := obj.RemoveByKey("foo", objTicket(2, 0, 1)); !ok {
		t.Fatalf("RemoveByKey should remove foo")
	}

	if got := obj.KeysWithPrefix("foo"); len(got) != 0 {
		t.Fatalf("KeysWithPrefix(foo) = %v, want none (foo is tombstoned)", got)
	}
}
