package crdt

import (
	"testing"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

func rootActor(n byte) *doctime.ActorID {
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

func rootTicket(lamport uint64, delim uint32, n byte) *doctime.Ticket {
	return doctime.NewTicket(lamport, delim, rootActor(n))
}

func TestRootFindByCreatedAtResolvesRegisteredElements(t *testing.T) {
	obj := NewObjectElement(rootTicket(0, 0, 1))
	root := NewRoot(obj)

	objBody, _ := obj.AsObject()
	child := NewPrimitiveElement(NewInt32(1), rootTicket(1, 0, 1))
	if _, err := objBody.Set("a", child); err != nil {
		t.Fatalf("Set: %v", err)
	}
	root.RegisterElement(child, obj)

	found, ok := root.FindByCreatedAt(child.CreatedAt())
	if !ok || found != child {
		t.Fatalf("FindByCreatedAt did not resolve the registered child")
	}
}

func TestRootGarbageCollectPurgesRemovedObjectMember(t *testing.T) {
	obj := NewObjectElement(rootTicket(0, 0, 1))
	root := NewRoot(obj)
	objBody, _ := obj.AsObject()

	child := NewPrimitiveElement(NewInt32(1), rootTicket(1, 0, 1))
	objBody.Set("a", child)
	root.RegisterElement(child, obj)

	removedAt := rootTicket(2, 0, 1)
	if _, removed := objBody.RemoveByKey("a", removedAt); !removed {
		t.Fatalf("RemoveByKey did not take effect")
	}
	root.RegisterRemovedElement(child)

	if purged := root.GarbageCollect(removedAt); purged != 1 {
		t.Fatalf("GarbageCollect() = %d, want 1", purged)
	}
	if _, ok := root.FindByCreatedAt(child.CreatedAt()); ok {
		t.Fatalf("child still indexed after GC")
	}
	if len(objBody.Keys()) != 0 {
		t.Fatalf("Keys() = %v, want empty after purge", objBody.Keys())
	}
}

func TestRootDeepCopyIsIndependent(t *testing.T) {
	obj := NewObjectElement(rootTicket(0, 0, 1))
	root := NewRoot(obj)
	objBody, _ := obj.AsObject()
	objBody.Set("a", NewPrimitiveElement(NewInt32(1), rootTicket(1, 0, 1)))

	cp := root.DeepCopy()
	cpBody, _ := cp.Object().AsObject()
	cpBody.Set("b", NewPrimitiveElement(NewInt32(2), rootTicket(2, 0, 1)))

	if root.Marshal() != `{"a":1}` {
		t.Fatalf("original mutated: Marshal() = %s", root.Marshal())
	}
	if cp.Marshal() != `{"a":1,"b":2}` {
		t.Fatalf("copy Marshal() = %s, want both keys", cp.Marshal())
	}
}
