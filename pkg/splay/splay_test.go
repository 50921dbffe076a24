package splay

import "testing"

type strVal string

func (s strVal) Len() int { return len(s) }

func TestFindWithinSingleNode(t *testing.T) {
	tree := NewTree()
	n := NewNode(strVal("hello"))
	tree.Insert(n)

	found, offset := tree.Find(2)
	if found != n || offset != 2 {
		t.Fatalf("Find(2) = (%v, %d), want (n, 2)", found.Value(), offset)
	}
}

func TestInsertAfterAndFindAcrossNodes(t *testing.T) {
	tree := NewTree()
	a := NewNode(strVal("AB"))
	tree.Insert(a)
	b := NewNode(strVal("CD"))
	tree.InsertAfter(a, b)
	c := NewNode(strVal("EF"))
	tree.InsertAfter(b, c)

	if tree.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", tree.Len())
	}

	found, offset := tree.Find(3)
	if found != b || offset != 1 {
		t.Fatalf("Find(3) = (%v, %d), want (CD, 1)", found.Value(), offset)
	}

	found, offset = tree.Find(5)
	if found != c || offset != 1 {
		t.Fatalf("Find(5) = (%v, %d), want (EF, 1)", found.Value(), offset)
	}
}

func TestDeleteMiddleNode(t *testing.T) {
	tree := NewTree()
	a := NewNode(strVal("AB"))
	tree.Insert(a)
	b := NewNode(strVal("CD"))
	tree.InsertAfter(a, b)
	c := NewNode(strVal("EF"))
	tree.InsertAfter(b, c)

	tree.Delete(b)

	if tree.Len() != 4 {
		t.Fatalf("Len() after delete = %d, want 4", tree.Len())
	}
	found, offset := tree.Find(3)
	if found != c || offset != 1 {
		t.Fatalf("Find(3) after delete = (%v, %d), want (EF, 1)", found.Value(), offset)
	}
}

func TestUpdateSubtreePropagatesWeight(t *testing.T) {
	tree := NewTree()
	a := NewNode(strVal("ABCDEF"))
	tree.Insert(a)
	b := NewNode(strVal("xx"))
	tree.InsertAfter(a, b)

	if tree.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", tree.Len())
	}

	// simulate splitting a's content down to length 3 in place
	a.value = strVal("ABC")
	tree.UpdateSubtree(a)

	if tree.Len() != 5 {
		t.Fatalf("Len() after shrink = %d, want 5", tree.Len())
	}
}
