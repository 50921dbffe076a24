package indextree

import "testing"

func buildSample() *Tree {
	root := NewElementNode()
	p1 := NewElementNode()
	p1.InsertChild(NewTextNode("12"))
	p2 := NewElementNode()
	p2.InsertChild(NewTextNode("34"))
	root.InsertChild(p1)
	root.InsertChild(p2)
	return NewTree(root)
}

func TestPaddedSize(t *testing.T) {
	tr := buildSample()
	// root: 2 + p1(2+2) + p2(2+2) = 2+4+4 = 10
	if got := tr.Len(); got != 10 {
		t.Fatalf("Len() = %d, want 10", got)
	}
}

func TestTokensOrder(t *testing.T) {
	tr := buildSample()
	tokens := tr.Tokens()
	if len(tokens) != 8 {
		t.Fatalf("len(Tokens()) = %d, want 8 (root open/close + 2*(p open/close + text))", len(tokens))
	}
	if tokens[0].Type != Start || tokens[len(tokens)-1].Type != End {
		t.Fatalf("Tokens() does not start/end with root boundaries")
	}
}

func TestFindTreePosWithinText(t *testing.T) {
	tr := buildSample()
	// indexes 0 and 1 are the root's and p1's opening boundaries, so
	// index 2 is the start of p1's text node (offset 0 within "12").
	node, offset, err := tr.FindTreePos(2)
	if err != nil {
		t.Fatalf("FindTreePos: %v", err)
	}
	if !node.IsText() || node.Value() != "12" {
		t.Fatalf("FindTreePos(2) landed on %+v, want text node 12", node)
	}
	if offset != 0 {
		t.Fatalf("offset = %d, want 0", offset)
	}
}
