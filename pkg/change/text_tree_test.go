package change

import (
	"strings"
	"testing"

	"github.com/cortexkv/crdtdoc/pkg/crdt"
	"github.com/cortexkv/crdtdoc/pkg/crdttree"
)

func TestEditOperationInsertsAndAppliesAttrsToInsertedSpan(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")

	textElem := crdt.NewTextElement(ctx.IssueTimeTicket())
	NewSetOperation(obj.CreatedAt(), "body", textElem, textElem.CreatedAt()).Execute(root)
	txt, _ := textElem.AsText()
	txt.Edit(txt.StartPos(), txt.StartPos(), "hello", ctx.IssueTimeTicket(), nil)

	op, err := NewEditOperation(txt, textElem.CreatedAt(), 0, 0, "hi ", map[string]string{"bold": "true"}, nil, ctx.IssueTimeTicket())
	if err != nil {
		t.Fatalf("NewEditOperation: %v", err)
	}
	if err := op.Execute(root); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(txt.Marshal(), "hi hello") {
		t.Fatalf("Marshal() = %s, want inserted content present", txt.Marshal())
	}
}

func TestEditOperationIsIdempotentWhenParentRemoved(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")

	textElem := crdt.NewTextElement(ctx.IssueTimeTicket())
	NewSetOperation(obj.CreatedAt(), "body", textElem, textElem.CreatedAt()).Execute(root)
	txt, _ := textElem.AsText()

	removedAt := ctx.IssueTimeTicket()
	NewRemoveOperation(obj.CreatedAt(), textElem.CreatedAt(), removedAt).Execute(root)

	op, err := NewEditOperation(txt, textElem.CreatedAt(), 0, 0, "x", nil, nil, ctx.IssueTimeTicket())
	if err != nil {
		t.Fatalf("NewEditOperation: %v", err)
	}
	if err := op.Execute(root); err != nil {
		t.Fatalf("Execute against removed text returned an error: %v", err)
	}
}

func TestStyleOperationStylesExistingRange(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")

	textElem := crdt.NewTextElement(ctx.IssueTimeTicket())
	NewSetOperation(obj.CreatedAt(), "body", textElem, textElem.CreatedAt()).Execute(root)
	txt, _ := textElem.AsText()
	txt.Edit(txt.StartPos(), txt.StartPos(), "hello world", ctx.IssueTimeTicket(), nil)

	op, err := NewStyleOperation(txt, textElem.CreatedAt(), 0, 5, map[string]string{"bold": "true"}, ctx.IssueTimeTicket())
	if err != nil {
		t.Fatalf("NewStyleOperation: %v", err)
	}
	if err := op.Execute(root); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestTreeEditOperationInsertsChild(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")

	treeElem := crdttree.NewTreeElement(ctx.IssueTimeTicket())
	NewSetOperation(obj.CreatedAt(), "doc", treeElem, treeElem.CreatedAt()).Execute(root)

	tree, ok := treeElem.AsTree()
	if !ok {
		t.Fatalf("AsTree() = false")
	}
	concreteTree := tree.(*crdttree.Tree)

	op, err := NewTreeEditOperation(concreteTree, treeElem.CreatedAt(), 0, 0, "", "hi", ctx.IssueTimeTicket())
	if err != nil {
		t.Fatalf("NewTreeEditOperation: %v", err)
	}
	if err := op.Execute(root); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestTreeStyleOperationSetsAndRemovesAttrs(t *testing.T) {
	root, obj := newTestRoot()
	ctx := NewContext(changeID(1, 1, 1), root, "")

	treeElem := crdttree.NewTreeElement(ctx.IssueTimeTicket())
	NewSetOperation(obj.CreatedAt(), "doc", treeElem, treeElem.CreatedAt()).Execute(root)
	tree, ok := treeElem.AsTree()
	if !ok {
		t.Fatalf("AsTree() = false")
	}
	concreteTree := tree.(*crdttree.Tree)

	insertOp, err := NewTreeEditOperation(concreteTree, treeElem.CreatedAt(), 0, 0, "p", "", ctx.IssueTimeTicket())
	if err != nil {
		t.Fatalf("NewTreeEditOperation: %v", err)
	}
	if err := insertOp.Execute(root); err != nil {
		t.Fatalf("Execute insert: %v", err)
	}

	setOp, err := NewTreeStyleOperation(concreteTree, treeElem.CreatedAt(), 0, 1, map[string]string{"align": "center"}, nil, ctx.IssueTimeTicket())
	if err != nil {
		t.Fatalf("NewTreeStyleOperation: %v", err)
	}
	if err := setOp.Execute(root); err != nil {
		t.Fatalf("Execute set: %v", err)
	}

	removeOp, err := NewTreeStyleOperation(concreteTree, treeElem.CreatedAt(), 0, 1, nil, []string{"align"}, ctx.IssueTimeTicket())
	if err != nil {
		t.Fatalf("NewTreeStyleOperation: %v", err)
	}
	if err := removeOp.Execute(root); err != nil {
		t.Fatalf("Execute remove: %v", err)
	}
}
