package change

import (
	"fmt"

	"github.com/cortexkv/crdtdoc/pkg/crdt"
	"github.com/cortexkv/crdtdoc/pkg/crdttree"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// TreeStyleOperation writes attrsToSet and removes attrsToRemove on every
// element node opening within [fromID, toID) of the Tree at
// parentCreatedAt (spec §4.4 style/remove_style, §4.5). fromID/toID are
// structural NodeID positions resolved once at creation time, for the
// same replay-safety reason TreeEditOperation carries them (spec §4.3.3,
// §6).
type TreeStyleOperation struct {
	baseOperation
	fromID, toID  crdttree.NodeID
	attrsToSet    map[string]string
	attrsToRemove []string
}

// NewTreeStyleOperation builds a TreeStyleOperation, resolving [from, to)
// against tree's current structure into the NodeID pair the operation
// actually carries.
func NewTreeStyleOperation(tree *crdttree.Tree, parentCreatedAt *doctime.Ticket, from, to int, attrsToSet map[string]string, attrsToRemove []string, executedAt *doctime.Ticket) (*TreeStyleOperation, error) {
	fromID, toID, err := tree.IndexRangeToPosRange(from, to)
	if err != nil {
		return nil, err
	}
	return NewTreeStyleOperationFromPos(parentCreatedAt, fromID, toID, attrsToSet, attrsToRemove, executedAt), nil
}

// NewTreeStyleOperationFromPos builds a TreeStyleOperation directly from
// already resolved positions, the shape a decoded wire operation
// carries.
func NewTreeStyleOperationFromPos(parentCreatedAt *doctime.Ticket, fromID, toID crdttree.NodeID, attrsToSet map[string]string, attrsToRemove []string, executedAt *doctime.Ticket) *TreeStyleOperation {
	return &TreeStyleOperation{
		baseOperation: baseOperation{parentCreatedAt: parentCreatedAt, executedAt: executedAt},
		fromID:        fromID,
		toID:          toID,
		attrsToSet:    attrsToSet,
		attrsToRemove: attrsToRemove,
	}
}

// FromID returns the start of the styled range.
func (op *TreeStyleOperation) FromID() crdttree.NodeID { return op.fromID }

// ToID returns the end of the styled range.
func (op *TreeStyleOperation) ToID() crdttree.NodeID { return op.toID }

// AttrsToSet returns the attrs being written.
func (op *TreeStyleOperation) AttrsToSet() map[string]string { return op.attrsToSet }

// AttrsToRemove returns the attr keys being cleared.
func (op *TreeStyleOperation) AttrsToRemove() []string { return op.attrsToRemove }

func (op *TreeStyleOperation) Execute(root *crdt.Root) error {
	parent, ok := resolveParent(root, op.parentCreatedAt)
	if !ok {
		return nil
	}
	treeElem, ok := parent.AsTree()
	if !ok {
		return typeMismatch("TreeStyle", parent, "Tree")
	}
	tree, ok := treeElem.(*crdttree.Tree)
	if !ok {
		return fmt.Errorf("invalid argument: tree element is not a *crdttree.Tree")
	}

	if len(op.attrsToSet) > 0 {
		if err := tree.Style(op.fromID, op.toID, op.attrsToSet, op.executedAt); err != nil {
			return err
		}
	}
	if len(op.attrsToRemove) > 0 {
		if err := tree.RemoveStyle(op.fromID, op.toID, op.attrsToRemove, op.executedAt); err != nil {
			return err
		}
	}
	return nil
}
