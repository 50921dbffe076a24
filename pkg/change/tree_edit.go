package change

import (
	"fmt"

	"github.com/cortexkv/crdtdoc/pkg/crdt"
	"github.com/cortexkv/crdtdoc/pkg/crdttree"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// TreeEditOperation replaces [fromID, toID) of the Tree at
// parentCreatedAt with a single new child: an element tagged tag, or a
// text node holding content (spec §4.4 edit, §4.5). fromID/toID are
// structural NodeID positions resolved once, against the tree as it
// stood locally at creation time - never raw indices, for the same
// replay-safety reason crdt.EditOperation carries TextNodePos instead of
// ints (spec §4.3.3, §6, §8 "Deterministic convergence"). CRDTTree's
// edit is scoped to one inserted node per operation rather than the
// spec's general contents list, matching pkg/crdttree.Tree.Edit's
// signature; a richer multi-node insert would need a companion
// pkg/crdttree API this implementation does not yet provide.
// maxCreatedAtMapByActor caps per-actor visibility for remote replay
// (spec §4.4 "same per-actor visibility rule as §4.3.1"); it is nil for
// a locally originated edit.
type TreeEditOperation struct {
	baseOperation
	fromID, toID           crdttree.NodeID
	tag                    string
	content                string
	maxCreatedAtMapByActor map[string]*doctime.Ticket
}

// NewTreeEditOperation builds a TreeEditOperation, resolving [from, to)
// against tree's current structure into the NodeID pair the operation
// actually carries. Call this once, locally, at the moment the edit is
// made - not when replaying a remote op, which already carries resolved
// positions via NewTreeEditOperationFromPos.
func NewTreeEditOperation(tree *crdttree.Tree, parentCreatedAt *doctime.Ticket, from, to int, tag, content string, executedAt *doctime.Ticket) (*TreeEditOperation, error) {
	fromID, toID, err := tree.IndexRangeToPosRange(from, to)
	if err != nil {
		return nil, err
	}
	return NewTreeEditOperationFromPos(parentCreatedAt, fromID, toID, tag, content, nil, executedAt), nil
}

// NewTreeEditOperationFromPos builds a TreeEditOperation directly from
// already resolved positions, the shape a decoded wire operation
// carries.
func NewTreeEditOperationFromPos(parentCreatedAt *doctime.Ticket, fromID, toID crdttree.NodeID, tag, content string, maxCreatedAtMapByActor map[string]*doctime.Ticket, executedAt *doctime.Ticket) *TreeEditOperation {
	return &TreeEditOperation{
		baseOperation:          baseOperation{parentCreatedAt: parentCreatedAt, executedAt: executedAt},
		fromID:                 fromID,
		toID:                   toID,
		tag:                    tag,
		content:                content,
		maxCreatedAtMapByActor: maxCreatedAtMapByActor,
	}
}

// FromID returns the start of the replaced range.
func (op *TreeEditOperation) FromID() crdttree.NodeID { return op.fromID }

// ToID returns the end of the replaced range.
func (op *TreeEditOperation) ToID() crdttree.NodeID { return op.toID }

// Tag returns the tag of the inserted element, "" for a text insertion.
func (op *TreeEditOperation) Tag() string { return op.tag }

// Content returns the text being inserted, "" for an element insertion.
func (op *TreeEditOperation) Content() string { return op.content }

// MaxCreatedAtMapByActor returns the per-actor visibility cap this edit
// observed, updated in place by Execute so the caller can forward it to
// the next remote op in the same batch.
func (op *TreeEditOperation) MaxCreatedAtMapByActor() map[string]*doctime.Ticket {
	return op.maxCreatedAtMapByActor
}

func (op *TreeEditOperation) Execute(root *crdt.Root) error {
	parent, ok := resolveParent(root, op.parentCreatedAt)
	if !ok {
		return nil
	}
	treeElem, ok := parent.AsTree()
	if !ok {
		return typeMismatch("TreeEdit", parent, "Tree")
	}
	tree, ok := treeElem.(*crdttree.Tree)
	if !ok {
		return fmt.Errorf("invalid argument: tree element is not a *crdttree.Tree")
	}
	updated, err := tree.Edit(op.fromID, op.toID, op.tag, op.content, op.executedAt, op.maxCreatedAtMapByActor)
	if err != nil {
		return err
	}
	op.maxCreatedAtMapByActor = updated
	return nil
}
