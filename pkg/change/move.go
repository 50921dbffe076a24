package change

import (
	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// MoveOperation re-anchors the element created at targetCreatedAt to
// immediately follow prevCreatedAt within the Array at parentCreatedAt
// (spec §4.2 Array.move_before/after, §4.5).
type MoveOperation struct {
	baseOperation
	prevCreatedAt   *doctime.Ticket
	targetCreatedAt *doctime.Ticket
}

// NewMoveOperation builds a MoveOperation.
func NewMoveOperation(parentCreatedAt, prevCreatedAt, targetCreatedAt *doctime.Ticket, executedAt *doctime.Ticket) *MoveOperation {
	return &MoveOperation{
		baseOperation:   baseOperation{parentCreatedAt: parentCreatedAt, executedAt: executedAt},
		prevCreatedAt:   prevCreatedAt,
		targetCreatedAt: targetCreatedAt,
	}
}

// PrevCreatedAt returns the new anchor to move after.
func (op *MoveOperation) PrevCreatedAt() *doctime.Ticket { return op.prevCreatedAt }

// TargetCreatedAt returns the element being relocated.
func (op *MoveOperation) TargetCreatedAt() *doctime.Ticket { return op.targetCreatedAt }

func (op *MoveOperation) Execute(root *crdt.Root) error {
	parent, ok := resolveParent(root, op.parentCreatedAt)
	if !ok {
		return nil
	}
	arr, ok := parent.AsArray()
	if !ok {
		return typeMismatch("Move", parent, "Array")
	}
	return arr.MoveAfter(op.prevCreatedAt, op.targetCreatedAt, op.executedAt)
}
