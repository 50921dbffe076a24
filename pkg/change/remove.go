package change

import (
	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// RemoveOperation tombstones the element created at targetCreatedAt
// within its parent container, whether that parent is an Object or an
// Array (spec §4.2, §4.5).
type RemoveOperation struct {
	baseOperation
	targetCreatedAt *doctime.Ticket
}

// NewRemoveOperation builds a RemoveOperation.
func NewRemoveOperation(parentCreatedAt, targetCreatedAt *doctime.Ticket, executedAt *doctime.Ticket) *RemoveOperation {
	return &RemoveOperation{
		baseOperation:   baseOperation{parentCreatedAt: parentCreatedAt, executedAt: executedAt},
		targetCreatedAt: targetCreatedAt,
	}
}

// TargetCreatedAt returns the element being removed.
func (op *RemoveOperation) TargetCreatedAt() *doctime.Ticket { return op.targetCreatedAt }

func (op *RemoveOperation) Execute(root *crdt.Root) error {
	parent, ok := resolveParent(root, op.parentCreatedAt)
	if !ok {
		return nil
	}

	switch parent.Kind() {
	case crdt.KindObject:
		obj, _ := parent.AsObject()
		if elem, removed := obj.RemoveByCreatedAt(op.targetCreatedAt, op.executedAt); removed {
			root.RegisterRemovedElement(elem)
		}
	case crdt.KindArray:
		arr, _ := parent.AsArray()
		if elem, removed := arr.RemoveByCreatedAt(op.targetCreatedAt, op.executedAt); removed {
			root.RegisterRemovedElement(elem)
		}
	default:
		return typeMismatch("Remove", parent, "Object or Array")
	}
	return nil
}
