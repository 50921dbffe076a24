package change

import (
	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// AddOperation inserts value into the Array at parentCreatedAt
// immediately after prevCreatedAt (spec §4.2 Array.insert_after, §4.5).
type AddOperation struct {
	baseOperation
	prevCreatedAt *doctime.Ticket
	value         *crdt.Element
}

// NewAddOperation builds an AddOperation.
func NewAddOperation(parentCreatedAt, prevCreatedAt *doctime.Ticket, value *crdt.Element, executedAt *doctime.Ticket) *AddOperation {
	return &AddOperation{
		baseOperation: baseOperation{parentCreatedAt: parentCreatedAt, executedAt: executedAt},
		prevCreatedAt: prevCreatedAt,
		value:         value,
	}
}

// PrevCreatedAt returns the anchor to insert after.
func (op *AddOperation) PrevCreatedAt() *doctime.Ticket { return op.prevCreatedAt }

// Value returns the element being inserted.
func (op *AddOperation) Value() *crdt.Element { return op.value }

func (op *AddOperation) Execute(root *crdt.Root) error {
	parent, ok := resolveParent(root, op.parentCreatedAt)
	if !ok {
		return nil
	}
	arr, ok := parent.AsArray()
	if !ok {
		return typeMismatch("Add", parent, "Array")
	}

	if err := arr.InsertAfter(op.prevCreatedAt, op.value); err != nil {
		return err
	}
	root.RegisterElement(op.value, parent)
	return nil
}
