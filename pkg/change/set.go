package change

import (
	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// SetOperation binds key to value within the Object at parentCreatedAt,
// overwriting whatever was there if value's ticket is newer (spec §4.2
// Object.set, §4.5).
type SetOperation struct {
	baseOperation
	key   string
	value *crdt.Element
}

// NewSetOperation builds a SetOperation.
func NewSetOperation(parentCreatedAt *doctime.Ticket, key string, value *crdt.Element, executedAt *doctime.Ticket) *SetOperation {
	return &SetOperation{
		baseOperation: baseOperation{parentCreatedAt: parentCreatedAt, executedAt: executedAt},
		key:           key,
		value:         value,
	}
}

// Key returns the target key.
func (op *SetOperation) Key() string { return op.key }

// Value returns the element being bound.
func (op *SetOperation) Value() *crdt.Element { return op.value }

func (op *SetOperation) Execute(root *crdt.Root) error {
	parent, ok := resolveParent(root, op.parentCreatedAt)
	if !ok {
		return nil
	}
	obj, ok := parent.AsObject()
	if !ok {
		return typeMismatch("Set", parent, "Object")
	}

	shadowed, err := obj.Set(op.key, op.value)
	if err != nil {
		return err
	}
	root.RegisterElement(op.value, parent)
	if shadowed != nil {
		root.RegisterRemovedElement(shadowed)
	}
	return nil
}
