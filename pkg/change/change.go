package change

import (
	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Change is a batch of Operations committed together under one ChangeID,
// with an optional human-readable message (spec §3.6).
type Change struct {
	id         *doctime.ChangeID
	operations []Operation
	message    string
}

// NewChange builds a Change.
func NewChange(id *doctime.ChangeID, operations []Operation, message string) *Change {
	return &Change{id: id, operations: operations, message: message}
}

// ID returns the change's id.
func (c *Change) ID() *doctime.ChangeID { return c.id }

// Operations returns the change's operations in commit order.
func (c *Change) Operations() []Operation { return c.operations }

// Message returns the change's message, "" if none was given.
func (c *Change) Message() string { return c.message }

// Execute applies every operation against root in order. Each
// Operation.Execute already treats a missing or removed parent as a
// silent no-op, so Execute itself never needs to special-case replay
// against a root that has diverged since this change was created (spec
// §4.5 "Replay contract").
func (c *Change) Execute(root *crdt.Root) error {
	for _, op := range c.operations {
		if err := op.Execute(root); err != nil {
			return err
		}
	}
	return nil
}
