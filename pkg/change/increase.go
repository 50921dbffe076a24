package change

import (
	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// IncreaseOperation adds delta to the Counter at parentCreatedAt, which
// is itself the operation's target (a counter has no children to
// address), wrapping on overflow per the counter's own width (spec §3.3,
// §4.5).
type IncreaseOperation struct {
	baseOperation
	delta float64
}

// NewIncreaseOperation builds an IncreaseOperation.
func NewIncreaseOperation(parentCreatedAt *doctime.Ticket, delta float64, executedAt *doctime.Ticket) *IncreaseOperation {
	return &IncreaseOperation{
		baseOperation: baseOperation{parentCreatedAt: parentCreatedAt, executedAt: executedAt},
		delta:         delta,
	}
}

// Delta returns the amount to add.
func (op *IncreaseOperation) Delta() float64 { return op.delta }

func (op *IncreaseOperation) Execute(root *crdt.Root) error {
	target, ok := resolveParent(root, op.parentCreatedAt)
	if !ok {
		return nil
	}
	switch target.Kind() {
	case crdt.KindCounterI32:
		c, _ := target.AsCounter32()
		c.Increase(op.delta)
	case crdt.KindCounterI64:
		c, _ := target.AsCounter64()
		c.Increase(op.delta)
	default:
		return typeMismatch("Increase", target, "Counter")
	}
	return nil
}
