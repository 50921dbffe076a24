package change

import (
	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// StyleOperation writes attrs into the RHT of every run covering
// [fromPos, toPos) in the Text at parentCreatedAt (spec §4.3.2, §4.5).
// fromPos/toPos are structural positions resolved once at creation time,
// for the same replay-safety reason EditOperation carries them instead
// of raw indices (spec §4.3.3, §6).
type StyleOperation struct {
	baseOperation
	fromPos, toPos crdt.TextNodePos
	attrs          map[string]string
}

// NewStyleOperation builds a StyleOperation, resolving [from, to)
// against txt's current structure into the TextNodePos pair the
// operation actually carries.
func NewStyleOperation(txt *crdt.Text, parentCreatedAt *doctime.Ticket, from, to int, attrs map[string]string, executedAt *doctime.Ticket) (*StyleOperation, error) {
	fromPos, toPos, err := txt.FindPosRange(from, to)
	if err != nil {
		return nil, err
	}
	return NewStyleOperationFromPos(parentCreatedAt, fromPos, toPos, attrs, executedAt), nil
}

// NewStyleOperationFromPos builds a StyleOperation directly from already
// resolved positions, the shape a decoded wire operation carries.
func NewStyleOperationFromPos(parentCreatedAt *doctime.Ticket, fromPos, toPos crdt.TextNodePos, attrs map[string]string, executedAt *doctime.Ticket) *StyleOperation {
	return &StyleOperation{
		baseOperation: baseOperation{parentCreatedAt: parentCreatedAt, executedAt: executedAt},
		fromPos:       fromPos,
		toPos:         toPos,
		attrs:         attrs,
	}
}

// FromPos returns the start of the styled range.
func (op *StyleOperation) FromPos() crdt.TextNodePos { return op.fromPos }

// ToPos returns the end of the styled range.
func (op *StyleOperation) ToPos() crdt.TextNodePos { return op.toPos }

// Attrs returns the attrs being written.
func (op *StyleOperation) Attrs() map[string]string { return op.attrs }

func (op *StyleOperation) Execute(root *crdt.Root) error {
	parent, ok := resolveParent(root, op.parentCreatedAt)
	if !ok {
		return nil
	}
	txt, ok := parent.AsText()
	if !ok {
		return typeMismatch("Style", parent, "Text")
	}
	_, err := txt.Style(op.fromPos, op.toPos, op.attrs, op.executedAt)
	return err
}
