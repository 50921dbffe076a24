package change

import (
	"unicode/utf16"

	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// EditOperation replaces [fromPos, toPos) of the Text at parentCreatedAt
// with content, optionally styling the freshly inserted run with attrs
// (spec §4.3.1, §4.5). fromPos/toPos are structural positions resolved
// once, against the text as it stood locally at creation time - never
// raw indices, since a raw index re-interpreted against a remote
// replica's structurally diverged text names a different place
// entirely (spec §4.3.3, §6, §8 "Deterministic convergence").
// maxCreatedAtMapByActor caps per-actor visibility for remote replay; it
// is nil for a locally originated edit.
type EditOperation struct {
	baseOperation
	fromPos, toPos         crdt.TextNodePos
	content                string
	attrs                  map[string]string
	maxCreatedAtMapByActor map[string]*doctime.Ticket
}

// NewEditOperation builds an EditOperation, resolving [from, to) against
// txt's current structure into the TextNodePos pair the operation
// actually carries. Call this once, locally, at the moment the edit is
// made - not when replaying a remote op, which already carries resolved
// positions via NewEditOperationFromPos.
func NewEditOperation(txt *crdt.Text, parentCreatedAt *doctime.Ticket, from, to int, content string, attrs map[string]string, maxCreatedAtMapByActor map[string]*doctime.Ticket, executedAt *doctime.Ticket) (*EditOperation, error) {
	fromPos, toPos, err := txt.FindPosRange(from, to)
	if err != nil {
		return nil, err
	}
	return NewEditOperationFromPos(parentCreatedAt, fromPos, toPos, content, attrs, maxCreatedAtMapByActor, executedAt), nil
}

// NewEditOperationFromPos builds an EditOperation directly from already
// resolved positions, the shape a decoded wire operation carries.
func NewEditOperationFromPos(parentCreatedAt *doctime.Ticket, fromPos, toPos crdt.TextNodePos, content string, attrs map[string]string, maxCreatedAtMapByActor map[string]*doctime.Ticket, executedAt *doctime.Ticket) *EditOperation {
	return &EditOperation{
		baseOperation:          baseOperation{parentCreatedAt: parentCreatedAt, executedAt: executedAt},
		fromPos:                fromPos,
		toPos:                  toPos,
		content:                content,
		attrs:                  attrs,
		maxCreatedAtMapByActor: maxCreatedAtMapByActor,
	}
}

// MaxCreatedAtMapByActor returns the per-actor visibility cap this edit
// observed, updated in place by Execute so the caller can forward it to
// the next remote op in the same batch.
func (op *EditOperation) MaxCreatedAtMapByActor() map[string]*doctime.Ticket {
	return op.maxCreatedAtMapByActor
}

// FromPos returns the start of the replaced range.
func (op *EditOperation) FromPos() crdt.TextNodePos { return op.fromPos }

// ToPos returns the end of the replaced range.
func (op *EditOperation) ToPos() crdt.TextNodePos { return op.toPos }

// Content returns the text being inserted.
func (op *EditOperation) Content() string { return op.content }

// Attrs returns the attrs applied to the freshly inserted run, if any.
func (op *EditOperation) Attrs() map[string]string { return op.attrs }

func (op *EditOperation) Execute(root *crdt.Root) error {
	parent, ok := resolveParent(root, op.parentCreatedAt)
	if !ok {
		return nil
	}
	txt, ok := parent.AsText()
	if !ok {
		return typeMismatch("Edit", parent, "Text")
	}

	updated, _, err := txt.Edit(op.fromPos, op.toPos, op.content, op.executedAt, op.maxCreatedAtMapByActor)
	if err != nil {
		return err
	}
	op.maxCreatedAtMapByActor = updated

	if op.content != "" && len(op.attrs) > 0 {
		// The freshly inserted run is always anchored at editedAt with
		// offset 0 (see Text.insertAfter) - styling it by that ticket
		// rather than by re-deriving an index keeps this step as
		// replay-safe as the edit it follows.
		width := len(utf16.Encode([]rune(op.content)))
		insertStart := crdt.NewTextNodePos(crdt.NewTextNodeID(op.executedAt, 0), 0)
		insertEnd := crdt.NewTextNodePos(crdt.NewTextNodeID(op.executedAt, 0), width)
		if _, err := txt.Style(insertStart, insertEnd, op.attrs, op.executedAt); err != nil {
			return err
		}
	}
	return nil
}
