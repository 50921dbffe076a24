package change

import (
	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Context is the ChangeContext every update session runs inside: it mints
// tickets for the one Change being built, accumulates its operations, and
// threads element (de)registration back to the document's Root (spec
// §4.1). The context's lamport value is fixed for the whole change - it
// is the local clock value the owning ChangeID already carries when the
// context is opened - and only the delimiter advances per ticket issued,
// mirroring ChangeID.NewTicket's (lamport, delimiter) split.
type Context struct {
	id         *doctime.ChangeID
	root       *crdt.Root
	message    string
	operations []Operation
	delimiter  uint32
	sizeDiff   int
}

// NewContext opens a ChangeContext bound to id, operating against root.
func NewContext(id *doctime.ChangeID, root *crdt.Root, message string) *Context {
	return &Context{id: id, root: root, message: message}
}

// ID returns the change id this context is building toward.
func (c *Context) ID() *doctime.ChangeID { return c.id }

// IssueTimeTicket mints the next ticket for this change: the change's own
// lamport value paired with a fresh, strictly increasing delimiter.
func (c *Context) IssueTimeTicket() *doctime.Ticket {
	t := c.id.NewTicket(c.id.Lamport(), c.delimiter)
	c.delimiter++
	return t
}

// Push records op as part of the change being built.
func (c *Context) Push(op Operation) {
	c.operations = append(c.operations, op)
}

// RegisterElement indexes a newly created element under root.
func (c *Context) RegisterElement(elem *crdt.Element, parent *crdt.Element) {
	c.root.RegisterElement(elem, parent)
}

// RegisterRemovedElement marks elem as tombstoned and pending GC.
func (c *Context) RegisterRemovedElement(elem *crdt.Element) {
	c.root.RegisterRemovedElement(elem)
}

// RegisterGCPair is register_removed_element's sibling for tombstones
// that arise as a side effect of another element's own op (e.g. the
// value Set just shadowed); both resolve to the same removed-element set
// on Root, since a "pair" here needs no more than (elem, elem's already-
// recorded parent) to be collectible later.
func (c *Context) RegisterGCPair(elem *crdt.Element) {
	c.root.RegisterRemovedElement(elem)
}

// Acc accumulates a document size delta for observability.
func (c *Context) Acc(diff int) { c.sizeDiff += diff }

// SizeDiff returns the total size delta accumulated this session.
func (c *Context) SizeDiff() int { return c.sizeDiff }

// HasOperations reports whether any operation was pushed this session.
func (c *Context) HasOperations() bool { return len(c.operations) > 0 }

// ToChange closes the context, producing the Change to append to the
// document's local change log.
func (c *Context) ToChange() *Change {
	return NewChange(c.id, c.operations, c.message)
}
