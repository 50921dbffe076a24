// Package crdt implements the conflict-free replicated data types that
// make up a document tree: Primitive, Counter, Object, Array and Text
// (spec §3.3, §4.2, §4.3). The Tree variant lives in the sibling
// pkg/crdttree package and is referenced here only by its root type.
package crdt

import (
	"fmt"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Kind discriminates the variant held by an Element. Per spec §9 the
// element model is a tagged sum type, not an interface hierarchy, so
// that serialisation and deep-copy are total by construction.
type Kind int

const (
	KindPrimitive Kind = iota
	KindCounterI32
	KindCounterI64
	KindObject
	KindArray
	KindText
	KindTree
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "Primitive"
	case KindCounterI32:
		return "Counter32"
	case KindCounterI64:
		return "Counter64"
	case KindObject:
		return "Object"
	case KindArray:
		return "Array"
	case KindText:
		return "Text"
	case KindTree:
		return "Tree"
	default:
		return "Unknown"
	}
}

// Element is the common envelope carried by every node of a document
// tree: identity (createdAt), visibility (removedAt), and for array
// elements, the latest re-anchor (movedAt). Exactly one payload field
// is non-nil, selected by kind.
type Element struct {
	kind      Kind
	createdAt *doctime.Ticket
	movedAt   *doctime.Ticket
	removedAt *doctime.Ticket

	primitive *Primitive
	counter32 *Counter32
	counter64 *Counter64
	object    *Object
	array     *Array
	text      *Text
	tree      TreeElement
}

// TreeElement is satisfied by pkg/crdttree.Tree; it is declared here as
// a minimal interface to avoid a dependency cycle between crdt and
// crdttree (crdttree nodes may themselves hold Elements as attributes).
type TreeElement interface {
	Marshal() string
	DeepCopyTree() TreeElement
	PurgeWithGarbage(minSynced *doctime.Ticket) int
	Snapshot() ([]byte, error)
}

// treeRestorer rebuilds a TreeElement from Snapshot bytes. crdt cannot
// import pkg/crdttree directly (crdttree already imports crdt, to hold
// crdt.Elements as tree attributes), so crdttree registers its restore
// function here via RegisterTreeRestorer instead.
var treeRestorer func(createdAt *doctime.Ticket, data []byte) (TreeElement, error)

// RegisterTreeRestorer installs the function used to rebuild a
// TreeElement from Snapshot bytes during UnmarshalObjectElement. Called
// once from pkg/crdttree's package init.
func RegisterTreeRestorer(fn func(createdAt *doctime.Ticket, data []byte) (TreeElement, error)) {
	treeRestorer = fn
}

func restoreTreeElement(createdAt *doctime.Ticket, data []byte) (TreeElement, error) {
	if treeRestorer == nil {
		return nil, fmt.Errorf("unimplemented: no tree restorer registered")
	}
	return treeRestorer(createdAt, data)
}

func newElement(kind Kind, createdAt *doctime.Ticket) *Element {
	return &Element{kind: kind, createdAt: createdAt}
}

// Kind returns the element's variant.
func (e *Element) Kind() Kind { return e.kind }

// CreatedAt returns the ticket that created this element.
func (e *Element) CreatedAt() *doctime.Ticket { return e.createdAt }

// RemovedAt returns the tombstone ticket, or nil if still live.
func (e *Element) RemovedAt() *doctime.Ticket { return e.removedAt }

// MovedAt returns the latest re-anchor ticket (arrays only).
func (e *Element) MovedAt() *doctime.Ticket { return e.movedAt }

// PositionedAt returns the ticket that determines this element's
// position among siblings: the later of createdAt and movedAt
// (spec §3.3).
func (e *Element) PositionedAt() *doctime.Ticket {
	if e.movedAt != nil && e.movedAt.After(e.createdAt) {
		return e.movedAt
	}
	return e.createdAt
}

// IsRemoved reports whether the element is tombstoned.
func (e *Element) IsRemoved() bool { return e.removedAt != nil }

// Remove tombstones the element at removedAt if that ticket is newer
// than both its creation and any prior removal. Returns whether it took
// effect.
func (e *Element) Remove(removedAt *doctime.Ticket) bool {
	if removedAt == nil {
		return false
	}
	if !removedAt.After(e.createdAt) {
		return false
	}
	if e.removedAt != nil && !removedAt.After(e.removedAt) {
		return false
	}
	e.removedAt = removedAt
	return true
}

// SetMovedAt records a new re-anchor ticket unconditionally; callers
// are expected to have already decided the move should apply.
func (e *Element) SetMovedAt(movedAt *doctime.Ticket) { e.movedAt = movedAt }

// Marshal renders this element (and everything beneath it) as part of
// the deterministic to_sorted_json oracle.
func (e *Element) Marshal() string {
	switch e.kind {
	case KindPrimitive:
		return e.primitive.Marshal()
	case KindCounterI32, KindCounterI64:
		return e.counterMarshal()
	case KindObject:
		return e.object.Marshal()
	case KindArray:
		return e.array.Marshal()
	case KindText:
		return e.text.Marshal()
	case KindTree:
		return e.tree.Marshal()
	default:
		return "null"
	}
}

func (e *Element) counterMarshal() string {
	if e.kind == KindCounterI32 {
		return fmt.Sprintf("%d", e.counter32.Value())
	}
	return fmt.Sprintf("%d", e.counter64.Value())
}

// DeepCopy returns a structurally independent copy of the element tree,
// preserving every ticket.
func (e *Element) DeepCopy() *Element {
	cp := &Element{kind: e.kind, createdAt: e.createdAt, movedAt: e.movedAt, removedAt: e.removedAt}
	switch e.kind {
	case KindPrimitive:
		cp.primitive = e.primitive.DeepCopy()
	case KindCounterI32:
		cp.counter32 = e.counter32.DeepCopy()
	case KindCounterI64:
		cp.counter64 = e.counter64.DeepCopy()
	case KindObject:
		cp.object = e.object.DeepCopy()
	case KindArray:
		cp.array = e.array.DeepCopy()
	case KindText:
		cp.text = e.text.DeepCopy()
	case KindTree:
		cp.tree = e.tree.DeepCopyTree()
	}
	return cp
}

// AsPrimitive returns the Primitive payload, if this element holds one.
func (e *Element) AsPrimitive() (*Primitive, bool) {
	return e.primitive, e.kind == KindPrimitive
}

// AsCounter32 returns the Counter32 payload, if this element holds one.
func (e *Element) AsCounter32() (*Counter32, bool) {
	return e.counter32, e.kind == KindCounterI32
}

// AsCounter64 returns the Counter64 payload, if this element holds one.
func (e *Element) AsCounter64() (*Counter64, bool) {
	return e.counter64, e.kind == KindCounterI64
}

// AsObject returns the Object payload, if this element holds one.
func (e *Element) AsObject() (*Object, bool) {
	return e.object, e.kind == KindObject
}

// AsArray returns the Array payload, if this element holds one.
func (e *Element) AsArray() (*Array, bool) {
	return e.array, e.kind == KindArray
}

// AsText returns the Text payload, if this element holds one.
func (e *Element) AsText() (*Text, bool) {
	return e.text, e.kind == KindText
}

// AsTree returns the Tree payload, if this element holds one.
func (e *Element) AsTree() (TreeElement, bool) {
	return e.tree, e.kind == KindTree
}

// PurgeInternalGarbage drains this element's own internal tombstone
// bookkeeping (a Text's removed runs, a Tree's removed nodes) without
// affecting its standing as a member of its parent; the parent-level
// removal (dropping the element itself once it is tombstoned) is Root's
// job, not the element's (spec §4.3.4, §4.4, §4.6 garbage_collect).
func (e *Element) PurgeInternalGarbage(minSynced *doctime.Ticket) int {
	switch e.kind {
	case KindText:
		return e.text.PurgeTextNodesWithGarbage(minSynced)
	case KindTree:
		return e.tree.PurgeWithGarbage(minSynced)
	default:
		return 0
	}
}

// NewTreeElement wraps an already-constructed pkg/crdttree.Tree as an
// Element, letting the tree and crdt packages stay free of an import
// cycle while still producing a fully dispatchable element.
func NewTreeElement(tree TreeElement, createdAt *doctime.Ticket) *Element {
	e := newElement(KindTree, createdAt)
	e.tree = tree
	return e
}
