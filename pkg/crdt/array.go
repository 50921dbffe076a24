package crdt

import (
	"fmt"
	"strings"

	"github.com/cortexkv/crdtdoc/pkg/splay"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// rgaNode is one link of the Array's RGA-ordered list; it doubles as the
// splay.Value backing the index tree, contributing weight 1 while live
// and 0 once tombstoned (spec §3.3, §4.3).
type rgaNode struct {
	elem      *Element
	prev      *rgaNode
	next      *rgaNode
	indexNode *splay.Node
}

func (n *rgaNode) Len() int {
	if n.elem.IsRemoved() {
		return 0
	}
	return 1
}

// Array is a CRDT list ordered by a Replicated Growable Array: concurrent
// inserts at the same anchor are broken newest-first, so every replica
// converges on the same order regardless of delivery order (spec §3.3).
type Array struct {
	createdAt *doctime.Ticket
	movedAt   *doctime.Ticket
	removedAt *doctime.Ticket

	dummyHead          *rgaNode
	last               *rgaNode
	nodeMapByCreatedAt map[string]*rgaNode
	index              *splay.Tree
}

// NewArrayElement wraps a freshly created, empty Array as a document
// Element.
func NewArrayElement(createdAt *doctime.Ticket) *Element {
	e := newElement(KindArray, createdAt)
	head := &rgaNode{elem: &Element{removedAt: doctime.MaxTicket}}
	a := &Array{
		createdAt:          createdAt,
		dummyHead:          head,
		last:               head,
		nodeMapByCreatedAt: make(map[string]*rgaNode),
		index:              splay.NewTree(),
	}
	head.indexNode = a.index.Insert(splay.NewNode(head))
	e.array = a
	return e
}

// LastCreatedAt returns the creation ticket to anchor the next append
// after (the dummy head's sentinel ticket if the array is empty).
func (a *Array) LastCreatedAt() *doctime.Ticket {
	if a.last == a.dummyHead {
		return doctime.InitialTicket
	}
	return a.last.elem.CreatedAt()
}

func (a *Array) find(createdAt *doctime.Ticket) (*rgaNode, bool) {
	if createdAt.Equal(doctime.InitialTicket) {
		return a.dummyHead, true
	}
	n, ok := a.nodeMapByCreatedAt[createdAt.Key()]
	return n, ok
}

// InsertAfter splices value into the list immediately following the
// element created at prevCreatedAt, skipping past any already-present
// nodes whose createdAt sorts after value's (the RGA tie-break rule).
func (a *Array) InsertAfter(prevCreatedAt *doctime.Ticket, value *Element) error {
	prev, ok := a.find(prevCreatedAt)
	if !ok {
		return fmt.Errorf("not found: no array element with ticket %s", prevCreatedAt.AnnotatedString())
	}

	node := &rgaNode{elem: value}
	a.splice(prev, node)
	a.nodeMapByCreatedAt[value.CreatedAt().Key()] = node
	return nil
}

// physicallyUnlink removes node from the linked list and the index tree
// without touching nodeMapByCreatedAt, used by Move to relocate a node.
func (a *Array) physicallyUnlink(node *rgaNode) {
	if node.prev != nil {
		node.prev.next = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	}
	if a.last == node {
		a.last = node.prev
	}
	a.index.Delete(node.indexNode)
	node.prev, node.next = nil, nil
}

func (a *Array) splice(prev *rgaNode, node *rgaNode) {
	next := prev.next
	for next != nil && node.elem.CreatedAt().Compare(next.elem.CreatedAt()) < 0 {
		prev = next
		next = next.next
	}

	node.prev, node.next = prev, next
	prev.next = node
	if next != nil {
		next.prev = node
	} else {
		a.last = node
	}
	node.indexNode = a.index.InsertAfter(prev.indexNode, splay.NewNode(node))
}

// MoveAfter relocates the element created at createdAt to immediately
// follow prevCreatedAt, provided executedAt is newer than any previous
// move or creation of that element (spec §4.3).
func (a *Array) MoveAfter(prevCreatedAt, createdAt, executedAt *doctime.Ticket) error {
	prev, ok := a.find(prevCreatedAt)
	if !ok {
		return fmt.Errorf("not found: no array element with ticket %s", prevCreatedAt.AnnotatedString())
	}
	node, ok := a.nodeMapByCreatedAt[createdAt.Key()]
	if !ok {
		return fmt.Errorf("not found: no array element with ticket %s", createdAt.AnnotatedString())
	}

	if node.elem.MovedAt() != nil && !executedAt.After(node.elem.MovedAt()) {
		return nil
	}
	if !executedAt.After(node.elem.CreatedAt()) {
		return nil
	}

	a.physicallyUnlink(node)
	a.splice(prev, node)
	node.elem.SetMovedAt(executedAt)
	return nil
}

// RemoveByCreatedAt tombstones the element created at createdAt, updating
// the index weight so it drops out of Find results.
func (a *Array) RemoveByCreatedAt(createdAt, executedAt *doctime.Ticket) (*Element, bool) {
	node, ok := a.nodeMapByCreatedAt[createdAt.Key()]
	if !ok {
		return nil, false
	}
	if !node.elem.Remove(executedAt) {
		return node.elem, false
	}
	a.index.UpdateSubtree(node.indexNode)
	return node.elem, true
}

// RemoveByIndex tombstones the live element currently at position idx.
func (a *Array) RemoveByIndex(idx int, executedAt *doctime.Ticket) (*Element, bool) {
	indexNode, offset := a.index.Find(idx)
	if indexNode == nil || offset != 0 {
		return nil, false
	}
	node := indexNode.Value().(*rgaNode)
	if !node.elem.Remove(executedAt) {
		return node.elem, false
	}
	a.index.UpdateSubtree(node.indexNode)
	return node.elem, true
}

// Get returns the live element currently at position idx.
func (a *Array) Get(idx int) (*Element, bool) {
	indexNode, offset := a.index.Find(idx)
	if indexNode == nil || offset != 0 {
		return nil, false
	}
	return indexNode.Value().(*rgaNode).elem, true
}

// GetByCreatedAt returns the element created at the given ticket,
// regardless of liveness.
func (a *Array) GetByCreatedAt(createdAt *doctime.Ticket) (*Element, bool) {
	node, ok := a.nodeMapByCreatedAt[createdAt.Key()]
	if !ok {
		return nil, false
	}
	return node.elem, true
}

// Len returns the number of live elements.
func (a *Array) Len() int {
	return a.index.Len()
}

// Elements returns every live element in document order.
func (a *Array) Elements() []*Element {
	out := make([]*Element, 0, a.index.Len())
	for n := a.dummyHead.next; n != nil; n = n.next {
		if !n.elem.IsRemoved() {
			out = append(out, n.elem)
		}
	}
	return out
}

// AllElements returns every element ever inserted, live or tombstoned, in
// document order; used to walk the whole document subtree when rebuilding
// a Root's element index (spec §4.1 register_element).
func (a *Array) AllElements() []*Element {
	out := make([]*Element, 0, len(a.nodeMapByCreatedAt))
	for n := a.dummyHead.next; n != nil; n = n.next {
		out = append(out, n.elem)
	}
	return out
}

// PurgeElement physically unlinks the node holding elem once it has been
// durably garbage collected (spec §4.6 garbage_collect), dropping it from
// the linked list, the splay index and nodeMapByCreatedAt.
func (a *Array) PurgeElement(elem *Element) {
	node, ok := a.nodeMapByCreatedAt[elem.CreatedAt().Key()]
	if !ok {
		return
	}
	a.physicallyUnlink(node)
	delete(a.nodeMapByCreatedAt, elem.CreatedAt().Key())
}

// Marshal renders the array as a JSON array of its live elements, in
// document order.
func (a *Array) Marshal() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range a.Elements() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(e.Marshal())
	}
	b.WriteByte(']')
	return b.String()
}

// DeepCopy returns a structurally independent copy, preserving every
// ticket, tombstone and move record.
func (a *Array) DeepCopy() *Array {
	cp := &Array{
		createdAt:          a.createdAt,
		movedAt:            a.movedAt,
		removedAt:          a.removedAt,
		nodeMapByCreatedAt: make(map[string]*rgaNode, len(a.nodeMapByCreatedAt)),
		index:              splay.NewTree(),
	}
	head := &rgaNode{elem: &Element{removedAt: doctime.MaxTicket}}
	cp.dummyHead = head
	cp.last = head
	head.indexNode = cp.index.Insert(splay.NewNode(head))

	prev := head
	for n := a.dummyHead.next; n != nil; n = n.next {
		copied := n.elem.DeepCopy()
		node := &rgaNode{elem: copied, prev: prev}
		prev.next = node
		node.indexNode = cp.index.InsertAfter(prev.indexNode, splay.NewNode(node))
		cp.nodeMapByCreatedAt[copied.CreatedAt().Key()] = node
		prev = node
	}
	cp.last = prev
	return cp
}
