package crdt

import (
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/cortexkv/crdtdoc/pkg/llrb"
	"github.com/cortexkv/crdtdoc/pkg/rht"
	"github.com/cortexkv/crdtdoc/pkg/splay"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// TextNodeID identifies a text node by the ticket that created it plus an
// offset within that ticket's original content, so that splitting a node
// never needs to mint a new ticket (spec §4.3).
type TextNodeID struct {
	createdAt *doctime.Ticket
	offset    int
}

// NewTextNodeID builds a TextNodeID.
func NewTextNodeID(createdAt *doctime.Ticket, offset int) TextNodeID {
	return TextNodeID{createdAt: createdAt, offset: offset}
}

// CreatedAt returns the ticket that minted the original, unsplit node.
func (id TextNodeID) CreatedAt() *doctime.Ticket { return id.createdAt }

// Offset returns the offset of this id's first code unit within the
// originally created node.
func (id TextNodeID) Offset() int { return id.offset }

// Compare orders TextNodeIDs first by created_at, then by offset,
// satisfying llrb.Ordered.
func (id TextNodeID) Compare(other TextNodeID) int {
	if c := id.createdAt.Compare(other.createdAt); c != 0 {
		return c
	}
	switch {
	case id.offset < other.offset:
		return -1
	case id.offset > other.offset:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two ids name the same split point.
func (id TextNodeID) Equal(other TextNodeID) bool { return id.Compare(other) == 0 }

// split returns the id of the right-hand half produced by splitting this
// node's node at offset (relative to this id's own offset).
func (id TextNodeID) split(offset int) TextNodeID {
	return TextNodeID{createdAt: id.createdAt, offset: id.offset + offset}
}

func (id TextNodeID) key() string {
	return fmt.Sprintf("%s:%d", id.createdAt.Key(), id.offset)
}

func (id TextNodeID) String() string {
	return fmt.Sprintf("%s:%d", id.createdAt.AnnotatedString(), id.offset)
}

// TextNodePos is a position within the text, resolved relative to a
// TextNodeID (spec §4.3.3).
type TextNodePos struct {
	id             TextNodeID
	relativeOffset int
}

// NewTextNodePos builds a TextNodePos.
func NewTextNodePos(id TextNodeID, relativeOffset int) TextNodePos {
	return TextNodePos{id: id, relativeOffset: relativeOffset}
}

// ID returns the anchoring node id.
func (p TextNodePos) ID() TextNodeID { return p.id }

// RelativeOffset returns the offset of this position relative to its
// anchoring node id, for wire encoding (spec §6).
func (p TextNodePos) RelativeOffset() int { return p.relativeOffset }

// AbsoluteID resolves the id this position actually names, folding the
// relative offset into the node id's own offset.
func (p TextNodePos) AbsoluteID() TextNodeID {
	return TextNodeID{createdAt: p.id.createdAt, offset: p.id.offset + p.relativeOffset}
}

// TextValue is the RGA-Tree-Split payload: a run of text plus any style
// attributes applied to it as a whole (spec §4.3.2).
type TextValue struct {
	value string
	attrs *rht.RHT
}

// NewTextValue wraps a plain run of text with no attributes.
func NewTextValue(value string) *TextValue {
	return &TextValue{value: value, attrs: rht.New()}
}

// Value returns the run's text content.
func (v *TextValue) Value() string { return v.value }

// Attrs returns the run's style attribute table.
func (v *TextValue) Attrs() *rht.RHT { return v.attrs }

// Len returns the content length in UTF-16 code units, the unit text
// indices are measured in (matching editor conventions).
func (v *TextValue) Len() int { return len(utf16.Encode([]rune(v.value))) }

// Split truncates v to [0, offset) and returns a new TextValue holding
// the remainder, sharing the same attribute table.
func (v *TextValue) Split(offset int) *TextValue {
	units := utf16.Encode([]rune(v.value))
	left := string(utf16.Decode(units[:offset]))
	right := string(utf16.Decode(units[offset:]))
	v.value = left
	return &TextValue{value: right, attrs: v.attrs}
}

func (v *TextValue) deepCopy() *TextValue {
	return &TextValue{value: v.value, attrs: v.attrs.DeepCopy()}
}

// Marshal renders the run as a JSON object of {val, attributes}, omitting
// the attributes key when the run carries none.
func (v *TextValue) Marshal() string {
	if len(v.attrs.Elements()) == 0 {
		return fmt.Sprintf("{%q:%q}", "val", v.value)
	}
	return fmt.Sprintf("{%q:%q,%q:%s}", "val", v.value, "attrs", v.attrs.Marshal())
}

// textNode is one node of the RGA-Tree-Split linked list; it also backs
// the splay index (weight = live content length).
type textNode struct {
	id        TextNodeID
	indexNode *splay.Node
	value     *TextValue
	removedAt *doctime.Ticket

	prev, next         *textNode
	insPrev, insNext   *textNode
}

func (n *textNode) Len() int {
	if n.removedAt != nil {
		return 0
	}
	return n.value.Len()
}

func (n *textNode) isRemoved() bool { return n.removedAt != nil }

// Text is a CRDT-replicated run of editable, stylable text, implemented
// as an RGA-Tree-Split (spec §4.3).
type Text struct {
	createdAt *doctime.Ticket
	movedAt   *doctime.Ticket
	removedAt *doctime.Ticket

	initialHead    *textNode
	last           *textNode
	treeByIndex    *splay.Tree
	treeByID       *llrb.Tree[TextNodeID, *textNode]
	removedNodeMap map[string]*textNode
}

// NewTextElement wraps a freshly created, empty Text as a document
// Element.
func NewTextElement(createdAt *doctime.Ticket) *Element {
	e := newElement(KindText, createdAt)
	head := &textNode{id: TextNodeID{createdAt: doctime.InitialTicket, offset: 0}, value: NewTextValue("")}
	t := &Text{
		createdAt:      createdAt,
		initialHead:    head,
		last:           head,
		treeByIndex:    splay.NewTree(),
		treeByID:       llrb.NewTree[TextNodeID, *textNode](),
		removedNodeMap: make(map[string]*textNode),
	}
	head.indexNode = t.treeByIndex.Insert(splay.NewNode(head))
	t.treeByID.Put(head.id, head)
	e.text = t
	return e
}

// Len returns the live content length in UTF-16 code units.
func (t *Text) Len() int { return t.treeByIndex.Len() }

// String renders the live text content in document order.
func (t *Text) String() string {
	var b strings.Builder
	for n := t.initialHead.next; n != nil; n = n.next {
		if !n.isRemoved() {
			b.WriteString(n.value.Value())
		}
	}
	return b.String()
}

// FindPos resolves the public linear index idx against this text's
// current structure into a TextNodePos: a (createdAt ticket, offset)
// position anchored to whichever node holds that index right now. This
// must be called once, locally, at the point an edit is created - the
// resulting TextNodePos is what crosses the wire and gets replayed,
// never the raw index (spec §4.3.3, §6).
func (t *Text) FindPos(idx int) (TextNodePos, error) {
	indexNode, offset := t.treeByIndex.Find(idx)
	if indexNode == nil {
		if idx == 0 {
			return NewTextNodePos(t.initialHead.id, 0), nil
		}
		return TextNodePos{}, fmt.Errorf("invalid argument: index %d out of range", idx)
	}
	n := indexNode.Value().(*textNode)
	return NewTextNodePos(n.id, offset), nil
}

// FindPosRange resolves a [from, to) public index range into the pair of
// TextNodePos an EditOperation or StyleOperation carries instead of the
// bare indices (spec §4.3.3, §6).
func (t *Text) FindPosRange(from, to int) (TextNodePos, TextNodePos, error) {
	fromPos, err := t.FindPos(from)
	if err != nil {
		return TextNodePos{}, TextNodePos{}, err
	}
	toPos, err := t.FindPos(to)
	if err != nil {
		return TextNodePos{}, TextNodePos{}, err
	}
	return fromPos, toPos, nil
}

// StartPos returns the position at the very beginning of the document,
// the one index->position resolution that is always unambiguous
// regardless of a replica's current structure.
func (t *Text) StartPos() TextNodePos {
	return NewTextNodePos(t.initialHead.id, 0)
}

// findFloorTextNode locates the node whose id is the floor of target,
// confirming the match shares the same created_at (a floor across
// different created_at values is meaningless).
func (t *Text) findFloorTextNode(target TextNodeID) (*textNode, bool) {
	id, n, ok := t.treeByID.Floor(target)
	if !ok || !id.createdAt.Equal(target.createdAt) {
		return nil, false
	}
	return n, true
}

// findTextNodeWithSplit locates the node containing pos, splitting it at
// the boundary if pos falls in its interior, and returns the node
// immediately to the left and to the right of the boundary (right is nil
// when pos names the very end of the document).
func (t *Text) findTextNodeWithSplit(pos TextNodePos, editedAt *doctime.Ticket) (left, right *textNode, err error) {
	absoluteID := pos.AbsoluteID()
	n, ok := t.findFloorTextNode(absoluteID)
	if !ok {
		return nil, nil, fmt.Errorf("not found: no text node for position %s", absoluteID.String())
	}

	relativeOffset := absoluteID.offset - n.id.offset
	switch {
	case relativeOffset > 0 && relativeOffset < n.value.Len():
		right, err := t.splitTextNode(n, relativeOffset)
		if err != nil {
			return nil, nil, err
		}
		n = right
	case relativeOffset > 0:
		n = n.next
	}

	// The head sentinel never holds content; a boundary resolved to it
	// exactly means "the very start of the document", so it must act as
	// the left anchor rather than a right-hand node with no predecessor.
	if n == t.initialHead {
		n = n.next
	}

	// RGA tie-break: walk forward over nodes minted after editedAt so
	// that a remote op never splices ahead of content it didn't see.
	for n != nil && n.next != nil && n.next.id.createdAt.After(editedAt) {
		n = n.next
	}

	if n == nil {
		return t.last, nil, nil
	}
	return n.prev, n, nil
}

// splitTextNode splits n at offset (relative to n's own content, always
// strictly interior), shrinking n in place and linking a new right node
// that shares n's id lineage, document position and insertion lineage.
func (t *Text) splitTextNode(n *textNode, offset int) (*textNode, error) {
	rightValue := n.value.Split(offset)
	right := &textNode{
		id:    n.id.split(offset),
		value: rightValue,
		next:  n.next,
		prev:  n,
	}
	if n.removedAt != nil {
		right.removedAt = n.removedAt
	}
	if n.next != nil {
		n.next.prev = right
	}
	n.next = right

	right.insPrev = n
	if n.insNext != nil {
		right.insNext = n.insNext
		right.insNext.insPrev = right
	}
	n.insNext = right

	right.indexNode = t.treeByIndex.InsertAfter(n.indexNode, splay.NewNode(right))
	t.treeByID.Put(right.id, right)
	if right.next == nil {
		t.last = right
	}
	return right, nil
}

// insertAfter links a freshly minted run of text immediately after
// anchor (the left boundary resolved by Edit).
func (t *Text) insertAfter(anchor *textNode, editedAt *doctime.Ticket, content string) (*textNode, error) {
	node := &textNode{id: TextNodeID{createdAt: editedAt, offset: 0}, value: NewTextValue(content)}
	node.next = anchor.next
	if anchor.next != nil {
		anchor.next.prev = node
	} else {
		t.last = node
	}
	anchor.next = node
	node.prev = anchor
	node.insPrev = anchor

	node.indexNode = t.treeByIndex.InsertAfter(anchor.indexNode, splay.NewNode(node))
	t.treeByID.Put(node.id, node)
	return node, nil
}

// Edit deletes the content spanning [fromPos, toPos) and, if content is
// non-empty, inserts it at the left boundary, applying the per-actor
// visibility rule so concurrent remote deletes cannot remove content
// they never saw (spec §4.3.1). fromPos/toPos are structural positions
// already resolved against some replica's text (spec §4.3.3) - resolving
// them here, by walking the id/offset they name rather than by
// re-interpreting a raw linear index, is what lets the same edit replay
// correctly on a replica whose structure has since diverged (spec §6,
// §8 "Deterministic convergence"). maxCreatedAtMapByActor may be nil for
// local edits.
func (t *Text) Edit(fromPos, toPos TextNodePos, content string, editedAt *doctime.Ticket, maxCreatedAtMapByActor map[string]*doctime.Ticket) (map[string]*doctime.Ticket, []*textNode, error) {
	_, toRight, err := t.findTextNodeWithSplit(toPos, editedAt)
	if err != nil {
		return nil, nil, err
	}
	fromLeft, fromRight, err := t.findTextNodeWithSplit(fromPos, editedAt)
	if err != nil {
		return nil, nil, err
	}

	updatedMaxCreatedAt := map[string]*doctime.Ticket{}
	for actor, ts := range maxCreatedAtMapByActor {
		updatedMaxCreatedAt[actor] = ts
	}

	var gcNodes []*textNode
	candidates := t.findBetween(fromRight, toRight)
	for _, n := range candidates {
		if !t.canDelete(n, editedAt, updatedMaxCreatedAt) {
			continue
		}
		actorHex := n.id.createdAt.ActorIDHex()
		if cur, ok := updatedMaxCreatedAt[actorHex]; !ok || n.id.createdAt.After(cur) {
			updatedMaxCreatedAt[actorHex] = n.id.createdAt
		}
		n.removedAt = editedAt
		t.treeByIndex.UpdateSubtree(n.indexNode)
		t.removedNodeMap[n.id.key()] = n
		gcNodes = append(gcNodes, n)
	}

	if content != "" {
		if _, err := t.insertAfter(fromLeft, editedAt, content); err != nil {
			return nil, nil, err
		}
	}

	return updatedMaxCreatedAt, gcNodes, nil
}

// canDelete reports whether n may be tombstoned by editedAt under the
// per-actor visibility rule: a node is only deletable once editedAt's
// actor has seen everything up to and including n's creation.
func (t *Text) canDelete(n *textNode, editedAt *doctime.Ticket, maxCreatedAtMapByActor map[string]*doctime.Ticket) bool {
	actorHex := n.id.createdAt.ActorIDHex()
	maxCreatedAt, hasMax := maxCreatedAtMapByActor[actorHex]

	var createdOK bool
	if hasMax {
		createdOK = n.id.createdAt.After(maxCreatedAt)
	} else {
		createdOK = true
	}
	if !createdOK {
		return false
	}
	if n.removedAt == nil {
		return true
	}
	return editedAt.After(n.removedAt)
}

func (t *Text) findBetween(from, to *textNode) []*textNode {
	var out []*textNode
	for n := from; n != to; n = n.next {
		if n == nil {
			break
		}
		out = append(out, n)
	}
	return out
}

// Style writes attrs into the RHT of every node fully inside
// [fromPos, toPos), splitting boundary nodes first exactly as Edit does.
// Returns the shadowed attribute nodes, for GC registration. fromPos/
// toPos are resolved structural positions, for the same replay-safety
// reason Edit takes them (spec §4.3.3, §6).
func (t *Text) Style(fromPos, toPos TextNodePos, attrs map[string]string, editedAt *doctime.Ticket) ([]*rht.Node, error) {
	_, toRight, err := t.findTextNodeWithSplit(toPos, editedAt)
	if err != nil {
		return nil, err
	}
	_, fromRight, err := t.findTextNodeWithSplit(fromPos, editedAt)
	if err != nil {
		return nil, err
	}

	var shadowed []*rht.Node
	for _, n := range t.findBetween(fromRight, toRight) {
		if n.isRemoved() {
			continue
		}
		for k, v := range attrs {
			if s := n.value.attrs.Set(k, v, editedAt); s != nil {
				shadowed = append(shadowed, s)
			}
		}
	}
	return shadowed, nil
}

// PurgeTextNodesWithGarbage removes every tombstoned node whose
// removed_at is at or before minSynced from both the splay index, the
// id tree, and the linked lists, returning the count purged (spec
// §4.3.4).
func (t *Text) PurgeTextNodesWithGarbage(minSynced *doctime.Ticket) int {
	purged := 0
	for key, n := range t.removedNodeMap {
		if n.removedAt == nil || n.removedAt.After(minSynced) {
			continue
		}

		if n.prev != nil {
			n.prev.next = n.next
		}
		if n.next != nil {
			n.next.prev = n.prev
		}
		if n.insPrev != nil {
			n.insPrev.insNext = n.insNext
		}
		if n.insNext != nil {
			n.insNext.insPrev = n.insPrev
		}

		t.treeByIndex.Delete(n.indexNode)
		t.treeByID.Delete(n.id)
		delete(t.removedNodeMap, key)
		purged++
	}
	return purged
}

// Marshal renders the text as a JSON array of {val, attrs} run objects,
// in document order, live runs only.
func (t *Text) Marshal() string {
	var b strings.Builder
	b.WriteByte('[')
	first := true
	for n := t.initialHead.next; n != nil; n = n.next {
		if n.isRemoved() {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(n.value.Marshal())
	}
	b.WriteByte(']')
	return b.String()
}

// DeepCopy returns a structurally independent copy, preserving every
// ticket, tombstone and style attribute.
func (t *Text) DeepCopy() *Text {
	cp := &Text{
		createdAt:      t.createdAt,
		movedAt:        t.movedAt,
		removedAt:      t.removedAt,
		initialHead:    &textNode{id: t.initialHead.id, value: NewTextValue("")},
		treeByIndex:    splay.NewTree(),
		treeByID:       llrb.NewTree[TextNodeID, *textNode](),
		removedNodeMap: make(map[string]*textNode),
	}
	cp.initialHead.indexNode = cp.treeByIndex.Insert(splay.NewNode(cp.initialHead))
	cp.treeByID.Put(cp.initialHead.id, cp.initialHead)
	cp.last = cp.initialHead

	prev := cp.initialHead
	for n := t.initialHead.next; n != nil; n = n.next {
		node := &textNode{id: n.id, value: n.value.deepCopy(), removedAt: n.removedAt, prev: prev}
		prev.next = node
		node.indexNode = cp.treeByIndex.InsertAfter(prev.indexNode, splay.NewNode(node))
		cp.treeByID.Put(node.id, node)
		if node.removedAt != nil {
			cp.removedNodeMap[node.id.key()] = node
		}
		prev = node
	}
	cp.last = prev
	return cp
}
