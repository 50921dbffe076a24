// Package crdttree implements CRDTTree, a CRDT-replicated rich-text tree
// (element nodes with attributes and text nodes) built on top of
// pkg/indextree, used to drive editors such as ProseMirror (spec §4.4).
//
// Public positions are measured in the document's own coordinate space,
// which excludes the synthetic "root" wrapper's own open/close boundary:
// index 0 sits immediately after root's opening boundary. Internally the
// wrapped indextree.Tree counts that boundary, so every public index is
// offset by +1 against the underlying index tree.
package crdttree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cortexkv/crdtdoc/pkg/crdt"
	"github.com/cortexkv/crdtdoc/pkg/indextree"
	"github.com/cortexkv/crdtdoc/pkg/rht"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
	"github.com/xlab/treeprint"
)

// NodeID identifies a tree node by the ticket that created it plus an
// offset, mirroring crdt.TextNodeID's split-without-minting-a-ticket
// scheme: splitting a node keeps its createdAt and bumps offset instead.
type NodeID struct {
	createdAt *doctime.Ticket
	offset    int
}

// NewNodeID builds a NodeID.
func NewNodeID(createdAt *doctime.Ticket, offset int) NodeID {
	return NodeID{createdAt: createdAt, offset: offset}
}

func (id NodeID) key() string {
	return fmt.Sprintf("%s:%d", id.createdAt.Key(), id.offset)
}

// CreatedAt returns the ticket that minted the original, unsplit node.
func (id NodeID) CreatedAt() *doctime.Ticket { return id.createdAt }

// Offset returns id's offset within the originally created node, for
// wire encoding (spec §6).
func (id NodeID) Offset() int { return id.offset }

// treeNode decorates an indextree.Node with CRDT identity, tombstone
// state and RHT-backed attributes.
type treeNode struct {
	id        NodeID
	index     *indextree.Node
	tag       string // element tag name, unused for text nodes
	removedAt *doctime.Ticket
	attrs     *rht.RHT
}

// Tree is a CRDT-replicated tree of element and text nodes, satisfying
// crdt.TreeElement.
type Tree struct {
	createdAt *doctime.Ticket
	removedAt *doctime.Ticket

	index          *indextree.Tree
	nodeMapByID    map[string]*treeNode
	decorByIndex   map[*indextree.Node]*treeNode
	removedNodeMap map[string]*treeNode
}

// NewTree creates a tree rooted at a synthetic element node tagged
// "root".
func NewTree(createdAt *doctime.Ticket) *Tree {
	rootIdx := indextree.NewElementNode()
	rootID := NewNodeID(createdAt, 0)
	rootDecor := &treeNode{id: rootID, index: rootIdx, tag: "root", attrs: rht.New()}

	t := &Tree{
		createdAt:      createdAt,
		index:          indextree.NewTree(rootIdx),
		nodeMapByID:    map[string]*treeNode{rootID.key(): rootDecor},
		decorByIndex:   map[*indextree.Node]*treeNode{rootIdx: rootDecor},
		removedNodeMap: make(map[string]*treeNode),
	}
	return t
}

// NewTreeElement wraps a freshly created Tree as a crdt.Element.
func NewTreeElement(createdAt *doctime.Ticket) *crdt.Element {
	return crdt.NewTreeElement(NewTree(createdAt), createdAt)
}

func (t *Tree) register(n *treeNode) {
	t.nodeMapByID[n.id.key()] = n
	t.decorByIndex[n.index] = n
}

// tombstone detaches n from its parent immediately (keeping the index
// tree's padded sizes consistent with only live content) and records it
// in removedNodeMap purely for GC bookkeeping.
func (t *Tree) tombstone(n *indextree.Node, at *doctime.Ticket) {
	decor, ok := t.decorByIndex[n]
	if !ok {
		return
	}
	if decor.removedAt == nil || at.After(decor.removedAt) {
		decor.removedAt = at
	}
	if parent := n.Parent(); parent != nil {
		if i := parent.ChildIndex(n); i >= 0 {
			parent.RemoveChildAt(i)
		}
	}
	t.removedNodeMap[decor.id.key()] = decor
	delete(t.decorByIndex, n)
	delete(t.nodeMapByID, decor.id.key())
}

// Size returns the tree's content span, excluding the root's own
// boundary (spec §4.4, §8 scenario 6).
func (t *Tree) Size() int {
	return t.index.Len() - 2
}

// Marshal renders the tree as part of the document's to_sorted_json
// oracle.
func (t *Tree) Marshal() string {
	var b strings.Builder
	t.marshalNode(&b, t.index.Root())
	return b.String()
}

func (t *Tree) marshalNode(b *strings.Builder, idx *indextree.Node) {
	if idx.IsText() {
		fmt.Fprintf(b, "%q", idx.Value())
		return
	}
	decor := t.decorByIndex[idx]
	fmt.Fprintf(b, "{%q:%q", "type", decor.tag)
	if attrs := decor.attrs.Elements(); len(attrs) > 0 {
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(`,"attrs":{`)
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(b, "%q:%s", k, attrs[k])
		}
		b.WriteByte('}')
	}
	b.WriteString(`,"children":[`)
	for i, c := range idx.Children() {
		if i > 0 {
			b.WriteByte(',')
		}
		t.marshalNode(b, c)
	}
	b.WriteString("]}")
}

// EditAt replaces the content in the plain public index range [from,to)
// with an element child tagged tag (content=="" for a text insertion) or,
// when tag=="", a text node holding content. The index range is resolved
// against this tree's own current structure, so it is only meaningful for
// a locally originated edit; replaying an edit another replica made must
// go through Edit with the NodeID positions that edit resolved to (spec
// §4.3.3, §6, mirroring crdt.Text's FindPos/Edit split).
func (t *Tree) EditAt(from, to int, tag, content string, editedAt *doctime.Ticket) error {
	fromID, toID, err := t.IndexRangeToPosRange(from, to)
	if err != nil {
		return err
	}
	_, err = t.Edit(fromID, toID, tag, content, editedAt, nil)
	return err
}

// Edit replaces the content spanning [fromID,toID) with an element child
// tagged tag (content=="" for a text insertion) or, when tag=="", a text
// node holding content. fromID/toID are structural positions already
// resolved against some replica's tree (spec §4.3.3) - resolving them
// back to this replica's own current indices here, rather than trusting
// a raw linear index computed elsewhere, is what lets the edit replay
// correctly on a replica whose structure has since diverged (spec §6,
// §8 "Deterministic convergence"). It performs the deletion as a
// document-order stack reparse: surviving close tokens pop whatever
// element is currently absorbing content, regardless of whether that
// element's own open token survived, which is what lets two sibling
// elements merge into one when a deletion spans their shared boundary
// (spec §4.4, scenario 6). Deletion additionally applies the same
// per-actor visibility rule as crdt.Text.canDelete (spec §4.3.1, §4.4
// "same per-actor visibility rule as §4.3.1"), so a concurrent remote
// edit cannot delete a node it never saw; maxCreatedAtMapByActor may be
// nil for a locally originated edit.
func (t *Tree) Edit(fromID, toID NodeID, tag, content string, editedAt *doctime.Ticket, maxCreatedAtMapByActor map[string]*doctime.Ticket) (map[string]*doctime.Ticket, error) {
	from, err := t.indexOf(fromID)
	if err != nil {
		return nil, err
	}
	to, err := t.indexOf(toID)
	if err != nil {
		return nil, err
	}

	size := t.Size()
	if from < 0 || to > size || from > to {
		return nil, fmt.Errorf("invalid argument: edit range [%d,%d) out of bounds [0,%d]", from, to, size)
	}
	if tag != "" && content != "" {
		return nil, fmt.Errorf("invalid argument: edit takes either an element tag or text content, not both")
	}

	updatedMaxCreatedAt := map[string]*doctime.Ticket{}
	for actor, ts := range maxCreatedAtMapByActor {
		updatedMaxCreatedAt[actor] = ts
	}

	if to > from {
		t.deleteRange(from+1, to+1, editedAt, updatedMaxCreatedAt)
	}
	if tag != "" {
		if err := t.insertElementAt(from+1, tag, editedAt); err != nil {
			return nil, err
		}
	}
	if content != "" {
		if err := t.insertTextAt(from+1, content, editedAt); err != nil {
			return nil, err
		}
	}
	return updatedMaxCreatedAt, nil
}

// canDelete reports whether decor may be tombstoned by editedAt under
// the per-actor visibility rule, mirroring crdt.Text.canDelete: a node
// is only deletable once editedAt's actor has seen everything up to and
// including the node's creation.
func (t *Tree) canDelete(decor *treeNode, editedAt *doctime.Ticket, maxCreatedAtMapByActor map[string]*doctime.Ticket) bool {
	actorHex := decor.id.createdAt.ActorIDHex()
	maxCreatedAt, hasMax := maxCreatedAtMapByActor[actorHex]

	var createdOK bool
	if hasMax {
		createdOK = decor.id.createdAt.After(maxCreatedAt)
	} else {
		createdOK = true
	}
	if !createdOK {
		return false
	}
	if decor.removedAt == nil {
		return true
	}
	return editedAt.After(decor.removedAt)
}

// markSeen records decor's createdAt as the new per-actor visibility
// watermark if it is the newest this actor has contributed so far.
func markSeen(decor *treeNode, maxCreatedAtMapByActor map[string]*doctime.Ticket) {
	actorHex := decor.id.createdAt.ActorIDHex()
	if cur, ok := maxCreatedAtMapByActor[actorHex]; !ok || decor.id.createdAt.After(cur) {
		maxCreatedAtMapByActor[actorHex] = decor.id.createdAt
	}
}

func (t *Tree) deleteRange(from, to int, editedAt *doctime.Ticket, maxCreatedAtMapByActor map[string]*doctime.Ticket) {
	type frame struct {
		node     *indextree.Node
		children []*indextree.Node
	}
	var stack []*frame
	pos := 0

	appendToTop := func(n *indextree.Node) {
		if len(stack) == 0 {
			return
		}
		top := stack[len(stack)-1]
		top.children = append(top.children, n)
	}
	closeFrame := func() {
		if len(stack) == 0 {
			return
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		top.node.SetChildren(top.children)
		appendToTop(top.node)
	}

	var walk func(n *indextree.Node)
	walk = func(n *indextree.Node) {
		if n.IsText() {
			runes := []rune(n.Value())
			start := pos
			end := pos + len(runes)
			pos = end

			decor := t.decorByIndex[n]
			deletable := decor == nil || t.canDelete(decor, editedAt, maxCreatedAtMapByActor)

			lo, hi := from, to
			if lo < start {
				lo = start
			}
			if hi > end {
				hi = end
			}
			if lo < hi && deletable {
				if decor != nil {
					markSeen(decor, maxCreatedAtMapByActor)
				}
				kept := string(runes[:lo-start]) + string(runes[hi-start:])
				if kept == "" {
					t.tombstone(n, editedAt)
					return
				}
				n.SetValue(kept)
			}
			appendToTop(n)
			return
		}

		decor := t.decorByIndex[n]
		deletable := decor == nil || t.canDelete(decor, editedAt, maxCreatedAtMapByActor)

		openIdx := pos
		pos++
		openDeleted := openIdx >= from && openIdx < to && deletable
		if openDeleted && decor != nil {
			markSeen(decor, maxCreatedAtMapByActor)
		}
		if !openDeleted {
			stack = append(stack, &frame{node: n})
		}

		for _, c := range n.Children() {
			walk(c)
		}

		closeIdx := pos
		pos++
		closeDeleted := closeIdx >= from && closeIdx < to && deletable

		if openDeleted {
			t.tombstone(n, editedAt)
		}
		if !closeDeleted {
			closeFrame()
		}
	}

	walk(t.index.Root())
}

func (t *Tree) insertTextAt(pos int, content string, editedAt *doctime.Ticket) error {
	node, offset, err := t.index.FindTreePos(pos)
	if err != nil {
		return err
	}
	newNode := indextree.NewTextNode(content)
	t.register(&treeNode{id: NewNodeID(editedAt, 0), index: newNode, attrs: rht.New()})

	if !node.IsText() {
		return node.InsertChildAt(offset, newNode)
	}

	parent := node.Parent()
	idx := parent.ChildIndex(node)
	decor := t.decorByIndex[node]
	runes := []rune(node.Value())
	switch {
	case offset <= 0:
		return parent.InsertChildAt(idx, newNode)
	case offset >= len(runes):
		return parent.InsertChildAt(idx+1, newNode)
	default:
		left := string(runes[:offset])
		right := string(runes[offset:])
		node.SetValue(left)
		rightNode := indextree.NewTextNode(right)
		t.register(&treeNode{id: NewNodeID(decor.id.createdAt, decor.id.offset+offset), index: rightNode, attrs: decor.attrs.DeepCopy()})
		if err := parent.InsertChildAt(idx+1, newNode); err != nil {
			return err
		}
		return parent.InsertChildAt(idx+2, rightNode)
	}
}

func (t *Tree) insertElementAt(pos int, tag string, editedAt *doctime.Ticket) error {
	node, offset, err := t.index.FindTreePos(pos)
	if err != nil {
		return err
	}
	if node.IsText() {
		return fmt.Errorf("invalid argument: cannot insert an element inside a text node")
	}
	newIdx := indextree.NewElementNode()
	decor := &treeNode{id: NewNodeID(editedAt, 0), index: newIdx, tag: tag, attrs: rht.New()}
	t.register(decor)
	return node.InsertChildAt(offset, newIdx)
}

// StyleAt writes attrs into the RHT of every element node whose opening
// boundary falls within the plain public index range [from,to), resolved
// against this tree's own current structure - only meaningful for a
// locally originated style (spec §4.3.3, §6, mirroring EditAt).
func (t *Tree) StyleAt(from, to int, attrs map[string]string, editedAt *doctime.Ticket) error {
	fromID, toID, err := t.IndexRangeToPosRange(from, to)
	if err != nil {
		return err
	}
	return t.Style(fromID, toID, attrs, editedAt)
}

// RemoveStyleAt is RemoveStyle's index-range counterpart to StyleAt.
func (t *Tree) RemoveStyleAt(from, to int, keys []string, editedAt *doctime.Ticket) error {
	fromID, toID, err := t.IndexRangeToPosRange(from, to)
	if err != nil {
		return err
	}
	return t.RemoveStyle(fromID, toID, keys, editedAt)
}

// Style writes attrs into the RHT of every element node whose opening
// boundary falls within [fromID,toID). fromID/toID are structural
// positions already resolved against some replica's tree, resolved back
// to this replica's own current indices here for the same replay-safety
// reason Edit takes NodeID positions (spec §4.3.3, §6).
func (t *Tree) Style(fromID, toID NodeID, attrs map[string]string, editedAt *doctime.Ticket) error {
	from, to, err := t.PosRangeToIndexRange(fromID, toID)
	if err != nil {
		return err
	}
	return t.eachOpenIn(from, to, func(decor *treeNode) {
		for k, v := range attrs {
			decor.attrs.Set(k, v, editedAt)
		}
	})
}

// RemoveStyle removes the given attribute keys from every element node
// whose opening boundary falls within [fromID,toID), resolved the same
// way Style resolves its range.
func (t *Tree) RemoveStyle(fromID, toID NodeID, keys []string, editedAt *doctime.Ticket) error {
	from, to, err := t.PosRangeToIndexRange(fromID, toID)
	if err != nil {
		return err
	}
	return t.eachOpenIn(from, to, func(decor *treeNode) {
		for _, k := range keys {
			decor.attrs.Remove(k, editedAt)
		}
	})
}

func (t *Tree) eachOpenIn(from, to int, fn func(*treeNode)) error {
	size := t.Size()
	if from < 0 || to > size || from > to {
		return fmt.Errorf("invalid argument: range [%d,%d) out of bounds [0,%d]", from, to, size)
	}
	lo, hi := from+1, to+1
	pos := 0
	root := t.index.Root()

	var walk func(n *indextree.Node)
	walk = func(n *indextree.Node) {
		if n.IsText() {
			pos += n.Len()
			return
		}
		openIdx := pos
		pos++
		if n != root && openIdx >= lo && openIdx < hi {
			if decor := t.decorByIndex[n]; decor != nil {
				fn(decor)
			}
		}
		for _, c := range n.Children() {
			walk(c)
		}
		pos++
	}
	walk(root)
	return nil
}

// Remove tombstones the subtree rooted at id, provided executedAt is
// newer than the node's creation and any prior removal.
func (t *Tree) Remove(id NodeID, executedAt *doctime.Ticket) error {
	n, ok := t.nodeMapByID[id.key()]
	if !ok {
		return fmt.Errorf("not found: no tree node with id %s", id.key())
	}
	if !executedAt.After(n.id.createdAt) {
		return nil
	}
	if n.removedAt != nil && !executedAt.After(n.removedAt) {
		return nil
	}
	t.tombstone(n.index, executedAt)
	return nil
}

// PathToIndex converts a root-relative child-offset path to an
// indextree-internal linear index (spec §4.4 path_to_pos).
func (t *Tree) PathToIndex(path []int) (int, error) {
	return t.index.PathToIndex(path)
}

// IndexToPath converts an indextree-internal linear index to a
// root-relative child-offset path (spec §4.4 pos_to_path).
func (t *Tree) IndexToPath(index int) ([]int, error) {
	return t.index.IndexToPath(index)
}

// IndexRangeToPosRange converts a public [from,to) index range into the
// pair of NodeIDs that bound it, the representation remote presence
// updates exchange so a later local edit doesn't invalidate positions a
// peer is still tracking (spec §9 Open Question: JSONTree keeps
// presence-driven ranges instead of a select op or text event stream).
func (t *Tree) IndexRangeToPosRange(from, to int) (NodeID, NodeID, error) {
	fromNode, _, err := t.index.FindTreePos(from + 1)
	if err != nil {
		return NodeID{}, NodeID{}, err
	}
	toNode, _, err := t.index.FindTreePos(to + 1)
	if err != nil {
		return NodeID{}, NodeID{}, err
	}
	fromDecor, ok := t.decorByIndex[fromNode]
	if !ok {
		return NodeID{}, NodeID{}, fmt.Errorf("not found: no id for position %d", from)
	}
	toDecor, ok := t.decorByIndex[toNode]
	if !ok {
		return NodeID{}, NodeID{}, fmt.Errorf("not found: no id for position %d", to)
	}
	return fromDecor.id, toDecor.id, nil
}

// PosRangeToIndexRange resolves a pair of NodeIDs back to the public
// index range they currently bound, following the live node even if it
// has since been split or moved within the tree.
func (t *Tree) PosRangeToIndexRange(from, to NodeID) (int, int, error) {
	fromIdx, err := t.indexOf(from)
	if err != nil {
		return 0, 0, err
	}
	toIdx, err := t.indexOf(to)
	if err != nil {
		return 0, 0, err
	}
	return fromIdx, toIdx, nil
}

func (t *Tree) indexOf(id NodeID) (int, error) {
	n, ok := t.nodeMapByID[id.key()]
	if !ok {
		return 0, fmt.Errorf("not found: no tree node with id %s", id.key())
	}
	idx := 0
	var walk func(cur *indextree.Node) bool
	walk = func(cur *indextree.Node) bool {
		if cur == n.index {
			return true
		}
		if cur.IsText() {
			idx += cur.Len()
			return false
		}
		idx++
		for _, c := range cur.Children() {
			if walk(c) {
				return true
			}
		}
		idx++
		return false
	}
	walk(t.index.Root())
	return idx - 1, nil
}

// PurgeWithGarbage drains the tombstone bookkeeping map for nodes
// removed at or before minSynced, returning the count purged. Because
// Edit and Remove already detach tombstoned nodes from the structural
// tree immediately (so Size stays accurate), this only needs to drop
// their bookkeeping entries (spec §4.4, §9 GC purge order: values
// before nodes — here realised as detach-then-bookkeep for every
// removal, so attribute and node GC never race).
func (t *Tree) PurgeWithGarbage(minSynced *doctime.Ticket) int {
	purged := 0
	for key, n := range t.removedNodeMap {
		if n.removedAt == nil || n.removedAt.After(minSynced) {
			continue
		}
		delete(t.removedNodeMap, key)
		purged++
	}
	return purged
}

// Dump renders the tree as an indented ASCII tree for debugging,
// labelling each element node with its tag and live attributes and each
// text node with its quoted value.
func (t *Tree) Dump() string {
	tree := treeprint.New()
	t.addBranch(tree, t.index.Root())
	return tree.String()
}

func (t *Tree) addBranch(parent treeprint.Tree, idx *indextree.Node) {
	if idx.IsText() {
		parent.AddNode(fmt.Sprintf("%q", idx.Value()))
		return
	}
	decor := t.decorByIndex[idx]
	label := decor.tag
	if attrs := decor.attrs.Elements(); len(attrs) > 0 {
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%s", k, attrs[k])
		}
		label = fmt.Sprintf("%s (%s)", label, strings.Join(parts, " "))
	}
	branch := parent.AddBranch(label)
	for _, c := range idx.Children() {
		t.addBranch(branch, c)
	}
}

// DeepCopyTree returns a structurally independent copy, satisfying
// crdt.TreeElement.
func (t *Tree) DeepCopyTree() crdt.TreeElement {
	return t.DeepCopy()
}

// DeepCopy returns a structurally independent copy of the tree.
func (t *Tree) DeepCopy() *Tree {
	cp := &Tree{
		createdAt:      t.createdAt,
		removedAt:      t.removedAt,
		nodeMapByID:    make(map[string]*treeNode),
		decorByIndex:   make(map[*indextree.Node]*treeNode),
		removedNodeMap: make(map[string]*treeNode),
	}

	var copyNode func(n *indextree.Node) *indextree.Node
	copyNode = func(n *indextree.Node) *indextree.Node {
		decor := t.decorByIndex[n]
		if n.IsText() {
			nn := indextree.NewTextNode(n.Value())
			cp.register(&treeNode{id: decor.id, index: nn, attrs: decor.attrs.DeepCopy()})
			return nn
		}
		nn := indextree.NewElementNode()
		cp.register(&treeNode{id: decor.id, index: nn, tag: decor.tag, attrs: decor.attrs.DeepCopy()})
		children := make([]*indextree.Node, 0, len(n.Children()))
		for _, c := range n.Children() {
			children = append(children, copyNode(c))
		}
		nn.SetChildren(children)
		return nn
	}

	cp.index = indextree.NewTree(copyNode(t.index.Root()))
	return cp
}
