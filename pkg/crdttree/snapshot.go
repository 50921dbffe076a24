package crdttree

import (
	"encoding/json"
	"sort"
	"unicode/utf16"

	"github.com/cortexkv/crdtdoc/pkg/crdt"
	"github.com/cortexkv/crdtdoc/pkg/indextree"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

func init() {
	crdt.RegisterTreeRestorer(func(createdAt *doctime.Ticket, data []byte) (crdt.TreeElement, error) {
		return RestoreTree(createdAt, data)
	})
}

// snapshotNode mirrors marshalNode's walk but keeps attrs as a plain map
// instead of pre-rendered JSON, since Restore needs them back as a
// map[string]string to replay through Style.
type snapshotNode struct {
	Tag      string            `json:"tag,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Text     string            `json:"text,omitempty"`
	Children []*snapshotNode   `json:"children,omitempty"`
}

// Snapshot serialises the tree's live structure - node tags, attributes
// and text content, in document order - sufficient to rebuild a tree
// with the same Size and node count (spec §6, §8 scenario 6 "Snapshot
// round-trip preserves size and node-count"). Tombstones are not
// preserved: this implementation's GC model already detaches tombstoned
// nodes from the structural tree the moment they are removed (see
// PurgeWithGarbage), so by the time a snapshot is taken there is nothing
// left to round-trip for them.
func (t *Tree) Snapshot() ([]byte, error) {
	children := make([]*snapshotNode, 0, len(t.index.Root().Children()))
	for _, c := range t.index.Root().Children() {
		children = append(children, t.snapshotWalk(c))
	}
	return json.Marshal(&snapshotNode{Children: children})
}

func (t *Tree) snapshotWalk(idx *indextree.Node) *snapshotNode {
	if idx.IsText() {
		return &snapshotNode{Text: idx.Value()}
	}
	decor := t.decorByIndex[idx]
	n := &snapshotNode{Tag: decor.tag}
	if attrs := decor.attrs.Elements(); len(attrs) > 0 {
		n.Attrs = make(map[string]string, len(attrs))
		for k, v := range attrs {
			n.Attrs[k] = v
		}
	}
	for _, c := range idx.Children() {
		n.Children = append(n.Children, t.snapshotWalk(c))
	}
	return n
}

// RestoreTree rebuilds a Tree from bytes produced by Tree.Snapshot,
// replaying the structure as a sequence of Edit/Style calls under
// synthetic, strictly increasing tickets minted off createdAt's actor -
// acceptable since a restored snapshot is a fresh causal starting point,
// not a continuation of the history that produced it.
func RestoreTree(createdAt *doctime.Ticket, data []byte) (*Tree, error) {
	var root snapshotNode
	if len(data) > 0 {
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, err
		}
	}

	tree := NewTree(createdAt)
	lamport := createdAt.Lamport() + 1
	nextTicket := func() *doctime.Ticket {
		t := doctime.NewTicket(lamport, 0, createdAt.ActorID())
		lamport++
		return t
	}

	pos := 0
	var insert func(n *snapshotNode) error
	insert = func(n *snapshotNode) error {
		switch {
		case n.Tag != "":
			if err := tree.EditAt(pos, pos, n.Tag, "", nextTicket()); err != nil {
				return err
			}
			openPos := pos
			pos++
			for _, child := range n.Children {
				if err := insert(child); err != nil {
					return err
				}
			}
			pos++
			if len(n.Attrs) > 0 {
				keys := make([]string, 0, len(n.Attrs))
				for k := range n.Attrs {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				attrs := make(map[string]string, len(n.Attrs))
				for _, k := range keys {
					attrs[k] = n.Attrs[k]
				}
				if err := tree.StyleAt(openPos, openPos+1, attrs, nextTicket()); err != nil {
					return err
				}
			}
		case n.Text != "":
			if err := tree.EditAt(pos, pos, "", n.Text, nextTicket()); err != nil {
				return err
			}
			pos += len(utf16.Encode([]rune(n.Text)))
		}
		return nil
	}

	for _, child := range root.Children {
		if err := insert(child); err != nil {
			return nil, err
		}
	}
	return tree, nil
}
