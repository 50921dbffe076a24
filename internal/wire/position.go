package wire

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cortexkv/crdtdoc/pkg/crdt"
	"github.com/cortexkv/crdtdoc/pkg/crdttree"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Structural positions (spec §4.3.3, §6) cross the wire as a nested
// message of (created_at ticket, offset[, relative_offset]) rather than
// a bare index, so EditOperation/StyleOperation/TreeEditOperation/
// TreeStyleOperation replay against whatever a remote replica's
// structure looks like instead of re-interpreting an index that may no
// longer name the same place.
const (
	textPosFieldCreatedAt      protowire.Number = 1
	textPosFieldOffset         protowire.Number = 2
	textPosFieldRelativeOffset protowire.Number = 3
)

func appendTextNodePos(b []byte, num protowire.Number, pos crdt.TextNodePos) []byte {
	var inner []byte
	inner = appendTicket(inner, textPosFieldCreatedAt, pos.ID().CreatedAt())
	inner = protowire.AppendTag(inner, textPosFieldOffset, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(pos.ID().Offset()))
	inner = protowire.AppendTag(inner, textPosFieldRelativeOffset, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(pos.RelativeOffset()))

	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	return b
}

func decodeTextNodePos(data []byte) (crdt.TextNodePos, error) {
	var createdAt *doctime.Ticket
	var offset, relativeOffset int

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return crdt.TextNodePos{}, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == textPosFieldCreatedAt && typ == protowire.BytesType:
			t, rest, err := consumeNestedTicket(data)
			if err != nil {
				return crdt.TextNodePos{}, err
			}
			createdAt, data = t, rest
		case num == textPosFieldOffset && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return crdt.TextNodePos{}, protowire.ParseError(m)
			}
			offset, data = int(v), data[m:]
		case num == textPosFieldRelativeOffset && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return crdt.TextNodePos{}, protowire.ParseError(m)
			}
			relativeOffset, data = int(v), data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return crdt.TextNodePos{}, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}

	return crdt.NewTextNodePos(crdt.NewTextNodeID(createdAt, offset), relativeOffset), nil
}

func consumeNestedTextNodePos(data []byte) (crdt.TextNodePos, []byte, error) {
	raw, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return crdt.TextNodePos{}, nil, protowire.ParseError(n)
	}
	pos, err := decodeTextNodePos(raw)
	if err != nil {
		return crdt.TextNodePos{}, nil, err
	}
	return pos, data[n:], nil
}

// Tree NodeIDs carry the same (created_at, offset) shape as a
// TextNodeID, without a relative-offset component since crdttree's
// positions always name an exact node boundary.
const (
	treeNodeIDFieldCreatedAt protowire.Number = 1
	treeNodeIDFieldOffset    protowire.Number = 2
)

func appendTreeNodeID(b []byte, num protowire.Number, id crdttree.NodeID) []byte {
	var inner []byte
	inner = appendTicket(inner, treeNodeIDFieldCreatedAt, id.CreatedAt())
	inner = protowire.AppendTag(inner, treeNodeIDFieldOffset, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(id.Offset()))

	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	return b
}

func decodeTreeNodeID(data []byte) (crdttree.NodeID, error) {
	var createdAt *doctime.Ticket
	var offset int

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return crdttree.NodeID{}, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == treeNodeIDFieldCreatedAt && typ == protowire.BytesType:
			t, rest, err := consumeNestedTicket(data)
			if err != nil {
				return crdttree.NodeID{}, err
			}
			createdAt, data = t, rest
		case num == treeNodeIDFieldOffset && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return crdttree.NodeID{}, protowire.ParseError(m)
			}
			offset, data = int(v), data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return crdttree.NodeID{}, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}

	return crdttree.NewNodeID(createdAt, offset), nil
}

func consumeNestedTreeNodeID(data []byte) (crdttree.NodeID, []byte, error) {
	raw, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return crdttree.NodeID{}, nil, protowire.ParseError(n)
	}
	id, err := decodeTreeNodeID(raw)
	if err != nil {
		return crdttree.NodeID{}, nil, err
	}
	return id, data[n:], nil
}
