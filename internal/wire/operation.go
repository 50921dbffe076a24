package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cortexkv/crdtdoc/pkg/change"
	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// OperationKind tags which of change's nine Operation variants a wire
// Operation message carries, standing in for a protobuf oneof (spec
// §3.6, §4.2-§4.4).
type OperationKind int32

const (
	OpSet OperationKind = iota
	OpAdd
	OpMove
	OpRemove
	OpEdit
	OpStyle
	OpIncrease
	OpTreeEdit
	OpTreeStyle
)

const (
	opFieldKind            protowire.Number = 1
	opFieldParentCreatedAt protowire.Number = 2
	opFieldExecutedAt      protowire.Number = 3
	opFieldKey             protowire.Number = 4
	opFieldValueBytes      protowire.Number = 5
	opFieldPrevCreatedAt   protowire.Number = 6
	opFieldTargetCreatedAt protowire.Number = 7
	// opFieldFrom/opFieldTo carry a structural position (BytesType nested
	// message) for every operation kind that uses them: a
	// crdt.TextNodePos for Edit/Style, a crdttree.NodeID for
	// TreeEdit/TreeStyle (spec §4.3.3, §6). Decode defers interpreting
	// the bytes until the operation kind is known.
	opFieldFrom            protowire.Number = 8
	opFieldTo              protowire.Number = 9
	opFieldContent         protowire.Number = 10
	opFieldAttrs           protowire.Number = 11
	opFieldDelta           protowire.Number = 12
	opFieldTag             protowire.Number = 13
	opFieldAttrsToRemove   protowire.Number = 14
	opFieldMaxCreatedAt    protowire.Number = 15
)

const (
	attrEntryFieldKey   protowire.Number = 1
	attrEntryFieldValue protowire.Number = 2
)

const (
	actorTicketFieldActor  protowire.Number = 1
	actorTicketFieldTicket protowire.Number = 2
)

func appendAttrs(b []byte, num protowire.Number, attrs map[string]string) []byte {
	for k, v := range attrs {
		var entry []byte
		entry = protowire.AppendTag(entry, attrEntryFieldKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, attrEntryFieldValue, protowire.BytesType)
		entry = protowire.AppendString(entry, v)

		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func decodeAttrEntry(data []byte) (string, string, error) {
	var key, value string
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", "", protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == attrEntryFieldKey && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return "", "", protowire.ParseError(m)
			}
			key = v
			data = data[m:]
		case num == attrEntryFieldValue && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return "", "", protowire.ParseError(m)
			}
			value = v
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return "", "", protowire.ParseError(m)
			}
			data = data[m:]
		}
	}
	return key, value, nil
}

// EncodeOperation renders a single change.Operation as a wire message.
func EncodeOperation(op change.Operation) ([]byte, error) {
	var b []byte

	appendKind := func(kind OperationKind) {
		b = protowire.AppendTag(b, opFieldKind, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(kind))
	}

	b = appendTicket(b, opFieldParentCreatedAt, op.ParentCreatedAt())
	b = appendTicket(b, opFieldExecutedAt, op.ExecutedAt())

	switch o := op.(type) {
	case *change.SetOperation:
		appendKind(OpSet)
		b = protowire.AppendTag(b, opFieldKey, protowire.BytesType)
		b = protowire.AppendString(b, o.Key())
		valueBytes, err := crdt.MarshalElement(o.Value())
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, opFieldValueBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, valueBytes)

	case *change.AddOperation:
		appendKind(OpAdd)
		b = appendTicket(b, opFieldPrevCreatedAt, o.PrevCreatedAt())
		valueBytes, err := crdt.MarshalElement(o.Value())
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, opFieldValueBytes, protowire.BytesType)
		b = protowire.AppendBytes(b, valueBytes)

	case *change.MoveOperation:
		appendKind(OpMove)
		b = appendTicket(b, opFieldPrevCreatedAt, o.PrevCreatedAt())
		b = appendTicket(b, opFieldTargetCreatedAt, o.TargetCreatedAt())

	case *change.RemoveOperation:
		appendKind(OpRemove)
		b = appendTicket(b, opFieldTargetCreatedAt, o.TargetCreatedAt())

	case *change.EditOperation:
		appendKind(OpEdit)
		b = appendTextNodePos(b, opFieldFrom, o.FromPos())
		b = appendTextNodePos(b, opFieldTo, o.ToPos())
		b = protowire.AppendTag(b, opFieldContent, protowire.BytesType)
		b = protowire.AppendString(b, o.Content())
		b = appendAttrs(b, opFieldAttrs, o.Attrs())
		for actorHex, t := range o.MaxCreatedAtMapByActor() {
			var entry []byte
			entry = protowire.AppendTag(entry, actorTicketFieldActor, protowire.BytesType)
			entry = protowire.AppendString(entry, actorHex)
			entry = appendTicket(entry, actorTicketFieldTicket, t)
			b = protowire.AppendTag(b, opFieldMaxCreatedAt, protowire.BytesType)
			b = protowire.AppendBytes(b, entry)
		}

	case *change.StyleOperation:
		appendKind(OpStyle)
		b = appendTextNodePos(b, opFieldFrom, o.FromPos())
		b = appendTextNodePos(b, opFieldTo, o.ToPos())
		b = appendAttrs(b, opFieldAttrs, o.Attrs())

	case *change.IncreaseOperation:
		appendKind(OpIncrease)
		b = protowire.AppendTag(b, opFieldDelta, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(o.Delta()))

	case *change.TreeEditOperation:
		appendKind(OpTreeEdit)
		b = appendTreeNodeID(b, opFieldFrom, o.FromID())
		b = appendTreeNodeID(b, opFieldTo, o.ToID())
		b = protowire.AppendTag(b, opFieldTag, protowire.BytesType)
		b = protowire.AppendString(b, o.Tag())
		b = protowire.AppendTag(b, opFieldContent, protowire.BytesType)
		b = protowire.AppendString(b, o.Content())
		for actorHex, t := range o.MaxCreatedAtMapByActor() {
			var entry []byte
			entry = protowire.AppendTag(entry, actorTicketFieldActor, protowire.BytesType)
			entry = protowire.AppendString(entry, actorHex)
			entry = appendTicket(entry, actorTicketFieldTicket, t)
			b = protowire.AppendTag(b, opFieldMaxCreatedAt, protowire.BytesType)
			b = protowire.AppendBytes(b, entry)
		}

	case *change.TreeStyleOperation:
		appendKind(OpTreeStyle)
		b = appendTreeNodeID(b, opFieldFrom, o.FromID())
		b = appendTreeNodeID(b, opFieldTo, o.ToID())
		b = appendAttrs(b, opFieldAttrs, o.AttrsToSet())
		for _, key := range o.AttrsToRemove() {
			b = protowire.AppendTag(b, opFieldAttrsToRemove, protowire.BytesType)
			b = protowire.AppendString(b, key)
		}

	default:
		return nil, fmt.Errorf("unimplemented: no wire encoding for operation type %T", op)
	}

	return b, nil
}

// DecodeOperation rebuilds a change.Operation from bytes produced by
// EncodeOperation.
func DecodeOperation(data []byte) (change.Operation, error) {
	var kind OperationKind
	var parentCreatedAt, executedAt, prevCreatedAt, targetCreatedAt *doctime.Ticket
	var key, content, tag string
	var valueBytes []byte
	var fromBytes, toBytes []byte
	attrs := map[string]string{}
	var attrsToRemove []string
	maxCreatedAtMapByActor := map[string]*doctime.Ticket{}
	var delta float64

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch num {
		case opFieldKind:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			kind = OperationKind(v)
			data = data[m:]
		case opFieldParentCreatedAt:
			t, rest, err := consumeNestedTicket(data)
			if err != nil {
				return nil, err
			}
			parentCreatedAt, data = t, rest
		case opFieldExecutedAt:
			t, rest, err := consumeNestedTicket(data)
			if err != nil {
				return nil, err
			}
			executedAt, data = t, rest
		case opFieldKey:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			key, data = v, data[m:]
		case opFieldValueBytes:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			valueBytes, data = v, data[m:]
		case opFieldPrevCreatedAt:
			t, rest, err := consumeNestedTicket(data)
			if err != nil {
				return nil, err
			}
			prevCreatedAt, data = t, rest
		case opFieldTargetCreatedAt:
			t, rest, err := consumeNestedTicket(data)
			if err != nil {
				return nil, err
			}
			targetCreatedAt, data = t, rest
		case opFieldFrom:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			fromBytes, data = v, data[m:]
		case opFieldTo:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			toBytes, data = v, data[m:]
		case opFieldContent:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			content, data = v, data[m:]
		case opFieldAttrs:
			raw, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			k, v, err := decodeAttrEntry(raw)
			if err != nil {
				return nil, err
			}
			attrs[k] = v
			data = data[m:]
		case opFieldDelta:
			v, m := protowire.ConsumeFixed64(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			delta, data = math.Float64frombits(v), data[m:]
		case opFieldTag:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			tag, data = v, data[m:]
		case opFieldAttrsToRemove:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			attrsToRemove, data = append(attrsToRemove, v), data[m:]
		case opFieldMaxCreatedAt:
			raw, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			actorHex, t, err := decodeActorTicket(raw)
			if err != nil {
				return nil, err
			}
			maxCreatedAtMapByActor[actorHex] = t
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}

	switch kind {
	case OpSet:
		value, err := crdt.UnmarshalElement(valueBytes)
		if err != nil {
			return nil, err
		}
		return change.NewSetOperation(parentCreatedAt, key, value, executedAt), nil
	case OpAdd:
		value, err := crdt.UnmarshalElement(valueBytes)
		if err != nil {
			return nil, err
		}
		return change.NewAddOperation(parentCreatedAt, prevCreatedAt, value, executedAt), nil
	case OpMove:
		return change.NewMoveOperation(parentCreatedAt, prevCreatedAt, targetCreatedAt, executedAt), nil
	case OpRemove:
		return change.NewRemoveOperation(parentCreatedAt, targetCreatedAt, executedAt), nil
	case OpEdit:
		fromPos, err := decodeTextNodePos(fromBytes)
		if err != nil {
			return nil, err
		}
		toPos, err := decodeTextNodePos(toBytes)
		if err != nil {
			return nil, err
		}
		var maxMap map[string]*doctime.Ticket
		if len(maxCreatedAtMapByActor) > 0 {
			maxMap = maxCreatedAtMapByActor
		}
		var attrsArg map[string]string
		if len(attrs) > 0 {
			attrsArg = attrs
		}
		return change.NewEditOperationFromPos(parentCreatedAt, fromPos, toPos, content, attrsArg, maxMap, executedAt), nil
	case OpStyle:
		fromPos, err := decodeTextNodePos(fromBytes)
		if err != nil {
			return nil, err
		}
		toPos, err := decodeTextNodePos(toBytes)
		if err != nil {
			return nil, err
		}
		return change.NewStyleOperationFromPos(parentCreatedAt, fromPos, toPos, attrs, executedAt), nil
	case OpIncrease:
		return change.NewIncreaseOperation(parentCreatedAt, delta, executedAt), nil
	case OpTreeEdit:
		fromID, err := decodeTreeNodeID(fromBytes)
		if err != nil {
			return nil, err
		}
		toID, err := decodeTreeNodeID(toBytes)
		if err != nil {
			return nil, err
		}
		var maxMap map[string]*doctime.Ticket
		if len(maxCreatedAtMapByActor) > 0 {
			maxMap = maxCreatedAtMapByActor
		}
		return change.NewTreeEditOperationFromPos(parentCreatedAt, fromID, toID, tag, content, maxMap, executedAt), nil
	case OpTreeStyle:
		fromID, err := decodeTreeNodeID(fromBytes)
		if err != nil {
			return nil, err
		}
		toID, err := decodeTreeNodeID(toBytes)
		if err != nil {
			return nil, err
		}
		return change.NewTreeStyleOperationFromPos(parentCreatedAt, fromID, toID, attrs, attrsToRemove, executedAt), nil
	default:
		return nil, fmt.Errorf("unimplemented: unknown wire operation kind %d", kind)
	}
}

func decodeActorTicket(data []byte) (string, *doctime.Ticket, error) {
	var actorHex string
	var t *doctime.Ticket
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch {
		case num == actorTicketFieldActor && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return "", nil, protowire.ParseError(m)
			}
			actorHex, data = v, data[m:]
		case num == actorTicketFieldTicket && typ == protowire.BytesType:
			ticket, rest, err := consumeNestedTicket(data)
			if err != nil {
				return "", nil, err
			}
			t, data = ticket, rest
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return "", nil, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}
	return actorHex, t, nil
}
