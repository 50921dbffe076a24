package wire

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cortexkv/crdtdoc/pkg/change"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

const (
	changeFieldID         protowire.Number = 1
	changeFieldMessage    protowire.Number = 2
	changeFieldOperations protowire.Number = 3
)

const (
	packFieldDocumentKey     protowire.Number = 1
	packFieldCheckpoint      protowire.Number = 2
	packFieldChanges         protowire.Number = 3
	packFieldSnapshot        protowire.Number = 4
	packFieldMinSyncedTicket protowire.Number = 5
	packFieldIsRemoved       protowire.Number = 6
)

// EncodeChange renders a single change.Change as a wire message.
func EncodeChange(c *change.Change) ([]byte, error) {
	var b []byte
	b = appendChangeID(b, changeFieldID, c.ID())
	if c.Message() != "" {
		b = protowire.AppendTag(b, changeFieldMessage, protowire.BytesType)
		b = protowire.AppendString(b, c.Message())
	}
	for _, op := range c.Operations() {
		opBytes, err := EncodeOperation(op)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, changeFieldOperations, protowire.BytesType)
		b = protowire.AppendBytes(b, opBytes)
	}
	return b, nil
}

// DecodeChange rebuilds a change.Change from bytes produced by
// EncodeChange.
func DecodeChange(data []byte) (*change.Change, error) {
	var id = doctime.InitialChangeID
	var message string
	var operations []change.Operation

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch num {
		case changeFieldID:
			parsed, rest, err := consumeNestedChangeID(data)
			if err != nil {
				return nil, err
			}
			id, data = parsed, rest
		case changeFieldMessage:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			message, data = v, data[m:]
		case changeFieldOperations:
			raw, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			op, err := DecodeOperation(raw)
			if err != nil {
				return nil, err
			}
			operations = append(operations, op)
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}

	return change.NewChange(id, operations, message), nil
}

// MarshalChangePack is the transport entrypoint a client or server calls
// to turn a change.Pack into bytes for the wire, mirroring how
// proto.Marshal is used against the teacher's generated Operation
// message.
func MarshalChangePack(p *change.Pack) ([]byte, error) { return EncodePack(p) }

// UnmarshalChangePack is MarshalChangePack's inverse.
func UnmarshalChangePack(data []byte) (*change.Pack, error) { return DecodePack(data) }

// EncodePack renders a change.Pack as a wire message, the unit pushed to
// and pulled from a server (spec §6 "Change pack wire shape").
func EncodePack(p *change.Pack) ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, packFieldDocumentKey, protowire.BytesType)
	b = protowire.AppendString(b, p.DocumentKey)
	b = appendCheckpoint(b, packFieldCheckpoint, p.Checkpoint)

	for _, c := range p.Changes {
		cb, err := EncodeChange(c)
		if err != nil {
			return nil, err
		}
		b = protowire.AppendTag(b, packFieldChanges, protowire.BytesType)
		b = protowire.AppendBytes(b, cb)
	}

	if p.HasSnapshot() {
		b = protowire.AppendTag(b, packFieldSnapshot, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Snapshot)
	}
	if p.MinSyncedTicket != nil {
		b = appendTicket(b, packFieldMinSyncedTicket, p.MinSyncedTicket)
	}
	if p.IsRemoved {
		b = protowire.AppendTag(b, packFieldIsRemoved, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b, nil
}

// DecodePack rebuilds a change.Pack from bytes produced by EncodePack.
func DecodePack(data []byte) (*change.Pack, error) {
	pack := &change.Pack{}

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch num {
		case packFieldDocumentKey:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			pack.DocumentKey, data = v, data[m:]
		case packFieldCheckpoint:
			cp, rest, err := consumeNestedCheckpoint(data)
			if err != nil {
				return nil, err
			}
			pack.Checkpoint, data = cp, rest
		case packFieldChanges:
			raw, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			c, err := DecodeChange(raw)
			if err != nil {
				return nil, err
			}
			pack.Changes = append(pack.Changes, c)
			data = data[m:]
		case packFieldSnapshot:
			v, m := protowire.ConsumeBytes(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			pack.Snapshot, data = v, data[m:]
		case packFieldMinSyncedTicket:
			t, rest, err := consumeNestedTicket(data)
			if err != nil {
				return nil, err
			}
			pack.MinSyncedTicket, data = t, rest
		case packFieldIsRemoved:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			pack.IsRemoved, data = v != 0, data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}

	return pack, nil
}
