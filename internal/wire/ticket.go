// Package wire implements the protobuf wire shape spec §6 carves out of
// core scope as a transport concern: ChangePack, Change and Operation
// rendered as length-delimited protobuf messages via the low-level
// google.golang.org/protobuf/encoding/protowire primitives, the same
// wire format the teacher's protoc-generated proto.Operation speaks,
// hand-assembled here instead of code-generated since this module has no
// .proto/protoc step of its own. A Set/Add operation's value element is
// carried as one opaque bytes field holding pkg/crdt's own element
// codec (spec §6 "snapshot bytes... core's internal rendering") - the
// boundary is the outer Pack/Change/Operation framing, not what a
// single element looks like inside it.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

const (
	ticketFieldLamport   protowire.Number = 1
	ticketFieldDelimiter protowire.Number = 2
	ticketFieldActor     protowire.Number = 3
)

func appendTicket(b []byte, num protowire.Number, t *doctime.Ticket) []byte {
	if t == nil {
		return b
	}
	var inner []byte
	inner = protowire.AppendTag(inner, ticketFieldLamport, protowire.VarintType)
	inner = protowire.AppendVarint(inner, t.Lamport())
	inner = protowire.AppendTag(inner, ticketFieldDelimiter, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(t.Delimiter()))
	inner = protowire.AppendTag(inner, ticketFieldActor, protowire.BytesType)
	inner = protowire.AppendString(inner, t.ActorIDHex())

	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	return b
}

func decodeTicket(data []byte) (*doctime.Ticket, error) {
	var lamport uint64
	var delimiter uint32
	var actorHex string

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == ticketFieldLamport && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			lamport = v
			data = data[m:]
		case num == ticketFieldDelimiter && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			delimiter = uint32(v)
			data = data[m:]
		case num == ticketFieldActor && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			actorHex = v
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}

	actor, err := doctime.NewActorIDFromHex(actorHex)
	if err != nil {
		return nil, fmt.Errorf("invalid argument: decoding ticket actor: %w", err)
	}
	return doctime.NewTicket(lamport, delimiter, actor), nil
}

// consumeNestedTicket reads one length-delimited ticket submessage
// already positioned past its tag, returning the remaining input.
func consumeNestedTicket(data []byte) (*doctime.Ticket, []byte, error) {
	raw, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, nil, protowire.ParseError(n)
	}
	t, err := decodeTicket(raw)
	if err != nil {
		return nil, nil, err
	}
	return t, data[n:], nil
}
