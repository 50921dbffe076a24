package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

const (
	changeIDFieldClientSeq protowire.Number = 1
	changeIDFieldLamport   protowire.Number = 2
	changeIDFieldActor     protowire.Number = 3
)

func appendChangeID(b []byte, num protowire.Number, id *doctime.ChangeID) []byte {
	var inner []byte
	inner = protowire.AppendTag(inner, changeIDFieldClientSeq, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(id.ClientSeq()))
	inner = protowire.AppendTag(inner, changeIDFieldLamport, protowire.VarintType)
	inner = protowire.AppendVarint(inner, id.Lamport())
	inner = protowire.AppendTag(inner, changeIDFieldActor, protowire.BytesType)
	inner = protowire.AppendString(inner, id.Actor().String())

	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	return b
}

func decodeChangeID(data []byte) (*doctime.ChangeID, error) {
	var clientSeq uint32
	var lamport uint64
	var actorHex string

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == changeIDFieldClientSeq && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			clientSeq = uint32(v)
			data = data[m:]
		case num == changeIDFieldLamport && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			lamport = v
			data = data[m:]
		case num == changeIDFieldActor && typ == protowire.BytesType:
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
		return nil, fmt.Errorf("invalid argument: decoding change id actor: %w", err)
	}
	return doctime.NewChangeID(clientSeq, lamport, actor), nil
}

func consumeNestedChangeID(data []byte) (*doctime.ChangeID, []byte, error) {
	raw, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, nil, protowire.ParseError(n)
	}
	id, err := decodeChangeID(raw)
	if err != nil {
		return nil, nil, err
	}
	return id, data[n:], nil
}
