package wire

import (
	"google.golang.org/protobuf/encoding/protowire"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

const (
	checkpointFieldServerSeq protowire.Number = 1
	checkpointFieldClientSeq protowire.Number = 2
)

func appendCheckpoint(b []byte, num protowire.Number, cp doctime.Checkpoint) []byte {
	var inner []byte
	inner = protowire.AppendTag(inner, checkpointFieldServerSeq, protowire.VarintType)
	inner = protowire.AppendVarint(inner, cp.ServerSeq)
	inner = protowire.AppendTag(inner, checkpointFieldClientSeq, protowire.VarintType)
	inner = protowire.AppendVarint(inner, uint64(cp.ClientSeq))

	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	return b
}

func decodeCheckpoint(data []byte) (doctime.Checkpoint, error) {
	var cp doctime.Checkpoint
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return cp, protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == checkpointFieldServerSeq && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return cp, protowire.ParseError(m)
			}
			cp.ServerSeq = v
			data = data[m:]
		case num == checkpointFieldClientSeq && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return cp, protowire.ParseError(m)
			}
			cp.ClientSeq = uint32(v)
			data = data[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return cp, protowire.ParseError(m)
			}
			data = data[m:]
		}
	}
	return cp, nil
}

func consumeNestedCheckpoint(data []byte) (doctime.Checkpoint, []byte, error) {
	raw, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return doctime.Checkpoint{}, nil, protowire.ParseError(n)
	}
	cp, err := decodeCheckpoint(raw)
	if err != nil {
		return doctime.Checkpoint{}, nil, err
	}
	return cp, data[n:], nil
}
