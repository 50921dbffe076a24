package crdt

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Snapshot bytes are this core's own internal rendering of the element
// tree (spec §6 "serialise the root Object as the complete element tree
// including tombstones"); the wire codec that ships them between
// replicas is explicitly out of core scope (spec §1) and lives in
// internal/wire. JSON is used here the same way Marshal already uses it
// for to_sorted_json - a plain stdlib encoding, not the excluded wire
// codec.
//
// Live bindings (including ones still carrying a tombstone) round-trip
// exactly. A binding a Set has since overwritten is, like the rest of
// this implementation's Object model, no longer reachable once
// overwritten (Object.Set drops the shadowed binding from its by-key
// map, which the snapshot walks) and so is not part of the snapshot - the
// snapshot reflects what the live tree can still reach, which is what
// apply_change_pack needs to resume replay from.
type snapshotTicket struct {
	Lamport   uint64 `json:"lamport"`
	Delimiter uint32 `json:"delimiter"`
	Actor     string `json:"actor"`
}

func ticketToSnapshot(t *doctime.Ticket) *snapshotTicket {
	if t == nil {
		return nil
	}
	return &snapshotTicket{Lamport: t.Lamport(), Delimiter: t.Delimiter(), Actor: t.ActorIDHex()}
}

func (s *snapshotTicket) toTicket() (*doctime.Ticket, error) {
	if s == nil {
		return nil, nil
	}
	actor, err := doctime.NewActorIDFromHex(s.Actor)
	if err != nil {
		return nil, err
	}
	return doctime.NewTicket(s.Lamport, s.Delimiter, actor), nil
}

type snapshotElement struct {
	Kind      string          `json:"kind"`
	CreatedAt *snapshotTicket `json:"createdAt"`
	MovedAt   *snapshotTicket `json:"movedAt,omitempty"`
	RemovedAt *snapshotTicket `json:"removedAt,omitempty"`

	// Primitive
	ValueType int32  `json:"valueType,omitempty"`
	RawValue  string `json:"rawValue,omitempty"`

	// Counter32/Counter64
	CounterValue int64 `json:"counterValue,omitempty"`

	// Object
	Keys     []string           `json:"keys,omitempty"`
	Bindings []*snapshotElement `json:"bindings,omitempty"`

	// Array
	Items []*snapshotElement `json:"items,omitempty"`

	// Text
	TextContent string `json:"textContent,omitempty"`

	// Tree
	TreeBytes []byte `json:"treeBytes,omitempty"`
}

func kindName(k Kind) string { return k.String() }

func snapshotFromElement(e *Element) (*snapshotElement, error) {
	s := &snapshotElement{
		Kind:      kindName(e.Kind()),
		CreatedAt: ticketToSnapshot(e.CreatedAt()),
		MovedAt:   ticketToSnapshot(e.MovedAt()),
		RemovedAt: ticketToSnapshot(e.RemovedAt()),
	}

	switch e.Kind() {
	case KindPrimitive:
		p, _ := e.AsPrimitive()
		s.ValueType = int32(p.Type())
		s.RawValue = primitiveRawValue(p)
	case KindCounterI32:
		c, _ := e.AsCounter32()
		s.CounterValue = int64(c.Value())
	case KindCounterI64:
		c, _ := e.AsCounter64()
		s.CounterValue = c.Value()
	case KindObject:
		obj, _ := e.AsObject()
		for _, key := range obj.Keys() {
			bound := obj.memberMapByKey[key]
			child, err := snapshotFromElement(bound)
			if err != nil {
				return nil, err
			}
			s.Keys = append(s.Keys, key)
			s.Bindings = append(s.Bindings, child)
		}
	case KindArray:
		arr, _ := e.AsArray()
		for _, item := range arr.AllElements() {
			child, err := snapshotFromElement(item)
			if err != nil {
				return nil, err
			}
			s.Items = append(s.Items, child)
		}
	case KindText:
		txt, _ := e.AsText()
		s.TextContent = txt.String()
	case KindTree:
		tree, _ := e.AsTree()
		treeBytes, err := tree.Snapshot()
		if err != nil {
			return nil, err
		}
		s.TreeBytes = treeBytes
	}
	return s, nil
}

func primitiveRawValue(p *Primitive) string {
	switch p.Type() {
	case ValueNull:
		return ""
	case ValueBool:
		return p.Marshal()
	case ValueInt32, ValueInt64, ValueFloat64:
		return p.Marshal()
	case ValueString:
		return p.String()
	case ValueBytes:
		return base64.StdEncoding.EncodeToString(p.Bytes())
	case ValueDate:
		return p.Date().UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}

func (s *snapshotElement) toElement() (*Element, error) {
	createdAt, err := s.CreatedAt.toTicket()
	if err != nil {
		return nil, err
	}
	movedAt, err := s.MovedAt.toTicket()
	if err != nil {
		return nil, err
	}
	removedAt, err := s.RemovedAt.toTicket()
	if err != nil {
		return nil, err
	}

	var elem *Element
	switch s.Kind {
	case "Primitive":
		p, err := primitiveFromRawValue(ValueType(s.ValueType), s.RawValue)
		if err != nil {
			return nil, err
		}
		elem = NewPrimitiveElement(p, createdAt)
	case "Counter32":
		elem = NewCounter32Element(int32(s.CounterValue), createdAt)
	case "Counter64":
		elem = NewCounter64Element(s.CounterValue, createdAt)
	case "Object":
		elem = NewObjectElement(createdAt)
		obj, _ := elem.AsObject()
		for i, key := range s.Keys {
			child, err := s.Bindings[i].toElement()
			if err != nil {
				return nil, err
			}
			obj.memberMapByKey[key] = child
			obj.elementMapByCreatedAt[child.CreatedAt().Key()] = child
			obj.keyOrder = append(obj.keyOrder, key)
			obj.keyIndex.Put(key, key)
		}
	case "Array":
		elem = NewArrayElement(createdAt)
		arr, _ := elem.AsArray()
		anchor := doctime.InitialTicket
		for _, item := range s.Items {
			child, err := item.toElement()
			if err != nil {
				return nil, err
			}
			if err := arr.InsertAfter(anchor, child); err != nil {
				return nil, err
			}
			anchor = child.CreatedAt()
		}
	case "Text":
		elem = NewTextElement(createdAt)
		txt, _ := elem.AsText()
		if s.TextContent != "" {
			start := txt.StartPos()
			if _, _, err := txt.Edit(start, start, s.TextContent, createdAt, nil); err != nil {
				return nil, err
			}
		}
	case "Tree":
		tree, err := restoreTreeElement(createdAt, s.TreeBytes)
		if err != nil {
			return nil, err
		}
		elem = NewTreeElement(tree, createdAt)
	default:
		return nil, fmt.Errorf("unimplemented: unknown snapshot kind %q", s.Kind)
	}

	elem.movedAt = movedAt
	elem.removedAt = removedAt
	return elem, nil
}

func primitiveFromRawValue(vt ValueType, raw string) (*Primitive, error) {
	switch vt {
	case ValueNull:
		return NewNull(), nil
	case ValueBool:
		return NewBool(raw == "true"), nil
	case ValueInt32:
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		return NewInt32(int32(v)), nil
	case ValueInt64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		return NewInt64(v), nil
	case ValueFloat64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, err
		}
		return NewFloat64(v), nil
	case ValueString:
		return NewString(raw), nil
	case ValueBytes:
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, err
		}
		return NewBytes(decoded), nil
	case ValueDate:
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		return NewDate(t), nil
	default:
		return nil, fmt.Errorf("unimplemented: unknown primitive value type %d", vt)
	}
}

// Snapshot serialises the root's entire element tree, tombstones
// included, to bytes (spec §6 "Snapshot bytes").
func (r *Root) Snapshot() ([]byte, error) {
	s, err := snapshotFromElement(r.object)
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// UnmarshalObjectElement rebuilds a root Object element from bytes
// produced by Root.Snapshot.
func UnmarshalObjectElement(data []byte) (*Element, error) {
	var s snapshotElement
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.toElement()
}

// MarshalElement renders a single element (of any Kind) using the same
// internal snapshot codec as Root.Snapshot. internal/wire uses this to
// embed a Set/Add operation's value as one opaque bytes field inside an
// otherwise protobuf-framed message, the same way Root.Snapshot embeds
// a whole document's worth of elements inside one snapshot field.
func MarshalElement(e *Element) ([]byte, error) {
	s, err := snapshotFromElement(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// UnmarshalElement rebuilds a single element from bytes produced by
// MarshalElement.
func UnmarshalElement(data []byte) (*Element, error) {
	var s snapshotElement
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.toElement()
}
