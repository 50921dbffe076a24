package crdt

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// ValueType enumerates the primitive value kinds a document can store
// (spec §3.3).
type ValueType int

const (
	ValueNull ValueType = iota
	ValueBool
	ValueInt32
	ValueInt64
	ValueFloat64
	ValueString
	ValueBytes
	ValueDate
)

// Primitive is an immutable scalar value.
type Primitive struct {
	valueType ValueType
	boolVal   bool
	intVal    int32
	longVal   int64
	doubleVal float64
	strVal    string
	bytesVal  []byte
	dateVal   time.Time
}

// NewPrimitiveElement wraps a primitive value as a document Element.
func NewPrimitiveElement(p *Primitive, createdAt *doctime.Ticket) *Element {
	e := newElement(KindPrimitive, createdAt)
	e.primitive = p
	return e
}

// NewNull returns the null primitive.
func NewNull() *Primitive { return &Primitive{valueType: ValueNull} }

// NewBool returns a boolean primitive.
func NewBool(v bool) *Primitive { return &Primitive{valueType: ValueBool, boolVal: v} }

// NewInt32 returns an i32 primitive.
func NewInt32(v int32) *Primitive { return &Primitive{valueType: ValueInt32, intVal: v} }

// NewInt64 returns an i64 primitive.
func NewInt64(v int64) *Primitive { return &Primitive{valueType: ValueInt64, longVal: v} }

// NewFloat64 returns an f64 primitive.
func NewFloat64(v float64) *Primitive { return &Primitive{valueType: ValueFloat64, doubleVal: v} }

// NewString returns a string primitive.
func NewString(v string) *Primitive { return &Primitive{valueType: ValueString, strVal: v} }

// NewBytes returns a bytes primitive.
func NewBytes(v []byte) *Primitive {
	cp := make([]byte, len(v))
	copy(cp, v)
	return &Primitive{valueType: ValueBytes, bytesVal: cp}
}

// NewDate returns a date (instant) primitive.
func NewDate(v time.Time) *Primitive { return &Primitive{valueType: ValueDate, dateVal: v} }

// Type returns the primitive's value type.
func (p *Primitive) Type() ValueType { return p.valueType }

// Bool returns the boolean value, valid only when Type() == ValueBool.
func (p *Primitive) Bool() bool { return p.boolVal }

// Int32 returns the i32 value, valid only when Type() == ValueInt32.
func (p *Primitive) Int32() int32 { return p.intVal }

// Int64 returns the i64 value, valid only when Type() == ValueInt64.
func (p *Primitive) Int64() int64 { return p.longVal }

// Float64 returns the f64 value, valid only when Type() == ValueFloat64.
func (p *Primitive) Float64() float64 { return p.doubleVal }

// String returns the string value, valid only when Type() == ValueString.
func (p *Primitive) String() string { return p.strVal }

// Bytes returns the bytes value, valid only when Type() == ValueBytes.
func (p *Primitive) Bytes() []byte { return p.bytesVal }

// Date returns the date value, valid only when Type() == ValueDate.
func (p *Primitive) Date() time.Time { return p.dateVal }

// DeepCopy returns a copy; primitives are immutable so this is cheap.
func (p *Primitive) DeepCopy() *Primitive {
	cp := *p
	if p.bytesVal != nil {
		cp.bytesVal = make([]byte, len(p.bytesVal))
		copy(cp.bytesVal, p.bytesVal)
	}
	return &cp
}

// Marshal renders the primitive as JSON text.
func (p *Primitive) Marshal() string {
	switch p.valueType {
	case ValueNull:
		return "null"
	case ValueBool:
		return strconv.FormatBool(p.boolVal)
	case ValueInt32:
		return strconv.FormatInt(int64(p.intVal), 10)
	case ValueInt64:
		return strconv.FormatInt(p.longVal, 10)
	case ValueFloat64:
		return strconv.FormatFloat(p.doubleVal, 'g', -1, 64)
	case ValueString:
		return fmt.Sprintf("%q", p.strVal)
	case ValueBytes:
		return fmt.Sprintf("%q", base64.StdEncoding.EncodeToString(p.bytesVal))
	case ValueDate:
		return fmt.Sprintf("%q", p.dateVal.UTC().Format(time.RFC3339Nano))
	default:
		return "null"
	}
}
