package crdt

import (
	"math"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Counter32 is a 32-bit wrap-on-overflow counter (spec §3.3).
type Counter32 struct {
	value int32
}

// NewCounter32Element wraps an i32 counter as a document Element.
func NewCounter32Element(initial int32, createdAt *doctime.Ticket) *Element {
	e := newElement(KindCounterI32, createdAt)
	e.counter32 = &Counter32{value: initial}
	return e
}

// Value returns the current counter value.
func (c *Counter32) Value() int32 { return c.value }

// Increase adds delta (truncated toward zero if fractional) to the
// counter using two's-complement wraparound on overflow.
func (c *Counter32) Increase(delta float64) int32 {
	c.value = int32(uint32(c.value) + uint32(int32(delta)))
	return c.value
}

// DeepCopy returns a copy of the counter.
func (c *Counter32) DeepCopy() *Counter32 {
	cp := *c
	return &cp
}

// Counter64 is a 64-bit wrap-on-overflow counter (spec §3.3).
type Counter64 struct {
	value int64
}

// NewCounter64Element wraps an i64 counter as a document Element.
func NewCounter64Element(initial int64, createdAt *doctime.Ticket) *Element {
	e := newElement(KindCounterI64, createdAt)
	e.counter64 = &Counter64{value: initial}
	return e
}

// Value returns the current counter value.
func (c *Counter64) Value() int64 { return c.value }

// Increase adds delta (truncated toward zero if fractional) to the
// counter using two's-complement wraparound on overflow.
func (c *Counter64) Increase(delta float64) int64 {
	truncated := int64(math.Trunc(delta))
	c.value = int64(uint64(c.value) + uint64(truncated))
	return c.value
}

// DeepCopy returns a copy of the counter.
func (c *Counter64) DeepCopy() *Counter64 {
	cp := *c
	return &cp
}
