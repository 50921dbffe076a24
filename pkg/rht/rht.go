// Package rht implements the Register Hash Table: a per-key,
// last-writer-wins map keyed by ticket, used for object keys, text/tree
// style attributes, and JSON-encoded structured attribute values
// (spec §2, §4.3.2, §4.4).
package rht

import (
	"fmt"
	"sort"
	"strings"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Node is one binding in the table.
type Node struct {
	key       string
	value     string
	updatedAt *doctime.Ticket
	isRemoved bool
}

// Key returns the node's key.
func (n *Node) Key() string { return n.key }

// Value returns the node's current value.
func (n *Node) Value() string { return n.value }

// UpdatedAt returns the ticket that last wrote this node.
func (n *Node) UpdatedAt() *doctime.Ticket { return n.updatedAt }

// IsRemoved reports whether the node is tombstoned.
func (n *Node) IsRemoved() bool { return n.isRemoved }

// RHT is a last-writer-wins map from string keys to string values.
type RHT struct {
	nodeMapByKey map[string]*Node
}

// New creates an empty RHT.
func New() *RHT {
	return &RHT{nodeMapByKey: make(map[string]*Node)}
}

// Set writes key=value at ticket executedAt if it is newer than the
// current binding. It returns the node that was shadowed (for the
// caller to register as a GC pair), or nil if the write was rejected
// as stale or there was nothing to shadow.
func (r *RHT) Set(key, value string, executedAt *doctime.Ticket) *Node {
	prev, exists := r.nodeMapByKey[key]
	if exists && prev.updatedAt.After(executedAt) {
		return nil
	}

	r.nodeMapByKey[key] = &Node{key: key, value: value, updatedAt: executedAt}

	if exists && !prev.isRemoved {
		return prev
	}
	return nil
}

// Remove tombstones key at ticket executedAt, following the same
// ticket-ordering rule as Set. It returns the shadowed live node for
// GC registration, or nil if nothing changed.
func (r *RHT) Remove(key string, executedAt *doctime.Ticket) *Node {
	prev, exists := r.nodeMapByKey[key]
	if exists && prev.updatedAt.After(executedAt) {
		return nil
	}

	tomb := &Node{key: key, updatedAt: executedAt, isRemoved: true}
	r.nodeMapByKey[key] = tomb

	if exists && !prev.isRemoved {
		return prev
	}
	return nil
}

// Get returns the live value bound to key.
func (r *RHT) Get(key string) (string, bool) {
	n, ok := r.nodeMapByKey[key]
	if !ok || n.isRemoved {
		return "", false
	}
	return n.value, true
}

// Has reports whether key has a live binding.
func (r *RHT) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Elements returns every live key/value pair.
func (r *RHT) Elements() map[string]string {
	out := make(map[string]string)
	for k, n := range r.nodeMapByKey {
		if !n.isRemoved {
			out[k] = n.value
		}
	}
	return out
}

// Marshal renders the live entries as a sorted-key JSON object, used by
// to_sorted_json so attribute serialisation never re-escapes values
// that are already JSON-encoded strings.
func (r *RHT) Marshal() string {
	keys := make([]string, 0, len(r.nodeMapByKey))
	for k, n := range r.nodeMapByKey {
		if !n.isRemoved {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:%s", k, r.nodeMapByKey[k].value)
	}
	b.WriteByte('}')
	return b.String()
}

// DeepCopy copies every node, live or tombstoned, preserving tickets.
func (r *RHT) DeepCopy() *RHT {
	cp := New()
	for k, n := range r.nodeMapByKey {
		cp.nodeMapByKey[k] = &Node{
			key:       n.key,
			value:     n.value,
			updatedAt: n.updatedAt,
			isRemoved: n.isRemoved,
		}
	}
	return cp
}
