package crdt

import (
	"fmt"
	"sort"
	"strings"

	doctime "github.com/cortexkv/crdtdoc/pkg/time"
	"github.com/cortexkv/crdtdoc/pkg/trie"
)

// ReservedKeySeparator is the character forbidden in Object keys; it is
// reserved for addressing nested paths (spec §4.2).
const ReservedKeySeparator = "."

// Object is a CRDT map with last-writer-wins-by-ticket semantics per
// key (the "ElementRHT", spec §3.3, §4.2).
type Object struct {
	createdAt *doctime.Ticket
	movedAt   *doctime.Ticket
	removedAt *doctime.Ticket

	memberMapByKey        map[string]*Element
	elementMapByCreatedAt map[string]*Element
	keyOrder              []string
	keyIndex              *trie.Trie[string]
}

// NewObjectElement wraps a freshly created, empty Object as a document
// Element.
func NewObjectElement(createdAt *doctime.Ticket) *Element {
	e := newElement(KindObject, createdAt)
	e.object = &Object{
		createdAt:             createdAt,
		memberMapByKey:        make(map[string]*Element),
		elementMapByCreatedAt: make(map[string]*Element),
		keyIndex:              trie.New[string](),
	}
	return e
}

// ValidateKey rejects keys containing the reserved path separator.
func ValidateKey(key string) error {
	if strings.Contains(key, ReservedKeySeparator) {
		return fmt.Errorf("invalid argument: key %q contains reserved separator %q", key, ReservedKeySeparator)
	}
	return nil
}

// Set binds key to value if value is newer than whatever currently
// occupies that key; an older write is rejected silently (spec §4.2).
// It returns the element that was shadowed, for GC registration.
func (o *Object) Set(key string, value *Element) (*Element, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	prev, exists := o.memberMapByKey[key]
	if exists && !value.CreatedAt().After(prev.CreatedAt()) {
		return nil, nil
	}

	if !exists {
		o.keyOrder = append(o.keyOrder, key)
	}

	var shadowed *Element
	if exists {
		prev.Remove(value.createdAt)
		shadowed = prev
	}

	o.memberMapByKey[key] = value
	o.elementMapByCreatedAt[value.CreatedAt().Key()] = value
	o.keyIndex.Put(key, key)
	return shadowed, nil
}

// Get returns the live element bound to key.
func (o *Object) Get(key string) (*Element, bool) {
	e, ok := o.memberMapByKey[key]
	if !ok || e.IsRemoved() {
		return nil, false
	}
	return e, true
}

// RemoveByKey tombstones the live element at key, returning it along
// with whether the removal took effect. A missing key is a no-op.
func (o *Object) RemoveByKey(key string, executedAt *doctime.Ticket) (*Element, bool) {
	e, ok := o.memberMapByKey[key]
	if !ok {
		return nil, false
	}
	return e, e.Remove(executedAt)
}

// RemoveByCreatedAt tombstones the element with the given creation
// ticket, used when a Remove operation addresses its target by ticket
// rather than by key.
func (o *Object) RemoveByCreatedAt(createdAt *doctime.Ticket, executedAt *doctime.Ticket) (*Element, bool) {
	e, ok := o.elementMapByCreatedAt[createdAt.Key()]
	if !ok {
		return nil, false
	}
	return e, e.Remove(executedAt)
}

// Keys returns every key ever set, in first-set order (live and
// tombstoned); callers filter with Get for liveness.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keyOrder))
	copy(out, o.keyOrder)
	return out
}

// KeysWithPrefix returns the live keys starting with prefix, sorted
// (spec §2 Trie<V>). Lookup
// fans out over the trie rather than scanning every key, since a
// document's key set can be large.
func (o *Object) KeysWithPrefix(prefix string) []string {
	matches := o.keyIndex.PrefixSearch(prefix)
	out := make([]string, 0, len(matches))
	for _, key := range matches {
		if e, ok := o.memberMapByKey[key]; ok && !e.IsRemoved() {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of live keys.
func (o *Object) Len() int {
	n := 0
	for _, e := range o.memberMapByKey {
		if !e.IsRemoved() {
			n++
		}
	}
	return n
}

// Marshal renders the object as a sorted-key JSON object (the
// to_sorted_json oracle, spec §4.6).
func (o *Object) Marshal() string {
	liveKeys := make([]string, 0, len(o.memberMapByKey))
	for k, e := range o.memberMapByKey {
		if !e.IsRemoved() {
			liveKeys = append(liveKeys, k)
		}
	}
	sort.Strings(liveKeys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range liveKeys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%q:%s", k, o.memberMapByKey[k].Marshal())
	}
	b.WriteByte('}')
	return b.String()
}

// Elements returns every member ever bound, live or tombstoned, keyed by
// nothing in particular; used to walk the whole document subtree when
// rebuilding a Root's element index (spec §4.1 register_element).
func (o *Object) Elements() []*Element {
	out := make([]*Element, 0, len(o.elementMapByCreatedAt))
	for _, e := range o.elementMapByCreatedAt {
		out = append(out, e)
	}
	return out
}

// PurgeElement drops elem from the object's bookkeeping once it has been
// durably garbage collected (spec §4.6 garbage_collect): if elem is still
// the binding (live or tombstoned) for its key, that binding is dropped
// entirely; its createdAt entry always is.
func (o *Object) PurgeElement(elem *Element) {
	delete(o.elementMapByCreatedAt, elem.CreatedAt().Key())
	for i, k := range o.keyOrder {
		if bound, ok := o.memberMapByKey[k]; ok && bound == elem {
			delete(o.memberMapByKey, k)
			o.keyIndex.Remove(k)
			o.keyOrder = append(o.keyOrder[:i], o.keyOrder[i+1:]...)
			return
		}
	}
}

// DeepCopy returns a structurally independent copy, preserving every
// ticket and tombstone.
func (o *Object) DeepCopy() *Object {
	cp := &Object{
		createdAt:             o.createdAt,
		movedAt:               o.movedAt,
		removedAt:             o.removedAt,
		memberMapByKey:        make(map[string]*Element, len(o.memberMapByKey)),
		elementMapByCreatedAt: make(map[string]*Element, len(o.elementMapByCreatedAt)),
		keyOrder:              append([]string(nil), o.keyOrder...),
		keyIndex:              trie.New[string](),
	}
	for k, e := range o.memberMapByKey {
		copied := e.DeepCopy()
		cp.memberMapByKey[k] = copied
		cp.elementMapByCreatedAt[copied.CreatedAt().Key()] = copied
		cp.keyIndex.Put(k, k)
	}
	return cp
}
