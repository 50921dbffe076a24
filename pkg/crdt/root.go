package crdt

import (
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Root is the document-wide index over every element reachable from the
// root Object: a flat map from createdAt to its owning Element (so an
// Operation can resolve its parent_created_at in O(1)), the matching
// parent pointer for each indexed element, and the set of elements
// registered as removed and awaiting garbage collection (spec §4.1
// register_element/register_removed_element/register_gc_pair, §4.6
// garbage_collect).
type Root struct {
	object *Element

	elementMapByCreatedAt map[string]*Element
	parentMapByCreatedAt  map[string]*Element
	removedElementSet     map[string]*Element
}

// NewRoot builds a Root around object (the document's root Object
// element), indexing its entire existing subtree - used both for a
// brand-new empty document and for one just rehydrated from a snapshot.
func NewRoot(object *Element) *Root {
	r := &Root{
		object:                object,
		elementMapByCreatedAt: make(map[string]*Element),
		parentMapByCreatedAt:  make(map[string]*Element),
		removedElementSet:     make(map[string]*Element),
	}
	r.indexSubtree(object, nil)
	return r
}

func (r *Root) indexSubtree(elem *Element, parent *Element) {
	r.RegisterElement(elem, parent)
	if elem.IsRemoved() {
		r.removedElementSet[elem.CreatedAt().Key()] = elem
	}
	switch elem.Kind() {
	case KindObject:
		obj, _ := elem.AsObject()
		for _, child := range obj.Elements() {
			r.indexSubtree(child, elem)
		}
	case KindArray:
		arr, _ := elem.AsArray()
		for _, child := range arr.AllElements() {
			r.indexSubtree(child, elem)
		}
	}
}

// Object returns the root Object element.
func (r *Root) Object() *Element { return r.object }

// RegisterElement indexes elem under its own createdAt, recording parent
// as the element it was just bound into (nil for the root object
// itself). Callers register only the element just created; Root never
// needs to recurse, since a literal's nested elements are each created
// and registered individually as the builder session runs.
func (r *Root) RegisterElement(elem *Element, parent *Element) {
	key := elem.CreatedAt().Key()
	r.elementMapByCreatedAt[key] = elem
	if parent != nil {
		r.parentMapByCreatedAt[key] = parent
	}
}

// RegisterRemovedElement marks elem as tombstoned and pending garbage
// collection. It is also used as the register_gc_pair hook: a "pair" in
// this implementation is simply (elem, elem's already-recorded parent),
// recovered from parentMapByCreatedAt when GarbageCollect runs.
func (r *Root) RegisterRemovedElement(elem *Element) {
	if elem == nil {
		return
	}
	r.removedElementSet[elem.CreatedAt().Key()] = elem
}

// FindByCreatedAt resolves an operation's parent_created_at against the
// index, the step every Operation.Execute starts with (spec §4.5).
func (r *Root) FindByCreatedAt(createdAt *doctime.Ticket) (*Element, bool) {
	e, ok := r.elementMapByCreatedAt[createdAt.Key()]
	return e, ok
}

// GarbageCollect purges every element registered as removed at or before
// upper, dropping it from its parent's own bookkeeping, then sweeps every
// remaining live Text/Tree element's internal tombstones (spec §4.6).
func (r *Root) GarbageCollect(upper *doctime.Ticket) int {
	purged := 0
	for key, elem := range r.removedElementSet {
		if elem.RemovedAt() == nil || elem.RemovedAt().After(upper) {
			continue
		}
		if parent, ok := r.parentMapByCreatedAt[key]; ok {
			switch parent.Kind() {
			case KindObject:
				obj, _ := parent.AsObject()
				obj.PurgeElement(elem)
			case KindArray:
				arr, _ := parent.AsArray()
				arr.PurgeElement(elem)
			}
		}
		delete(r.elementMapByCreatedAt, key)
		delete(r.parentMapByCreatedAt, key)
		delete(r.removedElementSet, key)
		purged++
	}

	for _, elem := range r.elementMapByCreatedAt {
		purged += elem.PurgeInternalGarbage(upper)
	}
	return purged
}

// Marshal renders the document's root object as the to_sorted_json
// oracle (spec §4.6).
func (r *Root) Marshal() string {
	return r.object.Marshal()
}

// DeepCopy returns a structurally independent Root, rebuilding the whole
// index over the copied subtree; used both for Document's clone_root
// rollback mechanism and for apply_change_pack's snapshot integration.
func (r *Root) DeepCopy() *Root {
	return NewRoot(r.object.DeepCopy())
}
