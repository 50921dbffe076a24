// Package docproto is a redcon-flavored line protocol standing in for
// the network client the core intentionally excludes (spec §6
// NON-GOALS: "no server-side authority... docproto's line protocol is a
// contract-level stand-in for the excluded network client, not a
// production wire codec"). It lets a Hub of server-held documents
// accept pushed change packs and hand back a pack a client can apply to
// catch up, using internal/wire for the bytes on the wire and
// pkg/document for the CRDT semantics.
package docproto

import (
	"context"
	"fmt"
	"sync"

	"github.com/cortexkv/crdtdoc/internal/docerr"
	"github.com/cortexkv/crdtdoc/internal/logging"
	"github.com/cortexkv/crdtdoc/internal/snapshotstore"
	"github.com/cortexkv/crdtdoc/pkg/change"
	"github.com/cortexkv/crdtdoc/pkg/document"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Hub holds the server side of every attached document: the point a
// push lands on and a pull is served from. An optional snapshotstore
// mirror is consulted before falling back to an in-process Snapshot()
// call, so a cache hit serves a catching-up client without replaying
// anything.
type Hub struct {
	mu        sync.Mutex
	documents map[string]*document.Document
	serverSeq map[string]uint64
	mirror    *snapshotstore.Store
}

// NewHub returns an empty Hub with no snapshot mirror.
func NewHub() *Hub {
	return &Hub{
		documents: make(map[string]*document.Document),
		serverSeq: make(map[string]uint64),
	}
}

// WithMirror attaches a snapshotstore.Store the hub consults on reads
// and populates on writes. Returns h for chaining after NewHub.
func (h *Hub) WithMirror(mirror *snapshotstore.Store) *Hub {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mirror = mirror
	return h
}

// documentLocked returns the hub's document for key and whether it
// already existed, creating it Attached on first sight. Caller must
// hold h.mu.
func (h *Hub) documentLocked(key string) (doc *document.Document, existed bool) {
	doc, existed = h.documents[key]
	if !existed {
		doc = document.New(key)
		doc.SetActor(&doctime.InitialActorID)
		h.documents[key] = doc
	}
	return doc, existed
}

// PushPull applies a client's pack to the hub's copy of the document
// and returns a pack the client can apply to converge with the hub:
// the hub's current checkpoint, watermark, and (on the client's first
// push for this document key) a full snapshot to bootstrap from.
func (h *Hub) PushPull(documentKey string, incoming *change.Pack) (*change.Pack, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, existed := h.documentLocked(documentKey)
	if doc.Status() == document.Removed {
		return nil, docerr.New(docerr.DocumentRemoved, "document %q has been removed", documentKey)
	}

	if err := doc.ApplyChangePack(incoming); err != nil {
		return nil, fmt.Errorf("docproto: push %q: %w", documentKey, err)
	}

	h.serverSeq[documentKey]++
	resp := doc.CreateChangePack()
	resp.Checkpoint.ServerSeq = h.serverSeq[documentKey]

	if !existed {
		snap, err := doc.Root().Snapshot()
		if err != nil {
			return nil, fmt.Errorf("docproto: snapshot %q: %w", documentKey, err)
		}
		resp.Snapshot = snap
	}

	if h.mirror != nil {
		if snap, err := doc.Root().Snapshot(); err == nil {
			if err := h.mirror.Put(context.Background(), documentKey, resp.Checkpoint, snap); err != nil {
				logging.Emitf(logging.Warn, "snapshot mirror put %q: %v", documentKey, err)
			}
		}
	}
	return resp, nil
}

// Remove tombstones the hub's document for key, so the next PushPull or
// Get reports it removed.
func (h *Hub) Remove(documentKey string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, _ := h.documentLocked(documentKey)
	return doc.ApplyChangePack(&change.Pack{
		DocumentKey: documentKey,
		Checkpoint:  doc.Checkpoint(),
		IsRemoved:   true,
	})
}

// Get returns a snapshot-bearing pack for documentKey, for a client
// attaching without any local history of its own. A mirror hit serves
// the bytes without replaying the in-memory document at all; a miss
// falls back to an in-process Snapshot() call.
func (h *Hub) Get(documentKey string) (*change.Pack, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, _ := h.documentLocked(documentKey)
	checkpoint := doc.Checkpoint()
	removed := doc.Status() == document.Removed

	if h.mirror != nil {
		if cached, ok, err := h.mirror.Get(context.Background(), documentKey, checkpoint); err == nil && ok {
			pack := change.NewPack(documentKey, checkpoint, nil)
			pack.Snapshot = cached
			pack.IsRemoved = removed
			return pack, nil
		}
	}

	snap, err := doc.Root().Snapshot()
	if err != nil {
		return nil, fmt.Errorf("docproto: snapshot %q: %w", documentKey, err)
	}

	pack := change.NewPack(documentKey, checkpoint, nil)
	pack.Snapshot = snap
	pack.IsRemoved = removed
	return pack, nil
}

// Snapshots returns a (documentKey, checkpoint, snapshot bytes) triple
// for every document the hub holds, for a caller that wants to mirror
// them somewhere (internal/snapshotstore.DiskFallback, a backup loop)
// without going through the redis-backed mirror path.
func (h *Hub) Snapshots() (map[string]struct {
	Checkpoint doctime.Checkpoint
	Bytes      []byte
}, error) {
	h.mu.Lock()
	docs := make(map[string]*document.Document, len(h.documents))
	for k, doc := range h.documents {
		docs[k] = doc
	}
	h.mu.Unlock()

	out := make(map[string]struct {
		Checkpoint doctime.Checkpoint
		Bytes      []byte
	}, len(docs))
	for key, doc := range docs {
		snap, err := doc.Root().Snapshot()
		if err != nil {
			return nil, fmt.Errorf("docproto: snapshot %q: %w", key, err)
		}
		out[key] = struct {
			Checkpoint doctime.Checkpoint
			Bytes      []byte
		}{Checkpoint: doc.Checkpoint(), Bytes: snap}
	}
	return out, nil
}

// GarbageCollect runs Document.GarbageCollect against every document
// the hub holds, for a maintenance loop driven off a cluster-wide
// watermark rather than a per-push checkpoint advance. Returns the
// total tombstone count purged across all documents.
func (h *Hub) GarbageCollect(upper *doctime.Ticket) int {
	h.mu.Lock()
	docs := make([]*document.Document, 0, len(h.documents))
	for _, doc := range h.documents {
		docs = append(docs, doc)
	}
	h.mu.Unlock()

	total := 0
	for _, doc := range docs {
		total += doc.GarbageCollect(upper)
	}
	return total
}
