// Package document implements the facade every mutation and replication
// path goes through: a root Object, the local change log pending push to
// a server, and a single-threaded update session that clones the root
// for rollback on failure (spec §4.6, §5).
package document

import (
	"sync"

	"github.com/cortexkv/crdtdoc/internal/docerr"
	"github.com/cortexkv/crdtdoc/pkg/change"
	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Status is the document's attachment lifecycle state (spec §4.6).
type Status int

const (
	// Detached documents have never been attached to a server; their
	// changes accumulate locally only.
	Detached Status = iota
	// Attached documents have a live client/server sync relationship.
	Attached
	// Removed documents are tombstoned and reject further local updates.
	Removed
)

func (s Status) String() string {
	switch s {
	case Detached:
		return "detached"
	case Attached:
		return "attached"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Session is the callback an update runs against: it sees the cloned
// root through a fresh ChangeContext and builds operations by calling
// proxy methods on it. Returning an error aborts the whole session.
type Session func(ctx *change.Context, root *crdt.Root) error

// Document is the facade described by spec §4.6: a root Object, the
// change log pending push, the current sync checkpoint, and the GC
// watermark. All mutation flows through update, serialised by mu so
// concurrent callers observe one of the possible serialised orderings
// (spec §5).
type Document struct {
	mu sync.Mutex

	key    string
	actor  *doctime.ActorID
	status Status

	root          *crdt.Root
	changeID      *doctime.ChangeID
	localChanges  []*change.Change
	checkpoint    doctime.Checkpoint
	minSyncedTick *doctime.Ticket
}

// New creates a brand-new, Detached document keyed by key, with an empty
// root Object and the zero ChangeID/checkpoint a fresh client starts from.
func New(key string) *Document {
	root := crdt.NewRoot(crdt.NewObjectElement(doctime.InitialTicket))
	return &Document{
		key:          key,
		actor:        &doctime.InitialActorID,
		status:       Detached,
		root:         root,
		changeID:     doctime.InitialChangeID,
		checkpoint:   doctime.InitialCheckpoint,
		localChanges: nil,
	}
}

// Key returns the document's key.
func (d *Document) Key() string { return d.key }

// Status returns the document's current lifecycle state.
func (d *Document) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Checkpoint returns the document's current sync checkpoint.
func (d *Document) Checkpoint() doctime.Checkpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkpoint
}

// SetActor assigns the actor identity a server hands back on first
// attach, rekeying the local ChangeID onto it (spec §4.6, ChangeID.SyncedWith).
func (d *Document) SetActor(actor *doctime.ActorID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actor = actor
	d.changeID = d.changeID.SyncedWith(actor)
	d.status = Attached
}

// ToSortedJSON renders the current root as the cross-replica equality
// oracle (spec §4.6 to_sorted_json).
func (d *Document) ToSortedJSON() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root.Marshal()
}

// Root returns the document's current root, for callers (docproto's
// Hub, snapshot exporters) that need direct read access rather than a
// mutation session.
func (d *Document) Root() *crdt.Root {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root
}

// Update opens a session: it clones the root, hands the clone to fn
// inside a fresh ChangeContext, and on success appends the resulting
// Change to the local log and swaps in the mutated clone atomically. On
// any error (from fn or from a session precondition) the clone is
// dropped and neither root nor change log are touched (spec §4.6, §5
// "Cancellation").
func (d *Document) Update(message string, fn Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status == Removed {
		return docerr.New(docerr.DocumentRemoved, "document %q has been removed", d.key)
	}

	cloneRoot := d.root.DeepCopy()
	nextID := d.changeID.Next()
	ctx := change.NewContext(nextID, cloneRoot, message)

	if err := fn(ctx, cloneRoot); err != nil {
		return err
	}
	if !ctx.HasOperations() {
		return nil
	}

	d.changeID = nextID
	d.localChanges = append(d.localChanges, ctx.ToChange())
	d.root = cloneRoot
	return nil
}

// CreateChangePack snapshots the local changes accumulated since the
// last checkpoint into a Pack ready to push to a server, tagged with the
// client's current client_seq (spec §4.6 create_change_pack).
func (d *Document) CreateChangePack() *change.Pack {
	d.mu.Lock()
	defer d.mu.Unlock()

	pending := make([]*change.Change, len(d.localChanges))
	copy(pending, d.localChanges)

	cp := d.checkpoint
	cp.ClientSeq = d.changeID.ClientSeq()
	return change.NewPack(d.key, cp, pending)
}

// ApplyChangePack integrates a remote Pack: if it carries a snapshot,
// that snapshot becomes the new root outright; otherwise every remote
// change replays against the current root in order. The checkpoint and
// min_synced_ticket watermark both advance, and GC runs against the new
// watermark before returning (spec §4.6 apply_change_pack).
func (d *Document) ApplyChangePack(pack *change.Pack) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pack.HasSnapshot() {
		obj, err := crdt.UnmarshalObjectElement(pack.Snapshot)
		if err != nil {
			return err
		}
		d.root = crdt.NewRoot(obj)
	}

	if pack.HasChanges() {
		for _, ch := range pack.Changes {
			if err := ch.Execute(d.root); err != nil {
				return err
			}
		}
	}

	d.checkpoint = d.checkpoint.Forward(pack.Checkpoint)
	if pack.MinSyncedTicket != nil {
		d.minSyncedTick = pack.MinSyncedTicket
	}
	if pack.IsRemoved {
		d.status = Removed
	}

	d.localChanges = nil
	if d.minSyncedTick != nil {
		d.root.GarbageCollect(d.minSyncedTick)
	}
	return nil
}

// GarbageCollect purges every element tombstoned at or before upper,
// directly exposed for callers (tests, the shell's maintenance loop)
// that want to force a collection cycle outside of apply_change_pack
// (spec §4.6, §8 "GC idempotence").
func (d *Document) GarbageCollect(upper *doctime.Ticket) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.root.GarbageCollect(upper)
}
