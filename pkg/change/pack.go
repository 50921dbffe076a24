package change

import doctime "github.com/cortexkv/crdtdoc/pkg/time"

// Pack is the unit Changes travel between replicas in: a batch of
// Changes plus the checkpoint they advance to and, for the initial sync
// of a document, a snapshot of its entire state instead of a replay log
// (spec §3.6, §6 "Change pack wire shape"). The wire encoding into
// protobuf lives in internal/wire; Pack itself is transport-agnostic.
type Pack struct {
	DocumentKey     string
	Checkpoint      doctime.Checkpoint
	Changes         []*Change
	Snapshot        []byte
	MinSyncedTicket *doctime.Ticket
	IsRemoved       bool
}

// NewPack builds a Pack carrying changes.
func NewPack(documentKey string, checkpoint doctime.Checkpoint, changes []*Change) *Pack {
	return &Pack{DocumentKey: documentKey, Checkpoint: checkpoint, Changes: changes}
}

// HasChanges reports whether the pack carries any changes to replay.
func (p *Pack) HasChanges() bool { return len(p.Changes) > 0 }

// HasSnapshot reports whether the pack carries a full-state snapshot
// instead of (or in addition to) an incremental change log.
func (p *Pack) HasSnapshot() bool { return len(p.Snapshot) > 0 }
