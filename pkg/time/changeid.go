package time

import "fmt"

// ChangeID identifies a single local change: the tuple of per-actor
// client sequence, the lamport clock observed when it was created, and
// the actor that created it. ClientSeq is strictly increasing per actor
// (spec §3.2).
type ChangeID struct {
	clientSeq uint32
	lamport   uint64
	actor     *ActorID
}

// InitialChangeID is the change id a brand-new, unattached document
// starts from.
var InitialChangeID = NewChangeID(0, 0, &InitialActorID)

// NewChangeID builds a ChangeID from its components.
func NewChangeID(clientSeq uint32, lamport uint64, actor *ActorID) *ChangeID {
	return &ChangeID{clientSeq: clientSeq, lamport: lamport, actor: actor}
}

// ClientSeq returns the per-actor client sequence number.
func (c *ChangeID) ClientSeq() uint32 { return c.clientSeq }

// Lamport returns the lamport clock value observed at creation.
func (c *ChangeID) Lamport() uint64 { return c.lamport }

// Actor returns the creating actor.
func (c *ChangeID) Actor() *ActorID { return c.actor }

// Next returns the ChangeID for the next local change by the same actor:
// client seq increments, lamport carries forward unchanged (the
// ChangeContext bound to it is what advances the lamport clock).
func (c *ChangeID) Next() *ChangeID {
	return NewChangeID(c.clientSeq+1, c.lamport, c.actor)
}

// SyncedWith returns a copy of c with its actor set, used when a
// document first attaches to the server and is assigned a real actor id.
func (c *ChangeID) SyncedWith(actor *ActorID) *ChangeID {
	return NewChangeID(c.clientSeq, c.lamport, actor)
}

// NewTicket mints the initial ticket for a change, given the new lamport
// value computed by the owning ChangeContext.
func (c *ChangeID) NewTicket(lamport uint64, delimiter uint32) *Ticket {
	return NewTicket(lamport, delimiter, c.actor)
}

// String renders the change id for logs.
func (c *ChangeID) String() string {
	return fmt.Sprintf("%d:%d:%s", c.clientSeq, c.lamport, c.actor.String())
}

// Checkpoint tracks how far a client and server have synchronised:
// ServerSeq is the server's change sequence number, ClientSeq the
// client's (spec §3.2).
type Checkpoint struct {
	ServerSeq uint64
	ClientSeq uint32
}

// InitialCheckpoint is the zero checkpoint a fresh document starts from.
var InitialCheckpoint = Checkpoint{}

// Forward returns the checkpoint advanced to the maximum of c and other
// component-wise; checkpoints only ever move forward.
func (c Checkpoint) Forward(other Checkpoint) Checkpoint {
	next := c
	if other.ServerSeq > next.ServerSeq {
		next.ServerSeq = other.ServerSeq
	}
	if other.ClientSeq > next.ClientSeq {
		next.ClientSeq = other.ClientSeq
	}
	return next
}

// String renders the checkpoint for logs.
func (c Checkpoint) String() string {
	return fmt.Sprintf("server=%d client=%d", c.ServerSeq, c.ClientSeq)
}
