package time

import "fmt"

// Ticket is a Lamport-style timestamp with an actor tiebreak: every
// mutation in a document carries one, and the total order over tickets
// defines the convergence order of concurrent edits (spec §3.1).
type Ticket struct {
	lamport   uint64
	delimiter uint32
	actorID   *ActorID
}

// InitialTicket is the smallest possible ticket.
var InitialTicket = NewTicket(0, 0, &InitialActorID)

// MaxTicket is a sentinel larger than any ticket a real actor can mint;
// it is used during bulk/local operations to mean "visible to everyone".
var MaxTicket = NewTicket(^uint64(0), ^uint32(0), &InitialActorID)

// NewTicket builds a Ticket from its three components.
func NewTicket(lamport uint64, delimiter uint32, actorID *ActorID) *Ticket {
	return &Ticket{lamport: lamport, delimiter: delimiter, actorID: actorID}
}

// Lamport returns the Lamport clock value.
func (t *Ticket) Lamport() uint64 { return t.lamport }

// Delimiter returns the per-change tie-break counter.
func (t *Ticket) Delimiter() uint32 { return t.delimiter }

// ActorID returns the minting actor, or nil.
func (t *Ticket) ActorID() *ActorID { return t.actorID }

// ActorIDHex returns the hex string of the minting actor, "" if absent.
func (t *Ticket) ActorIDHex() string {
	if t.actorID == nil {
		return ""
	}
	return t.actorID.String()
}

// Compare orders two tickets: by lamport, then delimiter, then actor id.
func (t *Ticket) Compare(other *Ticket) int {
	if t.lamport != other.lamport {
		if t.lamport < other.lamport {
			return -1
		}
		return 1
	}
	if t.delimiter != other.delimiter {
		if t.delimiter < other.delimiter {
			return -1
		}
		return 1
	}
	return t.actorID.Compare(other.actorID)
}

// After reports whether t sorts strictly after other.
func (t *Ticket) After(other *Ticket) bool {
	return t.Compare(other) > 0
}

// Equal reports whether t and other occupy the same position in the
// total order.
func (t *Ticket) Equal(other *Ticket) bool {
	return t.Compare(other) == 0
}

// Key returns a string uniquely identifying this ticket, suitable for
// use as a map key (e.g. removedNodeMap, tombstone registries).
func (t *Ticket) Key() string {
	return fmt.Sprintf("%020d:%010d:%s", t.lamport, t.delimiter, t.ActorIDHex())
}

// AnnotatedString renders the ticket for debugging.
func (t *Ticket) AnnotatedString() string {
	return fmt.Sprintf("%d:%d:%s", t.lamport, t.delimiter, t.ActorIDHex())
}

// DeepCopy returns a copy of the ticket; tickets are immutable so this
// just clones the struct, never the actor id pointer's target.
func (t *Ticket) DeepCopy() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
