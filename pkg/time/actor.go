// Package time provides the logical clock and identity types that
// timestamp every mutation of a CRDT document: ActorID, TimeTicket,
// ChangeID and Checkpoint.
package time

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ActorIDSize is the number of bytes in an opaque actor identifier.
const ActorIDSize = 12

// ActorID identifies a replica minting operations. It is serialised as a
// 24-char hex string and compared lexicographically on that string.
type ActorID struct {
	bytes [ActorIDSize]byte
}

// InitialActorID is used for documents that have not been attached to a
// client yet; it sorts before every other actor.
var InitialActorID = ActorID{}

// NewActorID mints a fresh, random actor identity. It draws its entropy
// from a uuid.New() value and keeps the first ActorIDSize bytes, the way
// the teacher's replica ids are derived from a single entropy source.
func NewActorID() *ActorID {
	id := uuid.New()
	var a ActorID
	copy(a.bytes[:], id[:ActorIDSize])
	return &a
}

// NewActorIDFromHex parses a 24-char hex string into an ActorID.
func NewActorIDFromHex(s string) (*ActorID, error) {
	if s == "" {
		return &InitialActorID, nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parse actor id %q: %w", s, err)
	}
	if len(decoded) != ActorIDSize {
		return nil, fmt.Errorf("actor id %q has %d bytes, want %d", s, len(decoded), ActorIDSize)
	}
	var a ActorID
	copy(a.bytes[:], decoded)
	return &a, nil
}

// String returns the 24-char hex representation of the actor id.
func (a *ActorID) String() string {
	if a == nil {
		return ""
	}
	return hex.EncodeToString(a.bytes[:])
}

// Bytes returns the raw 12 bytes of the actor id.
func (a *ActorID) Bytes() []byte {
	if a == nil {
		return nil
	}
	b := make([]byte, ActorIDSize)
	copy(b, a.bytes[:])
	return b
}

// Compare orders actor ids lexicographically on their hex string. A nil
// receiver or argument is treated as the smallest possible actor id.
func (a *ActorID) Compare(other *ActorID) int {
	aHex, otherHex := "", ""
	if a != nil {
		aHex = a.String()
	}
	if other != nil {
		otherHex = other.String()
	}
	switch {
	case aHex < otherHex:
		return -1
	case aHex > otherHex:
		return 1
	default:
		return 0
	}
}

// Equal reports whether two actor ids are the same.
func (a *ActorID) Equal(other *ActorID) bool {
	return a.Compare(other) == 0
}
