// Package watermark tracks, per actor, the highest document lamport
// clock value that actor has durably synced, and replicates that state
// across a cluster with hashicorp/raft so every replica agrees on the
// same min_synced_ticket before running garbage_collect (spec §4.6,
// §6 "watermark advance").
//
// The per-actor tracking borrows the vector-clock shape the teacher
// used for causality tracking (storage/vector_clock.go) and repurposes
// it: instead of comparing two clocks for happens-before, watermark
// only ever needs the minimum lamport value across all known actors,
// since that is the point below which every actor has already seen
// (and thus every tombstone at or before it can be purged safely).
package watermark

import (
	"encoding/json"
	"sort"
)

// Clock is a per-actor high-water mark: actorIDHex -> highest lamport
// value that actor is known to have synced.
type Clock struct {
	Marks map[string]uint64 `json:"marks"`
}

// NewClock returns an empty Clock.
func NewClock() *Clock {
	return &Clock{Marks: make(map[string]uint64)}
}

// Advance records that actorID has synced up through lamport, taking
// the maximum of the recorded value and lamport (sync marks never move
// backwards).
func (c *Clock) Advance(actorID string, lamport uint64) {
	if cur, ok := c.Marks[actorID]; !ok || lamport > cur {
		c.Marks[actorID] = lamport
	}
}

// Merge folds other into c, taking the maximum mark per actor.
func (c *Clock) Merge(other *Clock) {
	if other == nil {
		return
	}
	for actorID, lamport := range other.Marks {
		c.Advance(actorID, lamport)
	}
}

// Min returns the lowest lamport mark across all known actors, and
// whether any actor is known at all. An empty Clock has no watermark
// yet: callers should treat that as "nothing is safe to collect".
func (c *Clock) Min() (uint64, bool) {
	if len(c.Marks) == 0 {
		return 0, false
	}
	var min uint64
	first := true
	for _, lamport := range c.Marks {
		if first || lamport < min {
			min = lamport
			first = false
		}
	}
	return min, true
}

// Actors returns the known actor ids in sorted order, for deterministic
// iteration and string rendering.
func (c *Clock) Actors() []string {
	actors := make([]string, 0, len(c.Marks))
	for actorID := range c.Marks {
		actors = append(actors, actorID)
	}
	sort.Strings(actors)
	return actors
}

// Copy returns a deep copy of c.
func (c *Clock) Copy() *Clock {
	cp := NewClock()
	for actorID, lamport := range c.Marks {
		cp.Marks[actorID] = lamport
	}
	return cp
}

// MarshalBinary renders the clock as JSON, the byte form raft hands to
// FSMSnapshot.Persist and the apply log.
func (c *Clock) MarshalBinary() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalBinary is MarshalBinary's inverse.
func (c *Clock) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, c)
}
