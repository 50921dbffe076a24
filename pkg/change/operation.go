// Package change implements the operation log that drives document
// replication: each user-facing mutation is recorded as an Operation,
// batched into a Change bound to one ChangeID, and Changes travel between
// replicas inside a ChangePack (spec §3.6, §4.1, §4.5).
package change

import (
	"fmt"

	"github.com/cortexkv/crdtdoc/pkg/crdt"
	doctime "github.com/cortexkv/crdtdoc/pkg/time"
)

// Operation is a single replicated mutation. Every variant carries the
// createdAt of the element it applies against and the ticket it executes
// at; Execute resolves that parent through root's element index and is
// required to be a no-op (not an error) when the parent is missing or
// already removed, so that replay is idempotent under concurrent deletes
// (spec §4.5 "Replay contract").
type Operation interface {
	ParentCreatedAt() *doctime.Ticket
	ExecutedAt() *doctime.Ticket
	Execute(root *crdt.Root) error
}

type baseOperation struct {
	parentCreatedAt *doctime.Ticket
	executedAt      *doctime.Ticket
}

func (o *baseOperation) ParentCreatedAt() *doctime.Ticket { return o.parentCreatedAt }
func (o *baseOperation) ExecutedAt() *doctime.Ticket      { return o.executedAt }

// resolveParent looks up an operation's target container, applying the
// skip-if-absent-or-removed rule every op shares (spec §4.5).
func resolveParent(root *crdt.Root, parentCreatedAt *doctime.Ticket) (*crdt.Element, bool) {
	elem, ok := root.FindByCreatedAt(parentCreatedAt)
	if !ok || elem.IsRemoved() {
		return nil, false
	}
	return elem, true
}

func typeMismatch(op string, parent *crdt.Element, want string) error {
	return fmt.Errorf("type mismatch: %s op targets a %s, want %s", op, parent.Kind(), want)
}
