// Package docerr models the closed set of error kinds the document core
// and facade raise (spec §7). Callers compare against a Kind with
// errors.Is; the teacher's storage package gets by with ad-hoc
// fmt.Errorf("ERR ...") strings, but §7 names a fixed enumeration so we
// give it a real sentinel type instead of string-matching.
package docerr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed error kinds named in spec §7.
type Kind string

const (
	NotInitialized           Kind = "not_initialized"
	InvalidArgument          Kind = "invalid_argument"
	NotFound                 Kind = "not_found"
	TypeMismatch             Kind = "type_mismatch"
	Unimplemented            Kind = "unimplemented"
	DocumentRemoved          Kind = "document_removed"
	DocumentNotAttached      Kind = "document_not_attached"
	DocumentSizeExceedsLimit Kind = "document_size_exceeds_limit"
)

// Error pairs a Kind with a formatted message; it satisfies the error
// interface and unwraps to the bare Kind so errors.Is(err, docerr.NotFound)
// works regardless of how much context the message carries.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Is reports whether target is the same Kind, letting callers write
// errors.Is(err, docerr.NotFound) without caring about the message text.
func (e *Error) Is(target error) bool {
	var k *Error
	if errors.As(target, &k) {
		return e.Kind == k.Kind
	}
	return false
}

// New builds an Error of kind, formatting msg like fmt.Errorf.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf("%s: %s", kind, fmt.Sprintf(format, args...))}
}

// sentinel, used as the comparison target for errors.Is(err, docerr.NotFound) et al.
func sentinel(kind Kind) *Error { return &Error{Kind: kind} }

var (
	// NotFoundErr is the comparison sentinel for errors.Is(err, docerr.NotFoundErr).
	NotFoundErr                 = sentinel(NotFound)
	NotInitializedErr           = sentinel(NotInitialized)
	InvalidArgumentErr          = sentinel(InvalidArgument)
	TypeMismatchErr             = sentinel(TypeMismatch)
	UnimplementedErr            = sentinel(Unimplemented)
	DocumentRemovedErr          = sentinel(DocumentRemoved)
	DocumentNotAttachedErr      = sentinel(DocumentNotAttached)
	DocumentSizeExceedsLimitErr = sentinel(DocumentSizeExceedsLimit)
)
