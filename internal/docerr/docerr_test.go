package docerr

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := New(NotFound, "ticket %s", "1:0:abc")
	if !errors.Is(err, NotFoundErr) {
		t.Fatalf("errors.Is(err, NotFoundErr) = false, want true")
	}
	if errors.Is(err, InvalidArgumentErr) {
		t.Fatalf("errors.Is(err, InvalidArgumentErr) = true, want false")
	}
}

func TestErrorMessageIncludesKind(t *testing.T) {
	err := New(DocumentRemoved, "doc %s", "abc")
	if err.Error() != "document_removed: doc abc" {
		t.Fatalf("Error() = %q, want kind-prefixed message", err.Error())
	}
}
