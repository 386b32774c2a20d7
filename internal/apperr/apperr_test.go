package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("load team: %w", NotFound("team %s not found", "t1"))

	if IsKind(err, KindConflict) {
		t.Fatal("not found must not match conflict")
	}
	if got := KindOf(err); got != KindNotFound {
		t.Fatalf("KindOf = %s", got)
	}
	if !IsKind(err, KindNotFound) || IsKind(nil, KindNotFound) {
		t.Fatal("IsKind mismatch")
	}
}

func TestKindOfUntyped(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != KindInternal {
		t.Fatalf("KindOf = %s, want internal", got)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := Wrap(KindValidation, cause, "invalid request body")

	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause should be reachable")
	}
	if err.Error() != "validation: invalid request body: unexpected EOF" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
