package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	base := NotFound("storage.GetVideo", "video not found")
	wrapped := fmt.Errorf("handler: %w", base)
	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("KindOf = %v, want %v", got, KindNotFound)
	}
	if !IsKind(wrapped, KindNotFound) {
		t.Fatalf("IsKind(%v, KindNotFound) = false", wrapped)
	}
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	if got := KindOf(errors.New("disk full")); got != KindInternal {
		t.Fatalf("KindOf = %v, want %v", got, KindInternal)
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("storage.Ping", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false")
	}
}

func TestMessageFallsBackForForeignErrors(t *testing.T) {
	if got := Message(errors.New("stack trace here")); got != "internal error" {
		t.Fatalf("Message = %q, want generic fallback", got)
	}
	if got := Message(Validation("api.decode", "title is required")); got != "title is required" {
		t.Fatalf("Message = %q", got)
	}
}

func TestKindStrings(t *testing.T) {
	cases := map[Kind]string{
		KindValidation:    "validation",
		KindNotFound:      "not_found",
		KindUnauthorized:  "unauthorized",
		KindForbidden:     "forbidden",
		KindConflict:      "conflict",
		KindRefreshReused: "refresh_reused",
		KindUnavailable:   "unavailable",
		KindInternal:      "internal",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
