package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrTypeExecution, "syntax error near SELECT")
	if err.Error() != "execution: syntax error near SELECT" {
		t.Errorf("unexpected message: %s", err.Error())
	}

	wrapped := Wrap(fmt.Errorf("column does not exist"), ErrTypeExecution, "query failed")
	want := "execution: query failed (caused by: column does not exist)"

	if wrapped.Error() != want {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrTypeConnection, "cannot connect")

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestIsType(t *testing.T) {
	err := Newf(ErrTypeIntrospection, "cannot read catalog for %s", "public")

	if !IsType(err, ErrTypeIntrospection) {
		t.Error("expected introspection type")
	}

	if IsType(err, ErrTypeExecution) {
		t.Error("did not expect execution type")
	}

	// Wrapping in a plain error should still resolve the type
	outer := fmt.Errorf("request failed: %w", err)
	if !IsType(outer, ErrTypeIntrospection) {
		t.Error("expected type to survive plain wrapping")
	}
}

func TestGetType(t *testing.T) {
	if got := GetType(errors.New("plain")); got != ErrTypeInternal {
		t.Errorf("expected internal for plain errors, got %s", got)
	}

	if got := GetType(New(ErrTypeCacheCorruption, "bad row")); got != ErrTypeCacheCorruption {
		t.Errorf("expected cache_corruption, got %s", got)
	}
}

func TestRootCause(t *testing.T) {
	cause := errors.New(`column "mail" does not exist`)
	wrapped := Wrap(Wrap(cause, ErrTypeExecution, "statement failed"),
		ErrTypeExecution, "attempt 1 failed")

	if got := RootCause(wrapped); got != cause {
		t.Errorf("expected innermost cause, got %v", got)
	}

	plain := errors.New("plain")
	if got := RootCause(plain); got != plain {
		t.Errorf("expected plain error unchanged, got %v", got)
	}

	bare := New(ErrTypeGeneration, "no cause")
	if got := RootCause(bare); got != error(bare) {
		t.Errorf("expected error without cause unchanged, got %v", got)
	}
}

func TestSuggestions(t *testing.T) {
	err := NewConnectionError(errors.New("dial tcp: refused"), "db.local:5432")

	if len(err.Suggestions) != 2 {
		t.Errorf("expected 2 suggestions, got %d", len(err.Suggestions))
	}

	if !IsType(err, ErrTypeConnection) {
		t.Error("expected connection type")
	}
}
