package relation

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors_MatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		is       func(error) bool
	}{
		{"not found", notFoundWithoutID(testEntity()), ErrRecordNotFound, IsRecordNotFound},
		{"unsupported", &UnsupportedOperationError{Entity: "Post", Name: "find_by_x"}, ErrUnsupportedOperation, IsUnsupportedOperation},
		{"type mismatch", &TypeMismatchError{Expected: "Post", Got: "Comment"}, ErrTypeMismatch, IsTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, tt.sentinel)
			}
			if !tt.is(wrapped) {
				t.Errorf("helper did not match %v", wrapped)
			}
			if tt.is(nil) {
				t.Error("helper matched nil")
			}
			if tt.is(errors.New("other")) {
				t.Error("helper matched unrelated error")
			}
		})
	}
}

func TestErrors_Messages(t *testing.T) {
	entity := testEntity()

	tests := []struct {
		err  error
		want string
	}{
		{notFoundOne(entity, 5, ""), "relation: Couldn't find Post with ID=5"},
		{notFoundSome(entity, []any{1, 2}, "", 0, 2), "relation: Couldn't find all Posts with IDs (1, 2) (found 0 results, but was looking for 2)"},
		{&UnsupportedOperationError{Entity: "Post", Name: "find_by_x", Reason: "unknown attribute"}, `relation: undefined finder "find_by_x" for Post: unknown attribute`},
		{&TypeMismatchError{Expected: "Post", Got: "Comment"}, "relation: cannot merge Comment relation into Post relation"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
