package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKinds(t *testing.T) {
	tests := []struct {
		err  error
		kind error
		msg  string
	}{
		{Validation("content is required"), ErrValidation, "content is required"},
		{NotFound("task %d not found", 7), ErrNotFound, "task 7 not found"},
		{Forbidden("not your child"), ErrForbidden, "not your child"},
		{Conflict("task is already done"), ErrConflict, "task is already done"},
		{EmptyInput("no children"), ErrEmptyInput, "no children"},
		{fmt.Errorf("redeem: %w", ErrInsufficientBalance), ErrInsufficientBalance, "insufficient balance"},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.kind) {
			t.Errorf("%v is not %v", tt.err, tt.kind)
		}
		wrapped := fmt.Errorf("outer: %w", tt.err)
		if got := Message(wrapped); got != tt.msg {
			t.Errorf("Message(%v) = %q, want %q", wrapped, got, tt.msg)
		}
	}
}

func TestMessageOpaque(t *testing.T) {
	if got := Message(errors.New("disk I/O error")); got != "" {
		t.Errorf("Message = %q, want empty for non-domain errors", got)
	}
}
