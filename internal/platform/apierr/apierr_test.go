package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
)

func TestFromAggregateStatus(t *testing.T) {
	cases := []struct {
		code domainagg.ErrorCode
		want int
	}{
		{domainagg.CodeValidation, http.StatusBadRequest},
		{domainagg.CodeNotFound, http.StatusNotFound},
		{domainagg.CodeConflict, http.StatusConflict},
		{domainagg.CodePreconditionFailed, http.StatusConflict},
		{domainagg.CodeRetryable, http.StatusServiceUnavailable},
		{domainagg.CodeInvariantViolation, http.StatusInternalServerError},
		{domainagg.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := fmt.Errorf("wrapped: %w", domainagg.NewError(tc.code, "op", "boom", nil))
		if got := FromAggregate(err).Status; got != tc.want {
			t.Fatalf("code %s: status %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestFromAggregatePassesThroughAPIError(t *testing.T) {
	orig := New(http.StatusTooManyRequests, "batch_too_large", errors.New("too many"))
	if got := FromAggregate(fmt.Errorf("ctx: %w", orig)); got != orig {
		t.Fatalf("expected passthrough, got %+v", got)
	}
	if FromAggregate(nil) != nil {
		t.Fatalf("nil should map to nil")
	}
	if got := FromAggregate(errors.New("plain")).Status; got != http.StatusInternalServerError {
		t.Fatalf("plain error status %d", got)
	}
}
