package aggregates

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"gorm.io/gorm"
)

func TestMapErrorCodes(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want domainagg.ErrorCode
	}{
		{"validation", ValidationError("bad input"), domainagg.CodeValidation},
		{"invariant", InvariantError("counter"), domainagg.CodeInvariantViolation},
		{"conflict", ConflictError("stale"), domainagg.CodeConflict},
		{"retryable", RetryableError("lock"), domainagg.CodeRetryable},
		{"record not found", gorm.ErrRecordNotFound, domainagg.CodeNotFound},
		{"owner not found", fmt.Errorf("program p1: %w", views.ErrOwnerNotFound), domainagg.CodeNotFound},
		{"deadline", context.DeadlineExceeded, domainagg.CodeRetryable},
		{"pg unique", &pgconn.PgError{Code: "23505"}, domainagg.CodeConflict},
		{"pg fk", &pgconn.PgError{Code: "23503"}, domainagg.CodePreconditionFailed},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, domainagg.CodeRetryable},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, domainagg.CodeRetryable},
		{"unknown", errors.New("disk on fire"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := MapError("op", tc.in)
			if !domainagg.IsCode(err, tc.want) {
				t.Fatalf("expected %s, got %q (%v)", tc.want, domainagg.CodeOf(err), err)
			}
			if !errors.Is(err, tc.in) {
				t.Fatalf("cause lost: %v", err)
			}
		})
	}
}

func TestMapErrorPassthroughAggregateError(t *testing.T) {
	in := domainagg.NewError(domainagg.CodeRetryable, "op", "retry", errors.New("boom"))
	if out := MapError("other", in); out != in {
		t.Fatalf("expected passthrough aggregate error")
	}
	if MapError("op", nil) != nil {
		t.Fatalf("nil must map to nil")
	}
}

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RequireCASSuccess(false, "event_count moved"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := RequireMonotonic(3, 2); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant error, got %v", err)
	}
}
