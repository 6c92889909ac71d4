package aggregates

import (
	"context"
	"strings"

	"github.com/yungbote/trainwatch-backend/internal/domain/views"
)

// SessionLogContract returns the contract of the session-log aggregate for one view.
func SessionLogContract(kind views.Kind) Contract {
	name := "Playback." + viewTitle(kind) + "View"
	notes := "Owns owner resolution, session-entry upsert and event append in a single transaction. " +
		"Views never share a transaction."
	if kind == views.KindProgram {
		notes += " Never creates the program; an unprovisioned program is not_found."
	}
	return Contract{
		Name:             name,
		View:             kind,
		WriteTxOwnership: WriteTxOwnedByAggregate,
		ReadPolicy:       ReadPolicyReadModels,
		IdempotencyKey:   "event.id",
		Notes:            notes,
	}
}

func viewTitle(kind views.Kind) string {
	s := string(kind)
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// SessionLogAggregate is the write boundary of one denormalized view.
//
// Record failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
// A duplicate event ID is not an error: RecordResult.Appended is false.
type SessionLogAggregate interface {
	Aggregate

	Kind() views.Kind

	// Record resolves the owner, ensures the session entry and appends the event atomically.
	Record(ctx context.Context, in views.RecordInput) (views.RecordResult, error)

	// Ensure resolves the owner and creates the session entry without an event.
	Ensure(ctx context.Context, in views.EnsureInput) (views.RecordResult, error)

	// EventIDs lists recorded event IDs for one trainee session, in arrival order.
	EventIDs(ctx context.Context, ownerKey, programID, sessionID, traineeID string) ([]string, error)
}
