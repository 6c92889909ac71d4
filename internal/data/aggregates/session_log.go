package aggregates

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/trainwatch-backend/internal/data/repos/sessions"
	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/platform/dbctx"
)

type SessionLogAggregateDeps struct {
	Base BaseDeps

	// Entries defaults to the session log of the aggregate's view.
	Entries  sessions.SessionLogRepo
	Trainees sessions.TraineeRepo
	Programs sessions.ProgramRepo
	Trainers sessions.TrainerRepo

	Now func() time.Time
}

// ownerResolver isolates the one place the three views differ: how the
// aggregate root is found or created.
type ownerResolver interface {
	resolve(ctx context.Context, tx *gorm.DB, key, pseudonymID, programID string, now time.Time) (views.Owner, string, error)
	find(ctx context.Context, tx *gorm.DB, key string) (views.Owner, error)
}

type sessionLogAggregate struct {
	kind     views.Kind
	contract domainagg.Contract
	deps     SessionLogAggregateDeps
	owners   ownerResolver
}

func newSessionLogAggregate(kind views.Kind, deps SessionLogAggregateDeps, owners ownerResolver) *sessionLogAggregate {
	deps.Base = deps.Base.withDefaults()
	if deps.Entries == nil {
		deps.Entries = sessions.NewSessionLogRepo(deps.Base.DB, deps.Base.Log, kind)
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	return &sessionLogAggregate{kind: kind, contract: domainagg.SessionLogContract(kind), deps: deps, owners: owners}
}

// NewTraineeViewAggregate creates trainees on first contact and enrolls them
// in the event's program.
func NewTraineeViewAggregate(deps SessionLogAggregateDeps) domainagg.SessionLogAggregate {
	return newSessionLogAggregate(views.KindTrainee, deps, traineeOwners{repo: deps.Trainees})
}

// NewProgramViewAggregate never creates programs; a missing program is CodeNotFound.
func NewProgramViewAggregate(deps SessionLogAggregateDeps) domainagg.SessionLogAggregate {
	return newSessionLogAggregate(views.KindProgram, deps, programOwners{repo: deps.Programs})
}

// NewTrainerViewAggregate creates trainers lazily.
func NewTrainerViewAggregate(deps SessionLogAggregateDeps) domainagg.SessionLogAggregate {
	return newSessionLogAggregate(views.KindTrainer, deps, trainerOwners{repo: deps.Trainers})
}

func (a *sessionLogAggregate) Contract() domainagg.Contract {
	return a.contract
}

func (a *sessionLogAggregate) Kind() views.Kind { return a.kind }

func (a *sessionLogAggregate) Record(ctx context.Context, in views.RecordInput) (views.RecordResult, error) {
	op := a.contract.Op("Record")
	var out views.RecordResult
	if err := requireKeys(in.OwnerKey, in.Event.ProgramID, in.Event.SessionID); err != nil {
		return out, MapError(op, err)
	}
	if strings.TrimSpace(in.Event.ID) == "" {
		return out, MapError(op, ValidationError("event id is required"))
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = views.RecordResult{}
		now := a.deps.Now()

		owner, pseudonym, err := a.owners.resolve(dbc.Ctx, dbc.Tx, in.OwnerKey, in.PseudonymID, in.Event.ProgramID, now)
		if err != nil {
			return err
		}
		entry, created, err := a.deps.Entries.UpsertEntry(dbc.Ctx, dbc.Tx, owner.ID, in.Event.ProgramID, in.Event.SessionID, in.Defaults, now)
		if err != nil {
			return err
		}
		before := entry.State()
		if created {
			before = views.EntryState{}
		}

		row := views.RowFromEvent(in.Event, pseudonym)
		row.EntryID = entry.ID
		row.Seq = entry.EventCount + 1
		row.RecordedAt = now
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		inserted, err := a.deps.Entries.InsertEvent(dbc.Ctx, dbc.Tx, &row)
		if err != nil {
			return err
		}
		if inserted {
			ok, err := a.deps.Base.CASGuard.UpdateByCount(dbc, a.deps.Entries.Tables().Entries, "event_count", entry.ID, entry.EventCount, map[string]any{
				"event_count":      entry.EventCount + 1,
				"last_accessed_at": now,
				"updated_at":       now,
			})
			if err != nil {
				return err
			}
			if err := RequireCASSuccess(ok, "event_count moved under row lock"); err != nil {
				return err
			}
			entry.EventCount++
			entry.LastAccessedAt = &now
		}
		if err := RequireMonotonic(before.Events, entry.EventCount); err != nil {
			return err
		}

		out = views.RecordResult{
			Owner:       owner,
			PseudonymID: pseudonym,
			EntryID:     entry.ID.String(),
			Appended:    inserted,
			Before:      before,
			After:       entry.State(),
		}
		return nil
	})
	if err != nil {
		return views.RecordResult{}, err
	}
	a.deps.Base.Log.Debug("view event recorded",
		"view", string(a.kind),
		"event_id", in.Event.ID,
		"session_id", in.Event.SessionID,
		"appended", out.Appended,
		"state", out.After.String(),
	)
	return out, nil
}

func (a *sessionLogAggregate) Ensure(ctx context.Context, in views.EnsureInput) (views.RecordResult, error) {
	op := a.contract.Op("Ensure")
	var out views.RecordResult
	if err := requireKeys(in.OwnerKey, in.ProgramID, in.SessionID); err != nil {
		return out, MapError(op, err)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		now := a.deps.Now()
		owner, pseudonym, err := a.owners.resolve(dbc.Ctx, dbc.Tx, in.OwnerKey, in.PseudonymID, in.ProgramID, now)
		if err != nil {
			return err
		}
		entry, created, err := a.deps.Entries.UpsertEntry(dbc.Ctx, dbc.Tx, owner.ID, in.ProgramID, in.SessionID, in.Defaults, now)
		if err != nil {
			return err
		}
		before := entry.State()
		if created {
			before = views.EntryState{}
		}
		out = views.RecordResult{
			Owner:       owner,
			PseudonymID: pseudonym,
			EntryID:     entry.ID.String(),
			Before:      before,
			After:       entry.State(),
		}
		return nil
	})
	if err != nil {
		return views.RecordResult{}, err
	}
	return out, nil
}

// EventIDs returns an empty list when the owner or entry does not exist.
func (a *sessionLogAggregate) EventIDs(ctx context.Context, ownerKey, programID, sessionID, traineeID string) ([]string, error) {
	op := a.contract.Op("EventIDs")
	owner, err := a.owners.find(ctx, nil, ownerKey)
	if errors.Is(err, views.ErrOwnerNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, MapError(op, err)
	}
	if a.kind == views.KindTrainee {
		// trainee entries are keyed by session alone
		programID = ""
	}
	ids, err := a.deps.Entries.EventIDs(ctx, nil, owner.ID, programID, sessionID, traineeID)
	if err != nil {
		return nil, MapError(op, err)
	}
	return ids, nil
}

func requireKeys(ownerKey, programID, sessionID string) error {
	switch {
	case strings.TrimSpace(ownerKey) == "":
		return ValidationError("owner key is required")
	case strings.TrimSpace(programID) == "":
		return ValidationError("program id is required")
	case strings.TrimSpace(sessionID) == "":
		return ValidationError("session id is required")
	}
	return nil
}

type traineeOwners struct {
	repo sessions.TraineeRepo
}

func (o traineeOwners) resolve(ctx context.Context, tx *gorm.DB, key, pseudonymID, programID string, now time.Time) (views.Owner, string, error) {
	if o.repo == nil {
		return views.Owner{}, "", domainagg.NewError(domainagg.CodeInternal, "views.trainee", "trainee repo not configured", nil)
	}
	if strings.TrimSpace(pseudonymID) == "" {
		existing, err := o.repo.GetByTraineeID(ctx, tx, key)
		if errors.Is(err, views.ErrOwnerNotFound) {
			return views.Owner{}, "", ValidationError("pseudonym is required to create trainee " + key)
		}
		if err != nil {
			return views.Owner{}, "", err
		}
		pseudonymID = existing.PseudonymID
	}
	tv, err := o.repo.EnsureOwner(ctx, tx, key, pseudonymID, now)
	if err != nil {
		return views.Owner{}, "", err
	}
	if err := o.repo.Enroll(ctx, tx, tv.ID, programID, now); err != nil {
		return views.Owner{}, "", err
	}
	return views.Owner{Kind: views.KindTrainee, ID: tv.ID, Key: tv.TraineeID}, tv.PseudonymID, nil
}

func (o traineeOwners) find(ctx context.Context, tx *gorm.DB, key string) (views.Owner, error) {
	if o.repo == nil {
		return views.Owner{}, domainagg.NewError(domainagg.CodeInternal, "views.trainee", "trainee repo not configured", nil)
	}
	tv, err := o.repo.GetByTraineeID(ctx, tx, key)
	if err != nil {
		return views.Owner{}, err
	}
	return views.Owner{Kind: views.KindTrainee, ID: tv.ID, Key: tv.TraineeID}, nil
}

type programOwners struct {
	repo sessions.ProgramRepo
}

func (o programOwners) resolve(ctx context.Context, tx *gorm.DB, key, pseudonymID, _ string, _ time.Time) (views.Owner, string, error) {
	owner, err := o.find(ctx, tx, key)
	return owner, pseudonymID, err
}

func (o programOwners) find(ctx context.Context, tx *gorm.DB, key string) (views.Owner, error) {
	if o.repo == nil {
		return views.Owner{}, domainagg.NewError(domainagg.CodeInternal, "views.program", "program repo not configured", nil)
	}
	pv, err := o.repo.GetByProgramID(ctx, tx, key)
	if err != nil {
		return views.Owner{}, err
	}
	return views.Owner{Kind: views.KindProgram, ID: pv.ID, Key: pv.ProgramID}, nil
}

type trainerOwners struct {
	repo sessions.TrainerRepo
}

func (o trainerOwners) resolve(ctx context.Context, tx *gorm.DB, key, pseudonymID, _ string, now time.Time) (views.Owner, string, error) {
	if o.repo == nil {
		return views.Owner{}, "", domainagg.NewError(domainagg.CodeInternal, "views.trainer", "trainer repo not configured", nil)
	}
	tv, err := o.repo.EnsureOwner(ctx, tx, key, now)
	if err != nil {
		return views.Owner{}, "", err
	}
	return views.Owner{Kind: views.KindTrainer, ID: tv.ID, Key: tv.TrainerID}, pseudonymID, nil
}

func (o trainerOwners) find(ctx context.Context, tx *gorm.DB, key string) (views.Owner, error) {
	if o.repo == nil {
		return views.Owner{}, domainagg.NewError(domainagg.CodeInternal, "views.trainer", "trainer repo not configured", nil)
	}
	tv, err := o.repo.GetByTrainerID(ctx, tx, key)
	if err != nil {
		return views.Owner{}, err
	}
	return views.Owner{Kind: views.KindTrainer, ID: tv.ID, Key: tv.TrainerID}, nil
}
