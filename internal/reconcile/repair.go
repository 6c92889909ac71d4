package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/trainwatch-backend/internal/data/repos/sessions"
	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/ingestion"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

// RepairRequest names one event to copy from the Trainee-View into View.
type RepairRequest struct {
	View    views.Kind
	EventID string
}

type RepairerDeps struct {
	Trainees   sessions.TraineeRepo
	TraineeLog sessions.SessionLogRepo
	Program    domainagg.SessionLogAggregate
	Trainer    domainagg.SessionLogAggregate
	Programs   ingestion.ProgramDirectory
}

// Repairer replays a stored event into a secondary view. Replays are
// idempotent because view writes deduplicate on event ID.
type Repairer struct {
	log  *logger.Logger
	deps RepairerDeps
}

func NewRepairer(baseLog *logger.Logger, deps RepairerDeps) *Repairer {
	return &Repairer{log: baseLog.With("service", "Repairer"), deps: deps}
}

func (r *Repairer) Repair(ctx context.Context, req RepairRequest) (views.RecordResult, error) {
	const op = "Reconcile.Repair"
	var agg domainagg.SessionLogAggregate
	switch req.View {
	case views.KindProgram:
		agg = r.deps.Program
	case views.KindTrainer:
		agg = r.deps.Trainer
	default:
		return views.RecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "only program and trainer views are repairable", nil)
	}
	if strings.TrimSpace(req.EventID) == "" {
		return views.RecordResult{}, domainagg.NewError(domainagg.CodeValidation, op, "eventId is required", nil)
	}

	row, err := r.deps.TraineeLog.GetEvent(ctx, nil, req.EventID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return views.RecordResult{}, domainagg.NewError(domainagg.CodeNotFound, op, "event not in trainee view", err)
	}
	if err != nil {
		return views.RecordResult{}, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	ev := row.ToEvent()

	ref, found, err := r.deps.Programs.LookupProgram(ctx, ev.ProgramID)
	if err != nil {
		return views.RecordResult{}, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	if !found {
		return views.RecordResult{}, domainagg.NewError(domainagg.CodePreconditionFailed, op, "program not provisioned", nil)
	}
	owner := ref.ProgramID
	if req.View == views.KindTrainer {
		owner = ref.TrainerID
	}
	if strings.TrimSpace(owner) == "" {
		return views.RecordResult{}, domainagg.NewError(domainagg.CodePreconditionFailed, op, "program has no trainer", nil)
	}

	res, err := agg.Record(ctx, views.RecordInput{
		OwnerKey:    owner,
		PseudonymID: row.PseudonymID,
		Event:       ev,
		Defaults:    r.defaults(ctx, ev.TraineeID, ev.SessionID, ev.CreatedAt),
	})
	if err != nil {
		return res, err
	}
	r.log.Info("view repaired", "view", string(req.View), "event_id", req.EventID, "appended", res.Appended)
	return res, nil
}

// defaults copies title and video from the trainee's entry when it has one.
func (r *Repairer) defaults(ctx context.Context, traineeID, sessionID string, assignedAt time.Time) views.EntryDefaults {
	d := views.EntryDefaults{AssignedAt: assignedAt}
	tv, err := r.deps.Trainees.GetByTraineeID(ctx, nil, traineeID)
	if err != nil {
		return d
	}
	entry, err := r.deps.TraineeLog.GetEntry(ctx, nil, tv.ID, "", sessionID)
	if err != nil || entry == nil {
		return d
	}
	d.Title = entry.Title
	d.VideoURL = entry.VideoURL
	return d
}
