package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/trainwatch-backend/internal/data/repos/sessions"
	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/ingestion"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

// DriftReport compares one trainee session across the three views. The
// Trainee-View is authoritative; Missing lists events it holds that a
// secondary view lacks and Extra lists the reverse. A session shared by
// several programs is diffed per program in Programs; the top-level lists
// are their union.
type DriftReport struct {
	TraineeID          string         `json:"traineeId"`
	SessionID          string         `json:"sessionId"`
	ProgramID          string         `json:"programId"`
	TrainerID          string         `json:"trainerId,omitempty"`
	ProgramProvisioned bool           `json:"programProvisioned"`
	TraineeEvents      int            `json:"traineeEvents"`
	MissingFromProgram []string       `json:"missingFromProgram"`
	MissingFromTrainer []string       `json:"missingFromTrainer"`
	ExtraInProgram     []string       `json:"extraInProgram"`
	ExtraInTrainer     []string       `json:"extraInTrainer"`
	Programs           []ProgramDrift `json:"programs"`
}

// ProgramDrift is the slice of a DriftReport for events recorded under one
// program.
type ProgramDrift struct {
	ProgramID          string   `json:"programId"`
	TrainerID          string   `json:"trainerId,omitempty"`
	Provisioned        bool     `json:"provisioned"`
	TraineeEvents      int      `json:"traineeEvents"`
	MissingFromProgram []string `json:"missingFromProgram"`
	MissingFromTrainer []string `json:"missingFromTrainer"`
	ExtraInProgram     []string `json:"extraInProgram"`
	ExtraInTrainer     []string `json:"extraInTrainer"`
}

func (r DriftReport) Clean() bool {
	return len(r.MissingFromProgram) == 0 && len(r.MissingFromTrainer) == 0 &&
		len(r.ExtraInProgram) == 0 && len(r.ExtraInTrainer) == 0
}

type CheckerDeps struct {
	Trainees   sessions.TraineeRepo
	TraineeLog sessions.SessionLogRepo
	Program    domainagg.SessionLogAggregate
	Trainer    domainagg.SessionLogAggregate
	Programs   ingestion.ProgramDirectory
	Scheduler  ingestion.RepairScheduler
}

type Checker struct {
	log  *logger.Logger
	deps CheckerDeps
}

func NewChecker(baseLog *logger.Logger, deps CheckerDeps) *Checker {
	return &Checker{log: baseLog.With("service", "DriftChecker"), deps: deps}
}

func (c *Checker) Check(ctx context.Context, traineeID, sessionID string) (DriftReport, error) {
	const op = "Reconcile.Check"
	traineeID = strings.TrimSpace(traineeID)
	sessionID = strings.TrimSpace(sessionID)
	report := DriftReport{
		TraineeID:          traineeID,
		SessionID:          sessionID,
		MissingFromProgram: []string{},
		MissingFromTrainer: []string{},
		ExtraInProgram:     []string{},
		ExtraInTrainer:     []string{},
	}
	if traineeID == "" || sessionID == "" {
		return report, domainagg.NewError(domainagg.CodeValidation, op, "traineeId and sessionId are required", nil)
	}

	tv, err := c.deps.Trainees.GetByTraineeID(ctx, nil, traineeID)
	if errors.Is(err, views.ErrOwnerNotFound) {
		return report, domainagg.NewError(domainagg.CodeNotFound, op, "trainee not found", err)
	}
	if err != nil {
		return report, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	entry, err := c.deps.TraineeLog.GetEntry(ctx, nil, tv.ID, "", sessionID)
	if err != nil {
		return report, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	if entry == nil {
		return report, domainagg.NewError(domainagg.CodeNotFound, op, "session not assigned to trainee", nil)
	}
	report.ProgramID = entry.ProgramID

	rows, err := c.deps.TraineeLog.ListEvents(ctx, nil, []uuid.UUID{entry.ID})
	if err != nil {
		return report, domainagg.Wrap(domainagg.CodeInternal, op, err)
	}
	report.TraineeEvents = len(rows)

	// Group by the program each event was recorded under, entry program first.
	order := []string{entry.ProgramID}
	byProgram := map[string][]string{entry.ProgramID: {}}
	for _, row := range rows {
		if _, ok := byProgram[row.ProgramID]; !ok {
			order = append(order, row.ProgramID)
		}
		byProgram[row.ProgramID] = append(byProgram[row.ProgramID], row.EventID)
	}

	report.ProgramProvisioned = true
	report.Programs = make([]ProgramDrift, 0, len(order))
	for i, programID := range order {
		pd, err := c.checkProgram(ctx, op, traineeID, sessionID, programID, byProgram[programID])
		if err != nil {
			return report, err
		}
		if i == 0 {
			report.TrainerID = pd.TrainerID
		}
		report.ProgramProvisioned = report.ProgramProvisioned && pd.Provisioned
		report.MissingFromProgram = append(report.MissingFromProgram, pd.MissingFromProgram...)
		report.MissingFromTrainer = append(report.MissingFromTrainer, pd.MissingFromTrainer...)
		report.ExtraInProgram = append(report.ExtraInProgram, pd.ExtraInProgram...)
		report.ExtraInTrainer = append(report.ExtraInTrainer, pd.ExtraInTrainer...)
		report.Programs = append(report.Programs, pd)
	}
	return report, nil
}

// checkProgram diffs the trainee events recorded under programID against
// that program's view and its trainer's view.
func (c *Checker) checkProgram(ctx context.Context, op, traineeID, sessionID, programID string, primary []string) (ProgramDrift, error) {
	pd := ProgramDrift{
		ProgramID:          programID,
		TraineeEvents:      len(primary),
		MissingFromProgram: []string{},
		MissingFromTrainer: []string{},
		ExtraInProgram:     []string{},
		ExtraInTrainer:     []string{},
	}
	ref, found, err := c.deps.Programs.LookupProgram(ctx, programID)
	if err != nil {
		return pd, domainagg.Wrap(domainagg.CodeRetryable, op, err)
	}
	if !found {
		// Nothing downstream can hold these events yet.
		return pd, nil
	}
	pd.Provisioned = true
	pd.TrainerID = ref.TrainerID

	programIDs, err := c.deps.Program.EventIDs(ctx, ref.ProgramID, ref.ProgramID, sessionID, traineeID)
	if err != nil {
		return pd, err
	}
	pd.MissingFromProgram, pd.ExtraInProgram = diff(primary, programIDs)

	if strings.TrimSpace(ref.TrainerID) != "" {
		trainerIDs, err := c.deps.Trainer.EventIDs(ctx, ref.TrainerID, ref.ProgramID, sessionID, traineeID)
		if err != nil {
			return pd, err
		}
		pd.MissingFromTrainer, pd.ExtraInTrainer = diff(primary, trainerIDs)
	}
	return pd, nil
}

// Repair checks the session and schedules every missing event. Extra events
// are reported but left alone.
func (c *Checker) Repair(ctx context.Context, traineeID, sessionID string) (DriftReport, int, error) {
	report, err := c.Check(ctx, traineeID, sessionID)
	if err != nil || c.deps.Scheduler == nil {
		return report, 0, err
	}
	scheduled := 0
	for _, gap := range []struct {
		view views.Kind
		ids  []string
	}{
		{views.KindProgram, report.MissingFromProgram},
		{views.KindTrainer, report.MissingFromTrainer},
	} {
		for _, id := range gap.ids {
			if err := c.deps.Scheduler.Schedule(ctx, gap.view, id, "drift"); err != nil {
				return report, scheduled, err
			}
			scheduled++
		}
	}
	if scheduled > 0 {
		c.log.Info("drift repair scheduled", "trainee_id", traineeID, "session_id", sessionID, "count", scheduled)
	}
	return report, scheduled, nil
}

// diff returns ids of want absent from got and ids of got absent from want,
// each in its own order.
func diff(want, got []string) (missing, extra []string) {
	gotSet := make(map[string]struct{}, len(got))
	for _, id := range got {
		gotSet[id] = struct{}{}
	}
	wantSet := make(map[string]struct{}, len(want))
	missing = []string{}
	for _, id := range want {
		wantSet[id] = struct{}{}
		if _, ok := gotSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	extra = []string{}
	for _, id := range got {
		if _, ok := wantSet[id]; !ok {
			extra = append(extra, id)
		}
	}
	return missing, extra
}
