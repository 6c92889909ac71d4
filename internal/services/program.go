package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/trainwatch-backend/internal/data/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/data/repos/sessions"
	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/ingestion"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type CreateProgramInput struct {
	ProgramID string `json:"programId" binding:"required"`
	Name      string `json:"name" binding:"required"`
	TrainerID string `json:"trainerId" binding:"required"`
}

type SessionInput struct {
	SessionID string `json:"sessionId" binding:"required"`
	Title     string `json:"title"`
	VideoURL  string `json:"videoUrl"`
}

type ProgramService interface {
	ingestion.ProgramDirectory

	CreateProgram(ctx context.Context, in CreateProgramInput) (*views.ProgramView, error)
	// AddSession creates the session entry under the program and its trainer.
	// Repeating it is harmless.
	AddSession(ctx context.Context, programID string, in SessionInput) (*views.SessionEntry, error)
	// GET
	GetProgram(ctx context.Context, programID string) (*views.ProgramSummary, error)
	GetTrainer(ctx context.Context, trainerID string) (*views.TrainerSummary, error)
	ListTrainerPrograms(ctx context.Context, trainerID string) ([]*views.ProgramView, error)
	ListTrainerSessions(ctx context.Context, trainerID string) ([]views.SessionSummary, error)
}

type programService struct {
	db         *gorm.DB
	log        *logger.Logger
	programs   sessions.ProgramRepo
	trainers   sessions.TrainerRepo
	programLog sessions.SessionLogRepo
	trainerLog sessions.SessionLogRepo
	programAgg domainagg.SessionLogAggregate
	trainerAgg domainagg.SessionLogAggregate
	now        func() time.Time
}

func NewProgramService(
	db *gorm.DB,
	baseLog *logger.Logger,
	programs sessions.ProgramRepo,
	trainers sessions.TrainerRepo,
	programLog sessions.SessionLogRepo,
	trainerLog sessions.SessionLogRepo,
	programAgg domainagg.SessionLogAggregate,
	trainerAgg domainagg.SessionLogAggregate,
) ProgramService {
	return &programService{
		db:         db,
		log:        baseLog.With("service", "ProgramService"),
		programs:   programs,
		trainers:   trainers,
		programLog: programLog,
		trainerLog: trainerLog,
		programAgg: programAgg,
		trainerAgg: trainerAgg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *programService) LookupProgram(ctx context.Context, programID string) (ingestion.ProgramRef, bool, error) {
	pv, err := s.programs.GetByProgramID(ctx, nil, programID)
	if errors.Is(err, views.ErrOwnerNotFound) {
		return ingestion.ProgramRef{}, false, nil
	}
	if err != nil {
		return ingestion.ProgramRef{}, false, err
	}
	return ingestion.ProgramRef{ProgramID: pv.ProgramID, Name: pv.Name, TrainerID: pv.TrainerID}, true, nil
}

func (s *programService) CreateProgram(ctx context.Context, in CreateProgramInput) (*views.ProgramView, error) {
	const op = "ProgramService.CreateProgram"
	in.ProgramID = strings.TrimSpace(in.ProgramID)
	in.Name = strings.TrimSpace(in.Name)
	in.TrainerID = strings.TrimSpace(in.TrainerID)
	if in.ProgramID == "" || in.Name == "" || in.TrainerID == "" {
		return nil, aggregates.MapError(op, aggregates.ValidationError("programId, name and trainerId are required"))
	}

	now := s.now()
	pv := &views.ProgramView{
		ProgramID: in.ProgramID,
		Name:      in.Name,
		TrainerID: in.TrainerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.trainers.EnsureOwner(ctx, tx, in.TrainerID, now); err != nil {
			return fmt.Errorf("ensure trainer: %w", err)
		}
		if err := s.programs.Create(ctx, tx, pv); err != nil {
			return fmt.Errorf("create program: %w", err)
		}
		return nil
	})
	if err != nil {
		s.log.Warn("CreateProgram failed", "program_id", in.ProgramID, "error", err)
		return nil, aggregates.MapError(op, err)
	}
	s.log.Info("program created", "program_id", pv.ProgramID, "trainer_id", pv.TrainerID)
	return pv, nil
}

func (s *programService) AddSession(ctx context.Context, programID string, in SessionInput) (*views.SessionEntry, error) {
	const op = "ProgramService.AddSession"
	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.SessionID == "" {
		return nil, aggregates.MapError(op, aggregates.ValidationError("sessionId is required"))
	}
	pv, err := s.programs.GetByProgramID(ctx, nil, programID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}

	defaults := views.EntryDefaults{Title: strings.TrimSpace(in.Title), VideoURL: strings.TrimSpace(in.VideoURL), AssignedAt: s.now()}
	res, err := s.programAgg.Ensure(ctx, views.EnsureInput{
		OwnerKey:  pv.ProgramID,
		ProgramID: pv.ProgramID,
		SessionID: in.SessionID,
		Defaults:  defaults,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.trainerAgg.Ensure(ctx, views.EnsureInput{
		OwnerKey:  pv.TrainerID,
		ProgramID: pv.ProgramID,
		SessionID: in.SessionID,
		Defaults:  defaults,
	}); err != nil {
		return nil, err
	}

	entry, err := s.programLog.GetEntry(ctx, nil, res.Owner.ID, pv.ProgramID, in.SessionID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if entry == nil {
		return nil, aggregates.MapError(op, aggregates.InvariantError("session entry missing after ensure"))
	}
	return entry, nil
}

func (s *programService) GetProgram(ctx context.Context, programID string) (*views.ProgramSummary, error) {
	const op = "ProgramService.GetProgram"
	pv, err := s.programs.GetByProgramID(ctx, nil, programID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	summaries, err := s.summaries(ctx, s.programLog, []uuid.UUID{pv.ID}, map[string]string{pv.ProgramID: pv.Name})
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return &views.ProgramSummary{Program: *pv, Sessions: summaries}, nil
}

func (s *programService) GetTrainer(ctx context.Context, trainerID string) (*views.TrainerSummary, error) {
	const op = "ProgramService.GetTrainer"
	tv, err := s.trainers.GetByTrainerID(ctx, nil, trainerID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	programs, err := s.programs.ListByTrainer(ctx, nil, trainerID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	names := make(map[string]string, len(programs))
	out := &views.TrainerSummary{Trainer: *tv, Programs: make([]views.ProgramView, 0, len(programs))}
	for _, p := range programs {
		names[p.ProgramID] = p.Name
		out.Programs = append(out.Programs, *p)
	}
	out.Sessions, err = s.summaries(ctx, s.trainerLog, []uuid.UUID{tv.ID}, names)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return out, nil
}

func (s *programService) ListTrainerPrograms(ctx context.Context, trainerID string) ([]*views.ProgramView, error) {
	programs, err := s.programs.ListByTrainer(ctx, nil, trainerID)
	if err != nil {
		return nil, aggregates.MapError("ProgramService.ListTrainerPrograms", err)
	}
	return programs, nil
}

// ListTrainerSessions returns an empty list for an unknown trainer.
func (s *programService) ListTrainerSessions(ctx context.Context, trainerID string) ([]views.SessionSummary, error) {
	summary, err := s.GetTrainer(ctx, trainerID)
	if domainagg.IsCode(err, domainagg.CodeNotFound) {
		return []views.SessionSummary{}, nil
	}
	if err != nil {
		return nil, err
	}
	return summary.Sessions, nil
}

func (s *programService) summaries(ctx context.Context, repo sessions.SessionLogRepo, ownerIDs []uuid.UUID, programNames map[string]string) ([]views.SessionSummary, error) {
	entries, err := repo.ListEntries(ctx, nil, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	entryIDs := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		entryIDs = append(entryIDs, e.ID)
	}
	rows, err := repo.ListEvents(ctx, nil, entryIDs)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	byEntry := make(map[uuid.UUID][]views.EventRow, len(entries))
	for _, r := range rows {
		byEntry[r.EntryID] = append(byEntry[r.EntryID], r)
	}
	out := make([]views.SessionSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, views.SessionSummary{
			Entry:       *e,
			ProgramName: programNames[e.ProgramID],
			Trainees:    views.GroupByTrainee(byEntry[e.ID]),
		})
	}
	return out, nil
}
