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

type AssignSessionInput struct {
	ProgramID   string `json:"programId" binding:"required"`
	SessionID   string `json:"sessionId" binding:"required"`
	Title       string `json:"title"`
	VideoURL    string `json:"videoUrl"`
	PseudonymID string `json:"pseudonymId"`
}

type TraineeService interface {
	ingestion.PseudonymLookup

	GetTrainee(ctx context.Context, traineeID string) (*views.TraineeProgress, error)
	// AssignSession creates the trainee's session entry without an event. A
	// trainee seen for the first time gets a pseudonym.
	AssignSession(ctx context.Context, traineeID string, in AssignSessionInput) (*views.SessionEntry, error)
	AssignCluster(ctx context.Context, traineeID string, cluster views.Cluster) error
}

type traineeService struct {
	db         *gorm.DB
	log        *logger.Logger
	trainees   sessions.TraineeRepo
	traineeLog sessions.SessionLogRepo
	traineeAgg domainagg.SessionLogAggregate
	generator  ingestion.PseudonymGenerator
	now        func() time.Time
}

func NewTraineeService(
	db *gorm.DB,
	baseLog *logger.Logger,
	trainees sessions.TraineeRepo,
	traineeLog sessions.SessionLogRepo,
	traineeAgg domainagg.SessionLogAggregate,
	generator ingestion.PseudonymGenerator,
) TraineeService {
	return &traineeService{
		db:         db,
		log:        baseLog.With("service", "TraineeService"),
		trainees:   trainees,
		traineeLog: traineeLog,
		traineeAgg: traineeAgg,
		generator:  generator,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *traineeService) LookupPseudonym(ctx context.Context, traineeID string) (string, bool, error) {
	tv, err := s.trainees.GetByTraineeID(ctx, nil, traineeID)
	if errors.Is(err, views.ErrOwnerNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return tv.PseudonymID, true, nil
}

func (s *traineeService) GetTrainee(ctx context.Context, traineeID string) (*views.TraineeProgress, error) {
	const op = "TraineeService.GetTrainee"
	tv, err := s.trainees.GetByTraineeID(ctx, nil, traineeID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	programIDs, err := s.trainees.ListProgramIDs(ctx, nil, tv.ID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	entries, err := s.traineeLog.ListEntries(ctx, nil, []uuid.UUID{tv.ID})
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	entryIDs := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		entryIDs = append(entryIDs, e.ID)
	}
	rows, err := s.traineeLog.ListEvents(ctx, nil, entryIDs)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	byEntry := make(map[uuid.UUID][]views.EventRow, len(entries))
	for _, r := range rows {
		byEntry[r.EntryID] = append(byEntry[r.EntryID], r)
	}

	out := &views.TraineeProgress{Trainee: *tv, ProgramIDs: programIDs, Sessions: make([]views.SessionProgress, 0, len(entries))}
	for _, e := range entries {
		events := byEntry[e.ID]
		if events == nil {
			events = []views.EventRow{}
		}
		out.Sessions = append(out.Sessions, views.SessionProgress{Entry: *e, Events: events})
	}
	return out, nil
}

func (s *traineeService) AssignSession(ctx context.Context, traineeID string, in AssignSessionInput) (*views.SessionEntry, error) {
	const op = "TraineeService.AssignSession"
	traineeID = strings.TrimSpace(traineeID)
	pseudonym := strings.TrimSpace(in.PseudonymID)
	if stored, ok, err := s.LookupPseudonym(ctx, traineeID); err != nil {
		return nil, aggregates.MapError(op, err)
	} else if ok {
		pseudonym = stored
	} else if pseudonym == "" && s.generator != nil {
		if pseudonym, err = s.generator.Generate(ctx); err != nil {
			return nil, aggregates.MapError(op, fmt.Errorf("generate pseudonym: %w", err))
		}
	}

	res, err := s.traineeAgg.Ensure(ctx, views.EnsureInput{
		OwnerKey:    traineeID,
		PseudonymID: pseudonym,
		ProgramID:   strings.TrimSpace(in.ProgramID),
		SessionID:   strings.TrimSpace(in.SessionID),
		Defaults: views.EntryDefaults{
			Title:      strings.TrimSpace(in.Title),
			VideoURL:   strings.TrimSpace(in.VideoURL),
			AssignedAt: s.now(),
		},
	})
	if err != nil {
		return nil, err
	}
	entry, err := s.traineeLog.GetEntry(ctx, nil, res.Owner.ID, "", strings.TrimSpace(in.SessionID))
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if entry == nil {
		return nil, aggregates.MapError(op, aggregates.InvariantError("session entry missing after ensure"))
	}
	s.log.Debug("session assigned", "trainee_id", traineeID, "session_id", entry.SessionID, "state", entry.State().String())
	return entry, nil
}

func (s *traineeService) AssignCluster(ctx context.Context, traineeID string, cluster views.Cluster) error {
	const op = "TraineeService.AssignCluster"
	if !cluster.Valid() {
		return aggregates.MapError(op, aggregates.ValidationError(fmt.Sprintf("unknown cluster %q", cluster)))
	}
	if err := s.trainees.SetCluster(ctx, nil, traineeID, cluster, s.now()); err != nil {
		return aggregates.MapError(op, err)
	}
	s.log.Info("cluster assigned", "trainee_id", traineeID, "cluster", string(cluster))
	return nil
}
