package insights

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	catalogrepo "github.com/yungbote/trainwatch-backend/internal/data/repos/catalog"
	"github.com/yungbote/trainwatch-backend/internal/data/repos/sessions"
	"github.com/yungbote/trainwatch-backend/internal/data/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/catalog"
	"github.com/yungbote/trainwatch-backend/internal/domain/playback"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

// Service loads a program's corpus from the Trainee-View and the concept
// catalog and runs the pure computations over it.
type Service struct {
	log        *logger.Logger
	trainees   sessions.TraineeRepo
	programs   sessions.ProgramRepo
	traineeLog sessions.SessionLogRepo
	programLog sessions.SessionLogRepo
	concepts   catalogrepo.ConceptRepo
	assigner   ClusterAssigner
}

type ServiceDeps struct {
	Trainees   sessions.TraineeRepo
	Programs   sessions.ProgramRepo
	TraineeLog sessions.SessionLogRepo
	ProgramLog sessions.SessionLogRepo
	Concepts   catalogrepo.ConceptRepo
	Assigner   ClusterAssigner
}

func NewService(baseLog *logger.Logger, deps ServiceDeps) *Service {
	assigner := deps.Assigner
	if assigner == nil {
		assigner = StoredClusters{}
	}
	return &Service{
		log:        baseLog.With("service", "InsightService"),
		trainees:   deps.Trainees,
		programs:   deps.Programs,
		traineeLog: deps.TraineeLog,
		programLog: deps.ProgramLog,
		concepts:   deps.Concepts,
		assigner:   assigner,
	}
}

type corpus struct {
	events   []playback.Event
	concepts []*catalog.Concept
}

// load reads the program's events and the concepts of every session the
// program declares or the events mention.
func (s *Service) load(ctx context.Context, programID string) (corpus, error) {
	rows, err := s.traineeLog.ListEventsByProgram(ctx, nil, programID)
	if err != nil {
		return corpus{}, err
	}
	events := make([]playback.Event, 0, len(rows))
	seen := map[string]bool{}
	var sessionIDs []string
	addSession := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			sessionIDs = append(sessionIDs, id)
		}
	}
	for _, r := range rows {
		events = append(events, r.ToEvent())
	}

	pv, err := s.programs.GetByProgramID(ctx, nil, programID)
	switch {
	case errors.Is(err, views.ErrOwnerNotFound):
	case err != nil:
		return corpus{}, err
	default:
		entries, err := s.programLog.ListEntries(ctx, nil, []uuid.UUID{pv.ID})
		if err != nil {
			return corpus{}, err
		}
		for _, e := range entries {
			addSession(e.SessionID)
		}
	}
	for _, ev := range events {
		addSession(ev.SessionID)
	}

	concepts, err := s.concepts.ListBySessions(ctx, nil, sessionIDs)
	if err != nil {
		return corpus{}, err
	}
	// Keep the program's session order, then each session's definition order.
	rank := make(map[string]int, len(sessionIDs))
	for i, id := range sessionIDs {
		rank[id] = i
	}
	sort.SliceStable(concepts, func(i, j int) bool {
		if rank[concepts[i].SessionID] != rank[concepts[j].SessionID] {
			return rank[concepts[i].SessionID] < rank[concepts[j].SessionID]
		}
		return concepts[i].Position < concepts[j].Position
	})
	return corpus{events: events, concepts: concepts}, nil
}

func (s *Service) ConceptInsights(ctx context.Context, programID string) ([]ConceptInsight, error) {
	c, err := s.load(ctx, programID)
	if err != nil {
		return nil, aggregates.MapError("InsightService.ConceptInsights", err)
	}
	out := ComputeConceptInsights(c.events, c.concepts)
	s.log.Debug("concept insights computed", "program_id", programID, "events", len(c.events), "concepts", len(out))
	return out, nil
}

func (s *Service) ClusterInsights(ctx context.Context, programID string) ([]ClusterInsight, error) {
	const op = "InsightService.ClusterInsights"
	c, err := s.load(ctx, programID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	enrolled, err := s.trainees.ListByProgram(ctx, nil, programID)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	trainees := make([]views.TraineeView, 0, len(enrolled))
	for _, t := range enrolled {
		trainees = append(trainees, *t)
	}
	out := ComputeClusterInsights(trainees, c.events, c.concepts, s.assigner)
	s.log.Debug("cluster insights computed", "program_id", programID, "trainees", len(trainees))
	return out, nil
}
