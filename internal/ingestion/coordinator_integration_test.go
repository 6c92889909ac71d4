package ingestion_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"

	"github.com/yungbote/trainwatch-backend/internal/data/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/data/repos/sessions"
	repotest "github.com/yungbote/trainwatch-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/playback"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/identity"
	"github.com/yungbote/trainwatch-backend/internal/ingestion"
	"github.com/yungbote/trainwatch-backend/internal/services"
)

type stack struct {
	db       *gorm.DB
	coord    *ingestion.Coordinator
	programs services.ProgramService
	views    map[views.Kind]domainagg.SessionLogAggregate
}

func newStack(t *testing.T) *stack {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	traineeRepo := sessions.NewTraineeRepo(db, log)
	programRepo := sessions.NewProgramRepo(db, log)
	trainerRepo := sessions.NewTrainerRepo(db, log)

	aggs := map[views.Kind]domainagg.SessionLogAggregate{}
	logs := map[views.Kind]sessions.SessionLogRepo{}
	for _, k := range views.Kinds {
		logs[k] = sessions.NewSessionLogRepo(db, log, k)
		deps := aggregates.SessionLogAggregateDeps{
			Base:     aggregates.BaseDeps{DB: db, Log: log, Runner: aggregates.NewGormTxRunner(db), CASGuard: aggregates.NewCASGuard(db)},
			Entries:  logs[k],
			Trainees: traineeRepo,
			Programs: programRepo,
			Trainers: trainerRepo,
		}
		switch k {
		case views.KindTrainee:
			aggs[k] = aggregates.NewTraineeViewAggregate(deps)
		case views.KindProgram:
			aggs[k] = aggregates.NewProgramViewAggregate(deps)
		case views.KindTrainer:
			aggs[k] = aggregates.NewTrainerViewAggregate(deps)
		}
	}
	gen := identity.NewSeededGenerator(log, identity.NewMemoryReserver(), 11, 13)
	programs := services.NewProgramService(db, log, programRepo, trainerRepo, logs[views.KindProgram], logs[views.KindTrainer], aggs[views.KindProgram], aggs[views.KindTrainer])
	trainees := services.NewTraineeService(db, log, traineeRepo, logs[views.KindTrainee], aggs[views.KindTrainee], gen)

	coord, err := ingestion.NewCoordinator(ingestion.Deps{
		Log:        log,
		Trainee:    aggs[views.KindTrainee],
		Program:    aggs[views.KindProgram],
		Trainer:    aggs[views.KindTrainer],
		Programs:   programs,
		Pseudonyms: trainees,
		Generator:  gen,
		Config:     ingestion.Config{SecondaryTimeout: 5 * time.Second},
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return &stack{db: db, coord: coord, programs: programs, views: aggs}
}

func (s *stack) eventIDs(t *testing.T, kind views.Kind, ownerKey, programID, sessionID, traineeID string) []string {
	t.Helper()
	ids, err := s.views[kind].EventIDs(context.Background(), ownerKey, programID, sessionID, traineeID)
	if err != nil {
		t.Fatalf("%s event ids: %v", kind, err)
	}
	sort.Strings(ids)
	return ids
}

func TestFanOutConsistencyAtQuiescence(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	if _, err := s.programs.CreateProgram(ctx, services.CreateProgramInput{ProgramID: "p-1", Name: "Go", TrainerID: "tr-1"}); err != nil {
		t.Fatalf("create program: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 12)
	for i := 0; i < 12; i++ {
		kind := playback.Kinds[i%len(playback.Kinds)]
		ev := repotest.Event(fmt.Sprintf("ev-%02d", i), "t-1", "p-1", "s-1", kind, float64(10*i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.coord.Record(ctx, ev); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("record: %v", err)
	}

	trainee := s.eventIDs(t, views.KindTrainee, "t-1", "p-1", "s-1", "t-1")
	program := s.eventIDs(t, views.KindProgram, "p-1", "p-1", "s-1", "t-1")
	trainer := s.eventIDs(t, views.KindTrainer, "tr-1", "p-1", "s-1", "t-1")
	if len(trainee) != 12 {
		t.Fatalf("trainee view holds %d events, want 12", len(trainee))
	}
	if diff := cmp.Diff(trainee, program); diff != "" {
		t.Fatalf("program view drifted (-trainee +program):\n%s", diff)
	}
	if diff := cmp.Diff(trainee, trainer); diff != "" {
		t.Fatalf("trainer view drifted (-trainee +trainer):\n%s", diff)
	}
}

func TestRecordTwiceStoresOnce(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	if _, err := s.programs.CreateProgram(ctx, services.CreateProgramInput{ProgramID: "p-1", Name: "Go", TrainerID: "tr-1"}); err != nil {
		t.Fatalf("create program: %v", err)
	}
	ev := repotest.Event("ev-1", "t-1", "p-1", "s-1", playback.KindRewind, 40)

	first, err := s.coord.Record(ctx, ev)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	second, err := s.coord.Record(ctx, ev)
	if err != nil {
		t.Fatalf("record again: %v", err)
	}
	if first.Status != ingestion.StatusRecorded || second.Status != ingestion.StatusRecorded {
		t.Fatalf("statuses %s/%s", first.Status, second.Status)
	}
	if first.PseudonymID == "" || first.PseudonymID != second.PseudonymID {
		t.Fatalf("pseudonym unstable: %q vs %q", first.PseudonymID, second.PseudonymID)
	}
	for _, table := range []string{"trainee_session_events", "program_session_events", "trainer_session_events"} {
		if n := repotest.Count(t, s.db, table, "event_id = ?", "ev-1"); n != 1 {
			t.Fatalf("%s holds %d copies", table, n)
		}
	}

	var amount float64
	if err := s.db.Table("trainee_session_events").Where("event_id = ?", "ev-1").Select("rewind_amount").Scan(&amount).Error; err != nil {
		t.Fatalf("load amount: %v", err)
	}
	if amount != 10 {
		t.Fatalf("rewind amount = %v, want 10", amount)
	}
}

func TestUnprovisionedProgramKeepsTraineeView(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	res, err := s.coord.Record(ctx, repotest.Event("ev-1", "t-1", "p-ghost", "s-1", playback.KindPlay, 0))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !res.Degraded() {
		t.Fatalf("expected degraded result")
	}
	if got := s.eventIDs(t, views.KindTrainee, "t-1", "p-ghost", "s-1", "t-1"); len(got) != 1 {
		t.Fatalf("trainee view = %v", got)
	}
	if n := repotest.Count(t, s.db, "program_session_events", ""); n != 0 {
		t.Fatalf("program view should be empty, got %d", n)
	}
	if n := repotest.Count(t, s.db, "trainer_views", ""); n != 0 {
		t.Fatalf("no trainer should be created, got %d", n)
	}
}

func TestOutOfOrderArrivalKeepsArrivalOrder(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	for _, ev := range []playback.Event{
		repotest.Event("e3", "t-1", "p-1", "s-1", playback.KindPlay, 300),
		repotest.Event("e1", "t-1", "p-1", "s-1", playback.KindPlay, 100),
		repotest.Event("e2", "t-1", "p-1", "s-1", playback.KindPause, 200),
	} {
		if _, err := s.coord.Record(ctx, ev); err != nil {
			t.Fatalf("record %s: %v", ev.ID, err)
		}
	}
	ids, err := s.views[views.KindTrainee].EventIDs(ctx, "t-1", "p-1", "s-1", "t-1")
	if err != nil {
		t.Fatalf("event ids: %v", err)
	}
	if diff := cmp.Diff([]string{"e3", "e1", "e2"}, ids); diff != "" {
		t.Fatalf("arrival order mismatch (-want +got):\n%s", diff)
	}
}
