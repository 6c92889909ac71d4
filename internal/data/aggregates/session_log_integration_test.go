package aggregates

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"

	"github.com/yungbote/trainwatch-backend/internal/data/repos/sessions"
	repotest "github.com/yungbote/trainwatch-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/playback"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
)

type viewAggs struct {
	trainee domainagg.SessionLogAggregate
	program domainagg.SessionLogAggregate
	trainer domainagg.SessionLogAggregate
}

func newViewAggs(t *testing.T, db *gorm.DB) viewAggs {
	t.Helper()
	log := repotest.Logger(t)
	base := BaseDeps{DB: db, Log: log, Runner: NewGormTxRunner(db), CASGuard: NewCASGuard(db)}
	deps := SessionLogAggregateDeps{
		Base:     base,
		Trainees: sessions.NewTraineeRepo(db, log),
		Programs: sessions.NewProgramRepo(db, log),
		Trainers: sessions.NewTrainerRepo(db, log),
	}
	return viewAggs{
		trainee: NewTraineeViewAggregate(deps),
		program: NewProgramViewAggregate(deps),
		trainer: NewTrainerViewAggregate(deps),
	}
}

func traineeInput(ev playback.Event) views.RecordInput {
	return views.RecordInput{OwnerKey: ev.TraineeID, PseudonymID: "Calm Owl 7", Event: ev}
}

func TestTraineeViewRecordIsIdempotent(t *testing.T) {
	db := repotest.DB(t)
	aggs := newViewAggs(t, db)
	ctx := context.Background()

	ev := repotest.Event("ev-1", "t-1", "p-1", "s-1", playback.KindPlay, 12)
	first, err := aggs.trainee.Record(ctx, traineeInput(ev))
	if err != nil {
		t.Fatalf("first record: %v", err)
	}
	if !first.Appended {
		t.Fatalf("expected first record to append")
	}
	if first.Before.Present || first.After.Events != 1 {
		t.Fatalf("unexpected transition %s -> %s", first.Before, first.After)
	}

	second, err := aggs.trainee.Record(ctx, traineeInput(ev))
	if err != nil {
		t.Fatalf("duplicate record: %v", err)
	}
	if second.Appended {
		t.Fatalf("duplicate should not append")
	}
	if second.After.Events != 1 || second.EntryID != first.EntryID {
		t.Fatalf("duplicate changed the entry: %+v", second)
	}
	if n := repotest.Count(t, db, "trainee_session_events", "event_id = ?", "ev-1"); n != 1 {
		t.Fatalf("expected one stored event, got %d", n)
	}
	if n := repotest.Count(t, db, "trainee_enrollments", ""); n != 1 {
		t.Fatalf("expected one enrollment, got %d", n)
	}
}

func TestTraineeViewKeepsStoredPseudonym(t *testing.T) {
	db := repotest.DB(t)
	aggs := newViewAggs(t, db)
	ctx := context.Background()

	if _, err := aggs.trainee.Record(ctx, traineeInput(repotest.Event("ev-1", "t-1", "p-1", "s-1", playback.KindPlay, 0))); err != nil {
		t.Fatalf("record: %v", err)
	}
	res, err := aggs.trainee.Record(ctx, views.RecordInput{
		OwnerKey:    "t-1",
		PseudonymID: "Bold Fox 1",
		Event:       repotest.Event("ev-2", "t-1", "p-1", "s-1", playback.KindPause, 4),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.PseudonymID != "Calm Owl 7" {
		t.Fatalf("pseudonym changed to %q", res.PseudonymID)
	}

	// Existing trainees may omit the pseudonym entirely.
	res, err = aggs.trainee.Record(ctx, views.RecordInput{OwnerKey: "t-1", Event: repotest.Event("ev-3", "t-1", "p-1", "s-1", playback.KindPlay, 5)})
	if err != nil {
		t.Fatalf("record without pseudonym: %v", err)
	}
	if res.PseudonymID != "Calm Owl 7" {
		t.Fatalf("unexpected pseudonym %q", res.PseudonymID)
	}
}

func TestTraineeViewRequiresPseudonymForNewTrainee(t *testing.T) {
	db := repotest.DB(t)
	aggs := newViewAggs(t, db)

	_, err := aggs.trainee.Record(context.Background(), views.RecordInput{
		OwnerKey: "t-new",
		Event:    repotest.Event("ev-1", "t-new", "p-1", "s-1", playback.KindPlay, 0),
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := repotest.Count(t, db, "trainee_views", ""); n != 0 {
		t.Fatalf("trainee should not be created, got %d rows", n)
	}
}

func TestSessionLogPreservesArrivalOrder(t *testing.T) {
	db := repotest.DB(t)
	aggs := newViewAggs(t, db)
	ctx := context.Background()

	for _, ev := range []playback.Event{
		repotest.Event("late", "t-1", "p-1", "s-1", playback.KindPlay, 300),
		repotest.Event("early", "t-1", "p-1", "s-1", playback.KindPlay, 10),
		repotest.Event("middle", "t-1", "p-1", "s-1", playback.KindRewind, 120),
	} {
		if _, err := aggs.trainee.Record(ctx, traineeInput(ev)); err != nil {
			t.Fatalf("record %s: %v", ev.ID, err)
		}
	}
	got, err := aggs.trainee.EventIDs(ctx, "t-1", "p-1", "s-1", "")
	if err != nil {
		t.Fatalf("event ids: %v", err)
	}
	if diff := cmp.Diff([]string{"late", "early", "middle"}, got); diff != "" {
		t.Fatalf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestProgramViewRequiresProvisionedProgram(t *testing.T) {
	db := repotest.DB(t)
	aggs := newViewAggs(t, db)
	ctx := context.Background()

	ev := repotest.Event("ev-1", "t-1", "p-missing", "s-1", playback.KindPlay, 0)
	_, err := aggs.program.Record(ctx, views.RecordInput{OwnerKey: ev.ProgramID, Event: ev})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
	if n := repotest.Count(t, db, "program_sessions", ""); n != 0 {
		t.Fatalf("no entry should be created, got %d", n)
	}

	ids, err := aggs.program.EventIDs(ctx, "p-missing", "p-missing", "s-1", "")
	if err != nil {
		t.Fatalf("event ids: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty ids, got %v", ids)
	}
}

func TestProgramViewFiltersEventsByTrainee(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	repotest.SeedProgram(t, ctx, db, "p-1", "tr-1")
	aggs := newViewAggs(t, db)

	for i, trainee := range []string{"t-1", "t-2", "t-1"} {
		ev := repotest.Event(fmt.Sprintf("ev-%d", i), trainee, "p-1", "s-1", playback.KindReplay, float64(i))
		if _, err := aggs.program.Record(ctx, views.RecordInput{OwnerKey: "p-1", PseudonymID: "Keen Hawk " + trainee, Event: ev}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	got, err := aggs.program.EventIDs(ctx, "p-1", "p-1", "s-1", "t-1")
	if err != nil {
		t.Fatalf("event ids: %v", err)
	}
	if diff := cmp.Diff([]string{"ev-0", "ev-2"}, got); diff != "" {
		t.Fatalf("filtered ids mismatch (-want +got):\n%s", diff)
	}
}

func TestTrainerViewKeysEntriesByProgram(t *testing.T) {
	db := repotest.DB(t)
	aggs := newViewAggs(t, db)
	ctx := context.Background()

	for i, program := range []string{"p-1", "p-2"} {
		ev := repotest.Event(fmt.Sprintf("ev-%d", i), "t-1", program, "s-shared", playback.KindPlay, 0)
		if _, err := aggs.trainer.Record(ctx, views.RecordInput{OwnerKey: "tr-1", Event: ev}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if n := repotest.Count(t, db, "trainer_sessions", "session_id = ?", "s-shared"); n != 2 {
		t.Fatalf("expected one entry per program, got %d", n)
	}
	if n := repotest.Count(t, db, "trainer_views", ""); n != 1 {
		t.Fatalf("expected one trainer, got %d", n)
	}
}

func TestEnsureCreatesEmptyEntryOnce(t *testing.T) {
	db := repotest.DB(t)
	aggs := newViewAggs(t, db)
	ctx := context.Background()

	in := views.EnsureInput{
		OwnerKey:    "t-1",
		PseudonymID: "Wise Bear 3",
		ProgramID:   "p-1",
		SessionID:   "s-1",
		Defaults:    views.EntryDefaults{Title: "Intro", VideoURL: "https://videos.example/intro.mp4"},
	}
	first, err := aggs.trainee.Ensure(ctx, in)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.Before.Present || !first.After.Present || first.After.Events != 0 {
		t.Fatalf("unexpected transition %s -> %s", first.Before, first.After)
	}
	second, err := aggs.trainee.Ensure(ctx, in)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if !second.Before.Present || second.EntryID != first.EntryID {
		t.Fatalf("ensure should reuse the entry: %+v", second)
	}
	if n := repotest.Count(t, db, "trainee_sessions", "title = ?", "Intro"); n != 1 {
		t.Fatalf("expected one titled entry, got %d", n)
	}
}

func TestRecordRejectsMissingKeys(t *testing.T) {
	db := repotest.DB(t)
	aggs := newViewAggs(t, db)

	cases := []struct {
		name string
		in   views.RecordInput
	}{
		{"owner", views.RecordInput{Event: repotest.Event("ev", "t", "p", "s", playback.KindPlay, 0)}},
		{"session", views.RecordInput{OwnerKey: "t", Event: repotest.Event("ev", "t", "p", "", playback.KindPlay, 0)}},
		{"event id", views.RecordInput{OwnerKey: "t", Event: repotest.Event("", "t", "p", "s", playback.KindPlay, 0)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := aggs.trainee.Record(context.Background(), tc.in)
			if !domainagg.IsCode(err, domainagg.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestConcurrentRecordsKeepCountAndSequence(t *testing.T) {
	db := repotest.DB(t)
	aggs := newViewAggs(t, db)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers*2)
	for i := 0; i < writers; i++ {
		wg.Add(2)
		ev := repotest.Event(fmt.Sprintf("ev-%d", i), "t-1", "p-1", "s-1", playback.KindPlay, float64(i))
		for j := 0; j < 2; j++ {
			go func() {
				defer wg.Done()
				if _, err := aggs.trainee.Record(ctx, traineeInput(ev)); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent record: %v", err)
	}

	var entry views.SessionEntry
	if err := db.Table("trainee_sessions").Where("session_id = ?", "s-1").Take(&entry).Error; err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.EventCount != writers {
		t.Fatalf("event_count = %d, want %d", entry.EventCount, writers)
	}
	if n := repotest.Count(t, db, "trainee_session_events", "entry_id = ?", entry.ID); n != writers {
		t.Fatalf("stored %d events, want %d", n, writers)
	}
	var maxSeq int
	if err := db.Table("trainee_session_events").Select("MAX(seq)").Scan(&maxSeq).Error; err != nil {
		t.Fatalf("max seq: %v", err)
	}
	if maxSeq != writers {
		t.Fatalf("max seq = %d, want %d", maxSeq, writers)
	}
}
