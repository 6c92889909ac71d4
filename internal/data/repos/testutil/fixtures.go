package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/trainwatch-backend/internal/domain/catalog"
	"github.com/yungbote/trainwatch-backend/internal/domain/playback"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
)

func SeedProgram(tb testing.TB, ctx context.Context, tx *gorm.DB, programID, trainerID string) *views.ProgramView {
	tb.Helper()
	p := &views.ProgramView{ProgramID: programID, Name: programID + " program", TrainerID: trainerID}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed program: %v", err)
	}
	return p
}

func SeedConcepts(tb testing.TB, ctx context.Context, tx *gorm.DB, sessionID string, names ...string) []catalog.Concept {
	tb.Helper()
	out := make([]catalog.Concept, 0, len(names))
	for i, name := range names {
		c := catalog.Concept{
			ConceptID: sessionID + "-c" + string(rune('1'+i)),
			SessionID: sessionID,
			Position:  i,
			Name:      name,
			StartTime: float64(i * 60),
			EndTime:   float64((i + 1) * 60),
		}
		if err := tx.WithContext(ctx).Create(&c).Error; err != nil {
			tb.Fatalf("seed concept: %v", err)
		}
		out = append(out, c)
	}
	return out
}

// Event builds a valid event of the given kind at a timeline position.
func Event(id, traineeID, programID, sessionID string, kind playback.Kind, ts float64) playback.Event {
	ev := playback.Event{
		ID:        id,
		TraineeID: traineeID,
		ProgramID: programID,
		SessionID: sessionID,
		Kind:      kind,
		Timestamp: ts,
		CreatedAt: time.Now().UTC(),
	}
	if kind == playback.KindRewind {
		ev.Rewind = &playback.Rewind{FromTime: ts + 10, ToTime: ts}
	}
	return ev
}
