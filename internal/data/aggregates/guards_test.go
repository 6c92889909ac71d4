package aggregates

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	repotest "github.com/yungbote/trainwatch-backend/internal/data/repos/testutil"
	"github.com/yungbote/trainwatch-backend/internal/platform/dbctx"
)

func TestCASGuardRequiresDB(t *testing.T) {
	g := NewCASGuard(nil)
	_, err := g.UpdateByCount(dbctx.Context{Ctx: context.Background()}, "t", "c", uuid.New(), 0, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCASGuardUpdateByCount(t *testing.T) {
	db := repotest.DB(t)
	if err := db.Exec("CREATE TABLE cas_rows (id TEXT PRIMARY KEY, event_count INTEGER NOT NULL)").Error; err != nil {
		t.Fatalf("create table: %v", err)
	}
	id := uuid.New()
	if err := db.Exec("INSERT INTO cas_rows (id, event_count) VALUES (?, ?)", id.String(), 2).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	g := NewCASGuard(db)
	dbc := dbctx.Context{Ctx: context.Background()}

	if _, err := g.UpdateByCount(dbc, " ", "event_count", id, 2, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank table: expected validation error, got %v", err)
	}
	if _, err := g.UpdateByCount(dbc, "cas_rows", "event_count", id, -1, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative count: expected validation error, got %v", err)
	}

	ok, err := g.UpdateByCount(dbc, "cas_rows", "event_count", id, 1, map[string]any{"event_count": 5})
	if err != nil || ok {
		t.Fatalf("stale count should not apply: ok=%v err=%v", ok, err)
	}
	ok, err = g.UpdateByCount(dbc, "cas_rows", "event_count", id, 2, map[string]any{"event_count": 3})
	if err != nil || !ok {
		t.Fatalf("matching count should apply: ok=%v err=%v", ok, err)
	}
	if n := repotest.Count(t, db, "cas_rows", "event_count = ?", 3); n != 1 {
		t.Fatalf("rows with event_count=3: %d", n)
	}
}

func TestRequireMonotonicAllowsEqual(t *testing.T) {
	if err := RequireMonotonic(4, 4); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
