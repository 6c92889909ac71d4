package aggregates

import (
	"strings"

	"github.com/google/uuid"
	"github.com/yungbote/trainwatch-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// CASGuard provides compare-and-set helpers for view writes.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) baseDB(dbc dbctx.Context) (*gorm.DB, error) {
	if db := dbc.DB(g.db); db != nil {
		return db, nil
	}
	return nil, ValidationError("missing db transaction context")
}

// UpdateByCount updates a row only when id and the counter column still hold
// the expected values.
func (g CASGuard) UpdateByCount(dbc dbctx.Context, table, column string, id uuid.UUID, expected int, updates map[string]any) (bool, error) {
	db, err := g.baseDB(dbc)
	if err != nil {
		return false, err
	}
	table = strings.TrimSpace(table)
	column = strings.TrimSpace(column)
	if table == "" || column == "" || id == uuid.Nil {
		return false, ValidationError("table, column and id are required for UpdateByCount")
	}
	if expected < 0 {
		return false, ValidationError("expected count must be >= 0")
	}
	res := db.Table(table).
		Where("id = ? AND "+column+" = ?", id, expected).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess converts a failed compare-and-set into a conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

// RequireMonotonic rejects a counter that would move backwards.
func RequireMonotonic(current, next int) error {
	if next < current {
		return InvariantError("counter may not decrease")
	}
	return nil
}
