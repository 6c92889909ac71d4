package aggregates

import (
	"context"
	"fmt"
	"time"

	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

// TxRunner provides the transaction boundary for view writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type TxOption func(*gormTxRunner)

// WithLockTimeout bounds how long a view write waits on a row lock held by a
// concurrent write to the same session entry. Postgres reports the timeout as
// 55P03, which MapError treats as retryable. Zero keeps the server default.
func WithLockTimeout(d time.Duration) TxOption {
	return func(r *gormTxRunner) {
		if d > 0 {
			r.lockTimeout = d
		}
	}
}

type gormTxRunner struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func NewGormTxRunner(db *gorm.DB, opts ...TxOption) TxRunner {
	r := &gormTxRunner{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if stmt := lockTimeoutSQL(tx.Dialector.Name(), r.lockTimeout); stmt != "" {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("set lock timeout: %w", err)
			}
		}
		return fn(dbctx.New(ctx, tx))
	})
}

// lockTimeoutSQL scopes the timeout to the current transaction. Only postgres
// supports it; sqlite serializes writers and has nothing to bound.
func lockTimeoutSQL(dialect string, d time.Duration) string {
	if dialect != "postgres" || d <= 0 {
		return ""
	}
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = %d", ms)
}
