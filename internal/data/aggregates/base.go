package aggregates

import (
	"context"
	"strings"
	"time"

	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/platform/dbctx"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
	"gorm.io/gorm"
)

const (
	defaultMaxAttempts = 4
	retryBaseDelay     = 5 * time.Millisecond
)

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	// MaxAttempts bounds optimistic retries of one write. Zero means the default.
	MaxAttempts int
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.MaxAttempts <= 0 {
		d.MaxAttempts = defaultMaxAttempts
	}
	return d
}

// executeWrite runs fn in one transaction and maps the outcome to an aggregate
// error. Conflicts and transient store failures roll back and re-run fn, up to
// MaxAttempts. Caller cancellation is never retried.
func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	start := time.Now()
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}

	var mapped error
retry:
	for attempt := 1; ; attempt++ {
		mapped = MapError(op, deps.Runner.InTx(ctx, fn))
		if mapped == nil || attempt >= deps.MaxAttempts || !shouldRetry(ctx, mapped) {
			break
		}
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
		deps.Hooks.IncRetry(op)
		deps.Log.Debug("aggregate write retry", "op", op, "attempt", attempt, "error", mapped)
		select {
		case <-ctx.Done():
			mapped = MapError(op, ctx.Err())
			break retry
		case <-time.After(time.Duration(attempt) * retryBaseDelay):
		}
	}

	status := "success"
	if mapped != nil {
		status = aggregateErrorStatus(mapped)
		if domainagg.IsCode(mapped, domainagg.CodeConflict) {
			deps.Hooks.IncConflict(op)
		}
	}
	deps.Hooks.ObserveOperation(op, status, time.Since(start))
	return mapped
}

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch domainagg.CodeOf(err) {
	case domainagg.CodeConflict, domainagg.CodeRetryable:
		return true
	default:
		return false
	}
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		return "failure"
	}
	return code
}
