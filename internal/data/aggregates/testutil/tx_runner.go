package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/trainwatch-backend/internal/data/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/platform/dbctx"
)

// InjectedTxRunner runs bodies without a database and injects failures.
// FailTimes makes the first N transactions fail with Fail after the body ran.
type InjectedTxRunner struct {
	mu sync.Mutex

	FailBegin error
	Fail      error
	FailTimes int

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin := r.FailBegin
	r.mu.Unlock()
	if failBegin != nil {
		return failBegin
	}

	var err error
	if fn != nil {
		err = fn(dbctx.New(ctx, nil))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil && r.Fail != nil && r.FailTimes > 0 {
		r.FailTimes--
		err = r.Fail
	}
	if err != nil {
		r.RollbackCalls++
		return err
	}
	r.CommitCalls++
	return nil
}
