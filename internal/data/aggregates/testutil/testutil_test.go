package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/trainwatch-backend/internal/platform/dbctx"
)

func TestHooksRecorderCapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("views.trainee.record", "success", 10*time.Millisecond)
	h.IncConflict("views.trainee.record")
	h.IncRetry("views.trainee.record")

	ops, conflicts, retries := h.Snapshot()
	if len(ops) != 1 || ops[0].Status != "success" {
		t.Fatalf("unexpected ops: %+v", ops)
	}
	if len(conflicts) != 1 || len(retries) != 1 {
		t.Fatalf("unexpected counters: conflicts=%v retries=%v", conflicts, retries)
	}
}

func TestInjectedTxRunnerFailsFirstN(t *testing.T) {
	boom := errors.New("commit lost")
	r := &InjectedTxRunner{Fail: boom, FailTimes: 2}
	body := func(dbctx.Context) error { return nil }

	for i := 0; i < 2; i++ {
		if err := r.InTx(context.Background(), body); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected injected failure, got %v", i, err)
		}
	}
	if err := r.InTx(context.Background(), body); err != nil {
		t.Fatalf("third attempt should commit: %v", err)
	}
	if r.BeginCalls != 3 || r.RollbackCalls != 2 || r.CommitCalls != 1 {
		t.Fatalf("calls begin=%d rollback=%d commit=%d", r.BeginCalls, r.RollbackCalls, r.CommitCalls)
	}
}
