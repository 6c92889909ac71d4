package dbctx

import (
	"context"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/trainwatch-backend/internal/data/db"
)

type ctxKey struct{}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "dbctx.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return gdb
}

func TestDBPrefersTransaction(t *testing.T) {
	gdb := openDB(t)
	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")

	if got := New(ctx, nil).DB(nil); got != nil {
		t.Fatalf("expected nil without tx or fallback")
	}

	out := New(ctx, nil).DB(gdb)
	if out == nil || out.Statement.Context.Value(ctxKey{}) != "req-1" {
		t.Fatalf("fallback db lost the request context")
	}

	err := gdb.Transaction(func(tx *gorm.DB) error {
		dbc := New(ctx, tx)
		if !dbc.InTx() {
			t.Fatalf("expected InTx")
		}
		got := dbc.DB(gdb)
		if got.Statement.ConnPool != tx.Statement.ConnPool {
			t.Fatalf("expected the transaction connection")
		}
		if got.Statement.Context.Value(ctxKey{}) != "req-1" {
			t.Fatalf("transaction lost the request context")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestNilContextFallsBackToBackground(t *testing.T) {
	//nolint:staticcheck // nil context is the case under test
	dbc := New(nil, nil)
	if dbc.Ctx == nil || dbc.Context() == nil {
		t.Fatalf("expected a background context")
	}
	if (Context{}).Context() == nil {
		t.Fatalf("zero Context must still yield a context")
	}
}
