// Package dbctx pairs a request context with the view transaction it runs in.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// New binds ctx to tx. tx may be nil for reads outside a transaction.
func New(ctx context.Context, tx *gorm.DB) Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return Context{Ctx: ctx, Tx: tx}
}

// InTx reports whether statements run inside an open transaction.
func (c Context) InTx() bool { return c.Tx != nil }

// Context never returns nil.
func (c Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// DB returns the open transaction, or fallback when there is none, bound to
// the request context. It returns nil when both are nil.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	switch {
	case c.Tx != nil:
		return c.Tx.WithContext(c.Context())
	case fallback != nil:
		return fallback.WithContext(c.Context())
	default:
		return nil
	}
}
