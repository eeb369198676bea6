// Package tx carries database transactions through context so stores can join
// a transaction opened by a service without widening their method signatures.
package tx

import (
	"context"
	"database/sql"
)

// Runner executes fn inside a single transaction. The context handed to fn
// carries the transaction; stores must use that context for every call that
// belongs to the unit of work. A non-nil error from fn rolls everything back.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
