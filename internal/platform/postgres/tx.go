package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dErrors "accounting/pkg/domain-errors"
	txcontext "accounting/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// TxRunner runs units of work in SERIALIZABLE transactions. Concurrent units
// that would interleave fail with sentinel.ErrConflict instead of producing
// a state no serial order could reach.
type TxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewTxRunner creates a runner. A zero timeout uses the default; it only
// applies when ctx carries no deadline of its own.
func NewTxRunner(db *sql.DB, timeout time.Duration) *TxRunner {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &TxRunner{db: db, timeout: timeout}
}

func (t *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// Nested calls join the outer transaction.
	if _, ok := txcontext.From(ctx); ok {
		return fn(ctx)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return t.abort(ctx, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return t.abort(ctx, err)
	}

	if err := tx.Commit(); err != nil {
		return t.abort(ctx, fmt.Errorf("commit transaction: %w", Classify(err)))
	}
	return nil
}

// abort reports deadline expiry as a timeout and leaves other errors as is.
func (t *TxRunner) abort(ctx context.Context, err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: "+ctxErr.Error())
	}
	return err
}
