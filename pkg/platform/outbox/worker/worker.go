package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"accounting/pkg/platform/outbox"
	"accounting/pkg/platform/tx"
)

// Observer receives publishing outcomes. internal/platform/metrics implements it.
type Observer interface {
	OutboxPublished(n int)
	OutboxFailed()
}

// Worker drains the outbox into a Publisher. Each batch runs in one
// transaction: entries are locked, published in order and marked published.
// Publishing stops at the first failure; entries published before it are
// still marked, the rest stay pending for the next tick.
type Worker struct {
	store     outbox.Store
	publisher outbox.Publisher
	runner    tx.Runner
	logger    *slog.Logger
	observer  Observer
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithObserver(o Observer) Option {
	return func(w *Worker) {
		w.observer = o
	}
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func New(store outbox.Store, publisher outbox.Publisher, runner tx.Runner, opts ...Option) *Worker {
	w := &Worker{
		store:     store,
		publisher: publisher,
		runner:    runner,
		logger:    slog.Default(),
		interval:  time.Second,
		batchSize: 100,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := w.ProcessBatch(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "outbox batch failed", "error", err)
				continue
			}
			if n > 0 {
				w.logger.DebugContext(ctx, "outbox batch published", "count", n)
			}
		}
	}
}

// ProcessBatch publishes one batch and returns how many entries were published.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	published := 0
	err := w.runner.RunInTx(ctx, func(txCtx context.Context) error {
		entries, err := w.store.FetchPending(txCtx, w.batchSize)
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			if err := w.publisher.Publish(txCtx, e); err != nil {
				w.logger.WarnContext(ctx, "outbox publish failed",
					"event_id", e.ID,
					"event_type", e.Type,
					"request_id", e.RequestID,
					"error", err,
				)
				if w.observer != nil {
					w.observer.OutboxFailed()
				}
				break
			}
			ids = append(ids, e.ID)
		}

		if err := w.store.MarkPublished(txCtx, ids, w.now().UTC()); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if w.observer != nil && published > 0 {
		w.observer.OutboxPublished(published)
	}
	return published, nil
}
