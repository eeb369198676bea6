package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"accounting/internal/category/metrics"
	"accounting/internal/category/models"
	"accounting/pkg/collection"
	"accounting/pkg/domain"
	dErrors "accounting/pkg/domain-errors"
	"accounting/pkg/platform/outbox"
	"accounting/pkg/platform/sentinel"
	"accounting/pkg/platform/tx"
	"accounting/pkg/requestcontext"
)

// Store persists categories.
type Store interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, offset, limit int) ([]*models.Category, error)
	CountByPrefix(ctx context.Context, prefix domain.CategoryKey) (int, error)
	ListByPrefix(ctx context.Context, prefix domain.CategoryKey, offset, limit int) ([]*models.Category, error)
	FindByKey(ctx context.Context, key domain.CategoryKey) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, key domain.CategoryKey) error
}

// AccountReferences is the view of the account store the category service
// needs: how many accounts point at a key, and moving them to another key.
type AccountReferences interface {
	CountByCategory(ctx context.Context, key domain.CategoryKey) (int, error)
	ReassignCategory(ctx context.Context, from, to domain.CategoryKey) (int, error)
}

// Cache holds single categories for GetCategory. Get returns
// sentinel.ErrNotFound on a miss. Fills are fenced by a per-key generation:
// Generation is read before the store, Fill stores only while it is
// unchanged, and Invalidate advances it. A read that raced a write cannot put
// the old category back.
type Cache interface {
	Get(ctx context.Context, key domain.CategoryKey) (*models.Category, error)
	Generation(ctx context.Context, key domain.CategoryKey) (int64, error)
	Fill(ctx context.Context, category *models.Category, generation int64) (stored bool, err error)
	Invalidate(ctx context.Context, keys ...domain.CategoryKey) error
}

// Service implements category reads, writes and the rename protocol.
type Service struct {
	categories Store
	accounts   AccountReferences
	tx         tx.Runner
	cache      Cache
	events     outbox.Recorder
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCache enables read-through caching of GetCategory.
func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithEventRecorder records an outbox event in the same transaction as
// every category change.
func WithEventRecorder(r outbox.Recorder) Option {
	return func(s *Service) {
		s.events = r
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs the category service. The runner must cover both stores.
func New(categories Store, accounts AccountReferences, runner tx.Runner, opts ...Option) (*Service, error) {
	if categories == nil {
		return nil, errors.New("category store is required")
	}
	if accounts == nil {
		return nil, errors.New("account references are required")
	}
	if runner == nil {
		return nil, errors.New("transaction runner is required")
	}
	s := &Service{
		categories: categories,
		accounts:   accounts,
		tx:         runner,
		logger:     slog.Default(),
		tracer:     otel.Tracer("accounting/category"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListCategories returns one window of all categories ordered by key.
func (s *Service) ListCategories(ctx context.Context, w collection.Window) (*collection.Page[*models.Category], error) {
	ctx, span := s.tracer.Start(ctx, "category.list",
		trace.WithAttributes(attribute.Int("page.start", w.Start), attribute.Int("page.size", w.Size)))
	defer span.End()

	return s.page(ctx,
		func(ctx context.Context) (int, error) { return s.categories.Count(ctx) },
		func(ctx context.Context) ([]*models.Category, error) {
			return s.categories.List(ctx, w.Offset(), w.Limit())
		},
	)
}

// ListDescendants returns one window of the subtree rooted at prefix: every
// category whose key starts with it, the category itself included.
func (s *Service) ListDescendants(ctx context.Context, prefix domain.CategoryKey, w collection.Window) (*collection.Page[*models.Category], error) {
	if prefix.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "category prefix is required")
	}
	ctx, span := s.tracer.Start(ctx, "category.list_descendants",
		trace.WithAttributes(attribute.String("category.prefix", prefix.String())))
	defer span.End()

	return s.page(ctx,
		func(ctx context.Context) (int, error) { return s.categories.CountByPrefix(ctx, prefix) },
		func(ctx context.Context) ([]*models.Category, error) {
			return s.categories.ListByPrefix(ctx, prefix, w.Offset(), w.Limit())
		},
	)
}

// page runs the count and the window query concurrently.
func (s *Service) page(
	ctx context.Context,
	count func(context.Context) (int, error),
	list func(context.Context) ([]*models.Category, error),
) (*collection.Page[*models.Category], error) {
	var p collection.Page[*models.Category]
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := count(gctx)
		p.Total = n
		return err
	})
	g.Go(func() error {
		items, err := list(gctx)
		p.Items = items
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list categories")
	}
	return &p, nil
}

// GetCategory reads through the cache when one is configured. Cache failures
// are logged and fall back to the store.
func (s *Service) GetCategory(ctx context.Context, key domain.CategoryKey) (*models.Category, error) {
	var (
		fill       bool
		generation int64
	)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			s.cacheLookup("hit")
			return cached, nil
		case errors.Is(err, sentinel.ErrNotFound):
			s.cacheLookup("miss")
			generation, err = s.cache.Generation(ctx, key)
			if err != nil {
				s.cacheWarn(ctx, "category cache read failed", key, err)
				break
			}
			fill = true
		default:
			s.cacheLookup("error")
			s.cacheWarn(ctx, "category cache read failed", key, err)
		}
	}

	c, err := s.categories.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "category not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load category")
	}

	if fill {
		stored, err := s.cache.Fill(ctx, c, generation)
		switch {
		case err != nil:
			s.cacheWarn(ctx, "category cache write failed", key, err)
		case !stored:
			s.logger.DebugContext(ctx, "category changed while loading, cache fill dropped",
				"request_id", requestcontext.RequestID(ctx),
				"category_id", key,
			)
		}
	}
	return c, nil
}

func (s *Service) cacheWarn(ctx context.Context, msg string, key domain.CategoryKey, err error) {
	s.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"category_id", key,
		"error", err,
	)
}

// CreateCategory adds a category under a caller-chosen key.
func (s *Service) CreateCategory(ctx context.Context, key domain.CategoryKey, name string) (*models.Category, error) {
	c, err := models.NewCategory(key, name)
	if err != nil {
		return nil, toValidation(err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.categories.Create(ctx, c); err != nil {
			return err
		}
		return s.record(ctx, c.Key, models.EventCreated, models.ChangedPayload{CategoryID: c.Key.String(), Name: c.Name})
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "category id already in use")
		}
		return nil, s.writeError(err, "failed to create category")
	}

	s.logger.InfoContext(ctx, "category created",
		"request_id", requestcontext.RequestID(ctx),
		"category_id", c.Key,
	)
	return c, nil
}

// UpdateCategory replaces the name of an existing category.
func (s *Service) UpdateCategory(ctx context.Context, key domain.CategoryKey, name string) (*models.Category, error) {
	c, err := models.NewCategory(key, name)
	if err != nil {
		return nil, toValidation(err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.categories.Update(ctx, c); err != nil {
			return err
		}
		return s.record(ctx, c.Key, models.EventUpdated, models.ChangedPayload{CategoryID: c.Key.String(), Name: c.Name})
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "category not found")
		}
		return nil, s.writeError(err, "failed to update category")
	}

	s.invalidate(ctx, key)
	s.logger.InfoContext(ctx, "category updated",
		"request_id", requestcontext.RequestID(ctx),
		"category_id", key,
	)
	return c, nil
}

// DeleteCategory removes a category no account refers to. The reference
// check and the delete share one transaction.
func (s *Service) DeleteCategory(ctx context.Context, key domain.CategoryKey) error {
	var references int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.categories.FindByKey(ctx, key); err != nil {
			return err
		}
		n, err := s.accounts.CountByCategory(ctx, key)
		if err != nil {
			return err
		}
		if n > 0 {
			references = n
			return errCategoryInUse
		}
		if err := s.categories.Delete(ctx, key); err != nil {
			return err
		}
		return s.record(ctx, key, models.EventDeleted, models.ChangedPayload{CategoryID: key.String()})
	})
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "category not found")
		case errors.Is(err, errCategoryInUse):
			return dErrors.New(dErrors.CodeConflict, pluralAccounts(references))
		}
		return s.writeError(err, "failed to delete category")
	}

	s.invalidate(ctx, key)
	s.logger.InfoContext(ctx, "category deleted",
		"request_id", requestcontext.RequestID(ctx),
		"category_id", key,
	)
	return nil
}

var errCategoryInUse = errors.New("category in use")

func pluralAccounts(n int) string {
	if n == 1 {
		return "category is referenced by 1 account"
	}
	return fmt.Sprintf("category is referenced by %d accounts", n)
}

func (s *Service) record(ctx context.Context, key domain.CategoryKey, eventType string, payload any) error {
	if s.events == nil {
		return nil
	}
	event, err := outbox.NewEvent(ctx, models.AggregateType, key.String(), eventType, payload)
	if err != nil {
		return err
	}
	return s.events.Append(ctx, event)
}

// invalidate runs after commit. It also advances the generation of each key,
// so fills started before the write are dropped. If it fails, a stale entry
// lives until its TTL.
func (s *Service) invalidate(ctx context.Context, keys ...domain.CategoryKey) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "category cache invalidation failed",
			"request_id", requestcontext.RequestID(ctx),
			"categories", keys,
			"error", err,
		)
	}
}

func (s *Service) cacheLookup(result string) {
	if s.metrics != nil {
		s.metrics.IncrementCacheLookup(result)
	}
}

// writeError maps transaction failures. Serialization conflicts ask the
// caller to retry; coded errors (timeouts from the runner) pass through.
func (s *Service) writeError(err error, msg string) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConflict, "category changed concurrently, retry the request")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func toValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}
