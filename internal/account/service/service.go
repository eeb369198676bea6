package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"accounting/internal/account/models"
	categorymodels "accounting/internal/category/models"
	"accounting/pkg/collection"
	"accounting/pkg/domain"
	dErrors "accounting/pkg/domain-errors"
	"accounting/pkg/platform/outbox"
	"accounting/pkg/platform/sentinel"
	"accounting/pkg/platform/tx"
	"accounting/pkg/requestcontext"
)

// Store persists accounts.
type Store interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, offset, limit int) ([]*models.Account, error)
	CountByCategoryPrefix(ctx context.Context, prefix domain.CategoryKey) (int, error)
	ListByCategoryPrefix(ctx context.Context, prefix domain.CategoryKey, offset, limit int) ([]*models.Account, error)
	FindByID(ctx context.Context, id domain.AccountID) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id domain.AccountID) error
}

// CategoryLookup confirms a category exists inside the writing transaction.
type CategoryLookup interface {
	FindByKey(ctx context.Context, key domain.CategoryKey) (*categorymodels.Category, error)
}

// Service manages the chart of accounts.
type Service struct {
	accounts   Store
	categories CategoryLookup
	tx         tx.Runner
	events     outbox.Recorder
	logger     *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithEventRecorder(r outbox.Recorder) Option {
	return func(s *Service) {
		s.events = r
	}
}

func New(accounts Store, categories CategoryLookup, runner tx.Runner, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if categories == nil {
		return nil, errors.New("category lookup is required")
	}
	if runner == nil {
		return nil, errors.New("transaction runner is required")
	}
	s := &Service{accounts: accounts, categories: categories, tx: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListAccounts returns one window of accounts ordered by ID. A non-nil
// prefix restricts the listing to accounts whose category lies in the
// subtree rooted at it.
func (s *Service) ListAccounts(ctx context.Context, prefix *domain.CategoryKey, w collection.Window) (*collection.Page[*models.Account], error) {
	if prefix != nil && prefix.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "category filter must not be empty")
	}

	var p collection.Page[*models.Account]
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if prefix == nil {
			p.Total, err = s.accounts.Count(gctx)
		} else {
			p.Total, err = s.accounts.CountByCategoryPrefix(gctx, *prefix)
		}
		return err
	})
	g.Go(func() error {
		var err error
		if prefix == nil {
			p.Items, err = s.accounts.List(gctx, w.Offset(), w.Limit())
		} else {
			p.Items, err = s.accounts.ListByCategoryPrefix(gctx, *prefix, w.Offset(), w.Limit())
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list accounts")
	}
	return &p, nil
}

func (s *Service) GetAccount(ctx context.Context, id domain.AccountID) (*models.Account, error) {
	a, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return a, nil
}

// CreateAccount adds an account to an existing category.
func (s *Service) CreateAccount(ctx context.Context, category domain.CategoryKey, name string) (*models.Account, error) {
	a, err := models.NewAccount(category, name)
	if err != nil {
		return nil, toValidation(err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requireCategory(ctx, category); err != nil {
			return err
		}
		if err := s.accounts.Create(ctx, a); err != nil {
			return err
		}
		return s.record(ctx, a, models.EventCreated)
	})
	if err != nil {
		return nil, s.writeError(err, "failed to create account")
	}

	s.logger.InfoContext(ctx, "account created",
		"request_id", requestcontext.RequestID(ctx),
		"account_id", a.ID,
		"category_id", a.Category,
	)
	return a, nil
}

// UpdateAccount replaces the category and name of an existing account.
func (s *Service) UpdateAccount(ctx context.Context, id domain.AccountID, category domain.CategoryKey, name string) (*models.Account, error) {
	a, err := models.NewAccount(category, name)
	if err != nil {
		return nil, toValidation(err)
	}
	a.ID = id

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.accounts.FindByID(ctx, id); err != nil {
			return err
		}
		if err := s.requireCategory(ctx, category); err != nil {
			return err
		}
		if err := s.accounts.Update(ctx, a); err != nil {
			return err
		}
		return s.record(ctx, a, models.EventUpdated)
	})
	if err != nil {
		return nil, s.writeError(err, "failed to update account")
	}

	s.logger.InfoContext(ctx, "account updated",
		"request_id", requestcontext.RequestID(ctx),
		"account_id", a.ID,
		"category_id", a.Category,
	)
	return a, nil
}

func (s *Service) DeleteAccount(ctx context.Context, id domain.AccountID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.accounts.Delete(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, &models.Account{ID: id}, models.EventDeleted)
	})
	if err != nil {
		return s.writeError(err, "failed to delete account")
	}

	s.logger.InfoContext(ctx, "account deleted",
		"request_id", requestcontext.RequestID(ctx),
		"account_id", id,
	)
	return nil
}

var errUnknownCategory = errors.New("unknown category")

func (s *Service) requireCategory(ctx context.Context, key domain.CategoryKey) error {
	if _, err := s.categories.FindByKey(ctx, key); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return errUnknownCategory
		}
		return err
	}
	return nil
}

func (s *Service) record(ctx context.Context, a *models.Account, eventType string) error {
	if s.events == nil {
		return nil
	}
	event, err := outbox.NewEvent(ctx, models.AggregateType, a.ID.String(), eventType, models.ChangedPayload{
		AccountID:  int64(a.ID),
		CategoryID: a.Category.String(),
		Name:       a.Name,
	})
	if err != nil {
		return err
	}
	return s.events.Append(ctx, event)
}

func (s *Service) writeError(err error, msg string) error {
	switch {
	case errors.Is(err, errUnknownCategory):
		return dErrors.New(dErrors.CodeValidation, "category does not exist")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "account not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "account changed concurrently, retry the request")
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
