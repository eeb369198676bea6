package service

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"accounting/internal/journal/models"
	"accounting/pkg/collection"
	"accounting/pkg/domain"
	dErrors "accounting/pkg/domain-errors"
	"accounting/pkg/platform/outbox"
	"accounting/pkg/platform/sentinel"
	"accounting/pkg/platform/tx"
	"accounting/pkg/requestcontext"
)

// Store persists journals.
type Store interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, offset, limit int) ([]*models.Journal, error)
	FindByID(ctx context.Context, id domain.JournalID) (*models.Journal, error)
	Create(ctx context.Context, journal *models.Journal) error
	Update(ctx context.Context, journal *models.Journal) error
	Delete(ctx context.Context, id domain.JournalID) error
}

// Service manages journals.
type Service struct {
	journals Store
	tx       tx.Runner
	events   outbox.Recorder
	logger   *slog.Logger
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

func New(journals Store, runner tx.Runner, opts ...Option) (*Service, error) {
	if journals == nil {
		return nil, errors.New("journal store is required")
	}
	if runner == nil {
		return nil, errors.New("transaction runner is required")
	}
	s := &Service{journals: journals, tx: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) ListJournals(ctx context.Context, w collection.Window) (*collection.Page[*models.Journal], error) {
	var p collection.Page[*models.Journal]
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p.Total, err = s.journals.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		p.Items, err = s.journals.List(gctx, w.Offset(), w.Limit())
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list journals")
	}
	return &p, nil
}

func (s *Service) GetJournal(ctx context.Context, id domain.JournalID) (*models.Journal, error) {
	j, err := s.journals.FindByID(ctx, id)
	if err != nil {
		return nil, s.writeError(err, "failed to load journal")
	}
	return j, nil
}

func (s *Service) CreateJournal(ctx context.Context, name string) (*models.Journal, error) {
	j, err := models.NewJournal(name)
	if err != nil {
		return nil, toValidation(err)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.journals.Create(ctx, j); err != nil {
			return err
		}
		return s.record(ctx, j, models.EventCreated)
	})
	if err != nil {
		return nil, s.writeError(err, "failed to create journal")
	}

	s.logger.InfoContext(ctx, "journal created",
		"request_id", requestcontext.RequestID(ctx),
		"journal_id", j.ID,
	)
	return j, nil
}

// UpdateJournal renames an existing journal.
func (s *Service) UpdateJournal(ctx context.Context, id domain.JournalID, name string) (*models.Journal, error) {
	j, err := models.NewJournal(name)
	if err != nil {
		return nil, toValidation(err)
	}
	j.ID = id

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.journals.Update(ctx, j); err != nil {
			return err
		}
		return s.record(ctx, j, models.EventUpdated)
	})
	if err != nil {
		return nil, s.writeError(err, "failed to update journal")
	}

	s.logger.InfoContext(ctx, "journal updated",
		"request_id", requestcontext.RequestID(ctx),
		"journal_id", j.ID,
	)
	return j, nil
}

func (s *Service) DeleteJournal(ctx context.Context, id domain.JournalID) error {
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.journals.Delete(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, &models.Journal{ID: id}, models.EventDeleted)
	})
	if err != nil {
		return s.writeError(err, "failed to delete journal")
	}

	s.logger.InfoContext(ctx, "journal deleted",
		"request_id", requestcontext.RequestID(ctx),
		"journal_id", id,
	)
	return nil
}

func (s *Service) record(ctx context.Context, j *models.Journal, eventType string) error {
	if s.events == nil {
		return nil
	}
	event, err := outbox.NewEvent(ctx, models.AggregateType, j.ID.String(), eventType, models.ChangedPayload{
		JournalID: int64(j.ID),
		Name:      j.Name,
	})
	if err != nil {
		return err
	}
	return s.events.Append(ctx, event)
}

func (s *Service) writeError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "journal not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "journal changed concurrently, retry the request")
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
