package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"accounting/internal/category/metrics"
	"accounting/internal/category/models"
	"accounting/pkg/domain"
	dErrors "accounting/pkg/domain-errors"
	"accounting/pkg/platform/sentinel"
	"accounting/pkg/requestcontext"
)

// RenameCategory moves a category to a new key. The steps run in order inside
// one transaction:
//
//	load_source        read the category stored under from
//	insert_target      insert a copy under to; an existing key is a conflict
//	reassign_accounts  point every account of from at to
//	delete_source      remove the category stored under from
//	record_event       append category.renamed to the outbox
//	commit
//
// Any failure rolls the whole rename back and is reported with the step
// that failed, as a *models.RenameError inside the returned error.
func (s *Service) RenameCategory(ctx context.Context, from, to domain.CategoryKey) (*models.RenameResult, error) {
	start := time.Now()
	attemptID := uuid.New()
	ctx, span := s.tracer.Start(ctx, "category.rename", trace.WithAttributes(
		attribute.String("category.from", from.String()),
		attribute.String("category.to", to.String()),
		attribute.String("rename.attempt_id", attemptID.String()),
	))
	defer span.End()

	if from == to {
		s.observeRename(metrics.OutcomeInvalid, 0, start)
		return nil, dErrors.New(dErrors.CodeValidation, "new category id must differ from the current one")
	}

	result := &models.RenameResult{AttemptID: attemptID, From: from}
	step := models.RenameStepLoadSource
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		step = models.RenameStepLoadSource
		source, err := s.categories.FindByKey(ctx, from)
		if err != nil {
			return err
		}

		step = models.RenameStepInsertTarget
		target := &models.Category{Key: to, Name: source.Name}
		if err := s.categories.Create(ctx, target); err != nil {
			return err
		}

		step = models.RenameStepReassignAccounts
		n, err := s.accounts.ReassignCategory(ctx, from, to)
		if err != nil {
			return err
		}

		step = models.RenameStepDeleteSource
		if err := s.categories.Delete(ctx, from); err != nil {
			return err
		}

		step = models.RenameStepRecordEvent
		if err := s.record(ctx, to, models.EventRenamed, models.RenamedPayload{
			AttemptID:          attemptID.String(),
			From:               from.String(),
			To:                 to.String(),
			AccountsReassigned: n,
		}); err != nil {
			return err
		}

		result.Category = target
		result.AccountsReassigned = n
		step = models.RenameStepCommit
		return nil
	})
	if err != nil {
		outcome, mapped := s.renameError(attemptID, step, err)
		s.observeRename(outcome, 0, start)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(step))

		log := s.logger.WarnContext
		if outcome == metrics.OutcomeFailed {
			log = s.logger.ErrorContext
		}
		log(ctx, "category rename failed",
			"request_id", requestcontext.RequestID(ctx),
			"attempt_id", attemptID,
			"from", from,
			"to", to,
			"step", step,
			"outcome", outcome,
			"error", err,
		)
		return nil, mapped
	}

	s.invalidate(ctx, from, to)
	s.observeRename(metrics.OutcomeSuccess, result.AccountsReassigned, start)
	span.SetAttributes(attribute.Int("rename.accounts_reassigned", result.AccountsReassigned))
	s.logger.InfoContext(ctx, "category renamed",
		"request_id", requestcontext.RequestID(ctx),
		"attempt_id", attemptID,
		"from", from,
		"to", to,
		"accounts_reassigned", result.AccountsReassigned,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// renameError turns a failed step into the caller-facing error and the
// metrics outcome.
func (s *Service) renameError(attemptID uuid.UUID, step models.RenameStep, err error) (string, error) {
	stepErr := &models.RenameError{AttemptID: attemptID, Step: step, Err: err}
	switch {
	case step == models.RenameStepLoadSource && errors.Is(err, sentinel.ErrNotFound):
		return metrics.OutcomeNotFound, dErrors.Wrap(stepErr, dErrors.CodeNotFound, "category not found")
	case step == models.RenameStepInsertTarget && errors.Is(err, sentinel.ErrAlreadyUsed):
		return metrics.OutcomeConflict, dErrors.Wrap(stepErr, dErrors.CodeConflict, "category id already in use")
	case step == models.RenameStepDeleteSource && errors.Is(err, sentinel.ErrNotFound),
		errors.Is(err, sentinel.ErrConflict):
		return metrics.OutcomeConflict, dErrors.Wrap(stepErr, dErrors.CodeConflict, "category changed concurrently, retry the request")
	case dErrors.HasCode(err, dErrors.CodeTimeout):
		return metrics.OutcomeFailed, dErrors.Wrap(stepErr, dErrors.CodeTimeout, "category rename timed out at "+string(step))
	default:
		return metrics.OutcomeFailed, dErrors.Wrap(stepErr, dErrors.CodeInternal, "category rename failed at "+string(step))
	}
}

func (s *Service) observeRename(outcome string, reassigned int, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveRename(outcome, reassigned, start)
	}
}
