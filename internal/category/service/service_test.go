package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AccountReferences,Cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"accounting/internal/category/metrics"
	"accounting/internal/category/models"
	"accounting/internal/category/service/mocks"
	"accounting/pkg/collection"
	"accounting/pkg/domain"
	dErrors "accounting/pkg/domain-errors"
	"accounting/pkg/platform/sentinel"
	"accounting/pkg/platform/tx"
)

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	store    *mocks.MockStore
	accounts *mocks.MockAccountReferences
	cache    *mocks.MockCache
	service  *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.accounts = mocks.NewMockAccountReferences(s.ctrl)
	s.cache = mocks.NewMockCache(s.ctrl)
	s.ctx = context.Background()

	var err error
	s.service, err = New(s.store, s.accounts, tx.NewMemoryRunner(),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithCache(s.cache),
		WithMetrics(metrics.NewWithRegisterer(prometheus.NewRegistry())),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) TestNew() {
	runner := tx.NewMemoryRunner()

	_, err := New(nil, s.accounts, runner)
	s.ErrorContains(err, "category store is required")

	_, err = New(s.store, nil, runner)
	s.ErrorContains(err, "account references are required")

	_, err = New(s.store, s.accounts, nil)
	s.ErrorContains(err, "transaction runner is required")
}

func (s *ServiceSuite) TestGetCategory() {
	category := &models.Category{Key: "A001", Name: "Assets"}

	s.Run("cache hit skips the store", func() {
		s.cache.EXPECT().Get(gomock.Any(), domain.CategoryKey("A001")).Return(category, nil)

		got, err := s.service.GetCategory(s.ctx, "A001")
		s.Require().NoError(err)
		s.Equal(category, got)
	})

	s.Run("cache miss reads the store and fills the cache", func() {
		gomock.InOrder(
			s.cache.EXPECT().Get(gomock.Any(), domain.CategoryKey("A001")).Return(nil, sentinel.ErrNotFound),
			s.cache.EXPECT().Generation(gomock.Any(), domain.CategoryKey("A001")).Return(int64(3), nil),
			s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(category, nil),
			s.cache.EXPECT().Fill(gomock.Any(), category, int64(3)).Return(true, nil),
		)

		got, err := s.service.GetCategory(s.ctx, "A001")
		s.Require().NoError(err)
		s.Equal("Assets", got.Name)
	})

	s.Run("dropped fill still returns the category", func() {
		s.cache.EXPECT().Get(gomock.Any(), domain.CategoryKey("A001")).Return(nil, sentinel.ErrNotFound)
		s.cache.EXPECT().Generation(gomock.Any(), domain.CategoryKey("A001")).Return(int64(0), nil)
		s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(category, nil)
		s.cache.EXPECT().Fill(gomock.Any(), category, int64(0)).Return(false, nil)

		got, err := s.service.GetCategory(s.ctx, "A001")
		s.Require().NoError(err)
		s.Equal("Assets", got.Name)
	})

	s.Run("cache failure falls back to the store without filling", func() {
		s.cache.EXPECT().Get(gomock.Any(), domain.CategoryKey("A001")).Return(nil, errors.New("connection refused"))
		s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(category, nil)

		got, err := s.service.GetCategory(s.ctx, "A001")
		s.Require().NoError(err)
		s.Equal("Assets", got.Name)
	})

	s.Run("unreadable generation skips the fill", func() {
		s.cache.EXPECT().Get(gomock.Any(), domain.CategoryKey("A001")).Return(nil, sentinel.ErrNotFound)
		s.cache.EXPECT().Generation(gomock.Any(), domain.CategoryKey("A001")).Return(int64(0), errors.New("connection reset"))
		s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(category, nil)

		got, err := s.service.GetCategory(s.ctx, "A001")
		s.Require().NoError(err)
		s.Equal("Assets", got.Name)
	})

	s.Run("missing category is not found", func() {
		s.cache.EXPECT().Get(gomock.Any(), domain.CategoryKey("Z")).Return(nil, sentinel.ErrNotFound)
		s.cache.EXPECT().Generation(gomock.Any(), domain.CategoryKey("Z")).Return(int64(0), nil)
		s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("Z")).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.GetCategory(s.ctx, "Z")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListCategories() {
	s.Run("returns the window and the total", func() {
		items := []*models.Category{{Key: "A", Name: "a"}, {Key: "B", Name: "b"}}
		s.store.EXPECT().Count(gomock.Any()).Return(7, nil)
		s.store.EXPECT().List(gomock.Any(), 2, 2).Return(items, nil)

		page, err := s.service.ListCategories(s.ctx, collection.Window{Start: 3, Size: 2})
		s.Require().NoError(err)
		s.Equal(7, page.Total)
		s.Equal(items, page.Items)
	})

	s.Run("store failure is internal", func() {
		s.store.EXPECT().Count(gomock.Any()).Return(0, errors.New("db down"))
		s.store.EXPECT().List(gomock.Any(), 0, 10).Return(nil, nil).AnyTimes()

		_, err := s.service.ListCategories(s.ctx, collection.Window{Start: 1, Size: 10})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestListDescendants() {
	s.Run("blank prefix is rejected", func() {
		_, err := s.service.ListDescendants(s.ctx, "", collection.Window{Start: 1, Size: 10})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("queries by prefix", func() {
		s.store.EXPECT().CountByPrefix(gomock.Any(), domain.CategoryKey("A0")).Return(2, nil)
		s.store.EXPECT().ListByPrefix(gomock.Any(), domain.CategoryKey("A0"), 0, 10).
			Return([]*models.Category{{Key: "A0"}, {Key: "A01"}}, nil)

		page, err := s.service.ListDescendants(s.ctx, "A0", collection.Window{Start: 1, Size: 10})
		s.Require().NoError(err)
		s.Equal(2, page.Total)
		s.Len(page.Items, 2)
	})
}

func (s *ServiceSuite) TestCreateCategory() {
	s.Run("blank name is a validation error", func() {
		_, err := s.service.CreateCategory(s.ctx, "A001", "  ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("duplicate key is a conflict", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrAlreadyUsed)

		_, err := s.service.CreateCategory(s.ctx, "A001", "Assets")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("trims the name", func() {
		s.store.EXPECT().Create(gomock.Any(), &models.Category{Key: "A001", Name: "Assets"}).Return(nil)

		c, err := s.service.CreateCategory(s.ctx, "A001", " Assets ")
		s.Require().NoError(err)
		s.Equal("Assets", c.Name)
	})
}

func (s *ServiceSuite) TestUpdateCategory() {
	s.Run("missing category is not found", func() {
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(sentinel.ErrNotFound)

		_, err := s.service.UpdateCategory(s.ctx, "Z", "name")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("success invalidates the cache", func() {
		s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
		s.cache.EXPECT().Invalidate(gomock.Any(), domain.CategoryKey("A001")).Return(nil)

		c, err := s.service.UpdateCategory(s.ctx, "A001", "Fixed assets")
		s.Require().NoError(err)
		s.Equal("Fixed assets", c.Name)
	})
}

func (s *ServiceSuite) TestDeleteCategory() {
	s.Run("referenced category is a conflict", func() {
		s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(&models.Category{Key: "A001"}, nil)
		s.accounts.EXPECT().CountByCategory(gomock.Any(), domain.CategoryKey("A001")).Return(2, nil)

		err := s.service.DeleteCategory(s.ctx, "A001")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("category is referenced by 2 accounts", dErrors.MessageOf(err))
	})

	s.Run("missing category is not found", func() {
		s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("Z")).Return(nil, sentinel.ErrNotFound)

		err := s.service.DeleteCategory(s.ctx, "Z")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unreferenced category is deleted", func() {
		gomock.InOrder(
			s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(&models.Category{Key: "A001"}, nil),
			s.accounts.EXPECT().CountByCategory(gomock.Any(), domain.CategoryKey("A001")).Return(0, nil),
			s.store.EXPECT().Delete(gomock.Any(), domain.CategoryKey("A001")).Return(nil),
			s.cache.EXPECT().Invalidate(gomock.Any(), domain.CategoryKey("A001")).Return(nil),
		)

		s.NoError(s.service.DeleteCategory(s.ctx, "A001"))
	})

	s.Run("serialization failure asks for a retry", func() {
		s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(&models.Category{Key: "A001"}, nil)
		s.accounts.EXPECT().CountByCategory(gomock.Any(), domain.CategoryKey("A001")).Return(0, nil)
		s.store.EXPECT().Delete(gomock.Any(), domain.CategoryKey("A001")).
			Return(errors.Join(sentinel.ErrConflict, errors.New("could not serialize access")))

		err := s.service.DeleteCategory(s.ctx, "A001")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// TestRenameReportsFailedStep drives a failure into each step in turn.
func (s *ServiceSuite) TestRenameReportsFailedStep() {
	source := &models.Category{Key: "A001", Name: "Assets"}
	boom := errors.New("boom")

	tests := []struct {
		name     string
		setup    func()
		wantStep models.RenameStep
		wantCode dErrors.Code
	}{
		{
			name: "source missing",
			setup: func() {
				s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(nil, sentinel.ErrNotFound)
			},
			wantStep: models.RenameStepLoadSource,
			wantCode: dErrors.CodeNotFound,
		},
		{
			name: "source read fails",
			setup: func() {
				s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(nil, boom)
			},
			wantStep: models.RenameStepLoadSource,
			wantCode: dErrors.CodeInternal,
		},
		{
			name: "target key taken",
			setup: func() {
				s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(source, nil)
				s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrAlreadyUsed)
			},
			wantStep: models.RenameStepInsertTarget,
			wantCode: dErrors.CodeConflict,
		},
		{
			name: "reassignment fails",
			setup: func() {
				s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(source, nil)
				s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
				s.accounts.EXPECT().ReassignCategory(gomock.Any(), domain.CategoryKey("A001"), domain.CategoryKey("A002")).Return(0, boom)
			},
			wantStep: models.RenameStepReassignAccounts,
			wantCode: dErrors.CodeInternal,
		},
		{
			name: "source vanished before delete",
			setup: func() {
				s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(source, nil)
				s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
				s.accounts.EXPECT().ReassignCategory(gomock.Any(), gomock.Any(), gomock.Any()).Return(1, nil)
				s.store.EXPECT().Delete(gomock.Any(), domain.CategoryKey("A001")).Return(sentinel.ErrNotFound)
			},
			wantStep: models.RenameStepDeleteSource,
			wantCode: dErrors.CodeConflict,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			tt.setup()

			result, err := s.service.RenameCategory(s.ctx, "A001", "A002")
			s.Nil(result)
			s.True(dErrors.HasCode(err, tt.wantCode), "got %v", err)

			var stepErr *models.RenameError
			s.Require().ErrorAs(err, &stepErr)
			s.Equal(tt.wantStep, stepErr.Step)
		})
	}
}

func (s *ServiceSuite) TestRenameToSameKeyIsRejected() {
	_, err := s.service.RenameCategory(s.ctx, "A001", "A001")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

type commitFailingRunner struct{}

func (commitFailingRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}
	return errors.New("commit: connection reset")
}

func (s *ServiceSuite) TestRenameReportsCommitFailure() {
	svc, err := New(s.store, s.accounts, commitFailingRunner{},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)

	s.store.EXPECT().FindByKey(gomock.Any(), domain.CategoryKey("A001")).Return(&models.Category{Key: "A001", Name: "Assets"}, nil)
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	s.accounts.EXPECT().ReassignCategory(gomock.Any(), gomock.Any(), gomock.Any()).Return(0, nil)
	s.store.EXPECT().Delete(gomock.Any(), domain.CategoryKey("A001")).Return(nil)

	_, err = svc.RenameCategory(s.ctx, "A001", "A002")
	var stepErr *models.RenameError
	s.Require().ErrorAs(err, &stepErr)
	s.Equal(models.RenameStepCommit, stepErr.Step)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
