package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	accountmodels "accounting/internal/account/models"
	accountstore "accounting/internal/account/store"
	"accounting/internal/category/metrics"
	"accounting/internal/category/models"
	categorystore "accounting/internal/category/store"
	"accounting/pkg/collection"
	"accounting/pkg/domain"
	dErrors "accounting/pkg/domain-errors"
	outboxstore "accounting/pkg/platform/outbox/store"
	"accounting/pkg/platform/sentinel"
	"accounting/pkg/platform/tx"
)

// RenameSuite runs renames against the in-memory stores so rollback and
// concurrency behave as they do in the running service.
type RenameSuite struct {
	suite.Suite
	ctx        context.Context
	categories *categorystore.InMemoryStore
	accounts   *accountstore.InMemoryStore
	events     *outboxstore.InMemoryStore
	runner     *tx.MemoryRunner
	metrics    *metrics.Metrics
	service    *Service
}

func TestRenameSuite(t *testing.T) {
	suite.Run(t, new(RenameSuite))
}

func (s *RenameSuite) SetupTest() {
	s.ctx = context.Background()
	s.categories = categorystore.NewInMemory()
	s.accounts = accountstore.NewInMemory()
	s.events = outboxstore.NewInMemory()
	s.runner = tx.NewMemoryRunner(s.categories, s.accounts, s.events)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.service = s.newService(s.accounts)
}

func (s *RenameSuite) newService(accounts AccountReferences) *Service {
	svc, err := New(s.categories, accounts, s.runner,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithEventRecorder(s.events),
	)
	s.Require().NoError(err)
	return svc
}

func (s *RenameSuite) seedCategory(key domain.CategoryKey, name string) {
	s.Require().NoError(s.categories.Create(s.ctx, &models.Category{Key: key, Name: name}))
}

func (s *RenameSuite) seedAccount(category domain.CategoryKey, name string) *accountmodels.Account {
	a := &accountmodels.Account{Category: category, Name: name}
	s.Require().NoError(s.accounts.Create(s.ctx, a))
	return a
}

func (s *RenameSuite) categoryOf(id domain.AccountID) domain.CategoryKey {
	a, err := s.accounts.FindByID(s.ctx, id)
	s.Require().NoError(err)
	return a.Category
}

func (s *RenameSuite) exists(key domain.CategoryKey) bool {
	_, err := s.categories.FindByKey(s.ctx, key)
	return err == nil
}

func (s *RenameSuite) TestRenameMovesCategoryAndAccounts() {
	s.seedCategory("A001", "Current assets")
	cash := s.seedAccount("A001", "Cash")
	bank := s.seedAccount("A001", "Bank")
	other := s.seedAccount("A0011", "Deposits")

	result, err := s.service.RenameCategory(s.ctx, "A001", "A002")
	s.Require().NoError(err)

	s.Equal(domain.CategoryKey("A002"), result.Category.Key)
	s.Equal("Current assets", result.Category.Name)
	s.Equal(2, result.AccountsReassigned)
	s.False(s.exists("A001"))
	s.True(s.exists("A002"))
	s.Equal(domain.CategoryKey("A002"), s.categoryOf(cash.ID))
	s.Equal(domain.CategoryKey("A002"), s.categoryOf(bank.ID))
	s.Equal(domain.CategoryKey("A0011"), s.categoryOf(other.ID))

	s.InDelta(1, prom.ToFloat64(s.metrics.RenamesTotal.WithLabelValues(metrics.OutcomeSuccess)), 0)
	s.InDelta(2, prom.ToFloat64(s.metrics.AccountsReassigned), 0)
}

func (s *RenameSuite) TestRenameRecordsEvent() {
	s.seedCategory("A001", "Current assets")
	s.seedAccount("A001", "Cash")

	result, err := s.service.RenameCategory(s.ctx, "A001", "A002")
	s.Require().NoError(err)

	entries := s.events.Entries()
	s.Require().Len(entries, 1)
	s.Equal(models.EventRenamed, entries[0].Type)
	s.Equal("A002", entries[0].AggregateID)

	var payload models.RenamedPayload
	s.Require().NoError(json.Unmarshal(entries[0].Payload, &payload))
	s.Equal(models.RenamedPayload{
		AttemptID:          result.AttemptID.String(),
		From:               "A001",
		To:                 "A002",
		AccountsReassigned: 1,
	}, payload)
}

func (s *RenameSuite) TestRenameToExistingKeyChangesNothing() {
	s.seedCategory("A001", "Current assets")
	s.seedCategory("A002", "Fixed assets")
	cash := s.seedAccount("A001", "Cash")

	_, err := s.service.RenameCategory(s.ctx, "A001", "A002")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	target, ferr := s.categories.FindByKey(s.ctx, "A002")
	s.Require().NoError(ferr)
	s.Equal("Fixed assets", target.Name)
	s.True(s.exists("A001"))
	s.Equal(domain.CategoryKey("A001"), s.categoryOf(cash.ID))
	s.Empty(s.events.Entries())
}

func (s *RenameSuite) TestRenameMissingSourceIsNotFound() {
	_, err := s.service.RenameCategory(s.ctx, "NOPE", "A002")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.False(s.exists("A002"))
}

// failingReassign moves the accounts and then fails, leaving partial writes
// for the transaction to undo.
type failingReassign struct {
	*accountstore.InMemoryStore
}

func (f failingReassign) ReassignCategory(ctx context.Context, from, to domain.CategoryKey) (int, error) {
	if _, err := f.InMemoryStore.ReassignCategory(ctx, from, to); err != nil {
		return 0, err
	}
	return 0, errors.New("lost connection")
}

func (s *RenameSuite) TestFailedRenameRollsBackEveryStep() {
	s.seedCategory("A001", "Current assets")
	cash := s.seedAccount("A001", "Cash")
	svc := s.newService(failingReassign{s.accounts})

	_, err := svc.RenameCategory(s.ctx, "A001", "A002")

	var stepErr *models.RenameError
	s.Require().ErrorAs(err, &stepErr)
	s.Equal(models.RenameStepReassignAccounts, stepErr.Step)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	s.True(s.exists("A001"), "source must survive")
	s.False(s.exists("A002"), "inserted target must be rolled back")
	s.Equal(domain.CategoryKey("A001"), s.categoryOf(cash.ID), "reassignment must be rolled back")
	s.Empty(s.events.Entries())
	s.InDelta(1, prom.ToFloat64(s.metrics.RenamesTotal.WithLabelValues(metrics.OutcomeFailed)), 0)
}

// pausingReassign holds the rename between inserting the target and moving
// the accounts until release is closed.
type pausingReassign struct {
	*accountstore.InMemoryStore
	paused  chan struct{}
	release chan struct{}
}

func (p pausingReassign) ReassignCategory(ctx context.Context, from, to domain.CategoryKey) (int, error) {
	close(p.paused)
	<-p.release
	return p.InMemoryStore.ReassignCategory(ctx, from, to)
}

func (s *RenameSuite) TestReadersOnlySeeCommittedRename() {
	s.seedCategory("A001", "Current assets")
	cash := s.seedAccount("A001", "Cash")
	pausing := pausingReassign{InMemoryStore: s.accounts, paused: make(chan struct{}), release: make(chan struct{})}
	svc := s.newService(pausing)

	renamed := make(chan error, 1)
	go func() {
		_, err := svc.RenameCategory(s.ctx, "A001", "A002")
		renamed <- err
	}()
	<-pausing.paused

	type listing struct {
		page *collection.Page[*models.Category]
		err  error
	}
	listed := make(chan listing, 1)
	target := make(chan error, 1)
	go func() {
		page, err := svc.ListCategories(s.ctx, collection.Window{Start: 1, Size: 10})
		listed <- listing{page, err}
	}()
	go func() {
		_, err := svc.GetCategory(s.ctx, "A002")
		target <- err
	}()
	s.Never(func() bool { return len(listed) > 0 || len(target) > 0 }, 100*time.Millisecond, 10*time.Millisecond,
		"reads must wait for the rename to commit")

	close(pausing.release)
	s.Require().NoError(<-renamed)

	got := <-listed
	s.Require().NoError(got.err)
	s.Equal(1, got.page.Total)
	s.Require().Len(got.page.Items, 1)
	s.Equal(domain.CategoryKey("A002"), got.page.Items[0].Key)
	s.NoError(<-target)
	s.Equal(domain.CategoryKey("A002"), s.categoryOf(cash.ID))
}

// fencedCache keeps entries in memory under the same generation rules as the
// Redis cache. The first Fill can be held open until release is closed.
type fencedCache struct {
	mu          sync.Mutex
	entries     map[domain.CategoryKey]*models.Category
	generations map[domain.CategoryKey]int64

	once    sync.Once
	filling chan struct{}
	release chan struct{}
}

func newFencedCache() *fencedCache {
	return &fencedCache{
		entries:     make(map[domain.CategoryKey]*models.Category),
		generations: make(map[domain.CategoryKey]int64),
		filling:     make(chan struct{}),
		release:     make(chan struct{}),
	}
}

func (c *fencedCache) Get(_ context.Context, key domain.CategoryKey) (*models.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (c *fencedCache) Generation(_ context.Context, key domain.CategoryKey) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key], nil
}

func (c *fencedCache) Fill(_ context.Context, category *models.Category, generation int64) (bool, error) {
	c.once.Do(func() {
		close(c.filling)
		<-c.release
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[category.Key] != generation {
		return false, nil
	}
	c.entries[category.Key] = category.Clone()
	return true, nil
}

func (c *fencedCache) Invalidate(_ context.Context, keys ...domain.CategoryKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.generations[k]++
	}
	return nil
}

// A read that loaded the category before a write commits must not leave it
// in the cache once the write has invalidated it.
func (s *RenameSuite) TestStaleFillAfterWriteIsDropped() {
	writes := map[string]func(svc *Service) error{
		"rename": func(svc *Service) error {
			_, err := svc.RenameCategory(s.ctx, "A001", "A002")
			return err
		},
		"delete": func(svc *Service) error {
			return svc.DeleteCategory(s.ctx, "A001")
		},
	}
	for name, write := range writes {
		s.Run(name, func() {
			s.SetupTest()
			s.seedCategory("A001", "Assets")
			cache := newFencedCache()
			svc, err := New(s.categories, s.accounts, s.runner,
				WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
				WithMetrics(s.metrics),
				WithEventRecorder(s.events),
				WithCache(cache),
			)
			s.Require().NoError(err)

			read := make(chan error, 1)
			go func() {
				_, err := svc.GetCategory(s.ctx, "A001")
				read <- err
			}()
			<-cache.filling

			s.Require().NoError(write(svc))
			close(cache.release)
			s.Require().NoError(<-read)

			_, err = cache.Get(s.ctx, "A001")
			s.ErrorIs(err, sentinel.ErrNotFound, "stale entry was cached")
			_, err = svc.GetCategory(s.ctx, "A001")
			s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "old key still resolves: %v", err)
		})
	}
}

// Two renames racing for the same target: exactly one wins and every account
// ends up in a category that exists.
func (s *RenameSuite) TestConcurrentRenamesToSameTarget() {
	s.seedCategory("A", "first")
	s.seedCategory("B", "second")
	a := s.seedAccount("A", "from A")
	b := s.seedAccount("B", "from B")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, from := range []domain.CategoryKey{"A", "B"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.service.RenameCategory(s.ctx, from, "T")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.True(dErrors.HasCode(err, dErrors.CodeConflict), "loser must see a conflict, got %v", err)
	}
	s.Equal(1, succeeded)

	for _, id := range []domain.AccountID{a.ID, b.ID} {
		s.True(s.exists(s.categoryOf(id)), "account %d points at a missing category", id)
	}
	n, err := s.categories.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *RenameSuite) TestRenamedKeyIsItsOwnDescendant() {
	s.seedCategory("A001", "Current assets")
	s.seedCategory("A0010", "Cash")
	s.seedCategory("A01", "Other")

	_, err := s.service.RenameCategory(s.ctx, "A001", "Z001")
	s.Require().NoError(err)

	page, err := s.service.ListDescendants(s.ctx, "Z001", collection.Window{Start: 1, Size: 10})
	s.Require().NoError(err)
	s.Equal(1, page.Total)
	s.Equal(domain.CategoryKey("Z001"), page.Items[0].Key)

	page, err = s.service.ListDescendants(s.ctx, "A001", collection.Window{Start: 1, Size: 10})
	s.Require().NoError(err)
	s.Equal(1, page.Total, "children keep their own keys")
	s.Equal(domain.CategoryKey("A0010"), page.Items[0].Key)
}

func (s *RenameSuite) TestDeleteRefusesReferencedCategory() {
	s.seedCategory("A001", "Current assets")
	s.seedAccount("A001", "Cash")

	err := s.service.DeleteCategory(s.ctx, "A001")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal("category is referenced by 1 account", dErrors.MessageOf(err))
	s.True(s.exists("A001"))

	// A descendant key does not count as a reference.
	s.seedCategory("A0", "Assets")
	s.NoError(s.service.DeleteCategory(s.ctx, "A0"))
}
