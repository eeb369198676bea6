package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"accounting/internal/account/models"
	"accounting/pkg/domain"
	"accounting/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) add(category, name string) *models.Account {
	a := &models.Account{Category: domain.CategoryKey(category), Name: name}
	s.Require().NoError(s.store.Create(s.ctx, a))
	return a
}

func ids(accounts []*models.Account) []domain.AccountID {
	out := make([]domain.AccountID, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.ID)
	}
	return out
}

func (s *InMemoryStoreSuite) TestCreateAssignsSequentialIDs() {
	first := s.add("A001", "Cash")
	second := s.add("A001", "Bank")
	s.Equal(domain.AccountID(1), first.ID)
	s.Equal(domain.AccountID(2), second.ID)

	found, err := s.store.FindByID(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal("Bank", found.Name)

	_, err = s.store.FindByID(s.ctx, 3)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestPrefixFilter() {
	s.add("A001", "Cash")
	s.add("A1", "Receivables")
	s.add("B001", "Payables")
	s.add("A0", "Inventory")

	got, err := s.store.ListByCategoryPrefix(s.ctx, "A0", 0, 10)
	s.Require().NoError(err)
	s.Equal([]domain.AccountID{1, 4}, ids(got))

	n, err := s.store.CountByCategoryPrefix(s.ctx, "A")
	s.Require().NoError(err)
	s.Equal(3, n)

	exact, err := s.store.CountByCategory(s.ctx, "A0")
	s.Require().NoError(err)
	s.Equal(1, exact, "exact count must not include descendants")
}

func (s *InMemoryStoreSuite) TestListWindow() {
	for range 5 {
		s.add("A", "x")
	}
	got, err := s.store.List(s.ctx, 3, 10)
	s.Require().NoError(err)
	s.Equal([]domain.AccountID{4, 5}, ids(got))
}

func (s *InMemoryStoreSuite) TestReassignCategory() {
	s.add("A001", "Cash")
	s.add("A001", "Bank")
	s.add("A0011", "Deposits")

	n, err := s.store.ReassignCategory(s.ctx, "A001", "A002")
	s.Require().NoError(err)
	s.Equal(2, n)

	moved, err := s.store.CountByCategory(s.ctx, "A002")
	s.Require().NoError(err)
	s.Equal(2, moved)

	untouched, err := s.store.FindByID(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal(domain.CategoryKey("A0011"), untouched.Category, "only exact matches move")
}

func (s *InMemoryStoreSuite) TestUpdateDeleteAndSnapshot() {
	a := s.add("A001", "Cash")
	restore := s.store.Snapshot()

	a.Name = "Petty cash"
	s.Require().NoError(s.store.Update(s.ctx, a))
	s.Require().NoError(s.store.Delete(s.ctx, a.ID))
	s.ErrorIs(s.store.Delete(s.ctx, a.ID), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(s.ctx, a), sentinel.ErrNotFound)

	restore()

	found, err := s.store.FindByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal("Cash", found.Name)

	next := s.add("A001", "After rollback")
	s.Equal(domain.AccountID(2), next.ID, "IDs are not reused")
}
