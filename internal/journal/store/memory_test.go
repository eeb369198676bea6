package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"accounting/internal/journal/models"
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

func (s *InMemoryStoreSuite) add(name string) *models.Journal {
	j := &models.Journal{Name: name}
	s.Require().NoError(s.store.Create(s.ctx, j))
	return j
}

func (s *InMemoryStoreSuite) TestCreateAndList() {
	for _, name := range []string{"General", "Sales", "Purchases"} {
		s.add(name)
	}

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, n)

	page, err := s.store.List(s.ctx, 1, 5)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(domain.JournalID(2), page[0].ID)
	s.Equal("Purchases", page[1].Name)

	empty, err := s.store.List(s.ctx, 3, 5)
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)
}

func (s *InMemoryStoreSuite) TestUpdateAndDelete() {
	j := s.add("General")

	j.Name = "General ledger"
	s.Require().NoError(s.store.Update(s.ctx, j))
	found, err := s.store.FindByID(s.ctx, j.ID)
	s.Require().NoError(err)
	s.Equal("General ledger", found.Name)

	s.Require().NoError(s.store.Delete(s.ctx, j.ID))
	_, err = s.store.FindByID(s.ctx, j.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.ErrorIs(s.store.Delete(s.ctx, j.ID), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(s.ctx, &models.Journal{ID: 42, Name: "x"}), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestReturnedJournalsAreCopies() {
	j := s.add("General")
	found, err := s.store.FindByID(s.ctx, j.ID)
	s.Require().NoError(err)
	found.Name = "changed"

	again, err := s.store.FindByID(s.ctx, j.ID)
	s.Require().NoError(err)
	s.Equal("General", again.Name)
}

func (s *InMemoryStoreSuite) TestSnapshotRestores() {
	s.add("General")
	restore := s.store.Snapshot()
	s.add("Sales")

	restore()

	n, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	// IDs keep increasing after a restore.
	s.Equal(domain.JournalID(3), s.add("Purchases").ID)
}
