package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"accounting/internal/journal/models"
	"accounting/pkg/domain"
	"accounting/pkg/platform/tx"
)

// InMemoryStore keeps journals in a map ordered by ID on read.
type InMemoryStore struct {
	guard    tx.Guard
	mu       sync.RWMutex
	journals map[domain.JournalID]*models.Journal
	nextID   domain.JournalID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{journals: make(map[domain.JournalID]*models.Journal)}
}

func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.journals), nil
}

func (s *InMemoryStore) List(ctx context.Context, offset, limit int) ([]*models.Journal, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := slices.SortedFunc(maps.Values(s.journals), func(x, y *models.Journal) int { return cmp.Compare(x.ID, y.ID) })
	if offset >= len(all) || limit <= 0 {
		return []*models.Journal{}, nil
	}
	end := min(offset+limit, len(all))
	out := make([]*models.Journal, 0, end-offset)
	for _, j := range all[offset:end] {
		out = append(out, j.Clone())
	}
	return out, nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, id domain.JournalID) (*models.Journal, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.journals[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.Clone(), nil
}

// Create assigns the next ID to journal and stores it.
func (s *InMemoryStore) Create(ctx context.Context, journal *models.Journal) error {
	defer s.guard.Write(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	journal.ID = s.nextID
	s.journals[journal.ID] = journal.Clone()
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, journal *models.Journal) error {
	defer s.guard.Write(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.journals[journal.ID]; !ok {
		return ErrNotFound
	}
	s.journals[journal.ID] = journal.Clone()
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id domain.JournalID) error {
	defer s.guard.Write(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.journals[id]; !ok {
		return ErrNotFound
	}
	delete(s.journals, id)
	return nil
}

// UseGate implements tx.Gated.
func (s *InMemoryStore) UseGate(g tx.Gate) {
	s.guard.UseGate(g)
}

// Snapshot lets a tx.MemoryRunner roll back a failed transaction.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.journals)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		s.journals = saved
		s.mu.Unlock()
	}
}
