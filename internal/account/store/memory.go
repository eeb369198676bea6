package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"accounting/internal/account/models"
	"accounting/pkg/domain"
	"accounting/pkg/platform/tx"
)

// InMemoryStore keeps accounts in a map. Listings are ordered by ID. IDs are
// never reused, even after a rolled back transaction.
type InMemoryStore struct {
	guard    tx.Guard
	mu       sync.RWMutex
	accounts map[domain.AccountID]*models.Account
	nextID   domain.AccountID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[domain.AccountID]*models.Account)}
}

func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

func (s *InMemoryStore) List(ctx context.Context, offset, limit int) ([]*models.Account, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.matching(nil), offset, limit), nil
}

func (s *InMemoryStore) CountByCategoryPrefix(ctx context.Context, prefix domain.CategoryKey) (int, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matching(func(a *models.Account) bool { return a.Category.HasPrefix(prefix) })), nil
}

func (s *InMemoryStore) ListByCategoryPrefix(ctx context.Context, prefix domain.CategoryKey, offset, limit int) ([]*models.Account, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return window(s.matching(func(a *models.Account) bool { return a.Category.HasPrefix(prefix) }), offset, limit), nil
}

// CountByCategory counts accounts in exactly this category, not its subtree.
func (s *InMemoryStore) CountByCategory(ctx context.Context, key domain.CategoryKey) (int, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matching(func(a *models.Account) bool { return a.Category == key })), nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, id domain.AccountID) (*models.Account, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// Create assigns the next ID to account and stores it.
func (s *InMemoryStore) Create(ctx context.Context, account *models.Account) error {
	defer s.guard.Write(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	account.ID = s.nextID
	s.accounts[account.ID] = account.Clone()
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, account *models.Account) error {
	defer s.guard.Write(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; !ok {
		return ErrNotFound
	}
	s.accounts[account.ID] = account.Clone()
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id domain.AccountID) error {
	defer s.guard.Write(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

// ReassignCategory moves every account in category from to category to and
// returns how many moved.
func (s *InMemoryStore) ReassignCategory(ctx context.Context, from, to domain.CategoryKey) (int, error) {
	defer s.guard.Write(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, a := range s.accounts {
		if a.Category != from {
			continue
		}
		moved := a.Clone()
		moved.Category = to
		s.accounts[id] = moved
		n++
	}
	return n, nil
}

// UseGate implements tx.Gated.
func (s *InMemoryStore) UseGate(g tx.Gate) {
	s.guard.UseGate(g)
}

// Snapshot lets a tx.MemoryRunner roll back a failed transaction.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.accounts)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		s.accounts = saved
		s.mu.Unlock()
	}
}

// matching must be called with the lock held. A nil filter matches all.
func (s *InMemoryStore) matching(filter func(*models.Account) bool) []*models.Account {
	out := make([]*models.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		if filter == nil || filter(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(x, y *models.Account) int { return cmp.Compare(x.ID, y.ID) })
	return out
}

func window(accounts []*models.Account, offset, limit int) []*models.Account {
	if offset >= len(accounts) || limit <= 0 {
		return []*models.Account{}
	}
	end := min(offset+limit, len(accounts))
	out := make([]*models.Account, 0, end-offset)
	for _, a := range accounts[offset:end] {
		out = append(out, a.Clone())
	}
	return out
}
