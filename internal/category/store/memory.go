package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"accounting/internal/category/models"
	"accounting/pkg/domain"
	"accounting/pkg/platform/sentinel"
	"accounting/pkg/platform/tx"
)

// InMemoryStore keeps categories in a map. Listings are ordered by key.
type InMemoryStore struct {
	guard      tx.Guard
	mu         sync.RWMutex
	categories map[domain.CategoryKey]*models.Category
}

// NewInMemory creates an empty category store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{categories: make(map[domain.CategoryKey]*models.Category)}
}

func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.categories), nil
}

func (s *InMemoryStore) List(ctx context.Context, offset, limit int) ([]*models.Category, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window(s.sortedKeys(""), offset, limit), nil
}

func (s *InMemoryStore) CountByPrefix(ctx context.Context, prefix domain.CategoryKey) (int, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sortedKeys(prefix)), nil
}

func (s *InMemoryStore) ListByPrefix(ctx context.Context, prefix domain.CategoryKey, offset, limit int) ([]*models.Category, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window(s.sortedKeys(prefix), offset, limit), nil
}

func (s *InMemoryStore) FindByKey(ctx context.Context, key domain.CategoryKey) (*models.Category, error) {
	defer s.guard.Read(ctx)()
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[key]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemoryStore) Create(ctx context.Context, category *models.Category) error {
	defer s.guard.Write(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[category.Key]; ok {
		return fmt.Errorf("category %s: %w", category.Key, sentinel.ErrAlreadyUsed)
	}
	s.categories[category.Key] = category.Clone()
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, category *models.Category) error {
	defer s.guard.Write(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[category.Key]; !ok {
		return ErrNotFound
	}
	s.categories[category.Key] = category.Clone()
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, key domain.CategoryKey) error {
	defer s.guard.Write(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[key]; !ok {
		return ErrNotFound
	}
	delete(s.categories, key)
	return nil
}

// UseGate implements tx.Gated.
func (s *InMemoryStore) UseGate(g tx.Gate) {
	s.guard.UseGate(g)
}

// Snapshot copies the current contents and returns a function restoring
// them. It lets a tx.MemoryRunner roll back a failed transaction.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.categories)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		s.categories = saved
		s.mu.Unlock()
	}
}

// sortedKeys must be called with the lock held.
func (s *InMemoryStore) sortedKeys(prefix domain.CategoryKey) []domain.CategoryKey {
	keys := make([]domain.CategoryKey, 0, len(s.categories))
	for k := range s.categories {
		if k.HasPrefix(prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// window must be called with the lock held.
func (s *InMemoryStore) window(keys []domain.CategoryKey, offset, limit int) []*models.Category {
	if offset >= len(keys) || limit <= 0 {
		return []*models.Category{}
	}
	end := min(offset+limit, len(keys))
	out := make([]*models.Category, 0, end-offset)
	for _, k := range keys[offset:end] {
		out = append(out, s.categories[k].Clone())
	}
	return out
}
