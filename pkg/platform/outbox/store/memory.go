package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"accounting/pkg/platform/outbox"
)

// InMemoryStore keeps outbox entries in process. It takes part in
// tx.MemoryRunner transactions through Snapshot.
type InMemoryStore struct {
	mu      sync.Mutex
	entries []outbox.Entry
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, outbox.Entry{Event: event})
	return nil
}

func (s *InMemoryStore) FetchPending(_ context.Context, limit int) ([]outbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.Entry
	for _, e := range s.entries {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(_ context.Context, ids []uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if slices.Contains(ids, s.entries[i].ID) {
			t := at
			s.entries[i].PublishedAt = &t
		}
	}
	return nil
}

// Entries returns a copy of every stored entry.
func (s *InMemoryStore) Entries() []outbox.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// Snapshot implements tx.Snapshotter.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.Lock()
	saved := slices.Clone(s.entries)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.entries = saved
		s.mu.Unlock()
	}
}
