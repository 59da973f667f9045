package history

import (
	"context"
	"sync"
)

// InMemoryStore keeps outcomes for the lifetime of the process. Default when
// no Postgres DSN is configured.
type InMemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) SaveOutcome(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Newest first.
	s.records = append([]Record{rec}, s.records...)
	return nil
}

func (s *InMemoryStore) ListOutcomes(ctx context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	out := make([]Record, limit)
	copy(out, s.records[:limit])
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
