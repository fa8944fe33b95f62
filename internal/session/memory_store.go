package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore holds sessions in a size-bounded LRU whose entries expire after
// ttl without being written.
type MemoryStore struct {
	cache *expirable.LRU[string, State]
}

func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: expirable.NewLRU[string, State](size, nil, ttl),
	}
}

func (s *MemoryStore) Get(ctx context.Context, patientID string) (State, bool, error) {
	st, ok := s.cache.Get(patientID)
	return st, ok, nil
}

func (s *MemoryStore) Put(ctx context.Context, patientID string, st State) error {
	s.cache.Add(patientID, st)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, patientID string) error {
	s.cache.Remove(patientID)
	return nil
}

func (s *MemoryStore) Len() int {
	return s.cache.Len()
}
