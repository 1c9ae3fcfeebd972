package store

import (
	"context"
	"encoding/json"
	"errors"
	"field-visit-service/internal/domain"
	"fmt"
	"sync"
)

// MemoryVisitStateStore is an in-process VisitStateStore with the same
// versioning rules as the Redis store. Documents are stored encoded so
// callers never share memory with the store.
type MemoryVisitStateStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
	vers map[string]int64
}

func NewMemoryVisitStateStore() *MemoryVisitStateStore {
	return &MemoryVisitStateStore{
		docs: make(map[string][]byte),
		vers: make(map[string]int64),
	}
}

func (s *MemoryVisitStateStore) Load(ctx context.Context, visitID string) (*domain.VisitState, error) {
	s.mu.RLock()
	raw, ok := s.docs[visitID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return decodeState(visitID, raw)
}

func (s *MemoryVisitStateStore) LoadMany(ctx context.Context, visitIDs []string) (map[string]*domain.VisitState, error) {
	out := make(map[string]*domain.VisitState, len(visitIDs))
	for _, id := range visitIDs {
		st, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if st != nil {
			out[id] = st
		}
	}
	return out, nil
}

func (s *MemoryVisitStateStore) Save(ctx context.Context, st *domain.VisitState) error {
	if st == nil || st.VisitID == "" {
		return errors.New("save visit state: state must have a visit id")
	}

	next := *st
	next.Version = st.Version + 1
	payload, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("save visit state %q: encode: %w", st.VisitID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vers[st.VisitID] != st.Version {
		return domain.ErrVersionConflict
	}
	s.docs[st.VisitID] = payload
	s.vers[st.VisitID] = next.Version
	st.Version = next.Version
	return nil
}
