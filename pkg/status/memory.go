package status

import (
	"context"
	"sync"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// MemoryStore is an in-process Store for development and tests
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]*intent.Status
	intents  map[string]*intent.ValidatedIntent
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses: make(map[string]*intent.Status),
		intents:  make(map[string]*intent.ValidatedIntent),
	}
}

func (s *MemoryStore) SetStatus(_ context.Context, st *intent.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *st
	s.statuses[st.IntentID] = &cp
	return nil
}

func (s *MemoryStore) CreateStatus(_ context.Context, st *intent.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.statuses[st.IntentID]; ok {
		return false, nil
	}
	cp := *st
	s.statuses[st.IntentID] = &cp
	return true, nil
}

func (s *MemoryStore) GetStatus(_ context.Context, intentID string) (*intent.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.statuses[intentID]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (s *MemoryStore) GetStatusesByState(_ context.Context, state intent.State) ([]*intent.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*intent.Status
	for _, st := range s.statuses {
		if st.State == state {
			cp := *st
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveIntent(_ context.Context, in *intent.ValidatedIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.intents[in.IntentID] = in
	return nil
}

func (s *MemoryStore) GetIntent(_ context.Context, intentID string) (*intent.ValidatedIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, ok := s.intents[intentID]
	if !ok {
		return nil, ErrNotFound
	}
	return in, nil
}
