package state

import (
	"context"
	"sync"

	"github.com/elys-network/flywheel/internal/types"
)

// MemoryStore keeps the ledger in process memory. State is lost on restart.
type MemoryStore struct {
	mu        sync.Mutex
	ledger    Ledger
	events    []types.Event // oldest first
	nextSeq   int64
	retention int
}

// NewMemoryStore creates an empty store keeping at most retention events (0 keeps all).
func NewMemoryStore(retention int) *MemoryStore {
	return &MemoryStore{nextSeq: 1, retention: retention}
}

func (s *MemoryStore) Load(_ context.Context) (Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, fn UpdateFunc) ([]types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working := s.ledger.Clone()
	events, err := fn(&working)
	if err != nil {
		return nil, err
	}

	s.ledger = working
	committed := make([]types.Event, len(events))
	for i, ev := range events {
		ev.Seq = s.nextSeq
		s.nextSeq++
		committed[i] = ev
	}
	s.events = append(s.events, committed...)
	if s.retention > 0 && len(s.events) > s.retention {
		s.events = append([]types.Event(nil), s.events[len(s.events)-s.retention:]...)
	}
	return committed, nil
}

func (s *MemoryStore) RecentEvents(_ context.Context, limit int) ([]types.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.events)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]types.Event, 0, n)
	for i := len(s.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
