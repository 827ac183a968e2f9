package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// MemoryStore is the in-process fallback store used when no DATABASE_URL is
// configured. A single mutex guards the map; Get/Put hand out deep copies so
// callers never alias stored state.
type MemoryStore struct {
	mu     sync.Mutex
	items  map[string]*State
	logger *slog.Logger

	janitorStop chan struct{}
	janitorOnce sync.Once
}

// NewMemoryStore creates an empty in-memory store. If sweep is positive, a
// janitor goroutine removes sessions older than ttl every sweep interval.
func NewMemoryStore(ttl, sweep time.Duration, logger *slog.Logger) *MemoryStore {
	s := &MemoryStore{
		items:       make(map[string]*State),
		logger:      logger,
		janitorStop: make(chan struct{}),
	}
	if sweep > 0 && ttl > 0 {
		go s.janitor(ttl, sweep)
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.items[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.items[st.SessionID]
	cp := st.Clone()
	if cur != nil {
		cp.Version = cur.Version + 1
	} else {
		cp.Version = 1
	}
	s.items[st.SessionID] = cp
	st.Version = cp.Version
	return nil
}

func (s *MemoryStore) CompareAndSet(_ context.Context, st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.items[st.SessionID]
	if st.Version == 0 {
		if exists {
			return ErrConflict
		}
	} else {
		if !exists || cur.Version != st.Version {
			return ErrConflict
		}
	}
	cp := st.Clone()
	cp.Version = st.Version + 1
	s.items[st.SessionID] = cp
	st.Version = cp.Version
	return nil
}

func (s *MemoryStore) Expire(_ context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.items {
		if st.LastActivityAt.Before(cutoff) {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {
	s.janitorOnce.Do(func() { close(s.janitorStop) })
}

// Len reports the number of live sessions. Used by tests and health output.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *MemoryStore) janitor(ttl, sweep time.Duration) {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()
	for {
		select {
		case <-s.janitorStop:
			return
		case <-ticker.C:
			n, _ := s.Expire(context.Background(), ttl)
			if n > 0 && s.logger != nil {
				s.logger.Debug("expired sessions", "count", n)
			}
		}
	}
}
