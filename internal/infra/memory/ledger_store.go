package memory

import (
	"context"
	"sync"
)

// LedgerStore is an in-memory implementation of app.LedgerStore, used when no
// durable backend is configured and as a fake in tests.
type LedgerStore struct {
	mu   sync.RWMutex
	data []byte
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{}
}

func (s *LedgerStore) Load(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, nil
	}
	copied := make([]byte, len(s.data))
	copy(copied, s.data)
	return copied, nil
}

func (s *LedgerStore) Save(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make([]byte, len(data))
	copy(s.data, data)
	return nil
}

func (s *LedgerStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}
