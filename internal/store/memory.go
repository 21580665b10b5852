package store

import (
	"context"
	"sync"

	"github.com/dkotenko/telegpt/internal/domain"
)

// MemoryStore is an in-process AccountStore for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[int64]domain.Account
}

var _ AccountStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[int64]domain.Account)}
}

// Find loads the account for a Telegram user ID.
func (s *MemoryStore) Find(_ context.Context, telegramID int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[telegramID]
	if !ok {
		return nil, ErrNotFound
	}
	a.History = nil
	a.PendingTier = ""
	return &a, nil
}

// Upsert stores the account's durable fields.
func (s *MemoryStore) Upsert(_ context.Context, acct *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := *acct
	a.History = nil
	a.PendingTier = ""
	s.accounts[acct.TelegramID] = a
	return nil
}

// Delete removes the account. Deleting a missing account is not an error.
func (s *MemoryStore) Delete(_ context.Context, telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.accounts, telegramID)
	return nil
}
