// Package service contains the business logic layer.
//
// This file implements the account registry: a per-user session cache over
// the document store that serializes all quota and tier mutations for a
// single account. Events for different accounts proceed independently.
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dkotenko/telegpt/internal/domain"
	"github.com/dkotenko/telegpt/internal/store"
)

// Accounts loads, caches, and persists user accounts.
//
// Each account has a dedicated mutex; Update holds it across the ledger
// refresh, the mutation, and the write-back, so duplicate deliveries of the
// same event cannot lose a quota decrement. Conversation history lives only
// on the cached copy.
type Accounts struct {
	store  store.AccountStore
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[int64]*session
}

type session struct {
	mu   sync.Mutex
	acct *domain.Account
}

// NewAccounts creates the account registry.
func NewAccounts(st store.AccountStore, logger *slog.Logger) *Accounts {
	return &Accounts{
		store:    st,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[int64]*session),
	}
}

// Update runs fn against the account under its per-account lock.
//
// The account is loaded on first touch (created with free-tier defaults if
// the store has no document), refreshed against the wall clock before fn
// runs, and persisted afterwards. Persistence happens even when fn fails,
// so a refresh that happened on the way in is never lost.
//
// Returns a copy of the account after the update.
func (a *Accounts) Update(ctx context.Context, telegramID int64, fn func(*domain.Account) error) (*domain.Account, error) {
	const op = "accounts.update"

	s := a.session(telegramID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.acct == nil {
		acct, err := a.load(ctx, telegramID)
		if err != nil {
			return nil, err
		}
		s.acct = acct
	}

	Refresh(s.acct, a.now())

	var fnErr error
	if fn != nil {
		fnErr = fn(s.acct)
	}

	if err := a.store.Upsert(ctx, s.acct); err != nil {
		return nil, domain.Internal(err, op, "failed to persist account")
	}

	if fnErr != nil {
		return nil, fnErr
	}

	out := *s.acct
	out.History = slices.Clone(s.acct.History)
	return &out, nil
}

// View returns a refreshed copy of the account without further mutation.
func (a *Accounts) View(ctx context.Context, telegramID int64) (*domain.Account, error) {
	return a.Update(ctx, telegramID, nil)
}

func (a *Accounts) load(ctx context.Context, telegramID int64) (*domain.Account, error) {
	const op = "accounts.load"

	acct, err := a.store.Find(ctx, telegramID)
	if errors.Is(err, store.ErrNotFound) {
		acct = domain.NewAccount(telegramID, a.now())
		a.logger.Info("account created", "telegram_id", telegramID)
		return acct, nil
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load account")
	}
	return acct, nil
}

func (a *Accounts) session(telegramID int64) *session {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sessions[telegramID]
	if !ok {
		s = &session{}
		a.sessions[telegramID] = s
	}
	return s
}
