// Package store persists per-user accounts in a document store keyed by the
// Telegram user ID.
//
// Implementations:
// - MongoStore: MongoDB collection for production
// - MemoryStore: in-process map for tests and local development
package store

import (
	"context"
	"errors"

	"github.com/dkotenko/telegpt/internal/domain"
)

// ErrNotFound is returned when no account exists for the requested ID.
var ErrNotFound = errors.New("account not found")

// AccountStore defines CRUD over persisted accounts.
//
// Upsert merges fields into the stored document rather than replacing it.
// Conversation history and the pending tier selection are transient session
// state and are never written.
type AccountStore interface {
	// Find loads the account for a Telegram user ID.
	// Returns ErrNotFound if no document exists.
	Find(ctx context.Context, telegramID int64) (*domain.Account, error)

	// Upsert writes the account's durable fields, creating the document if
	// it does not exist.
	Upsert(ctx context.Context, acct *domain.Account) error

	// Delete removes the account document. Deleting a missing account is
	// not an error.
	Delete(ctx context.Context, telegramID int64) error
}
