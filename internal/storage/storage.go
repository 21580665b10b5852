// Package storage provides blob staging for the bot: downloaded voice notes
// awaiting transcription and overlong replies shipped to users as files.
//
// Implementations:
// - LocalStore: filesystem storage for development
// - S3Store: any S3-compatible bucket (AWS, Cloudflare R2) for production
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Store defines the blob operations the bot needs. Keys are slash-separated
// paths; Delete is idempotent.
type Store interface {
	// Put stores data at the specified key, overwriting any previous blob.
	Put(ctx context.Context, key string, data io.Reader) error

	// Get retrieves the blob at the specified key. The caller must close
	// the reader. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob at the specified key.
	Delete(ctx context.Context, key string) error
}

var (
	// ErrNotFound is returned when a requested blob doesn't exist.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey is returned for empty keys or path traversal attempts.
	ErrInvalidKey = errors.New("invalid storage key")
)

// Error wraps storage operation failures with the operation and key.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// validateKey rejects empty keys and path traversal.
func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}
