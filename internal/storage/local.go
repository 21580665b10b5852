package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalStore implements Store on the local filesystem.
type LocalStore struct {
	basePath string
	logger   *slog.Logger
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a LocalStore rooted at basePath, creating the
// directory if needed.
func NewLocalStore(basePath string, logger *slog.Logger) (*LocalStore, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve base path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	logger.Info("initialized local storage", "base_path", absPath)

	return &LocalStore{basePath: absPath, logger: logger}, nil
}

// Put stores data at the specified key.
func (s *LocalStore) Put(ctx context.Context, key string, data io.Reader) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	path, err := s.resolve(key)
	if err != nil {
		return &Error{Op: "Put", Key: key, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &Error{Op: "Put", Key: key, Err: err}
	}

	file, err := os.Create(path)
	if err != nil {
		return &Error{Op: "Put", Key: key, Err: err}
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		os.Remove(path)
		return &Error{Op: "Put", Key: key, Err: err}
	}

	s.logger.Debug("stored blob", "key", key)
	return nil
}

// Get retrieves the blob at the specified key.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	path, err := s.resolve(key)
	if err != nil {
		return nil, &Error{Op: "Get", Key: key, Err: err}
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &Error{Op: "Get", Key: key, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &Error{Op: "Get", Key: key, Err: err}
	}
	return file, nil
}

// Delete removes the blob. Missing blobs are not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	path, err := s.resolve(key)
	if err != nil {
		return &Error{Op: "Delete", Key: key, Err: err}
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: "Delete", Key: key, Err: err}
	}
	return nil
}

// resolve maps a key to an absolute path under basePath.
func (s *LocalStore) resolve(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}
