package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ChatCompleter produces a chat completion for a full message history.
type ChatCompleter interface {
	Complete(ctx context.Context, model string, history []ChatMessage) (string, error)
}

// ImageGenerator renders an image for a prompt and returns its URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, model string, prompt string) (string, error)
}

// Transcriber converts recorded audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, model string, audio []byte, filename string) (string, error)
}

// ChatMessage is one turn of a conversation sent to a chat model. ImageURL
// is set when the turn carries a photo; Text then holds the caption.
type ChatMessage struct {
	Role     string
	Text     string
	ImageURL string
}

// ProviderConfig contains common configuration for providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for provider operations
var (
	// ERateLimit indicates the API rate limit has been exceeded
	ERateLimit = errors.New("provider rate limit exceeded")

	// EContentPolicy indicates the prompt was rejected by the provider's
	// safety system
	EContentPolicy = errors.New("prompt violates content policy")

	// EInvalidRequest indicates the request was malformed or unsupported
	EInvalidRequest = errors.New("invalid provider request")

	// ETimeout indicates the request timed out
	ETimeout = errors.New("provider request timed out")

	// EUnavailable indicates the service is temporarily unavailable
	EUnavailable = errors.New("provider temporarily unavailable")

	// EUnauthorized indicates invalid API credentials
	EUnauthorized = errors.New("provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be
// retried within a single request's budget.
func IsRetryable(err error) bool {
	return errors.Is(err, ERateLimit) ||
		errors.Is(err, ETimeout) ||
		errors.Is(err, EUnavailable)
}

// WrapError wraps an error with context about the provider operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
