package mock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dkotenko/telegpt/internal/ai"
)

// Provider is a mock model provider for testing and development. It serves
// all three collaborator roles and is safe for concurrent calls.
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing. Set before the provider is used;
	// they are read without locking.
	CompleteResponse   string
	CompleteError      error
	GenerateResponse   string
	GenerateError      error
	TranscribeResponse string
	TranscribeError    error

	mu              sync.Mutex
	completeCalls   int
	generateCalls   int
	transcribeCalls int
	lastHistory     []ai.ChatMessage
}

var (
	_ ai.ChatCompleter  = (*Provider)(nil)
	_ ai.ImageGenerator = (*Provider)(nil)
	_ ai.Transcriber    = (*Provider)(nil)
)

// New creates a new mock provider
func New(logger *slog.Logger) *Provider {
	return &Provider{logger: logger}
}

// Complete returns a canned chat completion
func (p *Provider) Complete(_ context.Context, model string, history []ai.ChatMessage) (string, error) {
	p.mu.Lock()
	p.completeCalls++
	p.lastHistory = history
	p.mu.Unlock()

	if p.CompleteError != nil {
		return "", p.CompleteError
	}
	if p.CompleteResponse != "" {
		return p.CompleteResponse, nil
	}
	return fmt.Sprintf("mock completion from %s (%d turns)", model, len(history)), nil
}

// GenerateImage returns a canned image URL
func (p *Provider) GenerateImage(_ context.Context, model string, prompt string) (string, error) {
	p.mu.Lock()
	p.generateCalls++
	p.mu.Unlock()

	if p.GenerateError != nil {
		return "", p.GenerateError
	}
	if p.GenerateResponse != "" {
		return p.GenerateResponse, nil
	}
	return "https://example.invalid/generated/mock.png", nil
}

// Transcribe returns a canned transcript
func (p *Provider) Transcribe(_ context.Context, model string, audio []byte, filename string) (string, error) {
	p.mu.Lock()
	p.transcribeCalls++
	p.mu.Unlock()

	if p.TranscribeError != nil {
		return "", p.TranscribeError
	}
	if p.TranscribeResponse != "" {
		return p.TranscribeResponse, nil
	}
	return fmt.Sprintf("mock transcript of %d bytes", len(audio)), nil
}

// CompleteCalls reports how many chat completions were requested.
func (p *Provider) CompleteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completeCalls
}

// GenerateCalls reports how many image generations were requested.
func (p *Provider) GenerateCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generateCalls
}

// TranscribeCalls reports how many transcriptions were requested.
func (p *Provider) TranscribeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transcribeCalls
}

// LastHistory returns the history passed to the most recent Complete call.
func (p *Provider) LastHistory() []ai.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastHistory
}
