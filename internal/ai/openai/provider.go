package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/dkotenko/telegpt/internal/ai"
	"github.com/dkotenko/telegpt/internal/metrics"
)

const (
	// APIBaseURL is the base URL for the OpenAI API
	APIBaseURL = "https://api.openai.com/v1"

	// DefaultImageSize is the size requested for generated images
	DefaultImageSize = "1024x1024"

	// DefaultImageQuality is the quality requested for generated images
	DefaultImageQuality = "standard"

	// contentPolicyCode is the API error code for prompts rejected by the
	// provider's safety system
	contentPolicyCode = "content_policy_violation"
)

// Config contains configuration for the OpenAI provider
type Config struct {
	APIKey         string
	BaseURL        string // overridable for tests
	Organization   string
	Project        string
	ProviderConfig ai.ProviderConfig
}

// Provider implements the chat, image, and transcription collaborator
// interfaces against the OpenAI API.
type Provider struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

var (
	_ ai.ChatCompleter  = (*Provider)(nil)
	_ ai.ImageGenerator = (*Provider)(nil)
	_ ai.Transcriber    = (*Provider)(nil)
)

// New creates a new OpenAI provider
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	// Set defaults
	if config.BaseURL == "" {
		config.BaseURL = APIBaseURL
	}
	if config.ProviderConfig.MaxRetries == 0 {
		config.ProviderConfig.MaxRetries = 3
	}
	if config.ProviderConfig.RetryBaseDelay == 0 {
		config.ProviderConfig.RetryBaseDelay = 1 * time.Second
	}
	if config.ProviderConfig.RequestTimeout == 0 {
		config.ProviderConfig.RequestTimeout = 60 * time.Second
	}

	return &Provider{
		config: config,
		client: &http.Client{
			Timeout: config.ProviderConfig.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// Complete sends the full conversation history to a chat model and returns
// the assistant's reply.
func (p *Provider) Complete(ctx context.Context, model string, history []ai.ChatMessage) (string, error) {
	start := time.Now()
	defer func() { metrics.UpstreamDuration.WithLabelValues(model).Observe(time.Since(start).Seconds()) }()

	body := chatRequest{
		Model:    model,
		Messages: buildChatMessages(history),
	}

	var resp chatResponse
	if err := p.postJSON(ctx, "/chat/completions", body, &resp); err != nil {
		return "", ai.WrapError("complete", err)
	}

	if len(resp.Choices) == 0 {
		return "", ai.WrapError("complete", fmt.Errorf("empty choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage renders one image for the prompt and returns its URL.
func (p *Provider) GenerateImage(ctx context.Context, model string, prompt string) (string, error) {
	start := time.Now()
	defer func() { metrics.UpstreamDuration.WithLabelValues(model).Observe(time.Since(start).Seconds()) }()

	body := imageRequest{
		Model:   model,
		Prompt:  prompt,
		N:       1,
		Size:    DefaultImageSize,
		Quality: DefaultImageQuality,
	}

	var resp imageResponse
	if err := p.postJSON(ctx, "/images/generations", body, &resp); err != nil {
		return "", ai.WrapError("generate image", err)
	}

	if len(resp.Data) == 0 {
		return "", ai.WrapError("generate image", fmt.Errorf("empty data in response"))
	}
	return resp.Data[0].URL, nil
}

// Transcribe uploads recorded audio and returns its transcript.
func (p *Provider) Transcribe(ctx context.Context, model string, audio []byte, filename string) (string, error) {
	start := time.Now()
	defer func() { metrics.UpstreamDuration.WithLabelValues(model).Observe(time.Since(start).Seconds()) }()

	if filename == "" {
		filename = "audio.mp3"
	}

	build := func() (*http.Request, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if err := w.WriteField("model", model); err != nil {
			return nil, err
		}
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(audio); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+"/audio/transcriptions", &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		p.setAuthHeaders(req)
		return req, nil
	}

	var resp transcriptionResponse
	if err := p.executeWithRetry(ctx, build, &resp); err != nil {
		return "", ai.WrapError("transcribe", err)
	}
	return resp.Text, nil
}

// postJSON marshals body, posts it to the given API path, and decodes the
// response into out, retrying transient failures.
func (p *Provider) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		p.setAuthHeaders(req)
		return req, nil
	}

	return p.executeWithRetry(ctx, build, out)
}

func (p *Provider) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	if p.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", p.config.Organization)
	}
	if p.config.Project != "" {
		req.Header.Set("OpenAI-Project", p.config.Project)
	}
}

// executeWithRetry executes a request with exponential backoff. The request
// is rebuilt for each attempt because the body reader is consumed.
func (p *Provider) executeWithRetry(ctx context.Context, build func() (*http.Request, error), out any) error {
	var lastErr error

	for attempt := 1; attempt <= p.config.ProviderConfig.MaxRetries; attempt++ {
		req, err := build()
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}

		lastErr = p.executeRequest(req, out)
		if lastErr == nil {
			return nil
		}
		if !ai.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt >= p.config.ProviderConfig.MaxRetries {
			break
		}

		delay := p.config.ProviderConfig.RetryBaseDelay * time.Duration(1<<(attempt-1))
		p.logger.Info("retrying provider request", "attempt", attempt, "delay", delay, "error", lastErr)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

// executeRequest executes a single HTTP request and decodes the response.
func (p *Provider) executeRequest(req *http.Request, out any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ai.ETimeout
		}
		return ai.EUnavailable
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return p.mapHTTPError(resp.StatusCode, bodyBytes)
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// mapHTTPError maps HTTP status codes to provider errors
func (p *Provider) mapHTTPError(statusCode int, body []byte) error {
	var errResp apiErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.EUnauthorized
	case http.StatusTooManyRequests:
		return ai.ERateLimit
	case http.StatusBadRequest:
		if errResp.Error.Code == contentPolicyCode {
			return ai.EContentPolicy
		}
		return fmt.Errorf("%w: %s", ai.EInvalidRequest, errResp.Error.Message)
	case http.StatusRequestTimeout:
		return ai.ETimeout
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusInternalServerError:
		return ai.EUnavailable
	default:
		return fmt.Errorf("API error (status %d): %s", statusCode, errResp.Error.Message)
	}
}

// buildChatMessages converts conversation turns to the wire format. Turns
// with an attached photo become multi-part content; plain turns stay simple
// strings.
func buildChatMessages(history []ai.ChatMessage) []chatMessage {
	msgs := make([]chatMessage, 0, len(history))
	for _, m := range history {
		role := m.Role
		if role == "system" {
			// Assistant turns are tagged system internally; the chat API
			// expects "assistant".
			role = "assistant"
		}

		if m.ImageURL == "" {
			msgs = append(msgs, chatMessage{Role: role, Content: m.Text})
			continue
		}

		parts := []contentPart{
			{Type: "text", Text: m.Text},
			{Type: "image_url", ImageURL: &imageURLPart{URL: m.ImageURL}},
		}
		msgs = append(msgs, chatMessage{Role: role, Content: parts})
	}
	return msgs
}

// API request/response types

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatMessage carries either a plain string or a part list in Content.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
