package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkotenko/telegpt/internal/ai"
)

func testProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     1,
			RetryBaseDelay: time.Millisecond,
			RequestTimeout: time.Second,
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, slog.Default())
	assert.Error(t, err)
}

func TestCompleteSendsHistory(t *testing.T) {
	var got chatRequest
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"pong"}}]}`))
	})

	reply, err := p.Complete(context.Background(), "gpt-4o-mini", []ai.ChatMessage{
		{Role: "user", Text: "ping"},
		{Role: "system", Text: "pong history"},
		{Role: "user", Text: "again"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pong", reply)

	require.Len(t, got.Messages, 3)
	assert.Equal(t, "user", got.Messages[0].Role)
	// Internally system-tagged replies go upstream as assistant turns.
	assert.Equal(t, "assistant", got.Messages[1].Role)
}

func TestCompleteEncodesPhotoTurns(t *testing.T) {
	var raw map[string]any
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	_, err := p.Complete(context.Background(), "gpt-4o", []ai.ChatMessage{
		{Role: "user", Text: "describe this", ImageURL: "https://files.example/p.jpg"},
	})
	require.NoError(t, err)

	msgs := raw["messages"].([]any)
	content := msgs[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "text", content[0].(map[string]any)["type"])
	assert.Equal(t, "image_url", content[1].(map[string]any)["type"])
}

func TestGenerateImageReturnsURL(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)

		var req imageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 1, req.N)
		assert.Equal(t, DefaultImageSize, req.Size)

		_, _ = w.Write([]byte(`{"data":[{"url":"https://img.example/out.png"}]}`))
	})

	url, err := p.GenerateImage(context.Background(), "dall-e-3", "a red fox")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/out.png", url)
}

func TestGenerateImageContentPolicy(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"rejected","type":"invalid_request_error","code":"content_policy_violation"}}`))
	})

	_, err := p.GenerateImage(context.Background(), "dall-e-3", "something nasty")
	assert.ErrorIs(t, err, ai.EContentPolicy)
}

func TestTranscribeUploadsMultipart(t *testing.T) {
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "voice.ogg", header.Filename)

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("audio-bytes"), data)

		_, _ = w.Write([]byte(`{"text":"привет мир"}`))
	})

	text, err := p.Transcribe(context.Background(), "whisper-1", []byte("audio-bytes"), "voice.ogg")
	require.NoError(t, err)
	assert.Equal(t, "привет мир", text)
}

func TestErrorMapping(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, ai.EUnauthorized},
		{"rate limited", http.StatusTooManyRequests, ai.ERateLimit},
		{"unavailable", http.StatusServiceUnavailable, ai.EUnavailable},
		{"server error", http.StatusInternalServerError, ai.EUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			})

			_, err := p.Complete(context.Background(), "gpt-4o-mini", []ai.ChatMessage{{Role: "user", Text: "hi"}})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRetryOnTransientFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	t.Cleanup(srv.Close)

	p, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
			RequestTimeout: time.Second,
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	reply, err := p.Complete(context.Background(), "gpt-4o-mini", []ai.ChatMessage{{Role: "user", Text: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, 2, attempts)
}
