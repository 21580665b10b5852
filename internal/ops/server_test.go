package ops

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestServer(username, password string) *Server {
	return NewServer(Config{
		Port:            0,
		MetricsUsername: username,
		MetricsPassword: password,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer("", "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestMetricsRequiresCredentials(t *testing.T) {
	s := newTestServer("admin", "secret123")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="metrics"`, rec.Header().Get("WWW-Authenticate"))
}

func TestMetricsRejectsWrongPassword(t *testing.T) {
	s := newTestServer("admin", "secret123")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("admin", "wrongpassword")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsAllowsValidCredentials(t *testing.T) {
	s := newTestServer("admin", "secret123")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("admin", "secret123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsOpenWhenAuthDisabled(t *testing.T) {
	s := newTestServer("", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
