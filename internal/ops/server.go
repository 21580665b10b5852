package ops

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the operational HTTP surface: a health check and the
// Prometheus metrics endpoint. It runs alongside the bot poller and is
// the only HTTP listener in the process.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

type Config struct {
	Port int

	// If both are empty, /metrics is served without authentication.
	MetricsUsername string
	MetricsPassword string
}

func NewServer(cfg Config, logger *slog.Logger) *Server {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	auth := newBasicAuth(cfg.MetricsUsername, cfg.MetricsPassword)
	r.Method(http.MethodGet, "/metrics", auth.wrap(promhttp.Handler()))

	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the configured router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("ops server started", "address", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// basicAuth guards the metrics endpoint with HTTP basic authentication.
// Credentials are compared in constant time.
type basicAuth struct {
	username string
	password string
	enabled  bool
}

func newBasicAuth(username, password string) *basicAuth {
	return &basicAuth{
		username: username,
		password: password,
		enabled:  username != "" || password != "",
	}
}

func (a *basicAuth) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			a.unauthorized(w)
			return
		}

		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(a.username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(a.password)) == 1

		if !userMatch || !passMatch {
			a.unauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *basicAuth) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
