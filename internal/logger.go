package internal

import (
	"io"
	"log/slog"
)

// NewLogger builds the process-wide logger the bot and ops server share.
// Development logs human-readable text; any other environment logs JSON for
// ingestion. The level accepts anything slog understands ("debug", "INFO",
// "warn+2"); unparseable values fall back to info.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	if env == "development" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
