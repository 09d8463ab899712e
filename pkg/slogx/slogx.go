package slogx

import (
	"log/slog"
	"os"
	"strings"
)

// Config controls the process-wide logger. The zero value yields a JSON
// logger at info level, which is what production deployments run with.
type Config struct {
	Service string // defaults to "mfagate"
	Version string
	Env     string // "dev" enables source locations
	Level   string // "debug", "info", "warn", "error"
	Format  string // "json" (default) or "text"
}

// New builds the process logger, installs it as the slog default and returns
// it. Every record carries the service identity attributes so aggregated logs
// stay attributable when several services share a sink.
func New(cfg Config) *slog.Logger {
	if cfg.Service == "" {
		cfg.Service = "mfagate"
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.Env == "dev",
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(
		slog.String("service", cfg.Service),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	)

	slog.SetDefault(logger)
	return logger
}

// parseLevel is forgiving: an unrecognized value falls back to info rather
// than failing startup over a typo in an env var.
func parseLevel(lvl string) slog.Level {
	if strings.EqualFold(lvl, "warning") {
		return slog.LevelWarn
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(lvl)); err != nil {
		return slog.LevelInfo
	}
	return level
}
