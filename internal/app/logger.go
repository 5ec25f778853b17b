package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger. Production runs JSON at info
// level; development runs the text handler with debug enabled so the
// intake pipeline's per-line tracing is visible.
func NewLogger(cfg *Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg == nil || !cfg.IsProduction() {
		level = slog.LevelDebug
	}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler).With(slog.String("service", "blankstock"))
}
