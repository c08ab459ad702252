package logger

import (
	"log/slog"
	"os"
)

// New returns a structured text logger on stdout. STEAMGATE_LOG_LEVEL=debug
// enables debug output.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("STEAMGATE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
