package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger writing to stdout. Level defaults to
// info when the string is unrecognized.
func New(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
