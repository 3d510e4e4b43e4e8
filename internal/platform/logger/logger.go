package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. JSON to stdout; handlers and
// services add their own attributes.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
