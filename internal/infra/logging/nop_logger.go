package logging

import (
	"io"
	"log/slog"
)

// NewNopLogger returns a logger that discards everything; tests pass it to
// constructors.
func NewNopLogger() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
