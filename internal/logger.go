package internal

import "log/slog"

// NopLogger returns a logger that discards every record.
func NopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
