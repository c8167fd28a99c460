package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the service logger. JSON output in deployed
// environments, text for local runs; every record carries the service name
// so the HTTP process and the worker are distinguishable in shared sinks.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "nimbus"))
}
