package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	Level string
	// "text" selects the human-readable handler; anything else is JSON.
	Format string
	Writer io.Writer
}

// New builds a service-scoped logger. Every entry carries the service name.
func New(service string, options Options) *slog.Logger {
	w := options.Writer
	if w == nil {
		w = os.Stdout
	}
	handlerOptions := &slog.HandlerOptions{Level: parseLevel(options.Level)}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(options.Format), "text") {
		handler = slog.NewTextHandler(w, handlerOptions)
	} else {
		handler = slog.NewJSONHandler(w, handlerOptions)
	}
	return slog.New(handler).With("service", service)
}

func NewJSONLogger(service, level string) *slog.Logger {
	return New(service, Options{Level: level})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
