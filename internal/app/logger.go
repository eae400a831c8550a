package app

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"zibana/internal/config"
)

// NewLogger returns a JSON logger tagged with the service and host names.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				return slog.String("timestamp", a.Value.Time().Format(time.RFC3339))
			case slog.MessageKey:
				return slog.String("message", a.Value.String())
			}
			return a
		},
	})

	logger := slog.New(handler)
	host, err := os.Hostname()
	if err != nil {
		logger.Warn("cannot resolve host name", "error", err)
		host = "unknown"
	}
	return logger.With("service", cfg.Service, "host", host)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
