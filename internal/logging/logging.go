// Package logging builds the structured slog logger used by the commands.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	DEBUG = "DEBUG"
	INFO  = "INFO"
	WARN  = "WARN"
	ERROR = "ERROR"
)

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case DEBUG:
		return slog.LevelDebug
	case WARN, "WARNING":
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to dest (stderr when nil) in the given format,
// "json" or "text".
func New(level, format string, dest io.Writer) *slog.Logger {
	if dest == nil {
		dest = os.Stderr
	}

	options := &slog.HandlerOptions{
		AddSource: false,
		Level:     ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(dest, options)
	} else {
		handler = slog.NewTextHandler(dest, options)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
