package log

import (
	"io"
	"log/slog"
	"os"
)

const debugEnv = "GITPLUGIN_DEBUG"

var logLevel slog.Level = slog.LevelError

func SetLogLevel(level slog.Level) {
	slog.SetLogLoggerLevel(level)
}

// levelFromEnv maps the GITPLUGIN_DEBUG value to a slog level.
// Unknown or empty values keep the error level.
func levelFromEnv(value string) slog.Level {
	switch value {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func NewLogger() *slog.Logger {
	return NewLoggerWithWriter(os.Stderr)
}

// NewLoggerWithWriter builds the JSON logger on an arbitrary writer, which
// lets tests capture records.
func NewLoggerWithWriter(w io.Writer) *slog.Logger {
	logLevel = levelFromEnv(os.Getenv(debugEnv))
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}
