// Package logger provides event-style structured logging for the API.
// Events are short snake_case names; details travel in the fields map.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Init installs the slog default handler. Level comes from LOG_LEVEL
// (debug, info, warn, error; default info).
func Init() {
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      levelFromEnv(),
			TimeFormat: time.Kitchen,
		}),
	))
}

func Info(event string, fields map[string]interface{}) {
	slog.Info(event, attrs(fields)...)
}

func InfoWithUser(userID, event string, fields map[string]interface{}) {
	slog.Info(event, append(attrs(fields), slog.String("user_id", userID))...)
}

func Warn(event string, fields map[string]interface{}) {
	slog.Warn(event, attrs(fields)...)
}

func Error(event string, err error, fields map[string]interface{}) {
	args := attrs(fields)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	slog.Error(event, args...)
}

func attrs(fields map[string]interface{}) []any {
	args := make([]any, 0, len(fields))
	for key, value := range fields {
		args = append(args, slog.Any(key, value))
	}
	return args
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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
