// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON logger writing to w (stdout when nil) together with the
// level variable controlling it, so the level can be changed later.
func New(level string, w io.Writer) (*slog.Logger, *slog.LevelVar) {
	if w == nil {
		w = os.Stdout
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(ParseLevel(level))
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar})), levelVar
}

// ParseLevel maps debug, warn and error to their slog levels; anything else
// is info.
func ParseLevel(level string) slog.Level {
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
