package logger

import (
	"log/slog"
	"os"
	"path/filepath"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// SetupLogger builds the process logger for the given environment.
// local logs human-readable text to stdout, everything else logs JSON
// to a file under logPath (falling back to stdout if it cannot be opened).
func SetupLogger(env, logPath string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(fileHandler(logPath, slog.LevelDebug))
	default:
		return slog.New(fileHandler(logPath, slog.LevelInfo))
	}
}

func fileHandler(logPath string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	file, err := os.OpenFile(filepath.Join(logPath, "solvextra.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(file, opts)
}
