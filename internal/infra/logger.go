package infra

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a new slog.Logger with log rotation support
func NewLogger(cfg *Config) *slog.Logger {
	logDir := cfg.Logging.Dir
	if logDir == "" {
		logDir = "logs"
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Logging.Level)}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		// Fallback to stderr if directory creation fails
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	// Setup lumberjack logger for file rotation
	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "app.log"),
		MaxSize:    10, // Megabytes
		MaxBackups: 3,
		MaxAge:     28, // Days
		Compress:   true,
	}

	// Multi-writer: Log to both file and stdout
	writer := io.MultiWriter(os.Stdout, fileLogger)

	return slog.New(slog.NewJSONHandler(writer, opts)).With(
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
	)
}

// ParseLevel maps a config string to a slog level. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
