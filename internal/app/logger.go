package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a configured slog.Logger based on configuration.
func NewLogger(cfg *Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, Level: slog.LevelInfo}
	if cfg != nil {
		opts.Level = parseLevel(cfg.LogLevel)
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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

// NewCLILogger logs to stderr so command output on stdout stays parseable.
// Below warn level is only shown when LOG_LEVEL asks for it explicitly.
func NewCLILogger(cfg *Config) *slog.Logger {
	cliCfg := Config{LogFormat: "pretty", LogLevel: "warn"}
	if cfg != nil {
		cliCfg.LogFormat = cfg.LogFormat
		if level := strings.ToLower(cfg.LogLevel); level == "debug" || level == "error" {
			cliCfg.LogLevel = level
		}
	}
	return newLogger(os.Stderr, &cliCfg)
}
