// Package logging configures the global zerolog logger for crossbar.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/five82/crossbar/internal/config"
)

// Mode selects where log output goes.
type Mode int

const (
	// Console writes human-readable lines to stderr.
	Console Mode = iota
	// File writes JSON lines to the configured log file. Used while the TUI
	// owns the terminal.
	File
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup points the global logger at the sink chosen by mode and applies the
// configured level. The returned closer releases the log file, if any.
func Setup(cfg config.LogConfig, mode Mode) (io.Closer, error) {
	level := ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if mode == Console {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		return nopCloser{}, nil
	}

	path := strings.TrimSpace(cfg.File)
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.Logger = zerolog.New(file).With().Timestamp().Logger()
	return file, nil
}

// ParseLevel maps a config string to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	level, err := zerolog.ParseLevel(trimmed)
	if err != nil || trimmed == "" {
		return zerolog.InfoLevel
	}
	return level
}
