// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging configures the process-wide structured logger. Stages log
// diagnostics through L(); per-file status lines still go to the io.Writer
// handed to each batch function.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// Config holds logging configuration.
type Config struct {
	// Level is one of debug, info, warn, error (default info).
	Level string

	// TimeFormat is the timestamp layout (default "15:04:05").
	TimeFormat string

	// Output receives log lines (default os.Stderr).
	Output io.Writer
}

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, "15:04:05", log.InfoLevel)
)

func newLogger(w io.Writer, timeFormat string, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
	})
	l.SetLevel(level)
	return l
}

// New builds a logger from cfg without touching the global one.
func New(cfg Config) (*log.Logger, error) {
	level := log.InfoLevel
	if cfg.Level != "" {
		lvl, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
		}
		level = lvl
	}
	w := cfg.Output
	if w == nil {
		w = os.Stderr
	}
	tf := cfg.TimeFormat
	if tf == "" {
		tf = "15:04:05"
	}
	return newLogger(w, tf, level), nil
}

// Init replaces the global logger.
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set installs l as the global logger.
func Set(l *log.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// L returns the global logger.
func L() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
