// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures logrus for the CLI and the TUI.
//
// The TUI owns the terminal, so in TUI mode log output goes to the file
// named by [log] path instead of stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/portal-tui/internal/config"
)

// Setup applies cfg to logger. When toFile is set, output is appended to
// cfg.Path; the returned close function releases the file and is never nil.
func Setup(logger *logrus.Logger, cfg config.LogConfig, toFile bool) (func() error, error) {
	noop := func() error { return nil }

	if err := SetLevel(logger, cfg.Level); err != nil {
		return noop, err
	}

	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   toFile,
		})
	}

	if !toFile {
		logger.SetOutput(os.Stderr)
		return noop, nil
	}

	if cfg.Path == "" {
		logger.SetOutput(io.Discard)
		return noop, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0700); err != nil {
		return noop, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return noop, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)

	return func() error {
		logger.SetOutput(io.Discard)
		return f.Close()
	}, nil
}

// SetLevel parses and applies a level name. An empty name means info.
func SetLevel(logger *logrus.Logger, level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(lvl)
	return nil
}
