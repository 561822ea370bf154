// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/portal-tui/internal/config"
	"github.com/jeranaias/portal-tui/internal/session"
)

// =============================================================================
// ROOT COMMAND
// =============================================================================

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	backend    string
	jsonOutput bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	tui := &tuiOptions{}

	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Research portal terminal client",
		Long: `portal is a terminal client for the research portal.

Sign in, keep working, and the session stays alive. After a period of
inactivity the client warns five minutes before expiry and then signs
you out.

Configuration is read from ~/.portal/config.toml. PORTAL_* environment
variables override file values; flags override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, opts, tui)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default: ~/.portal/config.toml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.backend, "backend", "", "portal API base URL")
	pf.BoolVar(&opts.jsonOutput, "json", false, "print machine-readable JSON")

	cmd.Flags().StringVar(&tui.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	cmd.AddCommand(
		newServeCmd(opts),
		newStatusCmd(opts),
		newKeepAliveCmd(opts),
		newJournalCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(opts),
	)
	return cmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error:")+" "+err.Error())
		return GetExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// CONFIG LOADING
// =============================================================================

// path returns the config file in effect.
func (o *rootOptions) path() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.ConfigPath()
}

// load reads the config file and applies flag overrides.
func (o *rootOptions) load() (*config.Config, error) {
	path, err := o.path()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}

	if o.logLevel == "" && o.backend == "" {
		return cfg, nil
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.backend != "" {
		cfg.Backend.URL = o.backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// sessionConfig converts the [session] section.
func sessionConfig(c config.SessionConfig) session.Config {
	secs := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return session.Config{
		TimeoutMinutes:    c.TimeoutMinutes,
		WarningThreshold:  secs(c.WarningThresholdSecs),
		CountdownInterval: session.CountdownInterval,
		KeepAliveInterval: secs(c.KeepAliveIntervalSecs),
		KeepAliveRecency:  secs(c.KeepAliveRecencySecs),
		ActivityDebounce:  secs(c.ActivityDebounceSecs),
	}
}
