// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jeranaias/portal-tui/internal/logging"
	"github.com/jeranaias/portal-tui/internal/server"
)

type serveOptions struct {
	listen  string
	timeout int
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development backend",
		Long: `Run the development portal backend.

The backend serves the login, logout, keepalive and status endpoints under
/api, plus /healthz and /metrics. Accounts come from [[server.users]] in
the config file; without any, the demo accounts analyst/analyst and
admin/admin are created.

Examples:
  portal serve
  portal serve --listen 127.0.0.1:9090 --session-timeout 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.listen, "listen", "", "listen address (default from config)")
	cmd.Flags().IntVar(&opts.timeout, "session-timeout", 0, "session inactivity timeout in minutes")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	cfg, err := root.load()
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.Server.Listen = opts.listen
	}
	if opts.timeout > 0 {
		cfg.Server.SessionTimeoutMinutes = opts.timeout
	}

	logger := logrus.StandardLogger()
	closeLog, err := logging.Setup(logger, cfg.Log, false)
	if err != nil {
		return NewCommandError("serve", "configure logging", err)
	}
	defer closeLog()

	srvOpts, err := server.OptionsFromConfig(cfg.Server)
	if err != nil {
		return NewCommandError("serve", "load users", err)
	}
	srvOpts.Logger = logger

	srv, err := server.New(srvOpts)
	if err != nil {
		return NewCommandError("serve", "create server", err)
	}
	if len(cfg.Server.Users) == 0 {
		logger.Warn("no users configured, demo accounts analyst/analyst and admin/admin are enabled")
	}
	return srv.ListenAndServe(cmd.Context())
}
