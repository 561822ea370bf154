// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jeranaias/portal-tui/internal/auth"
	"github.com/jeranaias/portal-tui/internal/config"
	"github.com/jeranaias/portal-tui/internal/logging"
	"github.com/jeranaias/portal-tui/internal/portal"
	"github.com/jeranaias/portal-tui/internal/session"
	"github.com/jeranaias/portal-tui/internal/storage"
	"github.com/jeranaias/portal-tui/internal/telemetry"
	"github.com/jeranaias/portal-tui/internal/ui/app"
	"github.com/jeranaias/portal-tui/internal/ui/styles"
)

type tuiOptions struct {
	metricsAddr string
}

// errNoTerminal is returned when the client is started without a TTY.
var errNoTerminal = errors.New("portal needs an interactive terminal; use 'portal status' from scripts")

// runTUI runs the terminal client until the user quits.
func runTUI(cmd *cobra.Command, opts *rootOptions, tui *tuiOptions) error {
	if !IsTTY() || !IsStdoutTTY() {
		return errNoTerminal
	}

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	path, err := opts.path()
	if err != nil {
		return err
	}

	// The alt screen owns stdout, so logs always go to the file.
	logger := logrus.StandardLogger()
	closeLog, err := logging.Setup(logger, cfg.Log, true)
	if err != nil {
		return NewCommandError("portal", "open log", err)
	}
	defer closeLog()

	reg := prometheus.NewRegistry()
	recorders := []session.Recorder{telemetry.NewSessionMetrics(reg)}
	if cfg.Journal.Enabled {
		journal, err := storage.OpenJournal(cfg.Journal.Path)
		if err != nil {
			logger.WithError(err).Warn("session journal disabled")
		} else {
			defer journal.Close()
			recorders = append(recorders, journal)
		}
	}

	var gw *auth.Gateway
	client := portal.New(cfg.Backend.URL,
		portal.WithTimeout(cfg.BackendTimeout()),
		portal.WithTokenSource(func() string { return gw.Token() }),
	)
	gw = auth.NewGateway(client)

	activity := session.NewListeners()
	ctrl := session.NewController(sessionConfig(cfg.Session), client, gw,
		session.WithRecorder(session.Recorders(recorders...)),
		session.WithActivitySource(activity),
	)

	model := app.New(app.Deps{
		Controller: ctrl,
		Gateway:    gw,
		Activity:   activity,
		Status:     client,
		Theme:      styles.NewTheme(cfg.UI.Theme),
		Logger:     logger,
		Backend:    client.BaseURL(),
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if cfg.UI.Mouse {
		progOpts = append(progOpts, tea.WithMouseAllMotion())
	}
	p := tea.NewProgram(model, progOpts...)

	ctrl.SetSender(p.Send)
	unsubscribe := gw.Subscribe(func(st auth.State) {
		p.Send(app.AuthChangedMsg{State: st})
	})

	watcher, err := config.Watch(path, func(c *config.Config, err error) {
		p.Send(app.ConfigReloadedMsg{Config: c, Err: err})
	})
	if err != nil {
		logger.WithError(err).Warn("config reload disabled")
	} else {
		defer watcher.Close()
	}

	addr := tui.metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Listen
	}
	if addr != "" {
		go func() {
			if err := telemetry.Serve(ctx, addr, reg); err != nil {
				logger.WithError(err).Warn("metrics endpoint stopped")
			}
		}()
	}

	logger.WithField("backend", client.BaseURL()).Info("portal started")
	_, err = p.Run()

	// The program loop has exited; nothing else touches the controller.
	ctrl.Stop()
	unsubscribe()
	if gw.IsLoggedIn() {
		logoutCtx, logoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := gw.Logout(logoutCtx); err != nil {
			logger.WithError(err).Warn("sign out on exit")
		}
		logoutCancel()
	}

	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
