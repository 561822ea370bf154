// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jeranaias/portal-tui/internal/auth"
	"github.com/jeranaias/portal-tui/internal/config"
	"github.com/jeranaias/portal-tui/internal/logging"
	"github.com/jeranaias/portal-tui/internal/portal"
	"github.com/jeranaias/portal-tui/internal/session"
)

// =============================================================================
// SIGN IN
// =============================================================================

// signInOptions are the credential flags of status and keepalive.
type signInOptions struct {
	username string
	otp      string
}

func (o *signInOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.username, "username", "u", "", "username (prompted when empty)")
	cmd.Flags().StringVar(&o.otp, "otp", "", "one-time code for accounts with a second factor")
}

// oneShot is a signed-in client for a single command.
type oneShot struct {
	client  *portal.Client
	gateway *auth.Gateway
	state   auth.State
}

// signIn prompts for missing credentials and logs in. The password is
// read from PORTAL_PASSWORD when set, otherwise prompted.
func signIn(ctx context.Context, cfg *config.Config, o *signInOptions, in io.Reader, out io.Writer) (*oneShot, error) {
	p := newPrompter(in, out)
	defer p.Close()

	username := o.username
	if username == "" {
		var err error
		if username, err = p.Prompt("Username: "); err != nil {
			return nil, err
		}
	}
	password := os.Getenv("PORTAL_PASSWORD")
	if password == "" {
		var err error
		if password, err = p.PasswordPrompt("Password: "); err != nil {
			return nil, err
		}
	}
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	var gw *auth.Gateway
	client := portal.New(cfg.Backend.URL,
		portal.WithTimeout(cfg.BackendTimeout()),
		portal.WithTokenSource(func() string { return gw.Token() }),
	)
	gw = auth.NewGateway(client)

	st, err := gw.Login(ctx, username, password, o.otp)
	if err != nil {
		return nil, err
	}
	return &oneShot{client: client, gateway: gw, state: st}, nil
}

// close signs out. Failures are only logged; the command already has its
// answer.
func (s *oneShot) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.gateway.Logout(ctx); err != nil {
		logrus.WithError(err).Debug("sign out")
	}
}

// prepare loads config and routes logs to stderr.
func prepare(root *rootOptions) (*config.Config, func() error, error) {
	cfg, err := root.load()
	if err != nil {
		return nil, nil, err
	}
	cfg.Log.JSON = cfg.Log.JSON || root.jsonOutput
	closeLog, err := logging.Setup(logrus.StandardLogger(), cfg.Log, false)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}

// =============================================================================
// STATUS
// =============================================================================

// StatusResult is the status command's JSON payload.
type StatusResult struct {
	User                string `json:"user"`
	SessionID           string `json:"sessionId"`
	Active              bool   `json:"active"`
	ExpiresInSeconds    int    `json:"expiresInSeconds"`
	MaxInactiveInterval int    `json:"maxInactiveInterval"`
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	opts := &signInOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Sign in and print the server's session status",
		Long: `Sign in, ask the backend how long the new session has left, and sign
out again. Checking status never extends a session.

Examples:
  portal status -u analyst
  PORTAL_PASSWORD=analyst portal status -u analyst --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, root, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runStatus(cmd *cobra.Command, root *rootOptions, opts *signInOptions) error {
	cfg, closeLog, err := prepare(root)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	s, err := signIn(ctx, cfg, opts, cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return NewCommandError("status", "sign in", err)
	}
	defer s.close()

	st, err := s.client.Status(ctx)
	if err != nil {
		return NewCommandError("status", "query status", err)
	}

	result := StatusResult{
		User:                s.state.User.Username,
		SessionID:           s.state.SessionID,
		Active:              st.Active,
		ExpiresInSeconds:    st.ExpiresInSeconds,
		MaxInactiveInterval: st.MaxInactiveInterval,
	}
	out := cmd.OutOrStdout()
	if root.jsonOutput {
		return NewJSONResponse("status", result).Write(out)
	}

	fmt.Fprintln(out, TitleStyle.Render("Session status"))
	fmt.Fprintln(out, RenderField("User", s.state.User.DisplayName+" ("+result.User+")"))
	fmt.Fprintln(out, RenderField("Session ID", result.SessionID))
	if result.Active {
		fmt.Fprintln(out, RenderField("State", SuccessStyle.Render("active")))
		fmt.Fprintln(out, RenderField("Expires in", session.FormatDuration(time.Duration(result.ExpiresInSeconds)*time.Second)))
	} else {
		fmt.Fprintln(out, RenderField("State", WarningStyle.Render("inactive")))
	}
	fmt.Fprintln(out, RenderField("Timeout", strconv.Itoa(result.MaxInactiveInterval/60)+" min of inactivity"))
	return nil
}

// =============================================================================
// KEEPALIVE
// =============================================================================

// KeepAliveResult is the keepalive command's JSON payload.
type KeepAliveResult struct {
	User                string `json:"user"`
	SessionID           string `json:"sessionId"`
	Extended            bool   `json:"extended"`
	MaxInactiveInterval int    `json:"maxInactiveInterval,omitempty"`
}

func newKeepAliveCmd(root *rootOptions) *cobra.Command {
	opts := &signInOptions{}
	cmd := &cobra.Command{
		Use:   "keepalive",
		Short: "Sign in and extend the session once",
		Long: `Sign in, send one keepalive, and print the acknowledgment. Useful to
check that a backend accepts keepalives and reports its timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeepAlive(cmd, root, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runKeepAlive(cmd *cobra.Command, root *rootOptions, opts *signInOptions) error {
	cfg, closeLog, err := prepare(root)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	s, err := signIn(ctx, cfg, opts, cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return NewCommandError("keepalive", "sign in", err)
	}
	defer s.close()

	resp, err := s.client.KeepAlive(ctx)
	if err != nil {
		return NewCommandError("keepalive", "extend session", err)
	}

	result := KeepAliveResult{
		User:      s.state.User.Username,
		SessionID: s.state.SessionID,
		Extended:  resp.Extended,
	}
	if resp.MaxInactiveInterval != nil {
		result.MaxInactiveInterval = *resp.MaxInactiveInterval
	}
	out := cmd.OutOrStdout()
	if root.jsonOutput {
		return NewJSONResponse("keepalive", result).Write(out)
	}

	fmt.Fprintln(out, TitleStyle.Render("Keepalive"))
	fmt.Fprintln(out, RenderField("Session ID", result.SessionID))
	if result.Extended {
		fmt.Fprintln(out, RenderField("Extended", SuccessStyle.Render("yes")))
	} else {
		fmt.Fprintln(out, RenderField("Extended", WarningStyle.Render("no")))
	}
	if result.MaxInactiveInterval > 0 {
		fmt.Fprintln(out, RenderField("Timeout", strconv.Itoa(result.MaxInactiveInterval/60)+" min of inactivity"))
	} else {
		fmt.Fprintln(out, RenderField("Timeout", DimStyle.Render("not reported")))
	}
	return nil
}
