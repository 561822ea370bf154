// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/portal-tui/internal/config"
	"github.com/jeranaias/portal-tui/internal/portal"
	"github.com/jeranaias/portal-tui/internal/server"
	"github.com/jeranaias/portal-tui/internal/session"
	"github.com/jeranaias/portal-tui/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

// testEnv isolates HOME and writes a config file into a temp dir.
type testEnv struct {
	dir  string
	path string
	cfg  *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, key := range []string{"PORTAL_BACKEND_URL", "PORTAL_LOG_LEVEL", "PORTAL_PASSWORD", "PORTAL_JOURNAL"} {
		t.Setenv(key, "")
	}

	cfg := config.Default()
	cfg.Log.Path = filepath.Join(dir, "portal.log")
	cfg.Journal.Path = filepath.Join(dir, "journal.db")
	return &testEnv{dir: dir, path: filepath.Join(dir, "config.toml"), cfg: cfg}
}

func (e *testEnv) save(t *testing.T) {
	t.Helper()
	require.NoError(t, config.SaveTOML(e.cfg, e.path))
}

// execute runs the command tree with args and returns stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// startBackend runs the development backend over httptest.
func startBackend(t *testing.T) (*server.Server, string) {
	t.Helper()
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	srv, err := server.New(server.Options{Logger: quiet})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts.URL + "/api"
}

func decodeResponse(t *testing.T, out string, data interface{}) JSONResponse {
	t.Helper()
	resp := JSONResponse{Data: data}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

// =============================================================================
// CONVERSION
// =============================================================================

func TestSessionConfig(t *testing.T) {
	got := sessionConfig(config.SessionConfig{
		TimeoutMinutes:        15,
		WarningThresholdSecs:  120,
		KeepAliveIntervalSecs: 60,
		KeepAliveRecencySecs:  90,
		ActivityDebounceSecs:  5,
	})

	assert.Equal(t, session.Config{
		TimeoutMinutes:    15,
		WarningThreshold:  2 * time.Minute,
		CountdownInterval: time.Second,
		KeepAliveInterval: time.Minute,
		KeepAliveRecency:  90 * time.Second,
		ActivityDebounce:  5 * time.Second,
	}, got)
}

func TestSessionConfig_DefaultsMatch(t *testing.T) {
	assert.Equal(t, session.DefaultConfig(), sessionConfig(config.Default().Session))
}

// =============================================================================
// VERSION
// =============================================================================

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "portal "+Version)
	assert.Contains(t, out, "Go version:")
}

func TestVersion_JSON(t *testing.T) {
	out, _, err := execute(t, "", "version", "--json")
	require.NoError(t, err)

	var info VersionInfo
	resp := decodeResponse(t, out, &info)
	assert.True(t, resp.Success)
	assert.Equal(t, "version", resp.Command)
	assert.Equal(t, Version, info.Version)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigInit(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := execute(t, "", "config", "init", "--config", env.path)
	require.NoError(t, err)
	assert.Contains(t, out, env.path)

	cfg, err := config.LoadFromPath(env.path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Session.TimeoutMinutes)

	_, _, err = execute(t, "", "config", "init", "--config", env.path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = execute(t, "", "config", "init", "--config", env.path, "--force")
	require.NoError(t, err)
}

func TestConfigPath(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := execute(t, "", "config", "path", "--config", env.path)
	require.NoError(t, err)
	assert.Equal(t, env.path, strings.TrimSpace(out))

	out, _, err = execute(t, "", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(env.dir, ".portal", "config.toml"), strings.TrimSpace(out))
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	env := newTestEnv(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)
	env.cfg.Server.JWTSecret = "super-secret-signing-key"
	env.cfg.Server.Users = []config.UserConfig{{
		Username:     "analyst",
		PasswordHash: string(hash),
	}}
	env.save(t)

	out, _, err := execute(t, "", "config", "show", "--config", env.path)
	require.NoError(t, err)
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "super-secret-signing-key")
	assert.NotContains(t, out, string(hash))
}

func TestConfigShow_FlagOverrides(t *testing.T) {
	env := newTestEnv(t)
	env.save(t)

	out, _, err := execute(t, "", "config", "show", "--config", env.path, "--json",
		"--backend", "https://portal.example.com/api", "--log-level", "debug")
	require.NoError(t, err)

	var cfg config.Config
	decodeResponse(t, out, &cfg)
	assert.Equal(t, "https://portal.example.com/api", cfg.Backend.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestConfigShow_InvalidFlag(t *testing.T) {
	env := newTestEnv(t)
	env.save(t)

	_, _, err := execute(t, "", "config", "show", "--config", env.path, "--log-level", "loud")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
}

func TestConfigHash(t *testing.T) {
	out, _, err := execute(t, "s3cret pass\n", "config", "hash", "--cost", fmt.Sprint(bcrypt.MinCost))
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret pass")))
}

func TestConfigHash_Empty(t *testing.T) {
	_, _, err := execute(t, "\n", "config", "hash")
	require.Error(t, err)
}

// =============================================================================
// STATUS / KEEPALIVE
// =============================================================================

func TestStatus_JSON(t *testing.T) {
	env := newTestEnv(t)
	srv, url := startBackend(t)
	env.cfg.Backend.URL = url
	env.save(t)

	out, _, err := execute(t, "analyst\n", "status", "--config", env.path, "-u", "analyst", "--json")
	require.NoError(t, err)

	var result StatusResult
	resp := decodeResponse(t, out, &result)
	assert.True(t, resp.Success)
	assert.Equal(t, "analyst", result.User)
	assert.NotEmpty(t, result.SessionID)
	assert.True(t, result.Active)
	assert.Equal(t, 1800, result.MaxInactiveInterval)
	assert.InDelta(t, 1800, result.ExpiresInSeconds, 5)

	// The command signs out when done.
	assert.Equal(t, 0, srv.Sessions().Len())
}

func TestStatus_PromptsForUsername(t *testing.T) {
	env := newTestEnv(t)
	_, url := startBackend(t)
	env.save(t)

	out, stderr, err := execute(t, "admin\nadmin\n", "status", "--config", env.path, "--backend", url)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Username: ")
	assert.Contains(t, stderr, "Password: ")
	assert.Contains(t, out, "Sarah Brunner (admin)")
	assert.Contains(t, out, "active")
}

func TestStatus_PasswordFromEnv(t *testing.T) {
	env := newTestEnv(t)
	_, url := startBackend(t)
	env.cfg.Backend.URL = url
	env.save(t)
	t.Setenv("PORTAL_PASSWORD", "analyst")

	_, _, err := execute(t, "", "status", "--config", env.path, "-u", "analyst")
	require.NoError(t, err)
}

func TestStatus_BadPassword(t *testing.T) {
	env := newTestEnv(t)
	_, url := startBackend(t)
	env.cfg.Backend.URL = url
	env.save(t)

	_, _, err := execute(t, "wrong\n", "status", "--config", env.path, "-u", "analyst")
	require.Error(t, err)
	assert.ErrorIs(t, err, portal.ErrUnauthorized)
	assert.Equal(t, ExitAuthError, GetExitCode(err))
}

func TestStatus_AbortedPrompt(t *testing.T) {
	env := newTestEnv(t)
	env.save(t)

	_, _, err := execute(t, "", "status", "--config", env.path)
	assert.ErrorIs(t, err, ErrAborted)
}

func TestKeepAlive_JSON(t *testing.T) {
	env := newTestEnv(t)
	srv, url := startBackend(t)
	env.cfg.Backend.URL = url
	env.save(t)

	out, _, err := execute(t, "analyst\n", "keepalive", "--config", env.path, "-u", "analyst", "--json")
	require.NoError(t, err)

	var result KeepAliveResult
	resp := decodeResponse(t, out, &result)
	assert.True(t, resp.Success)
	assert.True(t, result.Extended)
	assert.Equal(t, 1800, result.MaxInactiveInterval)
	assert.Equal(t, 0, srv.Sessions().Len())
}

// =============================================================================
// JOURNAL
// =============================================================================

func TestJournal(t *testing.T) {
	env := newTestEnv(t)
	env.save(t)

	journal, err := storage.OpenJournal(env.cfg.Journal.Path)
	require.NoError(t, err)
	now := time.Now()
	journal.Record(session.Event{Kind: session.EventStarted, At: now.Add(-2 * time.Minute), RemainingSeconds: 1800, TimeoutMinutes: 30})
	journal.Record(session.Event{Kind: session.EventExpired, At: now.Add(-time.Minute), TimeoutMinutes: 30})
	require.NoError(t, journal.Close())

	out, _, err := execute(t, "", "journal", "--config", env.path)
	require.NoError(t, err)
	assert.Contains(t, out, "started")
	assert.Contains(t, out, "expired")

	out, _, err = execute(t, "", "journal", "--config", env.path, "--json", "-n", "1")
	require.NoError(t, err)
	var entries []storage.Entry
	resp := decodeResponse(t, out, &entries)
	assert.True(t, resp.Success)
	require.Len(t, entries, 1)
	assert.Equal(t, session.EventExpired, entries[0].Kind)
}

func TestJournal_Empty(t *testing.T) {
	env := newTestEnv(t)
	env.save(t)

	out, _, err := execute(t, "", "journal", "--config", env.path)
	require.NoError(t, err)
	assert.Contains(t, out, "No session events recorded.")
}

func TestJournal_Disabled(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Journal.Enabled = false
	env.save(t)

	_, _, err := execute(t, "", "journal", "--config", env.path)
	require.Error(t, err)
}

// =============================================================================
// ROOT
// =============================================================================

func TestRoot_NeedsTerminal(t *testing.T) {
	if IsTTY() && IsStdoutTTY() {
		t.Skip("running on a terminal")
	}
	_, _, err := execute(t, "")
	assert.ErrorIs(t, err, errNoTerminal)
}

func TestRoot_RejectsArgs(t *testing.T) {
	_, _, err := execute(t, "", "bogus")
	require.Error(t, err)
}

// =============================================================================
// EXIT CODES / PROMPTS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"unauthorized", fmt.Errorf("login: %w", portal.ErrUnauthorized), ExitAuthError},
		{"rate limited", portal.ErrRateLimited, ExitAuthError},
		{"forbidden", &portal.StatusError{Code: 403}, ExitAuthError},
		{"server error", &portal.StatusError{Code: 500}, ExitGeneralError},
		{"timeout", NewCommandError("status", "query", context.DeadlineExceeded), ExitTimeoutError},
		{"config", config.ValidationErrors{{Field: "log.level", Message: "bad"}}, ExitConfigError},
		{"other", os.ErrClosed, ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestLinePrompter(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader("  analyst  \r\n pass word \n"), &out)
	defer p.Close()

	user, err := p.Prompt("Username: ")
	require.NoError(t, err)
	assert.Equal(t, "analyst", user)

	pw, err := p.PasswordPrompt("Password: ")
	require.NoError(t, err)
	assert.Equal(t, " pass word ", pw)

	_, err = p.Prompt("More: ")
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, "Username: Password: More: ", out.String())
}
