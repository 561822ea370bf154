// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/base32"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/portal-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the root configuration.
type Config struct {
	Version string        `toml:"version" json:"version"`
	Backend BackendConfig `toml:"backend" json:"backend"`
	Session SessionConfig `toml:"session" json:"session"`
	Log     LogConfig     `toml:"log" json:"log"`
	Journal JournalConfig `toml:"journal" json:"journal"`
	Metrics MetricsConfig `toml:"metrics" json:"metrics"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Server  ServerConfig  `toml:"server" json:"server"`
}

// BackendConfig points the client at the portal API.
type BackendConfig struct {
	URL         string `toml:"url" json:"url"`
	TimeoutSecs int    `toml:"timeout_secs" json:"timeout_secs"`
}

// SessionConfig holds the inactivity timing. The backend may still lower
// or raise the timeout through its keepalive responses.
type SessionConfig struct {
	TimeoutMinutes        int `toml:"timeout_minutes" json:"timeout_minutes"`
	WarningThresholdSecs  int `toml:"warning_threshold_secs" json:"warning_threshold_secs"`
	KeepAliveIntervalSecs int `toml:"keepalive_interval_secs" json:"keepalive_interval_secs"`
	KeepAliveRecencySecs  int `toml:"keepalive_recency_secs" json:"keepalive_recency_secs"`
	ActivityDebounceSecs  int `toml:"activity_debounce_secs" json:"activity_debounce_secs"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level string `toml:"level" json:"level"`
	Path  string `toml:"path" json:"path"`
	JSON  bool   `toml:"json" json:"json"`
}

// JournalConfig controls the sqlite session event journal.
type JournalConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled"`
	Path    string `toml:"path" json:"path"`
}

// MetricsConfig controls the Prometheus endpoint. Empty Listen disables it.
type MetricsConfig struct {
	Listen string `toml:"listen" json:"listen"`
}

// UIConfig holds display preferences.
type UIConfig struct {
	Theme string `toml:"theme" json:"theme"`
	Mouse bool   `toml:"mouse" json:"mouse"`
}

// ServerConfig configures the development backend.
type ServerConfig struct {
	Listen                string       `toml:"listen" json:"listen"`
	SessionTimeoutMinutes int          `toml:"session_timeout_minutes" json:"session_timeout_minutes"`
	JWTSecret             string       `toml:"jwt_secret" json:"jwt_secret"`
	TokenTTLHours         int          `toml:"token_ttl_hours" json:"token_ttl_hours"`
	LoginRatePerMinute    int          `toml:"login_rate_per_minute" json:"login_rate_per_minute"`
	LoginBurst            int          `toml:"login_burst" json:"login_burst"`
	Users                 []UserConfig `toml:"users" json:"users"`
}

// UserConfig is a development backend account.
type UserConfig struct {
	Username     string `toml:"username" json:"username"`
	DisplayName  string `toml:"display_name" json:"display_name"`
	Role         string `toml:"role" json:"role"`
	Department   string `toml:"department" json:"department"`
	PasswordHash string `toml:"password_hash" json:"password_hash"`
	TOTPSecret   string `toml:"totp_secret,omitempty" json:"totp_secret,omitempty"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with default values. Paths are left empty and
// resolved under ConfigDir by SetDefaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Backend: BackendConfig{
			URL:         "http://127.0.0.1:8080/api",
			TimeoutSecs: 15,
		},
		Session: SessionConfig{
			TimeoutMinutes:        30,
			WarningThresholdSecs:  300,
			KeepAliveIntervalSecs: 300,
			KeepAliveRecencySecs:  300,
			ActivityDebounceSecs:  10,
		},
		Log: LogConfig{
			Level: "info",
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		UI: UIConfig{
			Theme: "auto",
			Mouse: true,
		},
		Server: ServerConfig{
			Listen:                "127.0.0.1:8080",
			SessionTimeoutMinutes: 30,
			TokenTTLHours:         12,
			LoginRatePerMinute:    10,
			LoginBurst:            5,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the portal configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".portal"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens config files to 0600; they may hold a
// signing secret and password hashes.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads ~/.portal/config.toml, falling back to defaults when it does
// not exist. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from path. A missing file yields the
// defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := ensureSecurePermissions(path); err != nil {
			logrus.WithError(err).WithField("path", path).Warn("could not ensure secure config permissions")
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode TOML file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.SetDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero values and resolves file paths.
func (c *Config) SetDefaults() error {
	d := Default()
	if c.Backend.URL == "" {
		c.Backend.URL = d.Backend.URL
	}
	if c.Backend.TimeoutSecs == 0 {
		c.Backend.TimeoutSecs = d.Backend.TimeoutSecs
	}
	if c.Session.TimeoutMinutes == 0 {
		c.Session.TimeoutMinutes = d.Session.TimeoutMinutes
	}
	if c.Session.WarningThresholdSecs == 0 {
		c.Session.WarningThresholdSecs = d.Session.WarningThresholdSecs
	}
	if c.Session.KeepAliveIntervalSecs == 0 {
		c.Session.KeepAliveIntervalSecs = d.Session.KeepAliveIntervalSecs
	}
	if c.Session.KeepAliveRecencySecs == 0 {
		c.Session.KeepAliveRecencySecs = d.Session.KeepAliveRecencySecs
	}
	if c.Session.ActivityDebounceSecs == 0 {
		c.Session.ActivityDebounceSecs = d.Session.ActivityDebounceSecs
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Server.Listen == "" {
		c.Server.Listen = d.Server.Listen
	}
	if c.Server.SessionTimeoutMinutes == 0 {
		c.Server.SessionTimeoutMinutes = d.Server.SessionTimeoutMinutes
	}
	if c.Server.TokenTTLHours == 0 {
		c.Server.TokenTTLHours = d.Server.TokenTTLHours
	}
	if c.Server.LoginRatePerMinute == 0 {
		c.Server.LoginRatePerMinute = d.Server.LoginRatePerMinute
	}
	if c.Server.LoginBurst == 0 {
		c.Server.LoginBurst = d.Server.LoginBurst
	}

	if c.Log.Path == "" || c.Journal.Path == "" {
		dir, err := ConfigDir()
		if err != nil {
			return err
		}
		if c.Log.Path == "" {
			c.Log.Path = filepath.Join(dir, "portal.log")
		}
		if c.Journal.Path == "" {
			c.Journal.Path = filepath.Join(dir, "journal.db")
		}
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes cfg to path with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# portal configuration file\n")
	buf.WriteString("# Environment variables (PORTAL_*) override these values.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Backend
	if u, err := url.Parse(c.Backend.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("backend.url", "invalid URL '%s', must be http(s)://host[:port]/path", c.Backend.URL)
	}
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 300 {
		add("backend.timeout_secs", "must be between 1 and 300, got %d", c.Backend.TimeoutSecs)
	}

	// Session
	s := c.Session
	if s.TimeoutMinutes < 1 {
		add("session.timeout_minutes", "must be at least 1, got %d", s.TimeoutMinutes)
	}
	if s.WarningThresholdSecs < 1 {
		add("session.warning_threshold_secs", "must be at least 1, got %d", s.WarningThresholdSecs)
	}
	if s.KeepAliveIntervalSecs < 1 {
		add("session.keepalive_interval_secs", "must be at least 1, got %d", s.KeepAliveIntervalSecs)
	}
	if s.KeepAliveRecencySecs < 1 {
		add("session.keepalive_recency_secs", "must be at least 1, got %d", s.KeepAliveRecencySecs)
	}
	if s.ActivityDebounceSecs < 0 {
		add("session.activity_debounce_secs", "must not be negative, got %d", s.ActivityDebounceSecs)
	}

	// Log
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "unknown level '%s'", c.Log.Level)
	}

	// UI
	switch strings.ToLower(c.UI.Theme) {
	case "auto", "dark", "light":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}

	// Server
	if c.Server.SessionTimeoutMinutes < 1 {
		add("server.session_timeout_minutes", "must be at least 1, got %d", c.Server.SessionTimeoutMinutes)
	}
	if c.Server.TokenTTLHours < 1 {
		add("server.token_ttl_hours", "must be at least 1, got %d", c.Server.TokenTTLHours)
	}
	if c.Server.LoginRatePerMinute < 1 {
		add("server.login_rate_per_minute", "must be at least 1, got %d", c.Server.LoginRatePerMinute)
	}
	if c.Server.LoginBurst < 1 {
		add("server.login_burst", "must be at least 1, got %d", c.Server.LoginBurst)
	}
	seen := make(map[string]bool)
	for i, u := range c.Server.Users {
		field := "server.users[" + strconv.Itoa(i) + "]"
		name := strings.ToLower(strings.TrimSpace(u.Username))
		if name == "" {
			add(field+".username", "must not be empty")
		} else if seen[name] {
			add(field+".username", "duplicate user '%s'", u.Username)
		}
		seen[name] = true
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			add(field+".password_hash", "not a bcrypt hash")
		}
		if u.TOTPSecret != "" {
			if _, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(strings.TrimRight(u.TOTPSecret, "="))); err != nil {
				add(field+".totp_secret", "not valid base32")
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PORTAL_BACKEND_URL: overrides backend.url
//   - PORTAL_SESSION_TIMEOUT: overrides session.timeout_minutes
//   - PORTAL_LOG_LEVEL: overrides log.level
//   - PORTAL_LOG_PATH: overrides log.path
//   - PORTAL_JOURNAL: "0" or "false" disables the journal
//   - PORTAL_METRICS_LISTEN: overrides metrics.listen
//   - PORTAL_SERVER_LISTEN: overrides server.listen
//   - PORTAL_JWT_SECRET: overrides server.jwt_secret
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PORTAL_BACKEND_URL"); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv("PORTAL_SESSION_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Session.TimeoutMinutes = n
		}
	}
	if v := os.Getenv("PORTAL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PORTAL_LOG_PATH"); v != "" {
		c.Log.Path = v
	}
	if v := os.Getenv("PORTAL_JOURNAL"); v != "" {
		c.Journal.Enabled = v == "1" || strings.ToLower(v) == "true"
	}
	if v := os.Getenv("PORTAL_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
	if v := os.Getenv("PORTAL_SERVER_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("PORTAL_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
}

// BackendTimeout returns the request timeout as a duration.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSecs) * time.Second
}
