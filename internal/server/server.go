// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/portal-tui/internal/clock"
	"github.com/jeranaias/portal-tui/internal/config"
	"github.com/jeranaias/portal-tui/internal/portal"
	"github.com/jeranaias/portal-tui/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultListen is the default listen address.
	DefaultListen = "127.0.0.1:8080"

	// MaxRequestBodySize caps request bodies (64KB).
	MaxRequestBodySize = 64 * 1024

	// SweepInterval is how often expired sessions are purged.
	SweepInterval = time.Minute
)

// ============================================================================
// OPTIONS
// ============================================================================

// Options configures a Server. Zero values select defaults.
type Options struct {
	Listen             string
	SessionTimeout     time.Duration
	TokenTTL           time.Duration
	Secret             []byte
	LoginRatePerMinute int
	LoginBurst         int
	Directory          *Directory
	Clock              clock.Clock
	Registry           *prometheus.Registry
	Logger             logrus.FieldLogger
}

// OptionsFromConfig converts the [server] config section.
func OptionsFromConfig(cfg config.ServerConfig) (Options, error) {
	dir, err := DirectoryFromConfig(cfg.Users)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Listen:             cfg.Listen,
		SessionTimeout:     time.Duration(cfg.SessionTimeoutMinutes) * time.Minute,
		TokenTTL:           time.Duration(cfg.TokenTTLHours) * time.Hour,
		Secret:             []byte(cfg.JWTSecret),
		LoginRatePerMinute: cfg.LoginRatePerMinute,
		LoginBurst:         cfg.LoginBurst,
		Directory:          dir,
	}, nil
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the development portal backend.
type Server struct {
	listen   string
	clk      clock.Clock
	log      logrus.FieldLogger
	users    *Directory
	sessions *SessionStore
	tokens   *TokenIssuer
	limiter  *LoginLimiter
	registry *prometheus.Registry
	metrics  *telemetry.ServerMetrics
	router   chi.Router
	http     *http.Server
}

// New creates a server from opts.
func New(opts Options) (*Server, error) {
	if opts.Listen == "" {
		opts.Listen = DefaultListen
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Directory == nil {
		dir, err := DefaultDirectory()
		if err != nil {
			return nil, err
		}
		opts.Directory = dir
	}

	tokens, err := NewTokenIssuer(opts.Secret, opts.TokenTTL, opts.Clock)
	if err != nil {
		return nil, err
	}

	s := &Server{
		listen:   opts.Listen,
		clk:      opts.Clock,
		log:      opts.Logger.WithField("component", "server"),
		users:    opts.Directory,
		sessions: NewSessionStore(opts.Clock, opts.SessionTimeout),
		tokens:   tokens,
		limiter:  NewLoginLimiter(opts.LoginRatePerMinute, opts.LoginBurst, opts.Clock),
		registry: opts.Registry,
		metrics:  telemetry.NewServerMetrics(opts.Registry),
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(Instrument(s.metrics))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler(s.registry))

	r.Route("/api", func(r chi.Router) {
		r.With(s.limitLogins).Post("/auth/login", s.handleLogin)
		r.Get("/session/status", s.handleStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Post("/auth/logout", s.handleLogout)
			r.Post("/session/keepalive", s.handleKeepAlive)
		})
	})

	s.router = r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session store.
func (s *Server) Sessions() *SessionStore {
	return s.sessions
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.listen
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var creds portal.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if creds.Username == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	log := s.log.WithFields(logrus.Fields{
		"username": creds.Username,
		"remote":   clientIP(r),
	})

	user, err := s.users.Authenticate(creds.Username, creds.Password, creds.OTP, s.clk.Now())
	if err != nil {
		s.metrics.LoginsTotal.WithLabelValues("denied").Inc()
		log.WithError(err).Warn("login denied")
		msg := ErrInvalidCredentials.Error()
		if errors.Is(err, ErrOTPRequired) || errors.Is(err, ErrInvalidOTP) {
			msg = err.Error()
		}
		writeError(w, http.StatusUnauthorized, msg)
		return
	}

	sess := s.sessions.Create(user)
	token, err := s.tokens.Issue(user.Username, user.Role, sess.ID)
	if err != nil {
		s.sessions.Delete(sess.ID)
		log.WithError(err).Error("issue token")
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	s.metrics.LoginsTotal.WithLabelValues("ok").Inc()
	s.syncActive()

	log.WithField("session", sess.ID).Info("login")
	writeJSON(w, http.StatusOK, portal.LoginResponse{
		Token:               token,
		User:                user,
		SessionID:           sess.ID,
		MaxInactiveInterval: s.sessions.MaxInactiveInterval(),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if s.sessions.Delete(claims.SessionID) {
		s.log.WithField("session", claims.SessionID).Info("logout")
	}
	s.syncActive()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKeepAlive(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	sess, ok := s.sessions.Touch(claims.SessionID)
	if !ok {
		s.syncActive()
		writeError(w, http.StatusUnauthorized, "session expired")
		return
	}

	interval := s.sessions.MaxInactiveInterval()
	writeJSON(w, http.StatusOK, portal.KeepAliveResponse{
		Extended:            true,
		MaxInactiveInterval: &interval,
		SessionID:           sess.ID,
	})
}

// handleStatus never extends the session and never fails: callers without a
// live session get an inactive status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp portal.StatusResponse

	if raw := bearerToken(r); raw != "" {
		if claims, err := s.tokens.Parse(raw); err == nil {
			if remaining := s.sessions.Remaining(claims.SessionID); remaining > 0 {
				resp = portal.StatusResponse{
					Active:              true,
					ExpiresInSeconds:    int(remaining / time.Second),
					MaxInactiveInterval: s.sessions.MaxInactiveInterval(),
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()

	s.log.WithFields(logrus.Fields{
		"addr":    s.listen,
		"timeout": s.sessions.Timeout().String(),
	}).Info("server started")

	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("listen %s: %w", s.listen, err)
		case <-ticker.C:
			if n := s.sweep(); n > 0 {
				s.log.WithField("removed", n).Debug("expired sessions swept")
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			s.log.Info("server shutting down")
			if err := s.http.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			<-errCh
			return nil
		}
	}
}

func (s *Server) sweep() int {
	n := s.sessions.Sweep()
	s.syncActive()
	return n
}

func (s *Server) syncActive() {
	s.metrics.ActiveSessions.Set(float64(s.sessions.Len()))
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, portal.ErrorResponse{Error: message})
}
