// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth holds the client's login state and bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/portal-tui/internal/clock"
	"github.com/jeranaias/portal-tui/internal/portal"
)

// ErrNotLoggedIn is returned by operations that need a session.
var ErrNotLoggedIn = errors.New("auth: not logged in")

// Client is the subset of the portal client the gateway uses.
type Client interface {
	Login(ctx context.Context, creds portal.Credentials) (*portal.LoginResponse, error)
	Logout(ctx context.Context) error
}

// State is a login state snapshot delivered to subscribers.
type State struct {
	LoggedIn            bool
	User                portal.User
	SessionID           string
	MaxInactiveInterval int
	ExpiresAt           time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithClock sets the clock used to judge and schedule token expiry.
func WithClock(clk clock.Clock) Option {
	return func(g *Gateway) {
		g.clock = clk
	}
}

// Gateway tracks who is logged in. It is safe for concurrent use.
//
// When the bearer token carries an exp claim the gateway logs out locally
// at that instant and notifies subscribers.
type Gateway struct {
	client Client
	clock  clock.Clock

	mu     sync.RWMutex
	token  string
	state  State
	expiry clock.Timer
	nextID int
	subs   map[int]func(State)
}

// NewGateway creates a logged-out gateway.
func NewGateway(client Client, opts ...Option) *Gateway {
	g := &Gateway{
		client: client,
		clock:  clock.Real(),
		subs:   make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login authenticates against the backend and notifies subscribers.
func (g *Gateway) Login(ctx context.Context, username, password, otp string) (State, error) {
	resp, err := g.client.Login(ctx, portal.Credentials{
		Username: username,
		Password: password,
		OTP:      otp,
	})
	if err != nil {
		return State{}, fmt.Errorf("login: %w", err)
	}

	st := State{
		LoggedIn:            true,
		User:                resp.User,
		SessionID:           resp.SessionID,
		MaxInactiveInterval: resp.MaxInactiveInterval,
		ExpiresAt:           tokenExpiry(resp.Token),
	}

	g.mu.Lock()
	g.stopExpiryLocked()
	g.token = resp.Token
	g.state = st
	if !st.ExpiresAt.IsZero() {
		tok := resp.Token
		g.expiry = g.clock.AfterFunc(st.ExpiresAt.Sub(g.clock.Now()), func() {
			g.expire(tok)
		})
	}
	g.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"user":       st.User.Username,
		"session_id": st.SessionID,
	}).Info("logged in")
	g.notify(st)
	return st, nil
}

// Logout clears credentials, notifies subscribers and then tells the
// backend. Local state is cleared even when the backend call fails; the
// returned error is the backend's. Logging out twice is a no-op.
func (g *Gateway) Logout(ctx context.Context) error {
	g.mu.Lock()
	tok := g.token
	was := g.state
	g.stopExpiryLocked()
	g.token = ""
	g.state = State{}
	g.mu.Unlock()

	if tok == "" {
		return nil
	}

	logrus.WithField("user", was.User.Username).Info("logged out")
	g.notify(State{})

	if err := g.client.Logout(portal.WithToken(ctx, tok)); err != nil {
		return fmt.Errorf("backend logout: %w", err)
	}
	return nil
}

// IsLoggedIn reports whether a non-expired token is held.
func (g *Gateway) IsLoggedIn() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.token == "" {
		return false
	}
	if !g.state.ExpiresAt.IsZero() && !g.clock.Now().Before(g.state.ExpiresAt) {
		return false
	}
	return true
}

// State returns the current login state.
func (g *Gateway) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Token returns the bearer token, or "" when logged out.
func (g *Gateway) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// Subscribe registers fn for login state changes. fn runs on the goroutine
// that changed the state.
func (g *Gateway) Subscribe(fn func(State)) (unsubscribe func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.subs[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.subs, id)
		g.mu.Unlock()
	}
}

// expire drops tok once its exp claim has passed. A token replaced by a
// newer login or already logged out is left alone. The backend is not
// told; it no longer accepts the token.
func (g *Gateway) expire(tok string) {
	g.mu.Lock()
	if g.token != tok {
		g.mu.Unlock()
		return
	}
	was := g.state
	g.expiry = nil
	g.token = ""
	g.state = State{}
	g.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"user":       was.User.Username,
		"session_id": was.SessionID,
	}).Info("token expired, logged out")
	g.notify(State{})
}

func (g *Gateway) stopExpiryLocked() {
	if g.expiry != nil {
		g.expiry.Stop()
		g.expiry = nil
	}
}

func (g *Gateway) notify(st State) {
	g.mu.RLock()
	fns := make([]func(State), 0, len(g.subs))
	for _, fn := range g.subs {
		fns = append(fns, fn)
	}
	g.mu.RUnlock()

	for _, fn := range fns {
		fn(st)
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend verifies, the client only needs the hint.
func tokenExpiry(tok string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
