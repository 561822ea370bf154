// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/jeranaias/portal-tui/internal/config"
	"github.com/jeranaias/portal-tui/internal/portal"
)

// ============================================================================
// ERRORS
// ============================================================================

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrOTPRequired is returned when the account has a TOTP secret and no
	// code was supplied.
	ErrOTPRequired = errors.New("one-time code required")

	// ErrInvalidOTP is returned for a wrong or stale one-time code.
	ErrInvalidOTP = errors.New("invalid one-time code")
)

// ============================================================================
// ACCOUNTS
// ============================================================================

// Account is a backend user with its credential material.
type Account struct {
	User         portal.User
	PasswordHash []byte
	TOTPSecret   string
}

// Directory resolves accounts by case-folded username.
type Directory struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewDirectory builds a directory from accounts. Later duplicates win.
func NewDirectory(accounts ...Account) *Directory {
	d := &Directory{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		d.accounts[foldUsername(a.User.Username)] = a
	}
	return d
}

// DirectoryFromConfig builds a directory from configured users, falling back
// to the built-in demo accounts when none are configured.
func DirectoryFromConfig(users []config.UserConfig) (*Directory, error) {
	if len(users) == 0 {
		return DefaultDirectory()
	}

	accounts := make([]Account, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, Account{
			User: portal.User{
				Username:    u.Username,
				DisplayName: u.DisplayName,
				Role:        u.Role,
				Department:  u.Department,
			},
			PasswordHash: []byte(u.PasswordHash),
			TOTPSecret:   u.TOTPSecret,
		})
	}
	return NewDirectory(accounts...), nil
}

// DefaultDirectory returns the demo accounts analyst/analyst and admin/admin.
func DefaultDirectory() (*Directory, error) {
	defaults := []struct {
		user     portal.User
		password string
	}{
		{
			user: portal.User{
				Username:    "analyst",
				DisplayName: "Dr. Lukas Meier",
				Role:        "ANALYST",
				Department:  "Equity Research",
			},
			password: "analyst",
		},
		{
			user: portal.User{
				Username:    "admin",
				DisplayName: "Sarah Brunner",
				Role:        "ADMIN",
				Department:  "Research Management",
			},
			password: "admin",
		},
	}

	accounts := make([]Account, 0, len(defaults))
	for _, d := range defaults {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.password), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", d.user.Username, err)
		}
		accounts = append(accounts, Account{User: d.user, PasswordHash: hash})
	}
	return NewDirectory(accounts...), nil
}

// Len returns the number of accounts.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.accounts)
}

// Authenticate checks a password and, when the account requires it, a TOTP
// code valid at now.
func (d *Directory) Authenticate(username, password, code string, now time.Time) (portal.User, error) {
	d.mu.RLock()
	acct, ok := d.accounts[foldUsername(username)]
	d.mu.RUnlock()
	if !ok {
		return portal.User{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return portal.User{}, ErrInvalidCredentials
	}

	if acct.TOTPSecret == "" {
		return acct.User, nil
	}
	if code == "" {
		return portal.User{}, ErrOTPRequired
	}

	valid, err := totp.ValidateCustom(code, acct.TOTPSecret, now.UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		return portal.User{}, ErrInvalidOTP
	}
	return acct.User, nil
}

// foldUsername returns the comparison form of a username. A Caser is
// stateful, so each call gets its own.
func foldUsername(s string) string {
	return cases.Fold().String(s)
}
