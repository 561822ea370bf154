// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/portal-tui/internal/clock"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	clk := clock.NewManual(epoch)
	iss, err := NewTokenIssuer([]byte("k"), time.Hour, clk)
	require.NoError(t, err)

	raw, err := iss.Issue("analyst", "ANALYST", "sid-1")
	require.NoError(t, err)

	claims, err := iss.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "sid-1", claims.SessionID)
	assert.Equal(t, "ANALYST", claims.Role)
	assert.Equal(t, "analyst", claims.Subject)
	assert.True(t, claims.ExpiresAt.Time.Equal(epoch.Add(time.Hour)))
}

func TestTokenIssuer_Rejects(t *testing.T) {
	clk := clock.NewManual(epoch)
	iss, err := NewTokenIssuer([]byte("k"), time.Hour, clk)
	require.NoError(t, err)
	other, err := NewTokenIssuer([]byte("other"), time.Hour, clk)
	require.NoError(t, err)

	foreign, err := other.Issue("analyst", "", "sid")
	require.NoError(t, err)
	_, err = iss.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noSID, err := iss.Issue("analyst", "", "")
	require.NoError(t, err)
	_, err = iss.Parse(noSID)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionID: "sid"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)

	raw, err := iss.Issue("analyst", "", "sid")
	require.NoError(t, err)
	clk.Advance(time.Hour)
	_, err = iss.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokenIssuer_RandomSecret(t *testing.T) {
	a, err := NewTokenIssuer(nil, 0, nil)
	require.NoError(t, err)
	b, err := NewTokenIssuer(nil, 0, nil)
	require.NoError(t, err)

	raw, err := a.Issue("analyst", "", "sid")
	require.NoError(t, err)
	_, err = b.Parse(raw)
	assert.Error(t, err)
	assert.Equal(t, DefaultTokenTTL, a.ttl)
}
