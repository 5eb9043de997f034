package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
	"github.com/fernwehlabs/lifelog/internal/auth/service"
	"github.com/fernwehlabs/lifelog/pkg/jwtx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshIssuesNewAccessToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u := h.register(t, "refresher@example.com")

	result, err := h.auth.Login(ctx, u.Email, testPassword)
	require.NoError(t, err)
	pair := result.(domain.LoginTokens).Tokens

	refreshed, err := h.tokens.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, pair.AccessToken, refreshed.AccessToken)

	// No rotation: the response carries no new refresh token and the old one
	// keeps working.
	assert.Empty(t, refreshed.RefreshToken)
	_, err = h.tokens.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)

	// The refreshed access token verifies and carries the session + AMR
	verifier := jwtx.NewCommonEdDSA(h.keyset, testIssuer, []string{"lifelog"})
	claims, err := verifier.Verify(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.NotEmpty(t, claims.SID)
	assert.Contains(t, claims.AMR, jwtx.AMRPassword)
	assert.Contains(t, claims.AMR, jwtx.AMRRefresh)
	assert.Equal(t, u.Email, claims.Email)
}

func TestRefreshUnknownToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.tokens.Refresh(context.Background(), "never-issued-token")
	require.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestRefreshExpiredToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u := h.register(t, "expired@example.com")

	// Issue with an already-elapsed refresh TTL
	h.tokens.RefreshTTL = -time.Minute
	result, err := h.auth.Login(ctx, u.Email, testPassword)
	require.NoError(t, err)
	pair := result.(domain.LoginTokens).Tokens

	_, err = h.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrTokenExpired)
}

func TestRefreshRevokedToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u := h.register(t, "revoked@example.com")

	result, err := h.auth.Login(ctx, u.Email, testPassword)
	require.NoError(t, err)
	pair := result.(domain.LoginTokens).Tokens

	require.NoError(t, h.tokens.Revoke(ctx, pair.RefreshToken))

	_, err = h.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrTokenRevoked)
}

func TestAccessTokenClaimsAfterMFALogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u := h.register(t, "claims@example.com")
	secret, _ := h.enableMFA(t, u.ID)

	result, err := h.auth.Login(ctx, u.Email, testPassword)
	require.NoError(t, err)
	challenge := result.(domain.LoginMFARequired).Challenge

	tokens, err := h.auth.VerifyMFALogin(ctx, challenge.MFAToken, totpCode(t, secret))
	require.NoError(t, err)

	verifier := jwtx.NewCommonEdDSA(h.keyset, testIssuer, []string{"lifelog"})
	claims, err := verifier.Verify(tokens.AccessToken)
	require.NoError(t, err)

	assert.Contains(t, claims.AMR, jwtx.AMRPassword)
	assert.Contains(t, claims.AMR, jwtx.AMROTP)
	assert.Contains(t, claims.AMR, jwtx.AMRMFA)
}
