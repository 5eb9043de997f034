package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
	"github.com/fernwehlabs/lifelog/internal/auth/metrics"
	"github.com/fernwehlabs/lifelog/internal/auth/store"
	"github.com/fernwehlabs/lifelog/pkg/cryptox"
	"github.com/fernwehlabs/lifelog/pkg/idx"
	"github.com/fernwehlabs/lifelog/pkg/jwtx"
	"github.com/fernwehlabs/lifelog/pkg/slogx"
)

// TokenService mints access tokens and manages the refresh token store.
type TokenService struct {
	Signer     jwtx.Signer
	Store      store.Store
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// IssueTokens signs a fresh access token and persists a new refresh token for
// the user. The session id ties all tokens of one login together.
func (s *TokenService) IssueTokens(
	ctx context.Context,
	user domain.User,
	sessionID string,
	amr []string,
	now time.Time,
) (domain.TokenPair, error) {
	accessToken, err := s.signAccess(user, sessionID, amr, now)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	rt := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		SessionID: sessionID,
		AMR:       amr,
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.AccessTTL.Seconds()),
	}, nil
}

// Refresh exchanges a valid refresh token for a new access token. The refresh
// token itself stays valid until expiry or revocation; no rotation happens
// here, so clients keep presenting the same opaque token.
func (s *TokenService) Refresh(ctx context.Context, refreshOpaque string) (domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidToken
		}
		return domain.TokenPair{}, err
	}

	// Revoked and expired are reported distinctly so clients know whether to
	// re-authenticate or just retry later with a fresh login.
	if rt.Revoked {
		l.Info("refresh rejected: token revoked", "user_id", rt.UserID)
		return domain.TokenPair{}, ErrTokenRevoked
	}
	if now.After(rt.ExpiresAt) {
		l.Info("refresh rejected: token expired", "user_id", rt.UserID)
		return domain.TokenPair{}, ErrTokenExpired
	}

	user, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.TokenPair{}, ErrInvalidToken
		}
		return domain.TokenPair{}, err
	}

	// Preserve AMR history and record that this token came via refresh
	amr := dedupe(append(rt.AMR, jwtx.AMRRefresh))

	accessToken, err := s.signAccess(user, rt.SessionID, amr, now)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	metrics.TokensIssuedTotal.WithLabelValues("refresh").Inc()

	return domain.TokenPair{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.AccessTTL.Seconds()),
	}, nil
}

// Revoke invalidates a single refresh token (logout).
func (s *TokenService) Revoke(ctx context.Context, refreshOpaque string) error {
	fp := cryptox.FingerprintToken(refreshOpaque)
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, fp)
}

// RevokeAllForUser invalidates every refresh token the user holds
// (logout-all, password reset, MFA disable).
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.Store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
}

func (s *TokenService) signAccess(
	u domain.User,
	sessionID string,
	amr []string,
	now time.Time,
) (string, error) {
	claims := jwtx.NewAccessClaims(
		u.ID,            // subject
		sessionID,       // session ID
		amr,             // authentication methods
		s.AccessTTL,     // token lifetime
		s.Issuer,        // issuer
		s.Audience,      // audience
		u.Email,         // email
		u.DisplayName(), // display name
		now,             // current time
	)
	return s.Signer.Sign(claims)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
