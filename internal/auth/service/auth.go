package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
	"github.com/fernwehlabs/lifelog/internal/auth/idp"
	"github.com/fernwehlabs/lifelog/internal/auth/metrics"
	"github.com/fernwehlabs/lifelog/internal/auth/store"
	"github.com/fernwehlabs/lifelog/pkg/cryptox"
	"github.com/fernwehlabs/lifelog/pkg/idx"
	"github.com/fernwehlabs/lifelog/pkg/jwtx"
	"github.com/fernwehlabs/lifelog/pkg/slogx"
)

const (
	// DefaultLockoutThreshold is the number of consecutive failed logins that
	// locks the account.
	DefaultLockoutThreshold = 5

	// DefaultLockoutCooldown is how long a locked account stays locked.
	DefaultLockoutCooldown = 15 * time.Minute

	// DefaultMFASessionTTL is the window a pending MFA challenge stays valid.
	DefaultMFASessionTTL = 5 * time.Minute

	// MaxMFAAttempts is the maximum number of failed MFA attempts allowed per
	// session before it is burned.
	MaxMFAAttempts = 5
)

// MFA verification method names accepted by VerifyMFALogin.
const (
	MFAMethodTOTP       = "totp"
	MFAMethodBackupCode = "backup_code"
)

// AuthService orchestrates registration and the login flow, including the
// lockout policy and the MFA step-up challenge.
type AuthService struct {
	Directory idp.Directory
	Store     store.Store
	Tokens    *TokenService
	Secrets   *cryptox.Secretbox

	LockoutThreshold int
	LockoutCooldown  time.Duration
	MFASessionTTL    time.Duration
}

// Register provisions a new account after checking password complexity.
func (s *AuthService) Register(ctx context.Context, reg idp.Registration) (domain.User, error) {
	l := slogx.FromContext(ctx)

	if errs := ValidatePassword(reg.Password); len(errs) > 0 {
		return domain.User{}, &WeakPasswordError{Problems: errs}
	}

	u, err := s.Directory.Register(ctx, reg)
	if err != nil {
		if errors.Is(err, idp.ErrEmailTaken) {
			l.Info("registration rejected: email taken")
			return domain.User{}, ErrEmailExists
		}
		return domain.User{}, err
	}

	l.Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login verifies primary credentials and either issues tokens immediately or
// opens an MFA challenge session when the user has MFA enabled.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.LoginResult, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	user, err := s.Directory.Lookup(ctx, email)
	if err != nil {
		if errors.Is(err, idp.ErrInvalidCredentials) {
			l.Info("login rejected: unknown email")
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.IsLocked(now) {
		l.Warn("login rejected: account locked", "user_id", user.ID, "locked_until", *user.LockedUntil)
		metrics.LoginsTotal.WithLabelValues("locked").Inc()
		return nil, ErrAccountLocked
	}

	if err := s.Directory.CheckPassword(ctx, user, password); err != nil {
		if !errors.Is(err, idp.ErrInvalidCredentials) {
			return nil, err
		}

		nowLocked, ferr := s.Store.Users().RegisterFailedLogin(
			ctx, user.ID, s.lockoutThreshold(), now.Add(s.lockoutCooldown()))
		if ferr != nil {
			l.Error("failed to register failed login", "user_id", user.ID, "error", ferr)
		}
		if nowLocked {
			l.Warn("account locked after repeated failures", "user_id", user.ID)
			metrics.AccountLockoutsTotal.Inc()
			metrics.LoginsTotal.WithLabelValues("locked").Inc()
			return nil, ErrAccountLocked
		}

		l.Info("login rejected: bad password", "user_id", user.ID)
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	// Successful password check clears the failure counter
	if err := s.Store.Users().ResetFailedLogins(ctx, user.ID); err != nil {
		l.Error("failed to reset login failures", "user_id", user.ID, "error", err)
	}

	if user.HasMFA() {
		challenge, err := s.openMFASession(ctx, user, now)
		if err != nil {
			return nil, err
		}
		l.Info("login pending MFA", "user_id", user.ID)
		metrics.LoginsTotal.WithLabelValues("mfa_required").Inc()
		return domain.LoginMFARequired{Challenge: challenge}, nil
	}

	tokens, err := s.Tokens.IssueTokens(ctx, user, idx.New().String(), []string{jwtx.AMRPassword}, now)
	if err != nil {
		return nil, err
	}

	l.Info("login succeeded", "user_id", user.ID)
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	metrics.TokensIssuedTotal.WithLabelValues("login").Inc()
	return domain.LoginTokens{Tokens: tokens, User: &user}, nil
}

// VerifyMFALogin completes a pending MFA challenge and issues tokens on
// success. The code is tried as a TOTP code first and as a backup code
// second; clients submit one field, there is no discriminator. The session
// is single-use.
func (s *AuthService) VerifyMFALogin(ctx context.Context, mfaToken, code string) (domain.TokenPair, error) {
	now := time.Now().UTC()
	l := slogx.FromContext(ctx)

	session, err := s.Store.MFASessions().GetMFASession(ctx, mfaToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("MFA verify rejected: unknown or expired session")
			return domain.TokenPair{}, ErrMFASessionInvalid
		}
		return domain.TokenPair{}, err
	}

	if session.Attempts >= MaxMFAAttempts {
		l.Warn("MFA verify rejected: attempt budget exhausted", "user_id", session.UserID)
		_, _ = s.Store.MFASessions().ConsumeMFASession(ctx, mfaToken)
		return domain.TokenPair{}, ErrTooManyAttempts
	}

	user, err := s.Store.Users().GetUserByID(ctx, session.UserID)
	if err != nil {
		return domain.TokenPair{}, err
	}

	method, verr := s.checkSecondFactor(ctx, user.ID, code, now)
	if verr != nil {
		metrics.MFAVerificationsTotal.WithLabelValues(method, "failure").Inc()
		return domain.TokenPair{}, s.registerMFAFailure(ctx, mfaToken, session.UserID, verr)
	}
	metrics.MFAVerificationsTotal.WithLabelValues(method, "success").Inc()

	// Single use: whoever consumes the session first wins, a concurrent
	// verify with the same token loses here.
	consumed, err := s.Store.MFASessions().ConsumeMFASession(ctx, mfaToken)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if !consumed {
		l.Warn("MFA verify lost consume race", "user_id", user.ID)
		return domain.TokenPair{}, ErrMFASessionInvalid
	}

	amr := dedupe(append(session.AMR, jwtx.AMROTP, jwtx.AMRMFA))

	tokens, err := s.Tokens.IssueTokens(ctx, user, idx.New().String(), amr, now)
	if err != nil {
		return domain.TokenPair{}, err
	}

	l.Info("MFA login succeeded", "user_id", user.ID, "method", method)
	metrics.TokensIssuedTotal.WithLabelValues("mfa").Inc()
	return tokens, nil
}

// checkSecondFactor applies the verification precedence: a code matching the
// TOTP window wins; anything else is tried as a backup code and redeemed
// atomically on match. Returns the method that matched.
func (s *AuthService) checkSecondFactor(ctx context.Context, userID, code string, now time.Time) (string, error) {
	secret, err := s.loadTOTPSecret(ctx, userID)
	if err != nil && !errors.Is(err, ErrMFANotEnabled) {
		return MFAMethodTOTP, err
	}
	if err == nil && validateTOTP(code, secret) {
		return MFAMethodTOTP, nil
	}

	fp := cryptox.FingerprintToken(cryptox.NormalizeBackupCode(code))
	ok, rerr := s.Store.BackupCodes().RedeemBackupCode(ctx, userID, fp, now)
	if rerr != nil {
		return MFAMethodBackupCode, rerr
	}
	if ok {
		return MFAMethodBackupCode, nil
	}
	return MFAMethodBackupCode, ErrInvalidTOTPCode
}

// ChangePassword verifies the current password, applies the complexity policy
// to the new one, and revokes every refresh token so other sessions have to
// re-authenticate with the new credential.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if err := s.Directory.CheckPassword(ctx, user, current); err != nil {
		if errors.Is(err, idp.ErrInvalidCredentials) {
			l.Info("password change rejected: bad current password", "user_id", userID)
			return ErrInvalidCredentials
		}
		return err
	}

	if errs := ValidatePassword(newPassword); len(errs) > 0 {
		return &WeakPasswordError{Problems: errs}
	}

	if err := s.Directory.SetPassword(ctx, userID, newPassword); err != nil {
		return err
	}

	l.Info("password changed", "user_id", userID)
	return s.Tokens.RevokeAllForUser(ctx, userID)
}

// Logout revokes the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshOpaque string) error {
	return s.Tokens.Revoke(ctx, refreshOpaque)
}

// LogoutAll revokes every refresh token the user holds.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	slogx.FromContext(ctx).Info("revoking all sessions", "user_id", userID)
	return s.Tokens.RevokeAllForUser(ctx, userID)
}

func (s *AuthService) openMFASession(ctx context.Context, user domain.User, now time.Time) (domain.MFAChallengeResponse, error) {
	session := domain.MFASession{
		ID:        idx.New().String(),
		UserID:    user.ID,
		AMR:       []string{jwtx.AMRPassword},
		ExpiresAt: now.Add(s.mfaSessionTTL()),
		CreatedAt: now,
	}
	if err := s.Store.MFASessions().CreateMFASession(ctx, session); err != nil {
		return domain.MFAChallengeResponse{}, fmt.Errorf("create MFA session: %w", err)
	}

	return domain.MFAChallengeResponse{
		MFARequired: true,
		MFAToken:    session.ID,
		TokenType:   "Bearer",
		Methods:     []string{MFAMethodTOTP, MFAMethodBackupCode},
	}, nil
}

func (s *AuthService) loadTOTPSecret(ctx context.Context, userID string) (string, error) {
	rec, err := s.Store.MFASecrets().GetMFASecret(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrMFANotEnabled
		}
		return "", err
	}
	if !rec.Confirmed {
		return "", ErrMFANotEnabled
	}

	plain, err := s.Secrets.Open(rec.EncryptedSecret, rec.IV)
	if err != nil {
		return "", fmt.Errorf("decrypt MFA secret: %w", err)
	}
	return string(plain), nil
}

// registerMFAFailure bumps the session attempt counter and decides which
// error the caller surfaces.
func (s *AuthService) registerMFAFailure(ctx context.Context, mfaToken, userID string, verr error) error {
	l := slogx.FromContext(ctx)

	updated, err := s.Store.MFASessions().IncrementMFASessionAttempts(ctx, mfaToken)
	if err != nil {
		l.Error("failed to increment MFA attempts", "user_id", userID, "error", err)
		return verr
	}

	l.Warn("MFA validation failed", "user_id", userID, "attempts", updated.Attempts)

	if updated.Attempts >= MaxMFAAttempts {
		_, _ = s.Store.MFASessions().ConsumeMFASession(ctx, mfaToken)
		return ErrTooManyAttempts
	}
	return verr
}

func (s *AuthService) lockoutThreshold() int {
	if s.LockoutThreshold > 0 {
		return s.LockoutThreshold
	}
	return DefaultLockoutThreshold
}

func (s *AuthService) lockoutCooldown() time.Duration {
	if s.LockoutCooldown > 0 {
		return s.LockoutCooldown
	}
	return DefaultLockoutCooldown
}

func (s *AuthService) mfaSessionTTL() time.Duration {
	if s.MFASessionTTL > 0 {
		return s.MFASessionTTL
	}
	return DefaultMFASessionTTL
}

// WeakPasswordError carries the individual complexity problems so the HTTP
// layer can return them field by field.
type WeakPasswordError struct {
	Problems []PasswordValidationError
}

func (e *WeakPasswordError) Error() string { return "password does not meet complexity requirements" }
