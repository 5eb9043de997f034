package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
	"github.com/fernwehlabs/lifelog/internal/auth/idp"
	"github.com/fernwehlabs/lifelog/internal/auth/store"
	"github.com/fernwehlabs/lifelog/pkg/cryptox"
	"github.com/fernwehlabs/lifelog/pkg/idx"
	"github.com/fernwehlabs/lifelog/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// backupCodeCount is the number of backup codes issued per generation.
	backupCodeCount = 8

	// totpSecretSize is the TOTP shared secret length in bytes.
	totpSecretSize = 20
)

// MFAService manages TOTP enrollment, backup codes, and MFA teardown.
type MFAService struct {
	Store     store.Store
	Tokens    *TokenService
	Secrets   *cryptox.Secretbox
	Directory idp.Directory // password re-confirmation on disable
	Issuer    string        // Issuer name for TOTP provisioning (e.g., "Lifelog")
}

// EnrollTOTP generates a TOTP secret for the user and returns it along with a
// provisioning URL. This does NOT enable MFA yet - the user must verify a
// code first. Re-running setup replaces any unconfirmed secret.
func (s *MFAService) EnrollTOTP(ctx context.Context, userID string) (domain.MFAEnrollResponse, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFAEnrollResponse{}, ErrUserNotFound
		}
		return domain.MFAEnrollResponse{}, err
	}
	if user.HasMFA() {
		return domain.MFAEnrollResponse{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
		Period:      30,
		SecretSize:  totpSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFAEnrollResponse{}, fmt.Errorf("generate TOTP key: %w", err)
	}

	ciphertext, nonce, err := s.Secrets.Seal([]byte(key.Secret()))
	if err != nil {
		return domain.MFAEnrollResponse{}, fmt.Errorf("encrypt TOTP secret: %w", err)
	}

	backupCodes, err := generateBackupCodes()
	if err != nil {
		return domain.MFAEnrollResponse{}, err
	}

	now := time.Now().UTC()
	rec := domain.MFASecret{
		UserID:          userID,
		EncryptedSecret: ciphertext,
		IV:              nonce,
		Confirmed:       false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Secret and backup codes are written together; re-running setup
	// replaces both.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MFASecrets().UpsertMFASecret(ctx, rec); err != nil {
			return fmt.Errorf("store MFA secret: %w", err)
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("delete old backup codes: %w", err)
		}
		return storeBackupCodes(ctx, tx, userID, backupCodes, now)
	})
	if err != nil {
		return domain.MFAEnrollResponse{}, err
	}

	slogx.FromContext(ctx).Info("TOTP enrollment started", "user_id", userID)

	return domain.MFAEnrollResponse{
		Secret:      key.Secret(),
		QRCode:      key.URL(),
		Issuer:      s.Issuer,
		Account:     user.Email,
		BackupCodes: backupCodes,
	}, nil
}

// VerifyTOTP verifies a code against the pending secret and enables MFA for
// the user if valid. The backup codes were already issued at setup; this is
// the only path that flips the enabled flag.
func (s *MFAService) VerifyTOTP(ctx context.Context, userID string, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasMFA() {
		return ErrMFAAlreadyEnabled
	}

	rec, err := s.Store.MFASecrets().GetMFASecret(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMFANotEnrolled
		}
		return err
	}

	plain, err := s.Secrets.Open(rec.EncryptedSecret, rec.IV)
	if err != nil {
		return fmt.Errorf("decrypt MFA secret: %w", err)
	}

	if !validateTOTP(code, string(plain)) {
		return ErrInvalidTOTPCode
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MFASecrets().ConfirmMFASecret(ctx, userID); err != nil {
			return fmt.Errorf("confirm MFA secret: %w", err)
		}
		return tx.Users().EnableMFA(ctx, userID)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("MFA enabled", "user_id", userID)
	return nil
}

// RegenerateBackupCodes replaces the user's backup codes after verifying a
// TOTP code. Previously issued codes stop working immediately.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID string, totpCode string) ([]string, error) {
	if err := s.verifyEnabledTOTP(ctx, userID, totpCode); err != nil {
		return nil, err
	}

	backupCodes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("delete old backup codes: %w", err)
		}
		return storeBackupCodes(ctx, tx, userID, backupCodes, now)
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("backup codes regenerated", "user_id", userID)
	return backupCodes, nil
}

// Disable tears down MFA for a user after re-confirming their password, and
// revokes all refresh tokens so existing sessions re-authenticate at the
// weaker level.
func (s *MFAService) Disable(ctx context.Context, userID string, password string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !user.HasMFA() {
		return ErrMFANotEnabled
	}

	if err := s.Directory.CheckPassword(ctx, user, password); err != nil {
		if errors.Is(err, idp.ErrInvalidCredentials) {
			slogx.FromContext(ctx).Info("MFA disable rejected: bad password", "user_id", userID)
			return ErrInvalidCredentials
		}
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("delete backup codes: %w", err)
		}
		if err := tx.MFASecrets().DeleteMFASecret(ctx, userID); err != nil {
			return fmt.Errorf("delete MFA secret: %w", err)
		}
		if err := tx.Users().DisableMFA(ctx, userID); err != nil {
			return fmt.Errorf("disable MFA: %w", err)
		}
		return tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("MFA disabled", "user_id", userID)
	return nil
}

// Status reports the user's MFA state for the status endpoint.
func (s *MFAService) Status(ctx context.Context, userID string) (domain.MFAStatus, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.MFAStatus{}, ErrUserNotFound
		}
		return domain.MFAStatus{}, err
	}

	status := domain.MFAStatus{
		Enabled:   user.HasMFA(),
		EnabledAt: user.MFAEnabled,
	}
	if status.Enabled {
		n, err := s.Store.BackupCodes().CountUnusedBackupCodes(ctx, userID)
		if err != nil {
			return domain.MFAStatus{}, err
		}
		status.BackupCodesUnused = n
	}
	return status, nil
}

// verifyEnabledTOTP checks a code against the confirmed secret of a user with
// MFA enabled.
func (s *MFAService) verifyEnabledTOTP(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasMFA() {
		return ErrMFANotEnabled
	}

	rec, err := s.Store.MFASecrets().GetMFASecret(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMFANotEnabled
		}
		return err
	}
	if !rec.Confirmed {
		return ErrMFANotEnabled
	}

	plain, err := s.Secrets.Open(rec.EncryptedSecret, rec.IV)
	if err != nil {
		return fmt.Errorf("decrypt MFA secret: %w", err)
	}

	if !validateTOTP(code, string(plain)) {
		return ErrInvalidTOTPCode
	}
	return nil
}

// validateTOTP checks a 6-digit code with the library defaults: 30s period,
// SHA-1, one period of clock skew either side.
func validateTOTP(code, secret string) bool {
	return totp.Validate(code, secret)
}

func generateBackupCodes() ([]string, error) {
	codes := make([]string, backupCodeCount)
	for i := range codes {
		code, err := cryptox.GenerateBackupCode()
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes[i] = code
	}
	return codes, nil
}

func storeBackupCodes(ctx context.Context, tx store.Tx, userID string, codes []string, now time.Time) error {
	for _, code := range codes {
		bc := domain.BackupCode{
			ID:        idx.New().String(),
			UserID:    userID,
			CodeHash:  cryptox.FingerprintToken(cryptox.NormalizeBackupCode(code)),
			CreatedAt: now,
		}
		if err := tx.BackupCodes().CreateBackupCode(ctx, bc); err != nil {
			return fmt.Errorf("store backup code: %w", err)
		}
	}
	return nil
}
