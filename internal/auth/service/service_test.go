package service_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
	"github.com/fernwehlabs/lifelog/internal/auth/idp"
	"github.com/fernwehlabs/lifelog/internal/auth/service"
	"github.com/fernwehlabs/lifelog/internal/auth/store/drivers/sqlite"
	"github.com/fernwehlabs/lifelog/pkg/cryptox"
	"github.com/fernwehlabs/lifelog/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://auth.test.local"
	testPassword = "Sup3r-Secret!"
)

type harness struct {
	store   *sqlite.Store
	auth    *service.AuthService
	mfa     *service.MFAService
	tokens  *service.TokenService
	keyset  *jwtx.KeySet
	secrets *cryptox.Secretbox
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	logger := slog.New(slog.DiscardHandler)

	pemKey, err := jwtx.GenerateEdDSAKeyPEM()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("test-key", pemKey)
	require.NoError(t, err)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	secrets, err := cryptox.NewSecretbox([]byte("test-secretbox-key-material"))
	require.NoError(t, err)

	tokens := &service.TokenService{
		Signer:     signer,
		Store:      s,
		Issuer:     testIssuer,
		Audience:   []string{"lifelog"},
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}

	directory := idp.NewLocalDirectory(s, logger)

	auth := &service.AuthService{
		Directory: directory,
		Store:     s,
		Tokens:    tokens,
		Secrets:   secrets,
	}

	mfa := &service.MFAService{
		Store:     s,
		Tokens:    tokens,
		Secrets:   secrets,
		Directory: directory,
		Issuer:    "Lifelog",
	}

	return &harness{
		store:   s,
		auth:    auth,
		mfa:     mfa,
		tokens:  tokens,
		keyset:  keyset,
		secrets: secrets,
	}
}

func (h *harness) register(t *testing.T, email string) domain.User {
	t.Helper()

	u, err := h.auth.Register(context.Background(), idp.Registration{
		Email:     email,
		Password:  testPassword,
		FirstName: "Alex",
		LastName:  "Tester",
	})
	require.NoError(t, err)
	return u
}

// enableMFA runs the full enrollment flow and returns the shared secret and
// the plaintext backup codes.
func (h *harness) enableMFA(t *testing.T, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()

	enroll, err := h.mfa.EnrollTOTP(ctx, userID)
	require.NoError(t, err)
	require.NotEmpty(t, enroll.Secret)
	require.Len(t, enroll.BackupCodes, 8)

	code := totpCode(t, enroll.Secret)
	require.NoError(t, h.mfa.VerifyTOTP(ctx, userID, code))

	return enroll.Secret, enroll.BackupCodes
}

func totpCode(t *testing.T, secret string) string {
	t.Helper()

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}
