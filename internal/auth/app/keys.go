package app

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"

	"github.com/fernwehlabs/lifelog/pkg/cryptox"
	"github.com/fernwehlabs/lifelog/pkg/jwtx"
)

// authKeys bundles the signing side and the verifying side of the token
// stack. Keys are ephemeral: generated on startup and held only in memory,
// so every restart invalidates all outstanding access tokens.
type authKeys struct {
	Signer   jwtx.Signer
	KeySet   *jwtx.KeySet
	Verifier jwtx.Verifier
}

// initAuthKeys generates a fresh Ed25519 signing key and builds the shared
// KeySet and Verifier around it.
func initAuthKeys(cfg Config, logger *slog.Logger) (*authKeys, error) {
	pemKey, err := jwtx.GenerateEdDSAKeyPEM()
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}

	kid, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, fmt.Errorf("generate key id: %w", err)
	}

	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	if err != nil {
		return nil, fmt.Errorf("build signer: %w", err)
	}

	keySet := jwtx.NewKeySet()
	if err := keySet.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("register signing key: %w", err)
	}

	logger.Info("generated ephemeral signing key", "kid", signer.KID(), "alg", signer.Alg())
	logger.Warn("all previously issued access tokens are now invalid")

	return &authKeys{
		Signer:   signer,
		KeySet:   keySet,
		Verifier: jwtx.NewCommonEdDSA(keySet, cfg.Issuer, cfg.Audience),
	}, nil
}

// loadMFAKey reads the TOTP encryption key material from cfg.MFAKeyFile.
// Without a configured file a random key is generated, which means enrolled
// MFA secrets stop decrypting after a restart.
func loadMFAKey(cfg Config, logger *slog.Logger) (*cryptox.Secretbox, error) {
	if cfg.MFAKeyFile != "" {
		material, err := os.ReadFile(cfg.MFAKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read MFA key file: %w", err)
		}
		return cryptox.NewSecretbox(material)
	}

	material := make([]byte, 32)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("generate MFA key: %w", err)
	}

	logger.Warn("no MFA key file configured, using an ephemeral key; enrolled TOTP secrets will not survive a restart")
	return cryptox.NewSecretbox(material)
}
