package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
)

// GenerateToken creates a cryptographically secure random token of the
// specified byte length, returned as a base64url string (URL-safe, no
// padding). Used for refresh tokens and pending MFA session tokens.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token,
// base64url encoded (43 chars). Opaque tokens and backup codes are stored as
// fingerprints so a database leak does not leak redeemable values.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// backupCodeAlphabet avoids 0/O and 1/I/L to keep codes human-enterable.
const backupCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

// GenerateBackupCode produces a single-use MFA backup code in the form
// XXXX-XXXX. Each character carries ~5 bits, giving ~40 bits of entropy per
// code, which is plenty for a rate-limited single-use credential.
func GenerateBackupCode() (string, error) {
	// Rejection sampling keeps the character distribution uniform; a plain
	// modulo over a 31-character alphabet would favour the first 8 characters.
	const limit = 256 - 256%len(backupCodeAlphabet)

	var b strings.Builder
	buf := make([]byte, 16)
	for b.Len() < 9 {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate backup code: %w", err)
		}
		for _, c := range buf {
			if int(c) >= limit {
				continue
			}
			if b.Len() == 4 {
				b.WriteByte('-')
			}
			b.WriteByte(backupCodeAlphabet[int(c)%len(backupCodeAlphabet)])
			if b.Len() == 9 {
				break
			}
		}
	}
	return b.String(), nil
}

// NormalizeBackupCode canonicalizes user input before fingerprinting:
// uppercase, hyphens and spaces stripped. Redemption is case-insensitive and
// tolerant of the display grouping.
func NormalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}
