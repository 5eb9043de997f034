package domain

import "time"

// MFASecret is the stored TOTP secret for a user, encrypted at rest with
// AES-256-GCM. Confirmed is false between setup and the first successful
// verification; unconfirmed secrets never gate login.
type MFASecret struct {
	UserID          string
	EncryptedSecret []byte // AES-256-GCM ciphertext of the base32 secret
	IV              []byte // GCM nonce
	Confirmed       bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MFASession represents a pending MFA challenge between a successful password
// check and the TOTP/backup-code step.
type MFASession struct {
	ID        string // ULID (the mfa_token handed to the client)
	UserID    string
	AMR       []string // Authentication methods already satisfied (e.g. ["pwd"])
	Attempts  int      // Failed verification attempts (capped to prevent brute force)
	ExpiresAt time.Time
	CreatedAt time.Time
}

// MFAChallengeResponse is returned when MFA is required during authentication.
type MFAChallengeResponse struct {
	MFARequired bool     `json:"mfa_required"` // always true
	MFAToken    string   `json:"mfa_token"`    // ULID reference token
	TokenType   string   `json:"token_type"`   // always "Bearer"
	Methods     []string `json:"methods"`      // e.g. ["totp", "backup_codes"]
}

// MFAEnrollResponse carries everything the client needs to provision an
// authenticator app during setup. BackupCodes are shown here once and only
// once in plaintext.
type MFAEnrollResponse struct {
	Secret      string   // Base32 encoded secret for TOTP
	QRCode      string   // otpauth:// URL for QR code generation
	Issuer      string   // Issuer name (e.g., service name)
	Account     string   // Account name (e.g., user email)
	BackupCodes []string // single-use recovery codes, plaintext
}

// MFAStatus summarises a user's MFA state for the status endpoint.
type MFAStatus struct {
	Enabled           bool       `json:"enabled"`
	EnabledAt         *time.Time `json:"enabled_at,omitempty"`
	BackupCodesUnused int        `json:"backup_codes_unused"`
}

// BackupCode is one single-use recovery code, stored as a fingerprint only.
type BackupCode struct {
	ID        string
	UserID    string
	CodeHash  string     // deterministic fingerprint (base64url SHA-256)
	UsedAt    *time.Time // nil while the code is still redeemable
	CreatedAt time.Time
}
