package store

import (
	"context"
	"errors"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable. We can change having the sub-repos as methods later but we do it
// now so we can have more control and actively stop people from accidently
// doing transactions within transactions.
type Store interface {
	Users() Users
	MFASecrets() MFASecrets
	BackupCodes() BackupCodes
	MFASessions() MFASessions
	RefreshTokens() RefreshTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., enabling
	// MFA together with issuing backup codes).
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// This is the recommended way to handle transactions as it automatically
	// handles commit/rollback logic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail is used during login; email lookups are case-insensitive.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// RegisterFailedLogin increments the failed login counter and, when the
	// counter reaches threshold, sets locked_until and resets the counter to 0
	// in the same statement. Returns true when this call is the one that
	// locked the account.
	RegisterFailedLogin(ctx context.Context, userID string, threshold int, lockedUntil time.Time) (bool, error)

	// ResetFailedLogins clears the failed login counter and any lockout.
	ResetFailedLogins(ctx context.Context, userID string) error

	// EnableMFA marks MFA as enabled for a user (sets mfa_enabled timestamp).
	EnableMFA(ctx context.Context, userID string) error

	// DisableMFA clears the mfa_enabled timestamp.
	DisableMFA(ctx context.Context, userID string) error

	// DeleteUser cascades to mfa_secrets, backup_codes, mfa_sessions and
	// refresh_tokens (per schema).
	DeleteUser(ctx context.Context, userID string) error
}

type MFASecrets interface {
	// UpsertMFASecret writes the encrypted TOTP secret for a user, replacing
	// any unconfirmed secret from a previous setup attempt.
	UpsertMFASecret(ctx context.Context, s domain.MFASecret) error

	// GetMFASecret returns the stored secret for a user.
	GetMFASecret(ctx context.Context, userID string) (domain.MFASecret, error)

	// ConfirmMFASecret marks the secret as verified by its owner.
	ConfirmMFASecret(ctx context.Context, userID string) error

	// DeleteMFASecret removes the secret (MFA disable).
	DeleteMFASecret(ctx context.Context, userID string) error
}

type BackupCodes interface {
	// CreateBackupCode stores a backup code fingerprint for a user.
	CreateBackupCode(ctx context.Context, c domain.BackupCode) error

	// RedeemBackupCode marks the matching unused code as used. It is a
	// conditional update so two concurrent redemptions of the same code
	// cannot both succeed. Returns false when no unused code matched.
	RedeemBackupCode(ctx context.Context, userID, codeHash string, usedAt time.Time) (bool, error)

	// DeleteAllBackupCodes removes all backup codes for a user (regeneration
	// and MFA disable).
	DeleteAllBackupCodes(ctx context.Context, userID string) error

	// CountUnusedBackupCodes returns the number of still-redeemable codes.
	CountUnusedBackupCodes(ctx context.Context, userID string) (int, error)
}

type MFASessions interface {
	// CreateMFASession creates a new MFA challenge session.
	CreateMFASession(ctx context.Context, session domain.MFASession) error

	// GetMFASession retrieves an MFA session by its token (only if not expired).
	GetMFASession(ctx context.Context, mfaToken string) (domain.MFASession, error)

	// IncrementMFASessionAttempts increments the failed attempt counter for an
	// MFA session. Returns the updated MFASession with the new attempt count.
	IncrementMFASessionAttempts(ctx context.Context, mfaToken string) (domain.MFASession, error)

	// ConsumeMFASession deletes the session, returning false if it was already
	// gone. Single-use semantics hang off this being a conditional delete.
	ConsumeMFASession(ctx context.Context, mfaToken string) (bool, error)

	// DeleteExpiredMFASessions removes all expired MFA sessions (housekeeping).
	DeleteExpiredMFASessions(ctx context.Context) error
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint, revoked or
	// not. Callers decide how to report revoked vs expired.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken flips revoked=1, sets updated_at.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// RevokeAllUserRefreshTokens bulk revocation for a user (logout-all,
	// password reset, MFA disable).
	RevokeAllUserRefreshTokens(ctx context.Context, userID string) error

	// DeleteExpiredRefreshTokens is optional housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}
