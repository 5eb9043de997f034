package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
)

type usersRepo struct {
	q dbtx
}

const userColumns = `id, email, email_verified, first_name, last_name,
	password_hash, mfa_enabled, failed_login_count, locked_until,
	created_at, updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u           domain.User
		mfaEnabled  sql.NullTime
		lockedUntil sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.EmailVerified, &u.FirstName, &u.LastName,
		&u.PasswordHash, &mfaEnabled, &u.FailedLoginCount, &lockedUntil,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.MFAEnabled = mapNullTimePtr(mfaEnabled)
	u.LockedUntil = mapNullTimePtr(lockedUntil)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower(?)`, email)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (
			id, email, email_verified, first_name, last_name,
			password_hash, mfa_enabled, failed_login_count, locked_until,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.EmailVerified, u.FirstName, u.LastName,
		u.PasswordHash, mapOptionalTime(u.MFAEnabled), u.FailedLoginCount,
		mapOptionalTime(u.LockedUntil), u.CreatedAt, u.UpdatedAt,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID)
	return err
}

// RegisterFailedLogin bumps the counter and sets locked_until in one
// statement, so two racing failed logins can't both observe the pre-threshold
// count and skip the lock. Crossing the threshold resets the counter to 0, so
// a failure after the lock elapses starts a fresh attempt budget instead of
// re-locking immediately.
func (r *usersRepo) RegisterFailedLogin(ctx context.Context, userID string, threshold int, lockedUntil time.Time) (bool, error) {
	row := r.q.QueryRowContext(ctx, `
		UPDATE users
		SET failed_login_count = CASE
		        WHEN failed_login_count + 1 >= ? THEN 0
		        ELSE failed_login_count + 1
		    END,
		    locked_until = CASE
		        WHEN failed_login_count + 1 >= ? THEN ?
		        ELSE locked_until
		    END,
		    updated_at = ?
		WHERE id = ?
		RETURNING CASE WHEN failed_login_count = 0 THEN 1 ELSE 0 END`,
		threshold, threshold, lockedUntil, time.Now().UTC(), userID)

	// RETURNING sees the post-update row; the counter is 0 exactly when this
	// call was the one that locked the account.
	var locked int
	if err := row.Scan(&locked); err != nil {
		return false, mapNotFound(err)
	}
	return locked == 1, nil
}

func (r *usersRepo) ResetFailedLogins(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users
		SET failed_login_count = 0, locked_until = NULL, updated_at = ?
		WHERE id = ?`,
		time.Now().UTC(), userID)
	return err
}

func (r *usersRepo) EnableMFA(ctx context.Context, userID string) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET mfa_enabled = ?, updated_at = ? WHERE id = ?`,
		now, now, userID)
	return err
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE users SET mfa_enabled = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID)
	return err
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	return err
}
