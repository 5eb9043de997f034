package sqlite

import (
	"context"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
)

type mfaSessionsRepo struct {
	q dbtx
}

func (r *mfaSessionsRepo) CreateMFASession(ctx context.Context, s domain.MFASession) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO mfa_sessions (id, user_id, amr, attempts, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, joinAMR(s.AMR), s.Attempts, s.ExpiresAt, s.CreatedAt,
	)
	return err
}

func (r *mfaSessionsRepo) GetMFASession(ctx context.Context, mfaToken string) (domain.MFASession, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, amr, attempts, expires_at, created_at
		FROM mfa_sessions
		WHERE id = ? AND expires_at > ?`,
		mfaToken, time.Now().UTC())

	var (
		s   domain.MFASession
		amr string
	)
	err := row.Scan(&s.ID, &s.UserID, &amr, &s.Attempts, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return domain.MFASession{}, mapNotFound(err)
	}
	s.AMR = splitAMR(amr)
	return s, nil
}

func (r *mfaSessionsRepo) IncrementMFASessionAttempts(ctx context.Context, mfaToken string) (domain.MFASession, error) {
	row := r.q.QueryRowContext(ctx, `
		UPDATE mfa_sessions SET attempts = attempts + 1
		WHERE id = ?
		RETURNING id, user_id, amr, attempts, expires_at, created_at`,
		mfaToken)

	var (
		s   domain.MFASession
		amr string
	)
	err := row.Scan(&s.ID, &s.UserID, &amr, &s.Attempts, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return domain.MFASession{}, mapNotFound(err)
	}
	s.AMR = splitAMR(amr)
	return s, nil
}

// ConsumeMFASession deletes the session; rows-affected tells us whether this
// caller won a race against another consume of the same token.
func (r *mfaSessionsRepo) ConsumeMFASession(ctx context.Context, mfaToken string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM mfa_sessions WHERE id = ?`, mfaToken)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *mfaSessionsRepo) DeleteExpiredMFASessions(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM mfa_sessions WHERE expires_at <= ?`,
		time.Now().UTC())
	return err
}
