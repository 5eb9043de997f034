package sqlite

import (
	"context"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
)

type mfaSecretsRepo struct {
	q dbtx
}

func (r *mfaSecretsRepo) UpsertMFASecret(ctx context.Context, s domain.MFASecret) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO mfa_secrets (user_id, encrypted_secret, iv, confirmed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			encrypted_secret = excluded.encrypted_secret,
			iv = excluded.iv,
			confirmed = excluded.confirmed,
			updated_at = excluded.updated_at`,
		s.UserID, s.EncryptedSecret, s.IV, s.Confirmed, s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (r *mfaSecretsRepo) GetMFASecret(ctx context.Context, userID string) (domain.MFASecret, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT user_id, encrypted_secret, iv, confirmed, created_at, updated_at
		FROM mfa_secrets WHERE user_id = ?`, userID)

	var s domain.MFASecret
	err := row.Scan(&s.UserID, &s.EncryptedSecret, &s.IV, &s.Confirmed, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.MFASecret{}, mapNotFound(err)
	}
	return s, nil
}

func (r *mfaSecretsRepo) ConfirmMFASecret(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE mfa_secrets SET confirmed = 1, updated_at = ? WHERE user_id = ?`,
		time.Now().UTC(), userID)
	return err
}

func (r *mfaSecretsRepo) DeleteMFASecret(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM mfa_secrets WHERE user_id = ?`, userID)
	return err
}
