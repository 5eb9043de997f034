package sqlite

import (
	"context"
	"time"

	"github.com/fernwehlabs/lifelog/internal/auth/domain"
)

type backupCodesRepo struct {
	q dbtx
}

func (r *backupCodesRepo) CreateBackupCode(ctx context.Context, c domain.BackupCode) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO backup_codes (id, user_id, code_hash, used_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.CodeHash, mapOptionalTime(c.UsedAt), c.CreatedAt,
	)
	return err
}

// RedeemBackupCode is a conditional update: the `used_at IS NULL` predicate
// makes sqlite the arbiter when two redemptions of the same code race, so
// exactly one caller sees rows-affected = 1.
func (r *backupCodesRepo) RedeemBackupCode(ctx context.Context, userID, codeHash string, usedAt time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE backup_codes SET used_at = ?
		WHERE user_id = ? AND code_hash = ? AND used_at IS NULL`,
		usedAt, userID, codeHash,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *backupCodesRepo) DeleteAllBackupCodes(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id = ?`, userID)
	return err
}

func (r *backupCodesRepo) CountUnusedBackupCodes(ctx context.Context, userID string) (int, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM backup_codes WHERE user_id = ? AND used_at IS NULL`, userID)

	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
