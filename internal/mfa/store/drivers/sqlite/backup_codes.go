package sqlite

import (
	"context"
	"time"
)

type backupCodesRepo struct {
	db dbtx
}

func (r *backupCodesRepo) CreateBackupCode(ctx context.Context, principalID string, codeHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO backup_codes (principal_id, code_hash, created_at)
		VALUES (?, ?, ?)`,
		principalID, codeHash, time.Now().UTC(),
	)
	return err
}

// ConsumeBackupCode is the atomic test-and-remove: the UPDATE only matches an
// unconsumed row, so concurrent submissions of the same code race on a single
// row and exactly one wins.
func (r *backupCodesRepo) ConsumeBackupCode(ctx context.Context, principalID string, codeHash string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE backup_codes
		SET consumed_at = ?
		WHERE principal_id = ? AND code_hash = ? AND consumed_at IS NULL`,
		at.UTC(), principalID, codeHash,
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

func (r *backupCodesRepo) CountUnconsumedBackupCodes(ctx context.Context, principalID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM backup_codes
		WHERE principal_id = ? AND consumed_at IS NULL`,
		principalID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *backupCodesRepo) DeleteAllBackupCodes(ctx context.Context, principalID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE principal_id = ?`, principalID)
	return err
}
