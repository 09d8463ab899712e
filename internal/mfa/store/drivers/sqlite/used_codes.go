package sqlite

import (
	"context"
	"time"
)

type usedCodesRepo struct {
	db dbtx
}

// MarkCodeUsed is the accept-once primitive for TOTP replay prevention.
// The primary key on (principal_id, code_hash) makes a second insert within
// the acceptance window a no-op, which we report as "already used". A
// conflicting row whose window has already lapsed is reclaimed instead of
// blocking: the same six-digit value can legitimately recur long before
// housekeeping deletes the old row.
func (r *usedCodesRepo) MarkCodeUsed(ctx context.Context, principalID, codeHash string, now, expiresAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO used_totp_codes (principal_id, code_hash, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT (principal_id, code_hash) DO UPDATE SET expires_at = excluded.expires_at
		WHERE used_totp_codes.expires_at <= ?`,
		principalID, codeHash, expiresAt.UTC(), now.UTC(),
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

func (r *usedCodesRepo) DeleteExpiredUsedCodes(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM used_totp_codes WHERE expires_at < ?`, before.UTC())
	return err
}
