package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
)

type lockoutsRepo struct {
	db dbtx
}

func (r *lockoutsRepo) GetLockout(ctx context.Context, principalID string) (domain.Lockout, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT principal_id, consecutive_failures, locked_until, updated_at
		FROM lockouts
		WHERE principal_id = $1`,
		principalID,
	)
	return scanLockout(row)
}

// IncrementFailures relies on the upsert being a single statement so
// concurrent attempts from multiple devices serialize on the row.
func (r *lockoutsRepo) IncrementFailures(ctx context.Context, principalID string, at time.Time) (domain.Lockout, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO lockouts (principal_id, consecutive_failures, locked_until, updated_at)
		VALUES ($1, 1, NULL, $2)
		ON CONFLICT (principal_id) DO UPDATE SET
			consecutive_failures = lockouts.consecutive_failures + 1,
			updated_at = excluded.updated_at
		RETURNING principal_id, consecutive_failures, locked_until, updated_at`,
		principalID, at.UTC(),
	)
	return scanLockout(row)
}

func (r *lockoutsRepo) SetLockedUntil(ctx context.Context, principalID string, until time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE lockouts SET locked_until = $1 WHERE principal_id = $2`,
		until.UTC(), principalID,
	)
	return err
}

func (r *lockoutsRepo) ResetLockout(ctx context.Context, principalID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM lockouts WHERE principal_id = $1`, principalID)
	return err
}

func (r *lockoutsRepo) DeleteExpiredLockouts(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM lockouts
		WHERE locked_until IS NOT NULL AND locked_until < $1`,
		before.UTC(),
	)
	return err
}

func scanLockout(row *sql.Row) (domain.Lockout, error) {
	var (
		l           domain.Lockout
		lockedUntil sql.NullTime
	)
	if err := row.Scan(&l.PrincipalID, &l.ConsecutiveFailures, &lockedUntil, &l.UpdatedAt); err != nil {
		return domain.Lockout{}, mapNotFound(err)
	}
	l.LockedUntil = mapNullTimePtr(lockedUntil)
	l.UpdatedAt = l.UpdatedAt.UTC()
	return l, nil
}
