package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
)

type bypassGrantsRepo struct {
	db dbtx
}

func (r *bypassGrantsRepo) CreateBypassGrant(ctx context.Context, g domain.BypassGrant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bypass_grants (id, principal_id, reason, granted_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.PrincipalID, g.Reason, g.GrantedAt.UTC(), g.ExpiresAt.UTC(), mapOptionalTime(g.RevokedAt),
	)
	return err
}

func (r *bypassGrantsRepo) GetActiveBypassGrant(ctx context.Context, principalID string, now time.Time) (domain.BypassGrant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, principal_id, reason, granted_at, expires_at, revoked_at
		FROM bypass_grants
		WHERE principal_id = $1 AND revoked_at IS NULL AND expires_at > $2
		ORDER BY granted_at DESC
		LIMIT 1`,
		principalID, now.UTC(),
	)

	var (
		g         domain.BypassGrant
		revokedAt sql.NullTime
	)
	if err := row.Scan(&g.ID, &g.PrincipalID, &g.Reason, &g.GrantedAt, &g.ExpiresAt, &revokedAt); err != nil {
		return domain.BypassGrant{}, mapNotFound(err)
	}
	g.GrantedAt = g.GrantedAt.UTC()
	g.ExpiresAt = g.ExpiresAt.UTC()
	g.RevokedAt = mapNullTimePtr(revokedAt)
	return g, nil
}

func (r *bypassGrantsRepo) RevokeBypassGrants(ctx context.Context, principalID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bypass_grants
		SET revoked_at = $1
		WHERE principal_id = $2 AND revoked_at IS NULL`,
		at.UTC(), principalID,
	)
	return err
}

func (r *bypassGrantsRepo) DeleteExpiredBypassGrants(ctx context.Context, before time.Time) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM bypass_grants WHERE expires_at < $1`, before.UTC())
	return err
}
