package postgres

import (
	"context"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) UpsertSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mfa_sessions (principal_id, device_fingerprint, verified, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (principal_id, device_fingerprint) DO UPDATE SET
			verified = excluded.verified,
			issued_at = excluded.issued_at,
			expires_at = excluded.expires_at`,
		s.PrincipalID, s.DeviceFingerprint, s.Verified, s.IssuedAt.UTC(), s.ExpiresAt.UTC(),
	)
	return err
}

func (r *sessionsRepo) GetSession(ctx context.Context, principalID, deviceFingerprint string) (domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT principal_id, device_fingerprint, verified, issued_at, expires_at
		FROM mfa_sessions
		WHERE principal_id = $1 AND device_fingerprint = $2`,
		principalID, deviceFingerprint,
	)

	var s domain.Session
	if err := row.Scan(&s.PrincipalID, &s.DeviceFingerprint, &s.Verified, &s.IssuedAt, &s.ExpiresAt); err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.IssuedAt = s.IssuedAt.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.Source = domain.SourcePrimaryStore
	return s, nil
}

func (r *sessionsRepo) ListSessions(ctx context.Context, principalID string) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT principal_id, device_fingerprint, verified, issued_at, expires_at
		FROM mfa_sessions
		WHERE principal_id = $1
		ORDER BY issued_at DESC`,
		principalID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.PrincipalID, &s.DeviceFingerprint, &s.Verified, &s.IssuedAt, &s.ExpiresAt); err != nil {
			return nil, err
		}
		s.IssuedAt = s.IssuedAt.UTC()
		s.ExpiresAt = s.ExpiresAt.UTC()
		s.Source = domain.SourcePrimaryStore
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, principalID, deviceFingerprint string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM mfa_sessions
		WHERE principal_id = $1 AND device_fingerprint = $2`,
		principalID, deviceFingerprint,
	)
	return err
}

func (r *sessionsRepo) DeleteAllSessions(ctx context.Context, principalID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM mfa_sessions WHERE principal_id = $1`, principalID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, before time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM mfa_sessions WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
