package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
)

type credentialsRepo struct {
	db dbtx
}

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.TOTPCredential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO totp_credentials (principal_id, secret_enc, enrolled_at, confirmed_at)
		VALUES (?, ?, ?, ?)`,
		c.PrincipalID, c.EncryptedSecret, c.EnrolledAt.UTC(), mapOptionalTime(c.ConfirmedAt),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *credentialsRepo) GetCredential(ctx context.Context, principalID string) (domain.TOTPCredential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT principal_id, secret_enc, enrolled_at, confirmed_at
		FROM totp_credentials
		WHERE principal_id = ?`,
		principalID,
	)

	var (
		c           domain.TOTPCredential
		confirmedAt sql.NullTime
	)
	if err := row.Scan(&c.PrincipalID, &c.EncryptedSecret, &c.EnrolledAt, &confirmedAt); err != nil {
		return domain.TOTPCredential{}, mapNotFound(err)
	}
	c.EnrolledAt = c.EnrolledAt.UTC()
	c.ConfirmedAt = mapNullTimePtr(confirmedAt)
	return c, nil
}

func (r *credentialsRepo) ConfirmCredential(ctx context.Context, principalID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE totp_credentials
		SET confirmed_at = ?
		WHERE principal_id = ? AND confirmed_at IS NULL`,
		at.UTC(), principalID,
	)
	if err != nil {
		return err
	}
	// Already-confirmed credentials are left untouched; confirmation is
	// idempotent so zero affected rows is not an error when the row exists.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, getErr := r.GetCredential(ctx, principalID); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (r *credentialsRepo) DeleteCredential(ctx context.Context, principalID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM totp_credentials WHERE principal_id = ?`, principalID)
	return err
}
