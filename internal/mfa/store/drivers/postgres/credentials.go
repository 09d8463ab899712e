package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"

	"github.com/jackc/pgx/v5/pgconn"
)

type credentialsRepo struct {
	db dbtx
}

func (r *credentialsRepo) CreateCredential(ctx context.Context, c domain.TOTPCredential) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO totp_credentials (principal_id, secret_enc, enrolled_at, confirmed_at)
		VALUES ($1, $2, $3, $4)`,
		c.PrincipalID, c.EncryptedSecret, c.EnrolledAt.UTC(), mapOptionalTime(c.ConfirmedAt),
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return store.ErrAlreadyExists
	}
	return err
}

func (r *credentialsRepo) GetCredential(ctx context.Context, principalID string) (domain.TOTPCredential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT principal_id, secret_enc, enrolled_at, confirmed_at
		FROM totp_credentials
		WHERE principal_id = $1`,
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
		SET confirmed_at = $1
		WHERE principal_id = $2 AND confirmed_at IS NULL`,
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
	_, err := r.db.ExecContext(ctx, `DELETE FROM totp_credentials WHERE principal_id = $1`, principalID)
	return err
}
