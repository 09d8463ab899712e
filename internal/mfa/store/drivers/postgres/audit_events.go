package postgres

import (
	"context"
	"encoding/json"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
)

type auditEventsRepo struct {
	db dbtx
}

func (r *auditEventsRepo) AppendAuditEvent(ctx context.Context, e domain.AuditEvent) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, kind, principal_id, outcome, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Kind, e.PrincipalID, e.Outcome, string(metadata), e.CreatedAt.UTC(),
	)
	return err
}

func (r *auditEventsRepo) ListAuditEvents(ctx context.Context, principalID string, limit int) ([]domain.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, principal_id, outcome, metadata, created_at
		FROM audit_events
		WHERE principal_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		principalID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.AuditEvent
	for rows.Next() {
		var (
			e        domain.AuditEvent
			metadata string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.PrincipalID, &e.Outcome, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		if metadata != "" && metadata != "null" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				return nil, err
			}
		}
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
