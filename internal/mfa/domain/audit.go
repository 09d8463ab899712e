package domain

import "time"

// AuditEvent is an immutable record of a security-relevant action. Events are
// append-only; nothing in this subsystem mutates or deletes them.
type AuditEvent struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	PrincipalID string            `json:"principal_id"`
	Outcome     string            `json:"outcome"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)
