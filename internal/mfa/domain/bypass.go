package domain

import "time"

// BypassGrant is a time-bounded, allowlist-scoped exception that satisfies
// the MFA gate without a code being verified. Grants must always be
// distinguishable from genuine verification in the audit trail.
type BypassGrant struct {
	ID          string     `json:"id"`
	PrincipalID string     `json:"principal_id"`
	Reason      string     `json:"reason"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the grant is usable at now.
func (g BypassGrant) Active(now time.Time) bool {
	return g.RevokedAt == nil && now.Before(g.ExpiresAt)
}
