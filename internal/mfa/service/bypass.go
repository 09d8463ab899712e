package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/audit"
	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
	"github.com/aussiebroadwan/mfagate/pkg/idx"
)

const DefaultBypassMaxTTL = 24 * time.Hour

// BypassService manages emergency bypass grants: time-bounded exceptions for
// principals who lost their second factor. Eligibility is allowlist-gated and
// every grant, denial and revocation lands in the audit trail.
type BypassService struct {
	Store     store.Store
	Allowlist Allowlist
	Audit     audit.Recorder
	MaxTTL    time.Duration // hard cap on grant lifetime, default 24h
	Now       func() time.Time
}

func (s *BypassService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *BypassService) maxTTL() time.Duration {
	if s.MaxTTL > 0 {
		return s.MaxTTL
	}
	return DefaultBypassMaxTTL
}

// Grant issues a bypass for the principal. A zero, negative or over-cap ttl
// is clamped to the cap rather than rejected. Reason is mandatory; it is the
// only context an auditor later has.
func (s *BypassService) Grant(ctx context.Context, principalID, reason string, ttl time.Duration) (domain.BypassGrant, error) {
	if reason == "" {
		return domain.BypassGrant{}, ErrReasonRequired
	}

	eligible, err := s.Allowlist.IsOnEmergencyAllowlist(ctx, principalID)
	if err != nil {
		return domain.BypassGrant{}, fmt.Errorf("failed to check allowlist: %w", err)
	}
	if !eligible {
		s.record(ctx, audit.KindBypassDenied, principalID, domain.OutcomeDenied, map[string]string{
			"reason": reason,
		})
		return domain.BypassGrant{}, ErrBypassDenied
	}

	if ttl <= 0 || ttl > s.maxTTL() {
		ttl = s.maxTTL()
	}

	now := s.now()
	grant := domain.BypassGrant{
		ID:          idx.New().String(),
		PrincipalID: principalID,
		Reason:      reason,
		GrantedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := s.Store.BypassGrants().CreateBypassGrant(ctx, grant); err != nil {
		return domain.BypassGrant{}, fmt.Errorf("failed to store bypass grant: %w", err)
	}

	s.record(ctx, audit.KindBypassGranted, principalID, domain.OutcomeSuccess, map[string]string{
		"grant_id":   grant.ID,
		"reason":     reason,
		"expires_at": grant.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return grant, nil
}

// Revoke ends every active grant the principal holds, effective immediately.
func (s *BypassService) Revoke(ctx context.Context, principalID string) error {
	if err := s.Store.BypassGrants().RevokeBypassGrants(ctx, principalID, s.now()); err != nil {
		return fmt.Errorf("failed to revoke bypass grants: %w", err)
	}
	s.record(ctx, audit.KindBypassRevoked, principalID, domain.OutcomeSuccess, nil)
	return nil
}

// IsActive returns the principal's live grant, if any. Revoked and expired
// grants are invisible here regardless of what is still on disk.
func (s *BypassService) IsActive(ctx context.Context, principalID string) (domain.BypassGrant, bool, error) {
	grant, err := s.Store.BypassGrants().GetActiveBypassGrant(ctx, principalID, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return domain.BypassGrant{}, false, nil
	}
	if err != nil {
		return domain.BypassGrant{}, false, fmt.Errorf("failed to get bypass grant: %w", err)
	}
	return grant, true, nil
}

func (s *BypassService) record(ctx context.Context, kind, principalID, outcome string, metadata map[string]string) {
	_ = s.Audit.Record(ctx, domain.AuditEvent{
		ID:          idx.New().String(),
		Kind:        kind,
		PrincipalID: principalID,
		Outcome:     outcome,
		Metadata:    metadata,
		CreatedAt:   s.now(),
	})
}
