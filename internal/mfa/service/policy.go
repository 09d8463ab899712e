package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/audit"
	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
	"github.com/aussiebroadwan/mfagate/pkg/idx"
)

// PolicyService composes enrollment, session, bypass and policy state into a
// single access decision. It is the only component allowed to answer "may
// this principal pass the MFA gate right now?".
type PolicyService struct {
	Identity IdentitySource
	Policy   PolicySource
	Sessions *SessionService
	Bypass   *BypassService
	Store    store.Store
	Audit    audit.Recorder
	Now      func() time.Time
}

func (s *PolicyService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Decide walks the decision ladder in fixed order: primary authentication,
// policy applicability, active bypass, verified session, then the challenge
// to route into. Any collaborator failure is retried once and then fails
// closed to Denied; this gate never fails open.
func (s *PolicyService) Decide(ctx context.Context, principalID, deviceFingerprint string) (domain.Decision, error) {
	verified, err := retryOnce(func() (bool, error) {
		return s.Identity.PrimaryAuthenticationVerified(ctx, principalID)
	})
	if err != nil {
		return s.failClosed(ctx, principalID, "identity_source", err), nil
	}
	if !verified {
		return domain.Decision{
			Outcome: domain.DecisionDenied,
			Reason:  domain.ReasonPrimaryAuthMissing,
		}, nil
	}

	mandatory, err := retryOnce(func() (bool, error) {
		return s.Policy.IsMFAMandatory(ctx, principalID)
	})
	if err != nil {
		return s.failClosed(ctx, principalID, "policy_source", err), nil
	}
	if !mandatory {
		return domain.Decision{
			Outcome: domain.DecisionAllow,
			Reason:  domain.ReasonMFANotMandatory,
		}, nil
	}

	grant, active, err := retryOnce2(func() (domain.BypassGrant, bool, error) {
		return s.Bypass.IsActive(ctx, principalID)
	})
	if err != nil {
		return s.failClosed(ctx, principalID, "bypass_grants", err), nil
	}
	if active {
		// Bypass-based access must always be distinguishable from a
		// code-verified one, so every Allow served from a grant is recorded.
		s.record(ctx, audit.KindBypassUsed, principalID, domain.OutcomeSuccess, map[string]string{
			"grant_id":           grant.ID,
			"device_fingerprint": deviceFingerprint,
		})
		return domain.Decision{
			Outcome: domain.DecisionAllow,
			Reason:  domain.ReasonBypassActive,
		}, nil
	}

	_, valid, err := retryOnce2(func() (domain.Session, bool, error) {
		return s.Sessions.IsValid(ctx, principalID, deviceFingerprint)
	})
	if err != nil {
		return s.failClosed(ctx, principalID, "sessions", err), nil
	}
	if valid {
		return domain.Decision{
			Outcome: domain.DecisionAllow,
			Reason:  domain.ReasonVerifiedSession,
		}, nil
	}

	cred, err := retryOnce(func() (domain.TOTPCredential, error) {
		return s.Store.Credentials().GetCredential(ctx, principalID)
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return challenge(domain.ModeEnrollment), nil
	case err != nil:
		return s.failClosed(ctx, principalID, "credentials", err), nil
	case !cred.Confirmed():
		return challenge(domain.ModeEnrollmentConfirmation), nil
	default:
		return challenge(domain.ModeVerification), nil
	}
}

func challenge(mode domain.ChallengeMode) domain.Decision {
	return domain.Decision{
		Outcome: domain.DecisionChallengeRequired,
		Mode:    mode,
		Reason:  domain.ReasonChallengeRequired,
	}
}

func (s *PolicyService) failClosed(ctx context.Context, principalID, component string, err error) domain.Decision {
	s.record(ctx, audit.KindAccessDeniedFailsafe, principalID, domain.OutcomeDenied, map[string]string{
		"component": component,
		"error":     err.Error(),
	})
	return domain.Decision{
		Outcome: domain.DecisionDenied,
		Reason:  domain.ReasonStorageUnavailable,
	}
}

// retryOnce runs fn and, on error, tries exactly one more time. Transient
// storage hiccups get a second chance before the gate fails closed.
func retryOnce[T any](fn func() (T, error)) (T, error) {
	v, err := fn()
	if err == nil {
		return v, nil
	}
	return fn()
}

func retryOnce2[T any](fn func() (T, bool, error)) (T, bool, error) {
	v, ok, err := fn()
	if err == nil {
		return v, ok, nil
	}
	return fn()
}

func (s *PolicyService) record(ctx context.Context, kind, principalID, outcome string, metadata map[string]string) {
	_ = s.Audit.Record(ctx, domain.AuditEvent{
		ID:          idx.New().String(),
		Kind:        kind,
		PrincipalID: principalID,
		Outcome:     outcome,
		Metadata:    metadata,
		CreatedAt:   s.now(),
	})
}
