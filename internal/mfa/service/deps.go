package service

import "context"

// IdentitySource reports whether the surrounding authentication system has
// already verified the principal's first factor. MFA is strictly a second
// layer; nothing here runs for an unauthenticated principal.
type IdentitySource interface {
	PrimaryAuthenticationVerified(ctx context.Context, principalID string) (bool, error)
}

// PolicySource decides whether a principal must complete MFA at all.
type PolicySource interface {
	IsMFAMandatory(ctx context.Context, principalID string) (bool, error)
}

// Allowlist gates emergency bypass eligibility.
type Allowlist interface {
	IsOnEmergencyAllowlist(ctx context.Context, principalID string) (bool, error)
}

// GatewayIdentitySource trusts the fronting gateway: any principal named in
// the trusted identity header has already passed primary authentication.
type GatewayIdentitySource struct{}

func (GatewayIdentitySource) PrimaryAuthenticationVerified(context.Context, string) (bool, error) {
	return true, nil
}

// StaticPolicySource is the environment-configured default PolicySource:
// MFA is mandatory for everyone, minus an explicit exemption set.
type StaticPolicySource struct {
	Mandatory bool
	Exempt    map[string]struct{}
}

func (p *StaticPolicySource) IsMFAMandatory(_ context.Context, principalID string) (bool, error) {
	if !p.Mandatory {
		return false, nil
	}
	_, exempt := p.Exempt[principalID]
	return !exempt, nil
}
