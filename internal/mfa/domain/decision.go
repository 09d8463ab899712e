package domain

// DecisionOutcome is the Policy Evaluator's answer to "is this principal
// currently allowed past the MFA gate?".
type DecisionOutcome string

const (
	DecisionAllow             DecisionOutcome = "allow"
	DecisionChallengeRequired DecisionOutcome = "challenge_required"
	DecisionDenied            DecisionOutcome = "denied"
)

// ChallengeMode tells the caller which flow to route the principal into when
// a challenge is required.
type ChallengeMode string

const (
	ModeEnrollment             ChallengeMode = "enrollment"
	ModeEnrollmentConfirmation ChallengeMode = "enrollment_confirmation"
	ModeVerification           ChallengeMode = "verification"
)

// Decision reason codes, machine-readable and distinct from any user-facing
// message.
const (
	ReasonPrimaryAuthMissing = "primary_auth_missing"
	ReasonMFANotMandatory    = "mfa_not_mandatory"
	ReasonBypassActive       = "bypass_active"
	ReasonVerifiedSession    = "verified_session"
	ReasonStorageUnavailable = "storage_unavailable"
	ReasonChallengeRequired  = "challenge_required"
)

// Decision is the single authorization answer composed from session, bypass
// and enrollment state.
type Decision struct {
	Outcome DecisionOutcome `json:"outcome"`
	Mode    ChallengeMode   `json:"mode,omitempty"`   // set when Outcome == challenge_required
	Reason  string          `json:"reason,omitempty"` // machine-readable basis for the decision
}
