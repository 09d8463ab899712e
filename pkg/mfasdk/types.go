package mfasdk

import "time"

// EnrollRequest starts (or restarts) TOTP enrollment.
type EnrollRequest struct {
	// Account is the human-readable account label baked into the
	// provisioning URI (usually an email address).
	Account string `json:"account"`

	// Replace authorizes replacing a confirmed credential. Replacement wipes
	// the old credential, its backup codes and every session.
	Replace bool `json:"replace,omitempty"`
}

// EnrollResponse carries the enrollment material. The secret and backup
// codes appear here exactly once and are never retrievable again.
type EnrollResponse struct {
	Secret          string   `json:"secret"`
	ProvisioningURI string   `json:"provisioning_uri"`
	BackupCodes     []string `json:"backup_codes"`
	Issuer          string   `json:"issuer"`
	Account         string   `json:"account"`
}

// ConfirmRequest completes enrollment with a first valid code.
type ConfirmRequest struct {
	Code string `json:"code"`
}

// VerifyRequest submits a TOTP or backup code for an MFA challenge.
type VerifyRequest struct {
	Code              string `json:"code"`
	DeviceFingerprint string `json:"device_fingerprint"`
}

// VerifyResponse reports a successful verification and the session it minted.
type VerifyResponse struct {
	// Method is "totp" or "backup_code".
	Method string `json:"method"`

	Session SessionInfo `json:"session"`

	// ProofToken is a signed convenience token describing the session.
	// Session validity remains server-authoritative.
	ProofToken string `json:"proof_token"`

	// RemainingBackupCodes is included after a backup-code verification so
	// the caller can warn the principal when they run low.
	RemainingBackupCodes *int `json:"remaining_backup_codes,omitempty"`
}

// SessionInfo describes one device's MFA session.
type SessionInfo struct {
	PrincipalID       string    `json:"principal_id"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	IssuedAt          time.Time `json:"issued_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	Source            string    `json:"source,omitempty"`
}

// DecisionResponse is the access decision for one (principal, device) pair.
type DecisionResponse struct {
	Outcome string `json:"outcome"`
	Mode    string `json:"mode,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// StatusResponse is the non-authoritative enrollment and session overview.
type StatusResponse struct {
	PrincipalID     string `json:"principal_id"`
	Enrolled        bool   `json:"enrolled"`
	Confirmed       bool   `json:"confirmed"`
	VerifiedDevices int    `json:"verified_devices"`
	KnownDevices    int    `json:"known_devices"`
}

// LogoutRequest invalidates one device's session, or all of them.
type LogoutRequest struct {
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
	AllDevices        bool   `json:"all_devices,omitempty"`
}

// BypassRequest issues an emergency bypass grant.
type BypassRequest struct {
	PrincipalID string `json:"principal_id"`
	Reason      string `json:"reason"`

	// TTLSeconds is clamped server-side to the configured cap (24h by
	// default). Zero means "use the cap".
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

// BypassResponse describes the issued grant.
type BypassResponse struct {
	GrantID     string    `json:"grant_id"`
	PrincipalID string    `json:"principal_id"`
	Reason      string    `json:"reason"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// BypassRevokeRequest revokes every active grant for a principal.
type BypassRevokeRequest struct {
	PrincipalID string `json:"principal_id"`
}

// BackupCodesRegenerateRequest replaces the backup-code set. Requires a
// fresh TOTP code; backup codes are not accepted here.
type BackupCodesRegenerateRequest struct {
	Code string `json:"code"`
}

// BackupCodesResponse carries newly issued backup codes (shown once).
type BackupCodesResponse struct {
	Codes []string `json:"codes"`
}

// MessageResponse is a simple acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is returned by the livez/readyz endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version"`
	Uptime  string        `json:"uptime"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache,omitempty"`
}
