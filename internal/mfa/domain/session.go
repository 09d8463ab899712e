package domain

import "time"

// SessionSource identifies which store answered a session read.
type SessionSource string

const (
	SourcePrimaryStore   SessionSource = "primary_store"
	SourceCachedFallback SessionSource = "cached_fallback"
)

// Session is an MFA-verified session for one (principal, device) pair.
// Devices hold independent sessions; one device's expiry never affects
// another's.
type Session struct {
	PrincipalID       string        `json:"principal_id"`
	DeviceFingerprint string        `json:"device_fingerprint"`
	Verified          bool          `json:"verified"`
	IssuedAt          time.Time     `json:"issued_at"`
	ExpiresAt         time.Time     `json:"expires_at"`
	Source            SessionSource `json:"source,omitempty"`
}

// Valid reports whether the session may be trusted at now.
func (s Session) Valid(now time.Time) bool {
	return s.Verified && now.Before(s.ExpiresAt)
}

// SessionStatus is the non-authoritative cross-device display signal
// ("N of M known devices currently verified"). It must never be treated as
// an authorization decision.
type SessionStatus struct {
	PrincipalID     string `json:"principal_id"`
	VerifiedDevices int    `json:"verified_devices"`
	KnownDevices    int    `json:"known_devices"`
}
