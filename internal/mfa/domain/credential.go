package domain

import "time"

// TOTPCredential is the second-factor credential for a principal. The secret
// is stored encrypted at rest; the plaintext only exists in the enrollment
// response, which is delivered exactly once.
type TOTPCredential struct {
	PrincipalID     string
	EncryptedSecret []byte
	EnrolledAt      time.Time
	ConfirmedAt     *time.Time
}

// Confirmed reports whether the credential has been confirmed by a first
// successful code verification. An unconfirmed credential never satisfies an
// MFA challenge.
func (c TOTPCredential) Confirmed() bool { return c.ConfirmedAt != nil }

// BackupCode is a single-use fallback credential, stored as a SHA-256
// fingerprint. Consumed codes stay on record and can never be used again.
type BackupCode struct {
	PrincipalID string
	CodeHash    string
	CreatedAt   time.Time
	ConsumedAt  *time.Time
}

// EnrollmentMaterial is handed to the caller exactly once when enrollment
// begins. Only hashes of the backup codes are retained server-side.
type EnrollmentMaterial struct {
	Secret          string   `json:"secret"`           // Base32 encoded secret for TOTP
	ProvisioningURI string   `json:"provisioning_uri"` // otpauth:// URL for QR code generation
	BackupCodes     []string `json:"backup_codes"`     // plaintext single-use codes, shown once
	Issuer          string   `json:"issuer"`
	Account         string   `json:"account"`
}
