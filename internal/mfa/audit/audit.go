// Package audit records the security events the MFA subsystem emits. Every
// verification attempt, lockout transition, session change and bypass decision
// produces exactly one event, so the trail distinguishes a bypass-based access
// from a code-based one.
package audit

import (
	"context"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
)

// Event kinds, used as both the stored kind column and the AMQP routing key.
const (
	KindEnrollmentStarted    = "enrollment_started"
	KindEnrollmentConfirmed  = "enrollment_confirmed"
	KindBackupCodesReissued  = "backup_codes_reissued"
	KindVerifySuccess        = "verify_success"
	KindVerifyFailure        = "verify_failure"
	KindLockoutTriggered     = "lockout_triggered"
	KindLockoutCleared       = "lockout_cleared"
	KindSessionIssued        = "session_issued"
	KindSessionsInvalidated  = "sessions_invalidated"
	KindBypassGranted        = "bypass_granted"
	KindBypassDenied         = "bypass_denied"
	KindBypassRevoked        = "bypass_revoked"
	KindBypassUsed           = "bypass_used"
	KindAccessDeniedFailsafe = "access_denied_failsafe"
)

// Recorder accepts audit events. Implementations must never block a
// verification on delivery problems longer than the passed context allows.
type Recorder interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}
