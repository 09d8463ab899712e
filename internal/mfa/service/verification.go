package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/audit"
	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
	"github.com/aussiebroadwan/mfagate/pkg/cryptox"
	"github.com/aussiebroadwan/mfagate/pkg/idx"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30 // seconds per TOTP step
	totpSkew   = 1  // accepted clock drift, in steps, either direction

	// usedCodeWindow covers the current step plus the skew allowance, so an
	// accepted code stays in the replay ledger until it can no longer
	// validate anyway.
	usedCodeWindow = (2*totpSkew + 1) * totpPeriod * time.Second
)

// Verification methods reported to the audit trail and callers.
const (
	MethodTOTP       = "totp"
	MethodBackupCode = "backup_code"
)

// VerificationService is the single entry point for checking MFA codes. It
// owns the check ordering: lockout first, then enrollment, then the code
// itself, with replay prevention applied before success is ever reported.
type VerificationService struct {
	Store   store.Store
	Lockout *LockoutService
	Audit   audit.Recorder
	Now     func() time.Time
}

func (s *VerificationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// VerifyCode checks a submitted code against the principal's credential.
// Six-digit codes take the TOTP path, anything else the backup-code path.
// On success it returns the method used.
//
// An active lockout rejects the attempt no matter what consumeLockoutBudget
// says; the flag only controls whether a rejected code feeds the failure
// counter. A budget-free flow that skipped the lockout gate would hand a
// locked-out attacker an unmetered guessing channel, and a correct guess
// through it would clear the lock via RecordSuccess.
func (s *VerificationService) VerifyCode(ctx context.Context, principalID, code string, consumeLockoutBudget bool) (string, error) {
	now := s.now()

	lockout, err := s.Lockout.Status(ctx, principalID)
	if err != nil {
		return "", err
	}
	if lockout.Active(now) {
		return "", &LockedError{Until: *lockout.LockedUntil}
	}

	cred, err := s.Store.Credentials().GetCredential(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotEnrolled
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credential: %w", err)
	}
	if !cred.Confirmed() {
		// An unconfirmed credential never satisfies a challenge.
		return "", ErrNotEnrolled
	}

	method := MethodBackupCode
	if isTOTPFormat(code) {
		method = MethodTOTP
	}

	ok, err := s.checkCode(ctx, cred, method, code, now)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", s.rejectCode(ctx, principalID, method, consumeLockoutBudget)
	}

	if err := s.Lockout.RecordSuccess(ctx, principalID); err != nil {
		return "", err
	}
	s.record(ctx, audit.KindVerifySuccess, principalID, domain.OutcomeSuccess, map[string]string{
		"method": method,
	})
	return method, nil
}

func (s *VerificationService) checkCode(ctx context.Context, cred domain.TOTPCredential, method, code string, now time.Time) (bool, error) {
	switch method {
	case MethodTOTP:
		valid, err := s.validTOTP(cred, code, now)
		if err != nil || !valid {
			return false, err
		}
		// Record the code as used before reporting success. A conflict means
		// a concurrent or earlier attempt already spent it: replay, rejected.
		fresh, err := s.Store.UsedCodes().MarkCodeUsed(ctx, cred.PrincipalID, cryptox.FingerprintToken(code), now, now.Add(usedCodeWindow))
		if err != nil {
			return false, fmt.Errorf("failed to record used code: %w", err)
		}
		return fresh, nil

	default:
		consumed, err := s.Store.BackupCodes().ConsumeBackupCode(ctx, cred.PrincipalID, cryptox.FingerprintToken(code), now)
		if err != nil {
			return false, fmt.Errorf("failed to consume backup code: %w", err)
		}
		return consumed, nil
	}
}

func (s *VerificationService) rejectCode(ctx context.Context, principalID, method string, consumeLockoutBudget bool) error {
	metadata := map[string]string{"method": method}
	if consumeLockoutBudget {
		lockout, err := s.Lockout.RecordFailure(ctx, principalID)
		if err != nil {
			return err
		}
		metadata["consecutive_failures"] = fmt.Sprintf("%d", lockout.ConsecutiveFailures)
	}
	s.record(ctx, audit.KindVerifyFailure, principalID, domain.OutcomeFailure, metadata)

	// The caller learns the code was rejected, never why.
	return ErrInvalidCode
}

// validTOTP decrypts the stored secret and validates the code with one step
// of allowed skew either side of now.
func (s *VerificationService) validTOTP(cred domain.TOTPCredential, code string, now time.Time) (bool, error) {
	secret, err := cryptox.DecryptSecret(cred.EncryptedSecret)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}

	valid, err := totp.ValidateCustom(code, string(secret), now, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate TOTP code: %w", err)
	}
	return valid, nil
}

func isTOTPFormat(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (s *VerificationService) record(ctx context.Context, kind, principalID, outcome string, metadata map[string]string) {
	_ = s.Audit.Record(ctx, domain.AuditEvent{
		ID:          idx.New().String(),
		Kind:        kind,
		PrincipalID: principalID,
		Outcome:     outcome,
		Metadata:    metadata,
		CreatedAt:   s.now(),
	})
}
