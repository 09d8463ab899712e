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
	backupCodeCount = 8                    // Number of backup codes issued per enrollment
	backupCodeBytes = cryptox.TokenSize128 // 128-bit entropy per backup code
)

// EnrollmentService issues TOTP credentials. The plaintext secret and backup
// codes leave this service exactly once, in the Begin/Regenerate responses;
// only ciphertext and fingerprints are stored.
type EnrollmentService struct {
	Store        store.Store
	Verification *VerificationService
	Cache        SessionCache // may be nil; used to drop sessions on replacement
	Audit        audit.Recorder
	Issuer       string // Issuer name for TOTP provisioning URIs (e.g., "MFAGate")
	Now          func() time.Time
}

func (s *EnrollmentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Begin starts (or with replace, restarts) enrollment for a principal. A
// confirmed credential is only ever replaced when replace is set; replacement
// wipes the old credential, its backup codes and all sessions in one
// transaction. An unconfirmed leftover from an abandoned enrollment is always
// replaced.
func (s *EnrollmentService) Begin(ctx context.Context, principalID, accountName string, replace bool) (domain.EnrollmentMaterial, error) {
	now := s.now()

	existing, err := s.Store.Credentials().GetCredential(ctx, principalID)
	exists := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.EnrollmentMaterial{}, fmt.Errorf("failed to get credential: %w", err)
	}
	if exists && existing.Confirmed() && !replace {
		return domain.EnrollmentMaterial{}, ErrAlreadyEnrolled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.EnrollmentMaterial{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	encryptedSecret, err := cryptox.EncryptSecret([]byte(key.Secret()))
	if err != nil {
		return domain.EnrollmentMaterial{}, fmt.Errorf("failed to encrypt TOTP secret: %w", err)
	}

	backupCodes, err := generateBackupCodes()
	if err != nil {
		return domain.EnrollmentMaterial{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if exists {
			// Cascade removes the old backup codes with the credential.
			if err := tx.Credentials().DeleteCredential(ctx, principalID); err != nil {
				return fmt.Errorf("failed to delete previous credential: %w", err)
			}
			if err := tx.Sessions().DeleteAllSessions(ctx, principalID); err != nil {
				return fmt.Errorf("failed to invalidate sessions: %w", err)
			}
		}

		if err := tx.Credentials().CreateCredential(ctx, domain.TOTPCredential{
			PrincipalID:     principalID,
			EncryptedSecret: encryptedSecret,
			EnrolledAt:      now,
		}); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}

		for _, code := range backupCodes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, principalID, cryptox.FingerprintToken(code)); err != nil {
				return fmt.Errorf("failed to store backup code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.EnrollmentMaterial{}, err
	}

	if exists && s.Cache != nil {
		if err := s.Cache.InvalidateAll(ctx, principalID); err != nil {
			return domain.EnrollmentMaterial{}, fmt.Errorf("failed to drop cached sessions: %w", err)
		}
	}

	s.record(ctx, audit.KindEnrollmentStarted, principalID, domain.OutcomeSuccess, map[string]string{
		"replaced": fmt.Sprintf("%t", exists),
	})

	return domain.EnrollmentMaterial{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		BackupCodes:     backupCodes,
		Issuer:          s.Issuer,
		Account:         accountName,
	}, nil
}

// Confirm activates a pending enrollment once the principal proves they hold
// the secret by producing a valid current code. Confirmation failures never
// consume lockout budget. Confirming an already-confirmed credential is a
// no-op.
func (s *EnrollmentService) Confirm(ctx context.Context, principalID, code string) error {
	if !isTOTPFormat(code) {
		return ErrInvalidCode
	}
	now := s.now()

	cred, err := s.Store.Credentials().GetCredential(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotEnrolled
	}
	if err != nil {
		return fmt.Errorf("failed to get credential: %w", err)
	}
	if cred.Confirmed() {
		return nil
	}

	valid, err := s.Verification.validTOTP(cred, code, now)
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidCode
	}

	// The confirmation code counts as spent so it cannot immediately satisfy
	// a verification challenge as well.
	if _, err := s.Store.UsedCodes().MarkCodeUsed(ctx, principalID, cryptox.FingerprintToken(code), now, now.Add(usedCodeWindow)); err != nil {
		return fmt.Errorf("failed to record used code: %w", err)
	}

	if err := s.Store.Credentials().ConfirmCredential(ctx, principalID, now); err != nil {
		return fmt.Errorf("failed to confirm credential: %w", err)
	}

	s.record(ctx, audit.KindEnrollmentConfirmed, principalID, domain.OutcomeSuccess, nil)
	return nil
}

// RegenerateBackupCodes replaces the full backup-code set. It requires a
// fresh TOTP code; a backup code cannot mint more backup codes.
func (s *EnrollmentService) RegenerateBackupCodes(ctx context.Context, principalID, code string) ([]string, error) {
	if !isTOTPFormat(code) {
		return nil, ErrInvalidCode
	}
	if _, err := s.Verification.VerifyCode(ctx, principalID, code, true); err != nil {
		return nil, err
	}

	backupCodes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, principalID); err != nil {
			return fmt.Errorf("failed to delete backup codes: %w", err)
		}
		for _, c := range backupCodes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, principalID, cryptox.FingerprintToken(c)); err != nil {
				return fmt.Errorf("failed to store backup code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.KindBackupCodesReissued, principalID, domain.OutcomeSuccess, nil)
	return backupCodes, nil
}

func generateBackupCodes() ([]string, error) {
	codes := make([]string, backupCodeCount)
	for i := range codes {
		code, err := cryptox.GenerateToken(backupCodeBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		codes[i] = code
	}
	return codes, nil
}

func (s *EnrollmentService) record(ctx context.Context, kind, principalID, outcome string, metadata map[string]string) {
	_ = s.Audit.Record(ctx, domain.AuditEvent{
		ID:          idx.New().String(),
		Kind:        kind,
		PrincipalID: principalID,
		Outcome:     outcome,
		Metadata:    metadata,
		CreatedAt:   s.now(),
	})
}
