package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/audit"
	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
	"github.com/aussiebroadwan/mfagate/pkg/idx"
)

const (
	DefaultLockoutThreshold = 3
	DefaultLockoutDuration  = 15 * time.Minute
)

// LockoutService tracks consecutive verification failures per principal and
// enforces the temporary lock. Failures from every device count against the
// same budget.
type LockoutService struct {
	Store     store.Store
	Audit     audit.Recorder
	Threshold int           // failures before a lock, default 3
	Duration  time.Duration // lock length, default 15m
	Now       func() time.Time
}

func (s *LockoutService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *LockoutService) threshold() int {
	if s.Threshold > 0 {
		return s.Threshold
	}
	return DefaultLockoutThreshold
}

func (s *LockoutService) duration() time.Duration {
	if s.Duration > 0 {
		return s.Duration
	}
	return DefaultLockoutDuration
}

// Status returns the current lockout state. Expired locks are cleared lazily
// here, so a principal is never reported locked past the window.
func (s *LockoutService) Status(ctx context.Context, principalID string) (domain.Lockout, error) {
	lockout, err := s.Store.Lockouts().GetLockout(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Lockout{PrincipalID: principalID}, nil
	}
	if err != nil {
		return domain.Lockout{}, fmt.Errorf("failed to get lockout: %w", err)
	}

	now := s.now()
	if lockout.LockedUntil != nil && !lockout.Active(now) {
		if err := s.Store.Lockouts().ResetLockout(ctx, principalID); err != nil {
			return domain.Lockout{}, fmt.Errorf("failed to clear expired lockout: %w", err)
		}
		s.record(ctx, audit.KindLockoutCleared, principalID, domain.OutcomeSuccess, map[string]string{
			"cause": "window_expired",
		})
		return domain.Lockout{PrincipalID: principalID}, nil
	}
	return lockout, nil
}

// RecordFailure counts one failed attempt and triggers the lock when the
// threshold is reached. Increment and lock run in one transaction so
// concurrent failures from multiple devices cannot skip the transition.
func (s *LockoutService) RecordFailure(ctx context.Context, principalID string) (domain.Lockout, error) {
	now := s.now()
	var (
		lockout   domain.Lockout
		triggered bool
	)

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		lockout, err = tx.Lockouts().IncrementFailures(ctx, principalID, now)
		if err != nil {
			return fmt.Errorf("failed to increment failures: %w", err)
		}

		if lockout.ConsecutiveFailures >= s.threshold() && lockout.LockedUntil == nil {
			until := now.Add(s.duration())
			if err := tx.Lockouts().SetLockedUntil(ctx, principalID, until); err != nil {
				return fmt.Errorf("failed to set lockout: %w", err)
			}
			lockout.LockedUntil = &until
			triggered = true
		}
		return nil
	})
	if err != nil {
		return domain.Lockout{}, err
	}

	if triggered {
		s.record(ctx, audit.KindLockoutTriggered, principalID, domain.OutcomeFailure, map[string]string{
			"consecutive_failures": strconv.Itoa(lockout.ConsecutiveFailures),
			"locked_until":         lockout.LockedUntil.UTC().Format(time.RFC3339),
		})
	}
	return lockout, nil
}

// RecordSuccess resets the failure count after a successful verification.
func (s *LockoutService) RecordSuccess(ctx context.Context, principalID string) error {
	lockout, err := s.Store.Lockouts().GetLockout(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get lockout: %w", err)
	}

	if err := s.Store.Lockouts().ResetLockout(ctx, principalID); err != nil {
		return fmt.Errorf("failed to reset lockout: %w", err)
	}
	if lockout.ConsecutiveFailures > 0 {
		s.record(ctx, audit.KindLockoutCleared, principalID, domain.OutcomeSuccess, map[string]string{
			"cause": "verification_succeeded",
		})
	}
	return nil
}

func (s *LockoutService) record(ctx context.Context, kind, principalID, outcome string, metadata map[string]string) {
	// Audit delivery problems must not turn into verification errors.
	_ = s.Audit.Record(ctx, domain.AuditEvent{
		ID:          idx.New().String(),
		Kind:        kind,
		PrincipalID: principalID,
		Outcome:     outcome,
		Metadata:    metadata,
		CreatedAt:   s.now(),
	})
}
