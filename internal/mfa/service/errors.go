package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCode covers every rejected code: wrong value, replayed TOTP
	// code, consumed backup code. Callers must not learn which.
	ErrInvalidCode = errors.New("invalid verification code")

	ErrNotEnrolled     = errors.New("MFA not enrolled for this principal")
	ErrAlreadyEnrolled = errors.New("MFA already enrolled for this principal")
	ErrBypassDenied    = errors.New("principal not eligible for emergency bypass")
	ErrReasonRequired  = errors.New("bypass reason is required")

	// ErrLocked is matched with errors.Is; the retry time travels on
	// LockedError, matched with errors.As.
	ErrLocked = errors.New("verification temporarily locked")

	ErrStorageUnavailable = errors.New("storage unavailable")
)

// LockedError reports an active lockout and when it lifts.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("verification locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrLocked }
