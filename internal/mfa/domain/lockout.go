package domain

import "time"

// Lockout tracks consecutive verification failures for a principal.
// State machine per principal: Clear -> Warning(n < threshold) ->
// Locked(until) -> Clear (after timeout or success).
type Lockout struct {
	PrincipalID         string
	ConsecutiveFailures int
	LockedUntil         *time.Time
	UpdatedAt           time.Time
}

// Active reports whether the lockout window is still in force at now.
func (l Lockout) Active(now time.Time) bool {
	return l.LockedUntil != nil && now.Before(*l.LockedUntil)
}
