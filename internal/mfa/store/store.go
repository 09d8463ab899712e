package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and to actively stop callers from accidentally opening
// transactions within transactions.
type Store interface {
	Credentials() Credentials
	BackupCodes() BackupCodes
	Lockouts() Lockouts
	Sessions() Sessions
	UsedCodes() UsedCodes
	BypassGrants() BypassGrants
	AuditEvents() AuditEvents

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., credential
	// replacement). The caller MUST call Commit() or Rollback() on the
	// returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Credentials interface {
	// CreateCredential inserts a new (unconfirmed) credential.
	// Returns ErrAlreadyExists if the principal already has one.
	CreateCredential(ctx context.Context, c domain.TOTPCredential) error

	// GetCredential returns the credential for a principal.
	GetCredential(ctx context.Context, principalID string) (domain.TOTPCredential, error)

	// ConfirmCredential sets confirmed_at if it is not already set.
	ConfirmCredential(ctx context.Context, principalID string, at time.Time) error

	// DeleteCredential removes the credential; backup codes cascade per schema.
	DeleteCredential(ctx context.Context, principalID string) error
}

type BackupCodes interface {
	// CreateBackupCode stores a backup code fingerprint for a principal.
	CreateBackupCode(ctx context.Context, principalID string, codeHash string) error

	// ConsumeBackupCode atomically marks an unconsumed code as consumed
	// (test-and-remove). Returns false if the code does not exist or was
	// already consumed.
	ConsumeBackupCode(ctx context.Context, principalID string, codeHash string, at time.Time) (bool, error)

	// CountUnconsumedBackupCodes returns how many codes remain usable.
	CountUnconsumedBackupCodes(ctx context.Context, principalID string) (int, error)

	// DeleteAllBackupCodes removes every code (consumed or not) for a principal.
	DeleteAllBackupCodes(ctx context.Context, principalID string) error
}

type Lockouts interface {
	// GetLockout returns the lockout record for a principal.
	GetLockout(ctx context.Context, principalID string) (domain.Lockout, error)

	// IncrementFailures atomically bumps consecutive_failures and returns the
	// updated record. Creates the record on first failure.
	IncrementFailures(ctx context.Context, principalID string, at time.Time) (domain.Lockout, error)

	// SetLockedUntil stamps the lockout deadline.
	SetLockedUntil(ctx context.Context, principalID string, until time.Time) error

	// ResetLockout clears the record entirely (success or expired lock).
	ResetLockout(ctx context.Context, principalID string) error

	// DeleteExpiredLockouts is optional housekeeping.
	DeleteExpiredLockouts(ctx context.Context, before time.Time) error
}

type Sessions interface {
	// UpsertSession inserts a session for a (principal, device) pair or
	// refreshes issued_at/expires_at if one already exists.
	UpsertSession(ctx context.Context, s domain.Session) error

	// GetSession returns the session for the exact (principal, device) pair.
	GetSession(ctx context.Context, principalID, deviceFingerprint string) (domain.Session, error)

	// ListSessions returns every session held by a principal across devices.
	ListSessions(ctx context.Context, principalID string) ([]domain.Session, error)

	// DeleteSession removes one device's session.
	DeleteSession(ctx context.Context, principalID, deviceFingerprint string) error

	// DeleteAllSessions removes every session for the principal across all
	// devices (logout or credential reset).
	DeleteAllSessions(ctx context.Context, principalID string) error

	// DeleteExpiredSessions removes sessions past their expiry, returning the
	// number removed (housekeeping).
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int, error)
}

type UsedCodes interface {
	// MarkCodeUsed records a successfully accepted TOTP code fingerprint for
	// replay prevention. Returns false if the code is already recorded and
	// still inside its acceptance window as of now; a row whose window has
	// lapsed is reclaimed in place, so a code value repeating long after its
	// original window is accepted even before housekeeping sweeps the ledger.
	MarkCodeUsed(ctx context.Context, principalID, codeHash string, now, expiresAt time.Time) (bool, error)

	// DeleteExpiredUsedCodes removes ledger rows past their window.
	DeleteExpiredUsedCodes(ctx context.Context, before time.Time) error
}

type BypassGrants interface {
	// CreateBypassGrant stores a new grant (id is ULID).
	CreateBypassGrant(ctx context.Context, g domain.BypassGrant) error

	// GetActiveBypassGrant returns the newest non-revoked, non-expired grant.
	GetActiveBypassGrant(ctx context.Context, principalID string, now time.Time) (domain.BypassGrant, error)

	// RevokeBypassGrants marks every active grant for the principal revoked.
	RevokeBypassGrants(ctx context.Context, principalID string, at time.Time) error

	// DeleteExpiredBypassGrants is optional housekeeping.
	DeleteExpiredBypassGrants(ctx context.Context, before time.Time) error
}

type AuditEvents interface {
	// AppendAuditEvent writes an immutable audit record. There is no update
	// or delete; the trail is append-only.
	AppendAuditEvent(ctx context.Context, e domain.AuditEvent) error

	// ListAuditEvents returns the newest events for a principal, capped at limit.
	ListAuditEvents(ctx context.Context, principalID string, limit int) ([]domain.AuditEvent, error)
}
