package service_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/audit"
	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"
	"github.com/aussiebroadwan/mfagate/internal/mfa/service"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store/drivers/sqlite"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

// testClock is a mutable clock shared by every service in a fixture, so a
// test can fast-forward through lockout windows and session lifetimes.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubIdentity struct {
	verified bool
}

func (s *stubIdentity) PrimaryAuthenticationVerified(context.Context, string) (bool, error) {
	return s.verified, nil
}

type stubAllowlist struct {
	members map[string]bool
}

func (s *stubAllowlist) IsOnEmergencyAllowlist(_ context.Context, principalID string) (bool, error) {
	return s.members[principalID], nil
}

type fixture struct {
	store    *sqlite.Store
	clock    *testClock
	identity *stubIdentity
	allow    *stubAllowlist
	policy   *service.StaticPolicySource

	Enroll   *service.EnrollmentService
	Verify   *service.VerificationService
	Lockout  *service.LockoutService
	Sessions *service.SessionService
	Bypass   *service.BypassService
	Decide   *service.PolicyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "mfagate.db"))
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })

	clock := newTestClock()
	recorder := audit.NewStoreRecorder(s)

	f := &fixture{
		store:    s,
		clock:    clock,
		identity: &stubIdentity{verified: true},
		allow:    &stubAllowlist{members: map[string]bool{}},
		policy:   &service.StaticPolicySource{Mandatory: true},
	}

	f.Lockout = &service.LockoutService{
		Store: s,
		Audit: recorder,
		Now:   clock.Now,
	}
	f.Verify = &service.VerificationService{
		Store:   s,
		Lockout: f.Lockout,
		Audit:   recorder,
		Now:     clock.Now,
	}
	f.Enroll = &service.EnrollmentService{
		Store:        s,
		Verification: f.Verify,
		Audit:        recorder,
		Issuer:       "MFAGate",
		Now:          clock.Now,
	}
	f.Sessions = &service.SessionService{
		Store: s,
		Audit: recorder,
		Now:   clock.Now,
	}
	f.Bypass = &service.BypassService{
		Store:     s,
		Allowlist: f.allow,
		Audit:     recorder,
		Now:       clock.Now,
	}
	f.Decide = &service.PolicyService{
		Identity: f.identity,
		Policy:   f.policy,
		Sessions: f.Sessions,
		Bypass:   f.Bypass,
		Store:    s,
		Audit:    recorder,
		Now:      clock.Now,
	}
	return f
}

// totpCode generates the code an authenticator app would show at the
// fixture's current time.
func (f *fixture) totpCode(t *testing.T, secret string) string {
	t.Helper()

	code, err := totp.GenerateCode(secret, f.clock.Now())
	require.NoError(t, err)
	return code
}

// wrongCode returns a six-digit code guaranteed not to validate at the
// current time, accounting for the one step of allowed skew.
func (f *fixture) wrongCode(t *testing.T, secret string) string {
	t.Helper()

	valid := map[string]bool{}
	for _, d := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		c, err := totp.GenerateCode(secret, f.clock.Now().Add(d))
		require.NoError(t, err)
		valid[c] = true
	}
	for _, candidate := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[candidate] {
			return candidate
		}
	}
	t.Fatal("could not pick an invalid code")
	return ""
}

// enroll walks a principal through Begin and Confirm, then advances the clock
// one TOTP step so the confirmation code cannot collide with later codes.
func (f *fixture) enroll(t *testing.T, principalID string) domain.EnrollmentMaterial {
	t.Helper()

	ctx := context.Background()
	material, err := f.Enroll.Begin(ctx, principalID, principalID+"@example.test", false)
	require.NoError(t, err)
	require.Len(t, material.BackupCodes, 8)

	require.NoError(t, f.Enroll.Confirm(ctx, principalID, f.totpCode(t, material.Secret)))
	f.clock.Advance(30 * time.Second)
	return material
}

// auditKinds returns the recorded event kinds for a principal, oldest first.
func (f *fixture) auditKinds(t *testing.T, principalID string) []string {
	t.Helper()

	events, err := f.store.AuditEvents().ListAuditEvents(context.Background(), principalID, 100)
	require.NoError(t, err)

	kinds := make([]string, len(events))
	for i, e := range events {
		kinds[len(events)-1-i] = e.Kind
	}
	return kinds
}

func containsKind(kinds []string, kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
