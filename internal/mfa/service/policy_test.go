package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/audit"
	"github.com/aussiebroadwan/mfagate/internal/mfa/domain"

	"github.com/stretchr/testify/require"
)

func TestDecideDeniesWithoutPrimaryAuth(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.identity.verified = false

	decision, err := f.Decide.Decide(context.Background(), "alice", "device-a")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionDenied, decision.Outcome)
	require.Equal(t, domain.ReasonPrimaryAuthMissing, decision.Reason)
}

func TestDecideAllowsWhenMFANotMandatory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.policy.Mandatory = false

	decision, err := f.Decide.Decide(context.Background(), "alice", "device-a")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionAllow, decision.Outcome)
	require.Equal(t, domain.ReasonMFANotMandatory, decision.Reason)
}

func TestDecideChallengeModes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	t.Run("not enrolled routes to enrollment", func(t *testing.T) {
		decision, err := f.Decide.Decide(ctx, "alice", "device-a")
		require.NoError(t, err)
		require.Equal(t, domain.DecisionChallengeRequired, decision.Outcome)
		require.Equal(t, domain.ModeEnrollment, decision.Mode)
	})

	t.Run("unconfirmed routes to confirmation", func(t *testing.T) {
		_, err := f.Enroll.Begin(ctx, "alice", "alice@example.test", false)
		require.NoError(t, err)

		decision, err := f.Decide.Decide(ctx, "alice", "device-a")
		require.NoError(t, err)
		require.Equal(t, domain.DecisionChallengeRequired, decision.Outcome)
		require.Equal(t, domain.ModeEnrollmentConfirmation, decision.Mode)
	})

	t.Run("confirmed without session routes to verification", func(t *testing.T) {
		material, err := f.Enroll.Begin(ctx, "alice", "alice@example.test", true)
		require.NoError(t, err)
		require.NoError(t, f.Enroll.Confirm(ctx, "alice", f.totpCode(t, material.Secret)))

		decision, err := f.Decide.Decide(ctx, "alice", "device-a")
		require.NoError(t, err)
		require.Equal(t, domain.DecisionChallengeRequired, decision.Outcome)
		require.Equal(t, domain.ModeVerification, decision.Mode)
		require.Equal(t, domain.ReasonChallengeRequired, decision.Reason)
	})
}

func TestDecideAllowsVerifiedSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t, "alice")

	_, _, err := f.Sessions.Issue(ctx, "alice", "device-a")
	require.NoError(t, err)

	decision, err := f.Decide.Decide(ctx, "alice", "device-a")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionAllow, decision.Outcome)
	require.Equal(t, domain.ReasonVerifiedSession, decision.Reason)

	// The session is device-scoped: another device is still challenged.
	decision, err = f.Decide.Decide(ctx, "alice", "device-b")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionChallengeRequired, decision.Outcome)
}

func TestDecideBypassTakesPrecedenceAndIsAudited(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.allow.members["alice"] = true

	_, err := f.Bypass.Grant(ctx, "alice", "authenticator lost", time.Hour)
	require.NoError(t, err)

	// No enrollment, no session, but the grant lets the principal through,
	// and the trail says so.
	decision, err := f.Decide.Decide(ctx, "alice", "device-a")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionAllow, decision.Outcome)
	require.Equal(t, domain.ReasonBypassActive, decision.Reason)

	kinds := f.auditKinds(t, "alice")
	require.True(t, containsKind(kinds, audit.KindBypassUsed))

	// After expiry the same principal is challenged again.
	f.clock.Advance(2 * time.Hour)
	decision, err = f.Decide.Decide(ctx, "alice", "device-a")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionChallengeRequired, decision.Outcome)
}

func TestDecideFailsClosedOnStorageFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.enroll(t, "alice")

	// Take the database away; every storage-backed rung now errors.
	require.NoError(t, f.store.Close())

	decision, err := f.Decide.Decide(context.Background(), "alice", "device-a")
	require.NoError(t, err)
	require.Equal(t, domain.DecisionDenied, decision.Outcome)
	require.Equal(t, domain.ReasonStorageUnavailable, decision.Reason)
}
