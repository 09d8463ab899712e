package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/audit"
	"github.com/aussiebroadwan/mfagate/internal/mfa/service"

	"github.com/stretchr/testify/require"
)

func TestGrantRequiresAllowlistMembership(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.Bypass.Grant(ctx, "mallory", "lost phone", time.Hour)
	require.ErrorIs(t, err, service.ErrBypassDenied)

	kinds := f.auditKinds(t, "mallory")
	require.True(t, containsKind(kinds, audit.KindBypassDenied))
}

func TestGrantRequiresReason(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.allow.members["alice"] = true

	_, err := f.Bypass.Grant(context.Background(), "alice", "", time.Hour)
	require.ErrorIs(t, err, service.ErrReasonRequired)
}

func TestGrantClampsTTL(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.allow.members["alice"] = true
	ctx := context.Background()

	t.Run("over the cap", func(t *testing.T) {
		grant, err := f.Bypass.Grant(ctx, "alice", "authenticator lost", 72*time.Hour)
		require.NoError(t, err)
		require.True(t, grant.ExpiresAt.Equal(f.clock.Now().Add(24*time.Hour)))
	})

	t.Run("unspecified", func(t *testing.T) {
		grant, err := f.Bypass.Grant(ctx, "alice", "authenticator lost", 0)
		require.NoError(t, err)
		require.True(t, grant.ExpiresAt.Equal(f.clock.Now().Add(24*time.Hour)))
	})

	t.Run("under the cap kept", func(t *testing.T) {
		grant, err := f.Bypass.Grant(ctx, "alice", "authenticator lost", 2*time.Hour)
		require.NoError(t, err)
		require.True(t, grant.ExpiresAt.Equal(f.clock.Now().Add(2*time.Hour)))
	})
}

func TestGrantExpires(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.allow.members["alice"] = true
	ctx := context.Background()

	_, err := f.Bypass.Grant(ctx, "alice", "authenticator lost", time.Hour)
	require.NoError(t, err)

	_, active, err := f.Bypass.IsActive(ctx, "alice")
	require.NoError(t, err)
	require.True(t, active)

	f.clock.Advance(time.Hour + time.Minute)

	_, active, err = f.Bypass.IsActive(ctx, "alice")
	require.NoError(t, err)
	require.False(t, active)
}

func TestRevokeEndsGrantImmediately(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.allow.members["alice"] = true
	ctx := context.Background()

	_, err := f.Bypass.Grant(ctx, "alice", "authenticator lost", time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.Bypass.Revoke(ctx, "alice"))

	_, active, err := f.Bypass.IsActive(ctx, "alice")
	require.NoError(t, err)
	require.False(t, active)

	kinds := f.auditKinds(t, "alice")
	require.True(t, containsKind(kinds, audit.KindBypassGranted))
	require.True(t, containsKind(kinds, audit.KindBypassRevoked))
}
