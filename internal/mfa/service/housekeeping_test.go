package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/service"

	"github.com/stretchr/testify/require"
)

func TestCleanupRemovesOnlyExpiredRows(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.allow.members["alice"] = true

	material := f.enroll(t, "alice")
	_, err := f.Verify.VerifyCode(ctx, "alice", f.totpCode(t, material.Secret), true)
	require.NoError(t, err)
	_, _, err = f.Sessions.Issue(ctx, "alice", "device-a")
	require.NoError(t, err)
	_, err = f.Bypass.Grant(ctx, "alice", "authenticator lost", time.Hour)
	require.NoError(t, err)

	hk := service.NewHousekeepingService(f.store, slog.Default(), time.Hour)
	hk.Now = f.clock.Now

	// Nothing has expired yet; cleanup must not change any outcome.
	hk.Cleanup(ctx)

	_, valid, err := f.Sessions.IsValid(ctx, "alice", "device-a")
	require.NoError(t, err)
	require.True(t, valid)

	_, active, err := f.Bypass.IsActive(ctx, "alice")
	require.NoError(t, err)
	require.True(t, active)

	// Push everything past its lifetime and sweep again.
	f.clock.Advance(9 * time.Hour)
	hk.Cleanup(ctx)

	sessions, err := f.store.Sessions().ListSessions(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, sessions)

	_, active, err = f.Bypass.IsActive(ctx, "alice")
	require.NoError(t, err)
	require.False(t, active)

	// The principal can simply verify again afterwards.
	method, err := f.Verify.VerifyCode(ctx, "alice", f.totpCode(t, material.Secret), true)
	require.NoError(t, err)
	require.Equal(t, service.MethodTOTP, method)
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	hk := service.NewHousekeepingService(f.store, slog.Default(), time.Hour)
	hk.Start()
	hk.Stop()
}
