package allowlist_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/allowlist"

	"github.com/stretchr/testify/require"
)

func writeAllowlist(t *testing.T, path string, principals string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("principals = "+principals+"\n"), 0o600))
}

func TestAllowlistMembership(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "allowlist.toml")
	writeAllowlist(t, path, `["alice", "bob"]`)

	a, err := allowlist.New(path, slog.Default())
	require.NoError(t, err)

	ok, err := a.IsOnEmergencyAllowlist(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = a.IsOnEmergencyAllowlist(context.Background(), "mallory")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAllowlistMissingFileMeansEmpty(t *testing.T) {
	t.Parallel()

	a, err := allowlist.New(filepath.Join(t.TempDir(), "absent.toml"), slog.Default())
	require.NoError(t, err)

	ok, err := a.IsOnEmergencyAllowlist(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAllowlistMalformedFileRejected(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "allowlist.toml")
	require.NoError(t, os.WriteFile(path, []byte("principals = not-toml"), 0o600))

	_, err := allowlist.New(path, slog.Default())
	require.Error(t, err)
}

func TestAllowlistHotReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "allowlist.toml")
	writeAllowlist(t, path, `["alice"]`)

	a, err := allowlist.New(path, slog.Default())
	require.NoError(t, err)
	require.NoError(t, a.Watch())
	t.Cleanup(func() { _ = a.Close() })

	writeAllowlist(t, path, `["bob"]`)

	require.Eventually(t, func() bool {
		ok, err := a.IsOnEmergencyAllowlist(context.Background(), "bob")
		return err == nil && ok
	}, 5*time.Second, 20*time.Millisecond)

	ok, err := a.IsOnEmergencyAllowlist(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, ok)
}
