package mfa_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/mfagate/pkg/mfasdk"

	"github.com/stretchr/testify/require"
)

// TestVerifyMintsDeviceSession verifies a TOTP code and checks the resulting
// session is scoped to the submitting device.
func TestVerifyMintsDeviceSession(t *testing.T) {
	baseURL := newTestServer(t)
	client := mfasdk.NewClient(baseURL, "alice")

	material := enrollAndConfirm(t, client, "alice@example.test")

	result, err := client.Verify(t.Context(), totpAt(t, material.Secret, time.Now()), "laptop")
	require.NoError(t, err)
	require.Equal(t, "totp", result.Method)
	require.Equal(t, "alice", result.Session.PrincipalID)
	require.Equal(t, "laptop", result.Session.DeviceFingerprint)
	require.True(t, result.Session.ExpiresAt.After(result.Session.IssuedAt))
	require.Len(t, strings.Split(result.ProofToken, "."), 3, "proof token should be a JWT")

	// The session only covers the laptop; the phone is still challenged.
	decision, err := client.Decision(t.Context(), "laptop")
	require.NoError(t, err)
	require.Equal(t, "allow", decision.Outcome)
	require.Equal(t, "verified_session", decision.Reason)

	decision, err = client.Decision(t.Context(), "phone")
	require.NoError(t, err)
	require.Equal(t, "challenge_required", decision.Outcome)
	require.Equal(t, "verification", decision.Mode)
}

// TestVerifyRejectsReplay submits the same accepted code twice. The second
// submission must fail, and indistinguishably from a plain wrong code.
func TestVerifyRejectsReplay(t *testing.T) {
	baseURL := newTestServer(t)
	client := mfasdk.NewClient(baseURL, "alice")

	material := enrollAndConfirm(t, client, "alice@example.test")
	code := totpAt(t, material.Secret, time.Now())

	_, err := client.Verify(t.Context(), code, "laptop")
	require.NoError(t, err)

	_, err = client.Verify(t.Context(), code, "phone")
	replayErr := requireGateError(t, err, mfasdk.ErrorCodeInvalidCode)

	_, err = client.Verify(t.Context(), wrongCode(t, material.Secret), "phone")
	wrongErr := requireGateError(t, err, mfasdk.ErrorCodeInvalidCode)

	// Same code, same description; nothing reveals why the code was rejected.
	require.Equal(t, wrongErr.Description, replayErr.Description)
}

// TestVerifyBackupCodeSingleUse checks a backup code works exactly once and
// reports the shrinking pool.
func TestVerifyBackupCodeSingleUse(t *testing.T) {
	baseURL := newTestServer(t)
	client := mfasdk.NewClient(baseURL, "alice")

	material := enrollAndConfirm(t, client, "alice@example.test")
	backupCode := material.BackupCodes[0]

	result, err := client.Verify(t.Context(), backupCode, "laptop")
	require.NoError(t, err)
	require.Equal(t, "backup_code", result.Method)
	require.NotNil(t, result.RemainingBackupCodes)
	require.Equal(t, 7, *result.RemainingBackupCodes)

	_, err = client.Verify(t.Context(), backupCode, "phone")
	requireGateError(t, err, mfasdk.ErrorCodeInvalidCode)
	t.Logf("backup code reuse correctly rejected")
}

// TestLockoutAfterRepeatedFailures drives the principal into lockout and
// checks even a valid code is refused until the window passes.
func TestLockoutAfterRepeatedFailures(t *testing.T) {
	baseURL := newTestServer(t)
	client := mfasdk.NewClient(baseURL, "alice")

	material := enrollAndConfirm(t, client, "alice@example.test")

	for i := 0; i < 3; i++ {
		_, err := client.Verify(t.Context(), wrongCode(t, material.Secret), "laptop")
		requireGateError(t, err, mfasdk.ErrorCodeInvalidCode)
	}

	// Locked now; a correct code no longer helps and the response carries the
	// retry time.
	_, err := client.Verify(t.Context(), totpAt(t, material.Secret, time.Now()), "laptop")
	gateErr := requireGateError(t, err, mfasdk.ErrorCodeLocked)
	require.Equal(t, 429, gateErr.StatusCode)

	retryAt, parseErr := time.Parse(time.RFC3339, gateErr.RetryAfter)
	require.NoError(t, parseErr)
	require.True(t, retryAt.After(time.Now()), "retry time should be in the future")
	t.Logf("locked out until %s", gateErr.RetryAfter)
}

// TestLogout invalidates sessions per device and across all devices.
func TestLogout(t *testing.T) {
	baseURL := newTestServer(t)
	client := mfasdk.NewClient(baseURL, "alice")

	material := enrollAndConfirm(t, client, "alice@example.test")

	_, err := client.Verify(t.Context(), material.BackupCodes[0], "laptop")
	require.NoError(t, err)
	_, err = client.Verify(t.Context(), material.BackupCodes[1], "phone")
	require.NoError(t, err)

	status, err := client.Status(t.Context())
	require.NoError(t, err)
	require.Equal(t, 2, status.VerifiedDevices)
	require.Equal(t, 2, status.KnownDevices)

	// Device logout only touches the named device.
	require.NoError(t, client.Logout(t.Context(), mfasdk.LogoutRequest{DeviceFingerprint: "laptop"}))

	decision, err := client.Decision(t.Context(), "laptop")
	require.NoError(t, err)
	require.Equal(t, "challenge_required", decision.Outcome)

	decision, err = client.Decision(t.Context(), "phone")
	require.NoError(t, err)
	require.Equal(t, "allow", decision.Outcome)

	// Global logout clears the rest.
	require.NoError(t, client.Logout(t.Context(), mfasdk.LogoutRequest{AllDevices: true}))

	decision, err = client.Decision(t.Context(), "phone")
	require.NoError(t, err)
	require.Equal(t, "challenge_required", decision.Outcome)
}
