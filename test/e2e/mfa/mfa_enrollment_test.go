package mfa_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/mfagate/pkg/mfasdk"

	"github.com/stretchr/testify/require"
)

// TestEnrollmentFlow walks the complete enrollment handshake: begin, inspect
// the one-time material, confirm with a code, and observe the status change.
func TestEnrollmentFlow(t *testing.T) {
	baseURL := newTestServer(t)
	client := mfasdk.NewClient(baseURL, "alice")

	material, err := client.Enroll(t.Context(), mfasdk.EnrollRequest{Account: "alice@example.test"})
	require.NoError(t, err)
	require.NotEmpty(t, material.Secret)
	require.True(t, strings.HasPrefix(material.ProvisioningURI, "otpauth://"))
	require.Len(t, material.BackupCodes, 8)
	require.Equal(t, "mfagate-test", material.Issuer)
	t.Logf("enrollment started, received %d backup codes", len(material.BackupCodes))

	// Pending enrollment: enrolled but not confirmed.
	status, err := client.Status(t.Context())
	require.NoError(t, err)
	require.True(t, status.Enrolled)
	require.False(t, status.Confirmed)

	// A wrong code must not confirm anything.
	requireGateError(t, client.ConfirmEnrollment(t.Context(), wrongCode(t, material.Secret)), mfasdk.ErrorCodeInvalidCode)

	code := totpAt(t, material.Secret, time.Now())
	require.NoError(t, client.ConfirmEnrollment(t.Context(), code))

	status, err = client.Status(t.Context())
	require.NoError(t, err)
	require.True(t, status.Confirmed)
	t.Logf("enrollment confirmed")

	// A second enrollment without the replace flag is refused.
	_, err = client.Enroll(t.Context(), mfasdk.EnrollRequest{Account: "alice@example.test"})
	requireGateError(t, err, mfasdk.ErrorCodeAlreadyEnrolled)
}

// TestEnrollmentReplace re-enrolls with the replace flag and checks the old
// credential stops working.
func TestEnrollmentReplace(t *testing.T) {
	baseURL := newTestServer(t)
	client := mfasdk.NewClient(baseURL, "alice")

	first := enrollAndConfirm(t, client, "alice@example.test")

	second, err := client.Enroll(t.Context(), mfasdk.EnrollRequest{
		Account: "alice@example.test",
		Replace: true,
	})
	require.NoError(t, err)
	require.NotEqual(t, first.Secret, second.Secret)

	// The new credential is unconfirmed again, and the old backup codes died
	// with the old credential.
	status, err := client.Status(t.Context())
	require.NoError(t, err)
	require.True(t, status.Enrolled)
	require.False(t, status.Confirmed)

	require.NoError(t, client.ConfirmEnrollment(t.Context(), totpAt(t, second.Secret, time.Now())))

	_, err = client.Verify(t.Context(), first.BackupCodes[0], "laptop")
	requireGateError(t, err, mfasdk.ErrorCodeInvalidCode)
}

// TestRegenerateBackupCodes replaces the backup-code set and checks old codes
// are dead while new ones work.
func TestRegenerateBackupCodes(t *testing.T) {
	baseURL := newTestServer(t)
	client := mfasdk.NewClient(baseURL, "alice")

	material := enrollAndConfirm(t, client, "alice@example.test")
	oldCode := material.BackupCodes[0]

	// A backup code is not accepted as authorization for regeneration.
	_, err := client.RegenerateBackupCodes(t.Context(), material.BackupCodes[1])
	requireGateError(t, err, mfasdk.ErrorCodeInvalidCode)

	fresh, err := client.RegenerateBackupCodes(t.Context(), totpAt(t, material.Secret, time.Now()))
	require.NoError(t, err)
	require.Len(t, fresh.Codes, 8)
	require.NotContains(t, fresh.Codes, oldCode)

	_, err = client.Verify(t.Context(), oldCode, "laptop")
	requireGateError(t, err, mfasdk.ErrorCodeInvalidCode)

	result, err := client.Verify(t.Context(), fresh.Codes[0], "laptop")
	require.NoError(t, err)
	require.Equal(t, "backup_code", result.Method)
}
