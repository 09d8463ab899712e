package mfa_test

import (
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/allowlist"
	"github.com/aussiebroadwan/mfagate/internal/mfa/audit"
	httpapi "github.com/aussiebroadwan/mfagate/internal/mfa/http"
	"github.com/aussiebroadwan/mfagate/internal/mfa/service"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store/drivers/sqlite"
	"github.com/aussiebroadwan/mfagate/pkg/mfasdk"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

/*
 * End-to-end tests for the MFA gate. Each test stands up the full service
 * (store, allowlist, services, router) behind an httptest server and drives
 * it exclusively through the mfasdk client, the way a fronting gateway would.
 */

const totpStep = 30 * time.Second

// newTestServer wires a complete service instance on a throwaway SQLite
// database and returns its base URL. The given principals are written to the
// emergency bypass allowlist.
func newTestServer(t *testing.T, allowed ...string) string {
	t.Helper()
	dir := t.TempDir()

	st, err := sqlite.NewStore(filepath.Join(dir, "mfagate.db"))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	allowPath := filepath.Join(dir, "allowlist.toml")
	writeAllowlist(t, allowPath, allowed)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	allow, err := allowlist.New(allowPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = allow.Close() })

	recorder := audit.NewStoreRecorder(st)

	lockout := &service.LockoutService{Store: st, Audit: recorder}
	verification := &service.VerificationService{Store: st, Lockout: lockout, Audit: recorder}
	sessions := &service.SessionService{Store: st, Audit: recorder}
	enrollment := &service.EnrollmentService{
		Store:        st,
		Verification: verification,
		Audit:        recorder,
		Issuer:       "mfagate-test",
	}
	bypass := &service.BypassService{Store: st, Allowlist: allow, Audit: recorder}
	policy := &service.PolicyService{
		Identity: service.GatewayIdentitySource{},
		Policy:   &service.StaticPolicySource{Mandatory: true},
		Sessions: sessions,
		Bypass:   bypass,
		Store:    st,
		Audit:    recorder,
	}

	router := httpapi.NewRouter("test", st, logger)
	router.EnrollmentService = enrollment
	router.VerificationService = verification
	router.SessionService = sessions
	router.BypassService = bypass
	router.PolicyService = policy
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

func writeAllowlist(t *testing.T, path string, principals []string) {
	t.Helper()

	var b strings.Builder
	b.WriteString("principals = [")
	for i, p := range principals {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", p)
	}
	b.WriteString("]\n")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
}

// totpAt computes the code an authenticator app would show at the given time.
func totpAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, at)
	require.NoError(t, err)
	return code
}

// wrongCode returns a six-digit code that is valid at no step near now, so a
// submission is guaranteed to be rejected regardless of timing.
func wrongCode(t *testing.T, secret string) string {
	t.Helper()

	now := time.Now()
	valid := make(map[string]struct{})
	for _, d := range []time.Duration{-2 * totpStep, -totpStep, 0, totpStep, 2 * totpStep} {
		valid[totpAt(t, secret, now.Add(d))] = struct{}{}
	}
	for _, candidate := range []string{"000000", "111111", "222222", "333333", "444444", "555555"} {
		if _, ok := valid[candidate]; !ok {
			return candidate
		}
	}
	t.Fatal("no invalid code candidate available")
	return ""
}

// enrollAndConfirm completes the enrollment handshake for the client's
// principal. The confirmation spends the previous step's code, leaving the
// current step unspent for the test body.
func enrollAndConfirm(t *testing.T, client *mfasdk.Client, account string) *mfasdk.EnrollResponse {
	t.Helper()

	material, err := client.Enroll(t.Context(), mfasdk.EnrollRequest{Account: account})
	require.NoError(t, err)

	confirmCode := totpAt(t, material.Secret, time.Now().Add(-totpStep))
	require.NoError(t, client.ConfirmEnrollment(t.Context(), confirmCode))
	return material
}

// requireGateError asserts err is a *mfasdk.GateError with the given code.
func requireGateError(t *testing.T, err error, code string) *mfasdk.GateError {
	t.Helper()

	require.Error(t, err)
	gateErr, ok := err.(*mfasdk.GateError)
	require.True(t, ok, "expected *mfasdk.GateError, got %T: %v", err, err)
	require.Equal(t, code, gateErr.Code)
	return gateErr
}
