package mfasdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PrincipalHeader names the trusted header carrying the authenticated
// principal. The gateway in front of the service is expected to strip and
// re-set it after primary authentication.
const PrincipalHeader = "X-Authenticated-Principal"

// Client is a client for the MFA gate service.
//
// Principal, when set, is sent on every request as the authenticated
// principal header. Administrative operations (bypass grant/revoke) name
// their subject in the request body instead.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Principal  string
}

// NewClient creates a client acting on behalf of the given principal.
func NewClient(baseURL, principalID string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		Principal: principalID,
	}
}

// Enroll starts (or restarts) TOTP enrollment for the client's principal.
func (c *Client) Enroll(ctx context.Context, req EnrollRequest) (*EnrollResponse, error) {
	var resp EnrollResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/mfa/enroll", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmEnrollment proves possession of the enrolled secret with a first
// valid code, activating the credential.
func (c *Client) ConfirmEnrollment(ctx context.Context, code string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/mfa/enroll/confirm",
		ConfirmRequest{Code: code}, nil, http.StatusNoContent)
}

// RegenerateBackupCodes replaces the backup-code set. Requires a fresh TOTP
// code; backup codes are not accepted as authorization here.
func (c *Client) RegenerateBackupCodes(ctx context.Context, code string) (*BackupCodesResponse, error) {
	var resp BackupCodesResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/mfa/backup-codes",
		BackupCodesRegenerateRequest{Code: code}, &resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verify submits a TOTP or backup code and, on success, returns the minted
// device session and its proof token.
func (c *Client) Verify(ctx context.Context, code, deviceFingerprint string) (*VerifyResponse, error) {
	var resp VerifyResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/mfa/verify",
		VerifyRequest{Code: code, DeviceFingerprint: deviceFingerprint}, &resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Decision asks the gate whether the principal may proceed on the given
// device right now.
func (c *Client) Decision(ctx context.Context, deviceFingerprint string) (*DecisionResponse, error) {
	path := "/v1/mfa/decision?device_fingerprint=" + url.QueryEscape(deviceFingerprint)

	var resp DecisionResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status returns the principal's enrollment and session overview.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/mfa/status", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the session for one device, or every device when
// req.AllDevices is set.
func (c *Client) Logout(ctx context.Context, req LogoutRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/mfa/logout", req, nil, http.StatusNoContent)
}

// GrantBypass issues an emergency bypass grant. Administrative operation;
// the subject principal is named in the request body.
func (c *Client) GrantBypass(ctx context.Context, req BypassRequest) (*BypassResponse, error) {
	var resp BypassResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/mfa/bypass", req, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RevokeBypass revokes every active bypass grant for a principal.
func (c *Client) RevokeBypass(ctx context.Context, principalID string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/mfa/bypass/revoke",
		BypassRevokeRequest{PrincipalID: principalID}, nil, http.StatusNoContent)
}

// GetLiveness checks whether the service process is up.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/livez", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetReadiness checks whether the service's backends are reachable.
func (c *Client) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/readyz", nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}
