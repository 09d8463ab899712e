package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/mfagate/internal/mfa/service"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
	"github.com/aussiebroadwan/mfagate/pkg/httpx"
	"github.com/aussiebroadwan/mfagate/pkg/mfasdk"
	"github.com/aussiebroadwan/mfagate/pkg/slogx"
)

// VerifyHandler handles POST /v1/mfa/verify.
type VerifyHandler struct {
	VerificationService *service.VerificationService
	SessionService      *service.SessionService
	Store               store.Store
}

// ServeHTTP handles POST /v1/mfa/verify
//
//	@Summary		Verify an MFA code
//	@Description	Accepts a TOTP or backup code and, on success, mints an 8-hour session for the device.
//	@Description	The response never distinguishes wrong, replayed, and expired codes.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		mfasdk.VerifyRequest	true	"Code and device fingerprint"
//	@Success		200		{object}	mfasdk.VerifyResponse	"Session and proof token"
//	@Failure		400		{object}	mfasdk.GateError		"Code not accepted"
//	@Failure		401		{object}	mfasdk.GateError		"Primary authentication missing"
//	@Failure		409		{object}	mfasdk.GateError		"Not enrolled"
//	@Failure		429		{object}	mfasdk.GateError		"Principal locked out"
//	@Failure		500		{object}	mfasdk.GateError		"Internal server error"
//	@Router			/v1/mfa/verify [post].
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	principalID := httpx.PrincipalFromCtx(ctx)

	var req mfasdk.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Code == "" || req.DeviceFingerprint == "" {
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}

	method, err := h.VerificationService.VerifyCode(ctx, principalID, req.Code, true)
	if err != nil {
		log.Warn("verification rejected", "principal_id", principalID, "err", err)
		writeServiceError(w, log, err)
		return
	}

	session, proofToken, err := h.SessionService.Issue(ctx, principalID, req.DeviceFingerprint)
	if err != nil {
		log.Error("failed to issue session", "principal_id", principalID, "err", err)
		mfasdk.ErrServerError.WriteError(w)
		return
	}

	resp := mfasdk.VerifyResponse{
		Method: method,
		Session: mfasdk.SessionInfo{
			PrincipalID:       session.PrincipalID,
			DeviceFingerprint: session.DeviceFingerprint,
			IssuedAt:          session.IssuedAt,
			ExpiresAt:         session.ExpiresAt,
		},
		ProofToken: proofToken,
	}

	// Backup-code consumption is reported back so callers can warn the
	// principal when they run low. Best effort; the count is advisory.
	if method == service.MethodBackupCode {
		if remaining, err := h.Store.BackupCodes().CountUnconsumedBackupCodes(ctx, principalID); err == nil {
			resp.RemainingBackupCodes = &remaining
		}
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}
