package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/mfagate/internal/mfa/service"
	"github.com/aussiebroadwan/mfagate/pkg/httpx"
	"github.com/aussiebroadwan/mfagate/pkg/mfasdk"
	"github.com/aussiebroadwan/mfagate/pkg/slogx"
)

// EnrollHandler handles enrollment lifecycle endpoints.
type EnrollHandler struct {
	EnrollmentService *service.EnrollmentService
}

// HandleBegin handles POST /v1/mfa/enroll
//
//	@Summary		Begin TOTP enrollment
//	@Description	Generates a TOTP secret and backup codes for the authenticated principal.
//	@Description	The secret and codes are returned exactly once and never again.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		mfasdk.EnrollRequest	true	"Account label and replace flag"
//	@Success		200		{object}	mfasdk.EnrollResponse	"Enrollment material (shown once)"
//	@Failure		400		{object}	mfasdk.GateError		"Malformed request"
//	@Failure		401		{object}	mfasdk.GateError		"Primary authentication missing"
//	@Failure		409		{object}	mfasdk.GateError		"Already enrolled without replace"
//	@Failure		500		{object}	mfasdk.GateError		"Internal server error"
//	@Router			/v1/mfa/enroll [post].
func (h *EnrollHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	principalID := httpx.PrincipalFromCtx(ctx)

	var req mfasdk.EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Account == "" {
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}

	material, err := h.EnrollmentService.Begin(ctx, principalID, req.Account, req.Replace)
	if err != nil {
		log.Warn("enrollment begin rejected", "principal_id", principalID, "err", err)
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mfasdk.EnrollResponse{
		Secret:          material.Secret,
		ProvisioningURI: material.ProvisioningURI,
		BackupCodes:     material.BackupCodes,
		Issuer:          material.Issuer,
		Account:         material.Account,
	})
}

// HandleConfirm handles POST /v1/mfa/enroll/confirm
//
//	@Summary		Confirm TOTP enrollment
//	@Description	Activates the pending credential by proving possession of the secret with a valid code.
//	@Tags			MFA
//	@Accept			json
//	@Success		204	"Credential confirmed"
//	@Failure		400	{object}	mfasdk.GateError	"Code not accepted"
//	@Failure		401	{object}	mfasdk.GateError	"Primary authentication missing"
//	@Failure		409	{object}	mfasdk.GateError	"No pending enrollment"
//	@Failure		500	{object}	mfasdk.GateError	"Internal server error"
//	@Router			/v1/mfa/enroll/confirm [post].
func (h *EnrollHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	principalID := httpx.PrincipalFromCtx(ctx)

	var req mfasdk.ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Code == "" {
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.EnrollmentService.Confirm(ctx, principalID, req.Code); err != nil {
		log.Warn("enrollment confirm rejected", "principal_id", principalID, "err", err)
		writeServiceError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRegenerateBackupCodes handles POST /v1/mfa/backup-codes
//
//	@Summary		Regenerate backup codes
//	@Description	Replaces the backup-code set. Requires a fresh TOTP code; backup codes are not accepted here.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		mfasdk.BackupCodesRegenerateRequest	true	"TOTP code for authorization"
//	@Success		200		{object}	mfasdk.BackupCodesResponse			"New backup codes (shown once)"
//	@Failure		400		{object}	mfasdk.GateError					"Code not accepted"
//	@Failure		401		{object}	mfasdk.GateError					"Primary authentication missing"
//	@Failure		429		{object}	mfasdk.GateError					"Principal locked out"
//	@Failure		500		{object}	mfasdk.GateError					"Internal server error"
//	@Router			/v1/mfa/backup-codes [post].
func (h *EnrollHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	principalID := httpx.PrincipalFromCtx(ctx)

	var req mfasdk.BackupCodesRegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.Code == "" {
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}

	codes, err := h.EnrollmentService.RegenerateBackupCodes(ctx, principalID, req.Code)
	if err != nil {
		log.Warn("backup code regeneration rejected", "principal_id", principalID, "err", err)
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mfasdk.BackupCodesResponse{
		Codes: codes,
	})
}
