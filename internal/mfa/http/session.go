package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/mfagate/internal/mfa/service"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
	"github.com/aussiebroadwan/mfagate/pkg/httpx"
	"github.com/aussiebroadwan/mfagate/pkg/mfasdk"
	"github.com/aussiebroadwan/mfagate/pkg/slogx"
)

// SessionHandler handles session status and invalidation endpoints.
type SessionHandler struct {
	SessionService *service.SessionService
	Store          store.Store
}

// HandleStatus handles GET /v1/mfa/status
//
//	@Summary		Enrollment and session overview
//	@Description	Returns the principal's enrollment state and how many known devices currently hold a
//	@Description	verified session. Display signal only; it is never an authorization decision.
//	@Tags			MFA
//	@Produce		json
//	@Success		200	{object}	mfasdk.StatusResponse	"Status overview"
//	@Failure		401	{object}	mfasdk.GateError		"Primary authentication missing"
//	@Failure		500	{object}	mfasdk.GateError		"Internal server error"
//	@Router			/v1/mfa/status [get].
func (h *SessionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	principalID := httpx.PrincipalFromCtx(ctx)

	resp := mfasdk.StatusResponse{PrincipalID: principalID}

	cred, err := h.Store.Credentials().GetCredential(ctx, principalID)
	switch {
	case err == nil:
		resp.Enrolled = true
		resp.Confirmed = cred.Confirmed()
	case errors.Is(err, store.ErrNotFound):
		// Not enrolled; the zero values already say so.
	default:
		log.Error("failed to load credential", "principal_id", principalID, "err", err)
		mfasdk.ErrServerError.WriteError(w)
		return
	}

	status, err := h.SessionService.Status(ctx, principalID)
	if err != nil {
		log.Error("failed to load session status", "principal_id", principalID, "err", err)
		mfasdk.ErrServerError.WriteError(w)
		return
	}
	resp.VerifiedDevices = status.VerifiedDevices
	resp.KnownDevices = status.KnownDevices

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleLogout handles POST /v1/mfa/logout
//
//	@Summary		Invalidate sessions
//	@Description	Removes the MFA session for one device, or every device when all_devices is set.
//	@Description	The next protected access on an affected device requires re-verification.
//	@Tags			MFA
//	@Accept			json
//	@Param			request	body	mfasdk.LogoutRequest	true	"Device fingerprint or all_devices"
//	@Success		204		"Sessions invalidated"
//	@Failure		400		{object}	mfasdk.GateError	"Malformed request"
//	@Failure		401		{object}	mfasdk.GateError	"Primary authentication missing"
//	@Failure		500		{object}	mfasdk.GateError	"Internal server error"
//	@Router			/v1/mfa/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	principalID := httpx.PrincipalFromCtx(ctx)

	var req mfasdk.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if !req.AllDevices && req.DeviceFingerprint == "" {
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}

	var err error
	if req.AllDevices {
		err = h.SessionService.InvalidateAll(ctx, principalID)
	} else {
		err = h.SessionService.Invalidate(ctx, principalID, req.DeviceFingerprint)
	}
	if err != nil {
		log.Error("failed to invalidate sessions", "principal_id", principalID, "err", err)
		mfasdk.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
