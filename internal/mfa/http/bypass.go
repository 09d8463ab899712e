package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/service"
	"github.com/aussiebroadwan/mfagate/pkg/httpx"
	"github.com/aussiebroadwan/mfagate/pkg/mfasdk"
	"github.com/aussiebroadwan/mfagate/pkg/slogx"
)

// BypassHandler handles emergency bypass endpoints. These are operator
// operations; the subject principal is named in the request body.
type BypassHandler struct {
	BypassService *service.BypassService
}

// HandleGrant handles POST /v1/mfa/bypass
//
//	@Summary		Issue an emergency bypass grant
//	@Description	Grants a time-bounded MFA exception for an allowlisted principal. The TTL is clamped
//	@Description	to the configured cap (24h by default) and a reason is mandatory.
//	@Tags			Bypass
//	@Accept			json
//	@Produce		json
//	@Param			request	body		mfasdk.BypassRequest	true	"Subject, reason and TTL"
//	@Success		200		{object}	mfasdk.BypassResponse	"The issued grant"
//	@Failure		400		{object}	mfasdk.GateError		"Missing subject or reason"
//	@Failure		403		{object}	mfasdk.GateError		"Principal not on the allowlist"
//	@Failure		500		{object}	mfasdk.GateError		"Internal server error"
//	@Router			/v1/mfa/bypass [post].
func (h *BypassHandler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req mfasdk.BypassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.PrincipalID == "" {
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	grant, err := h.BypassService.Grant(ctx, req.PrincipalID, req.Reason, ttl)
	if err != nil {
		log.Warn("bypass grant rejected", "principal_id", req.PrincipalID, "err", err)
		writeServiceError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mfasdk.BypassResponse{
		GrantID:     grant.ID,
		PrincipalID: grant.PrincipalID,
		Reason:      grant.Reason,
		ExpiresAt:   grant.ExpiresAt,
	})
}

// HandleRevoke handles POST /v1/mfa/bypass/revoke
//
//	@Summary		Revoke bypass grants
//	@Description	Immediately revokes every active bypass grant for a principal.
//	@Tags			Bypass
//	@Accept			json
//	@Success		204	"Grants revoked"
//	@Failure		400	{object}	mfasdk.GateError	"Missing subject"
//	@Failure		500	{object}	mfasdk.GateError	"Internal server error"
//	@Router			/v1/mfa/bypass/revoke [post].
func (h *BypassHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req mfasdk.BypassRevokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("failed to parse request", "err", err)
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}
	if req.PrincipalID == "" {
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.BypassService.Revoke(ctx, req.PrincipalID); err != nil {
		log.Error("failed to revoke bypass grants", "principal_id", req.PrincipalID, "err", err)
		mfasdk.ErrServerError.WriteError(w)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
