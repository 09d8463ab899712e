package http

import (
	"net/http"

	"github.com/aussiebroadwan/mfagate/internal/mfa/service"
	"github.com/aussiebroadwan/mfagate/pkg/httpx"
	"github.com/aussiebroadwan/mfagate/pkg/mfasdk"
	"github.com/aussiebroadwan/mfagate/pkg/slogx"
)

// DecisionHandler handles GET /v1/mfa/decision.
type DecisionHandler struct {
	PolicyService *service.PolicyService
}

// ServeHTTP handles GET /v1/mfa/decision
//
//	@Summary		Evaluate the access decision
//	@Description	Answers whether the principal may proceed on the given device: allow, challenge_required
//	@Description	(with a mode), or denied. Storage outages fail closed to denied.
//	@Tags			MFA
//	@Produce		json
//	@Param			device_fingerprint	query		string					true	"Device fingerprint"
//	@Success		200					{object}	mfasdk.DecisionResponse	"The decision"
//	@Failure		400					{object}	mfasdk.GateError		"Missing device fingerprint"
//	@Failure		401					{object}	mfasdk.GateError		"Primary authentication missing"
//	@Failure		500					{object}	mfasdk.GateError		"Internal server error"
//	@Router			/v1/mfa/decision [get].
func (h *DecisionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	principalID := httpx.PrincipalFromCtx(ctx)

	deviceFingerprint := r.URL.Query().Get("device_fingerprint")
	if deviceFingerprint == "" {
		mfasdk.ErrInvalidRequest.WriteError(w)
		return
	}

	decision, err := h.PolicyService.Decide(ctx, principalID, deviceFingerprint)
	if err != nil {
		log.Error("failed to evaluate decision", "principal_id", principalID, "err", err)
		mfasdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mfasdk.DecisionResponse{
		Outcome: string(decision.Outcome),
		Mode:    string(decision.Mode),
		Reason:  decision.Reason,
	})
}
