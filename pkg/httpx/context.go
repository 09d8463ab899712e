package httpx

import "context"

type ctxKey string

const (
	// CtxKeyPrincipalID carries the authenticated principal id, injected by
	// PrincipalMiddleware after the fronting gateway asserted primary auth.
	CtxKeyPrincipalID ctxKey = "principal_id"
)

// PrincipalFromCtx returns the authenticated principal id, or "" if absent.
func PrincipalFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyPrincipalID).(string); ok {
		return v
	}
	return ""
}
