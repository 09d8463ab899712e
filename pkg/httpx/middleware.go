package httpx

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/mfagate/pkg/slogx"
)

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain applies middlewares to h in reverse order, so the first middleware
// listed is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// PrimaryAuthCheck reports whether the primary credential check succeeded for
// the principal. The MFA gate is only entered after this returns true.
type PrimaryAuthCheck func(ctx context.Context, principalID string) bool

// PrincipalHeader is set by the fronting gateway once the identity provider
// has verified the primary credential.
const PrincipalHeader = "X-Authenticated-Principal"

// PrincipalMiddleware extracts the authenticated principal from the trusted
// gateway header and rejects requests where primary authentication cannot be
// confirmed. The principal id is injected into the request context.
func PrincipalMiddleware(verified PrimaryAuthCheck) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			principalID := r.Header.Get(PrincipalHeader)
			if principalID == "" {
				writePrincipalError(w, "missing authenticated principal")
				return
			}

			if verified != nil && !verified(ctx, principalID) {
				log.Warn("primary authentication not confirmed", "principal_id", principalID)
				writePrincipalError(w, "primary authentication not confirmed")
				return
			}

			ctx = context.WithValue(ctx, CtxKeyPrincipalID, principalID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writePrincipalError(w http.ResponseWriter, desc string) {
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "unauthenticated",
		"error_description": desc,
	})
}
