package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/cache"
	"github.com/aussiebroadwan/mfagate/internal/mfa/service"
	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
	"github.com/aussiebroadwan/mfagate/pkg/httpx"
	"github.com/aussiebroadwan/mfagate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	// Identity confirms primary authentication for the principal named in the
	// gateway header. Nil means the header is trusted as-is.
	Identity httpx.PrimaryAuthCheck

	// Cache is optional; when nil the readiness probe skips the cache check.
	Cache *cache.SessionCache

	EnrollmentService   *service.EnrollmentService
	VerificationService *service.VerificationService
	SessionService      *service.SessionService
	BypassService       *service.BypassService
	PolicyService       *service.PolicyService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerEnrollment()
	r.registerVerification()
	r.registerDecision()
	r.registerSessions()
	r.registerBypass()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			MFA Gate Service API
//	@version		0.1.0
//	@description	Second-factor verification gate sitting behind the identity provider.
//	@description
//	@description				Principals reach this service only after primary authentication; the
//	@description				fronting gateway asserts the identity via the X-Authenticated-Principal header.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/mfagate
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerEnrollment() {
	h := &EnrollHandler{
		EnrollmentService: r.EnrollmentService,
	}

	// POST /mfa/enroll - moderate rate limit by principal
	securedBegin := httpx.Chain(http.HandlerFunc(h.HandleBegin),
		httpx.PrincipalMiddleware(r.Identity),
		httpx.RateLimitByPrincipal(httpx.ModerateLimit),
	)

	// POST /mfa/enroll/confirm - strict rate limit by principal (code submission)
	securedConfirm := httpx.Chain(http.HandlerFunc(h.HandleConfirm),
		httpx.PrincipalMiddleware(r.Identity),
		httpx.RateLimitByPrincipal(httpx.StrictLimit),
	)

	// POST /mfa/backup-codes - strict rate limit by principal (code submission)
	securedRegenerate := httpx.Chain(http.HandlerFunc(h.HandleRegenerateBackupCodes),
		httpx.PrincipalMiddleware(r.Identity),
		httpx.RateLimitByPrincipal(httpx.StrictLimit),
	)

	r.Mux.Handle("POST /v1/mfa/enroll", securedBegin)
	r.Mux.Handle("POST /v1/mfa/enroll/confirm", securedConfirm)
	r.Mux.Handle("POST /v1/mfa/backup-codes", securedRegenerate)
}

func (r *Router) registerVerification() {
	h := &VerifyHandler{
		VerificationService: r.VerificationService,
		SessionService:      r.SessionService,
		Store:               r.store,
	}

	// POST /mfa/verify - strict rate limit by principal (prevent brute force of codes)
	secured := httpx.Chain(h,
		httpx.PrincipalMiddleware(r.Identity),
		httpx.RateLimitByPrincipal(httpx.StrictLimit),
	)

	r.Mux.Handle("POST /v1/mfa/verify", secured)
}

func (r *Router) registerDecision() {
	h := &DecisionHandler{PolicyService: r.PolicyService}

	// GET /mfa/decision - lenient rate limit (called on every protected request)
	secured := httpx.Chain(h,
		httpx.PrincipalMiddleware(r.Identity),
		httpx.RateLimitByPrincipal(httpx.LenientLimit),
	)

	r.Mux.Handle("GET /v1/mfa/decision", secured)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{
		SessionService: r.SessionService,
		Store:          r.store,
	}

	// GET /mfa/status - lenient rate limit by principal (display signal)
	securedStatus := httpx.Chain(http.HandlerFunc(h.HandleStatus),
		httpx.PrincipalMiddleware(r.Identity),
		httpx.RateLimitByPrincipal(httpx.LenientLimit),
	)

	// POST /mfa/logout - moderate rate limit by principal
	securedLogout := httpx.Chain(http.HandlerFunc(h.HandleLogout),
		httpx.PrincipalMiddleware(r.Identity),
		httpx.RateLimitByPrincipal(httpx.ModerateLimit),
	)

	r.Mux.Handle("GET /v1/mfa/status", securedStatus)
	r.Mux.Handle("POST /v1/mfa/logout", securedLogout)
}

func (r *Router) registerBypass() {
	h := &BypassHandler{BypassService: r.BypassService}

	// Bypass endpoints are operator-facing and name their subject in the body.
	// They sit behind the deployment's admin network boundary, so rate limit
	// by IP rather than principal.
	r.Mux.Handle("POST /v1/mfa/bypass",
		httpx.Chain(http.HandlerFunc(h.HandleGrant),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/mfa/bypass/revoke",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Cache),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
