package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/stepauth/stepauth/internal/stepup/service"
	"github.com/stepauth/stepauth/internal/stepup/store"
	"github.com/stepauth/stepauth/pkg/httpx"
	"github.com/stepauth/stepauth/pkg/jwtx"
	"github.com/stepauth/stepauth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer       *jwtx.Signer
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store           store.Store
	Orchestrator    *service.Orchestrator
	SettingsService *service.SettingsService
	AdminService    *service.Admin
}

func NewRouter(
	signer *jwtx.Signer,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		signer:       signer,
		issuer:       issuer,
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
	r.registerLogin()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{Orchestrator: r.Orchestrator}

	// POST /login - strict rate limit by IP + username to slow credential
	// stuffing without letting one attacker lock out a whole NAT.
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(h.HandleBegin),
			httpx.RateLimit(httpx.StrictLimit, httpx.IPKey),
		),
	)

	// Challenge round-trip endpoints share the strict limit; every call
	// burns provider quota or an attempt.
	r.Mux.Handle("POST /v1/login/{login_id}/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			httpx.RateLimit(httpx.StrictLimit, httpx.IPKey),
		),
	)

	// Polling is read-only but still talks to the provider.
	r.Mux.Handle("GET /v1/login/{login_id}/poll",
		httpx.Chain(http.HandlerFunc(h.HandlePoll),
			httpx.RateLimit(httpx.ModerateLimit, httpx.IPKey),
		),
	)

	r.Mux.Handle("POST /v1/login/{login_id}/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnrollSelect),
			httpx.RateLimit(httpx.StrictLimit, httpx.IPKey),
		),
	)
	r.Mux.Handle("POST /v1/login/{login_id}/enroll/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleEnrollConfirm),
			httpx.RateLimit(httpx.StrictLimit, httpx.IPKey),
		),
	)

	r.Mux.Handle("DELETE /v1/login/{login_id}",
		httpx.Chain(http.HandlerFunc(h.HandleCancel),
			httpx.RateLimit(httpx.ModerateLimit, httpx.IPKey),
		),
	)
}

func (r *Router) registerAdmin() {
	settingsHandler := &SettingsHandler{SettingsService: r.SettingsService}
	usersHandler := &AdminUsersHandler{AdminService: r.AdminService}
	licenseHandler := &LicenseHandler{AdminService: r.AdminService}

	admin := func(h http.Handler) http.Handler {
		return httpx.Chain(h,
			RequireAdmin(r.signer, r.issuer, r.store),
			httpx.RateLimit(httpx.ModerateLimit, httpx.IPKey),
		)
	}

	r.Mux.Handle("GET /v1/admin/settings", admin(http.HandlerFunc(settingsHandler.HandleGet)))
	r.Mux.Handle("PUT /v1/admin/settings", admin(http.HandlerFunc(settingsHandler.HandlePut)))

	r.Mux.Handle("GET /v1/admin/license", admin(http.HandlerFunc(licenseHandler.HandleGet)))

	r.Mux.Handle("GET /v1/admin/users/{uid}/mfa", admin(http.HandlerFunc(usersHandler.HandleGet)))
	r.Mux.Handle("DELETE /v1/admin/users/{uid}/mfa", admin(http.HandlerFunc(usersHandler.HandleReset)))
	r.Mux.Handle("POST /v1/admin/users/{uid}/mfa/enable", admin(http.HandlerFunc(usersHandler.HandleEnable)))
	r.Mux.Handle("POST /v1/admin/users/{uid}/mfa/disable", admin(http.HandlerFunc(usersHandler.HandleDisable)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.buildVersion, r.startTime))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.store))
}
