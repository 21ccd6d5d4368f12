// Package server assembles the HTTP router and the gRPC server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	audithandler "saas-core/backend/internal/audit/handler"
	identityhandler "saas-core/backend/internal/identity/handler"
	"saas-core/backend/internal/platform/httpx"
	"saas-core/backend/internal/platform/rbac"
	"saas-core/backend/internal/policy/engine"
	"saas-core/backend/internal/server/interceptors"
	tenanthandler "saas-core/backend/internal/tenant/handler"
	"saas-core/backend/internal/tenant/resolver"
	userdomain "saas-core/backend/internal/user/domain"
)

// APIPrefix is the mount point of every HTTP route.
const APIPrefix = "/api/v1"

// RouterDeps holds the HTTP handlers and guards.
type RouterDeps struct {
	Log     zerolog.Logger
	Auth    *identityhandler.AuthHandler
	Tokens  interceptors.AccessVerifier
	Tenants *resolver.Resolver
	Authz   engine.Authorizer
	Audit   audithandler.Lister
	// Health serves GET /health. It runs outside tenant resolution.
	Health http.Handler
}

// NewRouter returns the HTTP API.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		hlog.NewHandler(deps.Log),
		httpx.RequestID,
		middleware.RealIP,
		interceptors.ClientIPHTTP,
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
		httpx.Recoverer,
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, httpx.CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, httpx.CodeNotFound, "method not allowed")
	})

	requireAuth := interceptors.RequireAccessToken(deps.Tokens)
	r.Route(APIPrefix, func(r chi.Router) {
		if deps.Health != nil {
			r.Method(http.MethodGet, "/health", deps.Health)
		}
		r.Group(func(r chi.Router) {
			r.Use(deps.Tenants.Middleware)
			deps.Auth.Routes(r, requireAuth)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, interceptors.RequireTenantMatch, rbac.RequireRoles(deps.Authz, userdomain.RoleAdmin))
				r.Get("/tenant", tenanthandler.Current)
				r.Get("/audit-logs", audithandler.List(deps.Audit))
			})
		})
	})
	return r
}
