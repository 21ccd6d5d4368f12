// Package rbac guards HTTP routes by the caller's role claim.
package rbac

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"saas-core/backend/internal/platform/httpx"
	"saas-core/backend/internal/policy/engine"
	"saas-core/backend/internal/server/interceptors"
	userdomain "saas-core/backend/internal/user/domain"
)

// RequireRoles allows the request only when the caller's role is one of roles. It must run after
// the access-token middleware: a missing identity is 403 FORBIDDEN, a disallowed role is 403
// INSUFFICIENT_ROLE. A policy evaluation failure denies with 500.
func RequireRoles(authz engine.Authorizer, roles ...userdomain.Role) func(http.Handler) http.Handler {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := interceptors.IdentityFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusForbidden, httpx.CodeForbidden, "authentication required")
				return
			}
			allow, err := authz.Allow(r.Context(), id.Role, allowed)
			if err != nil {
				hlog.FromRequest(r).Error().Err(err).Str("user_id", id.UserID).Msg("rbac: policy evaluation failed")
				httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "internal server error")
				return
			}
			if !allow {
				httpx.WriteError(w, http.StatusForbidden, httpx.CodeInsufficientRole, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
