package interceptors

import (
	"net"
	"net/http"

	"saas-core/backend/internal/platform/httpx"
	"saas-core/backend/internal/tenant/resolver"
)

// RequireAccessToken rejects requests without a valid Bearer access token with 401 and
// stores the caller identity in the request context.
func RequireAccessToken(tokens AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := parseBearer(r.Header.Get("Authorization"))
			if token == "" {
				httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "missing bearer token")
				return
			}
			claims, err := tokens.VerifyAccess(token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeTokenInvalid, "invalid or expired access token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identityOf(claims))))
		})
	}
}

// RequireTenantMatch rejects with 403 when the tenant resolved from the host differs from the
// token's tenant. It passes when either side is absent.
func RequireTenantMatch(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, hasTenant := resolver.FromContext(r.Context())
		id, hasIdentity := IdentityFromContext(r.Context())
		if hasTenant && hasIdentity && id.TenantID != "" && t.ID != id.TenantID {
			httpx.WriteError(w, http.StatusForbidden, httpx.CodeTenantMismatch, "token does not belong to this tenant")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIPHTTP stores the caller's address for audit records. Run it after chi's RealIP so
// forwarded addresses are already applied to RemoteAddr.
func ClientIPHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), ip)))
	})
}
