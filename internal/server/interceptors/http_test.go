package interceptors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-core/backend/internal/security"
	tenantdomain "saas-core/backend/internal/tenant/domain"
	"saas-core/backend/internal/tenant/resolver"
)

func identityEcho(t *testing.T, got *Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		*got = id
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAccessToken(t *testing.T) {
	valid := signAccess(t, security.AccessClaims{Subject: "u1", TenantID: "t1", Role: "MEMBER"})
	var got Identity
	h := RequireAccessToken(security.NewTestTokenCodec())(identityEcho(t, &got))

	testCases := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"not bearer", "Token " + valid, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"invalid", "Bearer nope", http.StatusUnauthorized, "TOKEN_INVALID"},
		{"valid", "Bearer " + valid, http.StatusNoContent, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				assert.Contains(t, rec.Body.String(), `"code":"`+tc.code+`"`)
			}
		})
	}
	assert.Equal(t, Identity{UserID: "u1", TenantID: "t1", Role: "MEMBER"}, got)
}

func TestRequireTenantMatch(t *testing.T) {
	acme := &tenantdomain.Tenant{ID: "t-acme", Slug: "acme", Name: "Acme"}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireTenantMatch(ok)

	testCases := []struct {
		name     string
		tenant   *tenantdomain.Tenant
		identity *Identity
		status   int
	}{
		{"no tenant no identity", nil, nil, http.StatusNoContent},
		{"identity only", nil, &Identity{UserID: "u", TenantID: "t-globex"}, http.StatusNoContent},
		{"tenant only", acme, nil, http.StatusNoContent},
		{"match", acme, &Identity{UserID: "u", TenantID: "t-acme"}, http.StatusNoContent},
		{"mismatch", acme, &Identity{UserID: "u", TenantID: "t-globex"}, http.StatusForbidden},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			ctx := req.Context()
			if tc.tenant != nil {
				ctx = resolver.WithTenant(ctx, tc.tenant)
			}
			if tc.identity != nil {
				ctx = WithIdentity(ctx, *tc.identity)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req.WithContext(ctx))
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "TENANT_MISMATCH")
			}
		})
	}
}

func TestClientIPHTTP(t *testing.T) {
	var got string
	h := ClientIPHTTP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5123"
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.9", got)
}
