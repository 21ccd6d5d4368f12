package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-core/backend/internal/policy/engine"
	"saas-core/backend/internal/server/interceptors"
	userdomain "saas-core/backend/internal/user/domain"
)

type failingAuthorizer struct{}

func (failingAuthorizer) Allow(context.Context, string, []string) (bool, error) {
	return false, errors.New("boom")
}

func TestRequireRoles(t *testing.T) {
	authz, err := engine.NewOPAAuthorizer(context.Background())
	require.NoError(t, err)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	testCases := []struct {
		name     string
		authz    engine.Authorizer
		identity *interceptors.Identity
		status   int
		code     string
	}{
		{"no identity", authz, nil, http.StatusForbidden, "FORBIDDEN"},
		{"member", authz, &interceptors.Identity{UserID: "u", TenantID: "t", Role: "MEMBER"}, http.StatusForbidden, "INSUFFICIENT_ROLE"},
		{"admin", authz, &interceptors.Identity{UserID: "u", TenantID: "t", Role: "ADMIN"}, http.StatusNoContent, ""},
		{"policy error", failingAuthorizer{}, &interceptors.Identity{UserID: "u", TenantID: "t", Role: "ADMIN"}, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tenant", nil)
			if tc.identity != nil {
				req = req.WithContext(interceptors.WithIdentity(req.Context(), *tc.identity))
			}
			rec := httptest.NewRecorder()
			RequireRoles(tc.authz, userdomain.RoleAdmin)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				assert.Contains(t, rec.Body.String(), `"code":"`+tc.code+`"`)
			}
		})
	}
}
