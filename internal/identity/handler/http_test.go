package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-core/backend/internal/identity/service"
	"saas-core/backend/internal/security"
	"saas-core/backend/internal/server/interceptors"
	tenantdomain "saas-core/backend/internal/tenant/domain"
	"saas-core/backend/internal/tenant/resolver"
)

var acme = &tenantdomain.Tenant{ID: "t-acme", Slug: "acme", Name: "Acme Recruiting"}

type fakeAuth struct {
	loginArgs  []string
	refreshArg string
	logoutArg  string
	result     *service.AuthResult
	err        error
}

func (f *fakeAuth) Login(ctx context.Context, tenantID, email, password string) (*service.AuthResult, error) {
	f.loginArgs = []string{tenantID, email, password}
	return f.result, f.err
}

func (f *fakeAuth) Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error) {
	f.refreshArg = refreshToken
	return f.result, f.err
}

func (f *fakeAuth) Logout(ctx context.Context, refreshToken string) bool {
	f.logoutArg = refreshToken
	return true
}

func okResult() *service.AuthResult {
	now := time.Now()
	return &service.AuthResult{
		AccessToken:      "access-1",
		AccessExpiresAt:  now.Add(15 * time.Minute),
		RefreshToken:     "refresh-1",
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour),
		UserID:           "u1",
		TenantID:         acme.ID,
	}
}

func newRouter(auth AuthService, tenant *tenantdomain.Tenant) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if tenant != nil {
				req = req.WithContext(resolver.WithTenant(req.Context(), tenant))
			}
			next.ServeHTTP(w, req)
		})
	})
	h := NewAuthHandler(auth, CookieConfig{Name: "rt", Path: "/api/v1/auth", SameSite: http.SameSiteLaxMode})
	h.Routes(r, interceptors.RequireAccessToken(security.NewTestTokenCodec()))
	return r
}

func do(h http.Handler, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Status string `json:"status"`
		Code   string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	return body.Code
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "rt" {
			return c
		}
	}
	return nil
}

func TestLogin_Success(t *testing.T) {
	auth := &fakeAuth{result: okResult()}
	rec := do(newRouter(auth, acme), http.MethodPost, "/auth/login", `{"email":" Admin@Acme.com ","password":"admin123"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"t-acme", "admin@acme.com", "admin123"}, auth.loginArgs)

	var body tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "access-1", body.AccessToken)
	assert.Equal(t, "refresh-1", body.RefreshToken)
	assert.Equal(t, "Bearer", body.TokenType)
	assert.InDelta(t, 900, body.ExpiresIn, 2)

	c := refreshCookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, "refresh-1", c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, "/api/v1/auth", c.Path)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestLogin_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		tenant *tenantdomain.Tenant
		body   string
		status int
		code   string
	}{
		{"no tenant", nil, `{"email":"a@a.com","password":"secret1"}`, http.StatusBadRequest, "TENANT_REQUIRED"},
		{"bad email", acme, `{"email":"nope","password":"secret1"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"short password", acme, `{"email":"a@a.com","password":"12345"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown field", acme, `{"email":"a@a.com","password":"secret1","tenantId":"x"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"malformed", acme, `{"email":`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &fakeAuth{result: okResult()}
			rec := do(newRouter(auth, tc.tenant), http.MethodPost, "/auth/login", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
			assert.Nil(t, auth.loginArgs, "service not called")
		})
	}
}

func TestAuthErrors(t *testing.T) {
	testCases := []struct {
		err         error
		status      int
		code        string
		clearCookie bool
	}{
		{service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS", false},
		{service.ErrTokenInvalid, http.StatusUnauthorized, "TOKEN_INVALID", true},
		{service.ErrSessionRevoked, http.StatusForbidden, "SESSION_REVOKED", true},
		{errors.New("db down"), http.StatusInternalServerError, "INTERNAL_ERROR", false},
	}
	for _, tc := range testCases {
		t.Run(tc.code, func(t *testing.T) {
			auth := &fakeAuth{err: tc.err}
			h := newRouter(auth, acme)

			rec := do(h, http.MethodPost, "/auth/refresh", `{"refreshToken":"r"}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
			assert.NotContains(t, rec.Body.String(), "db down")
			c := refreshCookie(rec)
			if tc.clearCookie {
				require.NotNil(t, c)
				assert.Equal(t, -1, c.MaxAge)
			} else {
				assert.Nil(t, c)
			}
		})
	}
}

func TestRefresh_TokenSources(t *testing.T) {
	t.Run("cookie", func(t *testing.T) {
		auth := &fakeAuth{result: okResult()}
		rec := do(newRouter(auth, acme), http.MethodPost, "/auth/refresh", "", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "rt", Value: "from-cookie"})
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "from-cookie", auth.refreshArg)
		assert.Equal(t, "refresh-1", refreshCookie(rec).Value)
	})
	t.Run("body wins", func(t *testing.T) {
		auth := &fakeAuth{result: okResult()}
		do(newRouter(auth, acme), http.MethodPost, "/auth/refresh", `{"refreshToken":"from-body"}`, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "rt", Value: "from-cookie"})
		})
		assert.Equal(t, "from-body", auth.refreshArg)
	})
	t.Run("non-JSON body falls back to cookie", func(t *testing.T) {
		auth := &fakeAuth{result: okResult()}
		rec := do(newRouter(auth, acme), http.MethodPost, "/auth/refresh", "", func(r *http.Request) {
			r.Header.Set("Content-Type", "text/plain")
			r.AddCookie(&http.Cookie{Name: "rt", Value: "from-cookie"})
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "from-cookie", auth.refreshArg)
	})
	t.Run("malformed body without cookie", func(t *testing.T) {
		auth := &fakeAuth{result: okResult()}
		rec := do(newRouter(auth, acme), http.MethodPost, "/auth/refresh", `{"refreshToken":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
		assert.Empty(t, auth.refreshArg)
	})
	t.Run("missing", func(t *testing.T) {
		auth := &fakeAuth{result: okResult()}
		rec := do(newRouter(auth, acme), http.MethodPost, "/auth/refresh", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "TOKEN_INVALID", errorCode(t, rec))
		assert.Empty(t, auth.refreshArg)
	})
}

func TestLogout_AlwaysOK(t *testing.T) {
	withCookie := func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "rt", Value: "cookie-token"}) }
	contentType := func(ct string) func(*http.Request) {
		return func(r *http.Request) { r.Header.Set("Content-Type", ct) }
	}
	for _, tc := range []struct {
		name    string
		body    string
		mutate  []func(*http.Request)
		revoked string
	}{
		{"no token", "", nil, ""},
		{"cookie", "", []func(*http.Request){withCookie}, "cookie-token"},
		{"body", `{"refreshToken":"body-token"}`, nil, "body-token"},
		{"text/plain with cookie", "", []func(*http.Request){withCookie, contentType("text/plain")}, "cookie-token"},
		{"form with cookie", "", []func(*http.Request){withCookie, contentType("application/x-www-form-urlencoded")}, "cookie-token"},
		{"unknown field with cookie", `{"foo":1}`, []func(*http.Request){withCookie}, "cookie-token"},
		{"malformed with cookie", `not json`, []func(*http.Request){withCookie}, "cookie-token"},
		{"malformed without cookie", `not json`, nil, ""},
	} {
		t.Run(tc.name, func(t *testing.T) {
			auth := &fakeAuth{}
			rec := do(newRouter(auth, nil), http.MethodPost, "/auth/logout", tc.body, tc.mutate...)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
			assert.Equal(t, tc.revoked, auth.logoutArg)
			require.NotNil(t, refreshCookie(rec))
			assert.Equal(t, -1, refreshCookie(rec).MaxAge)
		})
	}
}

func TestMe(t *testing.T) {
	token, _, err := security.NewTestTokenCodec().SignAccess(security.AccessClaims{Subject: "u1", TenantID: "t-acme", Role: "ADMIN"})
	require.NoError(t, err)
	bearer := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }

	rec := do(newRouter(&fakeAuth{}, acme), http.MethodGet, "/auth/me", "", bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"userId":"u1","tenantId":"t-acme","role":"ADMIN"}`, rec.Body.String())

	globex := &tenantdomain.Tenant{ID: "t-globex", Slug: "globex", Name: "Globex"}
	rec = do(newRouter(&fakeAuth{}, globex), http.MethodGet, "/auth/me", "", bearer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "TENANT_MISMATCH", errorCode(t, rec))

	rec = do(newRouter(&fakeAuth{}, acme), http.MethodGet, "/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestParseSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, ParseSameSite("strict"))
	assert.Equal(t, http.SameSiteNoneMode, ParseSameSite("none"))
	assert.Equal(t, http.SameSiteLaxMode, ParseSameSite("lax"))
	assert.Equal(t, http.SameSiteLaxMode, ParseSameSite(""))
}
