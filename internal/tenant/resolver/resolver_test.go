package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saas-core/backend/internal/tenant/domain"
	"saas-core/backend/internal/tenant/repository"
)

var (
	acme   = &domain.Tenant{ID: "t-acme", Slug: "acme", Name: "Acme Recruiting", Domain: "jobs.acme.com"}
	globex = &domain.Tenant{ID: "t-globex", Slug: "globex", Name: "Globex Staffing"}
)

func newResolver() *Resolver {
	return New(repository.NewMemoryRepository(acme, globex), "example.com")
}

func request(host, forwarded string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil)
	r.Host = host
	if forwarded != "" {
		r.Header.Set("X-Forwarded-Host", forwarded)
	}
	return r
}

func TestHostname(t *testing.T) {
	tests := []struct {
		host, forwarded, want string
	}{
		{"acme.localhost:3000", "", "acme.localhost"},
		{"ACME.Example.com", "", "acme.example.com"},
		{"internal:8080", "globex.example.com, proxy.internal", "globex.example.com"},
		{"internal", " jobs.acme.com:443 ", "jobs.acme.com"},
		{"[::1]:3000", "", "::1"},
		{"", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Hostname(request(tt.host, tt.forwarded)), "host=%q fwd=%q", tt.host, tt.forwarded)
	}
}

func TestSlugFromHost(t *testing.T) {
	res := newResolver()
	assert.Equal(t, "acme", res.SlugFromHost("acme.localhost"))
	assert.Equal(t, "acme", res.SlugFromHost("acme.example.com"))
	assert.Equal(t, "acme", res.SlugFromHost("acme.eu.example.com"))
	assert.Equal(t, "", res.SlugFromHost("example.com"))
	assert.Equal(t, "", res.SlugFromHost("localhost"))
	assert.Equal(t, "", res.SlugFromHost("acme.other.org"))

	noRoot := New(repository.NewMemoryRepository(), "")
	assert.Equal(t, "", noRoot.SlugFromHost("acme.example.com"))
	assert.Equal(t, "acme", noRoot.SlugFromHost("acme.localhost"))
}

func TestResolve(t *testing.T) {
	res := newResolver()
	ctx := context.Background()

	tests := []struct {
		name      string
		host      string
		forwarded string
		wantID    string
		wantErr   error
	}{
		{"custom domain", "jobs.acme.com", "", "t-acme", nil},
		{"local subdomain", "globex.localhost:3000", "", "t-globex", nil},
		{"root subdomain", "acme.example.com", "", "t-acme", nil},
		{"forwarded wins", "localhost:3000", "globex.example.com", "t-globex", nil},
		{"no tenant", "localhost:3000", "", "", nil},
		{"bare root", "example.com", "", "", nil},
		{"unknown slug", "initech.localhost", "", "", ErrUnknownTenant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := res.Resolve(ctx, request(tt.host, tt.forwarded))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantID == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

type failingRepo struct{ repository.Repository }

func (failingRepo) GetByDomain(context.Context, string) (*domain.Tenant, error) {
	return nil, errors.New("db down")
}

func TestMiddleware(t *testing.T) {
	var got *domain.Tenant
	var found bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := newResolver().Middleware(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("acme.localhost", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, found)
	assert.Equal(t, "t-acme", got.ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request("localhost", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, found)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request("initech.localhost", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNKNOWN_TENANT")

	rec = httptest.NewRecorder()
	New(failingRepo{}, "").Middleware(next).ServeHTTP(rec, request("acme.localhost", ""))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
