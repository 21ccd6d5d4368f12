// Package resolver maps the request host to a tenant and carries it in the request context.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"saas-core/backend/internal/platform/httpx"
	"saas-core/backend/internal/tenant/domain"
	"saas-core/backend/internal/tenant/repository"
)

// ErrUnknownTenant is returned when the host names a tenant slug that does not exist.
var ErrUnknownTenant = errors.New("unknown tenant")

const localSuffix = ".localhost"

// Resolver finds the tenant addressed by a request host.
type Resolver struct {
	tenants    repository.Repository
	rootDomain string
}

// New returns a Resolver. rootDomain is the parent of tenant subdomains (e.g. example.com);
// empty disables subdomain resolution except for *.localhost.
func New(tenants repository.Repository, rootDomain string) *Resolver {
	return &Resolver{tenants: tenants, rootDomain: strings.ToLower(strings.Trim(rootDomain, "."))}
}

// Hostname returns the lower-cased host of r without port. The first value of
// X-Forwarded-Host wins over Host.
func Hostname(r *http.Request) string {
	raw := r.Header.Get("X-Forwarded-Host")
	if raw == "" {
		raw = r.Host
	}
	first, _, _ := strings.Cut(raw, ",")
	first = strings.TrimSpace(first)
	if h, _, err := net.SplitHostPort(first); err == nil {
		first = h
	} else if i := strings.LastIndexByte(first, ':'); i >= 0 && !strings.Contains(first, "]") {
		first = first[:i]
	}
	return strings.ToLower(strings.Trim(first, "[]"))
}

// SlugFromHost returns the tenant slug encoded in host, or "" when host is not a tenant subdomain.
func (res *Resolver) SlugFromHost(host string) string {
	var rest string
	switch {
	case strings.HasSuffix(host, localSuffix):
		rest = strings.TrimSuffix(host, localSuffix)
	case res.rootDomain != "" && strings.HasSuffix(host, "."+res.rootDomain):
		rest = strings.TrimSuffix(host, "."+res.rootDomain)
	default:
		return ""
	}
	slug, _, _ := strings.Cut(rest, ".")
	return slug
}

// Resolve returns the tenant for r. A custom domain match wins; otherwise the subdomain
// slug is looked up. (nil, nil) means the host carries no tenant (public routes).
func (res *Resolver) Resolve(ctx context.Context, r *http.Request) (*domain.Tenant, error) {
	host := Hostname(r)
	if host == "" {
		return nil, nil
	}
	t, err := res.tenants.GetByDomain(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant by domain: %w", err)
	}
	if t != nil {
		return t, nil
	}
	slug := res.SlugFromHost(host)
	if slug == "" {
		return nil, nil
	}
	t, err = res.tenants.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant by slug: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w for host %s", ErrUnknownTenant, host)
	}
	return t, nil
}

// Middleware resolves the tenant of every request and stores it for FromContext.
// Unknown tenants get 400 UNKNOWN_TENANT; lookup failures get 500.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, err := res.Resolve(r.Context(), r)
		if err != nil {
			if errors.Is(err, ErrUnknownTenant) {
				httpx.WriteError(w, http.StatusBadRequest, httpx.CodeUnknownTenant, err.Error())
				return
			}
			hlog.FromRequest(r).Error().Err(err).Msg("tenant resolution failed")
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "internal server error")
			return
		}
		if t != nil {
			r = r.WithContext(WithTenant(r.Context(), t))
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

// WithTenant returns ctx carrying t.
func WithTenant(ctx context.Context, t *domain.Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the tenant resolved for the request, if any.
func FromContext(ctx context.Context) (*domain.Tenant, bool) {
	t, ok := ctx.Value(ctxKey{}).(*domain.Tenant)
	return t, ok && t != nil
}
