// Package handler serves the tenant-scoped audit log over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"saas-core/backend/internal/audit/domain"
	"saas-core/backend/internal/platform/httpx"
	"saas-core/backend/internal/server/interceptors"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Lister lists audit entries of one tenant, newest first.
type Lister interface {
	ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.AuditLog, error)
}

type listResponse struct {
	Items  []*domain.AuditLog `json:"items"`
	Limit  int32              `json:"limit"`
	Offset int32              `json:"offset"`
}

// List handles GET /audit-logs?limit&offset for the caller's tenant.
func List(repo Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := interceptors.IdentityFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
			return
		}
		limit, err := queryInt(r, "limit", defaultPageSize)
		if err != nil || limit < 1 || limit > maxPageSize {
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "limit must be between 1 and 100")
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil || offset < 0 {
			httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "offset must be a non-negative integer")
			return
		}
		items, err := repo.ListByTenant(r.Context(), id.TenantID, limit, offset)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("tenant_id", id.TenantID).Msg("audit: list failed")
			httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "internal server error")
			return
		}
		if items == nil {
			items = []*domain.AuditLog{}
		}
		httpx.WriteJSON(w, http.StatusOK, listResponse{Items: items, Limit: limit, Offset: offset})
	}
}

func queryInt(r *http.Request, key string, def int32) (int32, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	return int32(n), err
}
