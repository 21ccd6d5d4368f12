// Package handler serves the current tenant over HTTP.
package handler

import (
	"net/http"

	"saas-core/backend/internal/platform/httpx"
	"saas-core/backend/internal/tenant/resolver"
)

// Current handles GET /tenant: the tenant resolved from the request host.
func Current(w http.ResponseWriter, r *http.Request) {
	t, ok := resolver.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeTenantRequired, "tenant could not be resolved from host")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}
