// Package handler exposes the auth service over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"saas-core/backend/internal/identity/service"
	"saas-core/backend/internal/platform/httpx"
	"saas-core/backend/internal/server/interceptors"
	"saas-core/backend/internal/tenant/resolver"
	userdomain "saas-core/backend/internal/user/domain"
)

const minPasswordLength = 6

// AuthService is the session manager used by the handlers.
type AuthService interface {
	Login(ctx context.Context, tenantID, email, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) bool
}

// CookieConfig describes the HttpOnly cookie that carries the refresh token.
type CookieConfig struct {
	Name     string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// ParseSameSite maps lax, strict or none to http.SameSite. Anything else is lax.
func ParseSameSite(v string) http.SameSite {
	switch v {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// AuthHandler serves /auth/*.
type AuthHandler struct {
	auth   AuthService
	cookie CookieConfig
	now    func() time.Time
}

// NewAuthHandler returns an AuthHandler.
func NewAuthHandler(auth AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie, now: time.Now}
}

// Routes mounts the auth endpoints on r. requireAuth guards /auth/me.
func (h *AuthHandler) Routes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.With(requireAuth, interceptors.RequireTenantMatch).Get("/me", h.Me)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type meResponse struct {
	UserID   string `json:"userId"`
	TenantID string `json:"tenantId"`
	Role     string `json:"role"`
}

// Login handles POST /auth/login. The tenant comes from the request host.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	tenant, ok := resolver.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeTenantRequired, "tenant could not be resolved from host")
		return
	}
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, err.Error())
		return
	}
	email := userdomain.NormalizeEmail(req.Email)
	if !userdomain.ValidEmail(email) {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "email must be a valid address")
		return
	}
	if len(req.Password) < minPasswordLength {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, "password must be at least 6 characters")
		return
	}

	res, err := h.auth.Login(r.Context(), tenant.ID, email, req.Password)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	h.writeTokens(w, res)
}

// Refresh handles POST /auth/refresh. The token is read from the body, then the cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, decodeErr := h.refreshToken(r)
	if token == "" && decodeErr != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeValidation, decodeErr.Error())
		return
	}
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeTokenInvalid, "refresh token is required")
		return
	}
	res, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, service.ErrTokenInvalid) || errors.Is(err, service.ErrSessionRevoked) {
			h.clearCookie(w)
		}
		h.writeAuthError(w, r, err)
		return
	}
	h.writeTokens(w, res)
}

// Logout handles POST /auth/logout. It always answers 200 and clears the cookie;
// an undecodable body falls back to the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := h.refreshToken(r)
	if token != "" {
		h.auth.Logout(r.Context(), token)
	}
	h.clearCookie(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := interceptors.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthorized, "authentication required")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, meResponse{UserID: id.UserID, TenantID: id.TenantID, Role: id.Role})
}

// refreshToken returns the token from the JSON body, else from the cookie. A body that
// cannot be decoded is reported but does not hide the cookie.
func (h *AuthHandler) refreshToken(r *http.Request) (string, error) {
	var req refreshRequest
	decodeErr := httpx.DecodeJSON(r, &req)
	if decodeErr == nil && req.RefreshToken != "" {
		return req.RefreshToken, nil
	}
	if c, err := r.Cookie(h.cookie.Name); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", decodeErr
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, res *service.AuthResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    res.RefreshToken,
		Path:     h.cookie.Path,
		Expires:  res.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
	expiresIn := int64(res.AccessExpiresAt.Sub(h.now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     h.cookie.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
}

// writeAuthError maps auth service errors to responses. Unexpected errors are logged and hidden.
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeInvalidCredentials, "invalid credentials")
	case errors.Is(err, service.ErrTokenInvalid):
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeTokenInvalid, "invalid or expired refresh token")
	case errors.Is(err, service.ErrSessionRevoked):
		httpx.WriteError(w, http.StatusForbidden, httpx.CodeSessionRevoked, "session revoked")
	default:
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("auth request failed")
		httpx.WriteError(w, http.StatusInternalServerError, httpx.CodeInternal, "internal server error")
	}
}
