package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, badly signed, or expired.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSecretMissing is returned when a signing secret is empty or shared between token kinds.
	ErrSecretMissing = errors.New("token secret missing")
)

// AccessClaims identify the caller of a single request window.
type AccessClaims struct {
	Subject  string
	TenantID string
	Role     string
}

// RefreshClaims are the access claims bound to one refresh session.
type RefreshClaims struct {
	AccessClaims
	SessionID string
}

// accessJWT and refreshJWT are the wire shapes. The session id travels as jti.
type accessJWT struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

type refreshJWT struct {
	jwt.RegisteredClaims
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenCodec signs and verifies HS256 access and refresh JWTs. Each kind has its own
// secret so that one secret cannot mint the other kind. Expiry is checked against
// wall-clock time with no leeway.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenCodec returns a TokenCodec. Both secrets are required and must differ.
func NewTokenCodec(cfg TokenConfig) (*TokenCodec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, ErrSecretMissing
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, ErrInvalidTTL
	}
	return &TokenCodec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the codec that reads time from now. Used by tests.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// SignAccess issues an access token for claims and returns it with its expiry.
func (c *TokenCodec) SignAccess(claims AccessClaims) (string, time.Time, error) {
	now := c.now().UTC()
	expiresAt := now.Add(c.accessTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, accessJWT{
		RegisteredClaims: c.registered(claims.Subject, "", now, expiresAt),
		TenantID:         claims.TenantID,
		Role:             claims.Role,
	})
	token, err := t.SignedString(c.accessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// SignRefresh issues a refresh token for claims and returns it with its expiry.
// The caller persists the expiry on the session record.
func (c *TokenCodec) SignRefresh(claims RefreshClaims) (string, time.Time, error) {
	if claims.SessionID == "" {
		return "", time.Time{}, errors.New("refresh token requires a session id")
	}
	now := c.now().UTC()
	expiresAt := now.Add(c.refreshTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshJWT{
		RegisteredClaims: c.registered(claims.Subject, claims.SessionID, now, expiresAt),
		TenantID:         claims.TenantID,
		Role:             claims.Role,
	})
	token, err := t.SignedString(c.refreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// VerifyAccess checks signature, issuer and expiry of an access token.
func (c *TokenCodec) VerifyAccess(tokenString string) (AccessClaims, error) {
	var claims accessJWT
	if err := c.parse(tokenString, &claims, c.accessSecret); err != nil {
		return AccessClaims{}, err
	}
	if claims.Subject == "" || claims.TenantID == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	return AccessClaims{Subject: claims.Subject, TenantID: claims.TenantID, Role: claims.Role}, nil
}

// VerifyRefresh checks signature, issuer and expiry of a refresh token.
func (c *TokenCodec) VerifyRefresh(tokenString string) (RefreshClaims, error) {
	var claims refreshJWT
	if err := c.parse(tokenString, &claims, c.refreshSecret); err != nil {
		return RefreshClaims{}, err
	}
	if claims.Subject == "" || claims.TenantID == "" || claims.ID == "" {
		return RefreshClaims{}, ErrInvalidToken
	}
	return RefreshClaims{
		AccessClaims: AccessClaims{Subject: claims.Subject, TenantID: claims.TenantID, Role: claims.Role},
		SessionID:    claims.ID,
	}, nil
}

func (c *TokenCodec) registered(subject, id string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        id,
		Subject:   subject,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (c *TokenCodec) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	if tokenString == "" {
		return ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
