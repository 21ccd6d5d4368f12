package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"saas-core/backend/internal/security"
	userdomain "saas-core/backend/internal/user/domain"
)

// ErrInvalidCredentials is returned for an unknown, inactive or wrong-password login. The three
// cases are indistinguishable to the caller.
var ErrInvalidCredentials = errors.New("invalid credentials")

// dummyPassword is hashed once and verified against for unknown users so a miss costs
// the same as a wrong password.
const dummyPassword = "saas-core-dummy-password"

// UserRepo is the minimal user repository needed to verify credentials.
type UserRepo interface {
	GetActiveByTenantAndEmail(ctx context.Context, tenantID, email string) (*userdomain.User, error)
}

// PasswordHasher hashes and verifies password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// CredentialVerifier checks a tenant-scoped email and password against the user store.
type CredentialVerifier struct {
	users  UserRepo
	hasher PasswordHasher
	log    zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewCredentialVerifier returns a CredentialVerifier.
func NewCredentialVerifier(users UserRepo, hasher PasswordHasher, log zerolog.Logger) *CredentialVerifier {
	return &CredentialVerifier{users: users, hasher: hasher, log: log}
}

// Verify returns the active user matching tenantID and email whose password verifies.
// Store failures are returned as is; every other miss is ErrInvalidCredentials.
func (v *CredentialVerifier) Verify(ctx context.Context, tenantID, email, password string) (*userdomain.User, error) {
	email = userdomain.NormalizeEmail(email)
	if tenantID == "" || email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := v.users.GetActiveByTenantAndEmail(ctx, tenantID, email)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive || u.PasswordHash == "" {
		v.burn(password)
		return nil, ErrInvalidCredentials
	}
	ok, err := v.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		if errors.Is(err, security.ErrMalformedHash) {
			v.log.Error().Str("tenant_id", tenantID).Str("user_id", u.ID).Msg("credentials: stored password hash is malformed")
		}
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// burn spends one hash verification on the dummy hash.
func (v *CredentialVerifier) burn(password string) {
	v.dummyOnce.Do(func() {
		h, err := v.hasher.Hash(dummyPassword)
		if err != nil {
			v.log.Warn().Err(err).Msg("credentials: cannot hash dummy password")
			return
		}
		v.dummyHash = h
	})
	if v.dummyHash != "" {
		_, _ = v.hasher.Verify(password, v.dummyHash)
	}
}
