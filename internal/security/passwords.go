package security

import (
	"fmt"
	"strings"
)

// Password hashing algorithms accepted by PASSWORD_HASHER.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// PasswordHasher hashes new passwords with the configured algorithm and verifies
// stored hashes of either supported algorithm, picked by the hash prefix.
type PasswordHasher struct {
	algorithm string
	argon     *Argon2
	bcrypt    *Hasher
}

// NewPasswordHasher returns a PasswordHasher. algorithm is argon2id or bcrypt.
func NewPasswordHasher(algorithm string, argonParams Argon2Params, bcryptCost int) (*PasswordHasher, error) {
	switch algorithm {
	case "", AlgorithmArgon2id:
		algorithm = AlgorithmArgon2id
	case AlgorithmBcrypt:
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", algorithm)
	}
	return &PasswordHasher{
		algorithm: algorithm,
		argon:     NewArgon2(argonParams),
		bcrypt:    NewHasher(bcryptCost),
	}, nil
}

// Hash hashes password with the configured algorithm.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.algorithm == AlgorithmBcrypt {
		return h.bcrypt.Hash(password)
	}
	return h.argon.Hash(password)
}

// Verify reports whether password matches encodedHash.
func (h *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return h.argon.Verify(password, encodedHash)
	case strings.HasPrefix(encodedHash, "$2a$"), strings.HasPrefix(encodedHash, "$2b$"), strings.HasPrefix(encodedHash, "$2y$"):
		return h.bcrypt.Verify(password, encodedHash)
	default:
		return false, ErrMalformedHash
	}
}
