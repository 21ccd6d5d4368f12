package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "admin@acme.com", NormalizeEmail("  Admin@ACME.com "))
}

func TestValidEmail(t *testing.T) {
	for _, ok := range []string{"admin@acme.com", "a.b+c@sub.example.org"} {
		assert.True(t, ValidEmail(ok), ok)
	}
	for _, bad := range []string{"", "admin", "@acme.com", "admin@", "Admin <admin@acme.com>", "a b@acme.com"} {
		assert.False(t, ValidEmail(bad), bad)
	}
}

func TestUser_Validate(t *testing.T) {
	u := &User{TenantID: "t1", Email: "a@b.c", PasswordHash: "h"}
	assert.NoError(t, u.Validate())
	assert.Equal(t, RoleMember, u.Role)

	assert.Error(t, (&User{Email: "a@b.c", PasswordHash: "h"}).Validate())
	assert.Error(t, (&User{TenantID: "t1", PasswordHash: "h"}).Validate())
	assert.Error(t, (&User{TenantID: "t1", Email: "a@b.c"}).Validate())
	assert.Error(t, (&User{TenantID: "t1", Email: "a@b.c", PasswordHash: "h", Role: "OWNER"}).Validate())
}
