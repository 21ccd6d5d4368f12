package domain

import (
	"errors"
	"regexp"
	"time"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Tenant is a customer organization. Requests reach it by subdomain slug or custom domain.
type Tenant struct {
	ID        string     `json:"id"`
	Slug      string     `json:"slug"`
	Name      string     `json:"name"`
	Domain    string     `json:"domain,omitempty"` // optional custom domain, lower-case, no port
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Validate validates the tenant for persistence. Returns an error describing the first validation failure.
func (t *Tenant) Validate() error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	if !slugPattern.MatchString(t.Slug) {
		return errors.New("slug must be a lower-case DNS label")
	}
	return nil
}
