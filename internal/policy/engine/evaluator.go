// Package engine evaluates role authorization decisions with an embedded OPA Rego policy.
package engine

import "context"

// Authorizer decides whether a caller's role is one of the roles a route allows.
type Authorizer interface {
	// Allow reports whether role may access a resource open to allowedRoles. An error means
	// no decision could be made; callers deny.
	Allow(ctx context.Context, role string, allowedRoles []string) (bool, error)
}
