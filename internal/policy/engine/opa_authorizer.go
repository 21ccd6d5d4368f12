package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.saas.authz.allow"

// rolePolicy admits a known role that appears in the route's allow list.
const rolePolicy = `package saas.authz

known_roles := {"ADMIN", "MEMBER"}

default allow := false

allow if {
	input.role in known_roles
	input.role in input.allowed_roles
}
`

// OPAAuthorizer evaluates the embedded role policy. The query is prepared once and
// safe for concurrent use.
type OPAAuthorizer struct {
	query rego.PreparedEvalQuery
}

// NewOPAAuthorizer compiles the role policy.
func NewOPAAuthorizer(ctx context.Context) (*OPAAuthorizer, error) {
	q, err := rego.New(
		rego.Query(policyQuery),
		rego.Module("authz.rego", rolePolicy),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile role policy: %w", err)
	}
	return &OPAAuthorizer{query: q}, nil
}

// Allow evaluates the policy for role against allowedRoles.
func (a *OPAAuthorizer) Allow(ctx context.Context, role string, allowedRoles []string) (bool, error) {
	allowed := make([]interface{}, 0, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed = append(allowed, r)
	}
	rs, err := a.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"role":          role,
		"allowed_roles": allowed,
	}))
	if err != nil {
		return false, fmt.Errorf("eval role policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, errors.New("role policy returned no result")
	}
	allow, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("role policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return allow, nil
}

// HealthCheck verifies that the prepared policy evaluates and admits an admin to an admin route.
func (a *OPAAuthorizer) HealthCheck(ctx context.Context) error {
	ok, err := a.Allow(ctx, "ADMIN", []string{"ADMIN"})
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("role policy denied the health probe")
	}
	return nil
}
