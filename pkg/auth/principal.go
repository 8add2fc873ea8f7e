// Package auth holds the caller identity model, the role-based authorization
// gate shared by both services, and the bearer-token adapters that turn an
// identity-provider JWT into a Principal at the HTTP and gRPC edges.
package auth

import (
	"context"
	"errors"
	"slices"
	"strings"
)

type Role string

const (
	RoleClient Role = "CLIENT"
	RoleAdmin  Role = "ADMIN"
	RoleUser   Role = "USER"

	// RoleService is held by peer services, never by end users.
	RoleService Role = "SERVICE"
)

var (
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Principal is the authenticated caller.
type Principal struct {
	ID    string
	Roles []Role
}

func (p Principal) HasRole(r Role) bool {
	return slices.Contains(p.Roles, r)
}

func (p Principal) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if p.HasRole(r) {
			return true
		}
	}
	return false
}

func ParseRoles(raw ...string) []Role {
	roles := make([]Role, 0, len(raw))
	for _, s := range raw {
		r := Role(strings.ToUpper(strings.TrimSpace(s)))
		if r == "" || slices.Contains(roles, r) {
			continue
		}
		roles = append(roles, r)
	}
	return roles
}

type principalKey struct{}

// WithPrincipal is only used by the transport edges; services receive the
// principal as an explicit argument.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
