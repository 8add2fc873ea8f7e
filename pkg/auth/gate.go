package auth

import (
	"fmt"
	"log/slog"
)

// Requirement names an operation and the roles allowed to perform it.
type Requirement struct {
	Operation string
	AnyOf     []Role
}

func Require(operation string, anyOf ...Role) Requirement {
	return Requirement{Operation: operation, AnyOf: anyOf}
}

type Gate struct {
	log *slog.Logger
}

func NewGate(log *slog.Logger) *Gate {
	return &Gate{log: log}
}

// Authorize succeeds iff the caller holds at least one of the required roles.
// An anonymous principal is always denied.
func (g *Gate) Authorize(p Principal, req Requirement) error {
	if p.ID != "" && p.HasAny(req.AnyOf...) {
		return nil
	}
	if g.log != nil {
		g.log.Warn("access denied", "operation", req.Operation, "principal", p.ID, "roles", p.Roles)
	}
	return fmt.Errorf("%s: %w", req.Operation, ErrForbidden)
}
