// Package agent implements the three analysis stages (strategy, technical,
// marketing). Each stage turns an idea plus earlier stage outputs into one
// instruction and makes exactly one generator call.
package agent

import "errors"

// Role identifies a pipeline stage.
type Role string

const (
	RoleStrategy  Role = "strategy"
	RoleTechnical Role = "technical"
	RoleMarketing Role = "marketing"
)

// Roles lists the stage roles in pipeline order.
func Roles() []Role {
	return []Role{RoleStrategy, RoleTechnical, RoleMarketing}
}

// Title is the human-readable name of the role.
func (r Role) Title() string {
	switch r {
	case RoleStrategy:
		return "Strategy Agent (CEO)"
	case RoleTechnical:
		return "Technical Agent (CTO)"
	case RoleMarketing:
		return "Marketing Agent (CMO)"
	default:
		return string(r)
	}
}

// Context is an earlier stage's output handed to a later stage.
type Context struct {
	Role Role
	Text string
}

// ErrUnexpectedContext is returned when a stage receives prior output it
// cannot use: an unknown role, a role given twice, or a role the stage does
// not read.
var ErrUnexpectedContext = errors.New("unexpected prior context")
