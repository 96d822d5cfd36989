package enums

import (
	"fmt"
	"strings"
)

// AssignmentRole is the role a person holds on a phase. It never affects allocation math.
type AssignmentRole string

const (
	AssignmentRoleMember AssignmentRole = "member"
	AssignmentRoleLeader AssignmentRole = "leader"
)

var validAssignmentRoles = []AssignmentRole{
	AssignmentRoleMember,
	AssignmentRoleLeader,
}

// String implements fmt.Stringer.
func (r AssignmentRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known AssignmentRole.
func (r AssignmentRole) IsValid() bool {
	for _, candidate := range validAssignmentRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAssignmentRole converts raw input (case-insensitive) into an AssignmentRole.
func ParseAssignmentRole(value string) (AssignmentRole, error) {
	normalized := AssignmentRole(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid assignment role %q", value)
}
