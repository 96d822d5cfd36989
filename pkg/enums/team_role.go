package enums

import (
	"fmt"
	"strings"
)

// TeamRole is a person's role in the studio directory.
type TeamRole string

const (
	TeamRoleAdmin   TeamRole = "admin"
	TeamRoleManager TeamRole = "manager"
	TeamRoleLeader  TeamRole = "leader"
	TeamRoleMember  TeamRole = "member"
)

var validTeamRoles = []TeamRole{
	TeamRoleAdmin,
	TeamRoleManager,
	TeamRoleLeader,
	TeamRoleMember,
}

// StaffableTeamRoles are the directory roles that appear on allocation rosters.
var StaffableTeamRoles = []TeamRole{TeamRoleMember, TeamRoleLeader}

func (r TeamRole) String() string {
	return string(r)
}

func (r TeamRole) IsValid() bool {
	for _, candidate := range validTeamRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseTeamRole(value string) (TeamRole, error) {
	normalized := TeamRole(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid team role %q", value)
}
