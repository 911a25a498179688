package casework

import (
	"fmt"
	"strings"
)

// Role identifies the capacity an actor invokes an event in.
type Role string

const (
	RoleCreator             Role = "CREATOR"
	RoleApplicant2          Role = "APPLICANT_2"
	RoleApplicant1Solicitor Role = "APPLICANT_1_SOLICITOR"
	RoleApplicant2Solicitor Role = "APPLICANT_2_SOLICITOR"
	RoleCaseworker          Role = "CASE_WORKER"
	RoleLegalAdvisor        Role = "LEGAL_ADVISOR"
	RoleJudge               Role = "JUDGE"
	RoleSuperUser           Role = "SUPER_USER"
	RoleSystemUpdate        Role = "SYSTEMUPDATE"
	RoleCitizen             Role = "CITIZEN"
)

var knownRoles = []Role{
	RoleCreator,
	RoleApplicant2,
	RoleApplicant1Solicitor,
	RoleApplicant2Solicitor,
	RoleCaseworker,
	RoleLegalAdvisor,
	RoleJudge,
	RoleSuperUser,
	RoleSystemUpdate,
	RoleCitizen,
}

// Roles returns every known role.
func Roles() []Role {
	out := make([]Role, len(knownRoles))
	copy(out, knownRoles)
	return out
}

// ParseRole normalizes and validates a role name.
func ParseRole(name string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(name)))
	for _, known := range knownRoles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", name)
}

func (r Role) String() string { return string(r) }

// Actor is the authenticated caller of an event.
type Actor struct {
	ID   string `json:"id" yaml:"id"`
	Role Role   `json:"role" yaml:"role"`
}
