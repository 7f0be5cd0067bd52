package reporting

import "strings"

// UserRole is a system-wide user role.
type UserRole string

// User roles.
const (
	UserRoleAdministrator UserRole = "ADMINISTRATOR"
	UserRoleUser          UserRole = "USER"
)

// ProjectRole is a user's role within a single project.
type ProjectRole string

// Project roles, ordered from least to most privileged.
const (
	ProjectRoleOperator       ProjectRole = "OPERATOR"
	ProjectRoleCustomer       ProjectRole = "CUSTOMER"
	ProjectRoleMember         ProjectRole = "MEMBER"
	ProjectRoleProjectManager ProjectRole = "PROJECT_MANAGER"
)

var projectRoleRank = map[ProjectRole]int{
	ProjectRoleOperator:       0,
	ProjectRoleCustomer:       1,
	ProjectRoleMember:         2,
	ProjectRoleProjectManager: 3,
}

// ParseProjectRole returns the project role named by s (case-insensitive).
func ParseProjectRole(s string) (ProjectRole, bool) {
	r := ProjectRole(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := projectRoleRank[r]

	return r, ok
}

// SameOrHigherThan reports whether r grants at least the privileges of other.
func (r ProjectRole) SameOrHigherThan(other ProjectRole) bool {
	return projectRoleRank[r] >= projectRoleRank[other]
}

// ProjectDetails describes the principal's membership in one project.
type ProjectDetails struct {
	ProjectID   int64       `json:"project_id"`
	ProjectName string      `json:"project_name"`
	Role        ProjectRole `json:"project_role"`
}

// Principal is an authenticated reporting user with its project memberships
// keyed by normalized project name.
type Principal struct {
	UserID   int64                     `json:"user_id"`
	Username string                    `json:"username"`
	Role     UserRole                  `json:"user_role"`
	Projects map[string]ProjectDetails `json:"projects"`
}

// Project resolves the principal's details for the named project.
func (p *Principal) Project(name string) (ProjectDetails, error) {
	normalized := NormalizeProjectName(name)

	details, ok := p.Projects[normalized]
	if !ok {
		return ProjectDetails{}, NewError(ErrAccessDenied,
			"user '%s' is not assigned to project '%s'", p.Username, normalized)
	}

	return details, nil
}
