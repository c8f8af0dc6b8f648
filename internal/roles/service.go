package roles

import "github.com/vet360/vet360/internal/rbac"

// Service presents the static role catalog.
type Service struct{}

// NewService builds Service instance.
func NewService() *Service {
	return &Service{}
}

// ListRoles returns every role, most senior first, flagging the ones assigner
// may grant. An empty assigner grants nothing.
func (s *Service) ListRoles(assigner rbac.Role) []Role {
	catalog := rbac.Catalog()
	roles := make([]Role, 0, len(catalog))
	for _, entry := range catalog {
		roles = append(roles, Role{
			Role:        entry.Role,
			Label:       roleLabels[entry.Role],
			Rank:        entry.Rank,
			Permissions: entry.Permissions,
			Assignable:  rbac.CanAssign(assigner, entry.Role),
		})
	}
	return roles
}

// ListDepartments returns the department options.
func (s *Service) ListDepartments() []Department {
	departments := rbac.Departments()
	out := make([]Department, 0, len(departments))
	for _, d := range departments {
		out = append(out, Department{Department: d, Label: departmentLabels[d]})
	}
	return out
}
