package roles

import "github.com/vet360/vet360/internal/rbac"

// Role is one catalog row as presented to staff.
type Role struct {
	Role        rbac.Role         `json:"role"`
	Label       string            `json:"label"`
	Rank        int               `json:"rank"`
	Permissions []rbac.Permission `json:"permissions"`
	// Assignable reports whether the caller may grant this role.
	Assignable bool `json:"assignable"`
}

// Department is a department option with its display label.
type Department struct {
	Department rbac.Department `json:"department"`
	Label      string          `json:"label"`
}

var roleLabels = map[rbac.Role]string{
	rbac.RoleAdmin:        "Administrador",
	rbac.RoleITSupport:    "Soporte TI",
	rbac.RoleVeterinarian: "Veterinario",
	rbac.RoleAssistant:    "Asistente",
	rbac.RoleReceptionist: "Recepcionista",
}

var departmentLabels = map[rbac.Department]string{
	rbac.DepartmentClinic:         "Clínica",
	rbac.DepartmentSurgery:        "Cirugía",
	rbac.DepartmentEmergency:      "Emergencias",
	rbac.DepartmentAdministration: "Administración",
	rbac.DepartmentIT:             "IT",
}
