package authz

import (
	"time"

	"github.com/vet360/vet360/internal/rbac"
)

// Identity is the authenticated principal reported by a Provider.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// Event is a single identity change. A nil Identity means signed out.
type Event struct {
	Identity *Identity
}

// Profile is the clinic staff record attached to an identity.
type Profile struct {
	UID                   string            `json:"uid"`
	Email                 string            `json:"email"`
	FirstName             string            `json:"first_name"`
	LastName              string            `json:"last_name"`
	Role                  rbac.Role         `json:"role"`
	Department            rbac.Department   `json:"department,omitempty"`
	EmployeeID            string            `json:"employee_id,omitempty"`
	Active                *bool             `json:"is_active,omitempty"`
	RequirePasswordChange bool              `json:"require_password_change"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
	Permissions           []rbac.Permission `json:"permissions"`
}

// IsActive treats an unset flag as active.
func (p Profile) IsActive() bool {
	return p.Active == nil || *p.Active
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// WithPermissions returns a copy of p whose permission set is derived from its role.
func (p Profile) WithPermissions() Profile {
	if p.Active != nil {
		active := *p.Active
		p.Active = &active
	}
	p.Permissions = rbac.PermissionsOf(p.Role)
	return p
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	Email                 *string          `json:"email,omitempty"`
	FirstName             *string          `json:"first_name,omitempty"`
	LastName              *string          `json:"last_name,omitempty"`
	Role                  *rbac.Role       `json:"role,omitempty"`
	Department            *rbac.Department `json:"department,omitempty"`
	EmployeeID            *string          `json:"employee_id,omitempty"`
	Active                *bool            `json:"is_active,omitempty"`
	RequirePasswordChange *bool            `json:"require_password_change,omitempty"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// Empty reports whether the update carries no field changes.
func (u ProfileUpdate) Empty() bool {
	return u.Email == nil && u.FirstName == nil && u.LastName == nil && u.Role == nil &&
		u.Department == nil && u.EmployeeID == nil && u.Active == nil && u.RequirePasswordChange == nil
}

// Apply merges the update into p field by field.
func (u ProfileUpdate) Apply(p *Profile) {
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.Role != nil {
		p.Role = *u.Role
	}
	if u.Department != nil {
		p.Department = *u.Department
	}
	if u.EmployeeID != nil {
		p.EmployeeID = *u.EmployeeID
	}
	if u.Active != nil {
		active := *u.Active
		p.Active = &active
	}
	if u.RequirePasswordChange != nil {
		p.RequirePasswordChange = *u.RequirePasswordChange
	}
	if !u.UpdatedAt.IsZero() {
		p.UpdatedAt = u.UpdatedAt
	}
	p.Permissions = rbac.PermissionsOf(p.Role)
}

// Snapshot is a read-only copy of session state for display.
type Snapshot struct {
	Identity *Identity `json:"identity"`
	Profile  *Profile  `json:"profile"`
}
