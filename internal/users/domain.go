package users

import (
	"context"

	"github.com/vet360/vet360/internal/auth"
	"github.com/vet360/vet360/internal/authz"
	"github.com/vet360/vet360/internal/rbac"
)

// Lister enumerates every stored profile.
type Lister interface {
	List(ctx context.Context) ([]authz.Profile, error)
}

// Accounts creates a credential and its profile together.
type Accounts interface {
	CreateAccount(ctx context.Context, cred auth.Credential, profile authz.Profile) error
}

// AdminSeed describes the bootstrap administrator.
type AdminSeed struct {
	Email    string
	Password string
}

// Default bootstrap administrator profile values.
const (
	DefaultAdminEmail      = "admin@vet360.com"
	DefaultAdminEmployeeID = "ADMIN001"
	DefaultAdminFirstName  = "Administrador"
	DefaultAdminLastName   = "Sistema"
)

type roleRequest struct {
	Role rbac.Role `json:"role"`
}

type statusRequest struct {
	Active *bool `json:"is_active"`
}
