package authz

import (
	"net/http"
	"strings"

	"github.com/vet360/vet360/internal/rbac"
)

// Requirements describes what a protected page or endpoint needs.
type Requirements struct {
	Permissions []rbac.Permission
	Admin       bool
}

// Decision is the outcome of Authorize.
type Decision int

const (
	Allowed Decision = iota
	Unauthenticated
	Inactive
	Forbidden
	PasswordChangeRequired
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Unauthenticated:
		return "unauthenticated"
	case Inactive:
		return "inactive"
	case Forbidden:
		return "forbidden"
	case PasswordChangeRequired:
		return "password_change_required"
	default:
		return "unknown"
	}
}

// Status maps the decision onto an HTTP status code.
func (d Decision) Status() int {
	switch d {
	case Allowed:
		return http.StatusOK
	case Unauthenticated:
		return http.StatusUnauthorized
	case PasswordChangeRequired:
		return http.StatusPreconditionRequired
	default:
		return http.StatusForbidden
	}
}

// MarshalText renders the decision by name.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Authorize checks req in order: identity, account state, admin, each
// permission, then the pending password change.
func (s *Session) Authorize(req Requirements) Decision {
	if !s.RequireAuthenticated() {
		return Unauthenticated
	}
	if !s.IsAccountActive() {
		s.deny("active")
		return Inactive
	}
	if req.Admin && !s.RequireAdmin() {
		return Forbidden
	}
	for _, perm := range req.Permissions {
		perm = rbac.Permission(strings.TrimSpace(string(perm)))
		if perm == "" {
			continue
		}
		if !s.RequirePermission(perm) {
			return Forbidden
		}
	}
	if s.RequiresPasswordChange() {
		return PasswordChangeRequired
	}
	return Allowed
}
