package rbac

import "strings"

// Roles lists every known role, most senior first.
func Roles() []Role {
	return append([]Role(nil), roleOrder...)
}

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := roleHierarchy[role]; !ok {
		return role, false
	}
	return role, true
}

// Valid reports whether r is present in the catalog.
func (r Role) Valid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// PermissionsOf returns a copy of the permissions granted to role.
// Unknown roles get an empty set.
func PermissionsOf(role Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return []Permission{}
	}
	return append([]Permission(nil), perms...)
}

// HasPermission reports whether role grants perm, directly or via FullAccess.
func HasPermission(role Role, perm Permission) bool {
	set, ok := permissionIndex[role]
	if !ok {
		return false
	}
	if _, ok := set[FullAccess]; ok {
		return true
	}
	_, ok = set[perm]
	return ok
}

// Rank returns the hierarchy rank of role, 0 when unknown.
func Rank(role Role) int {
	return roleHierarchy[role]
}

// IsAtLeastAsSenior reports whether role ranks at or above other.
func IsAtLeastAsSenior(role, other Role) bool {
	return Rank(role) >= Rank(other)
}

// CanAssign reports whether a principal holding assigner may grant target.
// Both roles must be known.
func CanAssign(assigner, target Role) bool {
	if !assigner.Valid() || !target.Valid() {
		return false
	}
	return IsAtLeastAsSenior(assigner, target)
}
