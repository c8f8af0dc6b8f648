package rbac

// roleOrder fixes the listing order of the catalog, most senior first.
var roleOrder = []Role{
	RoleAdmin,
	RoleITSupport,
	RoleVeterinarian,
	RoleAssistant,
	RoleReceptionist,
}

// roleHierarchy ranks roles for seniority comparisons only.
var roleHierarchy = map[Role]int{
	RoleAdmin:        5,
	RoleITSupport:    5,
	RoleVeterinarian: 3,
	RoleAssistant:    2,
	RoleReceptionist: 1,
}

var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		FullAccess,
		PermManageUsers,
		PermCreateUsers,
		PermEditUsers,
		PermDeleteUsers,
		PermViewReports,
		PermSystemSettings,
		PermManageBilling,
		PermViewPatients,
		PermCreatePatients,
		PermEditPatients,
		PermDeletePatients,
		PermViewAppointments,
		PermCreateAppointments,
		PermEditAppointments,
		PermDeleteAppointments,
		PermViewMedicalRecords,
		PermCreateMedicalRecords,
		PermEditMedicalRecords,
	},
	RoleITSupport: {
		FullAccess,
		PermManageUsers,
		PermCreateUsers,
		PermEditUsers,
		PermSystemMaintenance,
		PermBackupRestore,
		PermViewReports,
		PermSystemSettings,
	},
	RoleVeterinarian: {
		PermViewPatients,
		PermCreatePatients,
		PermEditPatients,
		PermViewAppointments,
		PermCreateAppointments,
		PermEditAppointments,
		PermViewMedicalRecords,
		PermCreateMedicalRecords,
		PermEditMedicalRecords,
		PermPrescribeMedications,
		PermViewLabResults,
	},
	RoleAssistant: {
		PermViewPatients,
		PermEditPatients,
		PermViewAppointments,
		PermCreateAppointments,
		PermEditAppointments,
		PermViewMedicalRecords,
		PermAssistProcedures,
	},
	RoleReceptionist: {
		PermViewPatients,
		PermCreatePatients,
		PermEditPatients,
		PermViewAppointments,
		PermCreateAppointments,
		PermEditAppointments,
		PermManageBilling,
		PermCheckInPatients,
	},
}

// permissionIndex is rolePermissions keyed for membership tests.
var permissionIndex = buildIndex(rolePermissions)

func buildIndex(catalog map[Role][]Permission) map[Role]map[Permission]struct{} {
	index := make(map[Role]map[Permission]struct{}, len(catalog))
	for role, perms := range catalog {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		index[role] = set
	}
	return index
}

// CatalogEntry is one row of the role catalog.
type CatalogEntry struct {
	Role        Role
	Rank        int
	Permissions []Permission
}

// Catalog returns the full role catalog in listing order.
func Catalog() []CatalogEntry {
	entries := make([]CatalogEntry, 0, len(roleOrder))
	for _, role := range roleOrder {
		entries = append(entries, CatalogEntry{
			Role:        role,
			Rank:        Rank(role),
			Permissions: PermissionsOf(role),
		})
	}
	return entries
}
