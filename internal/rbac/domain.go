package rbac

// Role is the stored role tag of a clinic staff member.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleITSupport    Role = "it_support"
	RoleVeterinarian Role = "veterinario"
	RoleAssistant    Role = "asistente"
	RoleReceptionist Role = "recepcionista"
)

// Permission is an opaque capability identifier gating one action.
type Permission string

// FullAccess satisfies every permission check, including unknown identifiers.
const FullAccess Permission = "full_access"

const (
	PermManageUsers          Permission = "manage_users"
	PermCreateUsers          Permission = "create_users"
	PermEditUsers            Permission = "edit_users"
	PermDeleteUsers          Permission = "delete_users"
	PermViewReports          Permission = "view_reports"
	PermSystemSettings       Permission = "system_settings"
	PermSystemMaintenance    Permission = "system_maintenance"
	PermBackupRestore        Permission = "backup_restore"
	PermManageBilling        Permission = "manage_billing"
	PermViewPatients         Permission = "view_patients"
	PermCreatePatients       Permission = "create_patients"
	PermEditPatients         Permission = "edit_patients"
	PermDeletePatients       Permission = "delete_patients"
	PermCheckInPatients      Permission = "check_in_patients"
	PermViewAppointments     Permission = "view_appointments"
	PermCreateAppointments   Permission = "create_appointments"
	PermEditAppointments     Permission = "edit_appointments"
	PermDeleteAppointments   Permission = "delete_appointments"
	PermViewMedicalRecords   Permission = "view_medical_records"
	PermCreateMedicalRecords Permission = "create_medical_records"
	PermEditMedicalRecords   Permission = "edit_medical_records"
	PermPrescribeMedications Permission = "prescribe_medications"
	PermViewLabResults       Permission = "view_lab_results"
	PermAssistProcedures     Permission = "assist_procedures"
)

// Department groups staff for display and reporting.
type Department string

const (
	DepartmentClinic         Department = "clinica"
	DepartmentSurgery        Department = "cirugia"
	DepartmentEmergency      Department = "emergencias"
	DepartmentAdministration Department = "administracion"
	DepartmentIT             Department = "it"
)

// Departments lists the known departments.
func Departments() []Department {
	return []Department{
		DepartmentClinic,
		DepartmentSurgery,
		DepartmentEmergency,
		DepartmentAdministration,
		DepartmentIT,
	}
}

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	for _, known := range Departments() {
		if d == known {
			return true
		}
	}
	return false
}
