package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vet360/vet360/internal/platform/db"
	"github.com/vet360/vet360/internal/rbac"
	"github.com/vet360/vet360/internal/shared"
)

const profileColumns = `uid, email, first_name, last_name, role, department, employee_id, is_active, require_password_change, created_at, updated_at`

// PGProfileStore persists profiles in the user_profiles table.
type PGProfileStore struct {
	conn db.DBTX
}

// NewPGProfileStore constructs a PostgreSQL backed store.
func NewPGProfileStore(conn db.DBTX) *PGProfileStore {
	return &PGProfileStore{conn: conn}
}

// Fetch loads the profile for uid.
func (s *PGProfileStore) Fetch(ctx context.Context, uid string) (Profile, error) {
	row := s.conn.QueryRow(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE uid = $1`, uid)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrNotFound
		}
		return Profile{}, fmt.Errorf("authz: fetch profile: %w", err)
	}
	return profile, nil
}

// Update writes only the provided columns plus updated_at.
func (s *PGProfileStore) Update(ctx context.Context, uid string, update ProfileUpdate) error {
	args := pgx.NamedArgs{"uid": uid, "updated_at": update.UpdatedAt}
	sets := []string{"updated_at = @updated_at"}
	add := func(column string, value any) {
		sets = append(sets, column+" = @"+column)
		args[column] = value
	}
	if update.Email != nil {
		add("email", *update.Email)
	}
	if update.FirstName != nil {
		add("first_name", *update.FirstName)
	}
	if update.LastName != nil {
		add("last_name", *update.LastName)
	}
	if update.Role != nil {
		add("role", string(*update.Role))
	}
	if update.Department != nil {
		add("department", string(*update.Department))
	}
	if update.EmployeeID != nil {
		add("employee_id", *update.EmployeeID)
	}
	if update.Active != nil {
		add("is_active", *update.Active)
	}
	if update.RequirePasswordChange != nil {
		add("require_password_change", *update.RequirePasswordChange)
	}

	tag, err := s.conn.Exec(ctx, `UPDATE user_profiles SET `+strings.Join(sets, ", ")+` WHERE uid = @uid`, args)
	if err != nil {
		return fmt.Errorf("authz: update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Insert creates a profile row.
func (s *PGProfileStore) Insert(ctx context.Context, p Profile) error {
	_, err := s.conn.Exec(ctx, `INSERT INTO user_profiles (`+profileColumns+`)
VALUES (@uid, @email, @first_name, @last_name, @role, @department, @employee_id, @is_active, @require_password_change, @created_at, @updated_at)`,
		pgx.NamedArgs{
			"uid":                     p.UID,
			"email":                   p.Email,
			"first_name":              p.FirstName,
			"last_name":               p.LastName,
			"role":                    string(p.Role),
			"department":              nullableString(string(p.Department)),
			"employee_id":             nullableString(p.EmployeeID),
			"is_active":               p.Active,
			"require_password_change": p.RequirePasswordChange,
			"created_at":              p.CreatedAt,
			"updated_at":              p.UpdatedAt,
		})
	if err != nil {
		return fmt.Errorf("authz: insert profile: %w", err)
	}
	return nil
}

// List returns every profile ordered by last and first name.
func (s *PGProfileStore) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.conn.Query(ctx, `SELECT `+profileColumns+` FROM user_profiles ORDER BY last_name, first_name, uid`)
	if err != nil {
		return nil, fmt.Errorf("authz: list profiles: %w", err)
	}
	defer rows.Close()
	var profiles []Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var (
		p          Profile
		role       string
		department *string
		employeeID *string
	)
	if err := row.Scan(&p.UID, &p.Email, &p.FirstName, &p.LastName, &role, &department, &employeeID,
		&p.Active, &p.RequirePasswordChange, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Profile{}, err
	}
	p.Role = rbac.Role(role)
	if department != nil {
		p.Department = rbac.Department(*department)
	}
	if employeeID != nil {
		p.EmployeeID = *employeeID
	}
	return p, nil
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

var _ ProfileStore = (*PGProfileStore)(nil)
