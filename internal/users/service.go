package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vet360/vet360/internal/auth"
	"github.com/vet360/vet360/internal/authz"
	"github.com/vet360/vet360/internal/rbac"
	"github.com/vet360/vet360/internal/shared"
)

// ServiceConfig wires the user directory.
type ServiceConfig struct {
	Profiles authz.ProfileStore
	Lister   Lister
	Accounts Accounts
	// Auditor is optional; directory changes are reported to it after they
	// are stored.
	Auditor authz.Auditor
	// Notifier is optional; it is told about stored changes so live sessions
	// of the target user reload their profile.
	Notifier authz.ProfileNotifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service handles user directory operations performed by staff on other
// accounts.
type Service struct {
	profiles authz.ProfileStore
	lister   Lister
	accounts Accounts
	auditor  authz.Auditor
	notifier authz.ProfileNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		profiles: cfg.Profiles,
		lister:   cfg.Lister,
		accounts: cfg.Accounts,
		auditor:  cfg.Auditor,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Profile returns the stored profile of uid with its role-derived permissions.
func (s *Service) Profile(ctx context.Context, uid string) (authz.Profile, error) {
	profile, err := s.profiles.Fetch(ctx, uid)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return authz.Profile{}, fmt.Errorf("users: profile %s: %w", uid, shared.ErrNotFound)
		}
		return authz.Profile{}, fmt.Errorf("%w: users: profile: %w", shared.ErrStoreUnavailable, err)
	}
	return profile.WithPermissions(), nil
}

// HasPermission reports whether uid's role grants perm. Unknown users hold
// no permissions.
func (s *Service) HasPermission(ctx context.Context, uid string, perm rbac.Permission) (bool, error) {
	profile, err := s.Profile(ctx, uid)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return rbac.HasPermission(profile.Role, perm), nil
}

// CanAssignRole reports whether assignerID may grant role.
func (s *Service) CanAssignRole(ctx context.Context, assignerID string, role rbac.Role) (bool, error) {
	assigner, err := s.Profile(ctx, assignerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return assigner.IsActive() && rbac.CanAssign(assigner.Role, role), nil
}

// AssignableRoles lists the roles assignerID may grant, most senior first.
func (s *Service) AssignableRoles(ctx context.Context, assignerID string) ([]rbac.Role, error) {
	roles := make([]rbac.Role, 0, len(rbac.Roles()))
	for _, role := range rbac.Roles() {
		ok, err := s.CanAssignRole(ctx, assignerID, role)
		if err != nil {
			return nil, err
		}
		if ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

// AssignRole changes uid's role. The assigner must be allowed to grant the new
// role and be at least as senior as the user's current role.
func (s *Service) AssignRole(ctx context.Context, assignerID, uid string, role rbac.Role) (authz.Profile, error) {
	if !role.Valid() {
		return authz.Profile{}, fmt.Errorf("users: role %q: %w", role, shared.ErrValidation)
	}
	ok, err := s.CanAssignRole(ctx, assignerID, role)
	if err != nil {
		return authz.Profile{}, err
	}
	if !ok {
		return authz.Profile{}, fmt.Errorf("users: assign %s: %w", role, shared.ErrForbidden)
	}
	target, err := s.Profile(ctx, uid)
	if err != nil {
		return authz.Profile{}, err
	}
	assigner, err := s.Profile(ctx, assignerID)
	if err != nil {
		return authz.Profile{}, err
	}
	if target.Role.Valid() && !rbac.IsAtLeastAsSenior(assigner.Role, target.Role) {
		return authz.Profile{}, fmt.Errorf("users: reassign %s: %w", target.Role, shared.ErrForbidden)
	}
	return s.apply(ctx, uid, authz.ProfileUpdate{Role: &role})
}

// SetActive enables or disables uid. Staff cannot disable their own account.
func (s *Service) SetActive(ctx context.Context, actorID, uid string, active bool) (authz.Profile, error) {
	if actorID == uid && !active {
		return authz.Profile{}, fmt.Errorf("users: disable own account: %w", shared.ErrForbidden)
	}
	return s.apply(ctx, uid, authz.ProfileUpdate{Active: &active})
}

func (s *Service) apply(ctx context.Context, uid string, update authz.ProfileUpdate) (authz.Profile, error) {
	update.UpdatedAt = s.now().UTC()
	if err := s.profiles.Update(ctx, uid, update); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return authz.Profile{}, fmt.Errorf("users: update %s: %w", uid, shared.ErrNotFound)
		}
		return authz.Profile{}, fmt.Errorf("%w: users: update: %w", shared.ErrStoreUnavailable, err)
	}
	if s.auditor != nil {
		if err := s.auditor.ProfileUpdated(ctx, uid, update); err != nil {
			s.logger.Warn("audit directory change", slog.String("uid", uid), slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.ProfileChanged(ctx, uid); err != nil {
			s.logger.Warn("notify directory change", slog.String("uid", uid), slog.Any("error", err))
		}
	}
	return s.Profile(ctx, uid)
}

// ListUsers returns all profiles with their permissions.
func (s *Service) ListUsers(ctx context.Context) ([]authz.Profile, error) {
	profiles, err := s.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: users: list: %w", shared.ErrStoreUnavailable, err)
	}
	for i := range profiles {
		profiles[i] = profiles[i].WithPermissions()
	}
	return profiles, nil
}

// CreateDefaultAdmin creates the first administrator, who must change the
// password on first sign-in.
func (s *Service) CreateDefaultAdmin(ctx context.Context, seed AdminSeed) (authz.Profile, error) {
	if seed.Email == "" {
		seed.Email = DefaultAdminEmail
	}
	if seed.Password == "" {
		return authz.Profile{}, fmt.Errorf("users: admin password: %w", shared.ErrValidation)
	}
	hash, err := auth.HashPassword(seed.Password)
	if err != nil {
		return authz.Profile{}, err
	}
	now := s.now().UTC()
	uid := uuid.NewString()
	active := true
	profile := authz.Profile{
		UID:                   uid,
		Email:                 seed.Email,
		FirstName:             DefaultAdminFirstName,
		LastName:              DefaultAdminLastName,
		Role:                  rbac.RoleAdmin,
		Department:            rbac.DepartmentAdministration,
		EmployeeID:            DefaultAdminEmployeeID,
		Active:                &active,
		RequirePasswordChange: true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	cred := auth.Credential{
		UID:          uid,
		Email:        seed.Email,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.CreateAccount(ctx, cred, profile); err != nil {
		return authz.Profile{}, err
	}
	s.logger.Info("default admin created", slog.String("uid", uid), slog.String("email", seed.Email))
	return profile.WithPermissions(), nil
}
