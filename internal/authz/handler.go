package authz

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vet360/vet360/internal/platform/httpx"
	"github.com/vet360/vet360/internal/rbac"
	"github.com/vet360/vet360/internal/validation"
)

// Handler serves the signed-in user's own session state.
type Handler struct {
	logger    *slog.Logger
	validator *validation.Validator
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, v *validation.Validator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, validator: v}
}

// MountRoutes registers /me routes. Callers mount it behind RequireAuthenticated.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.snapshot)
	r.Patch("/", h.updateProfile)
	r.Get("/permissions/{permission}", h.permission)
}

// MountAccessRoutes registers the access check. It reports every decision,
// including unauthenticated and inactive ones, so it must not sit behind an
// authentication guard.
func (h *Handler) MountAccessRoutes(r chi.Router) {
	r.Get("/access", h.access)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) *Session {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no browsing context")
	}
	return sess
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	httpx.JSON(w, http.StatusOK, sess.Snapshot())
}

type profilePatch struct {
	Email      *string `json:"email"`
	FirstName  *string `json:"first_name"`
	LastName   *string `json:"last_name"`
	Department *string `json:"department"`
	EmployeeID *string `json:"employee_id"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	var patch profilePatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}

	check := h.validator.NewCheck()
	update := ProfileUpdate{EmployeeID: patch.EmployeeID}
	if patch.FirstName != nil {
		value := strings.TrimSpace(*patch.FirstName)
		check.Name("first_name", "el nombre", value)
		update.FirstName = &value
	}
	if patch.LastName != nil {
		value := strings.TrimSpace(*patch.LastName)
		check.Name("last_name", "el apellido", value)
		update.LastName = &value
	}
	if patch.Email != nil {
		value := strings.ToLower(strings.TrimSpace(*patch.Email))
		check.Email(value)
		update.Email = &value
	}
	var fieldErrs []validation.FieldError
	if patch.Department != nil {
		dept := rbac.Department(strings.ToLower(strings.TrimSpace(*patch.Department)))
		if !dept.Valid() {
			fieldErrs = append(fieldErrs, validation.FieldError{Field: "department", Message: "Departamento no válido"})
		}
		update.Department = &dept
	}
	fieldErrs = append(check.Errors(), fieldErrs...)
	if len(fieldErrs) > 0 {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fieldErrs})
		return
	}
	if update.Empty() {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no fields to update")
		return
	}

	if err := sess.UpdateProfile(r.Context(), update); err != nil {
		h.logger.Warn("update own profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sess.Snapshot())
}

func (h *Handler) permission(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	perm := rbac.Permission(strings.TrimSpace(chi.URLParam(r, "permission")))
	httpx.JSON(w, http.StatusOK, map[string]any{
		"permission": perm,
		"granted":    sess.HasPermission(perm),
	})
}

// access evaluates ?permission=a&permission=b&admin=true as a page guard would.
func (h *Handler) access(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	if sess == nil {
		return
	}
	query := r.URL.Query()
	req := Requirements{}
	for _, p := range query["permission"] {
		req.Permissions = append(req.Permissions, rbac.Permission(strings.TrimSpace(p)))
	}
	if raw := query.Get("admin"); raw != "" {
		admin, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "admin must be a boolean")
			return
		}
		req.Admin = admin
	}
	decision := sess.Authorize(req)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"decision": decision,
		"allowed":  decision == Allowed,
		"status":   decision.Status(),
	})
}
