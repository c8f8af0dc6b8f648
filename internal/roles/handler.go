package roles

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vet360/vet360/internal/authz"
	"github.com/vet360/vet360/internal/platform/httpx"
	"github.com/vet360/vet360/internal/rbac"
)

// Handler serves the role catalog.
type Handler struct {
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{service: service, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAuthenticated())
	r.Get("/", h.listRoles)
	r.Get("/departments", h.listDepartments)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	var assigner rbac.Role
	if sess := authz.SessionFromContext(r.Context()); sess != nil {
		if profile := sess.Snapshot().Profile; profile != nil && profile.IsActive() {
			assigner = profile.Role
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": h.service.ListRoles(assigner)})
}

func (h *Handler) listDepartments(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"departments": h.service.ListDepartments()})
}
