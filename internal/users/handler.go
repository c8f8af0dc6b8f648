package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vet360/vet360/internal/authz"
	"github.com/vet360/vet360/internal/platform/httpx"
	"github.com/vet360/vet360/internal/rbac"
	"github.com/vet360/vet360/internal/shared"
)

// Handler manages user directory endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermManageUsers))
		r.Get("/", h.listUsers)
		r.Get("/assignable-roles", h.assignableRoles)
		r.Get("/{uid}", h.getUser)
		r.Put("/{uid}/role", h.assignRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermEditUsers))
		r.Put("/{uid}/status", h.setStatus)
	})
}

func actorID(r *http.Request) string {
	sess := authz.SessionFromContext(r.Context())
	if sess == nil {
		return ""
	}
	if identity := sess.Snapshot().Identity; identity != nil {
		return identity.UID
	}
	return ""
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	page := shared.PaginationFromQuery(r.URL.Query(), len(profiles))
	start, end := page.Bounds()
	httpx.JSON(w, http.StatusOK, map[string]any{"users": profiles[start:end], "pagination": page})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) assignableRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.AssignableRoles(r.Context(), actorID(r))
	if err != nil {
		h.logger.Error("assignable roles failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	actor := actorID(r)
	uid := chi.URLParam(r, "uid")
	profile, err := h.service.AssignRole(r.Context(), actor, uid, req.Role)
	if err != nil {
		h.logger.Warn("assign role", slog.String("actor", actor), slog.String("uid", uid), slog.String("role", string(req.Role)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("role assigned", slog.String("actor", actor), slog.String("uid", uid), slog.String("role", string(req.Role)))
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Active == nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "is_active is required")
		return
	}
	actor := actorID(r)
	uid := chi.URLParam(r, "uid")
	profile, err := h.service.SetActive(r.Context(), actor, uid, *req.Active)
	if err != nil {
		h.logger.Warn("set account status", slog.String("actor", actor), slog.String("uid", uid), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}
