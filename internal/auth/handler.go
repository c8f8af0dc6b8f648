package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vet360/vet360/internal/authz"
	"github.com/vet360/vet360/internal/platform/httpx"
	"github.com/vet360/vet360/internal/shared"
	"github.com/vet360/vet360/internal/validation"
)

// Binder binds and unbinds identities to browsing contexts.
type Binder interface {
	SignIn(ctx context.Context, contextID, email, password string) (authz.Identity, error)
	SignOut(ctx context.Context, contextID string) error
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger      *slog.Logger
	binder      Binder
	validator   *validation.Validator
	settleAfter time.Duration
}

// NewHandler constructs a Handler instance. settleAfter bounds how long login
// waits for the browsing context's session to load the new profile.
func NewHandler(logger *slog.Logger, binder Binder, v *validation.Validator, settleAfter time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if settleAfter <= 0 {
		settleAfter = 3 * time.Second
	}
	return &Handler{logger: logger, binder: binder, validator: v, settleAfter: settleAfter}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type loginResponse struct {
	Identity              authz.Identity `json:"identity"`
	Profile               *authz.Profile `json:"profile,omitempty"`
	RequirePasswordChange bool           `json:"require_password_change"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	contextID, ok := shared.BrowsingContextFrom(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "missing browsing context")
		return
	}
	var form validation.LoginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	form.Email = strings.TrimSpace(form.Email)
	if valid, errs := h.validator.ValidateLoginForm(form); !valid {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": errs})
		return
	}

	identity, err := h.binder.SignIn(r.Context(), contextID, form.Email, form.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}

	resp := loginResponse{Identity: identity}
	if sess := authz.SessionFromContext(r.Context()); sess != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.settleAfter)
		defer cancel()
		if err := sess.AwaitIdentity(ctx, identity.UID); err != nil {
			h.logger.Warn("session did not settle after login", slog.String("uid", identity.UID), slog.Any("error", err))
		} else {
			snap := sess.Snapshot()
			resp.Profile = snap.Profile
			resp.RequirePasswordChange = sess.RequiresPasswordChange()
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var err error
	if sess := authz.SessionFromContext(r.Context()); sess != nil {
		err = sess.SignOut(r.Context())
	} else if contextID, ok := shared.BrowsingContextFrom(r.Context()); ok {
		err = h.binder.SignOut(r.Context(), contextID)
	}
	if err != nil {
		h.fail(w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	code := Code(err)
	status := Status(code)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.String("code", code), slog.Any("error", err))
	} else {
		h.logger.Info(op+" rejected", slog.String("code", code))
	}
	httpx.JSON(w, status, errorBody{Code: code, Message: Message(code)})
}
