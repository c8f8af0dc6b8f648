package validation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vet360/vet360/internal/platform/httpx"
)

// Handler exposes form validation over HTTP.
type Handler struct {
	validator *Validator
}

// NewHandler constructs a Handler.
func NewHandler(v *Validator) *Handler {
	return &Handler{validator: v}
}

// MountRoutes registers validation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/client", h.validateClient)
	r.Post("/login", h.validateLogin)
}

type result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

func (h *Handler) validateClient(w http.ResponseWriter, r *http.Request) {
	var form ClientForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	valid, errs := h.validator.ValidateClientForm(form)
	h.respond(w, valid, errs)
}

func (h *Handler) validateLogin(w http.ResponseWriter, r *http.Request) {
	var form LoginForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	valid, errs := h.validator.ValidateLoginForm(form)
	h.respond(w, valid, errs)
}

func (h *Handler) respond(w http.ResponseWriter, valid bool, errs []FieldError) {
	if errs == nil {
		errs = []FieldError{}
	}
	status := http.StatusOK
	if !valid {
		status = http.StatusUnprocessableEntity
	}
	httpx.JSON(w, status, result{Valid: valid, Errors: errs})
}
