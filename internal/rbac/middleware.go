package rbac

import (
	"log/slog"
	"net/http"
	"strings"
)

// Gate is the request-scoped authorization state consulted by Middleware.
type Gate interface {
	IsAuthenticated() bool
	IsAccountActive() bool
	HasPermission(Permission) bool
	RequireAdmin() bool
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	// Resolve returns the caller's gate, or nil when the request carries no
	// browsing context.
	Resolve func(*http.Request) Gate
	Logger  *slog.Logger
}

// RequireAny ensures the current user has at least one of the required permissions.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.guard("require any", func(g Gate) bool {
		if len(normalized) == 0 {
			return true
		}
		for _, p := range normalized {
			if g.HasPermission(p) {
				return true
			}
		}
		return false
	})
}

// RequireAll ensures the current user has all required permissions.
func (m Middleware) RequireAll(perms ...Permission) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.guard("require all", func(g Gate) bool {
		for _, p := range normalized {
			if !g.HasPermission(p) {
				return false
			}
		}
		return true
	})
}

// RequireAdmin admits administrators and IT support only.
func (m Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return m.guard("require admin", func(g Gate) bool {
		return g.RequireAdmin()
	})
}

// RequireAuthenticated admits any signed-in, active account.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.guard("require authenticated", func(Gate) bool { return true })
}

func (m Middleware) guard(name string, allowed func(Gate) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var gate Gate
			if m.Resolve != nil {
				gate = m.Resolve(r)
			}
			if gate == nil || !gate.IsAuthenticated() {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if !gate.IsAccountActive() || !allowed(gate) {
				if m.Logger != nil {
					m.Logger.Info("rbac "+name+" denied", slog.String("path", r.URL.Path))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalizePermissions(perms []Permission) []Permission {
	seen := make(map[Permission]struct{}, len(perms))
	normalized := make([]Permission, 0, len(perms))
	for _, p := range perms {
		p = Permission(strings.TrimSpace(string(p)))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
