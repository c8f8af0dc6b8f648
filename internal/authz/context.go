package authz

import (
	"context"
	"net/http"

	"github.com/vet360/vet360/internal/rbac"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// GateFor resolves the request's session as an rbac.Gate, or nil when the
// request carries none.
func GateFor(r *http.Request) rbac.Gate {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		return nil
	}
	return sess
}
