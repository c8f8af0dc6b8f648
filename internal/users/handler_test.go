package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/vet360/vet360/internal/auth"
	"github.com/vet360/vet360/internal/authz"
	"github.com/vet360/vet360/internal/rbac"
	"github.com/vet360/vet360/internal/shared"
)

func sessionFor(t *testing.T, store authz.ProfileStore, uid string) *authz.Session {
	t.Helper()
	provider := auth.NewMemoryProvider()
	provider.SignIn(authz.Identity{UID: uid, Email: uid + "@vet360.com"})
	sess := authz.NewSession(authz.Config{Provider: provider, Store: store})
	t.Cleanup(sess.Close)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sess.Initialize(ctx))
	return sess
}

func newUsersRouter(t *testing.T, f fixture, actor string) http.Handler {
	t.Helper()
	var sess *authz.Session
	if actor != "" {
		sess = sessionFor(t, f.profiles, actor)
	}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if sess != nil {
				req = req.WithContext(authz.ContextWithSession(req.Context(), sess))
			}
			next.ServeHTTP(w, req)
		})
	})
	mw := rbac.Middleware{Resolve: authz.GateFor}
	r.Route("/users", NewHandler(nil, f.service, mw).MountRoutes)
	return r
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHandlerListUsersRequiresManageUsers(t *testing.T) {
	f := newFixture(t, staffDirectory()...)

	require.Equal(t, http.StatusUnauthorized, do(newUsersRouter(t, f, ""), http.MethodGet, "/users", "").Code)
	require.Equal(t, http.StatusForbidden, do(newUsersRouter(t, f, "u-rec"), http.MethodGet, "/users", "").Code)

	rec := do(newUsersRouter(t, f, "u-it"), http.MethodGet, "/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Users []authz.Profile `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Users, 6)
}

func TestHandlerListUsersPaginates(t *testing.T) {
	f := newFixture(t, staffDirectory()...)
	rec := do(newUsersRouter(t, f, "u-admin"), http.MethodGet, "/users?page=2&per_page=4", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Users      []authz.Profile   `json:"users"`
		Pagination shared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Users, 2)
	require.Equal(t, "u-it", body.Users[0].UID)
	require.Equal(t, "u-admin", body.Users[1].UID)
	require.Equal(t, 6, body.Pagination.Total)
	require.Equal(t, 2, body.Pagination.TotalPages)
}

func TestHandlerAssignRole(t *testing.T) {
	f := newFixture(t, staffDirectory()...)
	router := newUsersRouter(t, f, "u-admin")

	rec := do(router, http.MethodPut, "/users/u-rec/role", `{"role":"asistente"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile authz.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	require.Equal(t, rbac.RoleAssistant, profile.Role)

	rec = do(router, http.MethodPut, "/users/u-rec/role", `{"role":"intern"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPut, "/users/ghost/role", `{"role":"asistente"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodGet, "/users/assignable-roles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"roles":["admin","it_support","veterinario","asistente","recepcionista"]}`, rec.Body.String())
}

func TestHandlerSetStatus(t *testing.T) {
	f := newFixture(t, staffDirectory()...)
	router := newUsersRouter(t, f, "u-admin")

	rec := do(router, http.MethodPut, "/users/u-vet/status", `{"is_active":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := f.profiles.Fetch(context.Background(), "u-vet")
	require.NoError(t, err)
	require.False(t, stored.IsActive())

	require.Equal(t, http.StatusBadRequest, do(router, http.MethodPut, "/users/u-vet/status", `{}`).Code)
	require.Equal(t, http.StatusForbidden, do(router, http.MethodPut, "/users/u-admin/status", `{"is_active":false}`).Code)

	vetRouter := newUsersRouter(t, f, "u-asst")
	require.Equal(t, http.StatusForbidden, do(vetRouter, http.MethodPut, "/users/u-rec/status", `{"is_active":false}`).Code)
}
