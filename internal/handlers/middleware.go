package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/nsmonitor/apiserver/types"
)

// PermissionAuthorizer is satisfied by *services.Authorizer.
type PermissionAuthorizer interface {
	HasPermission(ctx context.Context, user types.User, name string) (bool, error)
	HasAnyPermission(ctx context.Context, user types.User, names []string) (bool, error)
	HasAllPermissions(ctx context.Context, user types.User, names []string) (bool, error)
	HasRole(user types.User, names ...string) bool
}

// Guard builds role and permission middleware. It must run after
// Authenticator.RequireAuth.
type Guard struct {
	authz PermissionAuthorizer
	ErrorReporter
}

func NewGuard(authz PermissionAuthorizer, reporter ErrorReporter) *Guard {
	return &Guard{authz: authz, ErrorReporter: reporter}
}

func (g *Guard) RequireRole(names ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := userFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if !g.authz.HasRole(user, names...) {
				writeError(w, http.StatusForbidden, "Insufficient role permissions. Required roles: "+strings.Join(names, ", "))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) RequirePermission(name string) func(http.Handler) http.Handler {
	return g.require(func(ctx context.Context, user types.User) (bool, error) {
		return g.authz.HasPermission(ctx, user, name)
	}, "Insufficient permissions. Required permission: "+name)
}

func (g *Guard) RequireAnyPermission(names ...string) func(http.Handler) http.Handler {
	return g.require(func(ctx context.Context, user types.User) (bool, error) {
		return g.authz.HasAnyPermission(ctx, user, names)
	}, "Insufficient permissions. Required any of: "+strings.Join(names, ", "))
}

func (g *Guard) RequireAllPermissions(names ...string) func(http.Handler) http.Handler {
	return g.require(func(ctx context.Context, user types.User) (bool, error) {
		return g.authz.HasAllPermissions(ctx, user, names)
	}, "Insufficient permissions. Required all of: "+strings.Join(names, ", "))
}

func (g *Guard) require(check func(context.Context, types.User) (bool, error), denied string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := userFromContext(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			ok, err := check(r.Context(), user)
			if err != nil {
				g.serverError(w, r, err)
				return
			}
			if !ok {
				writeError(w, http.StatusForbidden, denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
