package middleware

import (
	"net/http"

	"github.com/angelmondragon/clubledger-backend/api/responses"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
)

// RequireAnyRole lets the request through when the actor holds one of roles.
func RequireAnyRole(logg *logger.Logger, roles ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if !actor.HasAnyRole(roles...) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "role not allowed").
					WithDetails(map[string]any{"role": string(actor.Role)}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Role sets used by the router.
var (
	Finance     = []enums.Role{enums.RoleDirectiva, enums.RoleTesorera}
	Board       = []enums.Role{enums.RoleDirectiva}
	Staff       = []enums.Role{enums.RoleDirectiva, enums.RoleTesorera, enums.RoleEntrenador}
	Withdrawers = []enums.Role{enums.RoleDirectiva, enums.RoleEntrenador}
)
