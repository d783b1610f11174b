package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/clubledger-backend/api/middleware"
	"github.com/angelmondragon/clubledger-backend/api/responses"
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
)

// requireActor pulls the caller from the request or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (auth.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
		return auth.Actor{}, false
	}
	return actor, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger, name string) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
}

// parseDate accepts YYYY-MM-DD. Empty input yields nil.
func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(*value))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date").WithDetails(map[string]any{"field": field})
	}
	return &t, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}
