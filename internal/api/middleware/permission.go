package middleware

import (
	"context"
	"net/http"

	apiContext "orgauthz/internal/api/context"
	"orgauthz/internal/engine/authz"
	"orgauthz/internal/engine/permissions"
	"orgauthz/internal/pkg/errors"
	"orgauthz/internal/platform/metrics"
)

type Authorizer interface {
	Require(ctx context.Context, c authz.Caller, module permissions.Module, action permissions.Action) error
}

// RequirePermission must run after the tenant middleware.
func RequirePermission(a Authorizer, module permissions.Module, action permissions.Action) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			caller, ok := r.Context().Value(apiContext.Caller).(authz.Caller)
			if !ok {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No caller resolved", nil)
				return
			}
			if err := a.Require(r.Context(), caller, module, action); err != nil {
				metrics.ObserveError(err)
				errors.WriteEngineError(w, err)
				return
			}
			next(w, r)
		}
	}
}
