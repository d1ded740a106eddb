package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"orgauthz/internal/engine/errs"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeQuotaExceeded     = "QUOTA_EXCEEDED"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// WriteEngineError maps an error returned by the authorization engine to a
// response. Errors without a kind are logged and hidden behind a 500.
func WriteEngineError(w http.ResponseWriter, err error) {
	status, code, details := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("unhandled engine error")
		WriteError(w, status, code, "internal error", nil)
		return
	}
	WriteError(w, status, code, err.Error(), details)
}

func classify(err error) (int, string, interface{}) {
	var quota *errs.QuotaExceededError
	if stderrors.As(err, &quota) {
		return http.StatusForbidden, ErrCodeQuotaExceeded, map[string]int{"limit": quota.Limit, "used": quota.Used}
	}
	var resend *errs.ResendLimitExceededError
	if stderrors.As(err, &resend) {
		return http.StatusUnprocessableEntity, ErrCodeQuotaExceeded, map[string]int{"limit": resend.Limit, "count": resend.Count}
	}
	var state *errs.InvalidStateError
	if stderrors.As(err, &state) {
		return http.StatusUnprocessableEntity, ErrCodeInvalidState, map[string]string{"status": state.Status, "operation": state.Operation}
	}
	var inUse *errs.RoleInUseError
	if stderrors.As(err, &inUse) {
		return http.StatusConflict, ErrCodeConflict, map[string]int{"members": inUse.Members, "invitations": inUse.Invitations}
	}
	var invalid *errs.InvalidInputError
	if stderrors.As(err, &invalid) {
		return http.StatusBadRequest, ErrCodeInvalidInput, map[string]string{"field": invalid.Field}
	}

	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest, ErrCodeInvalidInput, nil
	case errs.KindPolicy:
		return http.StatusForbidden, ErrCodeForbidden, nil
	case errs.KindConflict:
		return http.StatusConflict, ErrCodeConflict, nil
	case errs.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound, nil
	}
	return http.StatusInternalServerError, ErrCodeInternal, nil
}
