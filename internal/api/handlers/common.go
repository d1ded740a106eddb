package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "orgauthz/internal/api/context"
	"orgauthz/internal/engine/authz"
	"orgauthz/internal/engine/errs"
	"orgauthz/internal/engine/events"
	"orgauthz/internal/pkg/errors"
	"orgauthz/internal/platform/metrics"
)

// EventDispatcher receives the events returned by engine mutations.
type EventDispatcher interface {
	Dispatch(ctx context.Context, actorID string, evts []events.Event)
}

func caller(r *http.Request) authz.Caller {
	c, _ := r.Context().Value(apiContext.Caller).(authz.Caller)
	return c
}

func param(r *http.Request, name string) string {
	ps, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return ps.ByName(name)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errs.KindOf(err) != errs.KindUnknown {
			fail(w, err)
			return false
		}
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return false
	}
	return true
}

func fail(w http.ResponseWriter, err error) {
	metrics.ObserveError(err)
	errors.WriteEngineError(w, err)
}
