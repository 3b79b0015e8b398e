package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/api/middleware"
	"github.com/streetfoodconnect/marketplace-backend/api/responses"
	"github.com/streetfoodconnect/marketplace-backend/api/validators"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

// endpoint is a handler body. It returns the status and payload for the
// success envelope, or an error for the error envelope.
type endpoint func(w http.ResponseWriter, r *http.Request) (int, any, error)

// handle adapts fn to http.HandlerFunc. A handler built without its service
// answers 500 instead of dereferencing nil.
func handle(logg *logger.Logger, service string, wired bool, fn endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !wired {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, service+" unavailable"))
			return
		}
		status, body, err := fn(w, r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, status, body)
	}
}

func ok(body any, err error) (int, any, error) {
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, body, nil
}

func created(body any, err error) (int, any, error) {
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, body, nil
}

func fail(err error) (int, any, error) { return 0, nil, err }

// decode reads and validates a JSON body into a T.
func decode[T any](r *http.Request) (T, error) {
	var body T
	err := validators.DecodeJSONBody(r, &body)
	return body, err
}

// pathUUID reads a required uuid route parameter.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

// callerID returns the authenticated user id, or 401.
func callerID(r *http.Request) (uuid.UUID, error) {
	sess := middleware.SessionFromContext(r.Context())
	if !sess.IsAuthenticated() {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return sess.UserID(), nil
}
