package controllers

import (
	"net/http"

	"github.com/streetfoodconnect/marketplace-backend/api/middleware"
	"github.com/streetfoodconnect/marketplace-backend/api/responses"
	appsession "github.com/streetfoodconnect/marketplace-backend/internal/session"
)

// SessionCurrent returns the caller's session snapshot, anonymous included.
func SessionCurrent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, middleware.SessionFromContext(r.Context()).Snapshot())
	}
}

// SessionGate evaluates the SPA route gate for ?path= against the caller's session.
func SessionGate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := middleware.SessionFromContext(r.Context())
		path := r.URL.Query().Get("path")
		responses.WriteSuccess(w, map[string]any{
			"path":     path,
			"decision": appsession.Gate(path, sess),
			"home":     appsession.HomeFor(sess),
		})
	}
}
