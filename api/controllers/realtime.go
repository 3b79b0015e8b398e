package controllers

import (
	"net/http"

	"github.com/streetfoodconnect/marketplace-backend/api/middleware"
	"github.com/streetfoodconnect/marketplace-backend/api/responses"
	"github.com/streetfoodconnect/marketplace-backend/internal/realtime"
	"github.com/streetfoodconnect/marketplace-backend/internal/session"
	pkgerrors "github.com/streetfoodconnect/marketplace-backend/pkg/errors"
	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

// WSServer upgrades an authorized request into a realtime subscription.
type WSServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, sess session.Session, topics []string) error
}

// RealtimeConnect validates the requested topics before the upgrade so that
// rejections still come back as JSON errors.
func RealtimeConnect(hub WSServer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "realtime hub unavailable"))
			return
		}
		sess := middleware.SessionFromContext(r.Context())
		topics := realtime.ParseTopics(r.URL.Query().Get("topics"))
		if err := realtime.Authorize(sess, topics); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := hub.ServeWS(w, r, sess, topics); err != nil {
			// the upgrader has already written a response
			logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "websocket upgrade failed")
		}
	}
}
