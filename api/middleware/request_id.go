package middleware

import (
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/streetfoodconnect/marketplace-backend/pkg/logger"
)

const maxRequestIDLength = 64

// RequestID echoes a well formed caller id in the response and the log
// context, minting a uuid for anything missing, oversized or non printable.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestIDFrom(r)
			w.Header().Set(chimw.RequestIDHeader, id)
			if logg != nil {
				r = r.WithContext(logg.WithRequestID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestIDFrom(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(chimw.RequestIDHeader))
	unprintable := func(c rune) bool { return c < '!' || c > '~' }
	if id == "" || len(id) > maxRequestIDLength || strings.IndexFunc(id, unprintable) >= 0 {
		return uuid.NewString()
	}
	return id
}
