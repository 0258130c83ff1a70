package httpapi

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type principalKeyType struct{}

var principalKey principalKeyType

// requirePrincipal resolves the caller from the X-User-ID header set by the
// API gateway after authentication. The engine itself only needs the user
// reference; participant authorization happens against the session.
func (s *Server) requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "X-User-ID header required")
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid X-User-ID header")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(principalKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
