package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/antonkovalev/storysync/internal/server/auth"
)

type ctxKey string

const ownerIDKey ctxKey = "ownerID"

// ownerIDFrom returns the verified owner id placed in ctx by withAuth.
func ownerIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(ownerIDKey).(string)
	return v
}

// withAuth verifies the Bearer token and stores the owner id in the request
// context. Requests without a valid token get 401 before any handler runs.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		ownerID, err := auth.GetOwnerIDFromToken(token, s.jwtSecret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ownerIDKey, ownerID)
		next(w, r.WithContext(ctx))
	}
}

// bearerToken extracts the token from the Authorization header. Websocket
// clients cannot always set headers, so an access_token query parameter is
// accepted as a fallback.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}
