package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/rapidphotos/internal/common"
	"github.com/dmitrijs2005/rapidphotos/internal/server/auth"
)

type ctxKey string

const ownerIDKey ctxKey = "ownerID"

const bearerPrefix = "Bearer "

// OwnerIDFromContext returns the authenticated owner id of the request.
func OwnerIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ownerIDKey).(string)
	return id, ok && id != ""
}

// authenticate resolves the bearer token into an owner id.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if !strings.HasPrefix(header, bearerPrefix) {
			h.writeError(w, r, common.ErrorUnauthorized)
			return
		}

		ownerID, err := auth.GetUserIDFromToken(strings.TrimSpace(header[len(bearerPrefix):]), h.jwtSecret)
		if err != nil {
			h.logger.Debug(r.Context(), "token rejected", "path", r.URL.Path, "error", err)
			h.writeError(w, r, common.ErrorUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerIDKey, ownerID)))
	})
}

func ownerID(r *http.Request) string {
	id, _ := OwnerIDFromContext(r.Context())
	return id
}
