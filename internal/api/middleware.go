package api

import (
	"context"
	"net/http"
	"strings"

	"cashoverflow/internal/domain"
)

type contextKey string

const userContextKey contextKey = "user"

func (h *APIHandler) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			h.sendError(w, "Missing bearer token", http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}

		user, err := h.auth.ResolveIdentity(r.Context(), token)
		if err != nil {
			h.sendError(w, "Invalid bearer token", http.StatusUnauthorized, "UNAUTHORIZED")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

func userFromContext(ctx context.Context) *domain.UserAccount {
	user, _ := ctx.Value(userContextKey).(*domain.UserAccount)
	return user
}
