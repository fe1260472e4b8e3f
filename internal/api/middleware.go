package api

// This file contains the middleware for handling authentication.

import (
	"context"
	"net/http"

	"github.com/vikramsd/fluxgen/internal/models"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey string

const userContextKey = contextKey("user")

// AuthMiddleware is a middleware that verifies a user's session.
// If the session is valid, it retrieves the user's details from the database
// and injects them into the request's context for downstream handlers to use.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			// If no cookie is present, the user is unauthorized.
			RespondWithError(w, http.StatusUnauthorized, "Unauthorized: No session token")
			return
		}

		user, err := s.store.GetUserFromSession(cookie.Value)
		if err != nil {
			// If the token is invalid or expired, the user is unauthorized.
			RespondWithError(w, http.StatusUnauthorized, "Unauthorized: Invalid session")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getUserFromContext is a helper function to safely retrieve the user object
// from the request context. It returns nil if the user is not found.
func getUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
