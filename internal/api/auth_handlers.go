package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vikramsd/fluxgen/internal/auth"
)

const (
	sessionCookieName = "session_token"
	sessionLifetime   = 7 * 24 * time.Hour
)

// sessionCookie builds the session cookie with the flags every auth
// response uses. An empty token yields an already-expired cookie, which is
// how logout clears the browser side.
func sessionCookie(r *http.Request, token string) *http.Cookie {
	c := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		c.Expires = time.Unix(0, 0)
		c.MaxAge = -1
	} else {
		c.Expires = time.Now().Add(sessionLifetime)
	}
	return c
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	// An unknown username and a wrong password answer identically.
	user, err := s.store.GetUserByUsername(creds.Username)
	if err != nil || !auth.CheckPasswordHash(creds.Password, user.PasswordHash) {
		RespondWithError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := s.store.CreateSession(user.ID)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	http.SetCookie(w, sessionCookie(r, token))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.store.DeleteSession(cookie.Value)
	}
	http.SetCookie(w, sessionCookie(r, ""))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		RespondWithError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	RespondWithJSON(w, http.StatusOK, user)
}
