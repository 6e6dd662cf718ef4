package api

import (
	"errors"
	"net/http"

	"mitre-shield/internal/api/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		respondError(w, http.StatusNotFound, "Authentication is disabled")
		return
	}

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	if !s.loginLimiter.AllowLogin(req.Username) {
		s.logger.Warn("login rate limited", "username", req.Username)
		respondError(w, http.StatusTooManyRequests, "Too many login attempts, try again later")
		return
	}

	session, err := s.sessions.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		s.logger.Error("login failed", "username", req.Username, "error", err)
		respondError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	s.logger.Info("user logged in", "username", session.Username)

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"token":      session.Token,
		"username":   session.Username,
		"expires_at": session.ExpiresAt,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		respondError(w, http.StatusNotFound, "Authentication is disabled")
		return
	}

	token := bearerToken(r)
	if token != "" {
		if err := s.sessions.Logout(r.Context(), token); err != nil {
			s.logger.Warn("logout failed", "error", err)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		respondError(w, http.StatusNotFound, "Authentication is disabled")
		return
	}

	// The auth middleware has already validated the token.
	session := sessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"username":       session.Username,
		"created_at":     session.CreatedAt,
		"expires_at":     session.ExpiresAt,
		"last_active_at": session.LastActiveAt,
	})
}
