package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/taskkeeper/taskkeeper/internal/common"
	"github.com/taskkeeper/taskkeeper/internal/server/models"
)

type contextKey struct{ name string }

var userContextKey = contextKey{"user"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid input"})
	case errors.Is(err, common.ErrorAlreadyExists):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "email already registered"})
	case errors.Is(err, common.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
	case errors.Is(err, common.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
	case errors.Is(err, common.ErrInvalidSession):
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid session"})
	case errors.Is(err, common.ErrInactiveUser):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "inactive user"})
	default:
		s.logger.Error(r.Context(), "internal error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func extractBearer(header string) string {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func userResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		IsActive:   user.IsActive,
		IsVerified: user.IsVerified,
		LastLogin:  user.LastLogin,
		CreatedAt:  user.CreatedAt,
	}
}

// requireUser resolves the Bearer token and stores the identity in the
// request context. No token and a bad token both end up as 401.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r.Header.Get("Authorization"))
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing token"})
			return
		}

		user, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

func currentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// POST /auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse(user))
}

// POST /auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	creds, err := s.auth.Login(r.Context(), req.Email, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setSessionCookie(w, creds.SessionSecret)
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: creds.AccessToken, TokenType: "bearer"})
}

// POST /auth/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing session"})
		return
	}

	accessToken, err := s.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, common.ErrInvalidSession) || errors.Is(err, common.ErrInactiveUser) {
			s.clearSessionCookie(w)
		}
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: accessToken, TokenType: "bearer"})
}

// POST /auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing session"})
		return
	}

	ok, err := s.auth.Logout(r.Context(), user.ID, cookie.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, LogoutResponse{Ok: ok})
}

// POST /auth/logout-all
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r.Context())

	count, err := s.auth.LogoutEverywhere(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, LogoutAllResponse{Revoked: count})
}

// GET /auth/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userResponse(currentUser(r.Context())))
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
