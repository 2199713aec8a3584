// Package httpapi exposes the authentication flows over HTTP/JSON. Access
// tokens travel in the Authorization header; the long-lived session secret is
// kept in an HttpOnly cookie scoped to the auth endpoints so scripts on other
// paths never see it.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/taskkeeper/taskkeeper/internal/logging"
	"github.com/taskkeeper/taskkeeper/internal/server/config"
	"github.com/taskkeeper/taskkeeper/internal/server/models"
	"github.com/taskkeeper/taskkeeper/internal/server/services"
)

// SessionCookieName is the cookie carrying the opaque session secret.
const SessionCookieName = "session"

const sessionCookiePath = "/auth"

// AuthService is the application service behind the HTTP handlers.
type AuthService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password, device, ipAddress string) (*services.Credentials, error)
	Refresh(ctx context.Context, sessionSecret string) (string, error)
	Logout(ctx context.Context, userID, sessionSecret string) (bool, error)
	LogoutEverywhere(ctx context.Context, userID string) (int64, error)
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	auth       AuthService
	sessionTTL time.Duration
	logger     logging.Logger
}

func NewServer(auth AuthService, cfg *config.Config, logger logging.Logger) *Server {
	return &Server{
		auth:       auth,
		sessionTTL: cfg.SessionValidityDuration,
		logger:     logger,
	}
}

// Handler returns the routed handler for the whole API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout", s.requireUser(s.handleLogout))
	mux.HandleFunc("POST /auth/logout-all", s.requireUser(s.handleLogoutAll))
	mux.HandleFunc("GET /auth/me", s.requireUser(s.handleMe))
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

func (s *Server) setSessionCookie(w http.ResponseWriter, secret string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    secret,
		Path:     sessionCookiePath,
		Expires:  time.Now().Add(s.sessionTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     sessionCookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
