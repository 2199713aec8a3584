package httpapi

import "time"

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by login and refresh. The session secret travels
// separately, in an HttpOnly cookie.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type UserResponse struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	IsActive   bool       `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type LogoutResponse struct {
	Ok bool `json:"ok"`
}

type LogoutAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
