package models

import "time"

// User is the identity record consumed by the auth flow. PasswordHash is an
// argon2id PHC string and must never leave the service layer or appear in logs.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
	IsVerified   bool
	LastLogin    *time.Time
	CreatedAt    time.Time
}
