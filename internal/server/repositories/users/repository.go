// Package users declares the server-side repository contract for identity
// records. The auth flow only reads and updates the fields needed for
// login; profile data lives elsewhere.
package users

import (
	"context"

	"github.com/taskkeeper/taskkeeper/internal/server/models"
)

// Repository defines operations on identity records.
type Repository interface {
	// Create inserts a new user and returns it with the generated id.
	// Returns common.ErrorAlreadyExists when the email is taken.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user with the given email, or
	// common.ErrorNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the user with the given id, or common.ErrorNotFound
	// when absent.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// Exists reports whether a user with the given email is registered.
	Exists(ctx context.Context, email string) (bool, error)

	// UpdateLastLogin stamps the user's last successful login time.
	UpdateLastLogin(ctx context.Context, id string) error
}
