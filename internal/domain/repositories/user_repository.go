package repositories

import (
	"context"

	"github.com/clinicbook/backend/internal/domain/entities"
)

// UserRepository defines the read operations the booking flows need on users
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByEmail retrieves the first user with exactly this email
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
}
