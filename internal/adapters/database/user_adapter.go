package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/clinicbook/backend/internal/domain/entities"
	"github.com/clinicbook/backend/internal/domain/repositories"
	"github.com/clinicbook/backend/internal/infrastructure/clients/postgres"
	"github.com/clinicbook/backend/internal/infrastructure/observability"
	apperrors "github.com/clinicbook/backend/pkg/errors"
)

var userColumns = []interface{}{
	"id", "name", "email", "role", "specialty", "created_at", "updated_at",
}

// UserAdapter implements the UserRepository interface
type UserAdapter struct {
	client  *postgres.Client
	db      *goqu.Database
	metrics *observability.Metrics
}

// NewUserAdapter creates a new user adapter. metrics may be nil.
func NewUserAdapter(client *postgres.Client, metrics *observability.Metrics) repositories.UserRepository {
	return &UserAdapter{
		client:  client,
		db:      goqu.New("postgres", client.DB()),
		metrics: metrics,
	}
}

// GetByID retrieves a user by ID
func (a *UserAdapter) GetByID(ctx context.Context, id string) (*entities.User, error) {
	defer func(start time.Time) {
		observability.RecordDBMetric(ctx, a.metrics, "users.get_by_id", time.Since(start))
	}(time.Now())

	return a.getOne(ctx, goqu.Ex{"id": id}, "User not found")
}

// GetByEmail retrieves the first user whose email matches exactly
func (a *UserAdapter) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	defer func(start time.Time) {
		observability.RecordDBMetric(ctx, a.metrics, "users.get_by_email", time.Since(start))
	}(time.Now())

	return a.getOne(ctx, goqu.Ex{"email": email}, "Patient not found")
}

func (a *UserAdapter) getOne(ctx context.Context, where goqu.Ex, notFound string) (*entities.User, error) {
	query, args, err := a.db.Select(userColumns...).
		From("users").
		Where(where).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	user := &entities.User{}
	var specialty sql.NullString

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&specialty,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
		return nil, apperrors.NewNotFoundError(notFound)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get user", err)
	}

	if specialty.Valid {
		user.Specialty = &specialty.String
	}

	return user, nil
}
