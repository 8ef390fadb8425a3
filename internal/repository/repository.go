package repository

import (
	"alcyxob/fitness-sync/internal/domain" // Import our defined domain models
	"context"                              // Standard for request-scoped deadlines, cancellation signals, etc.
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("already exists")
	ErrInvalidInput = RepositoryError("invalid input")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (string, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateWeeklyTarget(ctx context.Context, id string, target int) error
}

// WorkoutRepository defines the interface for interacting with workout data.
// Completion state is written by the sync engine, not through this interface.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (string, error)
	GetByID(ctx context.Context, id string) (*domain.Workout, error)
	GetByOwnerID(ctx context.Context, ownerID string) ([]domain.Workout, error)
	Delete(ctx context.Context, id, ownerID string) error // Ensure the owner owns the workout
}
