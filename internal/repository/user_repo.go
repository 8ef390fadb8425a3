package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/remote"
)

// userRepository implements UserRepository on top of the remote store.
type userRepository struct {
	store remote.Store
}

// NewUserRepository creates a new instance of userRepository.
func NewUserRepository(store remote.Store) UserRepository {
	return &userRepository{store: store}
}

// Create inserts a new user. Emails are stored lower-cased and must be unique.
func (r *userRepository) Create(ctx context.Context, user *domain.User) (string, error) {
	if user.Email == "" || user.PasswordHash == "" {
		return "", ErrInvalidInput
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	if _, err := r.GetByEmail(ctx, user.Email); err == nil {
		return "", ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	user.ID = uuid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	ids, err := r.store.Insert(ctx, remote.TableUsers, []remote.Row{userToRow(user)})
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", ErrDuplicate
	}
	return user.ID, nil
}

// GetByEmail retrieves a user by their email address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, remote.Eq("email", strings.ToLower(strings.TrimSpace(email))))
}

// GetByID retrieves a user by id.
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, remote.Eq(remote.IDField, id))
}

func (r *userRepository) findOne(ctx context.Context, cond remote.Cond) (*domain.User, error) {
	rows, err := r.store.Query(ctx, remote.TableUsers, remote.Where(cond))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rowToUser(rows[0]), nil
}

// UpdateWeeklyTarget sets the number of workouts per week that counts as 100%.
func (r *userRepository) UpdateWeeklyTarget(ctx context.Context, id string, target int) error {
	if target <= 0 {
		return ErrInvalidInput
	}
	err := r.store.Update(ctx, remote.TableUsers, id, remote.Row{
		"weekly_target": target,
		"updated_at":    time.Now().UTC(),
	})
	if remote.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func userToRow(u *domain.User) remote.Row {
	return remote.Row{
		remote.IDField:  u.ID,
		"name":          u.Name,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"weekly_target": u.WeeklyTarget,
		"created_at":    u.CreatedAt,
		"updated_at":    u.UpdatedAt,
	}
}

func rowToUser(row remote.Row) *domain.User {
	u := &domain.User{
		ID:           row.ID(),
		Name:         row.String("name"),
		Email:        row.String("email"),
		PasswordHash: row.String("password_hash"),
		WeeklyTarget: row.Int("weekly_target"),
	}
	u.CreatedAt, _ = row.Time("created_at")
	u.UpdatedAt, _ = row.Time("updated_at")
	return u
}
