package repository

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/remote"
)

// workoutRepository implements WorkoutRepository
type workoutRepository struct {
	store remote.Store
}

// NewWorkoutRepository creates a new Workout repository.
func NewWorkoutRepository(store remote.Store) WorkoutRepository {
	return &workoutRepository{store: store}
}

// Create inserts a new workout.
func (r *workoutRepository) Create(ctx context.Context, workout *domain.Workout) (string, error) {
	if workout.OwnerID == "" || workout.Name == "" {
		return "", ErrInvalidInput
	}
	if workout.DayOfWeek != nil && (*workout.DayOfWeek < 1 || *workout.DayOfWeek > 7) {
		return "", ErrInvalidInput
	}
	workout.ID = uuid.New().String()
	now := time.Now().UTC()
	workout.CreatedAt = now
	workout.UpdatedAt = now

	if _, err := r.store.Insert(ctx, remote.TableWorkouts, []remote.Row{workoutToRow(workout)}); err != nil {
		return "", err
	}
	return workout.ID, nil
}

// GetByID retrieves a single workout by its ID.
func (r *workoutRepository) GetByID(ctx context.Context, id string) (*domain.Workout, error) {
	rows, err := r.store.Query(ctx, remote.TableWorkouts, remote.Where(remote.Eq(remote.IDField, id)))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rowToWorkout(rows[0]), nil
}

// GetByOwnerID retrieves all workouts of an owner, oldest first.
func (r *workoutRepository) GetByOwnerID(ctx context.Context, ownerID string) ([]domain.Workout, error) {
	rows, err := r.store.Query(ctx, remote.TableWorkouts, remote.Where(remote.Eq("owner_id", ownerID)))
	if err != nil {
		return nil, err
	}
	workouts := make([]domain.Workout, 0, len(rows))
	for _, row := range rows {
		workouts = append(workouts, *rowToWorkout(row))
	}
	sort.SliceStable(workouts, func(i, j int) bool {
		return workouts[i].CreatedAt.Before(workouts[j].CreatedAt)
	})
	return workouts, nil
}

// Delete removes a workout owned by ownerID.
func (r *workoutRepository) Delete(ctx context.Context, id, ownerID string) error {
	w, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if w.OwnerID != ownerID {
		return ErrNotFound
	}
	err = r.store.Delete(ctx, remote.TableWorkouts, id)
	if remote.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func workoutToRow(w *domain.Workout) remote.Row {
	row := remote.Row{
		remote.IDField:          w.ID,
		"owner_id":              w.OwnerID,
		"name":                  w.Name,
		"notes":                 w.Notes,
		"last_duration_minutes": w.LastDurationMinutes,
		"created_at":            w.CreatedAt,
		"updated_at":            w.UpdatedAt,
	}
	if w.DayOfWeek != nil {
		row["day_of_week"] = *w.DayOfWeek
	}
	if w.CompletedAt != nil {
		row["completed_at"] = *w.CompletedAt
	}
	return row
}

func rowToWorkout(row remote.Row) *domain.Workout {
	w := &domain.Workout{
		ID:                  row.ID(),
		OwnerID:             row.String("owner_id"),
		Name:                row.String("name"),
		Notes:               row.String("notes"),
		LastDurationMinutes: row.Int("last_duration_minutes"),
	}
	if _, ok := row["day_of_week"]; ok {
		d := row.Int("day_of_week")
		w.DayOfWeek = &d
	}
	if t, ok := row.Time("completed_at"); ok {
		w.CompletedAt = &t
	}
	w.CreatedAt, _ = row.Time("created_at")
	w.UpdatedAt, _ = row.Time("updated_at")
	return w
}
