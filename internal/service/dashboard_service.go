package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/localstore"
	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/remote"
	"alcyxob/fitness-sync/internal/syncengine"
)

// WorkoutsDomain is the sync domain name of workout completions.
const WorkoutsDomain = "workouts"

// DashboardService records workout completions and serves the weekly progress
// aggregate. Completions show up in Stats immediately and sync in the background.
type DashboardService interface {
	Syncer
	CompleteWorkout(ctx context.Context, workoutID string, c domain.WorkoutCompletion) (domain.PendingAction, error)
	Stats() (domain.AggregateState, bool)
	Refresh(ctx context.Context) (domain.AggregateState, error)
	Subscribe(fn func(domain.AggregateState)) func()
}

type dashboardService struct {
	*syncengine.Engine[domain.AggregateState]
}

// NewDashboardService creates the workout engine for ownerID. weeklyTarget comes from
// the user record; zero or less uses the default.
func NewDashboardService(ownerID string, rs remote.Store, ls localstore.Store, weeklyTarget int, opts syncengine.Options) DashboardService {
	if weeklyTarget <= 0 {
		weeklyTarget = domain.DefaultWeeklyTarget
	}
	dom := &workoutDomain{store: rs, target: weeklyTarget, now: nowFunc(opts)}
	return &dashboardService{Engine: syncengine.New[domain.AggregateState](ownerID, dom, ls, opts)}
}

func (s *dashboardService) CompleteWorkout(ctx context.Context, workoutID string, c domain.WorkoutCompletion) (domain.PendingAction, error) {
	if strings.TrimSpace(workoutID) == "" || c.DurationMinutes < 0 {
		return domain.PendingAction{}, ErrInvalidInput
	}
	return s.Record(ctx, domain.KindWorkoutComplete, workoutID, c)
}

func (s *dashboardService) Stats() (domain.AggregateState, bool) {
	return s.State()
}

// workoutDomain counts completions in the current ISO week (Monday 00:00 UTC).
type workoutDomain struct {
	store  remote.Store
	target int
	now    func() time.Time
}

func (d *workoutDomain) Name() string { return WorkoutsDomain }

func (d *workoutDomain) Apply(s domain.AggregateState, a domain.PendingAction) (domain.AggregateState, error) {
	if a.Kind != domain.KindWorkoutComplete {
		return s, fmt.Errorf("workouts: unexpected action kind %q", a.Kind)
	}
	weekStart := domain.WeekStart(a.OccurredAt.UTC())
	if weekStart.Before(s.WeekStart) {
		return s, nil
	}
	count := s.Count + 1
	// The cached week ended; this completion opens a new one.
	if weekStart.After(s.WeekStart) {
		count = 1
	}

	next := domain.NewAggregate(count, s.Target, weekStart)
	next.Speculative = true
	next.UpdatedAt = d.now().UTC()
	return next, nil
}

func (d *workoutDomain) Push(ctx context.Context, a domain.PendingAction) error {
	var c domain.WorkoutCompletion
	if err := a.DecodePayload(&c); err != nil {
		return fmt.Errorf("decode completion: %w", err)
	}

	// The action id is the completion's primary key, so a re-push is a no-op.
	_, err := d.store.Insert(ctx, remote.TableCompletions, []remote.Row{{
		remote.IDField:     a.ActionID,
		"owner_id":         a.OwnerID,
		"workout_id":       a.SubjectID,
		"completed_at":     a.OccurredAt.UTC(),
		"duration_minutes": c.DurationMinutes,
		"notes":            c.Notes,
	}})
	if err != nil {
		return err
	}

	err = d.store.Update(ctx, remote.TableWorkouts, a.SubjectID, remote.Row{
		"completed_at":          a.OccurredAt.UTC(),
		"last_duration_minutes": c.DurationMinutes,
		"updated_at":            d.now().UTC(),
	})
	if remote.IsNotFound(err) {
		logging.Debug().Str("workout_id", a.SubjectID).Msg("completed workout has no workout row")
		return nil
	}
	return err
}

func (d *workoutDomain) Fetch(ctx context.Context, ownerID string) (domain.AggregateState, error) {
	now := d.now().UTC()
	weekStart := domain.WeekStart(now)

	rows, err := d.store.Query(ctx, remote.TableCompletions, remote.Where(
		remote.Eq("owner_id", ownerID),
		remote.Gte("completed_at", weekStart),
	))
	if err != nil {
		return domain.AggregateState{}, err
	}

	s := domain.NewAggregate(len(rows), d.target, weekStart)
	s.UpdatedAt = now
	return s, nil
}
