package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/localstore"
	"alcyxob/fitness-sync/internal/remote"
)

func seedCompletion(t *testing.T, rs *remote.MemoryStore, id, owner string, at time.Time) {
	t.Helper()
	_, err := rs.Insert(context.Background(), remote.TableCompletions, []remote.Row{{
		remote.IDField: id, "owner_id": owner, "workout_id": "w0", "completed_at": at,
	}})
	require.NoError(t, err)
}

func TestDashboard_CountsOnlyCurrentWeek(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	seedCompletion(t, rs, "c1", "u1", wednesday.AddDate(0, 0, -8))
	seedCompletion(t, rs, "c2", "u1", wednesday.AddDate(0, 0, -2))
	seedCompletion(t, rs, "c3", "u1", wednesday.Add(-time.Hour))
	seedCompletion(t, rs, "c4", "u2", wednesday.Add(-time.Hour))

	svc := NewDashboardService("u1", rs, localstore.NewMemoryStore(), 4, testOptions(wednesday))
	defer svc.Close()

	s, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count)
	assert.Equal(t, 50, s.Progress)
	assert.Equal(t, time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC), s.WeekStart)
	assert.False(t, s.Speculative)
}

func TestDashboard_CompleteWorkoutSyncs(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	_, err := rs.Insert(ctx, remote.TableWorkouts, []remote.Row{{remote.IDField: "w1", "owner_id": "u1", "name": "Long Run"}})
	require.NoError(t, err)

	svc := NewDashboardService("u1", rs, localstore.NewMemoryStore(), 0, testOptions(wednesday))
	defer svc.Close()
	_, err = svc.Refresh(ctx)
	require.NoError(t, err)

	var seen []domain.AggregateState
	unsubscribe := svc.Subscribe(func(s domain.AggregateState) { seen = append(seen, s) })
	defer unsubscribe()

	action, err := svc.CompleteWorkout(ctx, "w1", domain.WorkoutCompletion{DurationMinutes: 45})
	require.NoError(t, err)
	settled(t, svc)

	rows := rs.Rows(remote.TableCompletions)
	require.Len(t, rows, 1)
	assert.Equal(t, action.ActionID, rows[0].ID())
	assert.Equal(t, "w1", rows[0].String("workout_id"))
	assert.Equal(t, 45, rows[0].Int("duration_minutes"))

	workout := rs.Rows(remote.TableWorkouts)[0]
	completedAt, ok := workout.Time("completed_at")
	require.True(t, ok)
	assert.True(t, completedAt.Equal(wednesday))

	stats, ok := svc.Stats()
	require.True(t, ok)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, domain.DefaultWeeklyTarget, stats.Target)
	assert.Equal(t, 25, stats.Progress)
	assert.Empty(t, svc.Pending())
	require.NotEmpty(t, seen)
	assert.True(t, seen[0].Speculative)
}

func TestDashboard_CompletionWithoutWorkoutRowStillSyncs(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	svc := NewDashboardService("u1", rs, localstore.NewMemoryStore(), 4, testOptions(wednesday))
	defer svc.Close()

	_, err := svc.CompleteWorkout(ctx, "gone", domain.WorkoutCompletion{})
	require.NoError(t, err)
	settled(t, svc)

	assert.Empty(t, svc.Pending())
	assert.Len(t, rs.Rows(remote.TableCompletions), 1)
}

func TestDashboard_OfflineCompletionIsOptimistic(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	svc := NewDashboardService("u1", rs, localstore.NewMemoryStore(), 4, testOptions(wednesday))
	defer svc.Close()
	_, err := svc.Refresh(ctx)
	require.NoError(t, err)

	rs.SetOffline(true)
	_, err = svc.CompleteWorkout(ctx, "w1", domain.WorkoutCompletion{})
	require.NoError(t, err)
	settled(t, svc)

	stats, _ := svc.Stats()
	assert.Equal(t, 1, stats.Count)
	assert.True(t, stats.Speculative)
	assert.Len(t, svc.Pending(), 1)

	rs.SetOffline(false)
	res := svc.CatchUp(ctx)
	assert.Equal(t, 1, res.Synced)
	stats, _ = svc.Stats()
	assert.Equal(t, 1, stats.Count)
	assert.False(t, stats.Speculative)
}

func TestDashboard_RejectsBadInput(t *testing.T) {
	svc := NewDashboardService("u1", remote.NewMemoryStore(), localstore.NewMemoryStore(), 4, testOptions(wednesday))
	defer svc.Close()

	_, err := svc.CompleteWorkout(context.Background(), " ", domain.WorkoutCompletion{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CompleteWorkout(context.Background(), "w1", domain.WorkoutCompletion{DurationMinutes: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestWorkoutDomain_ApplyWeekRollover(t *testing.T) {
	d := &workoutDomain{target: 4, now: func() time.Time { return wednesday }}
	thisWeek := domain.WeekStart(wednesday)
	current := domain.NewAggregate(3, 4, thisWeek)

	tests := []struct {
		name      string
		at        time.Time
		wantCount int
		wantWeek  time.Time
	}{
		{"same week", wednesday, 4, thisWeek},
		{"next week", wednesday.AddDate(0, 0, 7), 1, thisWeek.AddDate(0, 0, 7)},
		{"previous week", wednesday.AddDate(0, 0, -7), 3, thisWeek},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := d.Apply(current, domain.PendingAction{Kind: domain.KindWorkoutComplete, OccurredAt: tt.at})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, next.Count)
			assert.Equal(t, tt.wantWeek, next.WeekStart)
		})
	}

	_, err := d.Apply(current, domain.PendingAction{Kind: domain.KindPhotoAdd})
	assert.Error(t, err)
}
