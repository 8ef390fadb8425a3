package domain

import (
	"math"
	"time"
)

// DefaultWeeklyTarget is the number of workouts per week that counts as 100%.
const DefaultWeeklyTarget = 4

// AggregateState is the cached weekly workout summary shown on the dashboard.
// It is always derivable from the remote store; the cached copy exists for instant paint.
type AggregateState struct {
	Count       int       `json:"count"`
	Target      int       `json:"target"`
	Progress    int       `json:"progress"`
	WeekStart   time.Time `json:"weekStart"`
	Speculative bool      `json:"speculative"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewAggregate builds an aggregate with a consistent progress value.
func NewAggregate(count, target int, weekStart time.Time) AggregateState {
	if target <= 0 {
		target = DefaultWeeklyTarget
	}
	return AggregateState{
		Count:     count,
		Target:    target,
		Progress:  Progress(count, target),
		WeekStart: weekStart,
	}
}

// Progress returns min(round(count/target*100), 100), clamped at zero.
func Progress(count, target int) int {
	if target <= 0 {
		target = DefaultWeeklyTarget
	}
	if count <= 0 {
		return 0
	}
	p := int(math.Round(float64(count) / float64(target) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// WeekStart returns Monday 00:00 of the ISO week containing t, in t's location.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}
