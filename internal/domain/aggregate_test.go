package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgress(t *testing.T) {
	tests := []struct {
		count, target, want int
	}{
		{0, 4, 0},
		{1, 4, 25},
		{2, 3, 67},
		{4, 4, 100},
		{9, 4, 100},
		{-3, 4, 0},
		{1, 0, 25}, // falls back to the default target
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Progress(tt.count, tt.target), "count=%d target=%d", tt.count, tt.target)
	}
}

func TestProgress_NeverOutOfRange(t *testing.T) {
	for target := 1; target <= 12; target++ {
		for count := 0; count <= 50; count++ {
			p := Progress(count, target)
			assert.GreaterOrEqual(t, p, 0)
			assert.LessOrEqual(t, p, 100)
		}
	}
}

func TestNewAggregate(t *testing.T) {
	ws := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := NewAggregate(3, 0, ws)
	assert.Equal(t, DefaultWeeklyTarget, a.Target)
	assert.Equal(t, 75, a.Progress)
	assert.Equal(t, ws, a.WeekStart)
}

func TestWeekStart(t *testing.T) {
	// 2024-01-04 is a Thursday; its ISO week starts Monday 2024-01-01.
	thu := time.Date(2024, 1, 4, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), WeekStart(thu))

	sun := time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), WeekStart(sun))

	mon := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, mon, WeekStart(mon))
}
