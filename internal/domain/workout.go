package domain

import "time"

// Workout is a single workout (or plan day) a user can schedule and complete.
type Workout struct {
	ID                  string     `json:"id"`
	OwnerID             string     `json:"ownerId"`
	Name                string     `json:"name"`                // e.g., "Day 1: Upper Body", "Long Run"
	DayOfWeek           *int       `json:"dayOfWeek,omitempty"` // Optional: 1 (Mon) - 7 (Sun)
	Notes               string     `json:"notes,omitempty"`
	CompletedAt         *time.Time `json:"completedAt,omitempty"` // Last completion, set by sync
	LastDurationMinutes int        `json:"lastDurationMinutes,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}
