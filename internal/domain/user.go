package domain

import "time"

// User is an account that owns actions, schedules and photos.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`        // Should be unique
	PasswordHash string    `json:"-"`            // Never expose this via JSON
	WeeklyTarget int       `json:"weeklyTarget"` // 0 means DefaultWeeklyTarget
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Target returns the user's weekly workout goal.
func (u *User) Target() int {
	if u.WeeklyTarget <= 0 {
		return DefaultWeeklyTarget
	}
	return u.WeeklyTarget
}
