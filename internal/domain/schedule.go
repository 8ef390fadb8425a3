package domain

import (
	"sort"
	"time"
)

// Recurrence describes how a schedule intent repeats.
type Recurrence string

const (
	RecurrenceNone   Recurrence = "none"
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
	RecurrenceCustom Recurrence = "custom"
)

// OccurrenceStatus tracks the lifecycle of one scheduled workout.
type OccurrenceStatus string

const (
	OccurrenceScheduled OccurrenceStatus = "scheduled"
	OccurrenceCompleted OccurrenceStatus = "completed"
	OccurrenceCancelled OccurrenceStatus = "cancelled"
)

// Date and clock layouts used by scheduled occurrences.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ScheduleIntent is the user's request to schedule a workout plan, once or repeatedly.
// It is expanded into occurrences and never stored itself.
type ScheduleIntent struct {
	OwnerID               string     `json:"ownerId"`
	SubjectID             string     `json:"subjectId"`
	AnchorDateTime        time.Time  `json:"anchorDateTime"`
	Recurrence            Recurrence `json:"recurrence"`
	CustomDays            []string   `json:"customDays,omitempty"`
	ReminderOffsetMinutes int        `json:"reminderOffsetMinutes"`
}

// ScheduledOccurrence is one concrete dated workout. OccurrenceID survives reschedules.
type ScheduledOccurrence struct {
	OccurrenceID          string           `json:"occurrenceId"`
	SubjectID             string           `json:"subjectId"`
	OwnerID               string           `json:"ownerId"`
	Date                  string           `json:"date"`
	Time                  string           `json:"time"`
	Status                OccurrenceStatus `json:"status"`
	ReminderOffsetMinutes int              `json:"reminderOffsetMinutes,omitempty"`
	CompletedAt           *time.Time       `json:"completedAt,omitempty"`
}

// Start parses Date and Time in loc.
func (o *ScheduledOccurrence) Start(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, o.Date+" "+o.Time, loc)
}

// ScheduleState is the cached list of an owner's upcoming, non-cancelled occurrences.
type ScheduleState struct {
	Occurrences []ScheduledOccurrence `json:"occurrences"`
	Speculative bool                  `json:"speculative"`
	UpdatedAt   time.Time             `json:"updatedAt"`
}

// Find returns the index of the occurrence with the given id, or -1.
func (s *ScheduleState) Find(occurrenceID string) int {
	for i := range s.Occurrences {
		if s.Occurrences[i].OccurrenceID == occurrenceID {
			return i
		}
	}
	return -1
}

// SortOccurrences orders occurrences by date then time.
func SortOccurrences(occ []ScheduledOccurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		if occ[i].Date != occ[j].Date {
			return occ[i].Date < occ[j].Date
		}
		return occ[i].Time < occ[j].Time
	})
}

// ScheduleCreate is the payload of a schedule.create action.
type ScheduleCreate struct {
	Occurrences []ScheduledOccurrence `json:"occurrences"`
}

// ScheduleMove is the payload of a schedule.reschedule action.
type ScheduleMove struct {
	Date string `json:"date"`
	Time string `json:"time"`
}
