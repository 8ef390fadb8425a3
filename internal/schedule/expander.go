// Package schedule turns schedule intents into dated occurrences and checks
// candidate slots against an owner's existing occurrences.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"alcyxob/fitness-sync/internal/domain"
)

// Expansion horizons.
const (
	DailyDays   = 30 // daily: anchor plus 30 days
	WeeklyWeeks = 12 // weekly: anchor plus 12 weeks
	CustomWeeks = 8  // custom: weeks 0..7 from the anchor's week
)

var (
	ErrMissingAnchor     = errors.New("schedule: anchor date/time is required")
	ErrMissingOwner      = errors.New("schedule: owner is required")
	ErrUnknownRecurrence = errors.New("schedule: unknown recurrence")
	ErrNoCustomDays      = errors.New("schedule: custom recurrence needs at least one weekday")
	ErrUnknownWeekday    = errors.New("schedule: unknown weekday")
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseWeekday accepts full or three-letter English weekday names in any case.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownWeekday, name)
	}
	return wd, nil
}

// Expand converts an intent into concrete occurrences sorted by date.
// newID generates occurrence ids; nil uses random UUIDs.
//
// For custom recurrence, each named weekday is placed in weeks 0..7 of the
// anchor's Sunday-started week. Dates on or before the anchor date are skipped,
// so the anchor's own weekday is not scheduled in week 0.
func Expand(intent domain.ScheduleIntent, newID func() string) ([]domain.ScheduledOccurrence, error) {
	if intent.AnchorDateTime.IsZero() {
		return nil, ErrMissingAnchor
	}
	if intent.OwnerID == "" {
		return nil, ErrMissingOwner
	}
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}

	anchor := intent.AnchorDateTime
	var dates []time.Time

	switch intent.Recurrence {
	case domain.RecurrenceNone, "":
		dates = []time.Time{anchor}
	case domain.RecurrenceDaily:
		for i := 0; i <= DailyDays; i++ {
			dates = append(dates, anchor.AddDate(0, 0, i))
		}
	case domain.RecurrenceWeekly:
		for i := 0; i <= WeeklyWeeks; i++ {
			dates = append(dates, anchor.AddDate(0, 0, 7*i))
		}
	case domain.RecurrenceCustom:
		days, err := customWeekdays(intent.CustomDays)
		if err != nil {
			return nil, err
		}
		dates = expandCustom(anchor, days)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecurrence, intent.Recurrence)
	}

	clock := anchor.Format(domain.TimeLayout)
	out := make([]domain.ScheduledOccurrence, 0, len(dates))
	for _, d := range dates {
		out = append(out, domain.ScheduledOccurrence{
			OccurrenceID:          newID(),
			SubjectID:             intent.SubjectID,
			OwnerID:               intent.OwnerID,
			Date:                  d.Format(domain.DateLayout),
			Time:                  clock,
			Status:                domain.OccurrenceScheduled,
			ReminderOffsetMinutes: intent.ReminderOffsetMinutes,
		})
	}
	domain.SortOccurrences(out)
	return out, nil
}

// customWeekdays parses and dedups the names, keeping first-seen order.
func customWeekdays(names []string) ([]time.Weekday, error) {
	if len(names) == 0 {
		return nil, ErrNoCustomDays
	}
	seen := make(map[time.Weekday]bool, len(names))
	var days []time.Weekday
	for _, n := range names {
		wd, err := ParseWeekday(n)
		if err != nil {
			return nil, err
		}
		if seen[wd] {
			continue
		}
		seen[wd] = true
		days = append(days, wd)
	}
	return days, nil
}

func expandCustom(anchor time.Time, days []time.Weekday) []time.Time {
	y, m, d := anchor.Date()
	anchorDay := time.Date(y, m, d, 0, 0, 0, 0, anchor.Location())
	weekStart := anchorDay.AddDate(0, 0, -int(anchorDay.Weekday()))

	var dates []time.Time
	for w := 0; w < CustomWeeks; w++ {
		for _, wd := range days {
			day := weekStart.AddDate(0, 0, 7*w+int(wd))
			if !day.After(anchorDay) {
				continue
			}
			dates = append(dates, time.Date(day.Year(), day.Month(), day.Day(),
				anchor.Hour(), anchor.Minute(), 0, 0, anchor.Location()))
		}
	}
	return dates
}
