package schedule

import (
	"fmt"
	"time"

	"alcyxob/fitness-sync/internal/domain"
)

// ConflictWindow is how close two occurrences on the same day may start before
// they collide.
const ConflictWindow = time.Hour

// Candidate is a slot being checked. ExcludeID skips the occurrence being moved.
type Candidate struct {
	OwnerID   string
	Date      string
	Time      string
	ExcludeID string
}

// Suggestion is an alternative slot offered when a candidate conflicts.
type Suggestion struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Label string `json:"label"`
}

// Conflict reports one new occurrence that collides with existing ones.
type Conflict struct {
	Occurrence   domain.ScheduledOccurrence   `json:"occurrence"`
	CollidesWith []domain.ScheduledOccurrence `json:"collidesWith"`
	Suggestions  []Suggestion                 `json:"suggestions"`
}

// ParseClock validates an "HH:MM" string and returns seconds since midnight.
func ParseClock(clock string) (int, error) {
	t, err := time.Parse(domain.TimeLayout, clock)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	return t.Hour()*3600 + t.Minute()*60, nil
}

// ValidateSlot checks the date and time layouts.
func ValidateSlot(date, clock string) error {
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}
	_, err := ParseClock(clock)
	return err
}

// Conflicts returns the existing scheduled occurrences of the same owner on the
// same date that start less than an hour from the candidate. Completed and
// cancelled occurrences never conflict. An unparsable candidate has no conflicts.
func Conflicts(existing []domain.ScheduledOccurrence, c Candidate) []domain.ScheduledOccurrence {
	at, err := ParseClock(c.Time)
	if err != nil {
		return nil
	}
	window := int(ConflictWindow / time.Second)

	var out []domain.ScheduledOccurrence
	for _, o := range existing {
		if o.OwnerID != c.OwnerID || o.Date != c.Date || o.Status != domain.OccurrenceScheduled {
			continue
		}
		if c.ExcludeID != "" && o.OccurrenceID == c.ExcludeID {
			continue
		}
		other, err := ParseClock(o.Time)
		if err != nil {
			continue
		}
		delta := at - other
		if delta < 0 {
			delta = -delta
		}
		if delta < window {
			out = append(out, o)
		}
	}
	return out
}

// HasConflict reports whether the slot collides with an existing occurrence.
func HasConflict(existing []domain.ScheduledOccurrence, ownerID, date, clock string) bool {
	return len(Conflicts(existing, Candidate{OwnerID: ownerID, Date: date, Time: clock})) > 0
}

// Suggest proposes +2h, +1 day and -2h alternatives. Shifts that cross midnight
// move the date. The suggestions are not checked for conflicts themselves.
func Suggest(date, clock string) ([]Suggestion, error) {
	start, err := time.Parse(domain.DateLayout+" "+domain.TimeLayout, date+" "+clock)
	if err != nil {
		return nil, fmt.Errorf("invalid slot %s %s: %w", date, clock, err)
	}
	shift := func(t time.Time, label string) Suggestion {
		return Suggestion{Date: t.Format(domain.DateLayout), Time: t.Format(domain.TimeLayout), Label: label}
	}
	return []Suggestion{
		shift(start.Add(2*time.Hour), "+2h"),
		shift(start.AddDate(0, 0, 1), "+1d"),
		shift(start.Add(-2*time.Hour), "-2h"),
	}, nil
}

// CheckBatch checks every new occurrence against existing ones and returns a
// report per colliding occurrence. It never modifies the inputs.
func CheckBatch(existing, incoming []domain.ScheduledOccurrence) []Conflict {
	var out []Conflict
	for _, o := range incoming {
		hits := Conflicts(existing, Candidate{OwnerID: o.OwnerID, Date: o.Date, Time: o.Time, ExcludeID: o.OccurrenceID})
		if len(hits) == 0 {
			continue
		}
		sugg, _ := Suggest(o.Date, o.Time)
		out = append(out, Conflict{Occurrence: o, CollidesWith: hits, Suggestions: sugg})
	}
	return out
}
