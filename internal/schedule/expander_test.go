package schedule

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/fitness-sync/internal/domain"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("occ-%03d", n)
	}
}

func intent(rec domain.Recurrence, anchor time.Time, days ...string) domain.ScheduleIntent {
	return domain.ScheduleIntent{
		OwnerID:               "u1",
		SubjectID:             "plan-1",
		AnchorDateTime:        anchor,
		Recurrence:            rec,
		CustomDays:            days,
		ReminderOffsetMinutes: 30,
	}
}

func TestExpand_Counts(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		rec       domain.Recurrence
		wantCount int
		wantLast  string
	}{
		{"none", domain.RecurrenceNone, 1, "2024-01-01"},
		{"daily", domain.RecurrenceDaily, 31, "2024-01-31"},
		{"weekly", domain.RecurrenceWeekly, 13, "2024-03-25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occ, err := Expand(intent(tt.rec, anchor), seqIDs())
			require.NoError(t, err)
			require.Len(t, occ, tt.wantCount)
			assert.Equal(t, "2024-01-01", occ[0].Date)
			assert.Equal(t, tt.wantLast, occ[len(occ)-1].Date)
			for _, o := range occ {
				assert.Equal(t, "09:30", o.Time)
				assert.Equal(t, domain.OccurrenceScheduled, o.Status)
				assert.Equal(t, "u1", o.OwnerID)
				assert.Equal(t, "plan-1", o.SubjectID)
				assert.Equal(t, 30, o.ReminderOffsetMinutes)
			}
		})
	}
}

func TestExpand_Custom(t *testing.T) {
	tests := []struct {
		name      string
		anchor    time.Time
		wantCount int
		wantFirst string
	}{
		{"sunday anchor keeps both week-0 days", time.Date(2024, 1, 7, 7, 0, 0, 0, time.UTC), 16, "2024-01-08"},
		{"monday anchor skips itself", time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC), 15, "2024-01-03"},
		{"tuesday anchor", time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC), 15, "2024-01-03"},
		{"wednesday anchor skips both", time.Date(2024, 1, 3, 7, 0, 0, 0, time.UTC), 14, "2024-01-08"},
		{"saturday anchor", time.Date(2024, 1, 6, 7, 0, 0, 0, time.UTC), 14, "2024-01-08"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			occ, err := Expand(intent(domain.RecurrenceCustom, tt.anchor, "monday", "Wednesday"), seqIDs())
			require.NoError(t, err)
			require.Len(t, occ, tt.wantCount)
			assert.Equal(t, tt.wantFirst, occ[0].Date)

			anchorDate := tt.anchor.Format(domain.DateLayout)
			seen := map[string]bool{}
			for _, o := range occ {
				assert.False(t, seen[o.Date], "duplicate date %s", o.Date)
				seen[o.Date] = true
				assert.Greater(t, o.Date, anchorDate)

				d, err := time.Parse(domain.DateLayout, o.Date)
				require.NoError(t, err)
				assert.Contains(t, []time.Weekday{time.Monday, time.Wednesday}, d.Weekday())
			}
		})
	}
}

func TestExpand_CustomCountAlwaysInRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	for i := 0; i < 14; i++ {
		anchor := start.AddDate(0, 0, i)
		occ, err := Expand(intent(domain.RecurrenceCustom, anchor, "mon", "wed", "mon"), nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(occ), 14, anchor.Weekday().String())
		assert.LessOrEqual(t, len(occ), 16, anchor.Weekday().String())
	}
}

func TestExpand_UniqueIDs(t *testing.T) {
	occ, err := Expand(intent(domain.RecurrenceDaily, time.Now()), nil)
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, o := range occ {
		require.NotEmpty(t, o.OccurrenceID)
		assert.False(t, ids[o.OccurrenceID])
		ids[o.OccurrenceID] = true
	}
}

func TestExpand_Errors(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	_, err := Expand(intent(domain.RecurrenceCustom, anchor), nil)
	assert.ErrorIs(t, err, ErrNoCustomDays)

	_, err = Expand(intent(domain.RecurrenceCustom, anchor, "monday", "funday"), nil)
	assert.ErrorIs(t, err, ErrUnknownWeekday)

	_, err = Expand(intent("monthly", anchor), nil)
	assert.ErrorIs(t, err, ErrUnknownRecurrence)

	_, err = Expand(intent(domain.RecurrenceNone, time.Time{}), nil)
	assert.ErrorIs(t, err, ErrMissingAnchor)

	in := intent(domain.RecurrenceNone, anchor)
	in.OwnerID = ""
	_, err = Expand(in, nil)
	assert.ErrorIs(t, err, ErrMissingOwner)
}
