package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/fitness-sync/internal/domain"
)

func occ(id, owner, date, clock string, status domain.OccurrenceStatus) domain.ScheduledOccurrence {
	return domain.ScheduledOccurrence{OccurrenceID: id, OwnerID: owner, Date: date, Time: clock, Status: status}
}

func TestHasConflict_Boundary(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		want     bool
	}{
		{"59 minutes apart", "14:59", true},
		{"60 minutes apart", "15:00", false},
		{"61 minutes apart", "15:01", false},
		{"same time", "14:00", true},
		{"59 minutes before", "13:01", true},
		{"61 minutes before", "12:59", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := []domain.ScheduledOccurrence{occ("o1", "u1", "2024-01-01", tt.existing, domain.OccurrenceScheduled)}
			assert.Equal(t, tt.want, HasConflict(existing, "u1", "2024-01-01", "14:00"))
		})
	}
}

func TestConflicts_Filters(t *testing.T) {
	existing := []domain.ScheduledOccurrence{
		occ("done", "u1", "2024-01-01", "14:30", domain.OccurrenceCompleted),
		occ("gone", "u1", "2024-01-01", "14:30", domain.OccurrenceCancelled),
		occ("other-owner", "u2", "2024-01-01", "14:30", domain.OccurrenceScheduled),
		occ("other-day", "u1", "2024-01-02", "14:30", domain.OccurrenceScheduled),
		occ("self", "u1", "2024-01-01", "14:10", domain.OccurrenceScheduled),
		occ("bad-time", "u1", "2024-01-01", "2pm", domain.OccurrenceScheduled),
	}

	assert.Empty(t, Conflicts(existing, Candidate{OwnerID: "u1", Date: "2024-01-01", Time: "14:00", ExcludeID: "self"}))

	hits := Conflicts(existing, Candidate{OwnerID: "u1", Date: "2024-01-01", Time: "14:00"})
	require.Len(t, hits, 1)
	assert.Equal(t, "self", hits[0].OccurrenceID)

	assert.Empty(t, Conflicts(existing, Candidate{OwnerID: "u1", Date: "2024-01-01", Time: "nope"}))
}

func TestSuggest(t *testing.T) {
	got, err := Suggest("2024-01-01", "14:00")
	require.NoError(t, err)
	assert.Equal(t, []Suggestion{
		{Date: "2024-01-01", Time: "16:00", Label: "+2h"},
		{Date: "2024-01-02", Time: "14:00", Label: "+1d"},
		{Date: "2024-01-01", Time: "12:00", Label: "-2h"},
	}, got)

	got, err = Suggest("2024-12-31", "23:00")
	require.NoError(t, err)
	assert.Equal(t, Suggestion{Date: "2025-01-01", Time: "01:00", Label: "+2h"}, got[0])

	got, err = Suggest("2024-03-01", "01:00")
	require.NoError(t, err)
	assert.Equal(t, Suggestion{Date: "2024-02-29", Time: "23:00", Label: "-2h"}, got[2])

	_, err = Suggest("2024-13-01", "10:00")
	require.Error(t, err)
}

func TestCheckBatch(t *testing.T) {
	existing := []domain.ScheduledOccurrence{occ("e1", "u1", "2024-01-03", "09:15", domain.OccurrenceScheduled)}
	incoming := []domain.ScheduledOccurrence{
		occ("n1", "u1", "2024-01-01", "09:00", domain.OccurrenceScheduled),
		occ("n2", "u1", "2024-01-03", "09:00", domain.OccurrenceScheduled),
	}

	conflicts := CheckBatch(existing, incoming)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "n2", conflicts[0].Occurrence.OccurrenceID)
	assert.Equal(t, "e1", conflicts[0].CollidesWith[0].OccurrenceID)
	assert.Len(t, conflicts[0].Suggestions, 3)
}

func TestValidateSlot(t *testing.T) {
	assert.NoError(t, ValidateSlot("2024-02-29", "07:05"))
	assert.Error(t, ValidateSlot("2023-02-29", "07:05"))
	assert.Error(t, ValidateSlot("2024-01-01", "25:00"))
	assert.Error(t, ValidateSlot("01/01/2024", "10:00"))
}
