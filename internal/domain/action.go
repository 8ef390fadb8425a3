package domain

import (
	"time"

	"github.com/goccy/go-json"
)

// SyncStatus marks whether a locally recorded action is confirmed remotely.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
)

// Action kinds understood by the domain instances.
const (
	KindWorkoutComplete    = "workout.complete"
	KindScheduleCreate     = "schedule.create"
	KindScheduleReschedule = "schedule.reschedule"
	KindScheduleComplete   = "schedule.complete"
	KindScheduleCancel     = "schedule.cancel"
	KindPhotoAdd           = "photo.add"
	KindPhotoRemove        = "photo.remove"
)

// PendingAction is one user action that has not (yet) been confirmed by the remote store.
// ActionID doubles as the idempotency token when pushing.
type PendingAction struct {
	ActionID   string          `json:"actionId"`
	Kind       string          `json:"kind"`
	SubjectID  string          `json:"subjectId"`
	OwnerID    string          `json:"ownerId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	SyncStatus SyncStatus      `json:"syncStatus"`

	Attempts  int        `json:"attempts,omitempty"`
	LastError string     `json:"lastError,omitempty"`
	SyncedAt  *time.Time `json:"syncedAt,omitempty"`
}

// IsPending reports whether the action still awaits remote confirmation.
func (a *PendingAction) IsPending() bool {
	return a.SyncStatus != SyncSynced
}

// DecodePayload unmarshals the payload into v.
func (a *PendingAction) DecodePayload(v any) error {
	if len(a.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(a.Payload, v)
}

// WorkoutCompletion is the payload of a workout.complete action.
type WorkoutCompletion struct {
	DurationMinutes int    `json:"durationMinutes,omitempty"`
	Notes           string `json:"notes,omitempty"`
}
