package syncengine

import (
	"sync"
	"time"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/localstore"
)

// DefaultRetentionDays is how long actions are kept before Prune drops them.
const DefaultRetentionDays = 30

// PendingSlot is the local store slot holding an engine's tracked actions.
const PendingSlot = "pending"

// Tracker keeps the ordered list of recorded actions in one local store slot.
// Every mutation is a load-modify-write of the whole list, serialized by mu.
type Tracker struct {
	store localstore.Store
	key   string
	now   func() time.Time

	mu sync.Mutex
}

// NewTracker creates a tracker on the given slot. now defaults to time.Now.
func NewTracker(store localstore.Store, key string, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, key: key, now: now}
}

func (t *Tracker) load() []domain.PendingAction {
	var actions []domain.PendingAction
	if !localstore.Load(t.store, t.key, &actions) {
		return nil
	}
	return actions
}

func (t *Tracker) save(actions []domain.PendingAction) error {
	return localstore.Save(t.store, t.key, actions)
}

// Append adds the action to the end of the list. No dedup.
func (t *Tracker) Append(action domain.PendingAction) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.save(append(t.load(), action))
}

// MarkSynced flips the action to synced. Unknown ids are a no-op.
func (t *Tracker) MarkSynced(actionID string) error {
	return t.update(actionID, func(a *domain.PendingAction) {
		at := t.now().UTC()
		a.SyncStatus = domain.SyncSynced
		a.SyncedAt = &at
		a.LastError = ""
	})
}

// RecordFailure bumps the attempt count and keeps the last error message.
func (t *Tracker) RecordFailure(actionID string, cause error) error {
	return t.update(actionID, func(a *domain.PendingAction) {
		a.Attempts++
		if cause != nil {
			a.LastError = cause.Error()
		}
	})
}

func (t *Tracker) update(actionID string, fn func(*domain.PendingAction)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	actions := t.load()
	for i := range actions {
		if actions[i].ActionID == actionID {
			fn(&actions[i])
			return t.save(actions)
		}
	}
	return nil
}

// Prune drops every action that occurred more than retentionDays ago, synced or not,
// and returns how many were removed.
func (t *Tracker) Prune(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	cutoff := t.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	t.mu.Lock()
	defer t.mu.Unlock()

	actions := t.load()
	kept := actions[:0]
	for _, a := range actions {
		if a.OccurredAt.Before(cutoff) {
			continue
		}
		kept = append(kept, a)
	}
	removed := len(actions) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := t.save(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// PendingOnly returns the actions not yet confirmed, in recording order.
func (t *Tracker) PendingOnly() []domain.PendingAction {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pending []domain.PendingAction
	for _, a := range t.load() {
		if a.IsPending() {
			pending = append(pending, a)
		}
	}
	return pending
}

// All returns every tracked action.
func (t *Tracker) All() []domain.PendingAction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load()
}

func (t *Tracker) Get(actionID string) (domain.PendingAction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, a := range t.load() {
		if a.ActionID == actionID {
			return a, true
		}
	}
	return domain.PendingAction{}, false
}
