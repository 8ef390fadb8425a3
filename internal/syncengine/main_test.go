package syncengine

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/remote"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const eventsTable = "events"

type counter struct {
	Count       int  `json:"count"`
	Speculative bool `json:"speculative"`
}

// counterDomain counts one remote row per action.
type counterDomain struct {
	remote remote.Store
}

func (counterDomain) Name() string { return "counter" }

func (counterDomain) Apply(c counter, _ domain.PendingAction) (counter, error) {
	c.Count++
	c.Speculative = true
	return c, nil
}

func (d counterDomain) Push(ctx context.Context, a domain.PendingAction) error {
	_, err := d.remote.Insert(ctx, eventsTable, []remote.Row{{"id": a.ActionID, "owner_id": a.OwnerID}})
	return err
}

func (d counterDomain) Fetch(ctx context.Context, ownerID string) (counter, error) {
	rows, err := d.remote.Query(ctx, eventsTable, remote.Where(remote.Eq("owner_id", ownerID)))
	if err != nil {
		return counter{}, err
	}
	return counter{Count: len(rows)}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder collects notifications from any goroutine.
type recorder struct {
	mu     sync.Mutex
	states []counter
}

func (r *recorder) record(c counter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, c)
}

func (r *recorder) all() []counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]counter, len(r.states))
	copy(out, r.states)
	return out
}
