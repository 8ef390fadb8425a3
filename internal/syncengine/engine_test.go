package syncengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/localstore"
	"alcyxob/fitness-sync/internal/metrics"
	"alcyxob/fitness-sync/internal/remote"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func newTestEngine(t *testing.T, rs *remote.MemoryStore, opts Options) (*Engine[counter], *localstore.MemoryStore) {
	t.Helper()
	ls := localstore.NewMemoryStore()
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 10 * time.Millisecond
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewTestManager()
	}
	e := New[counter]("u1", counterDomain{remote: rs}, ls, opts)
	t.Cleanup(e.Close)
	return e, ls
}

func seedEvents(t *testing.T, rs *remote.MemoryStore, ids ...string) {
	t.Helper()
	rows := make([]remote.Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, remote.Row{"id": id, "owner_id": "u1"})
	}
	_, err := rs.Insert(context.Background(), eventsTable, rows)
	require.NoError(t, err)
}

// settled waits until no push is running or waiting for a retry.
func settled(t *testing.T, e *Engine[counter]) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := e.Status()
		return st.InFlight == 0 && st.RetryingCount == 0
	}, waitFor, tick)
}

func TestEngine_OfflineThenOnline(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	seedEvents(t, rs, "e1", "e2")

	e, _ := newTestEngine(t, rs, Options{})
	initial, err := e.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, initial.Count)

	rec := &recorder{}
	e.Subscribe(rec.record)

	rs.SetOffline(true)
	action, err := e.Record(ctx, domain.KindWorkoutComplete, "w1", nil)
	require.NoError(t, err)

	// Optimistic notification is synchronous.
	require.Len(t, rec.all(), 1)
	assert.Equal(t, counter{Count: 3, Speculative: true}, rec.all()[0])

	// First push and the single retry both fail.
	settled(t, e)
	a, ok := e.tracker.Get(action.ActionID)
	require.True(t, ok)
	assert.Equal(t, 2, a.Attempts)
	assert.True(t, a.IsPending())
	assert.Len(t, e.Pending(), 1)
	assert.Len(t, rec.all(), 1)

	rs.SetOffline(false)
	res := e.CatchUp(ctx)
	assert.Equal(t, CatchUpResult{Attempted: 1, Synced: 1}, res)

	states := rec.all()
	require.Len(t, states, 2)
	assert.Equal(t, counter{Count: 3}, states[1])
	assert.Empty(t, e.Pending())

	remoteState, err := counterDomain{remote: rs}.Fetch(ctx, "u1")
	require.NoError(t, err)
	state, ok := e.State()
	require.True(t, ok)
	assert.Equal(t, remoteState, state)
}

func TestEngine_ConvergesAfterSync(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	e, ls := newTestEngine(t, rs, Options{})
	_, err := e.Refresh(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := e.Record(ctx, domain.KindWorkoutComplete, "w1", domain.WorkoutCompletion{DurationMinutes: 30})
		require.NoError(t, err)
	}
	settled(t, e)

	require.Eventually(t, func() bool {
		s, _ := e.State()
		return s == counter{Count: 3}
	}, waitFor, tick)
	assert.Empty(t, e.Pending())
	assert.Len(t, rs.Rows(eventsTable), 3)

	// The cached aggregate survives a restart of the engine.
	e.Close()
	again := New[counter]("u1", counterDomain{remote: rs}, ls, Options{})
	defer again.Close()
	cached, ok := again.State()
	require.True(t, ok)
	assert.Equal(t, 3, cached.Count)
}

func TestEngine_PushIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	e, _ := newTestEngine(t, rs, Options{})

	action, err := e.Record(ctx, domain.KindWorkoutComplete, "w1", nil)
	require.NoError(t, err)
	settled(t, e)
	require.Empty(t, e.Pending())

	// Re-pushing a synced action is skipped before it reaches the remote store.
	calls := rs.Calls()
	e.Push(action)
	settled(t, e)
	assert.Equal(t, calls, rs.Calls())

	// Even when it does reach the remote store, the row is written once.
	dom := counterDomain{remote: rs}
	require.NoError(t, dom.Push(ctx, action))
	require.NoError(t, dom.Push(ctx, action))
	assert.Len(t, rs.Rows(eventsTable), 1)

	s, err := e.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count)
}

func TestEngine_NoCachedStateSkipsOptimisticUpdate(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	rs.SetOffline(true)
	e, _ := newTestEngine(t, rs, Options{MaxRetries: -1})

	rec := &recorder{}
	e.Subscribe(rec.record)

	_, err := e.Record(ctx, domain.KindWorkoutComplete, "w1", nil)
	require.NoError(t, err)
	settled(t, e)

	_, ok := e.State()
	assert.False(t, ok)
	assert.Empty(t, rec.all())

	_, err = e.Refresh(ctx)
	require.Error(t, err)
	_, ok = e.State()
	assert.False(t, ok)

	rs.SetOffline(false)
	res := e.CatchUp(ctx)
	assert.Equal(t, 1, res.Synced)
	states := rec.all()
	require.Len(t, states, 1)
	assert.Equal(t, counter{Count: 1}, states[0])
}

func TestEngine_RetrySucceeds(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	e, _ := newTestEngine(t, rs, Options{RetryDelay: 20 * time.Millisecond})

	rs.FailNext(1, errors.New("connection reset"))
	action, err := e.Record(ctx, domain.KindWorkoutComplete, "w1", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		a, ok := e.tracker.Get(action.ActionID)
		return ok && !a.IsPending()
	}, waitFor, tick)

	a, _ := e.tracker.Get(action.ActionID)
	assert.Equal(t, 1, a.Attempts)
	assert.Len(t, rs.Rows(eventsTable), 1)
}

func TestEngine_CatchUpPartialFailure(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	seedEvents(t, rs, "e0")
	e, _ := newTestEngine(t, rs, Options{MaxRetries: -1})
	_, err := e.Refresh(ctx)
	require.NoError(t, err)

	rs.SetOffline(true)
	for i := 0; i < 3; i++ {
		_, err := e.Record(ctx, domain.KindWorkoutComplete, "w1", nil)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		for _, a := range e.Pending() {
			if a.Attempts == 0 {
				return false
			}
		}
		return e.Status().InFlight == 0
	}, waitFor, tick)

	rs.SetOffline(false)
	rs.FailNext(1, errors.New("timeout"))
	res := e.CatchUp(ctx)
	assert.Equal(t, CatchUpResult{Attempted: 3, Synced: 2, Failed: 1}, res)
	assert.Len(t, e.Pending(), 1)

	s, _ := e.State()
	assert.Equal(t, counter{Count: 3}, s)

	res = e.CatchUp(ctx)
	assert.Equal(t, CatchUpResult{Attempted: 1, Synced: 1}, res)
	s, _ = e.State()
	assert.Equal(t, counter{Count: 4}, s)
}

func TestEngine_Prune(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	rs := remote.NewMemoryStore()
	e, _ := newTestEngine(t, rs, Options{Now: clock.Now})

	_, err := e.Record(ctx, domain.KindWorkoutComplete, "w1", nil)
	require.NoError(t, err)
	settled(t, e)

	clock.Advance(29 * 24 * time.Hour)
	n, err := e.Prune(30)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Advance(2 * 24 * time.Hour)
	n, err = e.Prune(30)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, e.Actions())
}

func TestEngine_CloseCancelsRetryTimers(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	rs.SetOffline(true)
	e, _ := newTestEngine(t, rs, Options{RetryDelay: time.Hour})

	_, err := e.Record(ctx, domain.KindWorkoutComplete, "w1", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return e.Status().RetryingCount == 1
	}, waitFor, tick)

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Close did not return")
	}

	assert.Zero(t, e.Status().RetryingCount)
	assert.Len(t, e.Pending(), 1, "pending actions survive Close")

	_, err = e.Record(ctx, domain.KindWorkoutComplete, "w1", nil)
	assert.ErrorIs(t, err, ErrClosed)

	res := e.CatchUp(ctx)
	assert.Equal(t, CatchUpResult{Skipped: 1}, res)
}

func TestEngine_LocalWriteFailureDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	rs := remote.NewMemoryStore()
	e, ls := newTestEngine(t, rs, Options{})
	_, err := e.Refresh(ctx)
	require.NoError(t, err)

	ls.FailWrites = true
	_, err = e.Record(ctx, domain.KindWorkoutComplete, "w1", nil)
	require.NoError(t, err)
	settled(t, e)

	// The push still happens even though nothing could be tracked locally.
	assert.Len(t, rs.Rows(eventsTable), 1)
	require.Eventually(t, func() bool {
		s, _ := e.State()
		return s.Count == 1 && !s.Speculative
	}, waitFor, tick)
}

func TestEngine_CorruptCacheStartsEmpty(t *testing.T) {
	ls := localstore.NewMemoryStore()
	ls.SetRaw(localstore.Key("u1", "counter", "aggregate"), []byte("garbage"))

	e := New[counter]("u1", counterDomain{remote: remote.NewMemoryStore()}, ls, Options{})
	defer e.Close()
	_, ok := e.State()
	assert.False(t, ok)
}

func TestEngine_RecordRejectsBadPayload(t *testing.T) {
	e, _ := newTestEngine(t, remote.NewMemoryStore(), Options{})
	_, err := e.Record(context.Background(), domain.KindWorkoutComplete, "w1", make(chan int))
	require.Error(t, err)
	assert.Empty(t, e.Actions())
}
