package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/localstore"
	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/metrics"
)

// Defaults applied by New when Options leaves a field zero.
const (
	DefaultRetryDelay  = 5 * time.Second
	DefaultMaxRetries  = 1
	DefaultPushTimeout = 15 * time.Second
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("syncengine: engine closed")

// Domain plugs one kind of aggregate into the engine.
type Domain[S any] interface {
	// Name identifies the domain in store keys, logs and metrics.
	Name() string

	// Apply returns current with the action's delta applied. It must be pure.
	Apply(current S, action domain.PendingAction) (S, error)

	// Push writes the action to the remote store. Pushing the same action twice
	// must leave the remote store as if it was pushed once.
	Push(ctx context.Context, action domain.PendingAction) error

	// Fetch builds the authoritative aggregate for ownerID from the remote store.
	Fetch(ctx context.Context, ownerID string) (S, error)
}

// Options tune an Engine. Zero values select the defaults.
type Options struct {
	RetryDelay  time.Duration
	MaxRetries  int // retries after the first push; negative disables retries
	PushTimeout time.Duration

	Now     func() time.Time
	NewID   func() string
	Metrics *metrics.Manager
}

// Status summarizes the sync state of one engine.
type Status struct {
	Domain        string     `json:"domain"`
	Pending       int        `json:"pending"`
	Tracked       int        `json:"tracked"`
	InFlight      int        `json:"inFlight"`
	RetryingCount int        `json:"retrying"`
	LastError     string     `json:"lastError,omitempty"`
	LastSyncedAt  *time.Time `json:"lastSyncedAt,omitempty"`
	HasState      bool       `json:"hasState"`
}

// CatchUpResult reports what a CatchUp pass did.
type CatchUpResult struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Engine runs the record → apply → notify → push → reconcile loop for one owner.
type Engine[S any] struct {
	owner    string
	dom      Domain[S]
	opts     Options
	tracker  *Tracker
	cache    *Cache[S]
	notifier Notifier[S]
	log      zerolog.Logger

	// state
	mu       sync.Mutex
	state    S
	hasState bool

	// serializes fetch+store so an older fetch never lands after a newer one
	refreshMu sync.Mutex

	// push bookkeeping
	pmu      sync.Mutex
	timers   map[string]*time.Timer
	inflight map[string]bool
	closed   bool
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an engine for ownerID on top of store. A previously cached aggregate,
// if any, becomes the initial state.
func New[S any](ownerID string, dom Domain[S], store localstore.Store, opts Options) *Engine[S] {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = DefaultPushTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine[S]{
		owner:    ownerID,
		dom:      dom,
		opts:     opts,
		tracker:  NewTracker(store, localstore.Key(ownerID, dom.Name(), PendingSlot), opts.Now),
		cache:    NewCache[S](store, localstore.Key(ownerID, dom.Name(), "aggregate")),
		log:      logging.With().Str("component", "syncengine").Str("domain", dom.Name()).Str("owner_id", ownerID).Logger(),
		timers:   make(map[string]*time.Timer),
		inflight: make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
	if s, ok := e.cache.Load(); ok {
		e.state = s
		e.hasState = true
	}
	return e
}

func (e *Engine[S]) Owner() string { return e.owner }

func (e *Engine[S]) Domain() string { return e.dom.Name() }

// Record captures a user action. The action is persisted as pending, applied to the
// cached aggregate, announced to subscribers and pushed in the background. Sync
// failures never surface here; only an unencodable payload or a closed engine does.
func (e *Engine[S]) Record(ctx context.Context, kind, subjectID string, payload any) (domain.PendingAction, error) {
	if e.isClosed() {
		return domain.PendingAction{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return domain.PendingAction{}, err
	}

	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return domain.PendingAction{}, fmt.Errorf("encode %s payload: %w", kind, err)
		}
		raw = b
	}

	action := domain.PendingAction{
		ActionID:   e.opts.NewID(),
		Kind:       kind,
		SubjectID:  subjectID,
		OwnerID:    e.owner,
		OccurredAt: e.opts.Now().UTC(),
		Payload:    raw,
		SyncStatus: domain.SyncPending,
	}

	if err := e.tracker.Append(action); err != nil {
		e.opts.Metrics.LocalStoreFailure()
		e.log.Warn().Err(err).Str("action_id", action.ActionID).Msg("failed to persist pending action")
	}
	e.opts.Metrics.ActionRecorded(e.dom.Name())

	e.applyOptimistic(action)
	e.Push(action)
	return action, nil
}

// applyOptimistic runs the domain delta against the current aggregate. Without a
// known aggregate there is nothing to adjust and subscribers keep waiting for Refresh.
func (e *Engine[S]) applyOptimistic(action domain.PendingAction) {
	e.mu.Lock()
	if !e.hasState {
		e.mu.Unlock()
		e.log.Debug().Str("action_id", action.ActionID).Msg("no cached aggregate, skipping optimistic update")
		return
	}
	next, err := e.dom.Apply(e.state, action)
	if err != nil {
		e.mu.Unlock()
		e.log.Warn().Err(err).Str("action_id", action.ActionID).Msg("optimistic update failed")
		return
	}
	e.state = next
	e.mu.Unlock()

	if err := e.cache.Store(next); err != nil {
		e.opts.Metrics.LocalStoreFailure()
		e.log.Warn().Err(err).Msg("failed to cache aggregate")
	}
	e.notifier.Notify(next)
}

// Push sends the action to the remote store in the background. It never blocks and
// never fails; actions already synced or already being pushed are left alone.
func (e *Engine[S]) Push(action domain.PendingAction) {
	if e.claim(action.ActionID) {
		go e.runPush(action, 0)
	}
}

// claim marks the action in flight and registers it with the wait group. A pending
// retry timer for the action is dropped, since the caller is pushing it now.
func (e *Engine[S]) claim(actionID string) bool {
	e.pmu.Lock()
	defer e.pmu.Unlock()
	return e.claimLocked(actionID)
}

// must be called with pmu held
func (e *Engine[S]) claimLocked(actionID string) bool {
	if e.closed || e.inflight[actionID] {
		return false
	}
	if t, ok := e.timers[actionID]; ok {
		t.Stop()
		delete(e.timers, actionID)
	}
	e.inflight[actionID] = true
	e.wg.Add(1)
	return true
}

func (e *Engine[S]) release(actionID string) {
	e.pmu.Lock()
	delete(e.inflight, actionID)
	e.pmu.Unlock()
	e.wg.Done()
}

func (e *Engine[S]) runPush(action domain.PendingAction, attempt int) {
	defer e.wg.Done()

	result, err := e.pushOnce(e.ctx, action)
	if err == nil && result == metrics.ResultSynced {
		if _, rerr := e.refresh(e.ctx); rerr != nil {
			e.log.Warn().Err(rerr).Msg("refresh after push failed")
		}
	}

	e.pmu.Lock()
	defer e.pmu.Unlock()
	delete(e.inflight, action.ActionID)

	if err == nil || e.closed || attempt >= e.opts.MaxRetries {
		if err != nil {
			e.log.Info().
				Str("action_id", action.ActionID).
				Int("attempt", attempt+1).
				Msg("action left pending until next catch-up")
		}
		return
	}

	e.opts.Metrics.RetryScheduled(e.dom.Name())
	e.timers[action.ActionID] = time.AfterFunc(e.opts.RetryDelay, func() {
		e.pmu.Lock()
		delete(e.timers, action.ActionID)
		ok := e.claimLocked(action.ActionID)
		e.pmu.Unlock()
		if ok {
			e.runPush(action, attempt+1)
		}
	})
}

// pushOnce performs one synchronous push and records the outcome in the tracker.
func (e *Engine[S]) pushOnce(ctx context.Context, action domain.PendingAction) (string, error) {
	if cur, ok := e.tracker.Get(action.ActionID); ok && !cur.IsPending() {
		e.opts.Metrics.PushFinished(e.dom.Name(), metrics.ResultSkipped, 0)
		return metrics.ResultSkipped, nil
	}

	pctx, cancel := context.WithTimeout(ctx, e.opts.PushTimeout)
	defer cancel()

	start := time.Now()
	err := e.dom.Push(pctx, action)
	took := time.Since(start)

	if err != nil {
		e.opts.Metrics.PushFinished(e.dom.Name(), metrics.ResultFailed, took)
		if terr := e.tracker.RecordFailure(action.ActionID, err); terr != nil {
			e.opts.Metrics.LocalStoreFailure()
			e.log.Warn().Err(terr).Msg("failed to record push failure")
		}
		e.log.Warn().Err(err).
			Str("action_id", action.ActionID).
			Str("kind", action.Kind).
			Msg("push failed, action stays pending")
		return metrics.ResultFailed, err
	}

	e.opts.Metrics.PushFinished(e.dom.Name(), metrics.ResultSynced, took)
	if terr := e.tracker.MarkSynced(action.ActionID); terr != nil {
		e.opts.Metrics.LocalStoreFailure()
		e.log.Warn().Err(terr).Msg("failed to mark action synced")
	}
	e.log.Debug().
		Str("action_id", action.ActionID).
		Dur("took", took).
		Msg("action synced")
	return metrics.ResultSynced, nil
}

// Refresh replaces the aggregate with a fresh remote fetch, caches it and notifies.
// On error the current aggregate is kept.
func (e *Engine[S]) Refresh(ctx context.Context) (S, error) {
	ctx, cancel := e.bind(ctx)
	defer cancel()
	return e.refresh(ctx)
}

func (e *Engine[S]) refresh(ctx context.Context) (S, error) {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	fctx, cancel := context.WithTimeout(ctx, e.opts.PushTimeout)
	defer cancel()

	s, err := e.dom.Fetch(fctx, e.owner)
	if err != nil {
		var zero S
		return zero, fmt.Errorf("fetch %s: %w", e.dom.Name(), err)
	}

	e.mu.Lock()
	e.state = s
	e.hasState = true
	e.mu.Unlock()

	if err := e.cache.Store(s); err != nil {
		e.opts.Metrics.LocalStoreFailure()
		e.log.Warn().Err(err).Msg("failed to cache aggregate")
	}
	e.notifier.Notify(s)
	return s, nil
}

// bind derives a context that is also cancelled when the engine closes.
func (e *Engine[S]) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// CatchUp pushes every pending action in recording order. Failures are logged and
// skipped. If anything synced, the aggregate is refreshed once at the end.
func (e *Engine[S]) CatchUp(ctx context.Context) CatchUpResult {
	ctx, cancel := e.bind(ctx)
	defer cancel()

	var res CatchUpResult
	for _, action := range e.tracker.PendingOnly() {
		if ctx.Err() != nil {
			res.Skipped++
			continue
		}
		if !e.claim(action.ActionID) {
			res.Skipped++
			continue
		}
		result, err := e.pushOnce(ctx, action)
		e.release(action.ActionID)

		switch {
		case err != nil:
			res.Attempted++
			res.Failed++
		case result == metrics.ResultSynced:
			res.Attempted++
			res.Synced++
		default:
			res.Skipped++
		}
	}

	if res.Synced > 0 {
		if _, err := e.refresh(ctx); err != nil {
			e.log.Warn().Err(err).Msg("refresh after catch-up failed")
		}
	}
	if res.Attempted > 0 || res.Skipped > 0 {
		e.log.Info().
			Int("attempted", res.Attempted).
			Int("synced", res.Synced).
			Int("failed", res.Failed).
			Int("skipped", res.Skipped).
			Msg("catch-up finished")
	}
	return res
}

// State returns the current aggregate and whether one is known yet.
func (e *Engine[S]) State() (S, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.hasState
}

func (e *Engine[S]) Pending() []domain.PendingAction {
	return e.tracker.PendingOnly()
}

// Actions returns every tracked action, synced ones included.
func (e *Engine[S]) Actions() []domain.PendingAction {
	return e.tracker.All()
}

func (e *Engine[S]) Status() Status {
	all := e.tracker.All()

	st := Status{Domain: e.dom.Name(), Tracked: len(all)}
	for _, a := range all {
		if a.IsPending() {
			st.Pending++
			if a.LastError != "" {
				st.LastError = a.LastError
			}
			continue
		}
		if a.SyncedAt != nil && (st.LastSyncedAt == nil || a.SyncedAt.After(*st.LastSyncedAt)) {
			at := *a.SyncedAt
			st.LastSyncedAt = &at
		}
	}

	e.pmu.Lock()
	st.InFlight = len(e.inflight)
	st.RetryingCount = len(e.timers)
	e.pmu.Unlock()

	e.mu.Lock()
	st.HasState = e.hasState
	e.mu.Unlock()
	return st
}

// Prune drops tracked actions older than retentionDays.
func (e *Engine[S]) Prune(retentionDays int) (int, error) {
	n, err := e.tracker.Prune(retentionDays)
	if err != nil {
		e.opts.Metrics.LocalStoreFailure()
		return 0, err
	}
	if n > 0 {
		e.log.Debug().Int("removed", n).Msg("pruned tracked actions")
	}
	return n, nil
}

// Subscribe registers fn for every aggregate change and returns the unsubscribe func.
func (e *Engine[S]) Subscribe(fn func(S)) func() {
	return e.notifier.Subscribe(fn)
}

func (e *Engine[S]) isClosed() bool {
	e.pmu.Lock()
	defer e.pmu.Unlock()
	return e.closed
}

// Close stops retry timers, cancels in-flight pushes and waits for them to return.
// Pending actions stay in the tracker for the next session's catch-up.
func (e *Engine[S]) Close() {
	e.pmu.Lock()
	if e.closed {
		e.pmu.Unlock()
		return
	}
	e.closed = true
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.pmu.Unlock()

	e.cancel()
	e.wg.Wait()
}
