// Package session keeps one set of sync engines per signed-in user.
//
// A session is opened on the user's first authenticated request and lives until
// logout, idle expiry or shutdown. Opening a session replays whatever the previous
// session left pending and then refreshes every aggregate from the remote store.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"alcyxob/fitness-sync/internal/localstore"
	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/metrics"
	"alcyxob/fitness-sync/internal/remote"
	"alcyxob/fitness-sync/internal/repository"
	"alcyxob/fitness-sync/internal/service"
	"alcyxob/fitness-sync/internal/storage"
	"alcyxob/fitness-sync/internal/syncengine"
)

var ErrClosed = errors.New("session manager is closed")

const DefaultIdleTimeout = 30 * time.Minute

// Session bundles the per-user services.
type Session struct {
	OwnerID   string
	Dashboard service.DashboardService
	Schedules service.ScheduleService
	Photos    service.PhotoService

	mu        sync.Mutex
	lastSeen  time.Time
	done      chan struct{}
	closeOnce sync.Once
}

// Done is closed when the session ends. Long-lived readers such as event streams
// must stop then; the owner's next request opens a new session.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Syncers lists the session's engines in a fixed order.
func (s *Session) Syncers() []service.Syncer {
	return []service.Syncer{s.Dashboard, s.Schedules, s.Photos}
}

// Status reports every engine of the session.
func (s *Session) Status() []syncengine.Status {
	out := make([]syncengine.Status, 0, 3)
	for _, sy := range s.Syncers() {
		out = append(out, sy.Status())
	}
	return out
}

// CatchUp replays pending actions of every engine.
func (s *Session) CatchUp(ctx context.Context) map[string]syncengine.CatchUpResult {
	out := make(map[string]syncengine.CatchUpResult, 3)
	for _, sy := range s.Syncers() {
		out[sy.Domain()] = sy.CatchUp(ctx)
	}
	return out
}

// Refresh reloads every aggregate. The first error is returned; the other
// aggregates are still refreshed.
func (s *Session) Refresh(ctx context.Context) error {
	_, errDash := s.Dashboard.Refresh(ctx)
	_, errSched := s.Schedules.Refresh(ctx)
	_, errPhotos := s.Photos.Refresh(ctx)
	return errors.Join(errDash, errSched, errPhotos)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		for _, sy := range s.Syncers() {
			sy.Close()
		}
	})
}

type Options struct {
	Engine        syncengine.Options
	WeeklyTarget  int
	RetentionDays int
	IdleTimeout   time.Duration
	Metrics       *metrics.Manager
}

// Manager opens, tracks and closes sessions.
type Manager struct {
	remote remote.Store
	local  localstore.Store
	files  storage.FileStorage
	users  repository.UserRepository
	opts   Options

	mu       sync.Mutex
	sessions map[string]*Session
	ending   map[string]int // owners whose engines are still closing
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(rs remote.Store, ls localstore.Store, files storage.FileStorage, users repository.UserRepository, opts Options) *Manager {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = syncengine.DefaultRetentionDays
	}
	if opts.Engine.Now == nil {
		opts.Engine.Now = time.Now
	}
	if opts.Engine.Metrics == nil {
		opts.Engine.Metrics = opts.Metrics
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		remote:   rs,
		local:    ls,
		files:    files,
		users:    users,
		opts:     opts,
		sessions: make(map[string]*Session),
		ending:   make(map[string]int),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Open returns the owner's session, creating it when needed. A new session starts
// a background catch-up followed by a refresh of every aggregate.
func (m *Manager) Open(ctx context.Context, ownerID string) (*Session, error) {
	if ownerID == "" {
		return nil, service.ErrInvalidInput
	}
	now := m.opts.Engine.Now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if s, ok := m.sessions[ownerID]; ok {
		m.mu.Unlock()
		s.touch(now)
		return s, nil
	}
	m.mu.Unlock()

	// Built outside the lock; the user lookup may hit the network.
	s := m.build(ctx, ownerID)
	s.touch(now)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.close()
		return nil, ErrClosed
	}
	if existing, ok := m.sessions[ownerID]; ok {
		m.mu.Unlock()
		s.close()
		existing.touch(now)
		return existing, nil
	}
	m.sessions[ownerID] = s
	m.wg.Add(1)
	m.mu.Unlock()

	m.opts.Metrics.SessionOpened()
	logging.Info().Str("owner_id", ownerID).Msg("sync session opened")

	go func() {
		defer m.wg.Done()
		m.warm(s)
	}()
	return s, nil
}

func (m *Manager) build(ctx context.Context, ownerID string) *Session {
	target := m.opts.WeeklyTarget
	if u, err := m.users.GetByID(ctx, ownerID); err == nil {
		if u.WeeklyTarget > 0 {
			target = u.WeeklyTarget
		}
	} else {
		logging.Warn().Err(err).Str("owner_id", ownerID).Msg("weekly target lookup failed, using default")
	}

	return &Session{
		OwnerID:   ownerID,
		Dashboard: service.NewDashboardService(ownerID, m.remote, m.local, target, m.opts.Engine),
		Schedules: service.NewScheduleService(ownerID, m.remote, m.local, m.opts.Engine),
		Photos:    service.NewPhotoService(ownerID, m.remote, m.local, m.files, m.opts.Engine),
		done:      make(chan struct{}),
	}
}

// warm runs once per new session. Expired actions are dropped before the replay.
func (m *Manager) warm(s *Session) {
	m.pruneSession(s)
	res := s.CatchUp(m.ctx)
	for dom, r := range res {
		if r.Attempted > 0 {
			logging.Debug().Str("owner_id", s.OwnerID).Str("domain", dom).Int("synced", r.Synced).Msg("session catch-up")
		}
	}
	if err := s.Refresh(m.ctx); err != nil {
		logging.Warn().Err(err).Str("owner_id", s.OwnerID).Msg("initial refresh failed, serving cached state")
	}
}

func (m *Manager) Get(ownerID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ownerID]
	return s, ok
}

// End closes the owner's session. Pending actions stay in the local store.
func (m *Manager) End(ownerID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[ownerID]
	if ok {
		delete(m.sessions, ownerID)
		m.ending[ownerID]++
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	s.close()

	m.mu.Lock()
	if m.ending[ownerID]--; m.ending[ownerID] <= 0 {
		delete(m.ending, ownerID)
	}
	m.mu.Unlock()

	m.opts.Metrics.SessionClosed()
	logging.Info().Str("owner_id", ownerID).Msg("sync session ended")
	return true
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// CatchUpAll replays pending actions of every open session and returns the totals.
func (m *Manager) CatchUpAll(ctx context.Context) syncengine.CatchUpResult {
	var total syncengine.CatchUpResult
	for _, s := range m.snapshot() {
		for _, r := range s.CatchUp(ctx) {
			total.Attempted += r.Attempted
			total.Synced += r.Synced
			total.Failed += r.Failed
			total.Skipped += r.Skipped
		}
	}
	return total
}

// PruneAll drops tracked actions older than the retention window for every owner
// with an action log in the local store, whether or not their session is open.
func (m *Manager) PruneAll() int {
	removed := 0
	for _, s := range m.snapshot() {
		removed += m.pruneSession(s)
	}
	return removed + m.pruneDormant()
}

func (m *Manager) pruneSession(s *Session) int {
	removed := 0
	for _, sy := range s.Syncers() {
		n, err := sy.Prune(m.opts.RetentionDays)
		if err != nil {
			logging.Warn().Err(err).Str("owner_id", s.OwnerID).Str("domain", sy.Domain()).Msg("prune failed")
			continue
		}
		removed += n
	}
	return removed
}

// pruneDormant walks the action logs left behind by ended sessions.
func (m *Manager) pruneDormant() int {
	keys, err := m.local.Keys("")
	if err != nil {
		logging.Warn().Err(err).Msg("listing local action logs failed")
		return 0
	}

	removed := 0
	for _, key := range keys {
		ownerID, dom, slot, ok := localstore.SplitKey(key)
		if !ok || slot != syncengine.PendingSlot {
			continue
		}
		n, err := m.pruneSlot(ownerID, key)
		if err != nil {
			logging.Warn().Err(err).Str("owner_id", ownerID).Str("domain", dom).Msg("prune failed")
			continue
		}
		removed += n
	}
	return removed
}

// pruneSlot prunes one action log unless a live engine owns it. Holding the lock
// keeps Open from registering the owner's session mid-prune.
func (m *Manager) pruneSlot(ownerID, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, open := m.sessions[ownerID]; open || m.ending[ownerID] > 0 {
		return 0, nil
	}
	return syncengine.NewTracker(m.local, key, m.opts.Engine.Now).Prune(m.opts.RetentionDays)
}

// ExpireIdle ends sessions not touched within the idle timeout.
func (m *Manager) ExpireIdle() int {
	cutoff := m.opts.Engine.Now().Add(-m.opts.IdleTimeout)
	expired := 0
	for _, s := range m.snapshot() {
		if s.idleSince().Before(cutoff) && m.End(s.OwnerID) {
			expired++
		}
	}
	return expired
}

// Close ends every session and waits for background warm-ups to return.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	for _, s := range m.snapshot() {
		m.End(s.OwnerID)
	}
	m.wg.Wait()
}
