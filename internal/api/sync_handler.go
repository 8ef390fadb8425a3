package api

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/service"
	"alcyxob/fitness-sync/internal/syncengine"
)

// eventBuffer bounds the updates queued for one SSE client. Updates beyond it are
// dropped; every update carries the full aggregate, so the next one catches up.
const eventBuffer = 16

const keepAliveInterval = 25 * time.Second

// SyncHandler serves the dashboard, sync status and the live update stream.
type SyncHandler struct{}

func NewSyncHandler() *SyncHandler { return &SyncHandler{} }

type DashboardResponse struct {
	Dashboard *domain.AggregateState `json:"dashboard"`
	Sync      syncengine.Status      `json:"sync"`
}

type SyncStatusResponse struct {
	Domains []syncengine.Status `json:"domains"`
	Pending int                 `json:"pending"`
}

// event is one SSE message.
type event struct {
	name string
	data any
}

// GetDashboard godoc
// @Summary Weekly progress
// @Description Returns the cached weekly aggregate. `dashboard` is null until the first refresh.
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} DashboardResponse
// @Router /dashboard [get]
func (h *SyncHandler) GetDashboard(c *gin.Context) {
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	resp := DashboardResponse{Sync: s.Dashboard.Status()}
	if stats, ok := s.Dashboard.Stats(); ok {
		resp.Dashboard = &stats
	}
	c.JSON(http.StatusOK, resp)
}

// RefreshDashboard godoc
// @Summary Reload weekly progress from the remote store
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.AggregateState
// @Failure 503 {object} gin.H "Remote store unreachable"
// @Router /dashboard/refresh [post]
func (h *SyncHandler) RefreshDashboard(c *gin.Context) {
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	stats, err := s.Dashboard.Refresh(c.Request.Context())
	if err != nil {
		logging.Warn().Err(err).Str("owner_id", s.OwnerID).Msg("dashboard refresh failed")
		abortWithError(c, http.StatusServiceUnavailable, "Could not reach the remote store")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetStatus godoc
// @Summary Sync status per domain
// @Tags Sync
// @Produce json
// @Security BearerAuth
// @Success 200 {object} SyncStatusResponse
// @Router /sync/status [get]
func (h *SyncHandler) GetStatus(c *gin.Context) {
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	resp := SyncStatusResponse{Domains: s.Status()}
	for _, st := range resp.Domains {
		resp.Pending += st.Pending
	}
	c.JSON(http.StatusOK, resp)
}

// CatchUp godoc
// @Summary Push every pending action now
// @Description Replays pending actions in recording order. Failures are reported, not raised.
// @Tags Sync
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]syncengine.CatchUpResult
// @Router /sync/catch-up [post]
func (h *SyncHandler) CatchUp(c *gin.Context) {
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}
	c.JSON(http.StatusOK, s.CatchUp(c.Request.Context()))
}

// Events godoc
// @Summary Live aggregate updates
// @Description Server-sent events named after the sync domain carry the full
// @Description aggregate after every optimistic or authoritative change.
// @Tags Sync
// @Produce text/event-stream
// @Security BearerAuth
// @Router /events [get]
func (h *SyncHandler) Events(c *gin.Context) {
	s, ok := getSessionFromContext(c)
	if !ok {
		abortWithError(c, http.StatusInternalServerError, "Sync session missing")
		return
	}

	q := newEventQueue(s.OwnerID)
	unsubscribe := []func(){
		s.Dashboard.Subscribe(func(st domain.AggregateState) { q.push(service.WorkoutsDomain, st) }),
		s.Schedules.Subscribe(func(st domain.ScheduleState) { q.push(service.SchedulesDomain, st) }),
		s.Photos.Subscribe(func(g domain.PhotoGallery) { q.push(service.PhotosDomain, g) }),
	}
	defer func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}()

	// Current state first, so a reconnecting client does not wait for a change.
	q.snapshot(service.WorkoutsDomain, func() (any, bool) {
		st, ok := s.Dashboard.Stats()
		return st, ok
	})
	q.snapshot(service.SchedulesDomain, func() (any, bool) {
		st, ok := s.Schedules.Upcoming()
		return st, ok
	})
	q.snapshot(service.PhotosDomain, func() (any, bool) {
		g, ok := s.Photos.Gallery()
		return g, ok
	})

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-s.Done():
			// The client reconnects and streams from the owner's next session.
			return false
		case ev := <-q.events:
			c.SSEvent(ev.name, ev.data)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}

// eventQueue buffers updates for one SSE client.
type eventQueue struct {
	ownerID string
	events  chan event

	mu   sync.Mutex
	seen map[string]bool
}

func newEventQueue(ownerID string) *eventQueue {
	return &eventQueue{
		ownerID: ownerID,
		events:  make(chan event, eventBuffer),
		seen:    make(map[string]bool),
	}
}

// push queues a live update, dropping it when the client is behind.
func (q *eventQueue) push(name string, data any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen[name] = true
	q.enqueueLocked(name, data)
}

// snapshot queues the value returned by read unless a live update for name was
// already queued; that update is at least as new as the snapshot.
func (q *eventQueue) snapshot(name string, read func() (any, bool)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seen[name] {
		return
	}
	if data, ok := read(); ok {
		q.seen[name] = true
		q.enqueueLocked(name, data)
	}
}

func (q *eventQueue) enqueueLocked(name string, data any) {
	select {
	case q.events <- event{name: name, data: data}:
	default:
		logging.Debug().Str("owner_id", q.ownerID).Str("event", name).Msg("sse client slow, dropping update")
	}
}
