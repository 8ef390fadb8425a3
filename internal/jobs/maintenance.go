// Package jobs runs the periodic sync maintenance: catch-up of pending actions,
// pruning of the action log and expiry of idle sessions.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron"

	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/syncengine"
)

// Sessions is the part of the session manager the jobs drive.
type Sessions interface {
	CatchUpAll(ctx context.Context) syncengine.CatchUpResult
	PruneAll() int
	ExpireIdle() int
}

type Schedules struct {
	CatchUp   string
	Prune     string
	IdleCheck string
}

const catchUpTimeout = time.Minute

type Maintenance struct {
	sessions Sessions
	cron     *cron.Cron
}

// NewMaintenance registers the jobs. An empty schedule disables that job.
func NewMaintenance(sessions Sessions, s Schedules) (*Maintenance, error) {
	m := &Maintenance{sessions: sessions, cron: cron.New()}
	jobs := []struct {
		name, spec string
		fn         func()
	}{
		{"catch-up", s.CatchUp, m.CatchUp},
		{"prune", s.Prune, m.Prune},
		{"idle-check", s.IdleCheck, m.ExpireIdle},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if err := m.cron.AddFunc(j.spec, j.fn); err != nil {
			return nil, fmt.Errorf("schedule %s job %q: %w", j.name, j.spec, err)
		}
		logging.Debug().Str("job", j.name).Str("schedule", j.spec).Msg("maintenance job registered")
	}
	return m, nil
}

func (m *Maintenance) Start() { m.cron.Start() }

func (m *Maintenance) Stop() { m.cron.Stop() }

func (m *Maintenance) CatchUp() {
	ctx, cancel := context.WithTimeout(context.Background(), catchUpTimeout)
	defer cancel()
	res := m.sessions.CatchUpAll(ctx)
	if res.Attempted == 0 {
		return
	}
	logging.Info().
		Int("attempted", res.Attempted).
		Int("synced", res.Synced).
		Int("failed", res.Failed).
		Msg("periodic catch-up")
}

func (m *Maintenance) Prune() {
	if n := m.sessions.PruneAll(); n > 0 {
		logging.Info().Int("removed", n).Msg("pruned action log")
	}
}

func (m *Maintenance) ExpireIdle() {
	if n := m.sessions.ExpireIdle(); n > 0 {
		logging.Info().Int("expired", n).Msg("closed idle sync sessions")
	}
}
