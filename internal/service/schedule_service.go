package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/localstore"
	"alcyxob/fitness-sync/internal/logging"
	"alcyxob/fitness-sync/internal/remote"
	"alcyxob/fitness-sync/internal/schedule"
	"alcyxob/fitness-sync/internal/syncengine"
)

// SchedulesDomain is the sync domain name of workout schedules.
const SchedulesDomain = "schedules"

var (
	ErrOccurrenceNotFound = errors.New("scheduled workout not found")
	ErrOccurrenceClosed   = errors.New("scheduled workout is already completed or cancelled")
)

// ScheduleResult is returned when a schedule intent is accepted. Conflicts are advisory.
type ScheduleResult struct {
	Action      domain.PendingAction         `json:"action"`
	Occurrences []domain.ScheduledOccurrence `json:"occurrences"`
	Conflicts   []schedule.Conflict          `json:"conflicts,omitempty"`
}

// RescheduleResult carries the recorded move and any collisions at the new slot.
type RescheduleResult struct {
	Action       domain.PendingAction         `json:"action"`
	CollidesWith []domain.ScheduledOccurrence `json:"collidesWith,omitempty"`
	Suggestions  []schedule.Suggestion        `json:"suggestions,omitempty"`
}

// ConflictCheck answers "is this slot free?" without recording anything.
type ConflictCheck struct {
	Conflict     bool                         `json:"conflict"`
	CollidesWith []domain.ScheduledOccurrence `json:"collidesWith,omitempty"`
	Suggestions  []schedule.Suggestion        `json:"suggestions,omitempty"`
}

type ScheduleService interface {
	Syncer
	Schedule(ctx context.Context, intent domain.ScheduleIntent) (*ScheduleResult, error)
	Reschedule(ctx context.Context, occurrenceID, date, clock string) (*RescheduleResult, error)
	CheckIn(ctx context.Context, occurrenceID string) (domain.PendingAction, error)
	Cancel(ctx context.Context, occurrenceID string) (domain.PendingAction, error)
	CheckConflict(ctx context.Context, date, clock string) (*ConflictCheck, error)
	Upcoming() (domain.ScheduleState, bool)
	Refresh(ctx context.Context) (domain.ScheduleState, error)
	Subscribe(fn func(domain.ScheduleState)) func()
}

type scheduleService struct {
	*syncengine.Engine[domain.ScheduleState]
	store remote.Store
	newID func() string
}

// NewScheduleService creates the schedule engine for ownerID.
func NewScheduleService(ownerID string, rs remote.Store, ls localstore.Store, opts syncengine.Options) ScheduleService {
	dom := &scheduleDomain{store: rs, now: nowFunc(opts)}
	return &scheduleService{
		Engine: syncengine.New[domain.ScheduleState](ownerID, dom, ls, opts),
		store:  rs,
		newID:  opts.NewID,
	}
}

// Schedule expands the intent and records it as one schedule.create action.
func (s *scheduleService) Schedule(ctx context.Context, intent domain.ScheduleIntent) (*ScheduleResult, error) {
	intent.OwnerID = s.Owner()
	occurrences, err := schedule.Expand(intent, s.newID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	conflicts := schedule.CheckBatch(s.existing(ctx), occurrences)
	if len(conflicts) > 0 {
		logging.Debug().
			Str("owner_id", s.Owner()).
			Int("conflicts", len(conflicts)).
			Msg("schedule overlaps existing workouts")
	}

	action, err := s.Record(ctx, domain.KindScheduleCreate, intent.SubjectID, domain.ScheduleCreate{Occurrences: occurrences})
	if err != nil {
		return nil, err
	}
	return &ScheduleResult{Action: action, Occurrences: occurrences, Conflicts: conflicts}, nil
}

func (s *scheduleService) Reschedule(ctx context.Context, occurrenceID, date, clock string) (*RescheduleResult, error) {
	if err := schedule.ValidateSlot(date, clock); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.requireOpen(occurrenceID); err != nil {
		return nil, err
	}

	hits := schedule.Conflicts(s.existing(ctx), schedule.Candidate{
		OwnerID: s.Owner(), Date: date, Time: clock, ExcludeID: occurrenceID,
	})
	action, err := s.Record(ctx, domain.KindScheduleReschedule, occurrenceID, domain.ScheduleMove{Date: date, Time: clock})
	if err != nil {
		return nil, err
	}

	res := &RescheduleResult{Action: action, CollidesWith: hits}
	if len(hits) > 0 {
		res.Suggestions, _ = schedule.Suggest(date, clock)
	}
	return res, nil
}

func (s *scheduleService) CheckIn(ctx context.Context, occurrenceID string) (domain.PendingAction, error) {
	if err := s.requireOpen(occurrenceID); err != nil {
		return domain.PendingAction{}, err
	}
	return s.Record(ctx, domain.KindScheduleComplete, occurrenceID, nil)
}

func (s *scheduleService) Cancel(ctx context.Context, occurrenceID string) (domain.PendingAction, error) {
	if err := s.requireOpen(occurrenceID); err != nil {
		return domain.PendingAction{}, err
	}
	return s.Record(ctx, domain.KindScheduleCancel, occurrenceID, nil)
}

func (s *scheduleService) CheckConflict(ctx context.Context, date, clock string) (*ConflictCheck, error) {
	if err := schedule.ValidateSlot(date, clock); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	hits := schedule.Conflicts(s.existing(ctx), schedule.Candidate{OwnerID: s.Owner(), Date: date, Time: clock})
	res := &ConflictCheck{Conflict: len(hits) > 0, CollidesWith: hits}
	if res.Conflict {
		res.Suggestions, _ = schedule.Suggest(date, clock)
	}
	return res, nil
}

func (s *scheduleService) Upcoming() (domain.ScheduleState, bool) {
	return s.State()
}

// requireOpen checks the occurrence against the known schedule. Without a known
// schedule the action is accepted and the remote store decides.
func (s *scheduleService) requireOpen(occurrenceID string) error {
	if occurrenceID == "" {
		return ErrInvalidInput
	}
	st, ok := s.State()
	if !ok {
		return nil
	}
	i := st.Find(occurrenceID)
	if i < 0 {
		return ErrOccurrenceNotFound
	}
	if st.Occurrences[i].Status != domain.OccurrenceScheduled {
		return ErrOccurrenceClosed
	}
	return nil
}

// existing returns the occurrences to check conflicts against: the cached schedule,
// or a direct remote query when nothing is cached. A failed query means no conflicts.
func (s *scheduleService) existing(ctx context.Context) []domain.ScheduledOccurrence {
	if st, ok := s.State(); ok {
		return st.Occurrences
	}
	rows, err := s.store.Query(ctx, remote.TableSchedules, remote.Where(
		remote.Eq("owner_id", s.Owner()),
		remote.Eq("status", string(domain.OccurrenceScheduled)),
	))
	if err != nil {
		logging.Debug().Err(err).Msg("conflict check without remote schedule")
		return nil
	}
	out := make([]domain.ScheduledOccurrence, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToOccurrence(r))
	}
	return out
}

// scheduleDomain keeps the owner's upcoming, non-cancelled occurrences.
type scheduleDomain struct {
	store remote.Store
	now   func() time.Time
}

func (d *scheduleDomain) Name() string { return SchedulesDomain }

func (d *scheduleDomain) Apply(s domain.ScheduleState, a domain.PendingAction) (domain.ScheduleState, error) {
	next := domain.ScheduleState{
		Occurrences: append([]domain.ScheduledOccurrence(nil), s.Occurrences...),
		Speculative: true,
		UpdatedAt:   d.now().UTC(),
	}

	switch a.Kind {
	case domain.KindScheduleCreate:
		var p domain.ScheduleCreate
		if err := a.DecodePayload(&p); err != nil {
			return s, err
		}
		for _, o := range p.Occurrences {
			if next.Find(o.OccurrenceID) < 0 {
				next.Occurrences = append(next.Occurrences, o)
			}
		}
	case domain.KindScheduleReschedule:
		var p domain.ScheduleMove
		if err := a.DecodePayload(&p); err != nil {
			return s, err
		}
		if i := next.Find(a.SubjectID); i >= 0 {
			next.Occurrences[i].Date = p.Date
			next.Occurrences[i].Time = p.Time
		}
	case domain.KindScheduleComplete:
		if i := next.Find(a.SubjectID); i >= 0 {
			at := a.OccurredAt
			next.Occurrences[i].Status = domain.OccurrenceCompleted
			next.Occurrences[i].CompletedAt = &at
		}
	case domain.KindScheduleCancel:
		if i := next.Find(a.SubjectID); i >= 0 {
			next.Occurrences = append(next.Occurrences[:i], next.Occurrences[i+1:]...)
		}
	default:
		return s, fmt.Errorf("schedules: unexpected action kind %q", a.Kind)
	}

	domain.SortOccurrences(next.Occurrences)
	return next, nil
}

// Push writes the action. Occurrence ids are generated when the intent is expanded,
// so re-inserting a batch skips the rows that already landed. Updates to a missing
// occurrence fail, which keeps the action pending until its create has synced.
func (d *scheduleDomain) Push(ctx context.Context, a domain.PendingAction) error {
	now := d.now().UTC()

	switch a.Kind {
	case domain.KindScheduleCreate:
		var p domain.ScheduleCreate
		if err := a.DecodePayload(&p); err != nil {
			return err
		}
		rows := make([]remote.Row, 0, len(p.Occurrences))
		for _, o := range p.Occurrences {
			rows = append(rows, occurrenceToRow(o, a.ActionID, now))
		}
		ids, err := d.store.Insert(ctx, remote.TableSchedules, rows)
		if err != nil {
			return err
		}
		if len(ids) < len(rows) {
			logging.Debug().
				Str("action_id", a.ActionID).
				Int("written", len(ids)).
				Int("total", len(rows)).
				Msg("schedule batch partially present remotely")
		}
		return nil

	case domain.KindScheduleReschedule:
		var p domain.ScheduleMove
		if err := a.DecodePayload(&p); err != nil {
			return err
		}
		return d.store.Update(ctx, remote.TableSchedules, a.SubjectID, remote.Row{
			"date":       p.Date,
			"time":       p.Time,
			"updated_at": now,
		})

	case domain.KindScheduleComplete:
		return d.store.Update(ctx, remote.TableSchedules, a.SubjectID, remote.Row{
			"status":       string(domain.OccurrenceCompleted),
			"completed_at": a.OccurredAt.UTC(),
			"updated_at":   now,
		})

	case domain.KindScheduleCancel:
		return d.store.Update(ctx, remote.TableSchedules, a.SubjectID, remote.Row{
			"status":     string(domain.OccurrenceCancelled),
			"updated_at": now,
		})
	}
	return fmt.Errorf("schedules: unexpected action kind %q", a.Kind)
}

func (d *scheduleDomain) Fetch(ctx context.Context, ownerID string) (domain.ScheduleState, error) {
	now := d.now().UTC()
	rows, err := d.store.Query(ctx, remote.TableSchedules, remote.Where(
		remote.Eq("owner_id", ownerID),
		remote.Ne("status", string(domain.OccurrenceCancelled)),
		remote.Gte("date", now.Format(domain.DateLayout)),
	))
	if err != nil {
		return domain.ScheduleState{}, err
	}

	st := domain.ScheduleState{Occurrences: make([]domain.ScheduledOccurrence, 0, len(rows)), UpdatedAt: now}
	for _, r := range rows {
		st.Occurrences = append(st.Occurrences, rowToOccurrence(r))
	}
	domain.SortOccurrences(st.Occurrences)
	return st, nil
}

func occurrenceToRow(o domain.ScheduledOccurrence, actionID string, now time.Time) remote.Row {
	return remote.Row{
		remote.IDField:            o.OccurrenceID,
		"owner_id":                o.OwnerID,
		"subject_id":              o.SubjectID,
		"date":                    o.Date,
		"time":                    o.Time,
		"status":                  string(o.Status),
		"reminder_offset_minutes": o.ReminderOffsetMinutes,
		"action_id":               actionID,
		"created_at":              now,
		"updated_at":              now,
	}
}

func rowToOccurrence(r remote.Row) domain.ScheduledOccurrence {
	o := domain.ScheduledOccurrence{
		OccurrenceID:          r.ID(),
		SubjectID:             r.String("subject_id"),
		OwnerID:               r.String("owner_id"),
		Date:                  r.String("date"),
		Time:                  r.String("time"),
		Status:                domain.OccurrenceStatus(r.String("status")),
		ReminderOffsetMinutes: r.Int("reminder_offset_minutes"),
	}
	if t, ok := r.Time("completed_at"); ok {
		o.CompletedAt = &t
	}
	return o
}
