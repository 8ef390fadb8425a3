package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"alcyxob/fitness-sync/internal/logging"
)

// BreakerSettings configures the circuit breaker around a Store.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32        // requests allowed while half-open
	Interval     time.Duration // closed-state count reset period
	Timeout      time.Duration // open -> half-open delay
	MinRequests  uint32        // requests needed before the failure ratio is considered
	FailureRatio float64       // trip when failures/requests >= ratio
}

// Breaker wraps a Store with sony/gobreaker. While the circuit is open calls fail fast
// with ErrUnavailable, so pushes stay pending instead of piling up on a dead backend.
type Breaker struct {
	next Store
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreaker wraps next.
func NewBreaker(next Store, s BreakerSettings) *Breaker {
	if s.Name == "" {
		s.Name = "remote-store"
	}
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}
	minRequests := s.MinRequests
	ratio := s.FailureRatio

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			trip := failureRatio >= ratio
			if trip {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("remote store circuit opening")
			}
			return trip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("remote store circuit state change")
		},
		// Missing rows and bad input are answers, not outages.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidRow)
		},
	})
	return &Breaker{next: next, cb: cb}
}

// State returns the current circuit state name (closed, half-open, open).
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) execute(fn func() (any, error)) (any, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return res, err
}

func (b *Breaker) Query(ctx context.Context, table string, filter Filter) ([]Row, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.Query(ctx, table, filter)
	})
	if err != nil {
		return nil, err
	}
	rows, _ := res.([]Row)
	return rows, nil
}

func (b *Breaker) Insert(ctx context.Context, table string, rows []Row) ([]string, error) {
	res, err := b.execute(func() (any, error) {
		return b.next.Insert(ctx, table, rows)
	})
	if err != nil {
		return nil, err
	}
	ids, _ := res.([]string)
	return ids, nil
}

func (b *Breaker) Update(ctx context.Context, table, id string, patch Row) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.next.Update(ctx, table, id, patch)
	})
	return err
}

func (b *Breaker) Delete(ctx context.Context, table, id string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.next.Delete(ctx, table, id)
	})
	return err
}
