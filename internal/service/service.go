package service

import (
	"context"
	"errors"
	"time"

	"alcyxob/fitness-sync/internal/domain"
	"alcyxob/fitness-sync/internal/syncengine"
)

// --- Error Definitions ---
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Syncer is the sync surface shared by every local-first service.
type Syncer interface {
	Domain() string
	CatchUp(ctx context.Context) syncengine.CatchUpResult
	Status() syncengine.Status
	Pending() []domain.PendingAction
	Prune(retentionDays int) (int, error)
	Close()
}

func nowFunc(opts syncengine.Options) func() time.Time {
	if opts.Now != nil {
		return opts.Now
	}
	return time.Now
}
