package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterFailures(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	b := NewBreaker(mem, BreakerSettings{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	})

	boom := errors.New("connection reset")
	mem.FailNext(3, boom)
	for i := 0; i < 3; i++ {
		_, err := b.Query(ctx, TableWorkouts, nil)
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", b.State())

	calls := mem.Calls()
	_, err := b.Query(ctx, TableWorkouts, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, calls, mem.Calls(), "open circuit must not reach the backend")
}

func TestBreaker_NotFoundIsNotAFailure(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	b := NewBreaker(mem, BreakerSettings{MinRequests: 2, FailureRatio: 0.5, Timeout: time.Minute})

	for i := 0; i < 5; i++ {
		err := b.Update(ctx, TableWorkouts, "missing", Row{"x": 1})
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, "closed", b.State())
}

func TestBreaker_PassesResults(t *testing.T) {
	ctx := context.Background()
	b := NewBreaker(NewMemoryStore(), BreakerSettings{})

	ids, err := b.Insert(ctx, TablePhotos, []Row{{"id": "p1", "owner_id": "u1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)

	rows, err := b.Query(ctx, TablePhotos, Where(Eq("owner_id", "u1")))
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, b.Delete(ctx, TablePhotos, "p1"))
}
