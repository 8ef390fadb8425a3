package localstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slot struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	bs, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"badger": bs,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var got slot
			assert.False(t, Load(s, "u1/workouts/aggregate", &got), "empty slot loads as absent")

			require.NoError(t, Save(s, "u1/workouts/aggregate", slot{Name: "a", Count: 3}))
			require.True(t, Load(s, "u1/workouts/aggregate", &got))
			assert.Equal(t, slot{Name: "a", Count: 3}, got)

			require.NoError(t, s.Delete("u1/workouts/aggregate"))
			_, err := s.Get("u1/workouts/aggregate")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLoad_CorruptSlotIsEmpty(t *testing.T) {
	m := NewMemoryStore()
	m.SetRaw("k", []byte("{not json"))

	var got slot
	assert.False(t, Load(m, "k", &got))
}

func TestSave_WriteFailure(t *testing.T) {
	m := NewMemoryStore()
	m.FailWrites = true
	require.Error(t, Save(m, "k", slot{}))

	var got slot
	assert.False(t, Load(m, "k", &got))
}

func TestBadgerStore_Closed(t *testing.T) {
	bs, err := Open(Options{InMemory: true})
	require.NoError(t, err)
	require.NoError(t, bs.Close())
	require.NoError(t, bs.Close())

	_, err = bs.Get("k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, bs.Set("k", []byte("1")), ErrClosed)

	// A closed store degrades to an empty cache.
	var got slot
	assert.False(t, Load(bs, "k", &got))
}

func TestBadgerStore_RequiresPath(t *testing.T) {
	_, err := Open(Options{})
	require.Error(t, err)
}

func TestBadgerStore_Persists(t *testing.T) {
	dir := t.TempDir()
	bs, err := Open(Options{Path: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, Save(bs, "k", slot{Name: "persisted", Count: 1}))
	require.NoError(t, bs.Close())

	reopened, err := Open(Options{Path: dir})
	require.NoError(t, err)
	defer reopened.Close()

	var got slot
	require.True(t, Load(reopened, "k", &got))
	assert.Equal(t, "persisted", got.Name)
}

func TestKey(t *testing.T) {
	key := Key("u1", "schedules", "pending")
	assert.Equal(t, "u1/schedules/pending", key)

	owner, dom, slot, ok := SplitKey(key)
	require.True(t, ok)
	assert.Equal(t, []string{"u1", "schedules", "pending"}, []string{owner, dom, slot})

	for _, bad := range []string{"", "u1", "u1/schedules", "/schedules/pending", "u1//pending"} {
		_, _, _, ok := SplitKey(bad)
		assert.False(t, ok, bad)
	}
}

func TestStore_Keys(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"u2/workouts/pending", "u1/workouts/pending", "u1/photos/aggregate"} {
				require.NoError(t, s.Set(k, []byte("[]")))
			}

			keys, err := s.Keys("u1/")
			require.NoError(t, err)
			assert.Equal(t, []string{"u1/photos/aggregate", "u1/workouts/pending"}, keys)

			all, err := s.Keys("")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}
