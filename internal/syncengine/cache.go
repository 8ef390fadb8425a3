package syncengine

import "alcyxob/fitness-sync/internal/localstore"

// Cache holds the last known aggregate in its own local store slot.
type Cache[S any] struct {
	store localstore.Store
	key   string
}

func NewCache[S any](store localstore.Store, key string) *Cache[S] {
	return &Cache[S]{store: store, key: key}
}

// Load returns the cached aggregate, or false when there is none or it is unreadable.
func (c *Cache[S]) Load() (S, bool) {
	var s S
	if !localstore.Load(c.store, c.key, &s) {
		var zero S
		return zero, false
	}
	return s, true
}

func (c *Cache[S]) Store(s S) error {
	return localstore.Save(c.store, c.key, s)
}
