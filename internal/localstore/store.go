// Package localstore is the durable, process-local key-value cache used by the sync engine.
//
// It is never the source of truth. Readers treat any failure (missing key, I/O error,
// corrupt JSON) as "no local cache" and carry on.
package localstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"alcyxob/fitness-sync/internal/logging"
)

var (
	ErrNotFound = errors.New("localstore: key not found")
	ErrClosed   = errors.New("localstore: store closed")
)

// Store persists raw values by key. Implementations must be safe for concurrent use
// within one process; cross-process writers are not supported.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Keys lists every key starting with prefix; an empty prefix lists all keys.
	Keys(prefix string) ([]string, error)
	Close() error
}

// Load decodes the JSON value at key into v. It returns false when the slot is empty
// or unreadable; unreadable slots are logged, never returned as errors.
func Load(s Store, key string, v any) bool {
	raw, err := s.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Warn().Err(err).Str("key", key).Msg("local store read failed, treating slot as empty")
		}
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("local store slot is corrupt, treating as empty")
		return false
	}
	return true
}

// Save encodes v as JSON and writes it at key.
func Save(s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := s.Set(key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Key joins an owner, a domain and a slot name into a store key.
func Key(ownerID, domain, slot string) string {
	return ownerID + "/" + domain + "/" + slot
}

// SplitKey is the inverse of Key. ok is false for keys Key cannot produce.
func SplitKey(key string) (ownerID, domain, slot string, ok bool) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
