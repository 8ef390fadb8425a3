package remote

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-process Store used by tests and the offline demo mode.
// Failures can be injected to simulate a flaky network.
type MemoryStore struct {
	mu      sync.Mutex
	tables  map[string]map[string]Row
	order   map[string][]string
	failErr error
	failN   int
	calls   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]map[string]Row),
		order:  make(map[string][]string),
	}
}

// SetOffline makes every call fail with ErrUnavailable until turned off.
func (m *MemoryStore) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offline {
		m.failErr = ErrUnavailable
		m.failN = -1
		return
	}
	m.failErr = nil
	m.failN = 0
}

// FailNext makes the next n calls fail with err.
func (m *MemoryStore) FailNext(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
	m.failN = n
}

// Calls returns the number of calls made so far, failed ones included.
func (m *MemoryStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Rows returns a copy of every row in table, in insertion order.
func (m *MemoryStore) Rows(table string) []Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Row, 0, len(m.order[table]))
	for _, id := range m.order[table] {
		if r, ok := m.tables[table][id]; ok {
			out = append(out, maps.Clone(r))
		}
	}
	return out
}

// must be called with mu held
func (m *MemoryStore) injected(ctx context.Context) error {
	m.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failN == 0 {
		return nil
	}
	if m.failN > 0 {
		m.failN--
	}
	return m.failErr
}

func (m *MemoryStore) Query(ctx context.Context, table string, filter Filter) ([]Row, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(ctx); err != nil {
		return nil, err
	}

	var out []Row
	for _, id := range m.order[table] {
		r, ok := m.tables[table][id]
		if ok && filter.Matches(r) {
			out = append(out, maps.Clone(r))
		}
	}
	return out, nil
}

func (m *MemoryStore) Insert(ctx context.Context, table string, rows []Row) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(ctx); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.ID() == "" {
			return nil, ErrInvalidRow
		}
	}

	t := m.tables[table]
	if t == nil {
		t = make(map[string]Row)
		m.tables[table] = t
	}
	var ids []string
	for _, r := range rows {
		id := r.ID()
		if _, exists := t[id]; exists {
			continue
		}
		t[id] = maps.Clone(r)
		m.order[table] = append(m.order[table], id)
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryStore) Update(ctx context.Context, table, id string, patch Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(ctx); err != nil {
		return err
	}
	r, ok := m.tables[table][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range patch {
		if k == IDField {
			continue
		}
		r[k] = v
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(ctx); err != nil {
		return err
	}
	if _, ok := m.tables[table][id]; !ok {
		return ErrNotFound
	}
	delete(m.tables[table], id)
	ids := m.order[table]
	for j, v := range ids {
		if v == id {
			m.order[table] = append(ids[:j:j], ids[j+1:]...)
			break
		}
	}
	return nil
}
