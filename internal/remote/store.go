// Package remote defines the authoritative data store the sync engine pushes to.
//
// Tables hold rows keyed by the "id" column. Every call may fail with a transport
// or validation error; the sync engine treats both as "push failed, retry later".
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error constants for the remote store layer.
var (
	ErrNotFound    = RemoteError("not found")
	ErrUnavailable = RemoteError("remote store unavailable")
	ErrInvalidRow  = RemoteError("invalid row")
)

// RemoteError distinguishes store errors from transport errors.
type RemoteError string

func (e RemoteError) Error() string {
	return string(e)
}

// IDField is the primary-key column of every table.
const IDField = "id"

// Table names shared by the domain instances.
const (
	TableUsers       = "users"
	TableWorkouts    = "workouts"
	TableCompletions = "workout_completions"
	TableSchedules   = "workout_schedules"
	TablePhotos      = "progress_photos"
)

// Row is a single record. Timestamps are time.Time values.
type Row map[string]any

// ID returns the row's primary key, or "" when absent.
func (r Row) ID() string {
	id, _ := r[IDField].(string)
	return id
}

func (r Row) String(field string) string {
	s, _ := r[field].(string)
	return s
}

func (r Row) Int(field string) int {
	switch v := r[field].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (r Row) Int64(field string) int64 {
	switch v := r[field].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

// Time returns the field as a time, accepting RFC 3339 strings too.
func (r Row) Time(field string) (time.Time, bool) {
	switch v := r[field].(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Op is a comparison operator in a filter condition.
type Op string

const (
	OpEq  Op = "eq"
	OpNe  Op = "ne"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

// Cond compares one field against a value.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of conditions. An empty filter matches every row.
type Filter []Cond

func Eq(field string, v any) Cond  { return Cond{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Cond  { return Cond{Field: field, Op: OpNe, Value: v} }
func Gte(field string, v any) Cond { return Cond{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Cond  { return Cond{Field: field, Op: OpLt, Value: v} }

// Where builds a Filter from conditions.
func Where(conds ...Cond) Filter { return Filter(conds) }

// Store is the remote data store contract.
type Store interface {
	// Query returns every row of table matching filter.
	Query(ctx context.Context, table string, filter Filter) ([]Row, error)

	// Insert writes rows and returns the ids it wrote. Rows whose id already exists are
	// skipped, which makes re-pushing the same batch harmless. Rows without an id are
	// rejected with ErrInvalidRow.
	Insert(ctx context.Context, table string, rows []Row) ([]string, error)

	// Update applies patch to the row with the given id. ErrNotFound when absent.
	Update(ctx context.Context, table, id string, patch Row) error

	// Delete removes the row with the given id. ErrNotFound when absent.
	Delete(ctx context.Context, table, id string) error
}

// compare orders two filter operands. ok is false when the types are not comparable.
func compare(a, b any) (c int, ok bool) {
	switch av := a.(type) {
	case string:
		bv, isStr := b.(string)
		if !isStr {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case time.Time:
		bv, isTime := b.(time.Time)
		if !isTime {
			return 0, false
		}
		return av.Compare(bv), true
	case bool:
		bv, isBool := b.(bool)
		if !isBool {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Matches reports whether row satisfies every condition of f.
func (f Filter) Matches(row Row) bool {
	for _, c := range f {
		v, present := row[c.Field]
		if !present {
			if c.Op == OpNe {
				continue
			}
			return false
		}
		cmp, ok := compare(v, c.Value)
		if !ok {
			if c.Op == OpNe {
				continue
			}
			return false
		}
		switch c.Op {
		case OpEq:
			if cmp != 0 {
				return false
			}
		case OpNe:
			if cmp == 0 {
				return false
			}
		case OpGt:
			if cmp <= 0 {
				return false
			}
		case OpGte:
			if cmp < 0 {
				return false
			}
		case OpLt:
			if cmp >= 0 {
				return false
			}
		case OpLte:
			if cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Validate checks that every condition uses a known operator.
func (f Filter) Validate() error {
	for _, c := range f {
		switch c.Op {
		case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		default:
			return fmt.Errorf("unknown operator %q on field %q", c.Op, c.Field)
		}
	}
	return nil
}

// IsNotFound reports whether err means the target row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
