package memory

import (
	"slices"

	"github.com/google/uuid"
)

// table is an insertion-ordered map keyed by id. Queries are linear scans.
// Callers hold the store lock.
type table[T any] struct {
	order []uuid.UUID
	rows  map[uuid.UUID]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[uuid.UUID]T)}
}

func (t *table[T]) insert(id uuid.UUID, row T) {
	if _, ok := t.rows[id]; !ok {
		t.order = append(t.order, id)
	}
	t.rows[id] = row
}

func (t *table[T]) get(id uuid.UUID) (T, bool) {
	row, ok := t.rows[id]
	return row, ok
}

func (t *table[T]) update(id uuid.UUID, fn func(*T)) bool {
	row, ok := t.rows[id]
	if !ok {
		return false
	}
	fn(&row)
	t.rows[id] = row
	return true
}

// query is a find with an optional sort and limit. A nil cmp keeps
// insertion order; limit <= 0 means unlimited.
type query[T any] struct {
	match func(T) bool
	cmp   func(a, b T) int
	limit int
}

func (t *table[T]) find(q query[T]) []T {
	var out []T
	for _, id := range t.order {
		row := t.rows[id]
		if q.match == nil || q.match(row) {
			out = append(out, row)
		}
	}
	if q.cmp != nil {
		slices.SortStableFunc(out, q.cmp)
	}
	if q.limit > 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out
}

func (t *table[T]) findOne(match func(T) bool) (T, bool) {
	for _, id := range t.order {
		row := t.rows[id]
		if match(row) {
			return row, true
		}
	}
	var zero T
	return zero, false
}

// either matches when any of the given predicates matches.
func either[T any](preds ...func(T) bool) func(T) bool {
	return func(row T) bool {
		for _, p := range preds {
			if p(row) {
				return true
			}
		}
		return false
	}
}
