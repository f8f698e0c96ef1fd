package relation

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// IDs converts a typed id list for FindAll and FindMany.
func IDs[K any](ids ...K) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// Find returns the record with the given primary key. Any active conditions
// still apply, and appear in the error when nothing matches.
func (r *Relation[T]) Find(ctx context.Context, id any) (T, error) {
	var zero T
	ids := normalizeIDs([]any{id})
	switch len(ids) {
	case 0:
		return zero, notFoundWithoutID(r.entity)
	case 1:
		return r.findOne(ctx, ids[0])
	default:
		return zero, &TypeMismatchError{Expected: "a single id", Got: fmt.Sprintf("%d ids", len(ids))}
	}
}

// FindMany returns the records for ids. Lists are flattened, nils dropped
// and duplicates removed. It fails unless every id is found, taking an
// active limit and offset into account.
func (r *Relation[T]) FindMany(ctx context.Context, ids ...any) ([]T, error) {
	ids = normalizeIDs(ids)
	switch len(ids) {
	case 0:
		return nil, notFoundWithoutID(r.entity)
	case 1:
		record, err := r.findOne(ctx, ids[0])
		if err != nil {
			return nil, err
		}
		return []T{record}, nil
	default:
		return r.findSome(ctx, ids)
	}
}

// FindAll is FindMany for an id list. An empty list, or one holding only
// nils, returns no records without querying.
func (r *Relation[T]) FindAll(ctx context.Context, ids []any) ([]T, error) {
	if len(normalizeIDs(ids)) == 0 {
		return []T{}, nil
	}
	return r.FindMany(ctx, ids...)
}

func (r *Relation[T]) findOne(ctx context.Context, id any) (T, error) {
	record, found, err := r.Where(r.entity.QualifiedPrimaryKey()+" = ?", id).First(ctx)
	if err != nil {
		return record, err
	}
	if !found {
		return record, notFoundOne(r.entity, id, r.fragment.WhereString())
	}
	return record, nil
}

func (r *Relation[T]) findSome(ctx context.Context, ids []any) ([]T, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	records, err := r.Where(r.entity.QualifiedPrimaryKey()+" IN ("+placeholders+")", ids...).Load(ctx)
	if err != nil {
		return nil, err
	}

	expected := r.expectedCount(len(ids))
	if len(records) != expected {
		return nil, notFoundSome(r.entity, ids, r.fragment.WhereString(), len(records), expected)
	}
	return records, nil
}

// expectedCount is how many of n distinct ids the current limit and offset
// allow to come back. It never goes below zero.
func (r *Relation[T]) expectedCount(n int) int {
	expected := n
	if limit, ok := r.fragment.Taken(); ok && n > limit {
		expected = limit
	}
	if offset, ok := r.fragment.Skipped(); ok && n-offset < expected {
		expected = n - offset
	}
	return max(expected, 0)
}

func normalizeIDs(ids []any) []any {
	flat := make([]any, 0, len(ids))
	var walk func(v any)
	walk = func(v any) {
		if isNil(v) {
			return
		}
		if isList(v) {
			rv := reflect.ValueOf(v)
			for i := 0; i < rv.Len(); i++ {
				walk(rv.Index(i).Interface())
			}
			return
		}
		flat = append(flat, v)
	}
	for _, id := range ids {
		walk(id)
	}

	out := flat[:0:0]
	seen := make(map[any]struct{}, len(flat))
	for _, id := range flat {
		if !reflect.TypeOf(id).Comparable() {
			if !containsDeep(out, id) {
				out = append(out, id)
			}
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsDeep(list []any, v any) bool {
	for _, item := range list {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

// isList reports whether v is a slice or array other than []byte.
func isList(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
