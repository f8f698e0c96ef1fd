package relation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goliatone/go-repository-relation/query"
)

// Load materializes the relation. The first call fetches; later calls
// return the cached records until Reload.
func (r *Relation[T]) Load(ctx context.Context) ([]T, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.loaded {
		return r.records, nil
	}

	plan := PlanLoad(r.fragment, r.entity, r.includes, r.eagerLoad, r.preload)

	var records []T
	var err error
	if plan.Strategy == StrategyEagerJoin {
		records, err = r.mapper.FindWithAssociations(ctx, r.fragment, plan)
		if errors.Is(err, ErrEmptyJoin) {
			records, err = []T{}, nil
		}
	} else {
		records, err = r.mapper.FindBySQL(ctx, r.mapper.Render(r.fragment))
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", r.entity.Name, err)
	}

	if len(records) > 0 {
		for _, association := range plan.Preload {
			if err := r.mapper.PreloadAssociations(ctx, records, association); err != nil {
				return nil, fmt.Errorf("preload %s.%s: %w", r.entity.Name, association, err)
			}
		}
	}

	if r.readonly == ReadonlyOn {
		for _, record := range records {
			r.mapper.MarkReadonly(record)
		}
	}

	r.logger.LogAttrs(ctx, slog.LevelDebug, "relation loaded",
		slog.String("entity", r.entity.Name),
		slog.String("strategy", plan.Strategy.String()),
		slog.Int("records", len(records)),
		slog.Any("preload", plan.Preload),
		slog.Any("join", plan.Join),
	)

	r.records = records
	r.loaded = true
	return r.records, nil
}

// Loaded reports whether the relation has been materialized.
func (r *Relation[T]) Loaded() bool { return r.loaded }

// First returns the first record. A loaded relation answers from its cache;
// otherwise the result of a one row query is memoized separately.
func (r *Relation[T]) First(ctx context.Context) (T, bool, error) {
	if r.loaded {
		if len(r.records) == 0 {
			var zero T
			return zero, false, nil
		}
		return r.records[0], true, nil
	}
	if r.first == nil {
		m, err := r.Limit(1).takeOne(ctx)
		if err != nil {
			var zero T
			return zero, false, err
		}
		r.first = m
	}
	return r.first.record, r.first.found, nil
}

// Last returns the last record by reversing the ordering.
func (r *Relation[T]) Last(ctx context.Context) (T, bool, error) {
	if r.loaded {
		if len(r.records) == 0 {
			var zero T
			return zero, false, nil
		}
		return r.records[len(r.records)-1], true, nil
	}
	if r.last == nil {
		m, err := r.ReverseOrder().Limit(1).takeOne(ctx)
		if err != nil {
			var zero T
			return zero, false, err
		}
		r.last = m
	}
	return r.last.record, r.last.found, nil
}

func (r *Relation[T]) takeOne(ctx context.Context) (*memo[T], error) {
	records, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &memo[T]{}, nil
	}
	return &memo[T]{record: records[0], found: true}, nil
}

// Count always queries the store.
func (r *Relation[T]) Count(ctx context.Context) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.mapper.Count(ctx, r.fragment)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.entity.Name, err)
	}
	return n, nil
}

// Size is the number of records, from the cache when loaded.
func (r *Relation[T]) Size(ctx context.Context) (int, error) {
	if r.loaded {
		return len(r.records), nil
	}
	return r.Count(ctx)
}

func (r *Relation[T]) Empty(ctx context.Context) (bool, error) {
	n, err := r.Size(ctx)
	return n == 0, err
}

func (r *Relation[T]) Any(ctx context.Context) (bool, error) {
	empty, err := r.Empty(ctx)
	return !empty, err
}

// Many reports whether there is more than one record. With a limit set the
// relation is loaded, since a count would ignore it.
func (r *Relation[T]) Many(ctx context.Context) (bool, error) {
	if _, limited := r.fragment.Taken(); r.loaded || limited {
		records, err := r.Load(ctx)
		return len(records) > 1, err
	}
	n, err := r.Size(ctx)
	return n > 1, err
}

// Exists reports whether any row matches, selecting only the primary key.
func (r *Relation[T]) Exists(ctx context.Context) (bool, error) {
	return r.exists(ctx, r.fragment)
}

// ExistsID reports whether a row with the given primary key matches. A nil
// id applies no key filter.
func (r *Relation[T]) ExistsID(ctx context.Context, id any) (bool, error) {
	if id == nil {
		return r.Exists(ctx)
	}
	return r.exists(ctx, r.fragment.Where(r.entity.QualifiedPrimaryKey()+" = ?", id))
}

// ExistsWhere reports whether a row matching attrs exists.
func (r *Relation[T]) ExistsWhere(ctx context.Context, attrs map[string]any) (bool, error) {
	return r.exists(ctx, r.fragment.WithWheres(r.mapper.MergeConditions(attrs)...))
}

func (r *Relation[T]) exists(ctx context.Context, frag query.Fragment) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	frag = frag.Except(query.PartSelect).Select(r.entity.QualifiedPrimaryKey()).Take(1)
	ok, err := r.mapper.Exists(ctx, frag)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", r.entity.Name, err)
	}
	return ok, nil
}

// Reset drops the cached records and first/last memos. The loaded flag is
// kept, so a reset relation reads as empty until Reload.
func (r *Relation[T]) Reset() *Relation[T] {
	r.first = nil
	r.last = nil
	r.records = []T{}
	return r
}

// Reload discards all cached state and fetches again.
func (r *Relation[T]) Reload(ctx context.Context) ([]T, error) {
	r.loaded = false
	r.Reset()
	return r.Load(ctx)
}

// DestroyAll loads every record and destroys them one by one, then resets.
func (r *Relation[T]) DestroyAll(ctx context.Context) ([]T, error) {
	records, err := r.Load(ctx)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := r.mapper.Destroy(ctx, record); err != nil {
			return nil, fmt.Errorf("destroy %s: %w", r.entity.Name, err)
		}
	}
	r.Reset()
	return records, nil
}

// DeleteAll removes matching rows with one statement, skipping per record
// hooks, then resets.
func (r *Relation[T]) DeleteAll(ctx context.Context) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.mapper.DeleteAll(ctx, r.fragment)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", r.entity.Name, err)
	}
	r.Reset()
	return n, nil
}

// UpdateAll applies set to every matching row with one statement.
func (r *Relation[T]) UpdateAll(ctx context.Context, set string, args ...any) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	clause := query.Clause{SQL: set, Args: args}
	if clause.IsBlank() {
		return 0, fmt.Errorf("update %s: empty SET clause", r.entity.Name)
	}
	n, err := r.mapper.UpdateAll(ctx, r.fragment, clause)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", r.entity.Name, err)
	}
	r.Reset()
	return n, nil
}

// Destroy finds the records by id and destroys each of them.
func (r *Relation[T]) Destroy(ctx context.Context, ids ...any) ([]T, error) {
	records, err := r.FindMany(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := r.mapper.Destroy(ctx, record); err != nil {
			return nil, fmt.Errorf("destroy %s: %w", r.entity.Name, err)
		}
	}
	return records, nil
}

// Delete removes rows by id with one statement.
func (r *Relation[T]) Delete(ctx context.Context, ids ...any) (int64, error) {
	ids = normalizeIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	return r.WhereAttrs(map[string]any{r.entity.PrimaryKey: ids}).DeleteAll(ctx)
}

// Build returns an unsaved record carrying the relation's equality
// conditions, then attrs with protected attributes guarded.
func (r *Relation[T]) Build(attrs map[string]any) (T, error) {
	record := r.mapper.New()
	if scope := r.WhereValues(); len(scope) > 0 {
		if err := r.mapper.Assign(record, scope, false); err != nil {
			return record, fmt.Errorf("build %s: %w", r.entity.Name, err)
		}
	}
	if len(attrs) > 0 {
		if err := r.mapper.Assign(record, attrs, true); err != nil {
			return record, fmt.Errorf("build %s: %w", r.entity.Name, err)
		}
	}
	return record, nil
}

// Create builds a record and saves it.
func (r *Relation[T]) Create(ctx context.Context, attrs map[string]any) (T, error) {
	record, err := r.Build(attrs)
	if err != nil {
		return record, err
	}
	if err := r.mapper.Save(ctx, record); err != nil {
		return record, fmt.Errorf("create %s: %w", r.entity.Name, err)
	}
	return record, nil
}
