package relation

import (
	"context"
	"fmt"
	"maps"

	"github.com/goliatone/go-repository-relation/finder"
)

// FinderResult is the outcome of a dynamic finder. Which fields are set
// depends on the match kind: Record and Found for first, last and
// instantiators; Records for all; Relation for scopes.
type FinderResult[T any] struct {
	Match    finder.Match
	Record   T
	Found    bool
	Records  []T
	Relation *Relation[T]
	// Persisted is set when a find-or-create saved a new record.
	Persisted bool
}

// Dispatch resolves a finder name such as "find_by_title_and_author_id" or
// "FindOrCreateByTitle" and runs it with positional arguments.
func (r *Relation[T]) Dispatch(ctx context.Context, name string, args ...any) (FinderResult[T], error) {
	match, ok := r.matcher.Match(ctx, name)
	if !ok {
		return FinderResult[T]{}, &UnsupportedOperationError{Entity: r.entity.Name, Name: name}
	}
	if match.IsInstantiator() {
		return r.FindOrInstantiatorByAttributes(ctx, match, nil, args...)
	}
	return r.FindByAttributes(ctx, match, args...)
}

func (r *Relation[T]) accept(match finder.Match) error {
	switch {
	case match.Kind == finder.KindNone || len(match.Attributes) == 0:
		return &UnsupportedOperationError{Entity: r.entity.Name, Name: match.Name}
	case !r.mapper.AllAttributesExist(match.Attributes):
		return &UnsupportedOperationError{Entity: r.entity.Name, Name: match.Name, Reason: "unknown attribute"}
	}
	return nil
}

// FindByAttributes constrains each attribute to the argument in the same
// position, missing arguments meaning NULL, and runs the matched finder.
func (r *Relation[T]) FindByAttributes(ctx context.Context, match finder.Match, args ...any) (FinderResult[T], error) {
	res := FinderResult[T]{Match: match}
	if err := r.accept(match); err != nil {
		return res, err
	}
	if !match.IsFinder() && !match.IsScope() {
		return res, &UnsupportedOperationError{Entity: r.entity.Name, Name: match.Name, Reason: "not a finder"}
	}

	values := make([]any, len(match.Attributes))
	conditions := make(map[string]any, len(match.Attributes))
	for i, attr := range match.Attributes {
		if i < len(args) {
			values[i] = args[i]
		}
		conditions[attr] = values[i]
	}
	scoped := r.WhereAttrs(conditions)

	var err error
	switch match.Kind {
	case finder.KindScope:
		res.Relation = scoped
	case finder.KindAll:
		res.Records, err = scoped.Load(ctx)
		res.Found = len(res.Records) > 0
	case finder.KindLast:
		res.Record, res.Found, err = scoped.Last(ctx)
	default:
		res.Record, res.Found, err = scoped.First(ctx)
	}
	if err != nil {
		return res, err
	}

	if match.Bang() && !res.Found {
		return res, notFoundByAttributes(r.entity, match.Attributes, values)
	}
	return res, nil
}

// FindOrInstantiatorByAttributes looks a record up by the match attributes
// and builds one when nothing matches. A map argument supplies attributes
// assigned with protection; other arguments are positional values assigned
// as given, missing ones matching NULL when no map is given. Lookup uses
// only the match attributes. customize, when not nil,
// runs on a new record before it is saved. Only find-or-create saves.
func (r *Relation[T]) FindOrInstantiatorByAttributes(ctx context.Context, match finder.Match, customize func(T) error, args ...any) (FinderResult[T], error) {
	res := FinderResult[T]{Match: match}
	if err := r.accept(match); err != nil {
		return res, err
	}
	if !match.IsInstantiator() {
		return res, &UnsupportedOperationError{Entity: r.entity.Name, Name: match.Name, Reason: "not an instantiator"}
	}

	protected := map[string]any{}
	unprotected := map[string]any{}
	hasMap := false
	for i, arg := range args {
		if attrs, ok := arg.(map[string]any); ok {
			protected = maps.Clone(attrs)
			hasMap = true
			continue
		}
		if i < len(match.Attributes) {
			unprotected[match.Attributes[i]] = arg
		}
	}

	lookup := make(map[string]any, len(match.Attributes))
	for _, attr := range match.Attributes {
		if v, ok := unprotected[attr]; ok {
			lookup[attr] = v
		} else if v, ok := protected[attr]; ok {
			lookup[attr] = v
		} else if !hasMap {
			lookup[attr] = nil
		}
	}

	record, found, err := r.WhereAttrs(lookup).First(ctx)
	if err != nil {
		return res, err
	}
	if found {
		res.Record, res.Found = record, true
		return res, nil
	}

	record = r.mapper.New()
	if len(protected) > 0 {
		if err := r.mapper.Assign(record, protected, true); err != nil {
			return res, fmt.Errorf("%s: %w", match.Name, err)
		}
	}
	if len(unprotected) > 0 {
		if err := r.mapper.Assign(record, unprotected, false); err != nil {
			return res, fmt.Errorf("%s: %w", match.Name, err)
		}
	}
	if customize != nil {
		if err := customize(record); err != nil {
			return res, err
		}
	}
	res.Record = record

	if match.Kind == finder.KindFindOrCreate {
		if err := r.mapper.Save(ctx, record); err != nil {
			return res, fmt.Errorf("%s: %w", match.Name, err)
		}
		res.Persisted = true
	}
	return res, nil
}
