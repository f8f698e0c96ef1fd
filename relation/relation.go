package relation

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/goliatone/go-repository-relation/finder"
	"github.com/goliatone/go-repository-relation/query"
)

// Readonly is the tri-state readonly flag of a relation.
type Readonly int

const (
	ReadonlyInherit Readonly = iota
	ReadonlyOn
	ReadonlyOff
)

// Relation is a lazy query over one entity. Chaining methods return a new
// Relation and leave the receiver untouched. Nothing runs until an
// execution method is called; the loaded records are then cached on the
// instance. A Relation that is about to be loaded is single-owner: loading
// the same instance from several goroutines races.
type Relation[T any] struct {
	entity  Entity
	mapper  Mapper[T]
	matcher finder.Matcher
	logger  *slog.Logger

	fragment  query.Fragment
	preload   []string
	eagerLoad []string
	includes  []string
	readonly  Readonly
	scope     map[string]any
	err       error

	loaded  bool
	records []T
	first   *memo[T]
	last    *memo[T]
}

type memo[T any] struct {
	record T
	found  bool
}

// Option configures a base relation.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	matcher finder.Matcher
}

// WithLogger sets the logger used for materialization events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMatcher sets the finder matcher used by Dispatch.
func WithMatcher(m finder.Matcher) Option {
	return func(o *options) { o.matcher = m }
}

// New returns the unconstrained relation over entity.
func New[T any](entity Entity, mapper Mapper[T], opts ...Option) *Relation[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.matcher == nil {
		o.matcher = finder.DefaultMatcher{}
	}
	return &Relation[T]{
		entity:   entity.clone(),
		mapper:   mapper,
		matcher:  o.matcher,
		logger:   o.logger,
		fragment: query.New(),
	}
}

// spawn copies the cross-cutting state onto a relation over frag.
func (r *Relation[T]) spawn(frag query.Fragment) *Relation[T] {
	return &Relation[T]{
		entity:    r.entity,
		mapper:    r.mapper,
		matcher:   r.matcher,
		logger:    r.logger,
		fragment:  frag,
		preload:   slices.Clone(r.preload),
		eagerLoad: slices.Clone(r.eagerLoad),
		includes:  slices.Clone(r.includes),
		readonly:  r.readonly,
		scope:     maps.Clone(r.scope),
		err:       r.err,
	}
}

// Entity returns the entity descriptor.
func (r *Relation[T]) Entity() Entity { return r.entity }

// Fragment returns the accumulated clauses.
func (r *Relation[T]) Fragment() query.Fragment { return r.fragment }

// ReadonlyState returns the readonly flag.
func (r *Relation[T]) ReadonlyState() Readonly { return r.readonly }

// PreloadValues returns the associations loaded by separate queries.
func (r *Relation[T]) PreloadValues() []string { return slices.Clone(r.preload) }

// EagerLoadValues returns the associations loaded by a joined query.
func (r *Relation[T]) EagerLoadValues() []string { return slices.Clone(r.eagerLoad) }

// IncludesValues returns the associations whose strategy is planned at load time.
func (r *Relation[T]) IncludesValues() []string { return slices.Clone(r.includes) }

// Err returns the first error recorded while chaining, if any. Execution
// methods return it before touching the store.
func (r *Relation[T]) Err() error { return r.err }

func (r *Relation[T]) Where(cond string, args ...any) *Relation[T] {
	return r.spawn(r.fragment.Where(cond, args...))
}

// WhereAttrs adds equality conditions built by the mapper. A nil value
// matches NULL and a slice matches any of its elements. Scalar values also
// become defaults for Build and Create.
func (r *Relation[T]) WhereAttrs(attrs map[string]any) *Relation[T] {
	if len(attrs) == 0 {
		return r.spawn(r.fragment)
	}
	out := r.spawn(r.fragment.WithWheres(r.mapper.MergeConditions(attrs)...))
	for k, v := range attrs {
		if v == nil || isList(v) {
			continue
		}
		if out.scope == nil {
			out.scope = make(map[string]any)
		}
		out.scope[k] = v
	}
	return out
}

// Select adds projected columns. The result stays readonly only while it
// still carries joins.
func (r *Relation[T]) Select(cols ...string) *Relation[T] {
	if !slices.ContainsFunc(cols, func(c string) bool { return strings.TrimSpace(c) != "" }) {
		return r.spawn(r.fragment)
	}
	out := r.spawn(r.fragment.Select(cols...))
	if !out.fragment.HasJoins() {
		out.readonly = ReadonlyOff
	}
	return out
}

func (r *Relation[T]) From(expr string, args ...any) *Relation[T] {
	return r.spawn(r.fragment.From(expr, args...))
}

func (r *Relation[T]) Having(cond string, args ...any) *Relation[T] {
	return r.spawn(r.fragment.Having(cond, args...))
}

func (r *Relation[T]) Group(exprs ...string) *Relation[T] {
	return r.spawn(r.fragment.Group(exprs...))
}

func (r *Relation[T]) Order(exprs ...string) *Relation[T] {
	return r.spawn(r.fragment.Order(exprs...))
}

// ReverseOrder flips every ordering term, or orders by the primary key
// descending when there is no ordering.
func (r *Relation[T]) ReverseOrder() *Relation[T] {
	current := r.fragment.OrderSQL()
	order := r.entity.QualifiedPrimaryKey() + " DESC"
	if strings.TrimSpace(current) != "" {
		order = ReverseSQLOrder(current)
	}
	return r.spawn(r.fragment.Except(query.PartOrder).Order(order))
}

// ReverseSQLOrder reverses a comma separated ORDER BY list term by term.
// "name ASC, id" becomes "name DESC,id DESC".
func ReverseSQLOrder(order string) string {
	terms := strings.Split(order, ",")
	for i, term := range terms {
		term = strings.TrimSpace(term)
		fields := strings.Fields(term)
		last := ""
		if len(fields) > 1 {
			last = fields[len(fields)-1]
		}
		head := strings.TrimSpace(strings.TrimSuffix(term, last))
		switch {
		case strings.EqualFold(last, "ASC"):
			terms[i] = head + " DESC"
		case strings.EqualFold(last, "DESC"):
			terms[i] = head + " ASC"
		default:
			terms[i] = term + " DESC"
		}
	}
	return strings.Join(terms, ",")
}

func (r *Relation[T]) Limit(n int) *Relation[T] {
	return r.spawn(r.fragment.Take(n))
}

func (r *Relation[T]) Offset(n int) *Relation[T] {
	return r.spawn(r.fragment.Skip(n))
}

// Joins adds a raw join. Joined results are readonly.
func (r *Relation[T]) Joins(expr string, args ...any) *Relation[T] {
	if strings.TrimSpace(expr) == "" {
		return r.spawn(r.fragment)
	}
	out := r.spawn(r.fragment.Join(expr, args...))
	out.readonly = ReadonlyOn
	return out
}

// JoinAssociations joins the named associations using the mapper's join
// builder. A failure is recorded and returned by the next execution method.
func (r *Relation[T]) JoinAssociations(names ...string) *Relation[T] {
	names = appendUnique(nil, names...)
	if len(names) == 0 {
		return r.spawn(r.fragment)
	}
	joins, err := r.mapper.BuildAssociationJoins(names...)
	out := r.spawn(r.fragment.WithJoins(joins...))
	if err != nil && out.err == nil {
		out.err = fmt.Errorf("join %s associations %v: %w", r.entity.Name, names, err)
	}
	out.readonly = ReadonlyOn
	return out
}

// On adds a condition to the most recent join.
func (r *Relation[T]) On(cond string, args ...any) *Relation[T] {
	return r.spawn(r.fragment.On(cond, args...))
}

// Lock selects rows FOR UPDATE.
func (r *Relation[T]) Lock() *Relation[T] {
	return r.spawn(r.fragment.Lock(query.Enabled()))
}

// LockWith locks with a raw clause such as "SHARE" or "UPDATE NOWAIT".
func (r *Relation[T]) LockWith(clause string) *Relation[T] {
	return r.spawn(r.fragment.Lock(query.Enabled(clause)))
}

// Unlock explicitly disables locking.
func (r *Relation[T]) Unlock() *Relation[T] {
	return r.spawn(r.fragment.Lock(query.Disabled()))
}

// Readonly sets whether loaded records are marked readonly.
func (r *Relation[T]) Readonly(on bool) *Relation[T] {
	out := r.spawn(r.fragment)
	out.readonly = ReadonlyOff
	if on {
		out.readonly = ReadonlyOn
	}
	return out
}

// Preload loads the named associations with one query each after the
// primary rows are fetched.
func (r *Relation[T]) Preload(names ...string) *Relation[T] {
	out := r.spawn(r.fragment)
	out.preload = appendUnique(out.preload, names...)
	return out
}

// EagerLoad loads the named associations inside the primary query.
func (r *Relation[T]) EagerLoad(names ...string) *Relation[T] {
	out := r.spawn(r.fragment)
	out.eagerLoad = appendUnique(out.eagerLoad, names...)
	return out
}

// Includes loads the named associations with the strategy chosen by PlanLoad.
func (r *Relation[T]) Includes(names ...string) *Relation[T] {
	out := r.spawn(r.fragment)
	out.includes = appendUnique(out.includes, names...)
	return out
}

// Except drops whole clause kinds.
func (r *Relation[T]) Except(parts ...query.Part) *Relation[T] {
	out := r.spawn(r.fragment.Except(parts...))
	if slices.Contains(parts, query.PartWhere) {
		out.scope = nil
	}
	return out
}

// Only keeps just the given clause kinds.
func (r *Relation[T]) Only(parts ...query.Part) *Relation[T] {
	out := r.spawn(r.fragment.Only(parts...))
	if !slices.Contains(parts, query.PartWhere) {
		out.scope = nil
	}
	return out
}

// Merge applies other's clauses onto r: joins, group, having, order, where,
// limit, offset, select, association lists, then from when other has a
// source. Relations over different entities do not merge; entities match
// on name, table and primary key.
func (r *Relation[T]) Merge(other *Relation[T]) (*Relation[T], error) {
	if other == nil {
		return r.spawn(r.fragment), nil
	}
	if other.entity.Name != r.entity.Name ||
		other.entity.Table != r.entity.Table ||
		other.entity.PrimaryKey != r.entity.PrimaryKey {
		return nil, &TypeMismatchError{Expected: r.entity.Name, Got: other.entity.Name}
	}

	src := other.fragment
	merged := r.spawn(r.fragment)
	if joins := src.Joins(); len(joins) > 0 {
		merged = merged.spawn(merged.fragment.WithJoins(joins...))
		merged.readonly = ReadonlyOn
	}
	merged = merged.spawn(merged.fragment.
		Group(src.Groups()...).
		WithHavings(src.Havings()...).
		Order(src.Orders()...).
		WithWheres(src.Wheres()...))
	if n, ok := src.Taken(); ok {
		merged = merged.Limit(n)
	}
	if n, ok := src.Skipped(); ok {
		merged = merged.Offset(n)
	}
	if cols := src.Selects(); len(cols) > 0 {
		merged = merged.Select(cols...)
	}
	merged = merged.EagerLoad(other.eagerLoad...).Preload(other.preload...).Includes(other.includes...)
	if from, ok := src.Source(); ok {
		merged = merged.From(from.SQL, from.Args...)
	}

	if lock := src.LockState(); lock.Mode != query.LockUnset {
		merged = merged.spawn(merged.fragment.Lock(lock))
	}
	if other.readonly != ReadonlyInherit {
		merged.readonly = other.readonly
	}
	for k, v := range other.scope {
		if merged.scope == nil {
			merged.scope = make(map[string]any)
		}
		merged.scope[k] = v
	}
	if merged.err == nil {
		merged.err = other.err
	}
	return merged, nil
}

// WhereValues returns the scalar equality conditions added through
// WhereAttrs and dynamic finders.
func (r *Relation[T]) WhereValues() map[string]any {
	out := maps.Clone(r.scope)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// ToSQL renders the relation's query.
func (r *Relation[T]) ToSQL() string {
	return r.mapper.Render(r.fragment)
}

// String implements fmt.Stringer.
func (r *Relation[T]) String() string {
	return fmt.Sprintf("Relation[%s](%s)", r.entity.Name, r.fragment.WhereString())
}
