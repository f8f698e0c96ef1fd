package query

import (
	"slices"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Clause is a SQL snippet with its placeholder arguments.
type Clause struct {
	SQL  string
	Args []any
}

// IsBlank reports whether the clause carries no SQL.
func (c Clause) IsBlank() bool {
	return strings.TrimSpace(c.SQL) == ""
}

func (c Clause) clone() Clause {
	return Clause{SQL: c.SQL, Args: slices.Clone(c.Args)}
}

// Join is a join expression plus the ON conditions attached to it.
type Join struct {
	Expr string
	Args []any
	On   []Clause
}

func (j Join) clone() Join {
	on := make([]Clause, len(j.On))
	for i, c := range j.On {
		on[i] = c.clone()
	}
	return Join{Expr: j.Expr, Args: slices.Clone(j.Args), On: on}
}

// Part names a clause kind of a Fragment.
type Part int

const (
	PartSelect Part = iota
	PartFrom
	PartJoins
	PartWhere
	PartGroup
	PartHaving
	PartOrder
	PartLimit
	PartOffset
	PartLock
)

// Fragment accumulates the clauses of a select statement. It is a value:
// every method returns a new Fragment and never touches the receiver.
type Fragment struct {
	selects []string
	from    *Clause
	joins   []Join
	wheres  []Clause
	groups  []string
	havings []Clause
	orders  []string
	limit   *int
	offset  *int
	lock    Lock
}

// New returns an empty fragment.
func New() Fragment {
	return Fragment{}
}

func (f Fragment) clone() Fragment {
	out := Fragment{
		selects: slices.Clone(f.selects),
		groups:  slices.Clone(f.groups),
		orders:  slices.Clone(f.orders),
		lock:    f.lock,
	}
	if f.from != nil {
		from := f.from.clone()
		out.from = &from
	}
	if f.joins != nil {
		out.joins = make([]Join, len(f.joins))
		for i, j := range f.joins {
			out.joins[i] = j.clone()
		}
	}
	out.wheres = cloneClauses(f.wheres)
	out.havings = cloneClauses(f.havings)
	if f.limit != nil {
		n := *f.limit
		out.limit = &n
	}
	if f.offset != nil {
		n := *f.offset
		out.offset = &n
	}
	return out
}

func cloneClauses(in []Clause) []Clause {
	if in == nil {
		return nil
	}
	out := make([]Clause, len(in))
	for i, c := range in {
		out[i] = c.clone()
	}
	return out
}

// Select appends projection expressions.
func (f Fragment) Select(cols ...string) Fragment {
	out := f.clone()
	out.selects = appendNonBlank(out.selects, cols...)
	return out
}

// From replaces the source expression.
func (f Fragment) From(expr string, args ...any) Fragment {
	out := f.clone()
	if strings.TrimSpace(expr) == "" {
		return out
	}
	out.from = &Clause{SQL: expr, Args: slices.Clone(args)}
	return out
}

// Join appends a join expression.
func (f Fragment) Join(expr string, args ...any) Fragment {
	out := f.clone()
	if strings.TrimSpace(expr) == "" {
		return out
	}
	out.joins = append(out.joins, Join{Expr: expr, Args: slices.Clone(args)})
	return out
}

// WithJoins appends already built joins.
func (f Fragment) WithJoins(joins ...Join) Fragment {
	out := f.clone()
	for _, j := range joins {
		if strings.TrimSpace(j.Expr) == "" {
			continue
		}
		out.joins = append(out.joins, j.clone())
	}
	return out
}

// On attaches a condition to the most recent join. Without a join it is a no-op.
func (f Fragment) On(cond string, args ...any) Fragment {
	out := f.clone()
	if len(out.joins) == 0 || strings.TrimSpace(cond) == "" {
		return out
	}
	last := &out.joins[len(out.joins)-1]
	last.On = append(last.On, Clause{SQL: cond, Args: slices.Clone(args)})
	return out
}

// Where appends a condition; conditions are ANDed.
func (f Fragment) Where(cond string, args ...any) Fragment {
	return f.WithWheres(Clause{SQL: cond, Args: args})
}

// WithWheres appends already built conditions.
func (f Fragment) WithWheres(clauses ...Clause) Fragment {
	out := f.clone()
	for _, c := range clauses {
		if c.IsBlank() {
			continue
		}
		out.wheres = append(out.wheres, c.clone())
	}
	return out
}

// Group appends grouping expressions.
func (f Fragment) Group(exprs ...string) Fragment {
	out := f.clone()
	out.groups = appendNonBlank(out.groups, exprs...)
	return out
}

// Having appends a having condition.
func (f Fragment) Having(cond string, args ...any) Fragment {
	return f.WithHavings(Clause{SQL: cond, Args: args})
}

// WithHavings appends already built having conditions.
func (f Fragment) WithHavings(clauses ...Clause) Fragment {
	out := f.clone()
	for _, c := range clauses {
		if c.IsBlank() {
			continue
		}
		out.havings = append(out.havings, c.clone())
	}
	return out
}

// Order appends ordering expressions.
func (f Fragment) Order(exprs ...string) Fragment {
	out := f.clone()
	out.orders = appendNonBlank(out.orders, exprs...)
	return out
}

// Take sets the row limit.
func (f Fragment) Take(n int) Fragment {
	out := f.clone()
	out.limit = &n
	return out
}

// Taken returns the row limit, if any.
func (f Fragment) Taken() (int, bool) {
	if f.limit == nil {
		return 0, false
	}
	return *f.limit, true
}

// Skip sets the row offset.
func (f Fragment) Skip(n int) Fragment {
	out := f.clone()
	out.offset = &n
	return out
}

// Skipped returns the row offset, if any.
func (f Fragment) Skipped() (int, bool) {
	if f.offset == nil {
		return 0, false
	}
	return *f.offset, true
}

// Lock sets the locking state.
func (f Fragment) Lock(l Lock) Fragment {
	out := f.clone()
	out.lock = l
	return out
}

// LockState returns the locking state.
func (f Fragment) LockState() Lock {
	return f.lock
}

// Except returns a copy without the given clause kinds.
func (f Fragment) Except(parts ...Part) Fragment {
	out := f.clone()
	for _, p := range parts {
		out.clear(p)
	}
	return out
}

// Only returns a copy keeping just the given clause kinds.
func (f Fragment) Only(parts ...Part) Fragment {
	out := f.clone()
	for p := PartSelect; p <= PartLock; p++ {
		if !slices.Contains(parts, p) {
			out.clear(p)
		}
	}
	return out
}

func (f *Fragment) clear(p Part) {
	switch p {
	case PartSelect:
		f.selects = nil
	case PartFrom:
		f.from = nil
	case PartJoins:
		f.joins = nil
	case PartWhere:
		f.wheres = nil
	case PartGroup:
		f.groups = nil
	case PartHaving:
		f.havings = nil
	case PartOrder:
		f.orders = nil
	case PartLimit:
		f.limit = nil
	case PartOffset:
		f.offset = nil
	case PartLock:
		f.lock = Lock{}
	}
}

// Selects returns the projection expressions.
func (f Fragment) Selects() []string { return slices.Clone(f.selects) }

// Joins returns the join expressions.
func (f Fragment) Joins() []Join { return f.clone().joins }

// Wheres returns the where conditions.
func (f Fragment) Wheres() []Clause { return cloneClauses(f.wheres) }

// Havings returns the having conditions.
func (f Fragment) Havings() []Clause { return cloneClauses(f.havings) }

// Groups returns the grouping expressions.
func (f Fragment) Groups() []string { return slices.Clone(f.groups) }

// Orders returns the ordering expressions.
func (f Fragment) Orders() []string { return slices.Clone(f.orders) }

// Source returns the from clause, if one was set.
func (f Fragment) Source() (Clause, bool) {
	if f.from == nil {
		return Clause{}, false
	}
	return f.from.clone(), true
}

// HasJoins reports whether any join is present.
func (f Fragment) HasJoins() bool { return len(f.joins) > 0 }

// HasSource reports whether a from clause is present.
func (f Fragment) HasSource() bool { return f.from != nil }

// IsZero reports whether no clause has been set.
func (f Fragment) IsZero() bool {
	return len(f.selects) == 0 && f.from == nil && len(f.joins) == 0 &&
		len(f.wheres) == 0 && len(f.groups) == 0 && len(f.havings) == 0 &&
		len(f.orders) == 0 && f.limit == nil && f.offset == nil && f.lock.Mode == LockUnset
}

// SelectSQL returns the projection list as written.
func (f Fragment) SelectSQL() string { return strings.Join(f.selects, ", ") }

// GroupSQL returns the grouping list as written.
func (f Fragment) GroupSQL() string { return strings.Join(f.groups, ", ") }

// OrderSQL returns the ordering list as written.
func (f Fragment) OrderSQL() string { return strings.Join(f.orders, ", ") }

// FromSQL returns the source expression as written.
func (f Fragment) FromSQL() string {
	if f.from == nil {
		return ""
	}
	return f.from.SQL
}

// WhereSQL returns the where conditions with placeholders left in place.
func (f Fragment) WhereSQL() string { return joinConditions(f.wheres, false) }

// HavingSQL returns the having conditions with placeholders left in place.
func (f Fragment) HavingSQL() string { return joinConditions(f.havings, false) }

// WhereString returns the where conditions with their arguments inlined.
func (f Fragment) WhereString() string { return joinConditions(f.wheres, true) }

// JoinSQL returns every join with its ON conditions.
func (f Fragment) JoinSQL() string {
	parts := make([]string, 0, len(f.joins))
	for _, j := range f.joins {
		s := j.Expr
		if len(j.On) > 0 {
			s += " ON " + joinConditions(j.On, false)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

func joinConditions(clauses []Clause, inline bool) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		s := c.SQL
		if inline {
			s = Interpolate(c.SQL, c.Args...)
		}
		if len(clauses) > 1 {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " AND ")
}

// Criteria returns the fragment as ordered select criteria.
func (f Fragment) Criteria() []repository.SelectCriteria {
	var out []repository.SelectCriteria
	for _, col := range f.selects {
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.ColumnExpr(col)
		})
	}
	if f.from != nil {
		from := f.from.clone()
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.ModelTableExpr(from.SQL, from.Args...)
		})
	}
	for _, j := range f.joins {
		join := j.clone()
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Join(join.Expr, join.Args...)
			for _, on := range join.On {
				q = q.JoinOn(on.SQL, on.Args...)
			}
			return q
		})
	}
	for _, w := range f.wheres {
		where := w.clone()
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where(where.SQL, where.Args...)
		})
	}
	for _, g := range f.groups {
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.GroupExpr(g)
		})
	}
	for _, h := range f.havings {
		having := h.clone()
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Having(having.SQL, having.Args...)
		})
	}
	for _, o := range f.orders {
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr(o)
		})
	}
	if f.limit != nil {
		n := *f.limit
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Limit(n)
		})
	}
	if f.offset != nil {
		n := *f.offset
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Offset(n)
		})
	}
	if f.lock.Mode == LockEnabled {
		clause := f.lock.SQL()
		out = append(out, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.For(clause)
		})
	}
	return out
}

// Apply runs the fragment's criteria against q.
func (f Fragment) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	for _, c := range f.Criteria() {
		q = c(q)
	}
	return q
}

// ToSQL renders the fragment on top of q as a complete query string.
func (f Fragment) ToSQL(q *bun.SelectQuery) string {
	return f.Apply(q).String()
}

// DeleteCriteria returns the where conditions for a bulk delete. Bulk
// statements always carry a where clause, so an unconstrained fragment
// yields a tautology.
func (f Fragment) DeleteCriteria() []repository.DeleteCriteria {
	wheres := f.bulkWheres()
	out := make([]repository.DeleteCriteria, 0, len(wheres))
	for _, w := range wheres {
		out = append(out, func(q *bun.DeleteQuery) *bun.DeleteQuery {
			return q.Where(w.SQL, w.Args...)
		})
	}
	return out
}

// UpdateCriteria returns the where conditions for a bulk update.
func (f Fragment) UpdateCriteria() []repository.UpdateCriteria {
	wheres := f.bulkWheres()
	out := make([]repository.UpdateCriteria, 0, len(wheres))
	for _, w := range wheres {
		out = append(out, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Where(w.SQL, w.Args...)
		})
	}
	return out
}

func (f Fragment) bulkWheres() []Clause {
	if len(f.wheres) == 0 {
		return []Clause{{SQL: "1 = 1"}}
	}
	return cloneClauses(f.wheres)
}

func appendNonBlank(dst []string, values ...string) []string {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		dst = append(dst, v)
	}
	return dst
}
