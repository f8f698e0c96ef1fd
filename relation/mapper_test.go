package relation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/goliatone/go-repository-relation/query"
)

type post struct {
	ID       int64
	Title    string
	AuthorID int64
	readonly bool
}

func (p *post) MarkReadonly()  { p.readonly = true }
func (p *post) Readonly() bool { return p.readonly }

type assignCall struct {
	attrs   map[string]any
	guarded bool
}

// fakeMapper returns canned rows and records every call made against it.
type fakeMapper struct {
	entity  Entity
	rows    []*post
	joinErr error
	findErr error
	count   int
	exists  bool

	sqls       []string
	eagerPlans []LoadPlan
	preloads   []string
	countCalls int
	existsSQL  []string
	deleted    []string
	updated    []query.Clause
	assigned   []assignCall
	saved      []*post
	destroyed  []*post
}

func newFakeMapper(rows ...*post) *fakeMapper {
	return &fakeMapper{entity: testEntity(), rows: rows}
}

func testEntity() Entity {
	return NewEntity("Post",
		WithAttributes("id", "title", "author_id"),
		WithProtected("author_id"),
		WithAssociation("author", "JOIN authors ON authors.id = posts.author_id"),
		WithAssociation("comments", "LEFT JOIN comments ON comments.post_id = posts.id"),
	)
}

func (m *fakeMapper) Render(f query.Fragment) string {
	sel := f.SelectSQL()
	if sel == "" {
		sel = "posts.*"
	}
	parts := []string{"SELECT " + sel, "FROM posts"}
	if from, ok := f.Source(); ok {
		parts[1] = "FROM " + query.Interpolate(from.SQL, from.Args...)
	}
	if j := f.JoinSQL(); j != "" {
		parts = append(parts, j)
	}
	if w := f.WhereString(); w != "" {
		parts = append(parts, "WHERE "+w)
	}
	if g := f.GroupSQL(); g != "" {
		parts = append(parts, "GROUP BY "+g)
	}
	if o := f.OrderSQL(); o != "" {
		parts = append(parts, "ORDER BY "+o)
	}
	if n, ok := f.Taken(); ok {
		parts = append(parts, fmt.Sprintf("LIMIT %d", n))
	}
	if n, ok := f.Skipped(); ok {
		parts = append(parts, fmt.Sprintf("OFFSET %d", n))
	}
	if lock := f.LockState().SQL(); lock != "" {
		parts = append(parts, "FOR "+lock)
	}
	return strings.Join(parts, " ")
}

func (m *fakeMapper) FindBySQL(ctx context.Context, sql string) ([]*post, error) {
	m.sqls = append(m.sqls, sql)
	if m.findErr != nil {
		return nil, m.findErr
	}
	return slices.Clone(m.rows), nil
}

func (m *fakeMapper) FindWithAssociations(ctx context.Context, f query.Fragment, plan LoadPlan) ([]*post, error) {
	m.eagerPlans = append(m.eagerPlans, plan)
	if m.joinErr != nil {
		return nil, m.joinErr
	}
	return slices.Clone(m.rows), nil
}

func (m *fakeMapper) PreloadAssociations(ctx context.Context, records []*post, association string) error {
	m.preloads = append(m.preloads, association)
	return nil
}

func (m *fakeMapper) Count(ctx context.Context, f query.Fragment) (int, error) {
	m.countCalls++
	return m.count, nil
}

func (m *fakeMapper) Exists(ctx context.Context, f query.Fragment) (bool, error) {
	m.existsSQL = append(m.existsSQL, m.Render(f))
	return m.exists, nil
}

func (m *fakeMapper) DeleteAll(ctx context.Context, f query.Fragment) (int64, error) {
	m.deleted = append(m.deleted, f.WhereString())
	return int64(len(m.rows)), nil
}

func (m *fakeMapper) UpdateAll(ctx context.Context, f query.Fragment, set query.Clause) (int64, error) {
	m.updated = append(m.updated, set)
	return int64(len(m.rows)), nil
}

func (m *fakeMapper) AllAttributesExist(names []string) bool {
	for _, n := range names {
		if !slices.Contains(m.entity.Attributes, n) {
			return false
		}
	}
	return true
}

func (m *fakeMapper) BuildAssociationJoins(names ...string) ([]query.Join, error) {
	var joins []query.Join
	for _, n := range names {
		sql, ok := m.entity.Associations[n]
		if !ok {
			return joins, fmt.Errorf("association %q not found", n)
		}
		joins = append(joins, query.Join{Expr: sql})
	}
	return joins, nil
}

func (m *fakeMapper) MergeConditions(conditions map[string]any) []query.Clause {
	keys := make([]string, 0, len(conditions))
	for k := range conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]query.Clause, 0, len(keys))
	for _, k := range keys {
		col := "posts." + k
		switch v := conditions[k]; {
		case v == nil:
			out = append(out, query.Clause{SQL: col + " IS NULL"})
		case isList(v):
			out = append(out, query.Clause{SQL: col + " IN (?)", Args: []any{v}})
		default:
			out = append(out, query.Clause{SQL: col + " = ?", Args: []any{v}})
		}
	}
	return out
}

func (m *fakeMapper) New() *post { return &post{} }

func (m *fakeMapper) Assign(p *post, attrs map[string]any, guarded bool) error {
	m.assigned = append(m.assigned, assignCall{attrs: attrs, guarded: guarded})
	for k, v := range attrs {
		if guarded && (k == "id" || m.entity.IsProtected(k)) {
			continue
		}
		switch k {
		case "id":
			p.ID = toInt64(v)
		case "title":
			p.Title, _ = v.(string)
		case "author_id":
			p.AuthorID = toInt64(v)
		default:
			return fmt.Errorf("unknown attribute %q", k)
		}
	}
	return nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	}
	return 0
}

func (m *fakeMapper) MarkReadonly(p *post) { p.MarkReadonly() }

func (m *fakeMapper) Save(ctx context.Context, p *post) error {
	if p.Readonly() {
		return ErrReadOnlyRecord
	}
	if p.ID == 0 {
		p.ID = int64(100 + len(m.saved))
	}
	m.saved = append(m.saved, p)
	return nil
}

func (m *fakeMapper) Destroy(ctx context.Context, p *post) error {
	if p.Readonly() {
		return ErrReadOnlyRecord
	}
	m.destroyed = append(m.destroyed, p)
	return nil
}

var errBoom = errors.New("boom")

func newPosts(mapper *fakeMapper) *Relation[*post] {
	return New[*post](mapper.entity, mapper)
}
