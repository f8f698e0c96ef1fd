package bunmapper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-repository-relation/query"
	"github.com/goliatone/go-repository-relation/relation"
)

// Writer is the part of repository.Repository used to persist records.
type Writer[T any] interface {
	Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error)
	Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error)
	Delete(ctx context.Context, record T) error
}

// Mapper maps rows of model M through bun.
type Mapper[M any] struct {
	db     bun.IDB
	entity relation.Entity
	table  *schema.Table
	writer Writer[*M]
}

var _ relation.Mapper[*struct{}] = (*Mapper[struct{}])(nil)

// Option configures a Mapper.
type Option[M any] func(*Mapper[M])

// WithWriter routes Save and Destroy through w, typically a
// repository.Repository[*M].
func WithWriter[M any](w Writer[*M]) Option[M] {
	return func(m *Mapper[M]) { m.writer = w }
}

// New returns a mapper for M described by entity.
func New[M any](db bun.IDB, entity relation.Entity, opts ...Option[M]) *Mapper[M] {
	m := &Mapper[M]{
		db:     db,
		entity: entity,
		table:  tableOf[M](db),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Describe derives an entity from M's bun schema: table, alias, primary key
// and columns. Options are applied last.
func Describe[M any](db bun.IDB, opts ...relation.EntityOption) relation.Entity {
	table := tableOf[M](db)
	name := table.Type.Name()

	base := []relation.EntityOption{
		relation.WithTable(table.Name),
		relation.WithAlias(string(table.Alias)),
	}
	if len(table.PKs) > 0 {
		base = append(base, relation.WithPrimaryKey(table.PKs[0].Name))
	}
	cols := make([]string, 0, len(table.Fields))
	for _, f := range table.Fields {
		cols = append(cols, f.Name)
	}
	base = append(base, relation.WithAttributes(cols...))

	return relation.NewEntity(name, append(base, opts...)...)
}

func tableOf[M any](db bun.IDB) *schema.Table {
	return db.Dialect().Tables().Get(reflect.TypeOf((*M)(nil)).Elem())
}

func (m *Mapper[M]) model() *M { return (*M)(nil) }

// Entity returns the entity descriptor.
func (m *Mapper[M]) Entity() relation.Entity { return m.entity }

// Render returns the query bun would run for frag.
func (m *Mapper[M]) Render(frag query.Fragment) string {
	return frag.ToSQL(m.db.NewSelect().Model(m.model()))
}

// FindBySQL runs a rendered statement and scans it into models.
func (m *Mapper[M]) FindBySQL(ctx context.Context, sqlText string) ([]*M, error) {
	records := make([]*M, 0)
	if err := m.db.NewRaw(sqlText).Scan(ctx, &records); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

// FindWithAssociations loads plan.Join through bun relations in the same
// query as the primary rows.
func (m *Mapper[M]) FindWithAssociations(ctx context.Context, frag query.Fragment, plan relation.LoadPlan) ([]*M, error) {
	records := make([]*M, 0)
	q := frag.Apply(m.db.NewSelect().Model(&records))
	for _, name := range plan.Join {
		if err := m.checkRelation(name); err != nil {
			return nil, err
		}
		q = q.Relation(name)
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, relation.ErrEmptyJoin
		}
		return nil, err
	}
	return records, nil
}

// PreloadAssociations loads association for records with one extra query
// keyed on their primary keys and copies it onto each record.
func (m *Mapper[M]) PreloadAssociations(ctx context.Context, records []*M, association string) error {
	if len(records) == 0 {
		return nil
	}
	if err := m.checkRelation(association); err != nil {
		return err
	}
	pk, err := m.primaryField()
	if err != nil {
		return err
	}

	byKey := make(map[any][]*M, len(records))
	keys := make([]any, 0, len(records))
	for _, rec := range records {
		key := reflect.ValueOf(rec).Elem().FieldByIndex(pk.Index).Interface()
		if _, seen := byKey[key]; !seen {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], rec)
	}

	loaded := make([]*M, 0, len(keys))
	err = m.db.NewSelect().
		Model(&loaded).
		Where("?TableAlias.? IN (?)", bun.Ident(pk.Name), bun.In(keys)).
		Relation(association).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("preload %s: %w", association, err)
	}

	for _, src := range loaded {
		sv := reflect.ValueOf(src).Elem()
		key := sv.FieldByIndex(pk.Index).Interface()
		value := sv.FieldByName(association)
		for _, dst := range byKey[key] {
			reflect.ValueOf(dst).Elem().FieldByName(association).Set(value)
		}
	}
	return nil
}

func (m *Mapper[M]) checkRelation(name string) error {
	field, ok := m.table.Type.FieldByName(name)
	if !ok || !strings.Contains(field.Tag.Get("bun"), "rel:") {
		return fmt.Errorf("bunmapper: %s has no association %q", m.entity.Name, name)
	}
	return nil
}

func (m *Mapper[M]) primaryField() (*schema.Field, error) {
	if f, ok := m.table.FieldMap[m.entity.PrimaryKey]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("bunmapper: %s has no primary key column %q", m.entity.Name, m.entity.PrimaryKey)
}

// Count counts matching rows. Limit, offset and grouping are honoured by
// counting over a subquery.
func (m *Mapper[M]) Count(ctx context.Context, frag query.Fragment) (int, error) {
	return count(ctx, m.db, frag, func() *bun.SelectQuery {
		return m.db.NewSelect().Model(m.model())
	})
}

func count(ctx context.Context, db bun.IDB, frag query.Fragment, base func() *bun.SelectQuery) (int, error) {
	_, limited := frag.Taken()
	_, skipped := frag.Skipped()
	if !limited && !skipped && len(frag.Groups()) == 0 {
		return frag.Except(query.PartOrder).Apply(base()).Count(ctx)
	}

	var n int
	err := db.NewSelect().
		ColumnExpr("count(*)").
		TableExpr("(?) AS count_subquery", frag.Apply(base())).
		Scan(ctx, &n)
	return n, err
}

// Exists reports whether frag matches any row.
func (m *Mapper[M]) Exists(ctx context.Context, frag query.Fragment) (bool, error) {
	return frag.Apply(m.db.NewSelect().Model(m.model())).Exists(ctx)
}

// DeleteAll deletes matching rows in one statement.
func (m *Mapper[M]) DeleteAll(ctx context.Context, frag query.Fragment) (int64, error) {
	q := m.db.NewDelete().Model(m.model())
	for _, c := range frag.DeleteCriteria() {
		q = c(q)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateAll applies set to matching rows in one statement.
func (m *Mapper[M]) UpdateAll(ctx context.Context, frag query.Fragment, set query.Clause) (int64, error) {
	q := m.db.NewUpdate().Model(m.model()).Set(set.SQL, set.Args...)
	for _, c := range frag.UpdateCriteria() {
		q = c(q)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AllAttributesExist reports whether every name is a column of M.
func (m *Mapper[M]) AllAttributesExist(names []string) bool {
	for _, name := range names {
		if _, ok := m.table.FieldMap[name]; !ok {
			return false
		}
	}
	return true
}

// BuildAssociationJoins returns the join SQL registered on the entity.
func (m *Mapper[M]) BuildAssociationJoins(names ...string) ([]query.Join, error) {
	return associationJoins(m.entity, names)
}

func associationJoins(entity relation.Entity, names []string) ([]query.Join, error) {
	joins := make([]query.Join, 0, len(names))
	for _, name := range names {
		expr, ok := entity.Associations[name]
		if !ok {
			return nil, fmt.Errorf("bunmapper: %s has no join for association %q", entity.Name, name)
		}
		joins = append(joins, query.Join{Expr: expr})
	}
	return joins, nil
}

// MergeConditions builds qualified equality conditions. nil matches NULL,
// a slice matches any element and an empty slice matches nothing.
func (m *Mapper[M]) MergeConditions(conditions map[string]any) []query.Clause {
	return mergeConditions(m.entity, conditions)
}

func mergeConditions(entity relation.Entity, conditions map[string]any) []query.Clause {
	out := make([]query.Clause, 0, len(conditions))
	for _, k := range sortedKeys(conditions) {
		col := k
		if !strings.Contains(k, ".") {
			col = entity.Qualifier() + "." + k
		}
		v := conditions[k]
		switch {
		case isNil(v):
			out = append(out, query.Clause{SQL: col + " IS NULL"})
		case isList(v):
			items := listItems(v)
			if len(items) == 0 {
				out = append(out, query.Clause{SQL: "1 = 0"})
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(items)), ", ")
			out = append(out, query.Clause{SQL: col + " IN (" + placeholders + ")", Args: items})
		default:
			out = append(out, query.Clause{SQL: col + " = ?", Args: []any{v}})
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// New returns a zero model.
func (m *Mapper[M]) New() *M { return new(M) }

// Assign sets attributes by column name. Guarded assignment skips the
// primary key and protected attributes. Unknown columns fail.
func (m *Mapper[M]) Assign(record *M, attrs map[string]any, guarded bool) error {
	rv := reflect.ValueOf(record).Elem()

	for _, k := range sortedKeys(attrs) {
		field, ok := m.table.FieldMap[k]
		if !ok {
			return fmt.Errorf("bunmapper: unknown attribute %q for %s", k, m.entity.Name)
		}
		if guarded && (k == m.entity.PrimaryKey || m.entity.IsProtected(k)) {
			continue
		}
		if err := setValue(rv.FieldByIndex(field.Index), attrs[k]); err != nil {
			return fmt.Errorf("bunmapper: assign %s.%s: %w", m.entity.Name, k, err)
		}
	}
	return nil
}

// MarkReadonly flags records implementing relation.ReadonlyMarker.
func (m *Mapper[M]) MarkReadonly(record *M) {
	if rm, ok := any(record).(relation.ReadonlyMarker); ok {
		rm.MarkReadonly()
	}
}

func isReadonly(record any) bool {
	rm, ok := record.(relation.ReadonlyMarker)
	return ok && rm.Readonly()
}

// Save inserts a record with a zero primary key and updates it otherwise.
func (m *Mapper[M]) Save(ctx context.Context, record *M) error {
	if isReadonly(record) {
		return relation.ErrReadOnlyRecord
	}
	pk, err := m.primaryField()
	if err != nil {
		return err
	}
	isNew := reflect.ValueOf(record).Elem().FieldByIndex(pk.Index).IsZero()

	if m.writer != nil {
		var saved *M
		if isNew {
			saved, err = m.writer.Create(ctx, record)
		} else {
			saved, err = m.writer.Update(ctx, record)
		}
		if err != nil {
			return err
		}
		if saved != nil && saved != record {
			*record = *saved
		}
		return nil
	}

	if isNew {
		_, err = m.db.NewInsert().Model(record).Exec(ctx)
	} else {
		_, err = m.db.NewUpdate().Model(record).WherePK().Exec(ctx)
	}
	return err
}

// Destroy deletes a single record by primary key.
func (m *Mapper[M]) Destroy(ctx context.Context, record *M) error {
	if isReadonly(record) {
		return relation.ErrReadOnlyRecord
	}
	if m.writer != nil {
		return m.writer.Delete(ctx, record)
	}
	_, err := m.db.NewDelete().Model(record).WherePK().Exec(ctx)
	return err
}

func setValue(dst reflect.Value, v any) error {
	if isNil(v) {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(v)
	if dst.Kind() == reflect.Pointer && src.Kind() != reflect.Pointer {
		ptr := reflect.New(dst.Type().Elem())
		if err := setValue(ptr.Elem(), v); err != nil {
			return err
		}
		dst.Set(ptr)
		return nil
	}
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case isNumeric(src.Kind()) && isNumeric(dst.Kind()), src.Kind() == dst.Kind() && src.Type().ConvertibleTo(dst.Type()):
		dst.Set(src.Convert(dst.Type()))
	default:
		return fmt.Errorf("cannot use %T as %s", v, dst.Type())
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
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

func isList(v any) bool {
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

func listItems(v any) []any {
	rv := reflect.ValueOf(v)
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items
}
