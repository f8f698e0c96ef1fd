package bunmapper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-relation/query"
	"github.com/goliatone/go-repository-relation/relation"
)

// Row is a record read from a table without a Go model.
type Row map[string]any

// ErrNoAssociations is returned when a TableMapper is asked to load
// associations. Rows carry no relation metadata.
var ErrNoAssociations = errors.New("bunmapper: table rows have no associations")

// TableMapper maps rows of an arbitrary table into Row values. When the
// entity lists attributes, only those columns are accepted by Assign and
// dynamic finders.
type TableMapper struct {
	db     bun.IDB
	entity relation.Entity
}

var _ relation.Mapper[Row] = (*TableMapper)(nil)

// NewTable returns a mapper over entity.Table.
func NewTable(db bun.IDB, entity relation.Entity) *TableMapper {
	return &TableMapper{db: db, entity: entity}
}

func (m *TableMapper) source() (string, []any) {
	if m.entity.Qualifier() == m.entity.Table {
		return "?", []any{bun.Ident(m.entity.Table)}
	}
	return "? AS ?", []any{bun.Ident(m.entity.Table), bun.Ident(m.entity.Qualifier())}
}

func (m *TableMapper) newSelect() *bun.SelectQuery {
	expr, args := m.source()
	return m.db.NewSelect().TableExpr(expr, args...)
}

func (m *TableMapper) Render(frag query.Fragment) string {
	return frag.ToSQL(m.newSelect())
}

func (m *TableMapper) FindBySQL(ctx context.Context, sqlText string) ([]Row, error) {
	var maps []map[string]any
	if err := m.db.NewRaw(sqlText).Scan(ctx, &maps); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	rows := make([]Row, len(maps))
	for i, values := range maps {
		for k, v := range values {
			if b, ok := v.([]byte); ok {
				values[k] = string(b)
			}
		}
		rows[i] = Row(values)
	}
	return rows, nil
}

func (m *TableMapper) FindWithAssociations(context.Context, query.Fragment, relation.LoadPlan) ([]Row, error) {
	return nil, ErrNoAssociations
}

func (m *TableMapper) PreloadAssociations(context.Context, []Row, string) error {
	return ErrNoAssociations
}

func (m *TableMapper) Count(ctx context.Context, frag query.Fragment) (int, error) {
	return count(ctx, m.db, frag, m.newSelect)
}

func (m *TableMapper) Exists(ctx context.Context, frag query.Fragment) (bool, error) {
	return frag.Apply(m.newSelect()).Exists(ctx)
}

func (m *TableMapper) DeleteAll(ctx context.Context, frag query.Fragment) (int64, error) {
	expr, args := m.source()
	q := m.db.NewDelete().TableExpr(expr, args...)
	for _, c := range frag.DeleteCriteria() {
		q = c(q)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m *TableMapper) UpdateAll(ctx context.Context, frag query.Fragment, set query.Clause) (int64, error) {
	expr, args := m.source()
	q := m.db.NewUpdate().TableExpr(expr, args...).Set(set.SQL, set.Args...)
	for _, c := range frag.UpdateCriteria() {
		q = c(q)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AllAttributesExist accepts any name when the entity declares no attributes.
func (m *TableMapper) AllAttributesExist(names []string) bool {
	if len(m.entity.Attributes) == 0 {
		return true
	}
	for _, name := range names {
		if !slices.Contains(m.entity.Attributes, name) {
			return false
		}
	}
	return true
}

func (m *TableMapper) BuildAssociationJoins(names ...string) ([]query.Join, error) {
	return associationJoins(m.entity, names)
}

func (m *TableMapper) MergeConditions(conditions map[string]any) []query.Clause {
	return mergeConditions(m.entity, conditions)
}

func (m *TableMapper) New() Row { return Row{} }

func (m *TableMapper) Assign(record Row, attrs map[string]any, guarded bool) error {
	for _, k := range sortedKeys(attrs) {
		if !m.AllAttributesExist([]string{k}) {
			return fmt.Errorf("bunmapper: unknown attribute %q for %s", k, m.entity.Name)
		}
		if guarded && (k == m.entity.PrimaryKey || m.entity.IsProtected(k)) {
			continue
		}
		record[k] = attrs[k]
	}
	return nil
}

// MarkReadonly is a no-op. Rows do not track a readonly flag.
func (m *TableMapper) MarkReadonly(Row) {}

// Save inserts a row without a primary key value and updates it otherwise.
// After an insert the generated key is copied into the row when the driver
// reports one.
func (m *TableMapper) Save(ctx context.Context, record Row) error {
	pk := m.entity.PrimaryKey
	values := map[string]any(record)

	if id, ok := record[pk]; ok && !isNil(id) && !reflect.ValueOf(id).IsZero() {
		changes := make(map[string]any, len(values))
		for k, v := range values {
			if k != pk {
				changes[k] = v
			}
		}
		_, err := m.db.NewUpdate().
			Model(&changes).
			TableExpr("?", bun.Ident(m.entity.Table)).
			Where("? = ?", bun.Ident(pk), id).
			Exec(ctx)
		return err
	}

	delete(values, pk)
	res, err := m.db.NewInsert().Model(&values).TableExpr("?", bun.Ident(m.entity.Table)).Exec(ctx)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		record[pk] = id
	}
	return nil
}

func (m *TableMapper) Destroy(ctx context.Context, record Row) error {
	id, ok := record[m.entity.PrimaryKey]
	if !ok || isNil(id) {
		return fmt.Errorf("bunmapper: %s row has no %s", m.entity.Name, m.entity.PrimaryKey)
	}
	_, err := m.db.NewDelete().
		TableExpr("?", bun.Ident(m.entity.Table)).
		Where("? = ?", bun.Ident(m.entity.PrimaryKey), id).
		Exec(ctx)
	return err
}
