package relation

import (
	"maps"
	"slices"

	"github.com/goliatone/go-repository-relation/internal/naming"
)

// Entity describes the mapped type a relation queries. Naming conventions
// live here instead of being looked up at query time.
type Entity struct {
	// Name is the display name used in error messages, e.g. "Post".
	Name string
	// Table is the backing table.
	Table string
	// Alias qualifies columns in generated SQL. Defaults to Table.
	Alias string
	// PrimaryKey is the primary key column.
	PrimaryKey string
	// Attributes lists the known columns.
	Attributes []string
	// Protected lists attributes skipped by guarded assignment.
	Protected []string
	// Associations maps an association name to the join SQL that reaches it.
	Associations map[string]string
}

// EntityOption customizes an Entity built by NewEntity.
type EntityOption func(*Entity)

// NewEntity derives table and primary key from name: "BlogPost" maps to
// table "blog_posts" with primary key "id".
func NewEntity(name string, opts ...EntityOption) Entity {
	e := Entity{
		Name:       name,
		Table:      naming.Table(name),
		PrimaryKey: "id",
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func WithTable(table string) EntityOption {
	return func(e *Entity) { e.Table = table }
}

func WithAlias(alias string) EntityOption {
	return func(e *Entity) { e.Alias = alias }
}

func WithPrimaryKey(pk string) EntityOption {
	return func(e *Entity) { e.PrimaryKey = pk }
}

func WithAttributes(attrs ...string) EntityOption {
	return func(e *Entity) { e.Attributes = append(e.Attributes, attrs...) }
}

func WithProtected(attrs ...string) EntityOption {
	return func(e *Entity) { e.Protected = append(e.Protected, attrs...) }
}

// WithAssociation registers the join SQL used by JoinAssociations.
func WithAssociation(name, joinSQL string) EntityOption {
	return func(e *Entity) {
		if e.Associations == nil {
			e.Associations = make(map[string]string)
		}
		e.Associations[name] = joinSQL
	}
}

// Qualifier returns the name columns are qualified with.
func (e Entity) Qualifier() string {
	if e.Alias != "" {
		return e.Alias
	}
	return e.Table
}

// QualifiedPrimaryKey returns "<qualifier>.<pk>".
func (e Entity) QualifiedPrimaryKey() string {
	return e.Qualifier() + "." + e.PrimaryKey
}

// PluralName returns the pluralized display name.
func (e Entity) PluralName() string {
	return naming.Plural(e.Name)
}

// IsProtected reports whether attr is excluded from guarded assignment.
func (e Entity) IsProtected(attr string) bool {
	return slices.Contains(e.Protected, attr)
}

func (e Entity) clone() Entity {
	e.Attributes = slices.Clone(e.Attributes)
	e.Protected = slices.Clone(e.Protected)
	e.Associations = maps.Clone(e.Associations)
	return e
}
