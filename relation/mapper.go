package relation

import (
	"context"

	"github.com/goliatone/go-repository-relation/query"
)

// Mapper is the record layer a Relation executes through. It owns SQL
// rendering, row mapping and per-record persistence.
type Mapper[T any] interface {
	// Render returns the complete query text for frag.
	Render(frag query.Fragment) string
	// FindBySQL runs a rendered query and maps its rows.
	FindBySQL(ctx context.Context, sql string) ([]T, error)
	// FindWithAssociations runs a single joined fetch that loads plan.Join
	// inline. It returns ErrEmptyJoin when a required join matched nothing.
	FindWithAssociations(ctx context.Context, frag query.Fragment, plan LoadPlan) ([]T, error)
	// PreloadAssociations fills association on every record with a separate query.
	PreloadAssociations(ctx context.Context, records []T, association string) error

	Count(ctx context.Context, frag query.Fragment) (int, error)
	Exists(ctx context.Context, frag query.Fragment) (bool, error)
	DeleteAll(ctx context.Context, frag query.Fragment) (int64, error)
	UpdateAll(ctx context.Context, frag query.Fragment, set query.Clause) (int64, error)

	// AllAttributesExist reports whether every name is a column of the entity.
	AllAttributesExist(names []string) bool
	// BuildAssociationJoins returns the joins reaching the named associations.
	BuildAssociationJoins(names ...string) ([]query.Join, error)
	// MergeConditions turns attribute/value pairs into where clauses,
	// in sorted attribute order.
	MergeConditions(conditions map[string]any) []query.Clause

	// New returns an unsaved record.
	New() T
	// Assign sets attributes by column name. With guarded set, protected
	// attributes and the primary key are skipped.
	Assign(record T, attrs map[string]any, guarded bool) error
	MarkReadonly(record T)
	Save(ctx context.Context, record T) error
	Destroy(ctx context.Context, record T) error
}

// ReadonlyMarker is implemented by records that track a readonly flag.
type ReadonlyMarker interface {
	MarkReadonly()
	Readonly() bool
}
