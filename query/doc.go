// Package query provides Fragment, the immutable clause carrier used by relations.
//
// A Fragment records select, from, join, where, group, having, order, limit,
// offset and lock clauses as plain SQL snippets with placeholder arguments.
// Every method returns a new Fragment, so a fragment can be shared freely
// between relations without copying.
//
// Fragments are rendered through bun. Criteria returns the clauses as
// go-repository-bun select criteria, Apply runs them against a
// *bun.SelectQuery and ToSQL renders the final query string:
//
//	frag := query.New().
//		Where("posts.published = ?", true).
//		Order("posts.created_at DESC").
//		Take(10)
//
//	sql := frag.ToSQL(db.NewSelect().Model((*Post)(nil)))
//
// DeleteCriteria and UpdateCriteria expose the where conditions for bulk
// statements.
package query
