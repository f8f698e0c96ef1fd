// Package relation implements a lazy, chainable query builder over a single
// entity.
//
// A Relation accumulates clauses without touching the store. Every chaining
// method returns a new Relation:
//
//	posts := relation.New(relation.NewEntity("Post"), mapper)
//	recent := posts.Where("posts.published = ?", true).Order("posts.created_at DESC").Limit(10)
//
// Execution methods take a context and run through the Mapper:
//
//	records, err := recent.Load(ctx) // fetches once, cached afterwards
//	first, ok, err := recent.First(ctx)
//	n, err := recent.Count(ctx)
//
// Associations load either inside the primary query (EagerLoad) or with one
// query each after it (Preload). Includes lets PlanLoad choose: it joins when
// the conditions reference another table and preloads otherwise.
//
// Find, FindMany and FindAll look records up by primary key. Dispatch runs
// dynamic finders named like "find_by_title_and_author_id",
// "find_or_create_by_title" or "FindAllByAuthorID", parsed by a
// finder.Matcher.
package relation
