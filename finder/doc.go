// Package finder parses dynamic finder names into structured requests.
//
// A finder name encodes an intent and a list of attributes:
//
//	find_by_name_and_email        first record matching both attributes
//	find_by_email!                first record, failing when none matches
//	find_last_by_author_id        last record
//	find_all_by_published         every record
//	scoped_by_author_id           a narrowed relation, nothing is loaded
//	find_or_initialize_by_email   existing record or a new unsaved one
//	find_or_create_by_email       existing record or a new saved one
//
// Go spellings are accepted as well: FindByNameAndEmail, MustFindByEmail,
// FindAllByPublished, FindOrCreateByEmail, ScopedByAuthorID.
//
// Callers that already know the intent can skip parsing and build the
// request with NewMatch(KindFirst, "name", "email").
//
// Parsing is cheap but CachedMatcher memoizes it behind a cache.CacheService
// for hot dispatch paths.
package finder
