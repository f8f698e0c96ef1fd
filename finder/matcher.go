package finder

import (
	"context"

	"github.com/goliatone/go-repository-relation/cache"
)

// Matcher resolves finder names into structured requests.
type Matcher interface {
	Match(ctx context.Context, name string) (Match, bool)
}

// DefaultMatcher parses every name on demand.
type DefaultMatcher struct{}

// Match implements Matcher.
func (DefaultMatcher) Match(_ context.Context, name string) (Match, bool) {
	return Parse(name)
}

type parsed struct {
	Match Match
	OK    bool
}

// CachedMatcher memoizes parse results, including misses, in a cache service.
type CachedMatcher struct {
	next       Matcher
	cache      cache.CacheService
	serializer cache.KeySerializer
}

// NewCachedMatcher wraps next with a read-through cache. A nil next uses DefaultMatcher.
func NewCachedMatcher(next Matcher, service cache.CacheService, serializer cache.KeySerializer) *CachedMatcher {
	if next == nil {
		next = DefaultMatcher{}
	}
	return &CachedMatcher{next: next, cache: service, serializer: serializer}
}

// Match implements Matcher. Cache failures fall back to the wrapped matcher.
func (m *CachedMatcher) Match(ctx context.Context, name string) (Match, bool) {
	key := m.serializer.SerializeKey("finder.Match", name)
	res, err := cache.GetOrFetch(ctx, m.cache, key, func(ctx context.Context) (parsed, error) {
		match, ok := m.next.Match(ctx, name)
		return parsed{Match: match, OK: ok}, nil
	})
	if err != nil {
		return m.next.Match(ctx, name)
	}
	return res.Match.clone(), res.OK
}
