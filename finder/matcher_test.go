package finder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-repository-relation/cache"
)

type mapCache struct {
	values map[string]any
	err    error
}

func newMapCache() *mapCache { return &mapCache{values: map[string]any{}} }

func (c *mapCache) GetOrFetch(ctx context.Context, key string, fetchFn func(context.Context) (any, error)) (any, error) {
	if c.err != nil {
		return nil, c.err
	}
	if v, ok := c.values[key]; ok {
		return v, nil
	}
	v, err := fetchFn(ctx)
	if err != nil {
		return nil, err
	}
	c.values[key] = v
	return v, nil
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	delete(c.values, key)
	return nil
}

func (c *mapCache) DeleteByPrefix(ctx context.Context, prefix string) error { return nil }

type countingMatcher struct {
	calls int
}

func (m *countingMatcher) Match(ctx context.Context, name string) (Match, bool) {
	m.calls++
	return Parse(name)
}

func TestCachedMatcher_MemoizesHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	next := &countingMatcher{}
	store := newMapCache()
	m := NewCachedMatcher(next, store, cache.NewDefaultKeySerializer("test"))

	for i := 0; i < 3; i++ {
		got, ok := m.Match(ctx, "find_by_title")
		require.True(t, ok)
		assert.Equal(t, KindFirst, got.Kind)

		_, ok = m.Match(ctx, "not_a_finder")
		assert.False(t, ok)
	}

	assert.Equal(t, 2, next.calls)
	assert.Len(t, store.values, 2)
}

func TestCachedMatcher_ReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	m := NewCachedMatcher(nil, newMapCache(), cache.NewDefaultKeySerializer())

	first, ok := m.Match(ctx, "find_by_title_and_author_id")
	require.True(t, ok)
	first.Attributes[0] = "mutated"

	second, ok := m.Match(ctx, "find_by_title_and_author_id")
	require.True(t, ok)
	assert.Equal(t, []string{"title", "author_id"}, second.Attributes)
}

func TestCachedMatcher_FallsBackOnCacheError(t *testing.T) {
	next := &countingMatcher{}
	store := newMapCache()
	store.err = errors.New("cache unavailable")
	m := NewCachedMatcher(next, store, cache.NewDefaultKeySerializer())

	got, ok := m.Match(context.Background(), "find_all_by_author_id")
	require.True(t, ok)
	assert.Equal(t, KindAll, got.Kind)
	assert.Equal(t, 1, next.calls)
}
