package relation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Memoizes(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper(&post{ID: 1}, &post{ID: 2})
	r := newPosts(mapper).Where("posts.author_id = ?", 7)

	first, err := r.Load(ctx)
	require.NoError(t, err)
	second, err := r.Load(ctx)
	require.NoError(t, err)

	assert.Len(t, mapper.sqls, 1)
	assert.Equal(t, "SELECT posts.* FROM posts WHERE posts.author_id = 7", mapper.sqls[0])
	require.Len(t, second, 2)
	assert.Same(t, first[0], second[0])
	assert.True(t, r.Loaded())
}

func TestLoad_ResetKeepsLoaded(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper(&post{ID: 1})
	r := newPosts(mapper)

	_, err := r.Load(ctx)
	require.NoError(t, err)
	_, _, err = r.First(ctx)
	require.NoError(t, err)

	r.Reset()
	assert.True(t, r.Loaded())
	records, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Len(t, mapper.sqls, 1)

	records, err = r.Reload(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Len(t, mapper.sqls, 2)

	_, err = r.Reload(ctx)
	require.NoError(t, err)
	assert.Len(t, mapper.sqls, 3)
}

func TestLoad_ErrorIsWrapped(t *testing.T) {
	mapper := newFakeMapper()
	mapper.findErr = errBoom

	r := newPosts(mapper)
	_, err := r.Load(context.Background())
	require.ErrorIs(t, err, errBoom)
	assert.False(t, r.Loaded())
}

func TestLoad_EagerLoadUsesJoinedFetch(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper(&post{ID: 1})

	records, err := newPosts(mapper).EagerLoad("author").Preload("comments").Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Empty(t, mapper.sqls)
	require.Len(t, mapper.eagerPlans, 1)
	assert.Equal(t, []string{"author"}, mapper.eagerPlans[0].Join)
	assert.Equal(t, []string{"comments"}, mapper.preloads)
}

func TestLoad_EmptyJoinIsEmptyResult(t *testing.T) {
	mapper := newFakeMapper()
	mapper.joinErr = fmt.Errorf("scan: %w", ErrEmptyJoin)

	r := newPosts(mapper).EagerLoad("author")
	records, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.True(t, r.Loaded())
}

func TestLoad_PreloadsInOrderAfterFetch(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper(&post{ID: 1})

	_, err := newPosts(mapper).Preload("author", "comments").Includes("tags").Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"author", "comments", "tags"}, mapper.preloads)
	assert.Len(t, mapper.sqls, 1)

	empty := newFakeMapper()
	_, err = newPosts(empty).Preload("author").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.preloads)
}

func TestLoad_MarksReadonly(t *testing.T) {
	ctx := context.Background()
	p := &post{ID: 1}
	mapper := newFakeMapper(p)

	_, err := newPosts(mapper).Load(ctx)
	require.NoError(t, err)
	assert.False(t, p.Readonly())

	records, err := newPosts(mapper).Joins("JOIN authors ON authors.id = posts.author_id").Load(ctx)
	require.NoError(t, err)
	for _, rec := range records {
		assert.True(t, rec.Readonly())
	}
	assert.True(t, p.Readonly())
}

func TestLoad_LogsMaterialization(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mapper := newFakeMapper(&post{ID: 1})

	_, err := New[*post](mapper.entity, mapper, WithLogger(logger)).Load(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "relation loaded")
	assert.Contains(t, buf.String(), "entity=Post")
	assert.Contains(t, buf.String(), "strategy=preload")
	assert.Contains(t, buf.String(), "records=1")
}

func TestFirstLast_MemoizedIndependently(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper(&post{ID: 1, Title: "a"})
	r := newPosts(mapper).Order("posts.title")

	got, ok, err := r.First(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.ID)
	_, _, err = r.First(ctx)
	require.NoError(t, err)

	_, ok, err = r.Last(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, mapper.sqls, 2)
	assert.Equal(t, "SELECT posts.* FROM posts ORDER BY posts.title LIMIT 1", mapper.sqls[0])
	assert.Equal(t, "SELECT posts.* FROM posts ORDER BY posts.title DESC LIMIT 1", mapper.sqls[1])
	assert.False(t, r.Loaded())
}

func TestFirstLast_UseLoadedRecords(t *testing.T) {
	ctx := context.Background()
	a, b := &post{ID: 1}, &post{ID: 2}
	mapper := newFakeMapper(a, b)
	r := newPosts(mapper)

	_, err := r.Load(ctx)
	require.NoError(t, err)

	first, ok, err := r.First(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, a, first)

	last, ok, err := r.Last(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, b, last)
	assert.Len(t, mapper.sqls, 1)
}

func TestFirst_NotFound(t *testing.T) {
	mapper := newFakeMapper()
	got, ok, err := newPosts(mapper).First(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestSizeEmptyAnyMany(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper(&post{ID: 1}, &post{ID: 2})
	mapper.count = 5
	r := newPosts(mapper)

	n, err := r.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, mapper.countCalls)
	assert.Empty(t, mapper.sqls)

	empty, err := r.Empty(ctx)
	require.NoError(t, err)
	assert.False(t, empty)

	many, err := r.Many(ctx)
	require.NoError(t, err)
	assert.True(t, many)
	assert.Empty(t, mapper.sqls)

	_, err = r.Load(ctx)
	require.NoError(t, err)
	calls := mapper.countCalls
	n, err = r.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	found, err := r.Any(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, calls, mapper.countCalls)

	n, err = r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestMany_WithLimitLoads(t *testing.T) {
	mapper := newFakeMapper(&post{ID: 1})
	mapper.count = 10

	many, err := newPosts(mapper).Limit(1).Many(context.Background())
	require.NoError(t, err)
	assert.False(t, many)
	assert.Equal(t, 0, mapper.countCalls)
	assert.Len(t, mapper.sqls, 1)
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper()
	mapper.exists = true
	r := newPosts(mapper).Select("posts.title").Where("posts.author_id = ?", 7)

	ok, err := r.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.ExistsID(ctx, 3)
	require.NoError(t, err)

	_, err = r.ExistsWhere(ctx, map[string]any{"title": "x"})
	require.NoError(t, err)

	_, err = r.ExistsID(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"SELECT posts.id FROM posts WHERE posts.author_id = 7 LIMIT 1",
		"SELECT posts.id FROM posts WHERE (posts.author_id = 7) AND (posts.id = 3) LIMIT 1",
		"SELECT posts.id FROM posts WHERE (posts.author_id = 7) AND (posts.title = 'x') LIMIT 1",
		"SELECT posts.id FROM posts WHERE posts.author_id = 7 LIMIT 1",
	}, mapper.existsSQL)
	assert.Empty(t, mapper.sqls)
}

func TestDestroyAll(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper(&post{ID: 1}, &post{ID: 2})
	r := newPosts(mapper)

	destroyed, err := r.DestroyAll(ctx)
	require.NoError(t, err)
	assert.Len(t, destroyed, 2)
	assert.Len(t, mapper.destroyed, 2)
	assert.True(t, r.Loaded())

	records, err := r.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDestroyAll_ReadonlyFails(t *testing.T) {
	mapper := newFakeMapper(&post{ID: 1})
	_, err := newPosts(mapper).Readonly(true).DestroyAll(context.Background())
	assert.ErrorIs(t, err, ErrReadOnlyRecord)
}

func TestDeleteAllAndUpdateAll(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper(&post{ID: 1}, &post{ID: 2})
	r := newPosts(mapper).Where("posts.author_id = ?", 7)

	n, err := r.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []string{"posts.author_id = 7"}, mapper.deleted)
	assert.Empty(t, mapper.destroyed)

	n, err = r.UpdateAll(ctx, "title = ?", "x")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.Len(t, mapper.updated, 1)
	assert.Equal(t, "title = ?", mapper.updated[0].SQL)

	_, err = r.UpdateAll(ctx, " ")
	assert.Error(t, err)
}

func TestDestroyAndDeleteByID(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper(&post{ID: 1}, &post{ID: 2})
	r := newPosts(mapper)

	destroyed, err := r.Destroy(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, destroyed, 2)
	assert.Len(t, mapper.destroyed, 2)

	_, err = r.Delete(ctx, 1, []int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, "posts.id IN (1, 2, 3)", mapper.deleted[0])

	n, err := r.Delete(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, mapper.deleted, 1)
}

func TestBuildAndCreate(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper()
	r := newPosts(mapper).WhereAttrs(map[string]any{"author_id": 7})

	built, err := r.Build(map[string]any{"title": "hello", "author_id": 9})
	require.NoError(t, err)
	assert.Equal(t, "hello", built.Title)
	assert.Equal(t, int64(7), built.AuthorID)
	assert.Empty(t, mapper.saved)

	created, err := r.Create(ctx, map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, int64(7), created.AuthorID)
	assert.Len(t, mapper.saved, 1)
}
