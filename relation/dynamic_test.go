package relation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-repository-relation/finder"
)

func TestDispatch_Unsupported(t *testing.T) {
	ctx := context.Background()
	r := newPosts(newFakeMapper())

	_, err := r.Dispatch(ctx, "find_everything")
	require.Error(t, err)
	assert.True(t, IsUnsupportedOperation(err))

	_, err = r.Dispatch(ctx, "find_by_colour", "red")
	var unsupported *UnsupportedOperationError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "find_by_colour", unsupported.Name)
	assert.Equal(t, "unknown attribute", unsupported.Reason)

	_, err = r.FindByAttributes(ctx, finder.NewMatch(finder.KindFindOrCreate, "title"))
	assert.True(t, IsUnsupportedOperation(err))

	_, err = r.FindOrInstantiatorByAttributes(ctx, finder.NewMatch(finder.KindFirst, "title"), nil)
	assert.True(t, IsUnsupportedOperation(err))
}

func TestDispatch_FindBy(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper(&post{ID: 1, Title: "hello", AuthorID: 7})

	res, err := newPosts(mapper).Dispatch(ctx, "find_by_title_and_author_id", "hello", 7)
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, int64(1), res.Record.ID)
	assert.Equal(t,
		"SELECT posts.* FROM posts WHERE (posts.author_id = 7) AND (posts.title = 'hello') LIMIT 1",
		mapper.sqls[0])
}

func TestDispatch_MissingArgumentsMatchNull(t *testing.T) {
	mapper := newFakeMapper()

	_, err := newPosts(mapper).Dispatch(context.Background(), "FindByTitleAndAuthorID", "hello")
	require.NoError(t, err)
	assert.Contains(t, mapper.sqls[0], "posts.author_id IS NULL")
}

func TestDispatch_AllLastScope(t *testing.T) {
	ctx := context.Background()
	mapper := newFakeMapper(&post{ID: 1}, &post{ID: 2})
	r := newPosts(mapper)

	all, err := r.Dispatch(ctx, "find_all_by_author_id", 7)
	require.NoError(t, err)
	assert.Len(t, all.Records, 2)
	assert.True(t, all.Found)

	last, err := r.Dispatch(ctx, "find_last_by_author_id", 7)
	require.NoError(t, err)
	assert.True(t, last.Found)
	assert.Contains(t, mapper.sqls[1], "ORDER BY posts.id DESC LIMIT 1")

	scope, err := r.Dispatch(ctx, "scoped_by_author_id", 7)
	require.NoError(t, err)
	require.NotNil(t, scope.Relation)
	assert.Equal(t, map[string]any{"author_id": 7}, scope.Relation.WhereValues())
	assert.Len(t, mapper.sqls, 2)
}

func TestDispatch_BangRaises(t *testing.T) {
	_, err := newPosts(newFakeMapper()).Dispatch(context.Background(), "find_by_title_and_author_id!", "hello", 7)
	require.Error(t, err)

	var nf *RecordNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Couldn't find Post with title = hello, author_id = 7", nf.Message)

	res, err := newPosts(newFakeMapper()).Dispatch(context.Background(), "find_by_title", "hello")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestFindOrCreate_ExistingRecord(t *testing.T) {
	existing := &post{ID: 3, Title: "hello"}
	mapper := newFakeMapper(existing)

	res, err := newPosts(mapper).Dispatch(context.Background(), "find_or_create_by_title", "hello")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Same(t, existing, res.Record)
	assert.False(t, res.Persisted)
	assert.Empty(t, mapper.saved)
}

func TestFindOrInitialize_MissingArgumentsMatchNull(t *testing.T) {
	mapper := newFakeMapper()

	res, err := newPosts(mapper).Dispatch(context.Background(), "find_or_initialize_by_title_and_author_id", "hello")
	require.NoError(t, err)
	require.Len(t, mapper.sqls, 1)
	assert.Contains(t, mapper.sqls[0], "posts.author_id IS NULL")
	assert.Contains(t, mapper.sqls[0], "posts.title = 'hello'")
	assert.False(t, res.Found)
	assert.Equal(t, "hello", res.Record.Title)
}

func TestFindOrCreate_CreatesOnce(t *testing.T) {
	mapper := newFakeMapper()
	customized := 0

	res, err := newPosts(mapper).FindOrInstantiatorByAttributes(context.Background(),
		finder.NewMatch(finder.KindFindOrCreate, "title"),
		func(p *post) error {
			customized++
			p.Title += "!"
			return nil
		},
		"hello")
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.True(t, res.Persisted)
	assert.Equal(t, "hello!", res.Record.Title)
	assert.Equal(t, 1, customized)
	assert.Len(t, mapper.saved, 1)
}

func TestFindOrInitialize_AttributeMap(t *testing.T) {
	mapper := newFakeMapper()

	res, err := newPosts(mapper).Dispatch(context.Background(), "find_or_initialize_by_title",
		map[string]any{"title": "hello", "author_id": 7, "id": 99})
	require.NoError(t, err)

	assert.False(t, res.Persisted)
	assert.Empty(t, mapper.saved)
	assert.Equal(t, "hello", res.Record.Title)
	assert.Zero(t, res.Record.AuthorID)
	assert.Zero(t, res.Record.ID)

	assert.Equal(t, "SELECT posts.* FROM posts WHERE posts.title = 'hello' LIMIT 1", mapper.sqls[0])
	require.Len(t, mapper.assigned, 1)
	assert.True(t, mapper.assigned[0].guarded)
}

func TestFindOrInitialize_PositionalOverridesMap(t *testing.T) {
	mapper := newFakeMapper()

	res, err := newPosts(mapper).FindOrInstantiatorByAttributes(context.Background(),
		finder.NewMatch(finder.KindFindOrInitialize, "title", "author_id"), nil,
		"hello", map[string]any{"title": "ignored", "author_id": 7})
	require.NoError(t, err)

	assert.Equal(t, "hello", res.Record.Title)
	assert.Contains(t, mapper.sqls[0], "posts.author_id = 7")
	assert.Contains(t, mapper.sqls[0], "posts.title = 'hello'")
	require.Len(t, mapper.assigned, 2)
	assert.True(t, mapper.assigned[0].guarded)
	assert.False(t, mapper.assigned[1].guarded)
}

func TestFindOrInstantiator_CustomizeError(t *testing.T) {
	mapper := newFakeMapper()
	_, err := newPosts(mapper).FindOrInstantiatorByAttributes(context.Background(),
		finder.NewMatch(finder.KindFindOrCreate, "title"),
		func(p *post) error { return errBoom },
		"hello")
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, mapper.saved)
}

type stubMatcher struct {
	calls int
}

func (s *stubMatcher) Match(ctx context.Context, name string) (finder.Match, bool) {
	s.calls++
	if name == "by_title" {
		return finder.NewMatch(finder.KindFirst, "title"), true
	}
	return finder.Match{}, false
}

func TestDispatch_UsesConfiguredMatcher(t *testing.T) {
	m := &stubMatcher{}
	mapper := newFakeMapper(&post{ID: 1})
	r := New[*post](mapper.entity, mapper, WithMatcher(m))

	res, err := r.Dispatch(context.Background(), "by_title", "x")
	require.NoError(t, err)
	assert.True(t, res.Found)

	_, err = r.Where("posts.id = 1").Dispatch(context.Background(), "find_by_title", "x")
	assert.True(t, IsUnsupportedOperation(err))
	assert.Equal(t, 2, m.calls)
}
