package cached

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/cache"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
)

// countingRepo is an in-memory ArticleRepository that counts GetByID calls.
type countingRepo struct {
	byID      map[string]*model.Article
	gets      int
	deleteRes *repository.DeleteResult
	err       error
}

func (r *countingRepo) Create(_ context.Context, a *model.Article) error {
	r.byID[a.ID] = a
	return nil
}

func (r *countingRepo) GetByID(_ context.Context, id string) (*model.Article, error) {
	r.gets++
	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.byID[id]
	if !ok {
		return nil, apperror.NotFound("article", id)
	}
	cp := *a
	return &cp, nil
}

func (r *countingRepo) Update(_ context.Context, id string, upd repository.ArticleUpdate) (*model.Article, error) {
	if r.err != nil {
		return nil, r.err
	}
	a, ok := r.byID[id]
	if !ok {
		return nil, apperror.NotFound("article", id)
	}
	upd.Apply(a)
	cp := *a
	return &cp, nil
}

func (r *countingRepo) Delete(_ context.Context, id string) (*repository.DeleteResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	delete(r.byID, id)
	if r.deleteRes != nil {
		return r.deleteRes, nil
	}
	return &repository.DeleteResult{ID: id}, nil
}

func (r *countingRepo) Search(context.Context, repository.ArticleFilter) ([]model.Article, error) {
	return nil, nil
}

func newTestArticles(t *testing.T) (*Articles, *countingRepo, *miniredis.Miniredis) {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &countingRepo{byID: map[string]*model.Article{
		"a1": {
			ID:        "a1",
			Header:    "Hello",
			Access:    model.AccessPublic,
			Active:    true,
			Tags:      []string{"go"},
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
	return NewArticles(repo, cache.New(client, logger), logger), repo, srv
}

func TestGetByID_ReadThrough(t *testing.T) {
	articles, repo, srv := newTestArticles(t)
	ctx := context.Background()

	first, err := articles.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets)
	assert.True(t, srv.Exists("a1"), "miss populates the cache")

	second, err := articles.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets, "hit does not reach the store")
	assert.Equal(t, first, second)
}

func TestGetByID_NotFoundIsNotCached(t *testing.T) {
	articles, repo, srv := newTestArticles(t)
	ctx := context.Background()

	_, err := articles.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.False(t, srv.Exists("missing"))

	_, _ = articles.GetByID(ctx, "missing")
	assert.Equal(t, 2, repo.gets)
}

func TestUpdate_Invalidates(t *testing.T) {
	articles, repo, srv := newTestArticles(t)
	ctx := context.Background()

	_, err := articles.GetByID(ctx, "a1")
	require.NoError(t, err)
	require.True(t, srv.Exists("a1"))

	updated, err := articles.Update(ctx, "a1", repository.ArticleUpdate{Header: model.Some("Renamed")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Header)
	assert.False(t, srv.Exists("a1"))

	got, err := articles.GetByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Header, "next read sees the write")
	assert.Equal(t, 2, repo.gets)
}

func TestUpdate_FailureKeepsEntry(t *testing.T) {
	articles, repo, srv := newTestArticles(t)
	ctx := context.Background()

	_, err := articles.GetByID(ctx, "a1")
	require.NoError(t, err)

	repo.err = errors.New("db down")
	_, err = articles.Update(ctx, "a1", repository.ArticleUpdate{Header: model.Some("x")})
	assert.Error(t, err)
	assert.True(t, srv.Exists("a1"))
}

func TestDelete_Invalidates(t *testing.T) {
	articles, _, srv := newTestArticles(t)
	ctx := context.Background()

	_, err := articles.GetByID(ctx, "a1")
	require.NoError(t, err)

	res, err := articles.Delete(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", res.ID)
	assert.False(t, srv.Exists("a1"))

	_, err = articles.GetByID(ctx, "a1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDelete_ResultWithoutIDSkipsInvalidation(t *testing.T) {
	articles, repo, srv := newTestArticles(t)
	ctx := context.Background()

	_, err := articles.GetByID(ctx, "a1")
	require.NoError(t, err)

	repo.deleteRes = &repository.DeleteResult{}
	_, err = articles.Delete(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, srv.Exists("a1"))
}

func TestCacheDown_FallsBackToStore(t *testing.T) {
	articles, repo, srv := newTestArticles(t)
	srv.Close()

	got, err := articles.GetByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Header)
	assert.Equal(t, 1, repo.gets)

	_, err = articles.Delete(context.Background(), "a1")
	assert.NoError(t, err, "invalidation failure does not fail the delete")
}
