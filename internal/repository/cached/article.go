// Package cached decorates a repository.ArticleRepository with the id cache.
//
//	GetByID  → read-through: hit returns the cached copy, miss loads and stores
//	Update   → invalidate the id after a successful write
//	Delete   → invalidate the id after a successful delete
//	Create, Search → pass through
//
// Only articles that were found are cached; a not-found result is not.
package cached

import (
	"context"
	"log/slog"

	"github.com/sakif/knowledge-base/internal/cache"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
)

// Cache is the subset of *cache.Cache the decorator uses.
type Cache interface {
	GetByID(ctx context.Context, id string, dst any) bool
	Set(ctx context.Context, v cache.Identifiable)
	Delete(ctx context.Context, id string)
}

var _ Cache = (*cache.Cache)(nil)

var _ repository.ArticleRepository = (*Articles)(nil)

// Articles is a cache-aware ArticleRepository.
type Articles struct {
	next   repository.ArticleRepository
	cache  Cache
	logger *slog.Logger
}

// NewArticles wraps next with c.
func NewArticles(next repository.ArticleRepository, c Cache, logger *slog.Logger) *Articles {
	return &Articles{next: next, cache: c, logger: logger}
}

func (a *Articles) Create(ctx context.Context, article *model.Article) error {
	return a.next.Create(ctx, article)
}

func (a *Articles) GetByID(ctx context.Context, id string) (*model.Article, error) {
	var hit model.Article
	if a.cache.GetByID(ctx, id, &hit) {
		return &hit, nil
	}

	article, err := a.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.cache.Set(ctx, article)
	return article, nil
}

func (a *Articles) Update(ctx context.Context, id string, upd repository.ArticleUpdate) (*model.Article, error) {
	article, err := a.next.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	a.invalidate(ctx, article)
	return article, nil
}

func (a *Articles) Delete(ctx context.Context, id string) (*repository.DeleteResult, error) {
	res, err := a.next.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	a.invalidate(ctx, res)
	return res, nil
}

func (a *Articles) Search(ctx context.Context, filter repository.ArticleFilter) ([]model.Article, error) {
	return a.next.Search(ctx, filter)
}

// invalidate drops the entry named by the result of a write. A result
// without an id leaves the cache alone.
func (a *Articles) invalidate(ctx context.Context, result cache.Identifiable) {
	id := result.CacheID()
	if id == "" {
		a.logger.Warn("cache not invalidated: result has no id")
		return
	}
	a.cache.Delete(ctx, id)
	a.logger.Debug("cache invalidated", slog.String("id", id))
}
