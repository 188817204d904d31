// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never concrete stores, so the same
// code runs on SQLite, on Postgres, behind the cache decorator, and against
// the in-memory fakes in the tests.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
)

// Article search paging.
const (
	DefaultArticleLimit = 10
	MinArticleLimit     = 1
	MaxArticleLimit     = 100
)

// CreateArticleInput is what a caller may choose when creating an article.
// The author is always the authenticated caller and is passed separately.
type CreateArticleInput struct {
	Header  string
	Content *string
	Tags    []string
	Access  model.Access
}

// ArticleService handles business logic for articles.
type ArticleService struct {
	repo   repository.ArticleRepository
	logger *slog.Logger
}

// NewArticleService creates a new ArticleService.
func NewArticleService(repo repository.ArticleRepository, logger *slog.Logger) *ArticleService {
	return &ArticleService{
		repo:   repo,
		logger: logger,
	}
}

// Create validates and stores a new article owned by authorID. An empty
// Access defaults to PUBLIC. New articles are always active.
func (s *ArticleService) Create(ctx context.Context, authorID string, in CreateArticleInput) (*model.Article, error) {
	if authorID == "" {
		return nil, apperror.Unauthorized("valid authentication required")
	}
	if err := checkHeader(in.Header); err != nil {
		return nil, err
	}
	if in.Content != nil {
		if err := checkContent(*in.Content); err != nil {
			return nil, err
		}
	}
	if err := checkTags(in.Tags); err != nil {
		return nil, err
	}
	if in.Access == "" {
		in.Access = model.AccessPublic
	}
	if err := checkAccess(in.Access); err != nil {
		return nil, err
	}

	article := &model.Article{
		Header:   in.Header,
		Content:  in.Content,
		Tags:     repository.NormalizeTags(in.Tags),
		Access:   in.Access,
		Active:   true,
		AuthorID: authorID,
	}

	if err := s.repo.Create(ctx, article); err != nil {
		if isAppError(err) {
			return nil, err
		}
		s.logger.Error("failed to create article",
			slog.String("authorId", authorID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating article: %w", err)
	}

	s.logger.Info("article created",
		slog.String("id", article.ID),
		slog.String("authorId", authorID),
		slog.String("access", string(article.Access)),
	)
	return article, nil
}

// GetByID retrieves an article by its ID.
// Returns apperror.ErrNotFound if the article doesn't exist.
func (s *ArticleService) GetByID(ctx context.Context, id string) (*model.Article, error) {
	return s.repo.GetByID(ctx, id)
}

// Update validates and applies a partial update. Only fields present in upd
// change. Content and Tags may be cleared with an explicit null; the other
// fields may not.
func (s *ArticleService) Update(ctx context.Context, id string, upd repository.ArticleUpdate) (*model.Article, error) {
	if err := validateArticleUpdate(upd); err != nil {
		return nil, err
	}

	article, err := s.repo.Update(ctx, id, upd)
	if err != nil {
		if isAppError(err) {
			return nil, err
		}
		s.logger.Error("failed to update article",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating article %s: %w", id, err)
	}

	s.logger.Info("article updated", slog.String("id", id))
	return article, nil
}

func validateArticleUpdate(upd repository.ArticleUpdate) error {
	if err := notNull("active", upd.Active); err != nil {
		return err
	}
	if err := notNull("header", upd.Header); err != nil {
		return err
	}
	if err := notNull("access", upd.Access); err != nil {
		return err
	}
	if upd.Header.HasValue() {
		if err := checkHeader(upd.Header.Value); err != nil {
			return err
		}
	}
	if upd.Content.HasValue() {
		if err := checkContent(upd.Content.Value); err != nil {
			return err
		}
	}
	if upd.Tags.HasValue() {
		if err := checkTags(upd.Tags.Value); err != nil {
			return err
		}
	}
	if upd.Access.HasValue() {
		if err := checkAccess(upd.Access.Value); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an article. It succeeds whether or not the id existed.
func (s *ArticleService) Delete(ctx context.Context, id string) (*repository.DeleteResult, error) {
	res, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete article",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("deleting article %s: %w", id, err)
	}

	s.logger.Info("article deleted", slog.String("id", id))
	return res, nil
}

// Search validates filter and returns the matching articles visible to
// filter.RequesterID. A zero Limit means the default page size.
func (s *ArticleService) Search(ctx context.Context, filter repository.ArticleFilter) ([]model.Article, error) {
	if filter.Limit == 0 {
		filter.Limit = DefaultArticleLimit
	}
	if filter.Limit < MinArticleLimit || filter.Limit > MaxArticleLimit {
		return nil, apperror.ValidationFailed("limit",
			fmt.Sprintf("limit must be between %d and %d", MinArticleLimit, MaxArticleLimit))
	}
	if filter.Offset < 0 {
		return nil, apperror.ValidationFailed("offset", "offset must not be less than 0")
	}
	if filter.Header != nil {
		if err := checkHeader(*filter.Header); err != nil {
			return nil, err
		}
	}
	if err := checkTags(filter.Tags); err != nil {
		return nil, err
	}
	if filter.Access != nil {
		if err := checkAccess(*filter.Access); err != nil {
			return nil, err
		}
	}
	if filter.CreatedAtFrom != nil && filter.CreatedAtTo != nil && filter.CreatedAtFrom.After(*filter.CreatedAtTo) {
		return nil, apperror.ValidationFailed("createdAtTo", "createdAtFrom must be before or equal to createdAtTo")
	}

	articles, err := s.repo.Search(ctx, filter)
	if err != nil {
		s.logger.Error("failed to search articles", slog.String("error", err.Error()))
		return nil, fmt.Errorf("searching articles: %w", err)
	}
	return articles, nil
}
