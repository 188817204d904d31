package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/auth"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
	"github.com/sakif/knowledge-base/internal/service"
)

// ArticleService is what ArticleHandler needs from the service layer.
type ArticleService interface {
	Create(ctx context.Context, authorID string, in service.CreateArticleInput) (*model.Article, error)
	GetByID(ctx context.Context, id string) (*model.Article, error)
	Update(ctx context.Context, id string, upd repository.ArticleUpdate) (*model.Article, error)
	Delete(ctx context.Context, id string) (*repository.DeleteResult, error)
	Search(ctx context.Context, filter repository.ArticleFilter) ([]model.Article, error)
}

var _ ArticleService = (*service.ArticleService)(nil)

// ArticleHandler serves /article. Authentication and the per-article access
// check run as middleware before these methods; by the time a handler runs
// the caller (if any) is in the request context.
type ArticleHandler struct {
	articles ArticleService
	logger   *slog.Logger
}

// NewArticleHandler creates a new ArticleHandler.
func NewArticleHandler(articles ArticleService, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, logger: logger}
}

type createArticleRequest struct {
	Header  string       `json:"header"`
	Content *string      `json:"content"`
	Tags    []string     `json:"tags"`
	Access  model.Access `json:"access"`
}

type updateArticleRequest struct {
	Active  model.Optional[bool]         `json:"active"`
	Header  model.Optional[string]       `json:"header"`
	Content model.Optional[string]       `json:"content"`
	Tags    model.Optional[[]string]     `json:"tags"`
	Access  model.Optional[model.Access] `json:"access"`
}

// HandleCreate creates an article authored by the caller.
//
// HTTP: POST /article
// REQUEST BODY: {"header": "...", "content": "...", "tags": ["go"], "access": "PUBLIC"}
func (h *ArticleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req createArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	article, err := h.articles.Create(r.Context(), callerID, service.CreateArticleInput{
		Header:  req.Header,
		Content: req.Content,
		Tags:    req.Tags,
		Access:  req.Access,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, present(article))
}

// HandleGet returns one article.
//
// HTTP: GET /article/{articleID}
func (h *ArticleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	article, err := h.articles.GetByID(r.Context(), chi.URLParam(r, "articleID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, present(article))
}

// HandleUpdate applies a partial update. Absent fields are left alone;
// "content": null and "tags": null clear those fields.
//
// HTTP: PATCH /article/{articleID}
func (h *ArticleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateArticleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	article, err := h.articles.Update(r.Context(), chi.URLParam(r, "articleID"), repository.ArticleUpdate{
		Active:  req.Active,
		Header:  req.Header,
		Content: req.Content,
		Tags:    req.Tags,
		Access:  req.Access,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, present(article))
}

// HandleDelete deletes an article.
//
// HTTP: DELETE /article/{articleID} → 204 No Content
func (h *ArticleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if _, err := h.articles.Delete(r.Context(), chi.URLParam(r, "articleID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSearch lists the articles visible to the caller.
//
// HTTP: GET /article/search?limit=10&offset=0&active=true&tags=go,db&header=intro
//
//	&access=PUBLIC&createdAtFrom=2024-01-01T00:00:00Z&createdAtTo=2024-12-31
//
// Anonymous callers only ever see PUBLIC articles.
func (h *ArticleHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	filter, err := parseArticleFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	articles, err := h.articles.Search(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if articles == nil {
		articles = []model.Article{}
	}
	for i := range articles {
		present(&articles[i])
	}
	writeJSON(w, http.StatusOK, articles)
}

// present prepares an article for the response body: an article without
// tags is sent as "tags": [] rather than null.
func present(a *model.Article) *model.Article {
	if a != nil && a.Tags == nil {
		a.Tags = []string{}
	}
	return a
}

func parseArticleFilter(r *http.Request) (repository.ArticleFilter, error) {
	q := r.URL.Query()
	var (
		f   repository.ArticleFilter
		err error
	)

	if f.Limit, err = queryInt(q, "limit", service.DefaultArticleLimit); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(q, "offset", 0); err != nil {
		return f, err
	}
	if f.Active, err = queryBool(q, "active"); err != nil {
		return f, err
	}
	if f.CreatedAtFrom, err = queryTime(q, "createdAtFrom"); err != nil {
		return f, err
	}
	if f.CreatedAtTo, err = queryTime(q, "createdAtTo"); err != nil {
		return f, err
	}
	f.Tags = queryTags(q)
	f.Header = queryString(q, "header")
	f.Access = queryAccess(q)

	if callerID, ok := auth.UserIDFromContext(r.Context()); ok {
		f.RequesterID = &callerID
	}
	return f, nil
}
