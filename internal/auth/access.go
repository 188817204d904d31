package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/model"
)

// ArticleGetter is the lookup the article guard needs. In production this is
// the cache-aware article repository, because the guard runs on every
// protected article request.
type ArticleGetter interface {
	GetByID(ctx context.Context, id string) (*model.Article, error)
}

// Verdict is the terminal state of an access decision.
type Verdict int

const (
	Allow Verdict = iota
	DenyNotFound
	DenyUnauthorized
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case DenyNotFound:
		return "not_found"
	case DenyUnauthorized:
		return "unauthorized"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Decision is the outcome of ArticleAccess.Decide. CallerID is set whenever a
// token was verified on the way to Allow; it is empty for PUBLIC articles
// reached without a token.
type Decision struct {
	Verdict  Verdict
	CallerID string
	Article  *model.Article
}

// ArticleAccess decides whether a request may touch an article.
//
// STATE MACHINE:
//
//	lookup(id) ── not found ──────────────────────────────→ DenyNotFound
//	    │
//	    ├─ PUBLIC ────────────────────────────────────────→ Allow
//	    │
//	    └─ RESTRICTED / PRIVATE
//	          ├─ no token / token fails verification ─────→ DenyUnauthorized
//	          ├─ RESTRICTED ──────────────────────────────→ Allow(caller)
//	          └─ PRIVATE
//	                ├─ caller == author ──────────────────→ Allow(caller)
//	                └─ otherwise ─────────────────────────→ DenyUnauthorized
//
// A non-owner on a PRIVATE article gets Unauthorized, not Forbidden, so the
// response does not distinguish "exists but not yours" from "not logged in".
type ArticleAccess struct {
	articles ArticleGetter
	tokens   *TokenService
	logger   *slog.Logger
}

// NewArticleAccess creates the article guard.
func NewArticleAccess(articles ArticleGetter, tokens *TokenService, logger *slog.Logger) *ArticleAccess {
	return &ArticleAccess{
		articles: articles,
		tokens:   tokens,
		logger:   logger,
	}
}

// Decide runs the state machine for articleID. token is the raw bearer token
// ("" when the request carried none). The error return is reserved for
// lookup failures that are neither "found" nor "not found", e.g. the
// database being down.
func (g *ArticleAccess) Decide(ctx context.Context, articleID, token string) (Decision, error) {
	article, err := g.articles.GetByID(ctx, articleID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return Decision{Verdict: DenyNotFound}, nil
		}
		return Decision{}, fmt.Errorf("auth: looking up article %s: %w", articleID, err)
	}
	if article == nil {
		return Decision{Verdict: DenyNotFound}, nil
	}

	if article.Access == model.AccessPublic {
		return Decision{Verdict: Allow, Article: article}, nil
	}

	if token == "" {
		return Decision{Verdict: DenyUnauthorized, Article: article}, nil
	}

	callerID, ok := g.tokens.VerifySessionToken(token)
	if !ok {
		return Decision{Verdict: DenyUnauthorized, Article: article}, nil
	}

	switch article.Access {
	case model.AccessRestricted:
		return Decision{Verdict: Allow, CallerID: callerID, Article: article}, nil
	case model.AccessPrivate:
		if callerID == article.AuthorID {
			return Decision{Verdict: Allow, CallerID: callerID, Article: article}, nil
		}
	}

	return Decision{Verdict: DenyUnauthorized, CallerID: callerID, Article: article}, nil
}

// RequireArticleAccess wraps a route that has an article id URL parameter
// named param. On Allow the resolved caller id (if any) is attached to the
// request context; otherwise the chain stops with 404 or 401.
func (g *ArticleAccess) RequireArticleAccess(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			articleID := chi.URLParam(r, param)
			token, _ := BearerToken(r)

			decision, err := g.Decide(r.Context(), articleID, token)
			if err != nil {
				g.logger.Error("article access check failed",
					slog.String("articleID", articleID),
					slog.String("error", err.Error()),
				)
				writeGuardError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
				return
			}

			switch decision.Verdict {
			case DenyNotFound:
				writeGuardError(w, http.StatusNotFound, "not_found", "article not found with id "+articleID)
				return
			case DenyUnauthorized:
				writeGuardError(w, http.StatusUnauthorized, "unauthorized", "valid authentication required")
				return
			}

			ctx := r.Context()
			if decision.CallerID != "" {
				ctx = WithUserID(ctx, decision.CallerID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
