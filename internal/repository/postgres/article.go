package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
)

var _ repository.ArticleRepository = (*DB)(nil)

const articleColumns = `a.id, a.created_at, a.updated_at, a.active, a.header, a.content, a.tags, a.access, a.user_id, u.name`

// placeholders numbers positional parameters as they are added.
type placeholders struct {
	args []any
}

func (p *placeholders) add(v any) string {
	p.args = append(p.args, v)
	return "$" + strconv.Itoa(len(p.args))
}

// tagsArg sends "no tags" as NULL and anything else as text[].
func tagsArg(tags []string) any {
	tags = repository.NormalizeTags(tags)
	if tags == nil {
		return nil
	}
	return tags
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanArticle(row rowScanner) (*model.Article, error) {
	var (
		a       model.Article
		content sql.NullString
		tags    []string
		access  string
	)
	if err := row.Scan(
		&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.Active, &a.Header, &content,
		db.types.SQLScanner(&tags), &access, &a.AuthorID, &a.AuthorName,
	); err != nil {
		return nil, err
	}

	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if content.Valid {
		a.Content = &content.String
	}
	a.Tags = repository.NormalizeTags(tags)
	a.Access = model.Access(access)
	return &a, nil
}

// Create inserts the article, always active, and reads it back joined with
// its author in the same statement.
func (db *DB) Create(ctx context.Context, article *model.Article) error {
	now := db.now().UTC()
	article.ID = uuid.NewString()
	article.Active = true
	if article.Access == "" {
		article.Access = model.AccessPublic
	}

	row := db.conn.QueryRowContext(ctx,
		`WITH a AS (
			INSERT INTO articles (id, created_at, updated_at, active, header, content, tags, access, user_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING *
		)
		SELECT `+articleColumns+`
		FROM a JOIN users u ON u.id = a.user_id`,
		article.ID,
		now,
		now,
		article.Active,
		article.Header,
		article.Content,
		tagsArg(article.Tags),
		string(article.Access),
		article.AuthorID,
	)

	stored, err := db.scanArticle(row)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return apperror.ValidationFailed("authorId", "author does not exist")
		}
		return fmt.Errorf("postgres: creating article: %w", err)
	}

	*article = *stored
	return nil
}

// GetByID retrieves a single article by its ID. An id that is not a UUID
// cannot exist and is reported as not found without a round trip.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Article, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperror.NotFound("article", id)
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+articleColumns+`
		 FROM articles a JOIN users u ON u.id = a.user_id
		 WHERE a.id = $1`,
		id,
	)

	article, err := db.scanArticle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("article", id)
		}
		return nil, fmt.Errorf("postgres: getting article %s: %w", id, err)
	}
	return article, nil
}

// Update applies the provided fields of upd and bumps updated_at. Like the
// SQLite store it is a read-modify-write: last write wins.
func (db *DB) Update(ctx context.Context, id string, upd repository.ArticleUpdate) (*model.Article, error) {
	article, err := db.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !upd.Apply(article) {
		return article, nil
	}

	now := db.now().UTC()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE articles
		 SET active = $1, header = $2, content = $3, tags = $4, access = $5, updated_at = $6
		 WHERE id = $7`,
		article.Active,
		article.Header,
		article.Content,
		tagsArg(article.Tags),
		string(article.Access),
		now,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: updating article %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if n == 0 {
		return nil, apperror.NotFound("article", id)
	}

	article.UpdatedAt = now
	return article, nil
}

// Delete removes the article. A missing id is not an error.
func (db *DB) Delete(ctx context.Context, id string) (*repository.DeleteResult, error) {
	if _, err := uuid.Parse(id); err != nil {
		return &repository.DeleteResult{ID: id}, nil
	}
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("postgres: deleting article %s: %w", id, err)
	}
	return &repository.DeleteResult{ID: id}, nil
}

// Search returns the articles matching filter, oldest first.
func (db *DB) Search(ctx context.Context, filter repository.ArticleFilter) ([]model.Article, error) {
	query, args := buildArticleSearch(filter, db.now())

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: searching articles: %w", err)
	}
	defer rows.Close()

	articles := make([]model.Article, 0, max(filter.Limit, 0))
	for rows.Next() {
		a, err := db.scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning article row: %w", err)
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating articles: %w", err)
	}
	return articles, nil
}

// buildArticleSearch renders the search query for filter. Visibility follows
// the same two branches as the SQLite store:
//
//	no requester → access = 'PUBLIC'
//	requester    → (access <> 'PRIVATE' OR user_id = requester) [AND access = requested]
func buildArticleSearch(filter repository.ArticleFilter, now time.Time) (string, []any) {
	var (
		p     placeholders
		where []string
	)

	if filter.Active != nil {
		where = append(where, "a.active = "+p.add(*filter.Active))
	}
	if filter.Header != nil {
		where = append(where, `a.header ILIKE `+p.add("%"+escapeLike(*filter.Header)+"%")+` ESCAPE '\'`)
	}
	if tags := repository.NormalizeTags(filter.Tags); tags != nil {
		where = append(where, "a.tags && "+p.add(tags)+"::text[]")
	}
	if filter.CreatedAtFrom != nil || filter.CreatedAtTo != nil {
		from := time.Unix(0, 0).UTC()
		to := now.UTC()
		if filter.CreatedAtFrom != nil {
			from = filter.CreatedAtFrom.UTC()
		}
		if filter.CreatedAtTo != nil {
			to = filter.CreatedAtTo.UTC()
		}
		where = append(where, "a.created_at BETWEEN "+p.add(from)+" AND "+p.add(to))
	}

	if filter.RequesterID == nil {
		where = append(where, "a.access = "+p.add(string(model.AccessPublic)))
	} else {
		where = append(where,
			"(a.access <> "+p.add(string(model.AccessPrivate))+" OR a.user_id = "+p.add(*filter.RequesterID)+")")
		if filter.Access != nil {
			where = append(where, "a.access = "+p.add(string(*filter.Access)))
		}
	}

	var b strings.Builder
	b.WriteString("SELECT " + articleColumns + " FROM articles a JOIN users u ON u.id = a.user_id")
	b.WriteString(" WHERE " + strings.Join(where, " AND "))
	b.WriteString(" ORDER BY a.created_at ASC, a.seq ASC")
	if filter.Limit > 0 {
		b.WriteString(" LIMIT " + p.add(filter.Limit))
	}
	b.WriteString(" OFFSET " + p.add(max(filter.Offset, 0)))

	return b.String(), p.args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
