package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/knowledge-base/internal/apperror"
	"github.com/sakif/knowledge-base/internal/model"
	"github.com/sakif/knowledge-base/internal/repository"
)

// compile-time check that *DB implements repository.ArticleRepository
var _ repository.ArticleRepository = (*DB)(nil)

// articleColumns is shared by every read so the scan order stays in one place.
// The author's name comes from the users table on every read.
const articleColumns = `
	a.id, a.created_at, a.updated_at, a.active, a.header, a.content,
	a.tags, a.access, a.user_id, u.name`

const articleFrom = `
	FROM articles a
	JOIN users u ON u.id = a.user_id`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*model.Article, error) {
	var (
		a                  model.Article
		createdAt, updated string
		content, tags      sql.NullString
		access             string
	)

	if err := row.Scan(
		&a.ID, &createdAt, &updated, &a.Active, &a.Header, &content,
		&tags, &access, &a.AuthorID, &a.AuthorName,
	); err != nil {
		return nil, err
	}

	var err error
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if content.Valid {
		a.Content = &content.String
	}
	if a.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	a.Access = model.Access(access)

	return &a, nil
}

// encodeTags stores "no tags" as NULL and anything else as a JSON array.
func encodeTags(tags []string) (sql.NullString, error) {
	tags = repository.NormalizeTags(tags)
	if tags == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding tags: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeTags(s sql.NullString) ([]string, error) {
	if !s.Valid {
		return nil, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(s.String), &tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	return repository.NormalizeTags(tags), nil
}

// Create inserts a new article and fills in the generated fields (id,
// timestamps, author name) on the caller's struct. New articles are always
// active; an empty Access becomes PUBLIC.
//
// An AuthorID that does not reference a user fails the foreign key and is
// reported as a validation error.
func (db *DB) Create(ctx context.Context, article *model.Article) error {
	now := db.now()
	article.ID = uuid.NewString()
	article.CreatedAt = now.UTC()
	article.UpdatedAt = now.UTC()
	article.Active = true
	if article.Access == "" {
		article.Access = model.AccessPublic
	}

	tags, err := encodeTags(article.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: creating article: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO articles (id, created_at, updated_at, active, header, content, tags, access, user_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		article.ID,
		formatTime(now),
		formatTime(now),
		article.Active,
		article.Header,
		article.Content,
		tags,
		string(article.Access),
		article.AuthorID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return apperror.ValidationFailed("authorId", "author does not exist")
		}
		return fmt.Errorf("sqlite: creating article: %w", err)
	}

	stored, err := db.GetByID(ctx, article.ID)
	if err != nil {
		return fmt.Errorf("sqlite: reading back article %s: %w", article.ID, err)
	}
	*article = *stored

	return nil
}

// GetByID retrieves a single article by its ID.
// Returns apperror.ErrNotFound if no article exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Article, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+articleColumns+articleFrom+` WHERE a.id = ?`,
		id,
	)

	article, err := scanArticle(row)
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("article", id)
		}
		return nil, fmt.Errorf("sqlite: getting article %s: %w", id, err)
	}

	return article, nil
}

// Update applies the provided fields of upd and bumps updated_at.
//
// It is a read-modify-write without a transaction: two concurrent updates
// of different fields can lose one of them (last write wins). An update
// that provides no fields writes nothing and returns the current record.
func (db *DB) Update(ctx context.Context, id string, upd repository.ArticleUpdate) (*model.Article, error) {
	article, err := db.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !upd.Apply(article) {
		return article, nil
	}

	tags, err := encodeTags(article.Tags)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating article %s: %w", id, err)
	}

	now := db.now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE articles
		 SET active = ?, header = ?, content = ?, tags = ?, access = ?, updated_at = ?
		 WHERE id = ?`,
		article.Active,
		article.Header,
		article.Content,
		tags,
		string(article.Access),
		formatTime(now),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating article %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Deleted between the read and the write.
		return nil, apperror.NotFound("article", id)
	}

	article.UpdatedAt = now.UTC()
	return article, nil
}

// Delete removes an article by its ID. Deleting an id that does not exist is
// not an error: the result carries the id either way.
func (db *DB) Delete(ctx context.Context, id string) (*repository.DeleteResult, error) {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("sqlite: deleting article %s: %w", id, err)
	}
	return &repository.DeleteResult{ID: id}, nil
}

// Search returns the articles matching filter, oldest first.
func (db *DB) Search(ctx context.Context, filter repository.ArticleFilter) ([]model.Article, error) {
	where, args := buildArticleWhere(filter, db.now())

	query := `SELECT ` + articleColumns + articleFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// rowid breaks ties between rows created in the same instant.
	query += " ORDER BY a.created_at ASC, a.rowid ASC LIMIT ? OFFSET ?"
	args = append(args, sqlLimit(filter.Limit), max(filter.Offset, 0))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching articles: %w", err)
	}
	defer rows.Close()

	articles := make([]model.Article, 0, max(filter.Limit, 0))
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning article row: %w", err)
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating articles: %w", err)
	}

	return articles, nil
}

// buildArticleWhere turns filter into AND-ed predicates with positional args.
//
// VISIBILITY:
//
//	no requester → access = 'PUBLIC'  (any requested access is ignored)
//	requester    → (access <> 'PRIVATE' OR user_id = requester)
//	               AND access = requested, when one is given
func buildArticleWhere(filter repository.ArticleFilter, now time.Time) ([]string, []any) {
	var (
		where []string
		args  []any
	)

	if filter.Active != nil {
		where = append(where, "a.active = ?")
		args = append(args, *filter.Active)
	}

	if filter.Header != nil {
		where = append(where, `casefold(a.header) LIKE casefold(?) ESCAPE '\'`)
		args = append(args, "%"+escapeLike(*filter.Header)+"%")
	}

	if tags := repository.NormalizeTags(filter.Tags); tags != nil {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(tags)), ", ")
		where = append(where,
			"EXISTS (SELECT 1 FROM json_each(a.tags) WHERE json_each.value IN ("+placeholders+"))")
		for _, tag := range tags {
			args = append(args, tag)
		}
	}

	if filter.CreatedAtFrom != nil || filter.CreatedAtTo != nil {
		from := time.Unix(0, 0)
		to := now
		if filter.CreatedAtFrom != nil {
			from = *filter.CreatedAtFrom
		}
		if filter.CreatedAtTo != nil {
			to = *filter.CreatedAtTo
		}
		where = append(where, "a.created_at BETWEEN ? AND ?")
		args = append(args, formatTime(from), formatTime(to))
	}

	if filter.RequesterID == nil {
		where = append(where, "a.access = ?")
		args = append(args, string(model.AccessPublic))
	} else {
		where = append(where, "(a.access <> ? OR a.user_id = ?)")
		args = append(args, string(model.AccessPrivate), *filter.RequesterID)
		if filter.Access != nil {
			where = append(where, "a.access = ?")
			args = append(args, string(*filter.Access))
		}
	}

	return where, args
}

// escapeLike makes % and _ in user input match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// sqlLimit maps "no limit" (zero or negative) to SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
